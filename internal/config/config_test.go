package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 9872, c.Server.Port)
	assert.Equal(t, 2, c.Batch.ChunkSize)
	assert.Equal(t, time.Second, c.Batch.ChunkDelay())
	assert.Equal(t, 1500*time.Millisecond, c.Batch.WeekDelay())
	assert.Equal(t, 500*time.Millisecond, c.Batch.ReanalyzeDelay())
	assert.Equal(t, 6, c.Batch.LookbackMonths)
	assert.Equal(t, "reflect_journal", c.Database.Name)
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7001
batch:
  chunk_size: 4
inference:
  model: test-model
`), 0644))

	t.Setenv("BATCH_CHUNK_SIZE", "8")
	t.Setenv("LLM_MODEL", "env-model")

	c := Load(path)
	assert.Equal(t, 7001, c.Server.Port)
	assert.Equal(t, 8, c.Batch.ChunkSize) // env wins over file
	assert.Equal(t, "env-model", c.Inference.Model)
}
