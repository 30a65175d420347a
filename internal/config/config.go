package config

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Inference InferenceConfig `yaml:"inference"`
	Batch     BatchConfig     `yaml:"batch"`
	Database  DatabaseConfig  `yaml:"database"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Console    bool   `yaml:"console"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type InferenceConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	MaxPromptChars int    `yaml:"max_prompt_chars"`
}

// BatchConfig exposes the orchestration pacing knobs. The defaults match
// what a single on-device model sustains without queueing up.
type BatchConfig struct {
	ChunkSize        int `yaml:"chunk_size"`
	ChunkDelayMS     int `yaml:"chunk_delay_ms"`
	WeekDelayMS      int `yaml:"week_delay_ms"`
	ReanalyzeDelayMS int `yaml:"reanalyze_delay_ms"`
	LookbackMonths   int `yaml:"lookback_months"`
}

func (b BatchConfig) ChunkDelay() time.Duration {
	return time.Duration(b.ChunkDelayMS) * time.Millisecond
}
func (b BatchConfig) WeekDelay() time.Duration {
	return time.Duration(b.WeekDelayMS) * time.Millisecond
}
func (b BatchConfig) ReanalyzeDelay() time.Duration {
	return time.Duration(b.ReanalyzeDelayMS) * time.Millisecond
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

func Load(configFile string) *Config {
	c := &Config{
		Server: ServerConfig{Port: 9872},
		Inference: InferenceConfig{
			BaseURL:        "http://127.0.0.1:8080",
			Model:          "qwen2.5-1.5b-instruct",
			MaxPromptChars: 1500,
		},
		Batch: BatchConfig{
			ChunkSize:        2,
			ChunkDelayMS:     1000,
			WeekDelayMS:      1500,
			ReanalyzeDelayMS: 500,
			LookbackMonths:   6,
		},
		Log:      LogConfig{Level: "info", Console: true, MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 30},
		Database: DatabaseConfig{Host: "127.0.0.1", Port: 3306, Name: "reflect_journal"},
	}

	paths := []string{"etc/config-dev.yaml", "/etc/reflect-journal/config.yaml"}
	if configFile != "" {
		paths = []string{configFile}
	}
	for _, path := range paths {
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, c)
			break
		}
	}

	envOverride(&c.Inference.BaseURL, "LLM_BASE_URL")
	envOverride(&c.Inference.APIKey, "LLM_API_KEY")
	envOverride(&c.Inference.Model, "LLM_MODEL")
	envOverride(&c.Database.Host, "DB_HOST")
	envOverride(&c.Database.User, "DB_USER")
	envOverride(&c.Database.Password, "DB_PASS")
	envOverride(&c.Database.Name, "DB_NAME")
	envOverride(&c.Log.Level, "LOG_LEVEL")
	envOverride(&c.Log.File, "LOG_FILE")
	envOverrideInt(&c.Server.Port, "PORT")
	envOverrideInt(&c.Database.Port, "DB_PORT")
	envOverrideInt(&c.Batch.ChunkSize, "BATCH_CHUNK_SIZE")
	envOverrideInt(&c.Batch.ChunkDelayMS, "BATCH_CHUNK_DELAY_MS")

	return c
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func (c *Config) OpenGormDB() (*gorm.DB, error) {
	cfg := gomysql.NewConfig()
	cfg.User = c.Database.User
	cfg.Passwd = c.Database.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port)
	cfg.DBName = c.Database.Name
	cfg.ParseTime = true

	connector, err := gomysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("create connector: %w", err)
	}
	sqlDB := sql.OpenDB(connector)
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return gorm.Open(mysql.New(mysql.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOverrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
