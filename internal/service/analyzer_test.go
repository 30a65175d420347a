package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"reflect-journal/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry(id int, date, text string) model.Entry {
	return model.Entry{
		ID: id, Title: "day " + date, PlainText: text, Content: text,
		TargetDate: date, WordCount: len(strings.Fields(text)), CreatedAt: time.Now(),
	}
}

func TestAnalyzerAnalyze(t *testing.T) {
	ctx := context.Background()

	t.Run("engine unavailable", func(t *testing.T) {
		store := newMemStore()
		a := NewAnalyzer(store, &fakeEngine{down: true}, 0)
		_, err := a.Analyze(ctx, testEntry(1, "2026-08-24", "a fine day"))
		require.ErrorIs(t, err, ErrEngineUnavailable)
		assert.Equal(t, 0, store.analysisCount())
	})

	t.Run("blank entry", func(t *testing.T) {
		a := NewAnalyzer(newMemStore(), &fakeEngine{}, 0)
		_, err := a.Analyze(ctx, testEntry(1, "2026-08-24", "   \n  "))
		require.Error(t, err)
	})

	t.Run("persists parsed pair", func(t *testing.T) {
		store := newMemStore()
		a := NewAnalyzer(store, &fakeEngine{}, 0)
		got, err := a.Analyze(ctx, testEntry(7, "2026-08-24", "walked with friends after work"))
		require.NoError(t, err)
		assert.Equal(t, 7, got.EntryID)
		assert.Equal(t, model.SentimentPositive, got.Sentiment.Category)
		assert.InDelta(t, model.OverallHappiness(8, 7, 3, 6, 7), got.Happiness.OverallScore, 1e-9)

		saved, err := store.AnalysisForEntry(ctx, 7)
		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Equal(t, got.Sentiment.Category, saved.Sentiment.Category)
	})

	t.Run("long text is truncated not rejected", func(t *testing.T) {
		engine := &fakeEngine{}
		a := NewAnalyzer(newMemStore(), engine, 40)
		long := strings.Repeat("a heavy sentence about the day ", 20)
		_, err := a.Analyze(ctx, testEntry(1, "2026-08-24", long))
		require.NoError(t, err)
		assert.LessOrEqual(t, len(engine.lastUser), 40)
	})

	t.Run("engine failure fails the entry", func(t *testing.T) {
		store := newMemStore()
		a := NewAnalyzer(store, &fakeEngine{}, 0)
		_, err := a.Analyze(ctx, testEntry(1, "2026-08-24", "today "+failMarker))
		require.Error(t, err)
		assert.Equal(t, 0, store.analysisCount())
	})
}

func TestAnalyzerReanalyze(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown entry", func(t *testing.T) {
		a := NewAnalyzer(newMemStore(), &fakeEngine{}, 0)
		_, err := a.Reanalyze(ctx, 99)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("replaces the prior record", func(t *testing.T) {
		store := newMemStore(testEntry(3, "2026-08-24", "a good run this morning"))
		store.analyses[3] = model.AIAnalysis{
			EntryID:   3,
			Sentiment: model.SentimentAnalysis{Category: model.SentimentNegative, Confidence: 0.1},
		}
		a := NewAnalyzer(store, &fakeEngine{}, 0)
		got, err := a.Reanalyze(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, model.SentimentPositive, got.Sentiment.Category)
		assert.Equal(t, 1, store.analysisCount())
	})
}
