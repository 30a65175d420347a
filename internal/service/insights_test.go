package service

import (
	"context"
	"testing"
	"time"

	"reflect-journal/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrend(t *testing.T) {
	tests := []struct {
		name   string
		series []float64
		want   model.TrendDirection
	}{
		{"empty", nil, model.TrendStable},
		{"too short", []float64{5, 6}, model.TrendStable},
		{"under five percent is stable", []float64{5, 5, 5, 5, 5.2, 5.2}, model.TrendStable},
		{"improving", []float64{5, 5, 5, 5, 5.3, 5.3}, model.TrendImproving},
		{"declining", []float64{6, 6, 6, 6, 5.5, 5.5}, model.TrendDeclining},
		{"flat", []float64{4, 4, 4, 4, 4, 4}, model.TrendStable},
		{"zero baseline moving up", []float64{0, 0, 0, 1, 1, 1}, model.TrendImproving},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Trend(tt.series))
		})
	}
}

func TestStreak(t *testing.T) {
	today := time.Date(2026, 8, 28, 15, 0, 0, 0, time.Local)
	day := func(offset int) string { return model.DateKey(today.AddDate(0, 0, offset)) }

	t.Run("no entry today", func(t *testing.T) {
		assert.Equal(t, 0, Streak(map[string]bool{day(-1): true}, today))
	})

	t.Run("stops at the first gap", func(t *testing.T) {
		days := map[string]bool{day(0): true, day(-1): true, day(-3): true}
		assert.Equal(t, 2, Streak(days, today))
	})

	t.Run("capped at 365", func(t *testing.T) {
		days := map[string]bool{}
		for i := 0; i < 500; i++ {
			days[day(-i)] = true
		}
		assert.Equal(t, 365, Streak(days, today))
	})
}

func happinessAt(overall float64) model.HappinessMetrics {
	return model.HappinessMetrics{
		LifeEvaluation: overall, PositiveAffect: overall, NegativeAffect: 11 - overall,
		SocialSupport: overall, PersonalGrowth: overall,
		OverallScore: model.OverallHappiness(overall, overall, 11-overall, overall, overall),
	}
}

func datedItem(date, text string, cat model.SentimentCategory, overall float64) model.DatedAnalysis {
	return model.DatedAnalysis{
		Date: date, Text: text,
		Sentiment: model.SentimentAnalysis{Category: cat},
		Happiness: happinessAt(overall),
	}
}

func TestAggregateEmpty(t *testing.T) {
	tr := model.TimeRange{Start: "2026-08-01", End: "2026-08-28"}
	d := Aggregate(nil, tr, time.Now())

	assert.Equal(t, tr, d.Range)
	assert.Equal(t, 0, d.TotalAnalyses)
	assert.Equal(t, 0, d.CurrentStreak)
	assert.Equal(t, model.TrendStable, d.Happiness.Trend)
	assert.Len(t, d.Dimensions, 5)
	require.NotNil(t, d.Heatmap)
	assert.Empty(t, d.Heatmap)
	assert.Equal(t, 0, d.Gratitude.ActiveDays)
	assert.Equal(t, 0, d.SelfCare.Counts["rest"])
}

func TestAggregate(t *testing.T) {
	tr := model.TimeRange{Start: "2026-08-24", End: "2026-08-30"}
	items := []model.DatedAnalysis{
		datedItem("2026-08-24", "grateful for a slow morning with family", model.SentimentPositive, 8),
		datedItem("2026-08-25", "rough meeting, felt drained", model.SentimentNegative, 4),
		datedItem("2026-08-25", "evening run helped", model.SentimentNeutral, 6),
	}
	d := Aggregate(items, tr, time.Date(2026, 9, 10, 0, 0, 0, 0, time.Local))

	assert.Equal(t, 3, d.TotalAnalyses)
	assert.Equal(t, 2, d.DaysWithEntries)
	assert.Equal(t, 0, d.CurrentStreak)

	assert.Equal(t, 1, d.SentimentCounts[model.SentimentPositive])
	assert.Equal(t, 1, d.SentimentCounts[model.SentimentNegative])
	assert.Equal(t, 1, d.SentimentCounts[model.SentimentNeutral])

	// heatmap collapses multi-entry days to the day mean
	assert.InDelta(t, happinessAt(8).OverallScore, d.Heatmap["2026-08-24"], 1e-9)
	wantDay2 := (happinessAt(4).OverallScore + happinessAt(6).OverallScore) / 2
	assert.InDelta(t, wantDay2, d.Heatmap["2026-08-25"], 1e-9)

	// "grateful" and "family" hit their vocabularies on one entry of three
	assert.Equal(t, 1, d.Gratitude.Counts["expressions"])
	assert.Equal(t, 1, d.Gratitude.ActiveDays)
	assert.InDelta(t, 10.0/3, d.Gratitude.Score, 1e-9)
	assert.Equal(t, 1, d.SocialConnection.Counts["family"])
	assert.Equal(t, 1, d.SocialConnection.ActiveDays)

	assert.Equal(t, 1, d.Achievement.Counts["health"]) // "run"
}

func TestAggregateMatchesAnalysisKeywords(t *testing.T) {
	tr := model.TimeRange{Start: "2026-08-24", End: "2026-08-30"}
	item := datedItem("2026-08-24", "a quiet day", model.SentimentPositive, 7)
	item.Sentiment.Keywords = []string{"meditation"}
	d := Aggregate([]model.DatedAnalysis{item}, tr, time.Now())
	assert.Equal(t, 1, d.SelfCare.Counts["mindfulness"])
}

func TestBuildInsights(t *testing.T) {
	t.Run("empty dashboard yields no insights", func(t *testing.T) {
		got := BuildInsights(model.DashboardData{})
		require.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("negative affect trend label is inverted", func(t *testing.T) {
		d := model.DashboardData{
			TotalAnalyses: 5,
			Happiness:     model.MetricSummary{Average: 6.5, Trend: model.TrendImproving},
			Dimensions: map[string]model.MetricSummary{
				"negative_affect": {Average: 4, Trend: model.TrendImproving},
			},
			EmotionalBalance: model.CategoryInsight{Score: 6.0},
		}
		got := BuildInsights(d)
		var balance *model.Insight
		for i := range got {
			if got[i].Category == "emotional-balance" {
				balance = &got[i]
			}
		}
		require.NotNil(t, balance)
		assert.Equal(t, model.TrendDeclining, balance.Trend)
	})

	t.Run("streak shows from three days", func(t *testing.T) {
		d := model.DashboardData{TotalAnalyses: 3, CurrentStreak: 3}
		got := BuildInsights(d)
		found := false
		for _, in := range got {
			if in.Category == "streak" {
				found = true
			}
		}
		assert.True(t, found)
	})
}

func TestInsightServiceDashboard(t *testing.T) {
	store := newMemStore(testEntry(1, "2026-08-24", "grateful for the calm"))
	store.analyses[1] = model.AIAnalysis{
		EntryID:   1,
		Sentiment: model.SentimentAnalysis{Category: model.SentimentPositive},
		Happiness: happinessAt(7),
	}
	svc := NewInsightService(store)
	d, err := svc.Dashboard(context.Background(), model.TimeRange{Start: "2026-08-01", End: "2026-08-31"})
	require.NoError(t, err)
	assert.Equal(t, 1, d.TotalAnalyses)
	assert.Equal(t, 1, d.Gratitude.ActiveDays)
}
