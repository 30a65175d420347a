package model

import "time"

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type User struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Role   string `json:"role"`
}

type BatchPhase string

const (
	PhaseDailyAnalysis   BatchPhase = "daily-analysis"
	PhaseWeeklySummaries BatchPhase = "weekly-summaries"
	PhaseWeeklyAnalysis  BatchPhase = "weekly-analysis"
	PhaseComplete        BatchPhase = "complete"
)

// BatchError records a single failed item without aborting the batch.
type BatchError struct {
	Phase   BatchPhase `json:"phase"`
	ItemID  string     `json:"item_id"`
	Date    string     `json:"date"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// BatchProgress is an immutable snapshot emitted after every state change.
// Slices are copies; subscribers may keep snapshots without racing the run.
type BatchProgress struct {
	RunID       string       `json:"run_id"`
	Phase       BatchPhase   `json:"phase"`
	PhaseCount  int          `json:"phase_count"`
	Total       int          `json:"total"`
	Completed   int          `json:"completed"`
	CurrentItem string       `json:"current_item"`
	Errors      []BatchError `json:"errors"`
}

type PhaseResult struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
	Failed    int `json:"failed"`
}

// BatchResult is the structured outcome of a batch run. Cancelled
// distinguishes "incomplete by request" from "incomplete due to failures";
// both leave Success false.
type BatchResult struct {
	RunID     string                     `json:"run_id"`
	Success   bool                       `json:"success"`
	Cancelled bool                       `json:"cancelled"`
	Phases    map[BatchPhase]PhaseResult `json:"phases"`
	Errors    []BatchError               `json:"errors"`
	StartedAt time.Time                  `json:"started_at"`
	EndedAt   time.Time                  `json:"ended_at"`
}

type WeeklySummaryStats struct {
	TotalEligibleWeeks int     `json:"total_eligible_weeks"`
	GeneratedSummaries int     `json:"generated_summaries"`
	PendingSummaries   int     `json:"pending_summaries"`
	SummaryRate        float64 `json:"summary_rate"`
}

type AnalysisStatistics struct {
	TotalEntries      int                `json:"total_entries"`
	AnalyzedEntries   int                `json:"analyzed_entries"`
	UnanalyzedEntries int                `json:"unanalyzed_entries"`
	AnalysisRate      float64            `json:"analysis_rate"`
	WeeklySummaries   WeeklySummaryStats `json:"weekly_summaries"`
}

// WeeklySummaryResult reports one week's synthesis. A failed re-analysis
// leaves Summary set and Analysis nil; the narrative is never discarded.
type WeeklySummaryResult struct {
	Success  bool                   `json:"success"`
	Summary  *WeeklySummary         `json:"summary,omitempty"`
	Analysis *WeeklySummaryAnalysis `json:"analysis,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// WeekStats is one discovered week with its entry count.
type WeekStats struct {
	Span       WeekSpan `json:"span"`
	EntryCount int      `json:"entry_count"`
}

// DatedAnalysis is the aggregator's input row: one completed analysis tied
// to its entry's local date key and plain text.
type DatedAnalysis struct {
	Date      string            `json:"date"`
	Text      string            `json:"text"`
	Sentiment SentimentAnalysis `json:"sentiment"`
	Happiness HappinessMetrics  `json:"happiness"`
}

type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)

type MetricSummary struct {
	Average float64        `json:"average"`
	Min     float64        `json:"min"`
	Max     float64        `json:"max"`
	Trend   TrendDirection `json:"trend"`
}

// CategoryInsight aggregates one life category (social, achievement, ...).
// Counts are per-entry presence per vocabulary bucket, not per occurrence.
type CategoryInsight struct {
	Score      float64        `json:"score"`
	Trend      TrendDirection `json:"trend"`
	Counts     map[string]int `json:"counts"`
	ActiveDays int            `json:"active_days"`
}

type DashboardData struct {
	Range            TimeRange                 `json:"range"`
	TotalAnalyses    int                       `json:"total_analyses"`
	DaysWithEntries  int                       `json:"days_with_entries"`
	CurrentStreak    int                       `json:"current_streak"`
	Happiness        MetricSummary             `json:"happiness"`
	Dimensions       map[string]MetricSummary  `json:"dimensions"`
	SentimentCounts  map[SentimentCategory]int `json:"sentiment_counts"`
	Heatmap          map[string]float64        `json:"heatmap"`
	EmotionalBalance CategoryInsight           `json:"emotional_balance"`
	SocialConnection CategoryInsight           `json:"social_connection"`
	Achievement      CategoryInsight           `json:"achievement"`
	Gratitude        CategoryInsight           `json:"gratitude"`
	SelfCare         CategoryInsight           `json:"self_care"`
}

type Insight struct {
	Category    string         `json:"category"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Score       float64        `json:"score"`
	Trend       TrendDirection `json:"trend"`
}
