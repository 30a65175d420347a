package model

import (
	"fmt"
	"time"
)

type Member struct {
	ID       int    `gorm:"primaryKey" json:"id"`
	Username string `gorm:"uniqueIndex" json:"username"`
	Password string `json:"-"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	Role     string `json:"role"`
}

// Entry is one journal record for a logical day. TargetDate is the journal
// day, not the creation timestamp; the two differ for backdated entries.
type Entry struct {
	ID         int       `gorm:"primaryKey" json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	PlainText  string    `json:"plain_text"`
	TargetDate string    `gorm:"type:date;index" json:"target_date"`
	WordCount  int       `json:"word_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// AIAnalysis pairs one sentiment and one happiness result per entry.
// At most one live row per entry; re-analysis deletes then recreates.
type AIAnalysis struct {
	ID        int               `gorm:"primaryKey" json:"id"`
	EntryID   int               `gorm:"uniqueIndex" json:"entry_id"`
	Sentiment SentimentAnalysis `gorm:"serializer:json" json:"sentiment"`
	Happiness HappinessMetrics  `gorm:"serializer:json" json:"happiness"`
	CreatedAt time.Time         `json:"created_at"`
}

// WeeklySummary is the AI-synthesized narrative for one Monday-Sunday week.
type WeeklySummary struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	WeekStart string    `gorm:"type:date;uniqueIndex:uk_week_span" json:"week_start"`
	WeekEnd   string    `gorm:"type:date;uniqueIndex:uk_week_span" json:"week_end"`
	Narrative string    `json:"narrative"`
	EntryIDs  []int     `gorm:"serializer:json" json:"entry_ids"`
	WordCount int       `json:"word_count"`
	CreatedAt time.Time `json:"created_at"`
}

type WeeklySummaryAnalysis struct {
	ID          int               `gorm:"primaryKey" json:"id"`
	SummaryID   int               `gorm:"uniqueIndex" json:"summary_id"`
	Sentiment   SentimentAnalysis `gorm:"serializer:json" json:"sentiment"`
	Happiness   HappinessMetrics  `gorm:"serializer:json" json:"happiness"`
	Themes      []string          `gorm:"serializer:json" json:"themes"`
	Arc         EmotionalArc      `gorm:"serializer:json" json:"arc"`
	GrowthAreas []string          `gorm:"serializer:json" json:"growth_areas"`
	CreatedAt   time.Time         `json:"created_at"`
}

func (Member) TableName() string                { return "members" }
func (Entry) TableName() string                 { return "entries" }
func (AIAnalysis) TableName() string            { return "ai_analyses" }
func (WeeklySummary) TableName() string         { return "weekly_summaries" }
func (WeeklySummaryAnalysis) TableName() string { return "weekly_summary_analyses" }

type SentimentCategory string

const (
	SentimentVeryNegative SentimentCategory = "very-negative"
	SentimentNegative     SentimentCategory = "negative"
	SentimentNeutral      SentimentCategory = "neutral"
	SentimentPositive     SentimentCategory = "positive"
	SentimentVeryPositive SentimentCategory = "very-positive"
)

// Score maps the five ordered categories onto -2..2 for averaging.
func (c SentimentCategory) Score() float64 {
	switch c {
	case SentimentVeryNegative:
		return -2
	case SentimentNegative:
		return -1
	case SentimentPositive:
		return 1
	case SentimentVeryPositive:
		return 2
	default:
		return 0
	}
}

type SentimentAnalysis struct {
	Category    SentimentCategory `json:"category"`
	Confidence  float64           `json:"confidence"`
	Explanation string            `json:"explanation"`
	Keywords    []string          `json:"keywords"`
	AnalyzedAt  time.Time         `json:"analyzed_at"`
}

// HappinessMetrics scores five dimensions on 1-10. NegativeAffect is
// inverted: higher means more negative emotion. OverallScore is always the
// weighted function of the five dimensions, never set independently.
type HappinessMetrics struct {
	LifeEvaluation float64   `json:"life_evaluation"`
	PositiveAffect float64   `json:"positive_affect"`
	NegativeAffect float64   `json:"negative_affect"`
	SocialSupport  float64   `json:"social_support"`
	PersonalGrowth float64   `json:"personal_growth"`
	OverallScore   float64   `json:"overall_score"`
	Confidence     float64   `json:"confidence"`
	Insights       []string  `json:"insights"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}

// OverallHappiness derives the overall score from the five dimensions.
// Negative affect counts inverted so that a calmer week scores higher.
func OverallHappiness(life, positive, negative, social, growth float64) float64 {
	return 0.25*life + 0.20*positive + 0.15*(11-negative) + 0.20*social + 0.20*growth
}

type ArcProgression string

const (
	ArcImproving ArcProgression = "improving"
	ArcDeclining ArcProgression = "declining"
	ArcStable    ArcProgression = "stable"
	ArcMixed     ArcProgression = "mixed"
)

type EmotionalArc struct {
	Progression ArcProgression `json:"progression"`
	Description string         `json:"description"`
	KeyMoments  []string       `json:"key_moments"`
}

// WeekSpan identifies a Monday-Sunday week by its local date keys.
// Comparable, so it can be used as a map key; no string concatenation.
type WeekSpan struct {
	Start string `json:"week_start"`
	End   string `json:"week_end"`
}

func (w WeekSpan) String() string { return fmt.Sprintf("%s..%s", w.Start, w.End) }

type WeekBounds struct {
	Span       WeekSpan `json:"span"`
	WeekNumber int      `json:"week_number"`
	Year       int      `json:"year"`
}

// DateKey formats a local calendar day as a zero-padded key. The key is
// always derived from local time; converting to UTC first shifts entries
// across midnight and corrupts week grouping.
func DateKey(t time.Time) string { return t.Format("2006-01-02") }

// BoundsForDate returns the Monday-Sunday span containing the given day.
func BoundsForDate(t time.Time) WeekBounds {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	monday := day.AddDate(0, 0, -offset)
	sunday := monday.AddDate(0, 0, 6)
	year, week := monday.ISOWeek()
	return WeekBounds{
		Span:       WeekSpan{Start: DateKey(monday), End: DateKey(sunday)},
		WeekNumber: week,
		Year:       year,
	}
}
