package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"reflect-journal/internal/model"
)

// InsightService recomputes dashboard aggregates on demand from persisted
// analyses. Nothing here is persisted; results are derived values.
type InsightService struct {
	store Store
}

func NewInsightService(store Store) *InsightService { return &InsightService{store: store} }

func (s *InsightService) Dashboard(ctx context.Context, tr model.TimeRange) (*model.DashboardData, error) {
	items, err := s.store.DatedAnalyses(ctx, tr.Start, tr.End)
	if err != nil {
		return nil, err
	}
	data := Aggregate(items, tr, time.Now())
	return &data, nil
}

// Fixed per-category vocabularies. Matching is per-entry presence: an entry
// counts once per bucket no matter how often a word repeats.
var socialVocab = map[string][]string{
	"family":     {"family", "mom", "dad", "mother", "father", "sister", "brother", "parents", "daughter", "son", "grandma", "grandpa"},
	"friends":    {"friend", "friends", "buddy", "hung out", "hang out", "catch up", "caught up"},
	"romantic":   {"partner", "boyfriend", "girlfriend", "wife", "husband", "date night", "romantic"},
	"colleagues": {"colleague", "coworker", "co-worker", "teammate", "boss", "manager"},
	"community":  {"community", "neighbor", "neighbour", "volunteer", "church", "club"},
}

var achievementVocab = map[string][]string{
	"career":   {"work", "project", "promotion", "career", "presentation", "deadline", "shipped"},
	"personal": {"goal", "accomplished", "finished", "completed", "achieved", "milestone"},
	"health":   {"workout", "gym", "run", "running", "exercise", "training", "hike"},
	"learning": {"learned", "learning", "course", "study", "studied", "reading", "book"},
	"creative": {"wrote", "writing", "painted", "painting", "music", "drawing", "design", "creative"},
}

var gratitudeVocab = map[string][]string{
	"expressions": {"grateful", "gratitude", "thankful", "appreciate", "appreciated", "blessed", "thank"},
}

var selfCareVocab = map[string][]string{
	"rest":        {"rest", "rested", "sleep", "slept", "nap", "early night"},
	"movement":    {"walk", "walked", "stretch", "yoga", "swim"},
	"mindfulness": {"meditate", "meditated", "meditation", "breathing", "journaling", "unplugged"},
}

// Aggregate computes the full dashboard for a time range. An empty analysis
// set yields a fully-populated zero structure, never an error.
func Aggregate(items []model.DatedAnalysis, tr model.TimeRange, now time.Time) model.DashboardData {
	sorted := make([]model.DatedAnalysis, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	days := map[string]bool{}
	byDay := map[string][]model.DatedAnalysis{}
	var dayKeys []string
	for _, it := range sorted {
		if !days[it.Date] {
			days[it.Date] = true
			dayKeys = append(dayKeys, it.Date)
		}
		byDay[it.Date] = append(byDay[it.Date], it)
	}

	overall := func(it model.DatedAnalysis) float64 { return it.Happiness.OverallScore }
	data := model.DashboardData{
		Range:           tr,
		TotalAnalyses:   len(sorted),
		DaysWithEntries: len(dayKeys),
		CurrentStreak:   Streak(days, now),
		Happiness:       summarizeMetric(sorted, dayKeys, byDay, overall),
		Dimensions: map[string]model.MetricSummary{
			"life_evaluation": summarizeMetric(sorted, dayKeys, byDay, func(it model.DatedAnalysis) float64 { return it.Happiness.LifeEvaluation }),
			"positive_affect": summarizeMetric(sorted, dayKeys, byDay, func(it model.DatedAnalysis) float64 { return it.Happiness.PositiveAffect }),
			"negative_affect": summarizeMetric(sorted, dayKeys, byDay, func(it model.DatedAnalysis) float64 { return it.Happiness.NegativeAffect }),
			"social_support":  summarizeMetric(sorted, dayKeys, byDay, func(it model.DatedAnalysis) float64 { return it.Happiness.SocialSupport }),
			"personal_growth": summarizeMetric(sorted, dayKeys, byDay, func(it model.DatedAnalysis) float64 { return it.Happiness.PersonalGrowth }),
		},
		SentimentCounts: map[model.SentimentCategory]int{},
		Heatmap:         map[string]float64{},
	}
	for _, it := range sorted {
		data.SentimentCounts[it.Sentiment.Category]++
	}
	for _, day := range dayKeys {
		data.Heatmap[day] = meanOf(byDay[day], overall)
	}

	balance := func(it model.DatedAnalysis) float64 {
		return (it.Happiness.PositiveAffect + (11 - it.Happiness.NegativeAffect)) / 2
	}
	data.EmotionalBalance = model.CategoryInsight{
		Score:      meanOf(sorted, balance),
		Trend:      Trend(dailySeries(dayKeys, byDay, balance)),
		Counts:     sentimentCountTable(sorted),
		ActiveDays: len(dayKeys),
	}
	data.SocialConnection = categoryInsight(sorted, dayKeys, byDay, socialVocab,
		func(it model.DatedAnalysis) float64 { return it.Happiness.SocialSupport })
	data.Achievement = categoryInsight(sorted, dayKeys, byDay, achievementVocab,
		func(it model.DatedAnalysis) float64 { return it.Happiness.PersonalGrowth })
	data.Gratitude = presenceInsight(sorted, dayKeys, byDay, gratitudeVocab)
	data.SelfCare = presenceInsight(sorted, dayKeys, byDay, selfCareVocab)
	return data
}

// BuildInsights renders a handful of human-readable insights from the
// aggregates. Purely derived; recomputed on every call.
func BuildInsights(d model.DashboardData) []model.Insight {
	insights := []model.Insight{}
	if d.TotalAnalyses == 0 {
		return insights
	}

	insights = append(insights, model.Insight{
		Category:    "happiness",
		Title:       "Overall wellbeing",
		Description: fmt.Sprintf("Average happiness %.1f/10 across %d analyzed entries.", d.Happiness.Average, d.TotalAnalyses),
		Score:       d.Happiness.Average,
		Trend:       d.Happiness.Trend,
	})
	if d.CurrentStreak >= 3 {
		insights = append(insights, model.Insight{
			Category:    "streak",
			Title:       "Journaling streak",
			Description: fmt.Sprintf("You have journaled %d days in a row.", d.CurrentStreak),
			Score:       float64(d.CurrentStreak),
			Trend:       model.TrendImproving,
		})
	}
	if neg, ok := d.Dimensions["negative_affect"]; ok {
		// negative affect is lower-is-better: invert the direction label
		trend := neg.Trend
		switch trend {
		case model.TrendImproving:
			trend = model.TrendDeclining
		case model.TrendDeclining:
			trend = model.TrendImproving
		}
		insights = append(insights, model.Insight{
			Category:    "emotional-balance",
			Title:       "Emotional balance",
			Description: fmt.Sprintf("Emotional balance averages %.1f/10.", d.EmotionalBalance.Score),
			Score:       d.EmotionalBalance.Score,
			Trend:       trend,
		})
	}
	if d.SocialConnection.ActiveDays > 0 {
		insights = append(insights, model.Insight{
			Category:    "social",
			Title:       "Social connection",
			Description: fmt.Sprintf("Social moments showed up on %d of %d days.", d.SocialConnection.ActiveDays, d.DaysWithEntries),
			Score:       d.SocialConnection.Score,
			Trend:       d.SocialConnection.Trend,
		})
	}
	if d.Gratitude.ActiveDays > 0 {
		insights = append(insights, model.Insight{
			Category:    "gratitude",
			Title:       "Gratitude practice",
			Description: fmt.Sprintf("Gratitude appeared in your writing on %d days.", d.Gratitude.ActiveDays),
			Score:       d.Gratitude.Score,
			Trend:       d.Gratitude.Trend,
		})
	}
	return insights
}

// Trend compares the mean of the first third of a chronological series with
// the mean of the last third. Under 5% relative change counts as stable.
// Direction-agnostic: for lower-is-better metrics the caller inverts labels.
func Trend(series []float64) model.TrendDirection {
	third := len(series) / 3
	if third == 0 {
		return model.TrendStable
	}
	first := mean(series[:third])
	last := mean(series[len(series)-third:])

	var relative float64
	if first != 0 {
		relative = (last - first) / math.Abs(first)
	} else if last != 0 {
		relative = math.Inf(sign(last))
	}
	if math.Abs(relative) < 0.05 {
		return model.TrendStable
	}
	if relative > 0 {
		return model.TrendImproving
	}
	return model.TrendDeclining
}

// Streak walks backward day-by-day from today while a matching date key
// exists, stopping at the first gap. Capped at 365.
func Streak(days map[string]bool, today time.Time) int {
	streak := 0
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	for streak < 365 && days[model.DateKey(day)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// --- aggregation helpers ---

func summarizeMetric(items []model.DatedAnalysis, dayKeys []string, byDay map[string][]model.DatedAnalysis, metric func(model.DatedAnalysis) float64) model.MetricSummary {
	if len(items) == 0 {
		return model.MetricSummary{Trend: model.TrendStable}
	}
	min := metric(items[0])
	max := min
	sum := 0.0
	for _, it := range items {
		v := metric(it)
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return model.MetricSummary{
		Average: sum / float64(len(items)),
		Min:     min,
		Max:     max,
		Trend:   Trend(dailySeries(dayKeys, byDay, metric)),
	}
}

// dailySeries collapses entries to one mean value per calendar day, in
// chronological order, so multi-entry days don't dominate the trend.
func dailySeries(dayKeys []string, byDay map[string][]model.DatedAnalysis, metric func(model.DatedAnalysis) float64) []float64 {
	series := make([]float64, 0, len(dayKeys))
	for _, day := range dayKeys {
		series = append(series, meanOf(byDay[day], metric))
	}
	return series
}

func categoryInsight(items []model.DatedAnalysis, dayKeys []string, byDay map[string][]model.DatedAnalysis, vocab map[string][]string, metric func(model.DatedAnalysis) float64) model.CategoryInsight {
	counts := emptyCounts(vocab)
	activeDays := map[string]bool{}
	for _, it := range items {
		matched := false
		for bucket, words := range vocab {
			if containsAny(it, words) {
				counts[bucket]++
				matched = true
			}
		}
		if matched {
			activeDays[it.Date] = true
		}
	}
	score := 0.0
	if len(items) > 0 {
		score = meanOf(items, metric)
	}
	return model.CategoryInsight{
		Score:      score,
		Trend:      Trend(dailySeries(dayKeys, byDay, metric)),
		Counts:     counts,
		ActiveDays: len(activeDays),
	}
}

// presenceInsight scores a category purely by how often it shows up: the
// score is the share of entries that mention it, scaled to 0-10.
func presenceInsight(items []model.DatedAnalysis, dayKeys []string, byDay map[string][]model.DatedAnalysis, vocab map[string][]string) model.CategoryInsight {
	counts := emptyCounts(vocab)
	activeDays := map[string]bool{}
	presence := func(it model.DatedAnalysis) float64 {
		for _, words := range vocab {
			if containsAny(it, words) {
				return 1
			}
		}
		return 0
	}
	matchedEntries := 0
	for _, it := range items {
		matched := false
		for bucket, words := range vocab {
			if containsAny(it, words) {
				counts[bucket]++
				matched = true
			}
		}
		if matched {
			matchedEntries++
			activeDays[it.Date] = true
		}
	}
	score := 0.0
	if len(items) > 0 {
		score = 10 * float64(matchedEntries) / float64(len(items))
	}
	return model.CategoryInsight{
		Score:      score,
		Trend:      Trend(dailySeries(dayKeys, byDay, presence)),
		Counts:     counts,
		ActiveDays: len(activeDays),
	}
}

// containsAny matches against the entry text plus the analysis keywords and
// insights, so short entries still register through their analysis.
func containsAny(it model.DatedAnalysis, words []string) bool {
	var sb strings.Builder
	sb.WriteString(it.Text)
	for _, k := range it.Sentiment.Keywords {
		sb.WriteString(" ")
		sb.WriteString(k)
	}
	for _, k := range it.Happiness.Insights {
		sb.WriteString(" ")
		sb.WriteString(k)
	}
	haystack := strings.ToLower(sb.String())
	for _, w := range words {
		if strings.Contains(haystack, w) {
			return true
		}
	}
	return false
}

func sentimentCountTable(items []model.DatedAnalysis) map[string]int {
	counts := map[string]int{}
	for _, it := range items {
		counts[string(it.Sentiment.Category)]++
	}
	return counts
}

func emptyCounts(vocab map[string][]string) map[string]int {
	counts := make(map[string]int, len(vocab))
	for bucket := range vocab {
		counts[bucket] = 0
	}
	return counts
}

func meanOf(items []model.DatedAnalysis, metric func(model.DatedAnalysis) float64) float64 {
	if len(items) == 0 {
		return 0
	}
	sum := 0.0
	for _, it := range items {
		sum += metric(it)
	}
	return sum / float64(len(items))
}

func mean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

func sign(v float64) int {
	if v < 0 {
		return -1
	}
	return 1
}
