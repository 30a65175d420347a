package service

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"reflect-journal/internal/model"
)

// The parser turns free-form model output into strict records. It never
// fails: malformed text resolves to a typed fallback with reduced
// confidence, and every numeric field is clamped to its declared range
// before it can reach storage.

const (
	fallbackSentimentNote = "sentiment unavailable: model response could not be parsed"
	fallbackHappinessNote = "happiness metrics unavailable: model response could not be parsed"
	fallbackArcNote       = "emotional arc unavailable: model response could not be parsed"
)

// ParseSentiment extracts a sentiment record from raw completion text.
func ParseSentiment(raw string) model.SentimentAnalysis {
	fields, ok := extractObject(raw)
	if !ok {
		return model.SentimentAnalysis{
			Category:    model.SentimentNeutral,
			Confidence:  0.5,
			Explanation: fallbackSentimentNote,
			Keywords:    []string{},
			AnalyzedAt:  time.Now(),
		}
	}

	category, categoryOK := normalizeSentiment(pickString(fields, "category", "sentiment", "label"))
	keywords := pickStrings(fields, 5, "keywords", "key_words")
	explanation := pickString(fields, "explanation", "reason", "reasoning")

	confidence, confOK := pickNumber(fields, "confidence")
	if !confOK {
		confidence = 0.5
		if categoryOK {
			confidence += 0.4
		}
		if len(keywords) > 0 {
			confidence += 0.1
		}
	}

	return model.SentimentAnalysis{
		Category:    category,
		Confidence:  clamp(confidence, 0, 1),
		Explanation: explanation,
		Keywords:    keywords,
		AnalyzedAt:  time.Now(),
	}
}

// ParseHappiness extracts the five-dimension happiness record. Missing
// dimensions default to the 5.0 midpoint; the overall score is always
// recomputed from the dimensions, never read from the model.
func ParseHappiness(raw string) model.HappinessMetrics {
	fields, ok := extractObject(raw)
	if !ok {
		return fallbackHappiness()
	}

	dims := [5][]string{
		{"lifeEvaluation", "life_evaluation"},
		{"positiveAffect", "positive_affect"},
		{"negativeAffect", "negative_affect"},
		{"socialSupport", "social_support"},
		{"personalGrowth", "personal_growth"},
	}
	values := [5]float64{}
	present := 0
	for i, keys := range dims {
		if v, found := pickNumber(fields, keys...); found {
			values[i] = clamp(v, 1, 10)
			present++
		} else {
			values[i] = 5.0
		}
	}
	if present == 0 {
		return fallbackHappiness()
	}

	insights := pickStrings(fields, 3, "insights", "observations")
	confidence, confOK := pickNumber(fields, "confidence")
	if !confOK {
		confidence = 0.5 + 0.4*float64(present)/5
		if len(insights) > 0 {
			confidence += 0.1
		}
	}

	return model.HappinessMetrics{
		LifeEvaluation: values[0],
		PositiveAffect: values[1],
		NegativeAffect: values[2],
		SocialSupport:  values[3],
		PersonalGrowth: values[4],
		OverallScore:   model.OverallHappiness(values[0], values[1], values[2], values[3], values[4]),
		Confidence:     clamp(confidence, 0, 1),
		Insights:       insights,
		AnalyzedAt:     time.Now(),
	}
}

func fallbackHappiness() model.HappinessMetrics {
	return model.HappinessMetrics{
		LifeEvaluation: 5, PositiveAffect: 5, NegativeAffect: 5,
		SocialSupport: 5, PersonalGrowth: 5,
		OverallScore: model.OverallHappiness(5, 5, 5, 5, 5),
		Confidence:   0.2,
		Insights:     []string{fallbackHappinessNote},
		AnalyzedAt:   time.Now(),
	}
}

// ParseStringArray extracts up to maxItems strings from a JSON array in the
// raw text. Any failure yields an empty, non-nil slice.
func ParseStringArray(raw string, maxItems int) []string {
	body := stripFences(raw)
	open := strings.Index(body, "[")
	end := strings.LastIndex(body, "]")
	if open < 0 || end <= open {
		return []string{}
	}
	var items []any
	if err := json.Unmarshal([]byte(body[open:end+1]), &items); err != nil {
		return []string{}
	}
	out := make([]string, 0, maxItems)
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == maxItems {
			break
		}
	}
	return out
}

// ParseEmotionalArc extracts the weekly emotional-arc record.
func ParseEmotionalArc(raw string) model.EmotionalArc {
	fields, ok := extractObject(raw)
	if !ok {
		return model.EmotionalArc{
			Progression: model.ArcStable,
			Description: fallbackArcNote,
			KeyMoments:  []string{},
		}
	}
	progression := normalizeArc(pickString(fields, "progression", "direction", "trend"))
	return model.EmotionalArc{
		Progression: progression,
		Description: pickString(fields, "description", "summary"),
		KeyMoments:  pickStrings(fields, 3, "keyMoments", "key_moments", "moments"),
	}
}

// --- decoding helpers ---

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return s
}

// extractObject slices from the first '{' to the last '}' and decodes the
// result into loose key/value fields.
func extractObject(raw string) (map[string]any, bool) {
	body := stripFences(raw)
	open := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if open < 0 || end <= open {
		return nil, false
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(body[open:end+1]), &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func pick(fields map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			return v, true
		}
	}
	// tolerate arbitrary casing from smaller models
	lowered := make(map[string]any, len(fields))
	for k, v := range fields {
		lowered[strings.ToLower(k)] = v
	}
	for _, k := range keys {
		if v, ok := lowered[strings.ToLower(k)]; ok {
			return v, true
		}
	}
	return nil, false
}

func pickNumber(fields map[string]any, keys ...string) (float64, bool) {
	v, ok := pick(fields, keys...)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func pickString(fields map[string]any, keys ...string) string {
	if v, ok := pick(fields, keys...); ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func pickStrings(fields map[string]any, maxItems int, keys ...string) []string {
	v, ok := pick(fields, keys...)
	if !ok {
		return []string{}
	}
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, maxItems)
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == maxItems {
			break
		}
	}
	return out
}

func normalizeSentiment(s string) (model.SentimentCategory, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "-", "_", "-").Replace(s)
	switch model.SentimentCategory(s) {
	case model.SentimentVeryNegative, model.SentimentNegative, model.SentimentNeutral,
		model.SentimentPositive, model.SentimentVeryPositive:
		return model.SentimentCategory(s), true
	}
	return model.SentimentNeutral, false
}

func normalizeArc(s string) model.ArcProgression {
	s = strings.ToLower(strings.TrimSpace(s))
	switch model.ArcProgression(s) {
	case model.ArcImproving, model.ArcDeclining, model.ArcStable, model.ArcMixed:
		return model.ArcProgression(s)
	}
	return model.ArcStable
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
