package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"reflect-journal/internal/logger"
	"reflect-journal/internal/model"
)

const minWeekEntries = 2

const narrativeSystem = `You write a first-person weekly journal narrative from the week's entries.
Write 400-600 words capturing the main themes, the emotional progression across the week, and any personal growth.
Write prose only, no headings, no lists.`

const themesSystem = `You extract the 3-5 dominant themes from a weekly journal narrative.
Return a JSON array of short theme strings only, e.g. ["work pressure","family time"].`

const arcSystem = `You describe the emotional arc of a weekly journal narrative and areas of growth.
Return JSON only:
{"progression":"improving|declining|stable|mixed","description":"one sentence","keyMoments":["up to 3"],"growthAreas":["2 to 4 short phrases"]}`

// WeeklySynthesizer turns one week's entries into a narrative and
// re-analyzes that narrative with the same parser machinery entries use.
type WeeklySynthesizer struct {
	store  Store
	engine Inference
}

func NewWeeklySynthesizer(store Store, engine Inference) *WeeklySynthesizer {
	return &WeeklySynthesizer{store: store, engine: engine}
}

// Synthesize generates and persists the week's narrative, then analyzes it
// best-effort. The narrative is persisted as soon as it returns; a failed
// re-analysis never invalidates a saved narrative.
func (s *WeeklySynthesizer) Synthesize(ctx context.Context, span model.WeekSpan, entries []model.Entry) model.WeeklySummaryResult {
	if len(entries) < minWeekEntries {
		return model.WeeklySummaryResult{
			Success: false,
			Error:   fmt.Sprintf("minimum %d entries required", minWeekEntries),
		}
	}
	if !s.engine.Ready(ctx) {
		return model.WeeklySummaryResult{Success: false, Error: ErrEngineUnavailable.Error()}
	}

	// At most one summary per week span.
	if existing, err := s.store.WeeklySummaryByWeek(ctx, span); err != nil {
		return model.WeeklySummaryResult{Success: false, Error: err.Error()}
	} else if existing != nil {
		return model.WeeklySummaryResult{Success: true, Summary: existing}
	}

	narrative, err := s.engine.Complete(ctx, narrativeSystem, weekPrompt(span, entries))
	if err != nil {
		return model.WeeklySummaryResult{Success: false, Error: fmt.Sprintf("narrative generation: %v", err)}
	}
	narrative = strings.TrimSpace(narrative)

	ids := make([]int, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	summary := &model.WeeklySummary{
		WeekStart: span.Start,
		WeekEnd:   span.End,
		Narrative: narrative,
		EntryIDs:  ids,
		WordCount: len(strings.Fields(narrative)),
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveWeeklySummary(ctx, summary); err != nil {
		return model.WeeklySummaryResult{Success: false, Error: err.Error()}
	}
	logger.Info("weekly.saved", "week", span.String(), "entries", len(ids), "words", summary.WordCount)

	analysis, err := s.analyzeNarrative(ctx, summary)
	if err != nil {
		logger.Warn("weekly.analysis failed, narrative kept", "week", span.String(), "err", err)
		return model.WeeklySummaryResult{Success: true, Summary: summary}
	}
	return model.WeeklySummaryResult{Success: true, Summary: summary, Analysis: analysis}
}

// analyzeNarrative runs the four re-analysis calls sequentially; the single
// shared engine is the bottleneck, so there is nothing to gain from fanning
// out. A failed call leaves a parser fallback in that field only.
func (s *WeeklySynthesizer) analyzeNarrative(ctx context.Context, summary *model.WeeklySummary) (*model.WeeklySummaryAnalysis, error) {
	text := summary.Narrative

	sentimentRaw, sentimentErr := s.engine.Complete(ctx, sentimentSystem, text)
	happinessRaw, happinessErr := s.engine.Complete(ctx, happinessSystem, text)
	themesRaw, themesErr := s.engine.Complete(ctx, themesSystem, text)
	arcRaw, arcErr := s.engine.Complete(ctx, arcSystem, text)

	if sentimentErr != nil && happinessErr != nil && themesErr != nil && arcErr != nil {
		return nil, fmt.Errorf("all analysis calls failed: %w", sentimentErr)
	}

	growth := []string{}
	if fields, ok := extractObject(arcRaw); ok {
		growth = pickStrings(fields, 4, "growthAreas", "growth_areas")
	}
	analysis := &model.WeeklySummaryAnalysis{
		SummaryID:   summary.ID,
		Sentiment:   ParseSentiment(sentimentRaw),
		Happiness:   ParseHappiness(happinessRaw),
		Themes:      ParseStringArray(themesRaw, 5),
		Arc:         ParseEmotionalArc(arcRaw),
		GrowthAreas: growth,
		CreatedAt:   time.Now(),
	}
	if err := s.store.SaveWeeklySummaryAnalysis(ctx, analysis); err != nil {
		return nil, err
	}
	return analysis, nil
}

// weekPrompt concatenates the week's entries chronologically, each labelled
// with its journal day and word count.
func weekPrompt(span model.WeekSpan, entries []model.Entry) string {
	sorted := make([]model.Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].TargetDate != sorted[j].TargetDate {
			return sorted[i].TargetDate < sorted[j].TargetDate
		}
		return sorted[i].ID < sorted[j].ID
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "Journal entries for the week %s to %s:\n\n", span.Start, span.End)
	for i, e := range sorted {
		if i > 0 {
			sb.WriteString("\n---\n")
		}
		fmt.Fprintf(&sb, "[%s] (%d words)\n%s\n", e.TargetDate, e.WordCount, strings.TrimSpace(e.PlainText))
	}
	return sb.String()
}
