package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reflect-journal/internal/logger"
	"reflect-journal/internal/model"

	"golang.org/x/sync/errgroup"
)

const sentimentSystem = `You analyze one journal entry. Classify its overall sentiment.
Return JSON only:
{"category":"very-negative|negative|neutral|positive|very-positive","confidence":0.0-1.0,"explanation":"one sentence","keywords":["up to 5 words"]}`

const happinessSystem = `You score one journal entry on five wellbeing dimensions, each 1-10.
negativeAffect is inverted: 10 means strong negative emotion.
Return JSON only:
{"lifeEvaluation":1-10,"positiveAffect":1-10,"negativeAffect":1-10,"socialSupport":1-10,"personalGrowth":1-10,"confidence":0.0-1.0,"insights":["up to 3 short observations"]}`

// Analyzer runs the two per-entry inference calls and persists the pair.
type Analyzer struct {
	store          Store
	engine         Inference
	maxPromptChars int
}

func NewAnalyzer(store Store, engine Inference, maxPromptChars int) *Analyzer {
	if maxPromptChars <= 0 {
		maxPromptChars = 1500
	}
	return &Analyzer{store: store, engine: engine, maxPromptChars: maxPromptChars}
}

// Analyze issues the sentiment and happiness calls concurrently, parses both
// through the fallback-safe parser, and persists the combined record,
// replacing any prior analysis for the entry. An engine-level failure on
// either call fails the whole entry; parse failures never do.
func (a *Analyzer) Analyze(ctx context.Context, entry model.Entry) (*model.AIAnalysis, error) {
	if !a.engine.Ready(ctx) {
		return nil, ErrEngineUnavailable
	}
	text := a.promptText(entry)
	if text == "" {
		return nil, fmt.Errorf("entry %d has no text", entry.ID)
	}

	var sentimentRaw, happinessRaw string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := a.engine.Complete(gctx, sentimentSystem, text)
		if err != nil {
			return fmt.Errorf("sentiment call: %w", err)
		}
		sentimentRaw = out
		return nil
	})
	g.Go(func() error {
		out, err := a.engine.Complete(gctx, happinessSystem, text)
		if err != nil {
			return fmt.Errorf("happiness call: %w", err)
		}
		happinessRaw = out
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyze entry %d: %w", entry.ID, err)
	}

	analysis := &model.AIAnalysis{
		EntryID:   entry.ID,
		Sentiment: ParseSentiment(sentimentRaw),
		Happiness: ParseHappiness(happinessRaw),
		CreatedAt: time.Now(),
	}
	if err := a.store.SaveAnalysis(ctx, analysis); err != nil {
		return nil, fmt.Errorf("save analysis for entry %d: %w", entry.ID, err)
	}
	logger.Info("analyzer.saved", "entry", entry.ID, "date", entry.TargetDate,
		"sentiment", analysis.Sentiment.Category, "overall", analysis.Happiness.OverallScore)
	return analysis, nil
}

// Reanalyze deletes the existing analysis and runs the normal flow. Used for
// explicit re-analyze actions only, never automatically on edit.
func (a *Analyzer) Reanalyze(ctx context.Context, entryID int) (*model.AIAnalysis, error) {
	entry, err := a.store.Entry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("entry %d not found", entryID)
	}
	if err := a.store.DeleteAnalysisForEntry(ctx, entryID); err != nil {
		return nil, err
	}
	return a.Analyze(ctx, *entry)
}

// promptText trims and truncates the plain text. Long entries are summarized
// by truncation, not rejected.
func (a *Analyzer) promptText(entry model.Entry) string {
	text := strings.TrimSpace(entry.PlainText)
	if len(text) > a.maxPromptChars {
		text = strings.TrimSpace(text[:a.maxPromptChars])
	}
	return text
}
