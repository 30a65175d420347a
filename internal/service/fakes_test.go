package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"reflect-journal/internal/model"
)

// memStore is the in-memory Store the service tests run against.
type memStore struct {
	mu              sync.Mutex
	entries         []model.Entry
	analyses        map[int]model.AIAnalysis
	summaries       map[model.WeekSpan]model.WeeklySummary
	summaryAnalyses map[int]model.WeeklySummaryAnalysis
	nextSummaryID   int

	failSaveAnalysis bool
}

func newMemStore(entries ...model.Entry) *memStore {
	return &memStore{
		entries:         entries,
		analyses:        map[int]model.AIAnalysis{},
		summaries:       map[model.WeekSpan]model.WeeklySummary{},
		summaryAnalyses: map[int]model.WeeklySummaryAnalysis{},
	}
}

func (s *memStore) AllEntries(ctx context.Context) ([]model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Entry, len(s.entries))
	copy(out, s.entries)
	sort.Slice(out, func(i, j int) bool {
		if out[i].TargetDate != out[j].TargetDate {
			return out[i].TargetDate < out[j].TargetDate
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memStore) Entry(ctx context.Context, id int) (*model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

func (s *memStore) EntriesByDateRange(ctx context.Context, start, end string) ([]model.Entry, error) {
	all, _ := s.AllEntries(ctx)
	out := make([]model.Entry, 0, len(all))
	for _, e := range all {
		if e.TargetDate >= start && e.TargetDate <= end {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) AnalysisForEntry(ctx context.Context, entryID int) (*model.AIAnalysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.analyses[entryID]; ok {
		a := a
		return &a, nil
	}
	return nil, nil
}

func (s *memStore) AnalyzedEntryIDs(ctx context.Context) (map[int]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[int]bool, len(s.analyses))
	for id := range s.analyses {
		set[id] = true
	}
	return set, nil
}

func (s *memStore) SaveAnalysis(ctx context.Context, a *model.AIAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaveAnalysis {
		return errors.New("save analysis failed")
	}
	s.analyses[a.EntryID] = *a
	return nil
}

func (s *memStore) DeleteAnalysisForEntry(ctx context.Context, entryID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.analyses, entryID)
	return nil
}

func (s *memStore) DatedAnalyses(ctx context.Context, start, end string) ([]model.DatedAnalysis, error) {
	entries, _ := s.EntriesByDateRange(ctx, start, end)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.DatedAnalysis, 0, len(entries))
	for _, e := range entries {
		a, ok := s.analyses[e.ID]
		if !ok {
			continue
		}
		out = append(out, model.DatedAnalysis{
			Date: e.TargetDate, Text: e.PlainText,
			Sentiment: a.Sentiment, Happiness: a.Happiness,
		})
	}
	return out, nil
}

func (s *memStore) WeeksWithEntries(ctx context.Context, start, end string) ([]model.WeekStats, error) {
	entries, _ := s.EntriesByDateRange(ctx, start, end)
	counts := map[model.WeekSpan]int{}
	for _, e := range entries {
		day, err := time.ParseInLocation("2006-01-02", e.TargetDate, time.Local)
		if err != nil {
			continue
		}
		counts[model.BoundsForDate(day).Span]++
	}
	weeks := make([]model.WeekStats, 0, len(counts))
	for span, n := range counts {
		weeks = append(weeks, model.WeekStats{Span: span, EntryCount: n})
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Span.Start < weeks[j].Span.Start })
	return weeks, nil
}

func (s *memStore) WeeklySummaryByWeek(ctx context.Context, span model.WeekSpan) (*model.WeeklySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ws, ok := s.summaries[span]; ok {
		ws := ws
		return &ws, nil
	}
	return nil, nil
}

func (s *memStore) SaveWeeklySummary(ctx context.Context, ws *model.WeeklySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSummaryID++
	ws.ID = s.nextSummaryID
	s.summaries[model.WeekSpan{Start: ws.WeekStart, End: ws.WeekEnd}] = *ws
	return nil
}

func (s *memStore) SaveWeeklySummaryAnalysis(ctx context.Context, a *model.WeeklySummaryAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaryAnalyses[a.SummaryID] = *a
	return nil
}

func (s *memStore) analysisCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.analyses)
}

func (s *memStore) summaryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.summaries)
}

// fakeEngine answers each system prompt with canned, well-formed output.
// A user text containing failMarker fails that call.
type fakeEngine struct {
	mu       sync.Mutex
	down     bool
	calls    int
	lastUser string
	override func(ctx context.Context, system, user string) (string, error)
}

const failMarker = "TRIGGER-FAILURE"

const (
	fakeSentimentJSON = `{"category":"positive","confidence":0.9,"explanation":"an upbeat day","keywords":["friends","walk"]}`
	fakeHappinessJSON = `{"lifeEvaluation":8,"positiveAffect":7,"negativeAffect":3,"socialSupport":6,"personalGrowth":7,"confidence":0.8,"insights":["good week"]}`
	fakeNarrative     = "This week carried a quiet momentum. I spent time with friends, kept up my walks, and felt the work pressure ease by Friday."
	fakeThemesJSON    = `["friendship","exercise","work pressure"]`
	fakeArcJSON       = `{"progression":"improving","description":"steady lift through the week","keyMoments":["friday walk"],"growthAreas":["patience","rest"]}`
)

func (f *fakeEngine) Ready(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.down
}

func (f *fakeEngine) Complete(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastUser = user
	override := f.override
	f.mu.Unlock()

	if override != nil {
		return override(ctx, system, user)
	}
	if strings.Contains(user, failMarker) {
		return "", errors.New("engine call failed")
	}
	switch {
	case strings.Contains(system, "dominant themes"):
		return fakeThemesJSON, nil
	case strings.Contains(system, "emotional arc"):
		return fakeArcJSON, nil
	case strings.Contains(system, "first-person weekly journal narrative"):
		return fakeNarrative, nil
	case strings.Contains(system, "wellbeing dimensions"):
		return fakeHappinessJSON, nil
	default:
		return fakeSentimentJSON, nil
	}
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
