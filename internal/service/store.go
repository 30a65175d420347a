package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"reflect-journal/internal/model"

	"gorm.io/gorm"
)

// Store is the persistence contract the analysis core depends on. The gorm
// implementation lives below; tests substitute in-memory fakes.
type Store interface {
	AllEntries(ctx context.Context) ([]model.Entry, error)
	Entry(ctx context.Context, id int) (*model.Entry, error)
	EntriesByDateRange(ctx context.Context, start, end string) ([]model.Entry, error)

	AnalysisForEntry(ctx context.Context, entryID int) (*model.AIAnalysis, error)
	AnalyzedEntryIDs(ctx context.Context) (map[int]bool, error)
	SaveAnalysis(ctx context.Context, a *model.AIAnalysis) error
	DeleteAnalysisForEntry(ctx context.Context, entryID int) error
	DatedAnalyses(ctx context.Context, start, end string) ([]model.DatedAnalysis, error)

	WeeksWithEntries(ctx context.Context, start, end string) ([]model.WeekStats, error)
	WeeklySummaryByWeek(ctx context.Context, span model.WeekSpan) (*model.WeeklySummary, error)
	SaveWeeklySummary(ctx context.Context, s *model.WeeklySummary) error
	SaveWeeklySummaryAnalysis(ctx context.Context, a *model.WeeklySummaryAnalysis) error
}

type DBStore struct {
	db *gorm.DB
}

func NewDBStore(db *gorm.DB) *DBStore { return &DBStore{db: db} }

// AutoMigrate creates the journal tables.
func (s *DBStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&model.Member{},
		&model.Entry{},
		&model.AIAnalysis{},
		&model.WeeklySummary{},
		&model.WeeklySummaryAnalysis{},
	)
}

// CreateEntry is the write path for the minimal entry API. Not part of the
// Store contract the analysis core consumes; entries normally arrive from
// the editor, which owns them.
func (s *DBStore) CreateEntry(ctx context.Context, e *model.Entry) error {
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (s *DBStore) AllEntries(ctx context.Context) ([]model.Entry, error) {
	var entries []model.Entry
	if err := s.db.WithContext(ctx).Order("target_date, id").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	return entries, nil
}

func (s *DBStore) Entry(ctx context.Context, id int) (*model.Entry, error) {
	var e model.Entry
	err := s.db.WithContext(ctx).First(&e, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query entry %d: %w", id, err)
	}
	return &e, nil
}

func (s *DBStore) EntriesByDateRange(ctx context.Context, start, end string) ([]model.Entry, error) {
	var entries []model.Entry
	err := s.db.WithContext(ctx).
		Where("target_date >= ? AND target_date <= ?", start, end).
		Order("target_date, id").Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("query entries %s..%s: %w", start, end, err)
	}
	return entries, nil
}

func (s *DBStore) AnalysisForEntry(ctx context.Context, entryID int) (*model.AIAnalysis, error) {
	var a model.AIAnalysis
	err := s.db.WithContext(ctx).Where("entry_id = ?", entryID).First(&a).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query analysis for entry %d: %w", entryID, err)
	}
	return &a, nil
}

func (s *DBStore) AnalyzedEntryIDs(ctx context.Context) (map[int]bool, error) {
	var ids []int
	if err := s.db.WithContext(ctx).Model(&model.AIAnalysis{}).Pluck("entry_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("query analyzed ids: %w", err)
	}
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// SaveAnalysis replaces any prior record for the entry in one transaction,
// keeping the at-most-one-live-analysis invariant without a locking layer.
func (s *DBStore) SaveAnalysis(ctx context.Context, a *model.AIAnalysis) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("entry_id = ?", a.EntryID).Delete(&model.AIAnalysis{}).Error; err != nil {
			return fmt.Errorf("delete prior analysis: %w", err)
		}
		if err := tx.Create(a).Error; err != nil {
			return fmt.Errorf("insert analysis: %w", err)
		}
		return nil
	})
}

func (s *DBStore) DeleteAnalysisForEntry(ctx context.Context, entryID int) error {
	if err := s.db.WithContext(ctx).Where("entry_id = ?", entryID).Delete(&model.AIAnalysis{}).Error; err != nil {
		return fmt.Errorf("delete analysis for entry %d: %w", entryID, err)
	}
	return nil
}

func (s *DBStore) DatedAnalyses(ctx context.Context, start, end string) ([]model.DatedAnalysis, error) {
	entries, err := s.EntriesByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	out := make([]model.DatedAnalysis, 0, len(entries))
	for _, e := range entries {
		a, err := s.AnalysisForEntry(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		if a == nil {
			continue
		}
		out = append(out, model.DatedAnalysis{
			Date:      e.TargetDate,
			Text:      e.PlainText,
			Sentiment: a.Sentiment,
			Happiness: a.Happiness,
		})
	}
	return out, nil
}

// WeeksWithEntries groups entries in the range by their Monday-Sunday span.
// Grouping happens in Go on the date-key contract rather than in SQL, so the
// week boundary logic lives in exactly one place.
func (s *DBStore) WeeksWithEntries(ctx context.Context, start, end string) ([]model.WeekStats, error) {
	entries, err := s.EntriesByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
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

func (s *DBStore) WeeklySummaryByWeek(ctx context.Context, span model.WeekSpan) (*model.WeeklySummary, error) {
	var ws model.WeeklySummary
	err := s.db.WithContext(ctx).
		Where("week_start = ? AND week_end = ?", span.Start, span.End).
		First(&ws).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query weekly summary %s: %w", span, err)
	}
	return &ws, nil
}

func (s *DBStore) SaveWeeklySummary(ctx context.Context, ws *model.WeeklySummary) error {
	if err := s.db.WithContext(ctx).Create(ws).Error; err != nil {
		return fmt.Errorf("insert weekly summary %s: %w", model.WeekSpan{Start: ws.WeekStart, End: ws.WeekEnd}, err)
	}
	return nil
}

func (s *DBStore) SaveWeeklySummaryAnalysis(ctx context.Context, a *model.WeeklySummaryAnalysis) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("summary_id = ?", a.SummaryID).Delete(&model.WeeklySummaryAnalysis{}).Error; err != nil {
			return fmt.Errorf("delete prior summary analysis: %w", err)
		}
		if err := tx.Create(a).Error; err != nil {
			return fmt.Errorf("insert summary analysis: %w", err)
		}
		return nil
	})
}
