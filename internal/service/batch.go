package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"reflect-journal/internal/logger"
	"reflect-journal/internal/model"

	"github.com/google/uuid"
)

// ErrBatchRunning is returned when Run is called while a batch is active.
// A single orchestrator instance owns the single shared inference engine.
var ErrBatchRunning = errors.New("batch analysis already running")

// BatchOptions bound the load placed on the single on-device engine. The
// width and delays are policy, not correctness; chunks always run in
// discovery order.
type BatchOptions struct {
	ChunkSize      int
	ChunkDelay     time.Duration
	WeekDelay      time.Duration
	ReanalyzeDelay time.Duration
	LookbackMonths int
}

func (o BatchOptions) withDefaults() BatchOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 2
	}
	if o.ChunkDelay < 0 {
		o.ChunkDelay = 0
	}
	if o.LookbackMonths <= 0 {
		o.LookbackMonths = 6
	}
	return o
}

// Orchestrator is the phased controller driving analysis and synthesis over
// many items: phase 1 analyzes unanalyzed entries in small concurrent
// chunks, phase 2 synthesizes weekly summaries strictly sequentially.
type Orchestrator struct {
	store    Store
	analyzer *Analyzer
	weekly   *WeeklySynthesizer
	opts     BatchOptions

	mu            sync.Mutex
	running       bool
	stopRequested bool
	progress      model.BatchProgress
	callback      func(model.BatchProgress)
}

func NewOrchestrator(store Store, analyzer *Analyzer, weekly *WeeklySynthesizer, opts BatchOptions) *Orchestrator {
	return &Orchestrator{store: store, analyzer: analyzer, weekly: weekly, opts: opts.withDefaults()}
}

// SetProgressCallback registers the single subscriber. Snapshots passed to
// it are copies; it may retain them.
func (o *Orchestrator) SetProgressCallback(fn func(model.BatchProgress)) {
	o.mu.Lock()
	o.callback = fn
	o.mu.Unlock()
}

// Stop requests cooperative cancellation. In-flight items finish; no further
// chunk or week starts.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.running {
		o.stopRequested = true
	}
	o.mu.Unlock()
}

func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Progress returns the latest snapshot while a batch runs. The snapshot is
// transient state; once the run ends there is nothing to report.
func (o *Orchestrator) Progress() (model.BatchProgress, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return model.BatchProgress{}, false
	}
	return snapshotProgress(o.progress), true
}

// Run discovers pending work and drives all phases. Both discovery sets
// empty means an immediate empty success; no phases run.
func (o *Orchestrator) Run(ctx context.Context) (*model.BatchResult, error) {
	runID, err := o.begin()
	if err != nil {
		return nil, err
	}
	defer o.finish()

	result := &model.BatchResult{
		RunID:     runID,
		Phases:    map[model.BatchPhase]model.PhaseResult{},
		Errors:    []model.BatchError{},
		StartedAt: time.Now(),
	}

	pending, weeks, err := o.discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("batch discovery: %w", err)
	}
	if len(pending) == 0 && len(weeks) == 0 {
		result.Success = true
		result.EndedAt = time.Now()
		logger.Info("batch.empty", "run", runID)
		return result, nil
	}

	phaseCount := 1
	if len(weeks) > 0 {
		phaseCount = 3
	}
	o.emit(func(p *model.BatchProgress) { p.PhaseCount = phaseCount })
	logger.Info("batch.run", "run", runID, "entries", len(pending), "weeks", len(weeks))

	o.runEntryPhase(ctx, result, pending, o.opts.ChunkDelay, func(ctx context.Context, e model.Entry) error {
		_, err := o.analyzer.Analyze(ctx, e)
		return err
	})

	if len(weeks) > 0 && !o.stopped(ctx) {
		o.runWeeklyPhase(ctx, result, weeks)
	}

	o.emit(func(p *model.BatchProgress) { p.Phase = model.PhaseComplete; p.CurrentItem = "" })

	result.Cancelled = o.stopped(ctx)
	result.Success = !result.Cancelled && len(result.Errors) == 0
	result.EndedAt = time.Now()
	logger.Info("batch.done", "run", runID, "success", result.Success,
		"cancelled", result.Cancelled, "errors", len(result.Errors))
	return result, nil
}

// ReanalyzeEntries deletes and recreates the analyses for the given ids,
// following the same chunking and progress contract as phase 1.
func (o *Orchestrator) ReanalyzeEntries(ctx context.Context, ids []int) (*model.BatchResult, error) {
	runID, err := o.begin()
	if err != nil {
		return nil, err
	}
	defer o.finish()

	result := &model.BatchResult{
		RunID:     runID,
		Phases:    map[model.BatchPhase]model.PhaseResult{},
		Errors:    []model.BatchError{},
		StartedAt: time.Now(),
	}

	entries := make([]model.Entry, 0, len(ids))
	for _, id := range ids {
		entry, err := o.store.Entry(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("reanalyze discovery: %w", err)
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}

	o.emit(func(p *model.BatchProgress) { p.PhaseCount = 1 })
	o.runEntryPhase(ctx, result, entries, o.opts.ReanalyzeDelay, func(ctx context.Context, e model.Entry) error {
		_, err := o.analyzer.Reanalyze(ctx, e.ID)
		return err
	})

	o.emit(func(p *model.BatchProgress) { p.Phase = model.PhaseComplete; p.CurrentItem = "" })
	result.Cancelled = o.stopped(ctx)
	result.Success = !result.Cancelled && len(result.Errors) == 0
	result.EndedAt = time.Now()
	return result, nil
}

// Statistics is a read-only snapshot, safe to call during an active run.
func (o *Orchestrator) Statistics(ctx context.Context) (*model.AnalysisStatistics, error) {
	entries, err := o.store.AllEntries(ctx)
	if err != nil {
		return nil, err
	}
	analyzed, err := o.store.AnalyzedEntryIDs(ctx)
	if err != nil {
		return nil, err
	}
	analyzedCount := 0
	for _, e := range entries {
		if analyzed[e.ID] {
			analyzedCount++
		}
	}

	stats := &model.AnalysisStatistics{
		TotalEntries:      len(entries),
		AnalyzedEntries:   analyzedCount,
		UnanalyzedEntries: len(entries) - analyzedCount,
	}
	if stats.TotalEntries > 0 {
		stats.AnalysisRate = 100 * float64(analyzedCount) / float64(stats.TotalEntries)
	}

	weeks, err := o.eligibleWeekSpans(ctx)
	if err != nil {
		return nil, err
	}
	generated := 0
	for _, span := range weeks {
		ws, err := o.store.WeeklySummaryByWeek(ctx, span)
		if err != nil {
			return nil, err
		}
		if ws != nil {
			generated++
		}
	}
	stats.WeeklySummaries = model.WeeklySummaryStats{
		TotalEligibleWeeks: len(weeks),
		GeneratedSummaries: generated,
		PendingSummaries:   len(weeks) - generated,
	}
	if len(weeks) > 0 {
		stats.WeeklySummaries.SummaryRate = 100 * float64(generated) / float64(len(weeks))
	}
	return stats, nil
}

// --- run lifecycle ---

func (o *Orchestrator) begin() (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return "", ErrBatchRunning
	}
	runID := uuid.NewString()
	o.running = true
	o.stopRequested = false
	o.progress = model.BatchProgress{RunID: runID, Errors: []model.BatchError{}}
	return runID, nil
}

func (o *Orchestrator) finish() {
	o.mu.Lock()
	o.running = false
	o.stopRequested = false
	o.progress = model.BatchProgress{}
	o.mu.Unlock()
}

func (o *Orchestrator) stopped(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopRequested
}

// emit applies a mutation under the lock and hands every subscriber an
// immutable copy, never a live reference.
func (o *Orchestrator) emit(mutate func(*model.BatchProgress)) {
	o.mu.Lock()
	mutate(&o.progress)
	snapshot := snapshotProgress(o.progress)
	cb := o.callback
	o.mu.Unlock()
	if cb != nil {
		cb(snapshot)
	}
}

func snapshotProgress(p model.BatchProgress) model.BatchProgress {
	errs := make([]model.BatchError, len(p.Errors))
	copy(errs, p.Errors)
	p.Errors = errs
	return p
}

// --- discovery ---

func (o *Orchestrator) discover(ctx context.Context) ([]model.Entry, []model.WeekSpan, error) {
	entries, err := o.store.AllEntries(ctx)
	if err != nil {
		return nil, nil, err
	}
	analyzed, err := o.store.AnalyzedEntryIDs(ctx)
	if err != nil {
		return nil, nil, err
	}
	pending := make([]model.Entry, 0, len(entries))
	for _, e := range entries {
		if !analyzed[e.ID] {
			pending = append(pending, e)
		}
	}

	spans, err := o.eligibleWeekSpans(ctx)
	if err != nil {
		return nil, nil, err
	}
	weeks := make([]model.WeekSpan, 0, len(spans))
	for _, span := range spans {
		ws, err := o.store.WeeklySummaryByWeek(ctx, span)
		if err != nil {
			return nil, nil, err
		}
		if ws == nil {
			weeks = append(weeks, span)
		}
	}
	return pending, weeks, nil
}

// eligibleWeekSpans lists weeks in the lookback window with enough entries
// for a summary. Weeks below the minimum are a normal state, not an error.
func (o *Orchestrator) eligibleWeekSpans(ctx context.Context) ([]model.WeekSpan, error) {
	now := time.Now()
	start := model.DateKey(now.AddDate(0, -o.opts.LookbackMonths, 0))
	end := model.DateKey(now)
	stats, err := o.store.WeeksWithEntries(ctx, start, end)
	if err != nil {
		return nil, err
	}
	spans := make([]model.WeekSpan, 0, len(stats))
	for _, w := range stats {
		if w.EntryCount >= minWeekEntries {
			spans = append(spans, w.Span)
		}
	}
	return spans, nil
}

// --- phases ---

type entryOutcome struct {
	entry model.Entry
	err   error
}

// runEntryPhase processes entries in fixed-size chunks; items within a
// chunk run concurrently, chunks run in discovery order with a cooldown
// between them. One item's failure never stops the rest.
func (o *Orchestrator) runEntryPhase(ctx context.Context, result *model.BatchResult, entries []model.Entry, delay time.Duration, work func(context.Context, model.Entry) error) {
	phase := model.PhaseDailyAnalysis
	o.emit(func(p *model.BatchProgress) {
		p.Phase = phase
		p.Total = len(entries)
		p.Completed = 0
	})
	pr := model.PhaseResult{Total: len(entries)}

	for start := 0; start < len(entries); start += o.opts.ChunkSize {
		if o.stopped(ctx) {
			break
		}
		if start > 0 {
			o.pause(ctx, delay)
			if o.stopped(ctx) {
				break
			}
		}
		end := start + o.opts.ChunkSize
		if end > len(entries) {
			end = len(entries)
		}
		chunk := entries[start:end]

		outcomes := make(chan entryOutcome, len(chunk))
		var wg sync.WaitGroup
		for _, e := range chunk {
			entry := e
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcomes <- entryOutcome{entry: entry, err: work(ctx, entry)}
			}()
		}
		go func() {
			wg.Wait()
			close(outcomes)
		}()

		for out := range outcomes {
			pr.Processed++
			var batchErr *model.BatchError
			if out.err != nil {
				pr.Failed++
				batchErr = &model.BatchError{
					Phase:   phase,
					ItemID:  strconv.Itoa(out.entry.ID),
					Date:    out.entry.TargetDate,
					Title:   out.entry.Title,
					Message: out.err.Error(),
				}
				result.Errors = append(result.Errors, *batchErr)
				logger.Warn("batch.entry failed", "entry", out.entry.ID, "err", out.err)
			}
			o.emit(func(p *model.BatchProgress) {
				p.Completed++
				p.CurrentItem = out.entry.TargetDate
				if batchErr != nil {
					p.Errors = append(p.Errors, *batchErr)
				}
			})
		}
	}
	result.Phases[phase] = pr
}

// runWeeklyPhase synthesizes eligible weeks strictly sequentially; the
// narrative re-analysis is part of each week's unit of work.
func (o *Orchestrator) runWeeklyPhase(ctx context.Context, result *model.BatchResult, weeks []model.WeekSpan) {
	phase := model.PhaseWeeklySummaries
	o.emit(func(p *model.BatchProgress) {
		p.Phase = phase
		p.Total = len(weeks)
		p.Completed = 0
		p.CurrentItem = ""
	})
	pr := model.PhaseResult{Total: len(weeks)}

	for i, span := range weeks {
		if o.stopped(ctx) {
			break
		}
		if i > 0 {
			o.pause(ctx, o.opts.WeekDelay)
			if o.stopped(ctx) {
				break
			}
		}

		entries, err := o.store.EntriesByDateRange(ctx, span.Start, span.End)
		res := model.WeeklySummaryResult{Success: false, Error: "week load failed"}
		if err == nil {
			res = o.weekly.Synthesize(ctx, span, entries)
		} else {
			res.Error = err.Error()
		}

		pr.Processed++
		var batchErr *model.BatchError
		if !res.Success {
			pr.Failed++
			batchErr = &model.BatchError{
				Phase:   phase,
				ItemID:  span.String(),
				Date:    span.Start,
				Title:   "weekly summary",
				Message: res.Error,
			}
			result.Errors = append(result.Errors, *batchErr)
			logger.Warn("batch.week failed", "week", span.String(), "err", res.Error)
		}
		o.emit(func(p *model.BatchProgress) {
			p.Completed++
			p.CurrentItem = span.String()
			if batchErr != nil {
				p.Errors = append(p.Errors, *batchErr)
			}
		})
	}
	result.Phases[phase] = pr
}

func (o *Orchestrator) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
