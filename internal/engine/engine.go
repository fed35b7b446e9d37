// Package engine orchestrates the full pipeline run: issue detection,
// strategy planning, execution, critique with bounded retries, and the
// final rollup and ranking rebuild.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sustainops/carbon-ranker/internal/cleaner"
	"github.com/sustainops/carbon-ranker/internal/common"
	"github.com/sustainops/carbon-ranker/internal/critic"
	"github.com/sustainops/carbon-ranker/internal/executor"
	"github.com/sustainops/carbon-ranker/internal/model"
	"github.com/sustainops/carbon-ranker/internal/planner"
	"github.com/sustainops/carbon-ranker/internal/ranker"
	"github.com/sustainops/carbon-ranker/internal/service"
)

// DefaultConcurrency is the worker limit when none is configured.
const DefaultConcurrency = 4

// Engine drives batch processing of raw records.
type Engine struct {
	storage     service.Storage
	cleaner     cleaner.Cleaner
	onProgress  func()
	concurrency int
}

// Option configures the engine.
type Option func(*Engine)

// WithCleaner attaches an external cleaner run before normalization.
func WithCleaner(c cleaner.Cleaner) Option {
	return func(e *Engine) { e.cleaner = c }
}

// WithConcurrency sets the number of records processed in parallel.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithProgress registers a callback invoked once per completed record.
func WithProgress(fn func()) Option {
	return func(e *Engine) { e.onProgress = fn }
}

// New creates a processing engine.
func New(storage service.Storage, opts ...Option) *Engine {
	e := &Engine{
		storage:     storage,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessAll runs the pipeline over every unprocessed record, then rebuilds
// rollups and rankings from the complete normalized set. Returns
// common.ErrNoRawRecords when there is nothing to do.
func (e *Engine) ProcessAll(ctx context.Context) (service.RunStats, error) {
	var stats service.RunStats
	start := time.Now()

	records, err := e.storage.GetUnprocessedRecords(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to load unprocessed records: %w", err)
	}
	if len(records) == 0 {
		return stats, common.ErrNoRawRecords
	}

	runID := uuid.New().String()
	slog.Info("Starting processing run",
		"run_id", runID,
		"records", len(records),
		"concurrency", e.concurrency)

	if e.cleaner != nil {
		records = e.cleanRecords(ctx, runID, records)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range records {
		record := records[i]
		g.Go(func() error {
			outcome, retries, err := e.processRecord(gctx, runID, &record)
			if err != nil {
				// A store failure on one record must not take down the
				// batch. Count it abandoned and move on; only a dead
				// context stops the run.
				if gctx.Err() != nil {
					return err
				}
				slog.Error("Record failed terminally",
					"run_id", runID,
					"vendor", record.Vendor,
					"month", record.Month,
					"error", err)
				e.log(gctx, runID, &record, "error", "storage_failure", retries, err.Error())
				outcome = model.OutcomeAbandoned
			}

			mu.Lock()
			stats.Record(outcome, retries)
			mu.Unlock()

			if e.onProgress != nil {
				e.onProgress()
			}
			return nil
		})
	}

	// All records must reach a terminal state before aggregation.
	if err := g.Wait(); err != nil {
		return stats, fmt.Errorf("processing run %s failed: %w", runID, err)
	}

	if err := e.RebuildRankings(ctx); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	slog.Info("Processing run complete",
		"run_id", runID,
		"processed", stats.Processed,
		"succeeded", stats.Succeeded,
		"degraded", stats.Degraded,
		"abandoned", stats.Abandoned,
		"retries", stats.Retries,
		"duration", stats.Duration)

	return stats, nil
}

// cleanRecords runs the external cleaner over the batch. Cleaning is best
// effort; on failure the original records continue into the pipeline.
func (e *Engine) cleanRecords(ctx context.Context, runID string, records []model.RawRecord) []model.RawRecord {
	cleaned, err := e.cleaner.Clean(ctx, records)
	if err != nil {
		slog.Warn("External cleaning failed, using original records",
			"run_id", runID, "error", err)
		return records
	}

	stats := cleaner.Stats(cleaned, 0)
	slog.Info("External cleaning complete",
		"run_id", runID,
		"cleaned", stats.CleanedRecords,
		"avg_confidence", stats.AvgConfidence)

	out := make([]model.RawRecord, len(cleaned))
	for i, c := range cleaned {
		out[i] = c.Record
	}
	return out
}

// processRecord runs the detect-plan-execute-critique loop for one record
// until the critic accepts, the retry budget runs out, or the context is
// canceled. When the budget runs out the best attempt that produced data
// is accepted fail-open; a record with no data at all is abandoned.
func (e *Engine) processRecord(ctx context.Context, runID string, raw *model.RawRecord) (model.Outcome, int, error) {
	if err := ctx.Err(); err != nil {
		return model.OutcomeAbandoned, 0, err
	}

	gridIntensity, err := e.storage.GetGridIntensity(ctx, raw.Region)
	if err != nil {
		return model.OutcomeAbandoned, 0, fmt.Errorf("grid intensity for %s: %w", raw.Vendor, err)
	}

	var best *model.NormalizedRecord
	var lastCritique model.CritiqueResult
	retries := 0

	for attempt := 0; attempt <= critic.MaxRetries; attempt++ {
		retries = attempt

		detection := planner.DetectIssues(raw)
		e.log(ctx, runID, raw, "planner", "issues_detected", attempt,
			fmt.Sprintf("%d issue(s), severity %s, confidence %.2f",
				len(detection.Issues), detection.Severity, detection.Confidence))

		strategy := planner.PlanStrategy(detection)
		result := executor.Execute(raw, gridIntensity, strategy)
		e.log(ctx, runID, raw, "executor", executionAction(result), attempt,
			executionDetails(result))

		lastCritique = critic.Critique(result, result.Normalized, attempt)
		e.log(ctx, runID, raw, "critic", critiqueAction(lastCritique), attempt,
			critiqueDetails(lastCritique))

		if result.Normalized != nil && (best == nil || result.Normalized.DataQuality > best.DataQuality) {
			best = result.Normalized
		}

		if !lastCritique.RetryNeeded {
			break
		}
	}

	outcome := resolveOutcome(best, lastCritique)

	if best != nil {
		if err := e.storage.SaveNormalized(ctx, best); err != nil {
			return outcome, retries, fmt.Errorf("failed to save normalized record for %s %s: %w", raw.Vendor, raw.Month, err)
		}
	} else {
		e.log(ctx, runID, raw, "error", "record_abandoned", retries,
			"no attempt produced normalized data")
	}

	if err := e.storage.MarkRawProcessed(ctx, raw.ID); err != nil {
		return outcome, retries, fmt.Errorf("failed to mark record %d processed: %w", raw.ID, err)
	}

	return outcome, retries, nil
}

// resolveOutcome maps the final attempt state to a terminal outcome.
func resolveOutcome(best *model.NormalizedRecord, critique model.CritiqueResult) model.Outcome {
	switch {
	case best == nil:
		return model.OutcomeAbandoned
	case critique.Passed:
		return model.OutcomeSucceeded
	default:
		return model.OutcomeDegraded
	}
}

// RebuildRankings regenerates the rollups from all normalized records and
// re-scores the leaderboard over the latest month.
func (e *Engine) RebuildRankings(ctx context.Context) error {
	normalized, err := e.storage.GetNormalizedRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to load normalized records: %w", err)
	}
	if len(normalized) == 0 {
		return common.ErrNoRollups
	}

	rollups := ranker.BuildRollups(normalized)
	if err := e.storage.ReplaceRollups(ctx, rollups); err != nil {
		return fmt.Errorf("failed to replace rollups: %w", err)
	}

	latest := ranker.LatestMonth(rollups)
	latestRollups := make([]model.MonthlyRollup, 0, len(rollups))
	for _, rollup := range rollups {
		if rollup.Month == latest {
			latestRollups = append(latestRollups, rollup)
		}
	}

	rankings := ranker.BuildRankings(latestRollups)
	if err := e.storage.ReplaceRankings(ctx, rankings); err != nil {
		return fmt.Errorf("failed to replace rankings: %w", err)
	}

	slog.Info("Rebuilt rollups and rankings",
		"rollups", len(rollups),
		"ranked_month", latest,
		"ranked_vendors", len(rankings))
	return nil
}

func (e *Engine) log(ctx context.Context, runID string, raw *model.RawRecord, stage, action string, retryCount int, details string) {
	entry := &model.ProcessingLogEntry{
		RunID:      runID,
		Vendor:     raw.Vendor,
		Month:      raw.Month,
		Stage:      stage,
		Action:     action,
		Details:    details,
		RetryCount: retryCount,
	}
	if err := e.storage.AppendProcessingLog(ctx, entry); err != nil {
		slog.Warn("Failed to append processing log",
			"vendor", raw.Vendor, "month", raw.Month, "error", err)
	}
}

func executionAction(result executor.Result) string {
	if result.Success {
		return "execution_complete"
	}
	return "execution_failed"
}

func executionDetails(result executor.Result) string {
	if result.Success && result.Normalized != nil {
		return fmt.Sprintf("%d action(s) applied, quality %.1f",
			len(result.Log), result.Normalized.DataQuality)
	}
	if len(result.Errors) > 0 {
		return fmt.Sprintf("errors: %v", result.Errors)
	}
	return "execution failed"
}

func critiqueAction(critique model.CritiqueResult) string {
	switch {
	case critique.RetryNeeded:
		return "retry_requested"
	case critique.Passed:
		return "accepted"
	default:
		return "accepted_degraded"
	}
}

func critiqueDetails(critique model.CritiqueResult) string {
	if critique.RetryNeeded {
		return fmt.Sprintf("quality %.1f, %d issue(s), retry: %s",
			critique.QualityScore, len(critique.Issues), critique.RetryReason)
	}
	return fmt.Sprintf("quality %.1f, %d issue(s)",
		critique.QualityScore, len(critique.Issues))
}
