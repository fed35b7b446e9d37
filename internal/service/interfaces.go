// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/sustainops/carbon-ranker/internal/model"
)

// Storage defines the contract for the record store. All writes are durable
// before the call returns.
type Storage interface {
	// Raw record operations
	SaveRawRecords(ctx context.Context, records []model.RawRecord) error
	GetUnprocessedRecords(ctx context.Context) ([]model.RawRecord, error)
	MarkRawProcessed(ctx context.Context, id int64) error
	GetRawRecordCount(ctx context.Context) (int, error)

	// Grid intensity lookup (read-only, seeded by migration)
	GetGridIntensity(ctx context.Context, region string) (float64, error)
	GetGridIntensities(ctx context.Context) ([]model.GridIntensity, error)

	// Normalized output; replaces any prior attempt for the same raw record
	SaveNormalized(ctx context.Context, record *model.NormalizedRecord) error
	GetNormalizedRecords(ctx context.Context) ([]model.NormalizedRecord, error)
	GetRecentNormalized(ctx context.Context, vendor, month string, limit int) ([]model.NormalizedRecord, error)

	// Audit trail
	AppendProcessingLog(ctx context.Context, entry *model.ProcessingLogEntry) error
	GetProcessingLog(ctx context.Context, vendor, month string, limit int) ([]model.ProcessingLogEntry, error)
	GetRecentProcessingLog(ctx context.Context, limit int) ([]model.ProcessingLogEntry, error)
	GetProcessingStats(ctx context.Context) (ProcessingStats, error)

	// Rollups and rankings, regenerated in full each run
	ReplaceRollups(ctx context.Context, rollups []model.MonthlyRollup) error
	GetRollups(ctx context.Context, month string) ([]model.MonthlyRollup, error)
	GetRollup(ctx context.Context, vendor, month string) (*model.MonthlyRollup, error)
	LatestRollupMonth(ctx context.Context) (string, error)
	ReplaceRankings(ctx context.Context, rankings []model.Ranking) error
	GetRankings(ctx context.Context, month string) ([]model.Ranking, error)
	GetRanking(ctx context.Context, vendor, month string) (*model.Ranking, error)
	LatestRankingMonth(ctx context.Context) (string, error)

	// Database management
	ResetAll(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// ProcessingStats summarizes the audit trail for status reporting.
type ProcessingStats struct {
	TotalEntries int
	RetryEntries int
	ErrorEntries int
}

// RunStats is the per-run accumulator threaded through the batch loop.
type RunStats struct {
	Duration  time.Duration
	Processed int
	Succeeded int
	Degraded  int
	Abandoned int
	Retries   int
}

// Record tallies one terminal outcome.
func (s *RunStats) Record(outcome model.Outcome, retries int) {
	s.Processed++
	s.Retries += retries
	switch outcome {
	case model.OutcomeSucceeded:
		s.Succeeded++
	case model.OutcomeDegraded:
		s.Degraded++
	case model.OutcomeAbandoned:
		s.Abandoned++
	}
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// CleaningStats summarizes one external-cleaner batch.
type CleaningStats struct {
	TotalRecords   int
	CleanedRecords int
	Errors         int
	AvgConfidence  float64
}
