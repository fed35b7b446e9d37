// Package cleaner integrates an external LLM service that tidies messy
// vendor submissions before they enter the normalization pipeline. The
// cleaner is optional; the pipeline runs fine without one since field
// normalization handles the common mess itself.
package cleaner

import (
	"context"
	"fmt"

	"github.com/sustainops/carbon-ranker/internal/common"
	"github.com/sustainops/carbon-ranker/internal/model"
	"github.com/sustainops/carbon-ranker/internal/service"
)

// CleanedRecord is one raw record after external cleaning, with the
// cleaner's own assessment of how confident it is in the result.
type CleanedRecord struct {
	Record          model.RawRecord
	CleaningNotes   string
	ConfidenceScore float64 // 0-100
}

// Cleaner cleans batches of raw vendor records.
type Cleaner interface {
	Clean(ctx context.Context, records []model.RawRecord) ([]CleanedRecord, error)
}

// Config holds cleaner configuration.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	BatchSize   int
}

// New creates a cleaner based on the configured provider.
func New(cfg Config) (Cleaner, error) {
	switch cfg.Provider {
	case "anthropic":
		return newAnthropicCleaner(cfg)
	case "mock":
		return NewMockCleaner(), nil
	case "":
		return nil, common.ErrCleanerUnavailable
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", common.ErrInvalidConfig, cfg.Provider)
	}
}

// Stats summarizes the outcome of cleaning a batch.
func Stats(records []CleanedRecord, errs int) service.CleaningStats {
	stats := service.CleaningStats{
		TotalRecords:   len(records) + errs,
		CleanedRecords: len(records),
		Errors:         errs,
	}
	if len(records) > 0 {
		sum := 0.0
		for _, r := range records {
			sum += r.ConfidenceScore
		}
		stats.AvgConfidence = sum / float64(len(records))
	}
	return stats
}
