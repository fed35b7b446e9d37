package cleaner

import (
	"context"
	"strings"

	"github.com/sustainops/carbon-ranker/internal/model"
)

// MockCleaner is a deterministic cleaner for tests and offline runs. It
// trims surrounding whitespace from every raw field and nothing else.
type MockCleaner struct {
	CleanCalls int
}

// NewMockCleaner creates a mock cleaner.
func NewMockCleaner() *MockCleaner {
	return &MockCleaner{}
}

// Clean trims whitespace from each field and reports full confidence.
func (m *MockCleaner) Clean(_ context.Context, records []model.RawRecord) ([]CleanedRecord, error) {
	m.CleanCalls++

	cleaned := make([]CleanedRecord, len(records))
	for i, record := range records {
		trimmed := record
		trimmed.Region = strings.TrimSpace(record.Region)
		trimmed.GPUHoursRaw = strings.TrimSpace(record.GPUHoursRaw)
		trimmed.EnergyRaw = strings.TrimSpace(record.EnergyRaw)
		trimmed.TokensRaw = strings.TrimSpace(record.TokensRaw)
		trimmed.APICallsRaw = strings.TrimSpace(record.APICallsRaw)
		trimmed.PUERaw = strings.TrimSpace(record.PUERaw)
		trimmed.UtilizationRaw = strings.TrimSpace(record.UtilizationRaw)

		cleaned[i] = CleanedRecord{
			Record:          trimmed,
			CleaningNotes:   "whitespace trimmed",
			ConfidenceScore: 100,
		}
	}
	return cleaned, nil
}
