package cleaner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sustainops/carbon-ranker/internal/common"
	"github.com/sustainops/carbon-ranker/internal/model"
)

func TestNewCleaner(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "mock", cfg: Config{Provider: "mock"}},
		{name: "anthropic without key", cfg: Config{Provider: "anthropic"}, wantErr: common.ErrMissingConfig},
		{name: "anthropic with key", cfg: Config{Provider: "anthropic", APIKey: "test-key"}},
		{name: "unconfigured", cfg: Config{}, wantErr: common.ErrCleanerUnavailable},
		{name: "unknown provider", cfg: Config{Provider: "psychic"}, wantErr: common.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, c)
		})
	}
}

func TestMockCleanerTrimsFields(t *testing.T) {
	mock := NewMockCleaner()

	records := []model.RawRecord{
		{
			Vendor:         "CloudAI-Pro",
			Month:          "2024-01",
			Region:         " US-East ",
			GPUHoursRaw:    " 1000 ",
			EnergyRaw:      "  400 kWh ",
			UtilizationRaw: " 80% ",
		},
	}

	cleaned, err := mock.Clean(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, cleaned, 1)

	got := cleaned[0]
	assert.Equal(t, "US-East", got.Record.Region)
	assert.Equal(t, "1000", got.Record.GPUHoursRaw)
	assert.Equal(t, "400 kWh", got.Record.EnergyRaw)
	assert.Equal(t, "80%", got.Record.UtilizationRaw)
	assert.InDelta(t, 100.0, got.ConfidenceScore, 1e-9)
	assert.Equal(t, 1, mock.CleanCalls)
}

func TestParseCleanedBatch(t *testing.T) {
	batch := []model.RawRecord{
		{ID: 1, Vendor: "CloudAI-Pro", Month: "2024-01", EnergyRaw: "400kwh"},
	}

	content := "```json\n" +
		`[{"vendor":"CloudAI-Pro","month":"2024-01","region":"US-East",` +
		`"gpu_hours":"1000","energy":"400 kWh","tokens":"10B","api_calls":"25000",` +
		`"pue":"1.2","utilization":"80%","confidence":95,"notes":"fixed energy unit"}]` +
		"\n```"

	cleaned, err := parseCleanedBatch(content, batch)
	require.NoError(t, err)
	require.Len(t, cleaned, 1)

	got := cleaned[0]
	// Identity fields come from the original record, not the response.
	assert.Equal(t, int64(1), got.Record.ID)
	assert.Equal(t, "CloudAI-Pro", got.Record.Vendor)
	assert.Equal(t, "400 kWh", got.Record.EnergyRaw)
	assert.InDelta(t, 95.0, got.ConfidenceScore, 1e-9)
	assert.Equal(t, "fixed energy unit", got.CleaningNotes)
}

func TestParseCleanedBatchLengthMismatch(t *testing.T) {
	batch := []model.RawRecord{{Vendor: "A"}, {Vendor: "B"}}
	_, err := parseCleanedBatch(`[{"vendor":"A"}]`, batch)
	assert.Error(t, err)
}

func TestParseCleanedBatchClampsConfidence(t *testing.T) {
	batch := []model.RawRecord{{Vendor: "A"}}

	cleaned, err := parseCleanedBatch(`[{"vendor":"A","confidence":250}]`, batch)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, cleaned[0].ConfidenceScore, 1e-9)

	cleaned, err = parseCleanedBatch(`[{"vendor":"A","confidence":-5}]`, batch)
	require.NoError(t, err)
	assert.Zero(t, cleaned[0].ConfidenceScore)
}

func TestCleanMarkdownWrapper(t *testing.T) {
	assert.Equal(t, `[]`, cleanMarkdownWrapper("```json\n[]\n```"))
	assert.Equal(t, `[]`, cleanMarkdownWrapper("```\n[]\n```"))
	assert.Equal(t, `[]`, cleanMarkdownWrapper("  []  "))
}

func TestStats(t *testing.T) {
	cleaned := []CleanedRecord{
		{ConfidenceScore: 90},
		{ConfidenceScore: 70},
	}

	stats := Stats(cleaned, 1)
	assert.Equal(t, 3, stats.TotalRecords)
	assert.Equal(t, 2, stats.CleanedRecords)
	assert.Equal(t, 1, stats.Errors)
	assert.InDelta(t, 80.0, stats.AvgConfidence, 1e-9)
}
