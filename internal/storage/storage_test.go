package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sustainops/carbon-ranker/internal/common"
	"github.com/sustainops/carbon-ranker/internal/model"
)

func setupStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)

	require.NoError(t, store.Migrate(context.Background()))

	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func sampleRawRecord() model.RawRecord {
	return model.RawRecord{
		Vendor:         "CloudAI-Pro",
		Month:          "2024-01",
		Region:         "US-East",
		GPUHoursRaw:    "1000",
		EnergyRaw:      "400 kWh",
		TokensRaw:      "10B",
		APICallsRaw:    "25000",
		PUERaw:         "1.2",
		UtilizationRaw: "80%",
	}
}

func TestRawRecordLifecycle(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRawRecords(ctx, []model.RawRecord{
		sampleRawRecord(),
		{Vendor: "DataForge-LLC", Month: "2024-01", GPUHoursRaw: "600 hrs"},
	}))

	count, err := store.GetRawRecordCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	unprocessed, err := store.GetUnprocessedRecords(ctx)
	require.NoError(t, err)
	require.Len(t, unprocessed, 2)
	assert.Equal(t, "CloudAI-Pro", unprocessed[0].Vendor)
	assert.Equal(t, "400 kWh", unprocessed[0].EnergyRaw)
	assert.False(t, unprocessed[0].Processed)

	require.NoError(t, store.MarkRawProcessed(ctx, unprocessed[0].ID))

	unprocessed, err = store.GetUnprocessedRecords(ctx)
	require.NoError(t, err)
	require.Len(t, unprocessed, 1)
	assert.Equal(t, "DataForge-LLC", unprocessed[0].Vendor)

	// Count includes processed records.
	count, err = store.GetRawRecordCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSaveRawRecordsValidation(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	err := store.SaveRawRecords(ctx, []model.RawRecord{})
	assert.ErrorIs(t, err, ErrEmptySlice)

	err = store.SaveRawRecords(ctx, []model.RawRecord{{Month: "2024-01"}})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	err = store.SaveRawRecords(ctx, []model.RawRecord{{Vendor: "X", Month: "January"}})
	assert.ErrorIs(t, err, ErrInvalidMonth)
}

func TestMarkRawProcessedUnknownID(t *testing.T) {
	store := setupStorage(t)
	assert.Error(t, store.MarkRawProcessed(context.Background(), 999))
}

func TestGridIntensityLookup(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	tests := []struct {
		region string
		want   float64
	}{
		{region: "US-East", want: 350},
		{region: "US-West", want: 180},
		{region: "CA-QC", want: 25},
		{region: "EU-NO", want: 15},
		{region: "AP-AU", want: 750},
		{region: model.UnknownRegion, want: 400},
		// Unseen regions fall back to the market average.
		{region: "MARS-1", want: 400},
		{region: "", want: 400},
	}

	for _, tt := range tests {
		got, err := store.GetGridIntensity(ctx, tt.region)
		require.NoError(t, err, "region %q", tt.region)
		assert.InDelta(t, tt.want, got, 1e-9, "region %q", tt.region)
	}

	intensities, err := store.GetGridIntensities(ctx)
	require.NoError(t, err)
	assert.Len(t, intensities, 8)
}

func TestNormalizedRoundTrip(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRawRecords(ctx, []model.RawRecord{sampleRawRecord()}))
	raws, err := store.GetUnprocessedRecords(ctx)
	require.NoError(t, err)
	rawID := raws[0].ID

	record := &model.NormalizedRecord{
		RawID:         rawID,
		Vendor:        "CloudAI-Pro",
		Month:         "2024-01",
		Region:        "US-East",
		GPUHours:      1000,
		Utilization:   80,
		ITKWh:         400,
		TotalKWh:      480,
		GridIntensity: 350,
		TCO2e:         0.168,
		Tokens:        1e10,
		APICalls:      25000,
		PUEUsed:       1.2,
		DataQuality:   90,
		Log: model.ImputationLog{
			"pue": {Kind: model.NoteImputed, Note: "PUE missing, using default 1.3"},
		},
	}

	require.NoError(t, store.SaveNormalized(ctx, record))
	assert.Positive(t, record.ID)

	records, err := store.GetNormalizedRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, rawID, got.RawID)
	assert.InDelta(t, 480.0, got.TotalKWh, 1e-9)
	require.Contains(t, got.Log, "pue")
	assert.Equal(t, model.NoteImputed, got.Log["pue"].Kind)
}

func TestSaveNormalizedReplacesPriorAttempt(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRawRecords(ctx, []model.RawRecord{sampleRawRecord()}))
	raws, err := store.GetUnprocessedRecords(ctx)
	require.NoError(t, err)
	rawID := raws[0].ID

	first := &model.NormalizedRecord{
		RawID: rawID, Vendor: "CloudAI-Pro", Month: "2024-01",
		DataQuality: 50, Log: model.ImputationLog{},
	}
	require.NoError(t, store.SaveNormalized(ctx, first))

	second := &model.NormalizedRecord{
		RawID: rawID, Vendor: "CloudAI-Pro", Month: "2024-01",
		DataQuality: 90, Log: model.ImputationLog{},
	}
	require.NoError(t, store.SaveNormalized(ctx, second))

	records, err := store.GetNormalizedRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 90.0, records[0].DataQuality, 1e-9)
}

func TestProcessingLog(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	entries := []model.ProcessingLogEntry{
		{RunID: "run-1", Vendor: "CloudAI-Pro", Month: "2024-01", Stage: "planner", Action: "issues_detected"},
		{RunID: "run-1", Vendor: "CloudAI-Pro", Month: "2024-01", Stage: "critic", Action: "retry_requested", RetryCount: 1},
		{RunID: "run-1", Vendor: "DataForge-LLC", Month: "2024-01", Stage: "error", Action: "record_abandoned"},
	}
	for i := range entries {
		require.NoError(t, store.AppendProcessingLog(ctx, &entries[i]))
		assert.Positive(t, entries[i].ID)
	}

	log, err := store.GetProcessingLog(ctx, "CloudAI-Pro", "2024-01", 10)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "planner", log[0].Stage)

	recent, err := store.GetRecentProcessingLog(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "record_abandoned", recent[0].Action)

	stats, err := store.GetProcessingStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalEntries)
	assert.Equal(t, 1, stats.RetryEntries)
	assert.Equal(t, 1, stats.ErrorEntries)
}

func TestRollupsAndRankings(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	intensity := 15.9
	rollups := []model.MonthlyRollup{
		{Vendor: "CloudAI-Pro", Month: "2024-01", TotalKWh: 1000, TCO2e: 0.35, GPer1kTokens: &intensity},
		{Vendor: "DataForge-LLC", Month: "2024-01", TotalKWh: 800, TCO2e: 0.2},
		{Vendor: "CloudAI-Pro", Month: "2024-02", TotalKWh: 900, TCO2e: 0.3},
	}
	require.NoError(t, store.ReplaceRollups(ctx, rollups))

	all, err := store.GetRollups(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	jan, err := store.GetRollups(ctx, "2024-01")
	require.NoError(t, err)
	assert.Len(t, jan, 2)

	rollup, err := store.GetRollup(ctx, "CloudAI-Pro", "2024-01")
	require.NoError(t, err)
	require.NotNil(t, rollup.GPer1kTokens)
	assert.InDelta(t, 15.9, *rollup.GPer1kTokens, 1e-9)

	// Undefined metrics survive the round trip as nil.
	rollup, err = store.GetRollup(ctx, "DataForge-LLC", "2024-01")
	require.NoError(t, err)
	assert.Nil(t, rollup.GPer1kTokens)
	assert.Nil(t, rollup.TokensPerTCO2e)

	_, err = store.GetRollup(ctx, "Nobody", "2024-01")
	assert.ErrorIs(t, err, common.ErrNotFound)

	month, err := store.LatestRollupMonth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-02", month)

	rankings := []model.Ranking{
		{Vendor: "DataForge-LLC", Month: "2024-02", GreenScore: 70, OverallRank: 1},
		{Vendor: "CloudAI-Pro", Month: "2024-02", GreenScore: 55, OverallRank: 2},
	}
	require.NoError(t, store.ReplaceRankings(ctx, rankings))

	stored, err := store.GetRankings(ctx, "2024-02")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "DataForge-LLC", stored[0].Vendor)

	ranking, err := store.GetRanking(ctx, "CloudAI-Pro", "2024-02")
	require.NoError(t, err)
	assert.Equal(t, 2, ranking.OverallRank)

	_, err = store.GetRanking(ctx, "Nobody", "2024-02")
	assert.ErrorIs(t, err, common.ErrNotFound)

	rankMonth, err := store.LatestRankingMonth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-02", rankMonth)

	// Replace wholesale.
	require.NoError(t, store.ReplaceRankings(ctx, nil))
	rankMonth, err = store.LatestRankingMonth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", rankMonth)
}

func TestResetAllKeepsGridData(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRawRecords(ctx, []model.RawRecord{sampleRawRecord()}))
	entry := model.ProcessingLogEntry{Vendor: "CloudAI-Pro", Month: "2024-01", Stage: "planner", Action: "x"}
	require.NoError(t, store.AppendProcessingLog(ctx, &entry))

	require.NoError(t, store.ResetAll(ctx))

	count, err := store.GetRawRecordCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	stats, err := store.GetProcessingStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEntries)

	// Reference data survives.
	intensity, err := store.GetGridIntensity(ctx, "US-East")
	require.NoError(t, err)
	assert.InDelta(t, 350.0, intensity, 1e-9)
}

func TestMigrateIdempotent(t *testing.T) {
	store := setupStorage(t)
	assert.NoError(t, store.Migrate(context.Background()))
}
