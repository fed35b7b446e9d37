package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sustainops/carbon-ranker/internal/cleaner"
	"github.com/sustainops/carbon-ranker/internal/common"
	"github.com/sustainops/carbon-ranker/internal/model"
	"github.com/sustainops/carbon-ranker/internal/service"
	"github.com/sustainops/carbon-ranker/internal/testutil"
)

func TestProcessAllNoRecords(t *testing.T) {
	store := testutil.SetupTestDB(t)
	eng := New(store)

	_, err := eng.ProcessAll(context.Background())
	assert.ErrorIs(t, err, common.ErrNoRawRecords)
}

func TestProcessAllCleanRecordSucceeds(t *testing.T) {
	store := testutil.SetupTestDB(t)
	testutil.SeedRawRecords(t, store, testutil.CleanRawRecord())

	eng := New(store)
	stats, err := eng.ProcessAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Zero(t, stats.Degraded)
	assert.Zero(t, stats.Abandoned)
	assert.Zero(t, stats.Retries)

	ctx := context.Background()
	records, err := store.GetNormalizedRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 100.0, records[0].DataQuality, 1e-9)
	// US-East grid at 350 g/kWh over 480 kWh total.
	assert.InDelta(t, 0.168, records[0].TCO2e, 1e-9)

	unprocessed, err := store.GetUnprocessedRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, unprocessed)
}

func TestProcessAllMessyRecordDegradesAfterRetries(t *testing.T) {
	store := testutil.SetupTestDB(t)
	testutil.SeedRawRecords(t, store, testutil.MessyRawRecord())

	eng := New(store)
	stats, err := eng.ProcessAll(context.Background())
	require.NoError(t, err)

	// Missing energy and PUE push quality below the threshold; the
	// retry budget runs out and the best attempt is kept fail-open.
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Degraded)
	assert.Equal(t, 3, stats.Retries)

	ctx := context.Background()
	records, err := store.GetNormalizedRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Less(t, records[0].DataQuality, 70.0)
	// Unknown region resolved to the market average.
	assert.InDelta(t, 400.0, records[0].GridIntensity, 1e-9)
}

func TestProcessAllWritesAuditTrail(t *testing.T) {
	store := testutil.SetupTestDB(t)
	testutil.SeedRawRecords(t, store, testutil.CleanRawRecord())

	eng := New(store)
	_, err := eng.ProcessAll(context.Background())
	require.NoError(t, err)

	log, err := store.GetProcessingLog(context.Background(), "CloudAI-Pro", "2024-01", 50)
	require.NoError(t, err)
	require.NotEmpty(t, log)

	stages := make(map[string]bool)
	for _, entry := range log {
		stages[entry.Stage] = true
		assert.NotEmpty(t, entry.RunID)
	}
	assert.True(t, stages["planner"])
	assert.True(t, stages["executor"])
	assert.True(t, stages["critic"])
}

func TestProcessAllBuildsRollupsAndRankings(t *testing.T) {
	store := testutil.SetupTestDB(t)
	clean := testutil.CleanRawRecord()
	other := testutil.CleanRawRecord()
	other.Vendor = "EuroAI-Systems"
	other.Region = "EU-NL"
	testutil.SeedRawRecords(t, store, clean, other)

	eng := New(store, WithConcurrency(2))
	_, err := eng.ProcessAll(context.Background())
	require.NoError(t, err)

	ctx := context.Background()
	rollups, err := store.GetRollups(ctx, "2024-01")
	require.NoError(t, err)
	assert.Len(t, rollups, 2)

	rankings, err := store.GetRankings(ctx, "2024-01")
	require.NoError(t, err)
	require.Len(t, rankings, 2)
	assert.Equal(t, 1, rankings[0].OverallRank)
	assert.Equal(t, 2, rankings[1].OverallRank)
	// Same energy, dirtier grid loses.
	assert.Equal(t, "CloudAI-Pro", rankings[0].Vendor)
}

func TestProcessAllRanksLatestMonthOnly(t *testing.T) {
	store := testutil.SetupTestDB(t)
	older := testutil.CleanRawRecord()
	older.Month = "2024-01"
	newer := testutil.CleanRawRecord()
	newer.Vendor = "EuroAI-Systems"
	newer.Month = "2024-02"
	testutil.SeedRawRecords(t, store, older, newer)

	eng := New(store)
	_, err := eng.ProcessAll(context.Background())
	require.NoError(t, err)

	ctx := context.Background()

	// Rollups cover every month.
	rollups, err := store.GetRollups(ctx, "")
	require.NoError(t, err)
	assert.Len(t, rollups, 2)

	// Rankings cover only the latest.
	month, err := store.LatestRankingMonth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-02", month)

	rankings, err := store.GetRankings(ctx, "")
	require.NoError(t, err)
	require.Len(t, rankings, 1)
	assert.Equal(t, "EuroAI-Systems", rankings[0].Vendor)
}

// flakySaveStore fails SaveNormalized for one vendor to simulate a store
// write error mid-batch.
type flakySaveStore struct {
	service.Storage
	failVendor string
}

func (s *flakySaveStore) SaveNormalized(ctx context.Context, record *model.NormalizedRecord) error {
	if record.Vendor == s.failVendor {
		return errors.New("disk I/O error")
	}
	return s.Storage.SaveNormalized(ctx, record)
}

func TestProcessAllIsolatesStorageFailure(t *testing.T) {
	store := testutil.SetupTestDB(t)
	good := testutil.CleanRawRecord()
	bad := testutil.CleanRawRecord()
	bad.Vendor = "EuroAI-Systems"
	bad.Region = "EU-NL"
	testutil.SeedRawRecords(t, store, good, bad)

	eng := New(&flakySaveStore{Storage: store, failVendor: "EuroAI-Systems"}, WithConcurrency(1))
	stats, err := eng.ProcessAll(context.Background())
	require.NoError(t, err)

	// One record's write failure does not abort the batch.
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, 1, stats.Abandoned)

	ctx := context.Background()
	records, err := store.GetNormalizedRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "CloudAI-Pro", records[0].Vendor)

	// The failed record stays unprocessed for a later run.
	unprocessed, err := store.GetUnprocessedRecords(ctx)
	require.NoError(t, err)
	require.Len(t, unprocessed, 1)
	assert.Equal(t, "EuroAI-Systems", unprocessed[0].Vendor)
}

func TestProcessAllWithMockCleaner(t *testing.T) {
	store := testutil.SetupTestDB(t)
	messy := testutil.CleanRawRecord()
	messy.EnergyRaw = "  400 kWh  "
	messy.UtilizationRaw = " 80% "
	testutil.SeedRawRecords(t, store, messy)

	mock := cleaner.NewMockCleaner()
	eng := New(store, WithCleaner(mock))

	stats, err := eng.ProcessAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, mock.CleanCalls)
	assert.Equal(t, 1, stats.Succeeded)
}

func TestProcessAllProgressCallback(t *testing.T) {
	store := testutil.SetupTestDB(t)
	testutil.SeedRawRecords(t, store,
		testutil.CleanRawRecord(), testutil.MessyRawRecord())

	done := 0
	eng := New(store, WithProgress(func() { done++ }), WithConcurrency(1))

	_, err := eng.ProcessAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, done)
}

func TestResolveOutcome(t *testing.T) {
	record := &model.NormalizedRecord{DataQuality: 80}

	assert.Equal(t, model.OutcomeAbandoned, resolveOutcome(nil, model.CritiqueResult{}))
	assert.Equal(t, model.OutcomeSucceeded, resolveOutcome(record, model.CritiqueResult{Passed: true}))
	assert.Equal(t, model.OutcomeDegraded, resolveOutcome(record, model.CritiqueResult{Passed: false}))
}
