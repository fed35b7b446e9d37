// Package testutil provides shared helpers for tests that need a real
// record store or representative raw records.
package testutil

import (
	"context"
	"testing"

	"github.com/sustainops/carbon-ranker/internal/model"
	"github.com/sustainops/carbon-ranker/internal/service"
	"github.com/sustainops/carbon-ranker/internal/storage"
)

// SetupTestDB creates a migrated in-memory record store and registers its
// cleanup with the test.
func SetupTestDB(t *testing.T) service.Storage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// CleanRawRecord returns a well-formed vendor submission that normalizes
// without imputations.
func CleanRawRecord() model.RawRecord {
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

// MessyRawRecord returns a submission missing energy, PUE, tokens, and
// API calls, with an unknown region. Enough imputations to fall below the
// quality threshold.
func MessyRawRecord() model.RawRecord {
	return model.RawRecord{
		Vendor:         "GreenCompute-Inc",
		Month:          "2024-01",
		Region:         model.UnknownRegion,
		GPUHoursRaw:    "600",
		EnergyRaw:      "",
		TokensRaw:      "",
		APICallsRaw:    "",
		PUERaw:         "",
		UtilizationRaw: "55%",
	}
}

// SeedRawRecords stores the given records and fails the test on error.
func SeedRawRecords(t *testing.T, store service.Storage, records ...model.RawRecord) {
	t.Helper()

	if err := store.SaveRawRecords(context.Background(), records); err != nil {
		t.Fatalf("failed to seed raw records: %v", err)
	}
}
