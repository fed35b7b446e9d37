package seed

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sustainops/carbon-ranker/internal/model"
)

func TestRecordsGeneratesAllVendors(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	records := Records(rng, 30)

	require.Len(t, records, 120)

	vendors := make(map[string]int)
	for _, record := range records {
		vendors[record.Vendor]++
		assert.Equal(t, "2024-01", record.Month)
		assert.NotEmpty(t, record.GPUHoursRaw)
	}

	assert.Equal(t, 30, vendors["CloudAI-Pro"])
	assert.Equal(t, 30, vendors["DataForge-LLC"])
	assert.Equal(t, 30, vendors["GreenCompute-Inc"])
	assert.Equal(t, 30, vendors["EuroAI-Systems"])
}

func TestRecordsReproducible(t *testing.T) {
	a := Records(rand.New(rand.NewSource(7)), 10)
	b := Records(rand.New(rand.NewSource(7)), 10)
	assert.Equal(t, a, b)
}

func TestRecordsMultiMonth(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	records := Records(rng, 60)

	months := make(map[string]bool)
	for _, record := range records {
		months[record.Month] = true
	}
	assert.True(t, months["2024-01"])
	assert.True(t, months["2024-02"])
}

func TestVendorShapes(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	records := Records(rng, 30)

	for _, record := range records {
		switch record.Vendor {
		case "GreenCompute-Inc":
			// Always missing energy and PUE.
			assert.Empty(t, record.EnergyRaw)
			assert.Empty(t, record.PUERaw)
			assert.Contains(t, []string{"CA-QC", model.UnknownRegion}, record.Region)
		case "EuroAI-Systems":
			assert.Equal(t, "EU-NL", record.Region)
			assert.NotEmpty(t, record.EnergyRaw)
			assert.NotEmpty(t, record.PUERaw)
		case "DataForge-LLC":
			assert.Contains(t, record.GPUHoursRaw, "hrs")
		}
	}
}
