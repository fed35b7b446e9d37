// Package seed generates mock vendor submissions in the messy formats real
// ingests arrive in. Four synthetic vendors cover the spectrum from clean
// reporting to submissions missing entire fields.
package seed

import (
	"fmt"
	"math/rand"

	"github.com/sustainops/carbon-ranker/internal/model"
)

// DefaultRecordsPerVendor matches one record per day of a 30-day month.
const DefaultRecordsPerVendor = 30

// Records generates mock raw records for all four synthetic vendors.
// Passing a seeded rand makes the output reproducible.
func Records(rng *rand.Rand, perVendor int) []model.RawRecord {
	if perVendor <= 0 {
		perVendor = DefaultRecordsPerVendor
	}

	records := make([]model.RawRecord, 0, 4*perVendor)
	records = append(records, vendorA(rng, perVendor)...)
	records = append(records, vendorB(rng, perVendor)...)
	records = append(records, vendorC(rng, perVendor)...)
	records = append(records, vendorD(rng, perVendor)...)
	return records
}

// month assigns roughly 30 records per reporting period, starting with
// January 2024, so larger seeds exercise multi-month rollups.
func month(i, _ int) string {
	m := 1 + i/30
	if m > 12 {
		m = 12
	}
	return fmt.Sprintf("2024-%02d", m)
}

// vendorA reports cleanly but sometimes omits PUE.
func vendorA(rng *rand.Rand, n int) []model.RawRecord {
	records := make([]model.RawRecord, n)
	for i := range records {
		pue := "1.2"
		if rng.Float64() <= 0.3 {
			pue = ""
		}
		records[i] = model.RawRecord{
			Vendor:         "CloudAI-Pro",
			Month:          month(i, n),
			Region:         "US-East",
			GPUHoursRaw:    fmt.Sprintf("%d", 800+rng.Intn(401)),
			EnergyRaw:      fmt.Sprintf("%d kWh", 320+rng.Intn(161)),
			TokensRaw:      fmt.Sprintf("%d.2B", 8+rng.Intn(8)),
			APICallsRaw:    fmt.Sprintf("%d", 10000+rng.Intn(40001)),
			PUERaw:         pue,
			UtilizationRaw: fmt.Sprintf("%d%%", 65+rng.Intn(31)),
		}
	}
	return records
}

// vendorB mixes units, appends "hrs" to GPU hours, and often drops energy.
func vendorB(rng *rand.Rand, n int) []model.RawRecord {
	records := make([]model.RawRecord, n)
	for i := range records {
		energy := ""
		if rng.Float64() > 0.4 {
			if rng.Float64() > 0.7 {
				energy = fmt.Sprintf("%d MWh", 200+rng.Intn(201))
			} else {
				energy = fmt.Sprintf("%d kWh", 200+rng.Intn(201))
			}
		}
		records[i] = model.RawRecord{
			Vendor:         "DataForge-LLC",
			Month:          month(i, n),
			Region:         "US-West",
			GPUHoursRaw:    fmt.Sprintf("%d hrs", 600+rng.Intn(401)),
			EnergyRaw:      energy,
			TokensRaw:      fmt.Sprintf("%dM", 5+rng.Intn(8)),
			APICallsRaw:    fmt.Sprintf("%d", 8000+rng.Intn(17001)),
			PUERaw:         fmt.Sprintf("%.2f", 1.1+rng.Float64()*0.3),
			UtilizationRaw: fmt.Sprintf("%d", 45+rng.Intn(41)),
		}
	}
	return records
}

// vendorC never reports energy or PUE and sometimes has no known region.
func vendorC(rng *rand.Rand, n int) []model.RawRecord {
	records := make([]model.RawRecord, n)
	for i := range records {
		region := "CA-QC"
		if rng.Float64() <= 0.2 {
			region = model.UnknownRegion
		}
		records[i] = model.RawRecord{
			Vendor:         "GreenCompute-Inc",
			Month:          month(i, n),
			Region:         region,
			GPUHoursRaw:    fmt.Sprintf("%d", 400+rng.Intn(401)),
			EnergyRaw:      "",
			TokensRaw:      fmt.Sprintf("%d.5B tokens", 3+rng.Intn(6)),
			APICallsRaw:    fmt.Sprintf("%d calls", 5000+rng.Intn(10001)),
			PUERaw:         "",
			UtilizationRaw: fmt.Sprintf("%d%%", 30+rng.Intn(41)),
		}
	}
	return records
}

// vendorD is a European vendor with consistent, fairly clean reporting.
func vendorD(rng *rand.Rand, n int) []model.RawRecord {
	records := make([]model.RawRecord, n)
	for i := range records {
		records[i] = model.RawRecord{
			Vendor:         "EuroAI-Systems",
			Month:          month(i, n),
			Region:         "EU-NL",
			GPUHoursRaw:    fmt.Sprintf("%d", 1000+rng.Intn(501)),
			EnergyRaw:      fmt.Sprintf("%d kWh", 500+rng.Intn(251)),
			TokensRaw:      fmt.Sprintf("%dB", 10+rng.Intn(11)),
			APICallsRaw:    fmt.Sprintf("%d", 15000+rng.Intn(25001)),
			PUERaw:         fmt.Sprintf("%.1f", 1.3+rng.Float64()*0.3),
			UtilizationRaw: fmt.Sprintf("%d%%", 70+rng.Intn(21)),
		}
	}
	return records
}
