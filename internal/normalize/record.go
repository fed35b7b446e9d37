package normalize

import (
	"time"

	"github.com/sustainops/carbon-ranker/internal/model"
)

// QualityPenalty is the data-quality deduction per imputed field; parse
// errors cost double.
const QualityPenalty = 10

// Record normalizes one raw record into a typed NormalizedRecord, applying
// cross-field imputation for missing energy and scoring data quality.
// Normalization itself always produces data; physically impossible values
// are the critic's concern, not a failure here.
func Record(raw *model.RawRecord, gridIntensity float64) *model.NormalizedRecord {
	log := make(model.ImputationLog)
	note := func(field string, n *model.FieldNote) {
		if n != nil {
			log[field] = *n
		}
	}

	gpuHours, n := GPUHours(raw.GPUHoursRaw)
	note("gpu_hours", n)

	energy, n := Energy(raw.EnergyRaw)
	note("energy", n)

	tokens, n := Tokens(raw.TokensRaw)
	note("tokens", n)

	apiCalls, n := APICalls(raw.APICallsRaw)
	note("api_calls", n)

	pue, n := PUE(raw.PUERaw)
	note("pue", n)

	utilization, n := Utilization(raw.UtilizationRaw)
	note("utilization", n)

	itKWh := energy
	if itKWh <= 0 {
		itKWh = ImputeEnergy(gpuHours, utilization)
		note("energy_imputation", imputed("Energy imputed from GPU hours: %.2f kWh", itKWh))
	}

	totalKWh := TotalEnergy(itKWh, pue)
	tco2e := Emissions(totalKWh, gridIntensity)

	return &model.NormalizedRecord{
		RawID:         raw.ID,
		Vendor:        raw.Vendor,
		Month:         raw.Month,
		Region:        raw.Region,
		GPUHours:      gpuHours,
		Utilization:   utilization,
		ITKWh:         itKWh,
		TotalKWh:      totalKWh,
		GridIntensity: gridIntensity,
		TCO2e:         tco2e,
		Tokens:        tokens,
		APICalls:      apiCalls,
		PUEUsed:       pue,
		DataQuality:   Quality(log),
		Log:           log,
		CreatedAt:     time.Now(),
	}
}

// Quality scores a record 0-100: each imputation costs QualityPenalty,
// each parse error costs double.
func Quality(log model.ImputationLog) float64 {
	score := 100.0
	score -= float64(log.ImputedCount()) * QualityPenalty
	score -= float64(log.ErrorCount()) * QualityPenalty * 2
	if score < 0 {
		score = 0
	}
	return score
}
