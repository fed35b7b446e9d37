package ranker

import (
	"sort"
	"time"

	"github.com/sustainops/carbon-ranker/internal/model"
)

// Green Score weights.
const (
	weightEmissions   = 0.4
	weightIntensity   = 0.4
	weightUtilization = 0.2
)

// BuildRankings scores and ranks the given rollups, which must all belong
// to the ranked month (the caller filters to the latest month). Prior
// rankings for that month are expected to be replaced wholesale.
func BuildRankings(rollups []model.MonthlyRollup) []model.Ranking {
	if len(rollups) == 0 {
		return nil
	}

	maxTCO2e := 0.0
	maxIntensity := 0.0
	for _, r := range rollups {
		if r.TCO2e > maxTCO2e {
			maxTCO2e = r.TCO2e
		}
		if r.GPer1kTokens != nil && *r.GPer1kTokens > maxIntensity {
			maxIntensity = *r.GPer1kTokens
		}
	}

	rankings := make([]model.Ranking, 0, len(rollups))
	for _, rollup := range rollups {
		rankings = append(rankings, model.Ranking{
			Vendor:         rollup.Vendor,
			Month:          rollup.Month,
			GreenScore:     greenScore(rollup, maxTCO2e, maxIntensity),
			TotalKWh:       rollup.TotalKWh,
			TCO2e:          rollup.TCO2e,
			GPer1kTokens:   rollup.GPer1kTokens,
			TokensPerTCO2e: rollup.TokensPerTCO2e,
			UtilizationAvg: rollup.UtilizationAvg,
			DataQuality:    rollup.DataQuality,
			CreatedAt:      time.Now(),
		})
	}

	// Overall rank: score descending; ties broken by lower emissions, then
	// vendor name, so re-runs are deterministic.
	sort.SliceStable(rankings, func(i, j int) bool {
		if rankings[i].GreenScore != rankings[j].GreenScore {
			return rankings[i].GreenScore > rankings[j].GreenScore
		}
		if rankings[i].TCO2e != rankings[j].TCO2e {
			return rankings[i].TCO2e < rankings[j].TCO2e
		}
		return rankings[i].Vendor < rankings[j].Vendor
	})
	for i := range rankings {
		rankings[i].OverallRank = i + 1
	}

	assignSubRanks(rankings, rollups)

	return rankings
}

// greenScore is the weighted composite of normalized emissions, carbon
// intensity per token, and utilization, clamped to [0, 100].
func greenScore(rollup model.MonthlyRollup, maxTCO2e, maxIntensity float64) float64 {
	tco2eScore := 0.0
	if maxTCO2e > 0 {
		tco2eScore = 1 - rollup.TCO2e/maxTCO2e
	}

	intensityScore := 0.0
	if rollup.GPer1kTokens != nil && maxIntensity > 0 {
		intensityScore = 1 - *rollup.GPer1kTokens/maxIntensity
	}

	utilizationScore := rollup.UtilizationAvg / 100

	score := 100 * (weightEmissions*tco2eScore + weightIntensity*intensityScore + weightUtilization*utilizationScore)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// assignSubRanks computes competition-style ranks per metric: 1 plus the
// number of vendors strictly better, skipping comparisons where either
// value is undefined. Tied vendors share a rank.
func assignSubRanks(rankings []model.Ranking, rollups []model.MonthlyRollup) {
	byVendor := make(map[string]model.MonthlyRollup, len(rollups))
	for _, r := range rollups {
		byVendor[r.Vendor] = r
	}

	for i := range rankings {
		mine := byVendor[rankings[i].Vendor]

		tco2eRank, intensityRank, efficiencyRank, utilizationRank := 1, 1, 1, 1
		for _, other := range rollups {
			if other.Vendor == mine.Vendor {
				continue
			}
			if other.TCO2e < mine.TCO2e {
				tco2eRank++
			}
			if other.GPer1kTokens != nil && mine.GPer1kTokens != nil && *other.GPer1kTokens < *mine.GPer1kTokens {
				intensityRank++
			}
			if other.TokensPerTCO2e != nil && mine.TokensPerTCO2e != nil && *other.TokensPerTCO2e > *mine.TokensPerTCO2e {
				efficiencyRank++
			}
			if other.UtilizationAvg > mine.UtilizationAvg {
				utilizationRank++
			}
		}

		rankings[i].TCO2eRank = tco2eRank
		rankings[i].IntensityRank = intensityRank
		rankings[i].EfficiencyRank = efficiencyRank
		rankings[i].UtilizationRank = utilizationRank
	}
}
