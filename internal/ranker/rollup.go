// Package ranker aggregates normalized records into monthly per-vendor
// rollups and computes the composite Green Score ranking.
package ranker

import (
	"sort"
	"time"

	"github.com/sustainops/carbon-ranker/internal/model"
)

// BuildRollups groups normalized records by (vendor, month) and aggregates
// each group. Derived intensities stay nil when their denominator is zero.
func BuildRollups(records []model.NormalizedRecord) []model.MonthlyRollup {
	type key struct {
		vendor string
		month  string
	}

	groups := make(map[key][]model.NormalizedRecord)
	var order []key
	for _, record := range records {
		k := key{vendor: record.Vendor, month: record.Month}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], record)
	}

	// Stable output order regardless of input ordering.
	sort.Slice(order, func(i, j int) bool {
		if order[i].month != order[j].month {
			return order[i].month < order[j].month
		}
		return order[i].vendor < order[j].vendor
	})

	rollups := make([]model.MonthlyRollup, 0, len(order))
	for _, k := range order {
		rollups = append(rollups, buildRollup(k.vendor, k.month, groups[k]))
	}
	return rollups
}

func buildRollup(vendor, month string, records []model.NormalizedRecord) model.MonthlyRollup {
	rollup := model.MonthlyRollup{
		Vendor:    vendor,
		Month:     month,
		CreatedAt: time.Now(),
	}

	var utilSum, pueSum, qualitySum float64
	for _, r := range records {
		rollup.TotalKWh += r.TotalKWh
		rollup.TCO2e += r.TCO2e
		rollup.TotalTokens += r.Tokens
		rollup.TotalAPICalls += r.APICalls
		utilSum += r.Utilization
		pueSum += r.PUEUsed
		qualitySum += r.DataQuality
	}

	n := float64(len(records))
	rollup.UtilizationAvg = utilSum / n
	rollup.PUEAvg = pueSum / n
	rollup.DataQuality = qualitySum / n

	if rollup.TotalTokens > 0 {
		v := rollup.TCO2e * 1_000_000 / (rollup.TotalTokens / 1000)
		rollup.GPer1kTokens = &v
	}
	if rollup.TotalAPICalls > 0 {
		v := rollup.TCO2e * 1_000_000 / float64(rollup.TotalAPICalls)
		rollup.GPerCall = &v
	}
	if rollup.TCO2e > 0 {
		v := rollup.TotalTokens / rollup.TCO2e
		rollup.TokensPerTCO2e = &v
	}

	return rollup
}

// LatestMonth returns the most recent month present in the rollups, or ""
// when there are none. Months are YYYY-MM so string order is time order.
func LatestMonth(rollups []model.MonthlyRollup) string {
	latest := ""
	for _, r := range rollups {
		if r.Month > latest {
			latest = r.Month
		}
	}
	return latest
}
