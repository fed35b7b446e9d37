package model

import "time"

// MonthlyRollup aggregates all normalized records for one (vendor, month).
// The derived intensity metrics are nil when their denominator is zero;
// downstream consumers must render them as N/A, never as zero.
type MonthlyRollup struct {
	CreatedAt      time.Time
	GPer1kTokens   *float64
	GPerCall       *float64
	TokensPerTCO2e *float64
	Vendor         string
	Month          string
	TotalKWh       float64
	TCO2e          float64
	UtilizationAvg float64
	PUEAvg         float64
	DataQuality    float64
	TotalTokens    float64
	TotalAPICalls  int64
	ID             int64
}

// Ranking is one vendor's position in the latest month's Green Score
// ordering, with the rollup metrics copied in for display.
type Ranking struct {
	CreatedAt       time.Time
	GPer1kTokens    *float64
	TokensPerTCO2e  *float64
	Vendor          string
	Month           string
	GreenScore      float64
	TotalKWh        float64
	TCO2e           float64
	UtilizationAvg  float64
	DataQuality     float64
	OverallRank     int
	TCO2eRank       int
	IntensityRank   int
	EfficiencyRank  int
	UtilizationRank int
	ID              int64
}

// GridIntensity is the static carbon intensity of one region's grid.
type GridIntensity struct {
	Region      string
	Description string
	GPerKWh     float64
}

// UnknownRegion is the sentinel region whose grid intensity serves as the
// market-average fallback.
const UnknownRegion = "UNKNOWN"
