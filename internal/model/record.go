// Package model defines the core data types shared across the pipeline.
package model

import "time"

// RawRecord is one vendor-reported operational record as ingested, before
// any normalization. All measurement fields are kept as the raw strings the
// vendor sent; they are only interpreted by the normalization pipeline.
type RawRecord struct {
	CreatedAt      time.Time
	Vendor         string
	Month          string // YYYY-MM reporting period
	Region         string
	GPUHoursRaw    string
	EnergyRaw      string
	TokensRaw      string
	APICallsRaw    string
	PUERaw         string
	UtilizationRaw string
	ID             int64
	Processed      bool
}

// NoteKind distinguishes imputed values from outright parse failures.
type NoteKind string

// Field note kinds.
const (
	NoteImputed NoteKind = "imputed"
	NoteError   NoteKind = "error"
)

// FieldNote records why a normalized field deviates from its raw input.
type FieldNote struct {
	Kind NoteKind `json:"kind"`
	Note string   `json:"note"`
}

// ImputationLog maps a field name to the note explaining its substitution
// or parse failure. Fields that normalized cleanly have no entry.
type ImputationLog map[string]FieldNote

// ImputedCount returns the number of imputed (not errored) fields.
func (l ImputationLog) ImputedCount() int {
	n := 0
	for _, note := range l {
		if note.Kind == NoteImputed {
			n++
		}
	}
	return n
}

// ErrorCount returns the number of fields that failed to parse.
func (l ImputationLog) ErrorCount() int {
	n := 0
	for _, note := range l {
		if note.Kind == NoteError {
			n++
		}
	}
	return n
}

// NormalizedRecord is the typed, quality-scored output of one successful
// normalization attempt. Exactly one exists per raw record whose terminal
// attempt produced data; a re-run replaces the prior attempt.
type NormalizedRecord struct {
	CreatedAt     time.Time
	Log           ImputationLog
	Vendor        string
	Month         string
	Region        string
	GPUHours      float64
	Utilization   float64 // 0-100 after normalization
	ITKWh         float64
	TotalKWh      float64 // always ITKWh * PUEUsed
	GridIntensity float64 // g CO2 per kWh applied
	TCO2e         float64
	Tokens        float64
	PUEUsed       float64
	DataQuality   float64 // 0-100
	APICalls      int64
	ID            int64
	RawID         int64
}

// ProcessingLogEntry is one audit-trail line for a pipeline decision.
type ProcessingLogEntry struct {
	CreatedAt  time.Time
	RunID      string
	Vendor     string
	Month      string
	Stage      string // planner, executor, critic, error
	Action     string
	Details    string
	ID         int64
	RetryCount int
}
