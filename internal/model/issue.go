package model

// Severity classifies how badly an issue degrades a record.
type Severity string

// Severity levels, ordered low to critical.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityOrder = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the numeric ordering of the severity; unknown values rank
// below low.
func (s Severity) Rank() int {
	if r, ok := severityOrder[s]; ok {
		return r
	}
	return -1
}

// Max returns the more severe of the two.
func (s Severity) Max(other Severity) Severity {
	if other.Rank() > s.Rank() {
		return other
	}
	return s
}

// Issue is a single data-quality problem found in a raw record.
type Issue struct {
	Type        string
	Field       string
	Value       string
	Severity    Severity
	Description string
}

// DetectionResult is the planner's full assessment of one raw record.
type DetectionResult struct {
	Issues             []Issue
	RecommendedActions []string
	Severity           Severity
	Confidence         float64 // 0.1 - 0.9, lower with more/worse issues
}

// Action is one remediation step in a strategy.
type Action struct {
	Name   string
	Field  string
	Reason string
}

// Strategy partitions the planner's recommended actions by urgency and
// carries the validation rules the executor must check afterwards.
type Strategy struct {
	PriorityActions []Action
	FallbackActions []Action
	ValidationRules []string
	ExpectedQuality float64
}
