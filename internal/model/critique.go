package model

// CritiqueIssue is a problem the critic found in normalized output.
type CritiqueIssue struct {
	Type        string
	Severity    Severity
	Description string
	Details     string
}

// CritiqueResult is the critic's verdict on one execution attempt.
type CritiqueResult struct {
	RetryReason     string
	Issues          []CritiqueIssue
	Recommendations []string
	QualityScore    float64
	Passed          bool
	RetryNeeded     bool
}

// CriticalIssues returns only the critical-severity issues.
func (c CritiqueResult) CriticalIssues() []CritiqueIssue {
	var out []CritiqueIssue
	for _, issue := range c.Issues {
		if issue.Severity == SeverityCritical {
			out = append(out, issue)
		}
	}
	return out
}

// Outcome is the terminal state of one record's trip through the retry loop.
type Outcome string

// Record outcomes. Degraded means the retry budget ran out but a normalized
// result was still accepted; Abandoned means no attempt ever produced data.
const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeDegraded  Outcome = "degraded"
	OutcomeAbandoned Outcome = "abandoned"
)
