// Package critic validates normalized output and decides pass, retry, or
// give-up for each execution attempt.
package critic

import (
	"fmt"
	"strings"

	"github.com/sustainops/carbon-ranker/internal/executor"
	"github.com/sustainops/carbon-ranker/internal/model"
)

// Thresholds for the critique checks.
const (
	MaxRetries       = 3
	QualityThreshold = 70.0
)

// Critique inspects one execution attempt. The transition rules run in
// order and the first match wins; an execution failure or missing data
// demands a retry regardless of the retry count, and it is the caller's
// loop that enforces the ceiling in that case.
func Critique(exec executor.Result, data *model.NormalizedRecord, retryCount int) model.CritiqueResult {
	result := model.CritiqueResult{}

	if !exec.Success {
		result.Issues = append(result.Issues, model.CritiqueIssue{
			Type:        "execution_failure",
			Severity:    model.SeverityCritical,
			Description: "Execution phase failed",
			Details:     strings.Join(exec.Errors, "; "),
		})
		result.RetryNeeded = true
		result.RetryReason = "Execution failure"
		return result
	}

	if data == nil {
		result.Issues = append(result.Issues, model.CritiqueIssue{
			Type:        "missing_normalized_data",
			Severity:    model.SeverityCritical,
			Description: "No normalized data produced",
			Details:     "Normalization failed to produce valid data",
		})
		result.RetryNeeded = true
		result.RetryReason = "Missing normalized data"
		return result
	}

	result.QualityScore = data.DataQuality
	result.Issues = append(result.Issues, criticalIssues(data)...)
	result.Issues = append(result.Issues, qualityIssues(data)...)
	result.Issues = append(result.Issues, anomalyIssues(data)...)

	result.RetryNeeded = shouldRetry(result.Issues, data.DataQuality, retryCount)
	if result.RetryNeeded {
		result.RetryReason = retryReason(result.Issues, data.DataQuality)
	}

	result.Recommendations = recommendations(result.Issues)
	result.Passed = !result.RetryNeeded && data.DataQuality >= QualityThreshold

	return result
}

func criticalIssues(data *model.NormalizedRecord) []model.CritiqueIssue {
	var issues []model.CritiqueIssue

	if data.TotalKWh <= 0 {
		issues = append(issues, model.CritiqueIssue{
			Type:        "negative_energy",
			Severity:    model.SeverityCritical,
			Description: "Total energy consumption is zero or negative",
			Details:     fmt.Sprintf("total_kwh: %g", data.TotalKWh),
		})
	}

	if data.Utilization < 0 || data.Utilization > 100 {
		issues = append(issues, model.CritiqueIssue{
			Type:        "invalid_utilization",
			Severity:    model.SeverityCritical,
			Description: "Utilization percentage is invalid",
			Details:     fmt.Sprintf("utilization: %g%%", data.Utilization),
		})
	}

	if data.GPUHours <= 0 {
		issues = append(issues, model.CritiqueIssue{
			Type:        "missing_critical_data",
			Severity:    model.SeverityCritical,
			Description: "GPU hours is missing or invalid",
			Details:     fmt.Sprintf("gpu_hours: %g", data.GPUHours),
		})
	}

	if data.TCO2e < 0 {
		issues = append(issues, model.CritiqueIssue{
			Type:        "calculation_error",
			Severity:    model.SeverityCritical,
			Description: "CO2 emissions calculation error",
			Details:     fmt.Sprintf("tco2e: %g", data.TCO2e),
		})
	}

	return issues
}

func qualityIssues(data *model.NormalizedRecord) []model.CritiqueIssue {
	var issues []model.CritiqueIssue

	if data.DataQuality < QualityThreshold {
		issues = append(issues, model.CritiqueIssue{
			Type:        "low_quality",
			Severity:    model.SeverityHigh,
			Description: "Data quality score below threshold",
			Details:     fmt.Sprintf("quality: %.1f < %.0f", data.DataQuality, QualityThreshold),
		})
	}

	if imputations := data.Log.ImputedCount(); imputations > 3 {
		issues = append(issues, model.CritiqueIssue{
			Type:        "excessive_imputations",
			Severity:    model.SeverityMedium,
			Description: "Too many imputed values",
			Details:     fmt.Sprintf("imputations: %d", imputations),
		})
	}

	return issues
}

// anomalyIssues flags unusual but plausible values. Informational only;
// none of these alone trigger a retry.
func anomalyIssues(data *model.NormalizedRecord) []model.CritiqueIssue {
	var issues []model.CritiqueIssue

	if data.Utilization > 95 {
		issues = append(issues, model.CritiqueIssue{
			Type:        "high_utilization",
			Severity:    model.SeverityLow,
			Description: "Unusually high utilization",
			Details:     fmt.Sprintf("utilization: %g%%", data.Utilization),
		})
	}

	if data.PUEUsed > 2.0 {
		issues = append(issues, model.CritiqueIssue{
			Type:        "high_pue",
			Severity:    model.SeverityMedium,
			Description: "Unusually high PUE",
			Details:     fmt.Sprintf("pue: %g", data.PUEUsed),
		})
	}

	if data.GridIntensity > 800 {
		issues = append(issues, model.CritiqueIssue{
			Type:        "high_intensity",
			Severity:    model.SeverityLow,
			Description: "High grid carbon intensity",
			Details:     fmt.Sprintf("intensity: %g g/kWh", data.GridIntensity),
		})
	}

	return issues
}

func shouldRetry(issues []model.CritiqueIssue, quality float64, retryCount int) bool {
	if retryCount >= MaxRetries {
		return false
	}

	highCount := 0
	for _, issue := range issues {
		if issue.Severity == model.SeverityCritical {
			return true
		}
		if issue.Severity == model.SeverityHigh {
			highCount++
		}
	}

	if quality < QualityThreshold {
		return true
	}

	return highCount > 2
}

func retryReason(issues []model.CritiqueIssue, quality float64) string {
	var critical, high []string
	for _, issue := range issues {
		switch issue.Severity {
		case model.SeverityCritical:
			critical = append(critical, issue.Type)
		case model.SeverityHigh:
			high = append(high, issue.Type)
		}
	}

	if len(critical) > 0 {
		return fmt.Sprintf("Critical issues: %v", critical)
	}
	if quality < QualityThreshold {
		return fmt.Sprintf("Quality score %.1f below threshold %.0f", quality, QualityThreshold)
	}
	if len(high) > 0 {
		return fmt.Sprintf("High severity issues: %v", high)
	}
	return "Unknown retry reason"
}

var issueRecommendations = map[string]string{
	"negative_energy":       "Check GPU hours and utilization values",
	"invalid_utilization":   "Validate utilization percentage format",
	"missing_critical_data": "Ensure GPU hours are properly parsed",
	"low_quality":           "Review imputation strategy",
	"excessive_imputations": "Consider manual data review",
	"high_pue":              "Verify PUE value accuracy",
}

func recommendations(issues []model.CritiqueIssue) []string {
	var out []string
	for _, issue := range issues {
		if rec, ok := issueRecommendations[issue.Type]; ok {
			out = append(out, rec)
		}
	}
	return out
}
