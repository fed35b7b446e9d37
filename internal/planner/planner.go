// Package planner detects data-quality issues in raw vendor records and
// plans the remediation strategy the executor will follow.
package planner

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sustainops/carbon-ranker/internal/model"
)

var fuzzyTokenPattern = regexp.MustCompile(`[0-9.]+[kKmMbB]`)

// issueRule is one row of the detection table. Every rule is evaluated
// against every record; detection never short-circuits.
type issueRule struct {
	detect   func(r *model.RawRecord) (string, bool)
	issue    string
	field    string
	severity model.Severity
	action   string
	describe func(value string) string
}

var issueRules = []issueRule{
	{
		issue:    "missing_energy",
		field:    "energy_raw",
		severity: model.SeverityHigh,
		action:   "impute_from_gpu_hours",
		detect:   func(r *model.RawRecord) (string, bool) { return r.EnergyRaw, isBlank(r.EnergyRaw) },
		describe: func(string) string { return "Missing energy_raw" },
	},
	{
		issue:    "missing_pue",
		field:    "pue_raw",
		severity: model.SeverityMedium,
		action:   "use_default_pue",
		detect:   func(r *model.RawRecord) (string, bool) { return r.PUERaw, isBlank(r.PUERaw) },
		describe: func(string) string { return "Missing pue_raw" },
	},
	{
		issue:    "missing_tokens",
		field:    "tokens_raw",
		severity: model.SeverityMedium,
		action:   "mark_na",
		detect:   func(r *model.RawRecord) (string, bool) { return r.TokensRaw, isBlank(r.TokensRaw) },
		describe: func(string) string { return "Missing tokens_raw" },
	},
	{
		issue:    "unknown_region",
		field:    "region",
		severity: model.SeverityMedium,
		action:   "use_market_average",
		detect: func(r *model.RawRecord) (string, bool) {
			return r.Region, r.Region == model.UnknownRegion
		},
		describe: func(value string) string { return fmt.Sprintf("Unknown region: %s", value) },
	},
	{
		issue:    "invalid_utilization",
		field:    "utilization_raw",
		severity: model.SeverityHigh,
		action:   "validate_and_fix",
		detect: func(r *model.RawRecord) (string, bool) {
			return r.UtilizationRaw, !isValidUtilization(r.UtilizationRaw)
		},
		describe: func(value string) string { return fmt.Sprintf("Invalid utilization format: %s", value) },
	},
	{
		issue:    "mixed_units",
		field:    "energy_raw",
		severity: model.SeverityLow,
		action:   "normalize_units",
		detect: func(r *model.RawRecord) (string, bool) {
			return r.EnergyRaw, strings.Contains(r.EnergyRaw, "MWh") && strings.Contains(r.EnergyRaw, "kWh")
		},
		describe: func(string) string { return "Mixed energy units detected" },
	},
	{
		issue:    "fuzzy_tokens",
		field:    "tokens_raw",
		severity: model.SeverityLow,
		action:   "parse_tokens",
		detect: func(r *model.RawRecord) (string, bool) {
			return r.TokensRaw, r.TokensRaw != "" && fuzzyTokenPattern.MatchString(r.TokensRaw)
		},
		describe: func(value string) string { return fmt.Sprintf("Fuzzy token format: %s", value) },
	},
}

// DetectIssues scans a raw record against the full detection table and
// scores the result.
func DetectIssues(record *model.RawRecord) model.DetectionResult {
	var issues []model.Issue
	var actions []string
	seen := make(map[string]bool)
	maxSeverity := model.SeverityLow

	for _, rule := range issueRules {
		value, hit := rule.detect(record)
		if !hit {
			continue
		}

		issues = append(issues, model.Issue{
			Type:        rule.issue,
			Field:       rule.field,
			Value:       value,
			Severity:    rule.severity,
			Description: rule.describe(value),
		})
		if !seen[rule.action] {
			seen[rule.action] = true
			actions = append(actions, rule.action)
		}
		maxSeverity = maxSeverity.Max(rule.severity)
	}

	return model.DetectionResult{
		Issues:             issues,
		Severity:           maxSeverity,
		RecommendedActions: actions,
		Confidence:         detectionConfidence(len(issues), maxSeverity),
	}
}

// detectionConfidence drops from a 0.9 base as issues accumulate and the
// worst severity rises, floored at 0.1.
func detectionConfidence(issueCount int, severity model.Severity) float64 {
	severityPenalty := map[model.Severity]float64{
		model.SeverityLow:      0.0,
		model.SeverityMedium:   0.1,
		model.SeverityHigh:     0.2,
		model.SeverityCritical: 0.3,
	}[severity]

	confidence := 0.9 - float64(issueCount)*0.1 - severityPenalty
	if confidence < 0.1 {
		confidence = 0.1
	}
	return confidence
}

// validationRules is the fixed rule set applied to every record regardless
// of which issues were detected.
var validationRules = []string{
	"utilization_must_be_0_to_100",
	"energy_must_be_positive",
	"pue_must_be_1_to_3",
	"gpu_hours_must_be_positive",
}

// PlanStrategy partitions the detected issues into priority and fallback
// actions and estimates the resulting quality.
func PlanStrategy(detection model.DetectionResult) model.Strategy {
	strategy := model.Strategy{
		ValidationRules: validationRules,
	}

	for _, issue := range detection.Issues {
		action := model.Action{
			Name:   actionForIssue(issue.Type),
			Field:  issue.Field,
			Reason: issue.Description,
		}
		if issue.Severity == model.SeverityCritical || issue.Severity == model.SeverityHigh {
			strategy.PriorityActions = append(strategy.PriorityActions, action)
		} else {
			strategy.FallbackActions = append(strategy.FallbackActions, action)
		}
	}

	strategy.ExpectedQuality = 100 - float64(len(detection.Issues))*10
	if strategy.ExpectedQuality < 0 {
		strategy.ExpectedQuality = 0
	}

	return strategy
}

var issueActions = map[string]string{
	"missing_energy":      "impute_from_gpu_hours",
	"missing_pue":         "use_default_pue",
	"missing_tokens":      "mark_na",
	"unknown_region":      "use_market_average",
	"invalid_utilization": "validate_and_fix",
	"mixed_units":         "normalize_units",
	"fuzzy_tokens":        "parse_tokens",
}

func actionForIssue(issueType string) string {
	if action, ok := issueActions[issueType]; ok {
		return action
	}
	return "manual_review"
}

func isBlank(value string) bool {
	return strings.TrimSpace(value) == ""
}

// isValidUtilization accepts a non-empty string that, after stripping any
// percent signs, parses as a float in [0, 100].
func isValidUtilization(value string) bool {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), "%", "")
	if cleaned == "" {
		return false
	}
	util, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return false
	}
	return util >= 0 && util <= 100
}
