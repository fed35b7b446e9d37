// Package executor carries out the planner's strategy: it runs the record
// normalizer and keeps a structured log of every action applied.
package executor

import (
	"fmt"

	"github.com/sustainops/carbon-ranker/internal/model"
	"github.com/sustainops/carbon-ranker/internal/normalize"
)

// LogEntry is one structured line of the execution trail.
type LogEntry struct {
	Stage   string
	Action  string
	Field   string
	Reason  string
	Details string
}

// Result is the outcome of one execution attempt. Success is false only
// when normalization itself blew up, never for low-quality data.
type Result struct {
	Normalized *model.NormalizedRecord
	Log        []LogEntry
	Errors     []string
	Success    bool
}

// Execute applies the strategy to one raw record. Priority actions are
// logged before normalization, fallback actions after; the actions are
// informational annotations since field normalization already handles the
// underlying fixes.
func Execute(raw *model.RawRecord, gridIntensity float64, strategy model.Strategy) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Normalized = nil
			result.Errors = append(result.Errors, fmt.Sprintf("execution error: %v", r))
			result.Log = append(result.Log, LogEntry{
				Stage:   "execution_error",
				Action:  "panic",
				Details: fmt.Sprint(r),
			})
		}
	}()

	result.Log = append(result.Log, LogEntry{
		Stage:   "normalization_start",
		Action:  "begin_normalization",
		Details: fmt.Sprintf("Processing %s for %s", raw.Vendor, raw.Month),
	})

	for _, action := range strategy.PriorityActions {
		result.Log = append(result.Log, applyAction(action))
	}

	normalized := normalize.Record(raw, gridIntensity)
	result.Normalized = normalized
	result.Log = append(result.Log, LogEntry{
		Stage:   "normalization_complete",
		Action:  "normalization_success",
		Details: fmt.Sprintf("Quality score: %.1f", normalized.DataQuality),
	})

	for _, action := range strategy.FallbackActions {
		result.Log = append(result.Log, applyAction(action))
	}

	if violations := Validate(normalized, strategy.ValidationRules); len(violations) > 0 {
		result.Log = append(result.Log, LogEntry{
			Stage:   "validation",
			Action:  "rule_violations",
			Details: fmt.Sprintf("%d rule(s) violated: %v", len(violations), violations),
		})
	}

	result.Success = true
	return result
}

var actionDetails = map[string]string{
	"impute_from_gpu_hours": "Energy will be imputed from GPU hours during normalization",
	"use_default_pue":       "PUE will use default value during normalization",
	"mark_na":               "Field will be marked as N/A in metrics",
	"use_market_average":    "Region will use market average grid intensity",
	"validate_and_fix":      "Field will be validated and corrected during normalization",
	"normalize_units":       "Units will be normalized during parsing",
	"parse_tokens":          "Token format will be parsed during normalization",
}

func applyAction(action model.Action) LogEntry {
	details, ok := actionDetails[action.Name]
	if !ok {
		details = fmt.Sprintf("Applied %s to %s", action.Name, action.Field)
	}
	return LogEntry{
		Stage:   "action_application",
		Action:  action.Name,
		Field:   action.Field,
		Reason:  action.Reason,
		Details: details,
	}
}

// Validate checks normalized output against the strategy's rule list and
// returns the violations. Violations do not fail execution; the critic
// decides what to do with them.
func Validate(data *model.NormalizedRecord, rules []string) []string {
	var violations []string

	for _, rule := range rules {
		switch rule {
		case "utilization_must_be_0_to_100":
			if data.Utilization < 0 || data.Utilization > 100 {
				violations = append(violations, fmt.Sprintf("utilization %g%% not in range 0-100", data.Utilization))
			}
		case "energy_must_be_positive":
			if data.TotalKWh <= 0 {
				violations = append(violations, fmt.Sprintf("energy %g kWh must be positive", data.TotalKWh))
			}
		case "pue_must_be_1_to_3":
			if data.PUEUsed < 1.0 || data.PUEUsed > 3.0 {
				violations = append(violations, fmt.Sprintf("PUE %g not in range 1.0-3.0", data.PUEUsed))
			}
		case "gpu_hours_must_be_positive":
			if data.GPUHours <= 0 {
				violations = append(violations, fmt.Sprintf("GPU hours %g must be positive", data.GPUHours))
			}
		}
	}

	return violations
}
