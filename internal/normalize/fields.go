// Package normalize converts raw vendor field strings into typed values,
// imputing and flagging whatever cannot be parsed cleanly.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sustainops/carbon-ranker/internal/model"
)

// Normalization constants.
const (
	DefaultPUE      = 1.3
	DefaultGPUPower = 0.4 // kW per GPU
)

var (
	numericPattern    = regexp.MustCompile(`[\d.]+`)
	integerPattern    = regexp.MustCompile(`[\d,]+`)
	tokenPattern      = regexp.MustCompile(`([\d.]+)\s*([kmb]?)`)
	gpuSuffixPattern  = regexp.MustCompile(`(?i)\s*(hrs?|hours?)\s*`)
	tokSuffixPattern  = regexp.MustCompile(`\s*(tokens?|tok)\s*`)
	callSuffixPattern = regexp.MustCompile(`(?i)\s*(calls?|requests?)\s*`)
)

func imputed(format string, args ...any) *model.FieldNote {
	return &model.FieldNote{Kind: model.NoteImputed, Note: fmt.Sprintf(format, args...)}
}

func errored(format string, args ...any) *model.FieldNote {
	return &model.FieldNote{Kind: model.NoteError, Note: fmt.Sprintf(format, args...)}
}

func firstNumber(s string) (float64, bool) {
	match := numericPattern.FindString(s)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// GPUHours strips hour suffixes and extracts the first numeric token.
func GPUHours(raw string) (float64, *model.FieldNote) {
	if strings.TrimSpace(raw) == "" {
		return 0, errored("Missing GPU hours")
	}

	cleaned := gpuSuffixPattern.ReplaceAllString(strings.TrimSpace(raw), "")
	value, ok := firstNumber(cleaned)
	if !ok {
		return 0, errored("No numeric value found in GPU hours")
	}
	return value, nil
}

// Energy converts to kWh, treating MWh as 1000x and bare numbers as kWh
// already. A missing value returns 0 with an imputation note; the actual
// imputation from GPU hours happens at the record level.
func Energy(raw string) (float64, *model.FieldNote) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return 0, imputed("Energy consumption missing")
	}

	lower := strings.ToLower(cleaned)
	value, ok := firstNumber(cleaned)
	if !ok {
		return 0, errored("Invalid energy format")
	}

	if strings.Contains(lower, "mwh") {
		return value * 1000, nil
	}
	// kWh explicitly, or assumed for bare numbers
	return value, nil
}

// Tokens parses counts with optional k/m/b suffixes into absolute values.
func Tokens(raw string) (float64, *model.FieldNote) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if cleaned == "" {
		return 0, imputed("Token count missing")
	}

	cleaned = tokSuffixPattern.ReplaceAllString(cleaned, "")

	match := tokenPattern.FindStringSubmatch(cleaned)
	if match == nil {
		return 0, errored("Invalid token format")
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, errored("Invalid token format")
	}

	switch match[2] {
	case "k":
		return value * 1e3, nil
	case "m":
		return value * 1e6, nil
	case "b":
		return value * 1e9, nil
	default:
		return value, nil
	}
}

// APICalls strips call/request suffixes and thousands separators and
// extracts an integer count.
func APICalls(raw string) (int64, *model.FieldNote) {
	if strings.TrimSpace(raw) == "" {
		return 0, imputed("API calls missing")
	}

	cleaned := callSuffixPattern.ReplaceAllString(strings.TrimSpace(raw), "")
	match := integerPattern.FindString(cleaned)
	if match == "" {
		return 0, errored("Invalid API calls format")
	}

	value, err := strconv.ParseInt(strings.ReplaceAll(match, ",", ""), 10, 64)
	if err != nil {
		return 0, errored("Invalid API calls format")
	}
	return value, nil
}

// PUE extracts the power usage effectiveness factor, substituting the
// default for missing values or anything outside the physical [1.0, 3.0]
// range.
func PUE(raw string) (float64, *model.FieldNote) {
	if strings.TrimSpace(raw) == "" {
		return DefaultPUE, imputed("PUE missing, using default %.1f", DefaultPUE)
	}

	value, ok := firstNumber(strings.TrimSpace(raw))
	if !ok {
		return DefaultPUE, imputed("PUE format invalid, using default %.1f", DefaultPUE)
	}
	if value < 1.0 || value > 3.0 {
		return DefaultPUE, imputed("PUE %g out of range, using default %.1f", value, DefaultPUE)
	}
	return value, nil
}

// Utilization strips percent signs and extracts the percentage, capping
// anything above 100.
func Utilization(raw string) (float64, *model.FieldNote) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), "%", "")
	if cleaned == "" {
		return 0, errored("Utilization missing")
	}

	value, ok := firstNumber(cleaned)
	if !ok {
		return 0, errored("Invalid utilization format")
	}
	if value > 100 {
		return 100, imputed("Utilization %g%% capped at 100%%", value)
	}
	return value, nil
}

// ImputeEnergy derives IT energy from GPU hours and utilization using the
// default per-GPU power draw.
func ImputeEnergy(gpuHours, utilization float64) float64 {
	if gpuHours <= 0 || utilization <= 0 {
		return 0
	}
	return gpuHours * DefaultGPUPower * (utilization / 100)
}

// TotalEnergy applies the PUE factor to IT energy.
func TotalEnergy(itKWh, pue float64) float64 {
	return itKWh * pue
}

// Emissions converts total energy and grid intensity into tonnes of CO2e.
func Emissions(totalKWh, gPerKWh float64) float64 {
	return totalKWh * gPerKWh / 1_000_000
}
