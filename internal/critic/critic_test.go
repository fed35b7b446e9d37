package critic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sustainops/carbon-ranker/internal/executor"
	"github.com/sustainops/carbon-ranker/internal/model"
)

func goodRecord() *model.NormalizedRecord {
	return &model.NormalizedRecord{
		Vendor:        "CloudAI-Pro",
		Month:         "2024-01",
		GPUHours:      1000,
		Utilization:   80,
		ITKWh:         400,
		TotalKWh:      480,
		GridIntensity: 350,
		TCO2e:         0.168,
		Tokens:        1e10,
		APICalls:      25000,
		PUEUsed:       1.2,
		DataQuality:   100,
		Log:           model.ImputationLog{},
	}
}

func successResult() executor.Result {
	return executor.Result{Success: true}
}

func TestCritiquePassesGoodRecord(t *testing.T) {
	result := Critique(successResult(), goodRecord(), 0)

	assert.True(t, result.Passed)
	assert.False(t, result.RetryNeeded)
	assert.Empty(t, result.CriticalIssues())
	assert.InDelta(t, 100.0, result.QualityScore, 1e-9)
}

func TestCritiqueExecutionFailureAlwaysRetries(t *testing.T) {
	exec := executor.Result{Success: false, Errors: []string{"boom"}}

	// Even past the retry ceiling the critic demands a retry; enforcing
	// the budget is the caller's job.
	for _, retryCount := range []int{0, MaxRetries, MaxRetries + 5} {
		result := Critique(exec, nil, retryCount)
		assert.True(t, result.RetryNeeded, "retryCount=%d", retryCount)
		assert.False(t, result.Passed)
		require.Len(t, result.Issues, 1)
		assert.Equal(t, "execution_failure", result.Issues[0].Type)
	}
}

func TestCritiqueMissingDataRetries(t *testing.T) {
	result := Critique(successResult(), nil, 0)

	assert.True(t, result.RetryNeeded)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "missing_normalized_data", result.Issues[0].Type)
}

func TestCritiqueCriticalChecks(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(r *model.NormalizedRecord)
		wantType string
	}{
		{
			name:     "zero energy",
			mutate:   func(r *model.NormalizedRecord) { r.TotalKWh = 0 },
			wantType: "negative_energy",
		},
		{
			name:     "utilization above 100",
			mutate:   func(r *model.NormalizedRecord) { r.Utilization = 130 },
			wantType: "invalid_utilization",
		},
		{
			name:     "missing gpu hours",
			mutate:   func(r *model.NormalizedRecord) { r.GPUHours = 0 },
			wantType: "missing_critical_data",
		},
		{
			name:     "negative emissions",
			mutate:   func(r *model.NormalizedRecord) { r.TCO2e = -0.1 },
			wantType: "calculation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := goodRecord()
			tt.mutate(record)

			result := Critique(successResult(), record, 0)

			assert.True(t, result.RetryNeeded)
			assert.False(t, result.Passed)

			critical := result.CriticalIssues()
			require.NotEmpty(t, critical)
			assert.Equal(t, tt.wantType, critical[0].Type)
		})
	}
}

func TestCritiqueLowQualityRetriesUntilBudgetExhausted(t *testing.T) {
	record := goodRecord()
	record.DataQuality = 50

	// Retries while the budget lasts.
	for retryCount := 0; retryCount < MaxRetries; retryCount++ {
		result := Critique(successResult(), record, retryCount)
		assert.True(t, result.RetryNeeded, "retryCount=%d", retryCount)
		assert.NotEmpty(t, result.RetryReason)
	}

	// At the ceiling the record is accepted fail-open, but not passed.
	final := Critique(successResult(), record, MaxRetries)
	assert.False(t, final.RetryNeeded)
	assert.False(t, final.Passed)
}

func TestCritiqueAnomaliesAreInformational(t *testing.T) {
	record := goodRecord()
	record.Utilization = 97
	record.PUEUsed = 2.5
	record.GridIntensity = 850

	result := Critique(successResult(), record, 0)

	// Anomalies alone never trigger a retry.
	assert.False(t, result.RetryNeeded)
	assert.True(t, result.Passed)

	types := make([]string, len(result.Issues))
	for i, issue := range result.Issues {
		types[i] = issue.Type
	}
	assert.ElementsMatch(t, []string{"high_utilization", "high_pue", "high_intensity"}, types)
}

func TestCritiqueExcessiveImputations(t *testing.T) {
	record := goodRecord()
	record.DataQuality = 70
	record.Log = model.ImputationLog{
		"energy":            {Kind: model.NoteImputed, Note: "x"},
		"pue":               {Kind: model.NoteImputed, Note: "x"},
		"tokens":            {Kind: model.NoteImputed, Note: "x"},
		"energy_imputation": {Kind: model.NoteImputed, Note: "x"},
	}

	result := Critique(successResult(), record, 0)

	var found bool
	for _, issue := range result.Issues {
		if issue.Type == "excessive_imputations" {
			found = true
		}
	}
	assert.True(t, found)
	// Medium-severity issues alone do not force a retry.
	assert.False(t, result.RetryNeeded)
	assert.True(t, result.Passed)
}

func TestCritiqueRecommendations(t *testing.T) {
	record := goodRecord()
	record.TotalKWh = 0

	result := Critique(successResult(), record, 0)
	assert.Contains(t, result.Recommendations, "Check GPU hours and utilization values")
}

func TestRetryCeilingFourAttemptsTotal(t *testing.T) {
	record := goodRecord()
	record.DataQuality = 10

	attempts := 0
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		attempts++
		result := Critique(successResult(), record, attempt)
		if !result.RetryNeeded {
			break
		}
	}
	assert.Equal(t, MaxRetries+1, attempts)
}
