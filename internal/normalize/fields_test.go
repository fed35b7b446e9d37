package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sustainops/carbon-ranker/internal/model"
)

func TestGPUHours(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     float64
		wantKind model.NoteKind
	}{
		{name: "bare number", raw: "1000", want: 1000},
		{name: "hrs suffix", raw: "850 hrs", want: 850},
		{name: "hours suffix", raw: "850 hours", want: 850},
		{name: "decimal", raw: "1023.5", want: 1023.5},
		{name: "missing", raw: "", want: 0, wantKind: model.NoteError},
		{name: "whitespace only", raw: "   ", want: 0, wantKind: model.NoteError},
		{name: "garbage", raw: "n/a hrs", want: 0, wantKind: model.NoteError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, note := GPUHours(tt.raw)
			assert.InDelta(t, tt.want, got, 1e-9)
			if tt.wantKind == "" {
				assert.Nil(t, note)
			} else {
				require.NotNil(t, note)
				assert.Equal(t, tt.wantKind, note.Kind)
			}
		})
	}
}

func TestEnergy(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     float64
		wantKind model.NoteKind
	}{
		{name: "kwh", raw: "400 kWh", want: 400},
		{name: "mwh converts", raw: "2 MWh", want: 2000},
		{name: "mwh lowercase", raw: "1.5 mwh", want: 1500},
		{name: "bare number assumed kwh", raw: "350", want: 350},
		{name: "missing is imputed later", raw: "", want: 0, wantKind: model.NoteImputed},
		{name: "garbage", raw: "unknown", want: 0, wantKind: model.NoteError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, note := Energy(tt.raw)
			assert.InDelta(t, tt.want, got, 1e-9)
			if tt.wantKind == "" {
				assert.Nil(t, note)
			} else {
				require.NotNil(t, note)
				assert.Equal(t, tt.wantKind, note.Kind)
			}
		})
	}
}

func TestEnergyAlreadyKWhNotRescaled(t *testing.T) {
	// A value already in kWh must pass through unchanged no matter how
	// large it is.
	got, note := Energy("250000 kWh")
	assert.Nil(t, note)
	assert.InDelta(t, 250000.0, got, 1e-9)
}

func TestTokens(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     float64
		wantKind model.NoteKind
	}{
		{name: "millions", raw: "5M", want: 5e6},
		{name: "billions decimal", raw: "2.5B", want: 2.5e9},
		{name: "thousands", raw: "750k", want: 750000},
		{name: "bare number", raw: "1200", want: 1200},
		{name: "with tokens suffix", raw: "3.5B tokens", want: 3.5e9},
		{name: "uppercase K", raw: "750K", want: 750000},
		{name: "missing", raw: "", want: 0, wantKind: model.NoteImputed},
		{name: "garbage", raw: "lots", want: 0, wantKind: model.NoteError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, note := Tokens(tt.raw)
			assert.InDelta(t, tt.want, got, 1e-9)
			if tt.wantKind == "" {
				assert.Nil(t, note)
			} else {
				require.NotNil(t, note)
				assert.Equal(t, tt.wantKind, note.Kind)
			}
		})
	}
}

func TestAPICalls(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     int64
		wantKind model.NoteKind
	}{
		{name: "bare number", raw: "25000", want: 25000},
		{name: "calls suffix", raw: "8000 calls", want: 8000},
		{name: "thousands separator", raw: "12,500", want: 12500},
		{name: "missing", raw: "", want: 0, wantKind: model.NoteImputed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, note := APICalls(tt.raw)
			assert.Equal(t, tt.want, got)
			if tt.wantKind == "" {
				assert.Nil(t, note)
			} else {
				require.NotNil(t, note)
				assert.Equal(t, tt.wantKind, note.Kind)
			}
		})
	}
}

func TestPUE(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		want        float64
		wantImputed bool
	}{
		{name: "valid", raw: "1.2", want: 1.2},
		{name: "boundary low", raw: "1.0", want: 1.0},
		{name: "boundary high", raw: "3.0", want: 3.0},
		{name: "missing uses default", raw: "", want: DefaultPUE, wantImputed: true},
		{name: "below range uses default", raw: "0.8", want: DefaultPUE, wantImputed: true},
		{name: "above range uses default", raw: "5.5", want: DefaultPUE, wantImputed: true},
		{name: "garbage uses default", raw: "high", want: DefaultPUE, wantImputed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, note := PUE(tt.raw)
			assert.InDelta(t, tt.want, got, 1e-9)
			if tt.wantImputed {
				require.NotNil(t, note)
				assert.Equal(t, model.NoteImputed, note.Kind)
			} else {
				assert.Nil(t, note)
			}
		})
	}
}

func TestUtilization(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     float64
		wantKind model.NoteKind
	}{
		{name: "with percent", raw: "80%", want: 80},
		{name: "bare number", raw: "65", want: 65},
		{name: "over 100 capped", raw: "150%", want: 100, wantKind: model.NoteImputed},
		{name: "missing", raw: "", want: 0, wantKind: model.NoteError},
		{name: "garbage", raw: "busy", want: 0, wantKind: model.NoteError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, note := Utilization(tt.raw)
			assert.InDelta(t, tt.want, got, 1e-9)
			if tt.wantKind == "" {
				assert.Nil(t, note)
			} else {
				require.NotNil(t, note)
				assert.Equal(t, tt.wantKind, note.Kind)
			}
		})
	}
}

func TestImputeEnergy(t *testing.T) {
	// 1000 GPU hours at 80% utilization and 0.4 kW per GPU.
	assert.InDelta(t, 320.0, ImputeEnergy(1000, 80), 1e-9)

	assert.Zero(t, ImputeEnergy(0, 80))
	assert.Zero(t, ImputeEnergy(1000, 0))
}

func TestEmissions(t *testing.T) {
	// 416 kWh on a 350 g/kWh grid.
	assert.InDelta(t, 0.1456, Emissions(416, 350), 1e-9)
	assert.Zero(t, Emissions(0, 350))
}
