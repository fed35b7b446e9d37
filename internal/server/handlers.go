package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/sustainops/carbon-ranker/internal/common"
	"github.com/sustainops/carbon-ranker/internal/engine"
	"github.com/sustainops/carbon-ranker/internal/model"
	"github.com/sustainops/carbon-ranker/internal/service"
)

type handler struct {
	storage service.Storage
	engine  *engine.Engine
	running atomic.Bool
}

func newHandler(storage service.Storage, eng *engine.Engine) *handler {
	return &handler{storage: storage, engine: eng}
}

// process kicks off a synchronous pipeline run. Only one run at a time;
// concurrent requests get a 409.
func (h *handler) process(w http.ResponseWriter, r *http.Request) {
	if !h.running.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "a processing run is already in progress")
		return
	}
	defer h.running.Store(false)

	stats, err := h.engine.ProcessAll(r.Context())
	if errors.Is(err, common.ErrNoRawRecords) {
		writeError(w, http.StatusConflict, "no unprocessed records; ingest or seed data first")
		return
	}
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"processed":   stats.Processed,
		"succeeded":   stats.Succeeded,
		"degraded":    stats.Degraded,
		"abandoned":   stats.Abandoned,
		"retries":     stats.Retries,
		"duration_ms": stats.Duration.Milliseconds(),
	})
}

type rankingResponse struct {
	Vendor          string   `json:"vendor"`
	Month           string   `json:"month"`
	GreenScore      float64  `json:"green_score"`
	OverallRank     int      `json:"overall_rank"`
	TCO2eRank       int      `json:"tco2e_rank"`
	IntensityRank   int      `json:"intensity_rank"`
	EfficiencyRank  int      `json:"efficiency_rank"`
	UtilizationRank int      `json:"utilization_rank"`
	TotalKWh        float64  `json:"total_kwh"`
	TCO2e           float64  `json:"tco2e"`
	GPer1kTokens    *float64 `json:"g_per_1k_tokens"`
	TokensPerTCO2e  *float64 `json:"tokens_per_tco2e"`
	UtilizationAvg  float64  `json:"utilization_avg"`
	DataQuality     float64  `json:"data_quality"`
}

func toRankingResponse(ranking model.Ranking) rankingResponse {
	return rankingResponse{
		Vendor:          ranking.Vendor,
		Month:           ranking.Month,
		GreenScore:      ranking.GreenScore,
		OverallRank:     ranking.OverallRank,
		TCO2eRank:       ranking.TCO2eRank,
		IntensityRank:   ranking.IntensityRank,
		EfficiencyRank:  ranking.EfficiencyRank,
		UtilizationRank: ranking.UtilizationRank,
		TotalKWh:        ranking.TotalKWh,
		TCO2e:           ranking.TCO2e,
		GPer1kTokens:    ranking.GPer1kTokens,
		TokensPerTCO2e:  ranking.TokensPerTCO2e,
		UtilizationAvg:  ranking.UtilizationAvg,
		DataQuality:     ranking.DataQuality,
	}
}

var monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// leaderboard returns one month's Green Score ordering, defaulting to the
// latest ranked month when no month is requested.
func (h *handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	month := r.URL.Query().Get("month")
	if month != "" && !monthPattern.MatchString(month) {
		writeError(w, http.StatusBadRequest, "invalid month "+month+"; expected YYYY-MM")
		return
	}

	if month == "" {
		var err error
		month, err = h.storage.LatestRankingMonth(ctx)
		if err != nil {
			writeInternalError(w, err)
			return
		}
		if month == "" {
			writeError(w, http.StatusNotFound, "no rankings available; run processing first")
			return
		}
	}

	rankings, err := h.storage.GetRankings(ctx, month)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if len(rankings) == 0 {
		writeError(w, http.StatusNotFound, "no rankings for "+month)
		return
	}

	out := make([]rankingResponse, len(rankings))
	for i, ranking := range rankings {
		out[i] = toRankingResponse(ranking)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"month":    month,
		"rankings": out,
	})
}

type rollupResponse struct {
	Vendor         string   `json:"vendor"`
	Month          string   `json:"month"`
	TotalKWh       float64  `json:"total_kwh"`
	TCO2e          float64  `json:"tco2e"`
	TotalTokens    float64  `json:"total_tokens"`
	TotalAPICalls  int64    `json:"total_api_calls"`
	UtilizationAvg float64  `json:"utilization_avg"`
	PUEAvg         float64  `json:"pue_avg"`
	DataQuality    float64  `json:"data_quality"`
	GPer1kTokens   *float64 `json:"g_per_1k_tokens"`
	GPerCall       *float64 `json:"g_per_call"`
	TokensPerTCO2e *float64 `json:"tokens_per_tco2e"`
}

// company returns one vendor's latest rollup, ranking, and audit trail.
func (h *handler) company(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vendor := chi.URLParam(r, "vendor")

	month, err := h.storage.LatestRankingMonth(ctx)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if month == "" {
		writeError(w, http.StatusNotFound, "no rankings available; run processing first")
		return
	}

	rollup, err := h.storage.GetRollup(ctx, vendor, month)
	if errors.Is(err, common.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown vendor: "+vendor)
		return
	}
	if err != nil {
		writeInternalError(w, err)
		return
	}

	response := map[string]any{
		"vendor": vendor,
		"month":  month,
		"rollup": rollupResponse{
			Vendor:         rollup.Vendor,
			Month:          rollup.Month,
			TotalKWh:       rollup.TotalKWh,
			TCO2e:          rollup.TCO2e,
			TotalTokens:    rollup.TotalTokens,
			TotalAPICalls:  rollup.TotalAPICalls,
			UtilizationAvg: rollup.UtilizationAvg,
			PUEAvg:         rollup.PUEAvg,
			DataQuality:    rollup.DataQuality,
			GPer1kTokens:   rollup.GPer1kTokens,
			GPerCall:       rollup.GPerCall,
			TokensPerTCO2e: rollup.TokensPerTCO2e,
		},
	}

	ranking, err := h.storage.GetRanking(ctx, vendor, month)
	if err == nil {
		response["ranking"] = toRankingResponse(*ranking)
	} else if !errors.Is(err, common.ErrNotFound) {
		writeInternalError(w, err)
		return
	}

	log, err := h.storage.GetProcessingLog(ctx, vendor, "", 50)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	response["processing_log"] = toLogResponse(log)

	writeJSON(w, http.StatusOK, response)
}

// metricsSummary aggregates headline figures over the latest ranked month.
func (h *handler) metricsSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	month, err := h.storage.LatestRankingMonth(ctx)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if month == "" {
		writeError(w, http.StatusNotFound, "no rankings available; run processing first")
		return
	}

	rollups, err := h.storage.GetRollups(ctx, month)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	var totalKWh, totalTCO2e, totalTokens, qualitySum float64
	for _, rollup := range rollups {
		totalKWh += rollup.TotalKWh
		totalTCO2e += rollup.TCO2e
		totalTokens += rollup.TotalTokens
		qualitySum += rollup.DataQuality
	}

	avgQuality := 0.0
	if len(rollups) > 0 {
		avgQuality = qualitySum / float64(len(rollups))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"month":            month,
		"vendors":          len(rollups),
		"total_kwh":        totalKWh,
		"total_tco2e":      totalTCO2e,
		"total_tokens":     totalTokens,
		"avg_data_quality": avgQuality,
	})
}

type logEntryResponse struct {
	RunID      string `json:"run_id"`
	Vendor     string `json:"vendor"`
	Month      string `json:"month"`
	Stage      string `json:"stage"`
	Action     string `json:"action"`
	Details    string `json:"details"`
	RetryCount int    `json:"retry_count"`
}

func toLogResponse(entries []model.ProcessingLogEntry) []logEntryResponse {
	out := make([]logEntryResponse, len(entries))
	for i, entry := range entries {
		out[i] = logEntryResponse{
			RunID:      entry.RunID,
			Vendor:     entry.Vendor,
			Month:      entry.Month,
			Stage:      entry.Stage,
			Action:     entry.Action,
			Details:    entry.Details,
			RetryCount: entry.RetryCount,
		}
	}
	return out
}

// processingStatus reports ingest depth and audit-trail health.
func (h *handler) processingStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rawCount, err := h.storage.GetRawRecordCount(ctx)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	stats, err := h.storage.GetProcessingStats(ctx)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	recent, err := h.storage.GetRecentProcessingLog(ctx, 20)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"running":       h.running.Load(),
		"raw_records":   rawCount,
		"log_entries":   stats.TotalEntries,
		"retry_entries": stats.RetryEntries,
		"error_entries": stats.ErrorEntries,
		"recent_log":    toLogResponse(recent),
	})
}

// reset wipes all pipeline data, keeping the grid reference table.
func (h *handler) reset(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.ResetAll(r.Context()); err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reset": true})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeInternalError(w http.ResponseWriter, err error) {
	slog.Error("Request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
