package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jobu711/optionalpha/internal/common"
	"github.com/jobu711/optionalpha/internal/services/health"
	"github.com/ternarybob/arbor"
)

// HealthReporter exposes the state of the external dependencies.
type HealthReporter interface {
	LLMProvider() string
	LLMModel() string
	BreakerState() string
}

// DeepChecker runs live dependency checks.
type DeepChecker interface {
	Run(ctx context.Context) health.Report
}

type APIHandler struct {
	health  HealthReporter
	checker DeepChecker
	started time.Time
	logger  arbor.ILogger
}

func NewAPIHandler(health HealthReporter, checker DeepChecker, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		health:  health,
		checker: checker,
		started: time.Now(),
		logger:  logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.GetBuild(),
		"git_commit": common.GetGitCommit(),
	})
}

// HealthHandler returns health check status. By default it reports
// configuration only; ?deep=1 also checks the LLM backend, a canary market
// data quote and storage, and reports "degraded" when any of them fails.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	deep := r.URL.Query().Get("deep")
	if deep == "1" || deep == "true" {
		h.deepHealth(w, r)
		return
	}

	body := map[string]interface{}{
		"status":         "ok",
		"version":        common.GetVersion(),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}
	if h.health != nil {
		body["llm_provider"] = h.health.LLMProvider()
		body["llm_model"] = h.health.LLMModel()
		body["market_data"] = h.health.BreakerState()
	}

	WriteJSON(w, http.StatusOK, body)
}

func (h *APIHandler) deepHealth(w http.ResponseWriter, r *http.Request) {
	if h.checker == nil {
		WriteError(w, http.StatusNotImplemented, "Deep health checks are not configured")
		return
	}

	report := h.checker.Run(r.Context())
	if report.Status != health.StatusOK {
		h.logger.Warn().Str("status", report.Status).Msg("Deep health check degraded")
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":         report.Status,
		"version":        common.GetVersion(),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"checks":         report.Checks,
		"checked_at":     report.CheckedAt,
	})
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
