package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/jobu711/optionalpha/internal/common"
	"github.com/jobu711/optionalpha/internal/interfaces"
	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/scan"
	"github.com/ternarybob/arbor"
)

// ScanRunner runs the scan pipeline.
type ScanRunner interface {
	Run(ctx context.Context, req scan.Request, sink scan.ProgressSink) (*scan.Result, error)
}

// ProgressBroadcaster forwards scan progress to live clients.
type ProgressBroadcaster interface {
	BroadcastScanProgress(progress scan.Progress)
}

// ScanHandler serves scan runs and their scores.
type ScanHandler struct {
	scanner     ScanRunner
	storage     interfaces.ScanStorage
	broadcaster ProgressBroadcaster
	logger      arbor.ILogger
}

func NewScanHandler(scanner ScanRunner, storage interfaces.ScanStorage, broadcaster ProgressBroadcaster, logger arbor.ILogger) *ScanHandler {
	return &ScanHandler{
		scanner:     scanner,
		storage:     storage,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// RunScanHandler handles POST /api/scan. The body is a universe document
// (tickers, a raw universe or a watchlist name, YAML or JSON); an empty body
// scans the default watchlist. The scan runs in the request and returns its scores.
func (h *ScanHandler) RunScanHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	body, err := ReadBody(w, r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req scan.Request
	if len(bytes.TrimSpace(body)) > 0 {
		file, err := scan.ParseUniverse(body)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		req = file.Request()
	}

	var sink scan.ProgressSink
	if h.broadcaster != nil {
		sink = h.broadcaster.BroadcastScanProgress
	}

	result, err := h.scanner.Run(r.Context(), req, sink)
	if err != nil {
		h.logger.Error().Err(err).Msg("Scan failed")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run":        result.Run,
		"scores":     result.Scores,
		"elapsed_ms": result.Elapsed.Milliseconds(),
	})
}

// ListScansHandler handles GET /api/scans
func (h *ScanHandler) ListScansHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	runs, err := h.storage.ListScanRuns(r.Context(), GetLimitParam(r, 20))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list scan runs")
		WriteServiceError(w, err)
		return
	}
	if runs == nil {
		runs = []models.ScanRun{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"scans": runs,
		"count": len(runs),
	})
}

// ScanRoutes handles GET /api/scans/{id} and GET /api/scans/{id}/scores
func (h *ScanHandler) ScanRoutes(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	parts := PathTail(r.URL.Path, "/api/scans/")
	switch {
	case len(parts) == 1:
		h.getScan(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "scores":
		h.getScores(w, r, parts[0])
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (h *ScanHandler) getScan(w http.ResponseWriter, r *http.Request, id string) {
	run, err := h.storage.GetScanRun(r.Context(), id)
	if err != nil {
		if !errors.Is(err, interfaces.ErrRecordNotFound) {
			h.logger.Error().Err(err).Str("scan_id", id).Msg("Failed to get scan run")
		}
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

func (h *ScanHandler) getScores(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.storage.GetScanRun(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}

	scores, err := h.storage.GetScores(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("scan_id", id).Msg("Failed to get scores")
		WriteServiceError(w, err)
		return
	}
	if scores == nil {
		scores = []models.ScoreRecord{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"scan_id": id,
		"scores":  scores,
		"count":   len(scores),
	})
}

// TickerRoutes handles GET /api/tickers/{ticker}/history[?limit=N]: the
// ticker's scores across scans, newest first.
func (h *ScanHandler) TickerRoutes(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	parts := PathTail(r.URL.Path, "/api/tickers/")
	if len(parts) != 2 || parts[1] != "history" {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	ticker := common.ParseTicker(parts[0])
	if err := ticker.Validate(); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := h.storage.TickerHistory(r.Context(), ticker.Code, GetLimitParam(r, 20))
	if err != nil {
		h.logger.Error().Err(err).Str("ticker", ticker.Code).Msg("Failed to get ticker history")
		WriteServiceError(w, err)
		return
	}
	if history == nil {
		history = []models.ScoreRecord{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":  ticker.Code,
		"history": history,
		"count":   len(history),
	})
}
