package handlers

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/analysis"
	"github.com/ternarybob/arbor"
)

// Analyzer runs single ticker analysis.
type Analyzer interface {
	Debate(ctx context.Context, req analysis.DebateRequest) (*analysis.Analysis, error)
	Recommend(ctx context.Context, req analysis.RecommendRequest) (*analysis.Recommendation, error)
	LatestThesis(ctx context.Context, ticker string) (*models.ThesisRecord, error)
	Theses(ctx context.Context, ticker string, limit int) ([]models.ThesisRecord, error)
	Report(ctx context.Context, ticker, format string) (*analysis.Report, error)
}

// AnalysisHandler serves debates, contract recommendations, theses and reports.
type AnalysisHandler struct {
	analyzer Analyzer
	logger   arbor.ILogger
}

func NewAnalysisHandler(analyzer Analyzer, logger arbor.ILogger) *AnalysisHandler {
	return &AnalysisHandler{
		analyzer: analyzer,
		logger:   logger,
	}
}

// DebateHandler handles POST /api/debate
func (h *AnalysisHandler) DebateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req analysis.DebateRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.analyzer.Debate(r.Context(), req)
	if err != nil {
		h.logger.Error().Str("ticker", req.Ticker).Err(err).Msg("Debate failed")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// RecommendHandler handles POST /api/recommend
func (h *AnalysisHandler) RecommendHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req analysis.RecommendRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.analyzer.Recommend(r.Context(), req)
	if err != nil {
		h.logger.Warn().Str("ticker", req.Ticker).Err(err).Msg("Recommendation failed")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, rec)
}

// ThesisHandler handles GET /api/theses/{ticker}. With ?history=N it lists
// the newest N theses instead of returning the latest one.
func (h *AnalysisHandler) ThesisHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	parts := PathTail(r.URL.Path, "/api/theses/")
	if len(parts) != 1 {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	ticker := parts[0]

	if historyStr := r.URL.Query().Get("history"); historyStr != "" {
		limit, err := strconv.Atoi(historyStr)
		if err != nil || limit <= 0 {
			WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid history %q", historyStr))
			return
		}
		records, err := h.analyzer.Theses(r.Context(), ticker, limit)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		if records == nil {
			records = []models.ThesisRecord{}
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"ticker": strings.ToUpper(ticker),
			"theses": records,
			"count":  len(records),
		})
		return
	}

	record, err := h.analyzer.LatestThesis(r.Context(), ticker)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, record)
}

// ReportHandler handles GET /api/reports/{ticker}.{md|html|pdf}
func (h *AnalysisHandler) ReportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	parts := PathTail(r.URL.Path, "/api/reports/")
	if len(parts) != 1 {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	ext := path.Ext(parts[0])
	ticker := strings.TrimSuffix(parts[0], ext)
	format := strings.TrimPrefix(ext, ".")
	if ticker == "" || format == "" {
		WriteError(w, http.StatusBadRequest, "expected /api/reports/{ticker}.{md|html|pdf}")
		return
	}

	rep, err := h.analyzer.Report(r.Context(), ticker, format)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", rep.ContentType)
	if r.URL.Query().Get("download") == "true" || format == analysis.FormatPDF {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rep.Filename))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(rep.Body); err != nil {
		h.logger.Warn().Err(err).Str("ticker", ticker).Msg("Failed to write report")
	}
}
