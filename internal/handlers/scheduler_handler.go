package handlers

import (
	"net/http"

	"github.com/jobu711/optionalpha/internal/services/scheduler"
)

// ScanScheduler exposes the scheduled watchlist scan.
type ScanScheduler interface {
	Status() scheduler.Status
	TriggerNow()
}

// SchedulerHandler handles scheduled scan endpoints
type SchedulerHandler struct {
	scheduler ScanScheduler
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(s ScanScheduler) *SchedulerHandler {
	return &SchedulerHandler{scheduler: s}
}

// StatusHandler returns the schedule and the last scheduled outcome
func (h *SchedulerHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, h.scheduler.Status())
}

// TriggerHandler starts a watchlist scan now. Progress arrives over /ws.
func (h *SchedulerHandler) TriggerHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	h.scheduler.TriggerNow()

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"message": "Scan triggered",
	})
}
