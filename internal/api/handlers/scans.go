package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/eargollo/piifinder/internal/scan"
)

// ScansHandler handles scan-related API endpoints.
type ScansHandler struct {
	DB      *sql.DB // nil when the results database is disabled
	Manager *scan.Manager
	// BaseCtx parents triggered scans so server shutdown cancels them.
	BaseCtx context.Context
}

type scanStarted struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	StartedAt   string   `json:"started_at"`
	TriggeredBy string   `json:"triggered_by"`
	Roots       []string `json:"roots"`
}

// Create handles POST /api/scans and triggers a manual scan.
func (h *ScansHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := h.BaseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	active, err := h.Manager.Start(ctx, "manual")
	if err != nil {
		if errors.Is(err, scan.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "SCAN_ALREADY_RUNNING", "A scan is already in progress")
			return
		}
		slog.Error("scans: start", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start scan")
		return
	}

	writeJSON(w, http.StatusAccepted, scanStarted{
		ID:          active.ID,
		Status:      scan.StatusRunning,
		StartedAt:   active.StartedAt.UTC().Format(time.RFC3339),
		TriggeredBy: active.TriggeredBy,
		Roots:       active.Roots,
	})
}

// Cancel handles DELETE /api/scans/current.
func (h *ScansHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Manager.Cancel()
	if err != nil {
		if errors.Is(err, scan.ErrNoActiveScan) {
			writeError(w, http.StatusNotFound, "NO_ACTIVE_SCAN", "No scan is currently running")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         snap.ID,
		"status":     scan.StatusCancelled,
		"started_at": snap.StartedAt.UTC().Format(time.RFC3339),
	})
}

// List handles GET /api/scans and returns run history newest first. Only
// run metadata and counts are exposed, never hit values.
func (h *ScansHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.DB == nil {
		writeError(w, http.StatusServiceUnavailable, "DB_DISABLED", "Scan history requires db_path to be set")
		return
	}
	limit := parseLimit(r)

	runs, err := scan.ListRuns(r.Context(), h.DB, limit)
	if err != nil {
		slog.Error("scans list", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if runs == nil {
		runs = []scan.RunRecord{}
	}
	writeJSON(w, http.StatusOK, ListResponse[scan.RunRecord]{Items: runs, Limit: limit})
}
