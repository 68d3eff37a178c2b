package handlers

import (
	"net/http"
	"time"

	"github.com/eargollo/piifinder/internal/scan"
)

// Schedule is the view of the scheduler the status endpoint reports on.
type Schedule interface {
	CronExpr() string
	Paused() bool
	NextRunAt() *time.Time
}

// StatusHandler handles GET /api/status.
type StatusHandler struct {
	Manager *scan.Manager
	Sched   Schedule // may be nil
	Version string
}

type statusResponse struct {
	Version    string          `json:"version"`
	ActiveScan *activeScanInfo `json:"active_scan"`
	Schedule   *scheduleInfo   `json:"schedule"`
	LastScan   *lastScanInfo   `json:"last_scan"`
}

type activeScanInfo struct {
	ID          string      `json:"id"`
	StartedAt   time.Time   `json:"started_at"`
	TriggeredBy string      `json:"triggered_by"`
	Roots       []string    `json:"roots"`
	Progress    scan.Counts `json:"progress"`
}

type scheduleInfo struct {
	Cron      string     `json:"cron"`
	Paused    bool       `json:"paused"`
	NextRunAt *time.Time `json:"next_run_at"`
}

type lastScanInfo struct {
	ID          string      `json:"id"`
	Status      string      `json:"status"`
	TriggeredBy string      `json:"triggered_by"`
	FinishedAt  time.Time   `json:"finished_at"`
	DurationMs  int64       `json:"duration_ms"`
	Counts      scan.Counts `json:"counts"`
	HitCount    int         `json:"hit_count"`
	Error       string      `json:"error,omitempty"`
}

// ServeHTTP returns the system status as JSON.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Version:    h.Version,
		ActiveScan: h.activeScan(),
		Schedule:   h.schedule(),
		LastScan:   h.lastScan(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *StatusHandler) activeScan() *activeScanInfo {
	a := h.Manager.ActiveScan()
	if a == nil {
		return nil
	}
	return &activeScanInfo{
		ID:          a.ID,
		StartedAt:   a.StartedAt.UTC(),
		TriggeredBy: a.TriggeredBy,
		Roots:       a.Roots,
		Progress:    a.Progress.Load(),
	}
}

func (h *StatusHandler) schedule() *scheduleInfo {
	if h.Sched == nil {
		return nil
	}
	return &scheduleInfo{
		Cron:      h.Sched.CronExpr(),
		Paused:    h.Sched.Paused(),
		NextRunAt: h.Sched.NextRunAt(),
	}
}

func (h *StatusHandler) lastScan() *lastScanInfo {
	res := h.Manager.LastResult()
	if res == nil {
		return nil
	}
	info := &lastScanInfo{
		ID:          res.ID,
		Status:      res.Status,
		TriggeredBy: res.TriggeredBy,
		FinishedAt:  res.FinishedAt.UTC(),
		DurationMs:  res.Elapsed().Milliseconds(),
		Counts:      res.Counts,
		HitCount:    res.Snapshot.Total(),
	}
	if res.Err != nil {
		info.Error = res.Err.Error()
	}
	return info
}
