package handlers

import (
	"context"
	"net/http"

	syncpkg "github.com/kimhsiao/shopfloor/backend/internal/sync"
	"github.com/kimhsiao/shopfloor/backend/internal/sync/scheduler"
)

// SyncController is the part of the scheduling controller the API uses.
type SyncController interface {
	Status() scheduler.Status
	ForceSync(ctx context.Context) (*syncpkg.Result, error)
	CheckConnectivity(ctx context.Context) bool
}

// SyncHandler exposes sync status and manual passes. Queue records are
// never served.
type SyncHandler struct {
	controller SyncController
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(controller SyncController) *SyncHandler {
	return &SyncHandler{controller: controller}
}

// Register adds the sync routes to mux.
func (h *SyncHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sync/status", h.GetStatus)
	mux.HandleFunc("POST /api/sync", h.TriggerSync)
	mux.HandleFunc("POST /api/sync/connectivity", h.CheckConnectivity)
}

// GetStatus handles GET /api/sync/status
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.Status())
}

// TriggerSync handles POST /api/sync
// It runs one pass and returns its result. A pass already in progress is
// reported with skipped=true.
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.controller.ForceSync(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CheckConnectivity handles POST /api/sync/connectivity
func (h *SyncHandler) CheckConnectivity(w http.ResponseWriter, r *http.Request) {
	h.controller.CheckConnectivity(r.Context())
	writeJSON(w, http.StatusOK, h.controller.Status())
}

var _ SyncController = (*scheduler.Controller)(nil)
