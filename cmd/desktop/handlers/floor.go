package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/kimhsiao/shopfloor/backend/internal/db"
	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
	"github.com/kimhsiao/shopfloor/backend/internal/repository"
)

// KPISource computes dashboard figures.
type KPISource interface {
	Compute(ctx context.Context) (*models.KPIData, error)
}

// FloorHandler serves machines, downtime, maintenance, alerts and KPIs.
type FloorHandler struct {
	machines    repository.MachineRepository
	downtime    repository.DowntimeRepository
	maintenance repository.MaintenanceRepository
	alerts      repository.AlertRepository
	session     repository.SessionRepository
	kpi         KPISource
}

// NewFloorHandler creates a FloorHandler over the repositories.
func NewFloorHandler(repos *repository.Repositories, kpi KPISource) *FloorHandler {
	return &FloorHandler{
		machines:    repos.Machines,
		downtime:    repos.Downtime,
		maintenance: repos.Maintenance,
		alerts:      repos.Alerts,
		session:     repos.Users,
		kpi:         kpi,
	}
}

// Register adds the floor routes to mux.
func (h *FloorHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/session", h.CurrentUser)
	mux.HandleFunc("POST /api/session", h.Login)
	mux.HandleFunc("DELETE /api/session", h.Logout)

	mux.HandleFunc("GET /api/machines", h.ListMachines)
	mux.HandleFunc("POST /api/machines/{id}/status", h.UpdateMachineStatus)

	mux.HandleFunc("GET /api/downtime", h.ListDowntime)
	mux.HandleFunc("POST /api/downtime", h.StartDowntime)
	mux.HandleFunc("GET /api/downtime/{id}", h.GetDowntime)
	mux.HandleFunc("POST /api/downtime/{id}/end", h.EndDowntime)
	mux.HandleFunc("POST /api/downtime/{id}/notes", h.AmendDowntimeNotes)
	mux.HandleFunc("GET /api/reasons", h.ListReasons)

	mux.HandleFunc("GET /api/maintenance", h.ListMaintenance)
	mux.HandleFunc("POST /api/maintenance/{id}/done", h.MarkMaintenanceDone)
	mux.HandleFunc("POST /api/maintenance/{id}/notes", h.AddMaintenanceNote)

	mux.HandleFunc("GET /api/alerts", h.ListAlerts)
	mux.HandleFunc("POST /api/alerts", h.CreateAlert)
	mux.HandleFunc("POST /api/alerts/{id}/ack", h.AcknowledgeAlert)
	mux.HandleFunc("POST /api/alerts/{id}/clear", h.ClearAlert)

	mux.HandleFunc("GET /api/kpi", h.GetKPI)
}

// =====================================================
// Session
// =====================================================

// CurrentUser handles GET /api/session
func (h *FloorHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.session.Current(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Login handles POST /api/session
func (h *FloorHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string      `json:"email"`
		Role  models.Role `json:"role"`
		Token string      `json:"token"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	u, err := h.session.Login(r.Context(), req.Email, req.Role, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Logout handles DELETE /api/session
func (h *FloorHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =====================================================
// Machines
// =====================================================

// ListMachines handles GET /api/machines
func (h *FloorHandler) ListMachines(w http.ResponseWriter, r *http.Request) {
	machines, err := h.machines.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, machines)
}

// UpdateMachineStatus handles POST /api/machines/{id}/status
func (h *FloorHandler) UpdateMachineStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status models.MachineStatus `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	m, err := h.machines.UpdateStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// =====================================================
// Downtime
// =====================================================

// ListDowntime handles GET /api/downtime?machine_id=&open=true
func (h *FloorHandler) ListDowntime(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events, err := h.downtime.List(r.Context(), db.DowntimeFilter{
		MachineID: q.Get("machine_id"),
		OpenOnly:  q.Get("open") == "true",
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// StartDowntime handles POST /api/downtime
func (h *FloorHandler) StartDowntime(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MachineID string `json:"machine_id"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.MachineID) == "" {
		writeError(w, apperrors.New(apperrors.ErrValidation, "machine_id is required"))
		return
	}
	e, err := h.downtime.Start(r.Context(), req.MachineID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// GetDowntime handles GET /api/downtime/{id}
func (h *FloorHandler) GetDowntime(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := repository.CheckRecordID("downtime", id); err != nil {
		writeError(w, err)
		return
	}
	e, err := h.downtime.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// EndDowntime handles POST /api/downtime/{id}/end
func (h *FloorHandler) EndDowntime(w http.ResponseWriter, r *http.Request) {
	var in models.EndDowntimeInput
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	if err := repository.CheckRecordID("downtime", id); err != nil {
		writeError(w, err)
		return
	}
	e, err := h.downtime.End(r.Context(), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// AmendDowntimeNotes handles POST /api/downtime/{id}/notes
func (h *FloorHandler) AmendDowntimeNotes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	if err := repository.CheckRecordID("downtime", id); err != nil {
		writeError(w, err)
		return
	}
	e, err := h.downtime.AmendNotes(r.Context(), id, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// ListReasons handles GET /api/reasons
func (h *FloorHandler) ListReasons(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.ReasonTree)
}

// =====================================================
// Maintenance
// =====================================================

// ListMaintenance handles GET /api/maintenance?machine_id=
func (h *FloorHandler) ListMaintenance(w http.ResponseWriter, r *http.Request) {
	items, err := h.maintenance.List(r.Context(), r.URL.Query().Get("machine_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// MarkMaintenanceDone handles POST /api/maintenance/{id}/done
func (h *FloorHandler) MarkMaintenanceDone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	it, err := h.maintenance.MarkAsDone(r.Context(), r.PathValue("id"), req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// AddMaintenanceNote handles POST /api/maintenance/{id}/notes
func (h *FloorHandler) AddMaintenanceNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	it, err := h.maintenance.AddNote(r.Context(), r.PathValue("id"), req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// =====================================================
// Alerts
// =====================================================

// ListAlerts handles GET /api/alerts?status=&machine_id=&open=true
func (h *FloorHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	alerts, err := h.alerts.List(r.Context(), db.AlertFilter{
		Status:    models.AlertStatus(q.Get("status")),
		MachineID: q.Get("machine_id"),
		OpenOnly:  q.Get("open") == "true",
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// CreateAlert handles POST /api/alerts
func (h *FloorHandler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var in repository.NewAlert
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	a, err := h.alerts.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// AcknowledgeAlert handles POST /api/alerts/{id}/ack
func (h *FloorHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := repository.CheckRecordID("alert", id); err != nil {
		writeError(w, err)
		return
	}
	a, err := h.alerts.Acknowledge(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ClearAlert handles POST /api/alerts/{id}/clear
func (h *FloorHandler) ClearAlert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := repository.CheckRecordID("alert", id); err != nil {
		writeError(w, err)
		return
	}
	a, err := h.alerts.Clear(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// =====================================================
// KPIs
// =====================================================

// GetKPI handles GET /api/kpi
func (h *FloorHandler) GetKPI(w http.ResponseWriter, r *http.Request) {
	k, err := h.kpi.Compute(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, k)
}
