package main

import (
	"context"

	"github.com/kimhsiao/shopfloor/backend/internal/app"
	"github.com/kimhsiao/shopfloor/backend/internal/db"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
	"github.com/kimhsiao/shopfloor/backend/internal/repository"
)

// downtimeQuery is the JSON filter accepted by ListDowntime.
type downtimeQuery struct {
	MachineID string `json:"machine_id"`
	OpenOnly  bool   `json:"open_only"`
}

// alertQuery is the JSON filter accepted by ListAlerts.
type alertQuery struct {
	Status    models.AlertStatus `json:"status"`
	MachineID string             `json:"machine_id"`
	OpenOnly  bool               `json:"open_only"`
}

type loginRequest struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	Token string      `json:"token"`
}

// =====================================================
// Session
// =====================================================

func (b *bridge) login(req string) (string, bool) {
	return b.call(func(ctx context.Context, a *app.App) (interface{}, error) {
		var in loginRequest
		if err := decodeArg(req, &in); err != nil {
			return nil, err
		}
		return a.Repos.Users.Login(ctx, in.Email, in.Role, in.Token)
	})
}

func (b *bridge) logout() bool {
	return b.status(b.with(func(ctx context.Context, a *app.App) error {
		return a.Repos.Users.Logout(ctx)
	}))
}

func (b *bridge) currentUser() (string, bool) {
	return b.call(func(ctx context.Context, a *app.App) (interface{}, error) {
		return a.Repos.Users.Current(ctx)
	})
}

// =====================================================
// Machines and Downtime
// =====================================================

func (b *bridge) listMachines() (string, bool) {
	return b.call(func(ctx context.Context, a *app.App) (interface{}, error) {
		return a.Repos.Machines.List(ctx)
	})
}

func (b *bridge) setMachineStatus(id, status string) (string, bool) {
	return b.call(func(ctx context.Context, a *app.App) (interface{}, error) {
		return a.Repos.Machines.UpdateStatus(ctx, id, models.MachineStatus(status))
	})
}

func (b *bridge) startDowntime(machineID string) (string, bool) {
	return b.call(func(ctx context.Context, a *app.App) (interface{}, error) {
		return a.Repos.Downtime.Start(ctx, machineID)
	})
}

func (b *bridge) endDowntime(id, input string) (string, bool) {
	return b.call(func(ctx context.Context, a *app.App) (interface{}, error) {
		if err := repository.CheckRecordID("downtime", id); err != nil {
			return nil, err
		}
		var in models.EndDowntimeInput
		if err := decodeArg(input, &in); err != nil {
			return nil, err
		}
		return a.Repos.Downtime.End(ctx, id, in)
	})
}

func (b *bridge) amendDowntimeNotes(id, notes string) (string, bool) {
	return b.call(func(ctx context.Context, a *app.App) (interface{}, error) {
		if err := repository.CheckRecordID("downtime", id); err != nil {
			return nil, err
		}
		return a.Repos.Downtime.AmendNotes(ctx, id, notes)
	})
}

func (b *bridge) listDowntime(filter string) (string, bool) {
	return b.call(func(ctx context.Context, a *app.App) (interface{}, error) {
		var q downtimeQuery
		if err := decodeArg(filter, &q); err != nil {
			return nil, err
		}
		return a.Repos.Downtime.List(ctx, db.DowntimeFilter{MachineID: q.MachineID, OpenOnly: q.OpenOnly})
	})
}

func (b *bridge) reasons() (string, bool) {
	return b.call(func(context.Context, *app.App) (interface{}, error) {
		return models.ReasonTree, nil
	})
}

// =====================================================
// Maintenance and Alerts
// =====================================================

func (b *bridge) listMaintenance(machineID string) (string, bool) {
	return b.call(func(ctx context.Context, a *app.App) (interface{}, error) {
		return a.Repos.Maintenance.List(ctx, machineID)
	})
}

func (b *bridge) markMaintenanceDone(id, notes string) (string, bool) {
	return b.call(func(ctx context.Context, a *app.App) (interface{}, error) {
		return a.Repos.Maintenance.MarkAsDone(ctx, id, notes)
	})
}

func (b *bridge) addMaintenanceNote(id, notes string) (string, bool) {
	return b.call(func(ctx context.Context, a *app.App) (interface{}, error) {
		return a.Repos.Maintenance.AddNote(ctx, id, notes)
	})
}

func (b *bridge) listAlerts(filter string) (string, bool) {
	return b.call(func(ctx context.Context, a *app.App) (interface{}, error) {
		var q alertQuery
		if err := decodeArg(filter, &q); err != nil {
			return nil, err
		}
		return a.Repos.Alerts.List(ctx, db.AlertFilter{Status: q.Status, MachineID: q.MachineID, OpenOnly: q.OpenOnly})
	})
}

func (b *bridge) createAlert(input string) (string, bool) {
	return b.call(func(ctx context.Context, a *app.App) (interface{}, error) {
		var in repository.NewAlert
		if err := decodeArg(input, &in); err != nil {
			return nil, err
		}
		return a.Repos.Alerts.Create(ctx, in)
	})
}

func (b *bridge) acknowledgeAlert(id string) (string, bool) {
	return b.call(func(ctx context.Context, a *app.App) (interface{}, error) {
		if err := repository.CheckRecordID("alert", id); err != nil {
			return nil, err
		}
		return a.Repos.Alerts.Acknowledge(ctx, id)
	})
}

func (b *bridge) clearAlert(id string) (string, bool) {
	return b.call(func(ctx context.Context, a *app.App) (interface{}, error) {
		if err := repository.CheckRecordID("alert", id); err != nil {
			return nil, err
		}
		return a.Repos.Alerts.Clear(ctx, id)
	})
}

// =====================================================
// KPIs and Sync
// =====================================================

func (b *bridge) kpis() (string, bool) {
	return b.call(func(ctx context.Context, a *app.App) (interface{}, error) {
		return a.KPI.Compute(ctx)
	})
}

func (b *bridge) syncStatus() (string, bool) {
	return b.call(func(_ context.Context, a *app.App) (interface{}, error) {
		return a.Controller.Status(), nil
	})
}

func (b *bridge) forceSync() (string, bool) {
	return b.call(func(ctx context.Context, a *app.App) (interface{}, error) {
		return a.Controller.ForceSync(ctx)
	})
}
