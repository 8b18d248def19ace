package db

import (
	"context"
	"time"

	"github.com/kimhsiao/shopfloor/backend/internal/models"
)

type seedMaintenance struct {
	id, machineID, title, description string
	dueInDays                         int
}

var seedMachines = []models.Machine{
	{ID: "M-101", Name: "Cutter 1", Type: models.MachineTypeCutter, Status: models.MachineStatusRun},
	{ID: "M-102", Name: "Roller A", Type: models.MachineTypeRoller, Status: models.MachineStatusIdle},
	{ID: "M-103", Name: "Packing West", Type: models.MachineTypePacker, Status: models.MachineStatusRun},
}

var seedMaintenanceItems = []seedMaintenance{
	{"MT-001", "M-101", "Blade Inspection", "Check blade sharpness and alignment", 1},
	{"MT-002", "M-101", "Lubrication Check", "Check and refill cutting oil", -1},
	{"MT-003", "M-102", "Belt Tension Check", "Verify roller belt tension is within spec", 3},
	{"MT-004", "M-102", "Bearing Inspection", "Listen for unusual sounds, check for play", -2},
	{"MT-005", "M-103", "Seal Replacement", "Replace worn sealing elements", 0},
	{"MT-006", "M-103", "Sensor Calibration", "Calibrate weight and position sensors", 5},
}

// Seed inserts the demo machines and maintenance schedule when the store has
// no machines yet. Due dates are relative to the store clock's current day.
func (db *DB) Seed(ctx context.Context) error {
	n, err := CountMachines(ctx, db)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	now := db.Now()
	today := StartOfDay(now)

	err = db.WithTx(ctx, func(q Querier) error {
		for i := range seedMachines {
			m := seedMachines[i]
			m.LastUpdated = now
			if err := InsertMachine(ctx, q, &m); err != nil {
				return err
			}
		}
		for _, s := range seedMaintenanceItems {
			item := models.MaintenanceItem{
				ID:          s.id,
				MachineID:   s.machineID,
				Title:       s.title,
				Description: s.description,
				DueDate:     today.Add(time.Duration(s.dueInDays) * 24 * time.Hour),
				Status:      models.MaintenanceStatusDue,
			}
			if err := InsertMaintenance(ctx, q, &item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.log.Info("seeded store", map[string]interface{}{
		"machines":          len(seedMachines),
		"maintenance_items": len(seedMaintenanceItems),
	})
	return nil
}
