package models

// KPIData summarises the floor for the supervisor dashboard.
type KPIData struct {
	DowntimeEventsToday   int     `json:"downtime_events_today"`
	DowntimeMinutesToday  int     `json:"downtime_minutes_today"`
	AlertsTotal           int     `json:"alerts_total"`
	AlertsOpen            int     `json:"alerts_open"`
	AlertsCleared         int     `json:"alerts_cleared"`
	MachinesRunning       int     `json:"machines_running"`
	MachinesDown          int     `json:"machines_down"`
	MaintenanceTotal      int     `json:"maintenance_total"`
	MaintenanceCompleted  int     `json:"maintenance_completed"`
	MaintenancePercentage float64 `json:"maintenance_percentage"`
}
