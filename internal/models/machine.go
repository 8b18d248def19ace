// Package models provides data model definitions for the shop-floor data layer.
package models

import "time"

// MachineType is the kind of production machine.
type MachineType string

const (
	MachineTypeCutter MachineType = "cutter"
	MachineTypeRoller MachineType = "roller"
	MachineTypePacker MachineType = "packer"
)

// Valid reports whether t is a known machine type.
func (t MachineType) Valid() bool {
	switch t {
	case MachineTypeCutter, MachineTypeRoller, MachineTypePacker:
		return true
	}
	return false
}

// MachineStatus is the operating status shown on the floor board.
type MachineStatus string

const (
	MachineStatusRun  MachineStatus = "RUN"
	MachineStatusIdle MachineStatus = "IDLE"
	MachineStatusOff  MachineStatus = "OFF"
)

// Valid reports whether s is a known machine status.
func (s MachineStatus) Valid() bool {
	switch s {
	case MachineStatusRun, MachineStatusIdle, MachineStatusOff:
		return true
	}
	return false
}

// Machine represents a piece of equipment on the shop floor.
type Machine struct {
	ID          string        `db:"id" json:"id"`
	Name        string        `db:"name" json:"name"`
	Type        MachineType   `db:"type" json:"type"`
	Status      MachineStatus `db:"status" json:"status"`
	LastUpdated time.Time     `db:"last_updated" json:"last_updated"`
}

// TableName returns the table name for Machine.
func (Machine) TableName() string {
	return "machines"
}
