package model

import "fmt"

// VehicleStatus describes the operational state of a vehicle.
type VehicleStatus string

const (
	StatusAvailable   VehicleStatus = "available"
	StatusInUse       VehicleStatus = "in_use"
	StatusMaintenance VehicleStatus = "maintenance"
)

// Vehicle represents a fleet vehicle tracked by the state store.
type Vehicle struct {
	ID                string        `json:"id"`
	Odometer          float64       `json:"odometer"`           // km, never decreases
	FuelLevel         float64       `json:"fuel_level"`         // liters, 0..FuelCapacity
	FuelCapacity      float64       `json:"fuel_capacity"`      // liters, > 0
	ConsumptionFactor float64       `json:"consumption_factor"` // km per liter, >= 0
	Status            VehicleStatus `json:"status"`
	AssignedDriver    string        `json:"assigned_driver,omitempty"`
}

// Validate checks that the vehicle configuration is sound.
func (v Vehicle) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("vehicle id must not be empty")
	}
	if v.FuelCapacity <= 0 {
		return fmt.Errorf("fuel capacity must be positive")
	}
	if v.Odometer < 0 {
		return fmt.Errorf("odometer must not be negative")
	}
	if v.FuelLevel < 0 || v.FuelLevel > v.FuelCapacity {
		return fmt.Errorf("fuel level must be within [0, %v]", v.FuelCapacity)
	}
	if v.ConsumptionFactor < 0 {
		return fmt.Errorf("consumption factor must not be negative")
	}
	switch v.Status {
	case StatusAvailable, StatusInUse, StatusMaintenance:
	default:
		return fmt.Errorf("unknown vehicle status %q", v.Status)
	}
	return nil
}
