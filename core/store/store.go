// Package store owns the authoritative vehicle, trip and fuel load
// entities. All mutation flows through Apply; reads are snapshot copies.
package store

import (
	"context"

	"github.com/kilianp07/fleetsync/core/model"
)

// TripFilter narrows ListTrips results. Zero values match everything.
type TripFilter struct {
	VehicleID string
	Status    model.TripStatus
}

// Applier is the write boundary between the sync coordinator and the
// store of record. Apply returns a domain Result for decided operations;
// the error value is reserved for transport-level failures
// (TransientError) and missing entities (PermanentError).
type Applier interface {
	Apply(ctx context.Context, op model.Operation) (model.Result, error)
}

// Store adds the read accessors used by listing and reporting features.
type Store interface {
	Applier
	GetVehicle(id string) (model.Vehicle, bool)
	GetTrip(id string) (model.Trip, bool)
	GetFuelLoad(id string) (model.FuelLoad, bool)
	ListTrips(f TripFilter) []model.Trip
	ListFuelLoads(vehicleID string) []model.FuelLoad
}
