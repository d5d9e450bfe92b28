// Package validate centralizes the domain invariants — odometer
// monotonicity, fuel bounds and the single-active-trip rule — so the state
// store and any client-side optimistic pre-check share one rule set.
package validate

import (
	"fmt"

	"github.com/kilianp07/fleetsync/core/model"
)

// Snapshot is the read-only view of a vehicle the rules are evaluated
// against. OpenTrip is nil when no trip is in progress.
type Snapshot struct {
	Vehicle  model.Vehicle
	OpenTrip *model.Trip
}

// Code classifies a verdict.
type Code int

const (
	// OK means the operation may commit against the snapshot.
	OK Code = iota
	// Reject means the operation is invalid on its own terms.
	Reject
	// Conflict means the operation assumes state the snapshot contradicts.
	Conflict
)

// Verdict is the decision for one operation against one snapshot.
type Verdict struct {
	Code   Code
	Reason string
}

func ok() Verdict { return Verdict{Code: OK} }

func reject(format string, args ...any) Verdict {
	return Verdict{Code: Reject, Reason: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...any) Verdict {
	return Verdict{Code: Conflict, Reason: fmt.Sprintf(format, args...)}
}

// Check evaluates op against snap without mutating anything. The store
// calls it inside its per-vehicle atomic section before committing;
// clients may call it before queuing for early feedback.
func Check(snap Snapshot, op model.Operation) Verdict {
	if op.VehicleID != snap.Vehicle.ID {
		return reject("operation targets vehicle %s, snapshot is %s", op.VehicleID, snap.Vehicle.ID)
	}
	switch op.Kind {
	case model.KindStartTrip:
		return checkStartTrip(snap, op)
	case model.KindEndTrip:
		return checkEndTrip(snap, op)
	case model.KindFuelLoad:
		return checkFuelLoad(snap, op)
	default:
		return reject("unknown operation kind %q", op.Kind)
	}
}

func checkStartTrip(snap Snapshot, op model.Operation) Verdict {
	p, err := op.StartTrip()
	if err != nil {
		return reject("bad start_trip payload: %v", err)
	}
	if p.OdometerStart < 0 {
		return reject("odometer_start must not be negative")
	}
	if snap.Vehicle.Status != model.StatusAvailable {
		return conflict("vehicle %s is %s, not available", snap.Vehicle.ID, snap.Vehicle.Status)
	}
	if snap.OpenTrip != nil {
		return conflict("vehicle %s already has trip %s in progress", snap.Vehicle.ID, snap.OpenTrip.ID)
	}
	if p.OdometerStart < snap.Vehicle.Odometer {
		return conflict("odometer_start %v behind vehicle odometer %v", p.OdometerStart, snap.Vehicle.Odometer)
	}
	return ok()
}

func checkEndTrip(snap Snapshot, op model.Operation) Verdict {
	p, err := op.EndTrip()
	if err != nil {
		return reject("bad end_trip payload: %v", err)
	}
	if snap.OpenTrip == nil {
		return conflict("vehicle %s has no trip in progress", snap.Vehicle.ID)
	}
	if p.TripID != "" && p.TripID != snap.OpenTrip.ID {
		return conflict("trip %s is not the open trip for vehicle %s", p.TripID, snap.Vehicle.ID)
	}
	// Negative distance is a hard validation failure, not a stale view.
	if p.OdometerEnd < snap.OpenTrip.OdometerStart {
		return reject("odometer_end %v below trip start %v", p.OdometerEnd, snap.OpenTrip.OdometerStart)
	}
	// A mid-trip fuel load may have advanced the vehicle past the trip
	// start; ending below that would regress the odometer.
	if p.OdometerEnd < snap.Vehicle.Odometer {
		return conflict("odometer_end %v behind vehicle odometer %v", p.OdometerEnd, snap.Vehicle.Odometer)
	}
	return ok()
}

func checkFuelLoad(snap Snapshot, op model.Operation) Verdict {
	p, err := op.FuelLoad()
	if err != nil {
		return reject("bad fuel_load payload: %v", err)
	}
	if p.Liters <= 0 {
		return reject("liters must be positive")
	}
	if p.Price < 0 {
		return reject("price must not be negative")
	}
	if p.Odometer < snap.Vehicle.Odometer {
		return conflict("load odometer %v behind vehicle odometer %v", p.Odometer, snap.Vehicle.Odometer)
	}
	return ok()
}
