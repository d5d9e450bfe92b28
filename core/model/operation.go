package model

import (
	"encoding/json"
	"fmt"
)

// OperationKind identifies the mutation a field client captured.
type OperationKind string

const (
	KindStartTrip OperationKind = "start_trip"
	KindEndTrip   OperationKind = "end_trip"
	KindFuelLoad  OperationKind = "fuel_load"
)

// StartTripPayload opens a trip at the given odometer reading.
type StartTripPayload struct {
	OdometerStart float64 `json:"odometer_start"`
}

// EndTripPayload closes a trip. TripID may be empty, in which case the
// single open trip for the vehicle is resolved; a non-empty TripID that
// does not match the open trip is a conflict.
type EndTripPayload struct {
	TripID      string  `json:"trip_id,omitempty"`
	OdometerEnd float64 `json:"odometer_end"`
}

// FuelLoadPayload records a refuel.
type FuelLoadPayload struct {
	Odometer float64 `json:"odometer"`
	Liters   float64 `json:"liters"`
	Price    float64 `json:"price"`
}

// Operation is a single captured mutation targeting one vehicle. The
// idempotency key is generated once when the operation is created and
// reused across retries so duplicate delivery commits at most once.
type Operation struct {
	IdempotencyKey string          `json:"idempotency_key"`
	Kind           OperationKind   `json:"kind"`
	VehicleID      string          `json:"vehicle_id"`
	ClientTime     int64           `json:"client_time"` // logical sequence, not wall clock
	Driver         string          `json:"driver,omitempty"`
	Payload        json.RawMessage `json:"payload"`
}

// StartTrip decodes the payload of a start_trip operation.
func (o Operation) StartTrip() (StartTripPayload, error) {
	var p StartTripPayload
	if o.Kind != KindStartTrip {
		return p, fmt.Errorf("operation kind is %s, not %s", o.Kind, KindStartTrip)
	}
	err := json.Unmarshal(o.Payload, &p)
	return p, err
}

// EndTrip decodes the payload of an end_trip operation.
func (o Operation) EndTrip() (EndTripPayload, error) {
	var p EndTripPayload
	if o.Kind != KindEndTrip {
		return p, fmt.Errorf("operation kind is %s, not %s", o.Kind, KindEndTrip)
	}
	err := json.Unmarshal(o.Payload, &p)
	return p, err
}

// FuelLoad decodes the payload of a fuel_load operation.
func (o Operation) FuelLoad() (FuelLoadPayload, error) {
	var p FuelLoadPayload
	if o.Kind != KindFuelLoad {
		return p, fmt.Errorf("operation kind is %s, not %s", o.Kind, KindFuelLoad)
	}
	err := json.Unmarshal(o.Payload, &p)
	return p, err
}

// NewOperation builds an operation with the given payload marshaled in
// place. It does not assign the idempotency key; callers own that.
func NewOperation(kind OperationKind, vehicleID string, payload any) (Operation, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Operation{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Operation{Kind: kind, VehicleID: vehicleID, Payload: raw}, nil
}

// Outcome classifies the store's decision for an applied operation.
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeRejected Outcome = "rejected"
	OutcomeConflict Outcome = "conflict"
)

// Result is the store's decision for one operation. Snapshot is only set
// for applied results and reflects the vehicle after the commit.
type Result struct {
	Outcome  Outcome  `json:"outcome"`
	RemoteID string   `json:"remote_id,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Snapshot *Vehicle `json:"snapshot,omitempty"`
}

// Applied reports whether the operation committed.
func (r Result) Applied() bool { return r.Outcome == OutcomeApplied }
