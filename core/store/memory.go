package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kilianp07/fleetsync/core/model"
	"github.com/kilianp07/fleetsync/core/validate"
)

// MemoryStore is the in-memory store of record. Each vehicle has an
// exclusive section so two Apply calls for the same vehicle never overlap
// while operations on different vehicles proceed in parallel.
type MemoryStore struct {
	mu        sync.RWMutex
	vehicles  map[string]model.Vehicle
	trips     map[string]model.Trip
	fuelLoads map[string]model.FuelLoad
	openTrips map[string]string // vehicle id -> open trip id
	ledger    map[string]model.Result
	locks     map[string]*sync.Mutex
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vehicles:  map[string]model.Vehicle{},
		trips:     map[string]model.Trip{},
		fuelLoads: map[string]model.FuelLoad{},
		openTrips: map[string]string{},
		ledger:    map[string]model.Result{},
		locks:     map[string]*sync.Mutex{},
	}
}

// AddVehicle registers a vehicle. It is not part of the sync path; fleet
// provisioning happens out of band.
func (s *MemoryStore) AddVehicle(v model.Vehicle) error {
	if err := v.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicles[v.ID] = v
	if _, ok := s.locks[v.ID]; !ok {
		s.locks[v.ID] = &sync.Mutex{}
	}
	return nil
}

// Apply commits op atomically with respect to the targeted vehicle.
// Replaying an idempotency key that has already been decided returns the
// recorded result unchanged with no side effect.
func (s *MemoryStore) Apply(ctx context.Context, op model.Operation) (model.Result, error) {
	if err := ctx.Err(); err != nil {
		return model.Result{}, model.Transient(err)
	}
	if op.IdempotencyKey == "" {
		return model.Result{}, model.Permanentf("operation has no idempotency key")
	}

	s.mu.RLock()
	lock, ok := s.locks[op.VehicleID]
	s.mu.RUnlock()
	if !ok {
		return model.Result{}, model.Permanentf("vehicle %s does not exist", op.VehicleID)
	}

	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	if res, done := s.ledger[op.IdempotencyKey]; done {
		s.mu.RUnlock()
		return res, nil
	}
	snap := s.snapshotLocked(op.VehicleID)
	s.mu.RUnlock()

	verdict := validate.Check(snap, op)
	switch verdict.Code {
	case validate.Reject:
		return s.decide(op, model.Result{Outcome: model.OutcomeRejected, Reason: verdict.Reason}), nil
	case validate.Conflict:
		return s.decide(op, model.Result{Outcome: model.OutcomeConflict, Reason: verdict.Reason}), nil
	}

	res, err := s.commit(snap, op)
	if err != nil {
		return model.Result{}, err
	}
	return s.decide(op, res), nil
}

// decide records the result under the operation's idempotency key.
func (s *MemoryStore) decide(op model.Operation, res model.Result) model.Result {
	s.mu.Lock()
	s.ledger[op.IdempotencyKey] = res
	s.mu.Unlock()
	return res
}

// commit mutates entity state for a validated operation. The caller holds
// the vehicle's exclusive lock.
func (s *MemoryStore) commit(snap validate.Snapshot, op model.Operation) (model.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vehicles[op.VehicleID]
	var remoteID string

	switch op.Kind {
	case model.KindStartTrip:
		p, err := op.StartTrip()
		if err != nil {
			return model.Result{}, model.Permanentf("start_trip payload: %v", err)
		}
		trip := model.Trip{
			ID:            uuid.NewString(),
			VehicleID:     v.ID,
			OdometerStart: p.OdometerStart,
			StartedAt:     op.ClientTime,
			Status:        model.TripInProgress,
			Driver:        op.Driver,
		}
		s.trips[trip.ID] = trip
		s.openTrips[v.ID] = trip.ID
		v.Status = model.StatusInUse
		v.Odometer = p.OdometerStart
		if op.Driver != "" {
			v.AssignedDriver = op.Driver
		}
		remoteID = trip.ID

	case model.KindEndTrip:
		p, err := op.EndTrip()
		if err != nil {
			return model.Result{}, model.Permanentf("end_trip payload: %v", err)
		}
		trip := *snap.OpenTrip
		trip.OdometerEnd = p.OdometerEnd
		trip.EndedAt = op.ClientTime
		trip.Distance = p.OdometerEnd - trip.OdometerStart
		if v.ConsumptionFactor > 0 {
			consumed := trip.Distance / v.ConsumptionFactor
			if consumed > v.FuelLevel {
				consumed = v.FuelLevel // fuel level never goes below zero
			}
			trip.FuelConsumed = consumed
			v.FuelLevel -= consumed
		}
		trip.Status = model.TripCompleted
		s.trips[trip.ID] = trip
		delete(s.openTrips, v.ID)
		v.Status = model.StatusAvailable
		v.Odometer = p.OdometerEnd
		v.AssignedDriver = ""
		remoteID = trip.ID

	case model.KindFuelLoad:
		p, err := op.FuelLoad()
		if err != nil {
			return model.Result{}, model.Permanentf("fuel_load payload: %v", err)
		}
		load := model.FuelLoad{
			ID:         uuid.NewString(),
			VehicleID:  v.ID,
			Odometer:   p.Odometer,
			Liters:     p.Liters,
			Price:      p.Price,
			RecordedAt: op.ClientTime,
		}
		s.fuelLoads[load.ID] = load
		v.FuelLevel += p.Liters
		if v.FuelLevel > v.FuelCapacity {
			v.FuelLevel = v.FuelCapacity
		}
		if p.Odometer > v.Odometer {
			v.Odometer = p.Odometer
		}
		remoteID = load.ID
	}

	s.vehicles[v.ID] = v
	snapCopy := v
	return model.Result{Outcome: model.OutcomeApplied, RemoteID: remoteID, Snapshot: &snapCopy}, nil
}

// snapshotLocked builds the validation snapshot. Caller holds s.mu.
func (s *MemoryStore) snapshotLocked(vehicleID string) validate.Snapshot {
	snap := validate.Snapshot{Vehicle: s.vehicles[vehicleID]}
	if tid, ok := s.openTrips[vehicleID]; ok {
		t := s.trips[tid]
		snap.OpenTrip = &t
	}
	return snap
}

func (s *MemoryStore) GetVehicle(id string) (model.Vehicle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[id]
	return v, ok
}

func (s *MemoryStore) GetTrip(id string) (model.Trip, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trips[id]
	return t, ok
}

func (s *MemoryStore) GetFuelLoad(id string) (model.FuelLoad, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.fuelLoads[id]
	return l, ok
}

// ListTrips returns trips matching the filter ordered by start time.
func (s *MemoryStore) ListTrips(f TripFilter) []model.Trip {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Trip, 0, len(s.trips))
	for _, t := range s.trips {
		if f.VehicleID != "" && t.VehicleID != f.VehicleID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		res = append(res, t)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].StartedAt < res[j].StartedAt })
	return res
}

// ListFuelLoads returns the loads recorded for a vehicle ordered by time.
func (s *MemoryStore) ListFuelLoads(vehicleID string) []model.FuelLoad {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.FuelLoad, 0)
	for _, l := range s.fuelLoads {
		if vehicleID != "" && l.VehicleID != vehicleID {
			continue
		}
		res = append(res, l)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].RecordedAt < res[j].RecordedAt })
	return res
}
