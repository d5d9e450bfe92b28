package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetsync/core/model"
)

func newStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	require.NoError(t, s.AddVehicle(model.Vehicle{
		ID:                "v1",
		Odometer:          1000,
		FuelLevel:         10,
		FuelCapacity:      40,
		ConsumptionFactor: 10,
		Status:            model.StatusAvailable,
	}))
	return s
}

func buildOp(t *testing.T, key string, kind model.OperationKind, vehicleID string, payload any) model.Operation {
	t.Helper()
	op, err := model.NewOperation(kind, vehicleID, payload)
	require.NoError(t, err)
	op.IdempotencyKey = key
	return op
}

func TestApply_TripLifecycle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	res, err := s.Apply(ctx, buildOp(t, "k1", model.KindStartTrip, "v1", model.StartTripPayload{OdometerStart: 1000}))
	require.NoError(t, err)
	require.Equal(t, model.OutcomeApplied, res.Outcome)
	require.NotEmpty(t, res.RemoteID)
	assert.Equal(t, model.StatusInUse, res.Snapshot.Status)

	res, err = s.Apply(ctx, buildOp(t, "k2", model.KindEndTrip, "v1", model.EndTripPayload{OdometerEnd: 1050}))
	require.NoError(t, err)
	require.Equal(t, model.OutcomeApplied, res.Outcome)
	assert.Equal(t, model.StatusAvailable, res.Snapshot.Status)
	assert.Equal(t, 1050.0, res.Snapshot.Odometer)
	assert.Equal(t, 5.0, res.Snapshot.FuelLevel) // 50 km at 10 km/L

	trip, ok := s.GetTrip(res.RemoteID)
	require.True(t, ok)
	assert.Equal(t, model.TripCompleted, trip.Status)
	assert.Equal(t, 50.0, trip.Distance)
	assert.Equal(t, 5.0, trip.FuelConsumed)
}

func TestApply_FuelLoadRegressedOdometer(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	res, err := s.Apply(ctx, buildOp(t, "k1", model.KindFuelLoad, "v1", model.FuelLoadPayload{Odometer: 990, Liters: 5}))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeConflict, res.Outcome)

	v, _ := s.GetVehicle("v1")
	assert.Equal(t, 10.0, v.FuelLevel, "conflicting load must not change state")
}

func TestApply_FuelLoadClampsToCapacity(t *testing.T) {
	s := newStore(t)
	res, err := s.Apply(context.Background(), buildOp(t, "k1", model.KindFuelLoad, "v1", model.FuelLoadPayload{Odometer: 1010, Liters: 100, Price: 150}))
	require.NoError(t, err)
	require.Equal(t, model.OutcomeApplied, res.Outcome)
	assert.Equal(t, 40.0, res.Snapshot.FuelLevel)
	assert.Equal(t, 1010.0, res.Snapshot.Odometer)
}

func TestApply_EndTripNegativeDistanceRejected(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Apply(ctx, buildOp(t, "k1", model.KindStartTrip, "v1", model.StartTripPayload{OdometerStart: 1000}))
	require.NoError(t, err)

	res, err := s.Apply(ctx, buildOp(t, "k2", model.KindEndTrip, "v1", model.EndTripPayload{OdometerEnd: 990}))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeRejected, res.Outcome, "negative distance is a validation failure, not a conflict")
}

func TestApply_MidTripFuelLoadKeepsOdometerMonotonic(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Apply(ctx, buildOp(t, "k1", model.KindStartTrip, "v1", model.StartTripPayload{OdometerStart: 1000}))
	require.NoError(t, err)

	res, err := s.Apply(ctx, buildOp(t, "k2", model.KindFuelLoad, "v1", model.FuelLoadPayload{Odometer: 1100, Liters: 5, Price: 8}))
	require.NoError(t, err)
	require.Equal(t, model.OutcomeApplied, res.Outcome)
	assert.Equal(t, 1100.0, res.Snapshot.Odometer)

	// Ending between trip start and the refueled odometer would regress
	// the vehicle.
	res, err = s.Apply(ctx, buildOp(t, "k3", model.KindEndTrip, "v1", model.EndTripPayload{OdometerEnd: 1050}))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeConflict, res.Outcome)

	v, _ := s.GetVehicle("v1")
	assert.Equal(t, 1100.0, v.Odometer, "conflicting end must not change state")
	assert.Equal(t, model.StatusInUse, v.Status)

	res, err = s.Apply(ctx, buildOp(t, "k4", model.KindEndTrip, "v1", model.EndTripPayload{OdometerEnd: 1100}))
	require.NoError(t, err)
	require.Equal(t, model.OutcomeApplied, res.Outcome)
	assert.Equal(t, 1100.0, res.Snapshot.Odometer)
}

func TestApply_SecondStartTripConflicts(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	res1, err := s.Apply(ctx, buildOp(t, "k1", model.KindStartTrip, "v1", model.StartTripPayload{OdometerStart: 1000}))
	require.NoError(t, err)
	res2, err := s.Apply(ctx, buildOp(t, "k2", model.KindStartTrip, "v1", model.StartTripPayload{OdometerStart: 1000}))
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeApplied, res1.Outcome)
	assert.Equal(t, model.OutcomeConflict, res2.Outcome)

	open := s.ListTrips(TripFilter{VehicleID: "v1", Status: model.TripInProgress})
	assert.Len(t, open, 1, "at most one trip in progress per vehicle")
}

func TestApply_IdempotentReplay(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	op := buildOp(t, "same-key", model.KindFuelLoad, "v1", model.FuelLoadPayload{Odometer: 1020, Liters: 5, Price: 8})

	first, err := s.Apply(ctx, op)
	require.NoError(t, err)
	require.Equal(t, model.OutcomeApplied, first.Outcome)

	second, err := s.Apply(ctx, op)
	require.NoError(t, err)
	assert.Equal(t, first, second, "replay returns the recorded result")

	v, _ := s.GetVehicle("v1")
	assert.Equal(t, 15.0, v.FuelLevel, "replay must not double-apply")
	assert.Len(t, s.ListFuelLoads("v1"), 1)
}

func TestApply_UnknownVehiclePermanent(t *testing.T) {
	s := newStore(t)
	_, err := s.Apply(context.Background(), buildOp(t, "k1", model.KindFuelLoad, "ghost", model.FuelLoadPayload{Odometer: 10, Liters: 5}))
	require.Error(t, err)
	assert.True(t, model.IsPermanent(err))
}

func TestApply_OdometerMonotonic(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	last := 0.0
	steps := []struct {
		kind    model.OperationKind
		payload any
	}{
		{model.KindStartTrip, model.StartTripPayload{OdometerStart: 1000}},
		{model.KindEndTrip, model.EndTripPayload{OdometerEnd: 1080}},
		{model.KindFuelLoad, model.FuelLoadPayload{Odometer: 1090, Liters: 10, Price: 15}},
		{model.KindFuelLoad, model.FuelLoadPayload{Odometer: 1050, Liters: 10}}, // conflict
		{model.KindStartTrip, model.StartTripPayload{OdometerStart: 1100}},
		{model.KindEndTrip, model.EndTripPayload{OdometerEnd: 1100}},
	}
	for i, st := range steps {
		op := buildOp(t, fmt.Sprintf("k%d", i), st.kind, "v1", st.payload)
		op.ClientTime = int64(i)
		_, err := s.Apply(ctx, op)
		require.NoError(t, err)
		v, _ := s.GetVehicle("v1")
		require.GreaterOrEqual(t, v.Odometer, last, "odometer regressed at step %d", i)
		require.GreaterOrEqual(t, v.FuelLevel, 0.0)
		require.LessOrEqual(t, v.FuelLevel, v.FuelCapacity)
		last = v.Odometer
	}
}

func TestApply_ConcurrentVehiclesIndependent(t *testing.T) {
	s := NewMemoryStore()
	const n = 20
	for i := 0; i < n; i++ {
		require.NoError(t, s.AddVehicle(model.Vehicle{
			ID:           fmt.Sprintf("v%d", i),
			Odometer:     100,
			FuelLevel:    20,
			FuelCapacity: 50,
			Status:       model.StatusAvailable,
		}))
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("v%d", i)
			ctx := context.Background()
			for j := 0; j < 10; j++ {
				start, err := model.NewOperation(model.KindStartTrip, id, model.StartTripPayload{OdometerStart: float64(100 + j*10)})
				if err != nil {
					t.Errorf("build start: %v", err)
					return
				}
				start.IdempotencyKey = fmt.Sprintf("%s-start-%d", id, j)
				if _, err := s.Apply(ctx, start); err != nil {
					t.Errorf("start: %v", err)
					return
				}
				end, err := model.NewOperation(model.KindEndTrip, id, model.EndTripPayload{OdometerEnd: float64(100 + j*10 + 5)})
				if err != nil {
					t.Errorf("build end: %v", err)
					return
				}
				end.IdempotencyKey = fmt.Sprintf("%s-end-%d", id, j)
				if _, err := s.Apply(ctx, end); err != nil {
					t.Errorf("end: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	for i := 0; i < n; i++ {
		v, ok := s.GetVehicle(fmt.Sprintf("v%d", i))
		require.True(t, ok)
		assert.Equal(t, model.StatusAvailable, v.Status)
		assert.Equal(t, 195.0, v.Odometer)
	}
}
