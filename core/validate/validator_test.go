package validate

import (
	"testing"

	"github.com/kilianp07/fleetsync/core/model"
)

func vehicle() model.Vehicle {
	return model.Vehicle{
		ID:                "v1",
		Odometer:          1000,
		FuelLevel:         10,
		FuelCapacity:      40,
		ConsumptionFactor: 10,
		Status:            model.StatusAvailable,
	}
}

func op(t *testing.T, kind model.OperationKind, payload any) model.Operation {
	t.Helper()
	o, err := model.NewOperation(kind, "v1", payload)
	if err != nil {
		t.Fatalf("build op: %v", err)
	}
	return o
}

func TestCheck_StartTrip(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		odo  float64
		want Code
	}{
		{"ok", Snapshot{Vehicle: vehicle()}, 1000, OK},
		{"ahead of vehicle", Snapshot{Vehicle: vehicle()}, 1500, OK},
		{"stale odometer", Snapshot{Vehicle: vehicle()}, 990, Conflict},
		{"negative odometer", Snapshot{Vehicle: vehicle()}, -1, Reject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Check(tt.snap, op(t, model.KindStartTrip, model.StartTripPayload{OdometerStart: tt.odo}))
			if v.Code != tt.want {
				t.Fatalf("got %v (%s), want %v", v.Code, v.Reason, tt.want)
			}
		})
	}
}

func TestCheck_StartTripVehicleBusy(t *testing.T) {
	snap := Snapshot{Vehicle: vehicle()}
	snap.Vehicle.Status = model.StatusInUse
	v := Check(snap, op(t, model.KindStartTrip, model.StartTripPayload{OdometerStart: 1000}))
	if v.Code != Conflict {
		t.Fatalf("expected conflict for busy vehicle, got %v", v.Code)
	}
}

func TestCheck_StartTripMaintenance(t *testing.T) {
	snap := Snapshot{Vehicle: vehicle()}
	snap.Vehicle.Status = model.StatusMaintenance
	v := Check(snap, op(t, model.KindStartTrip, model.StartTripPayload{OdometerStart: 1000}))
	if v.Code != Conflict {
		t.Fatalf("expected conflict for maintenance vehicle, got %v", v.Code)
	}
}

func TestCheck_EndTrip(t *testing.T) {
	open := &model.Trip{ID: "t1", VehicleID: "v1", OdometerStart: 1000, Status: model.TripInProgress}
	busy := vehicle()
	busy.Status = model.StatusInUse
	refueled := busy
	refueled.Odometer = 1100 // mid-trip fuel load advanced the vehicle

	tests := []struct {
		name    string
		snap    Snapshot
		payload model.EndTripPayload
		want    Code
	}{
		{"ok", Snapshot{Vehicle: busy, OpenTrip: open}, model.EndTripPayload{OdometerEnd: 1050}, OK},
		{"ok with matching trip id", Snapshot{Vehicle: busy, OpenTrip: open}, model.EndTripPayload{TripID: "t1", OdometerEnd: 1050}, OK},
		{"wrong trip id", Snapshot{Vehicle: busy, OpenTrip: open}, model.EndTripPayload{TripID: "t2", OdometerEnd: 1050}, Conflict},
		{"no open trip", Snapshot{Vehicle: vehicle()}, model.EndTripPayload{OdometerEnd: 1050}, Conflict},
		{"negative distance", Snapshot{Vehicle: busy, OpenTrip: open}, model.EndTripPayload{OdometerEnd: 990}, Reject},
		{"zero distance", Snapshot{Vehicle: busy, OpenTrip: open}, model.EndTripPayload{OdometerEnd: 1000}, OK},
		{"behind refueled odometer", Snapshot{Vehicle: refueled, OpenTrip: open}, model.EndTripPayload{OdometerEnd: 1050}, Conflict},
		{"at refueled odometer", Snapshot{Vehicle: refueled, OpenTrip: open}, model.EndTripPayload{OdometerEnd: 1100}, OK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Check(tt.snap, op(t, model.KindEndTrip, tt.payload))
			if v.Code != tt.want {
				t.Fatalf("got %v (%s), want %v", v.Code, v.Reason, tt.want)
			}
		})
	}
}

func TestCheck_FuelLoad(t *testing.T) {
	tests := []struct {
		name    string
		payload model.FuelLoadPayload
		want    Code
	}{
		{"ok", model.FuelLoadPayload{Odometer: 1000, Liters: 20, Price: 30}, OK},
		{"ahead odometer", model.FuelLoadPayload{Odometer: 1100, Liters: 20}, OK},
		{"regressed odometer", model.FuelLoadPayload{Odometer: 990, Liters: 20}, Conflict},
		{"zero liters", model.FuelLoadPayload{Odometer: 1000, Liters: 0}, Reject},
		{"negative liters", model.FuelLoadPayload{Odometer: 1000, Liters: -5}, Reject},
		{"negative price", model.FuelLoadPayload{Odometer: 1000, Liters: 5, Price: -1}, Reject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Check(Snapshot{Vehicle: vehicle()}, op(t, model.KindFuelLoad, tt.payload))
			if v.Code != tt.want {
				t.Fatalf("got %v (%s), want %v", v.Code, v.Reason, tt.want)
			}
		})
	}
}

func TestCheck_WrongVehicle(t *testing.T) {
	o := op(t, model.KindStartTrip, model.StartTripPayload{OdometerStart: 1000})
	o.VehicleID = "v2"
	v := Check(Snapshot{Vehicle: vehicle()}, o)
	if v.Code != Reject {
		t.Fatalf("expected reject for mismatched vehicle, got %v", v.Code)
	}
}
