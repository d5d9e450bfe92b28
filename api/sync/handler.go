// Package sync exposes the store of record over HTTP: the apply boundary
// for field clients plus read-only snapshot endpoints for listing and
// reporting features.
package sync

import (
	"encoding/json"
	"net/http"

	"github.com/kilianp07/fleetsync/core/logger"
	"github.com/kilianp07/fleetsync/core/model"
	"github.com/kilianp07/fleetsync/core/store"
)

// NewMux wires all store endpoints onto a fresh ServeMux.
func NewMux(st store.Store, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/sync/apply", NewApplyHandler(st, log))
	mux.Handle("/api/vehicles", NewVehicleHandler(st))
	mux.Handle("/api/trips", NewTripHandler(st))
	mux.Handle("/api/fuelloads", NewFuelLoadHandler(st))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// NewApplyHandler accepts one operation per POST and answers with the
// store's Result. Missing entities map to 404; everything decided by the
// domain rules answers 200 so clients can distinguish outcomes from
// transport failures.
func NewApplyHandler(st store.Applier, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var op model.Operation
		if err := json.NewDecoder(r.Body).Decode(&op); err != nil {
			http.Error(w, "bad operation: "+err.Error(), http.StatusBadRequest)
			return
		}
		res, err := st.Apply(r.Context(), op)
		if err != nil {
			if model.IsPermanent(err) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			log.Errorf("apply %s: %v", op.IdempotencyKey, err)
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(res); err != nil {
			log.Errorf("encode result: %v", err)
		}
	})
}

// NewVehicleHandler serves GET /api/vehicles?id=<id>.
func NewVehicleHandler(st store.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		v, ok := st.GetVehicle(r.URL.Query().Get("id"))
		if !ok {
			http.Error(w, "vehicle not found", http.StatusNotFound)
			return
		}
		writeJSON(w, v)
	})
}

// NewTripHandler serves GET /api/trips?id= or ?vehicle_id=&status=.
func NewTripHandler(st store.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if id := r.URL.Query().Get("id"); id != "" {
			t, ok := st.GetTrip(id)
			if !ok {
				http.Error(w, "trip not found", http.StatusNotFound)
				return
			}
			writeJSON(w, t)
			return
		}
		f := store.TripFilter{
			VehicleID: r.URL.Query().Get("vehicle_id"),
			Status:    model.TripStatus(r.URL.Query().Get("status")),
		}
		writeJSON(w, st.ListTrips(f))
	})
}

// NewFuelLoadHandler serves GET /api/fuelloads?id= or ?vehicle_id=.
func NewFuelLoadHandler(st store.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if id := r.URL.Query().Get("id"); id != "" {
			l, ok := st.GetFuelLoad(id)
			if !ok {
				http.Error(w, "fuel load not found", http.StatusNotFound)
				return
			}
			writeJSON(w, l)
			return
		}
		writeJSON(w, st.ListFuelLoads(r.URL.Query().Get("vehicle_id")))
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
