package model

// TripStatus describes the lifecycle state of a trip.
type TripStatus string

const (
	TripInProgress TripStatus = "in_progress"
	TripCompleted  TripStatus = "completed"
)

// Trip is a single vehicle usage episode from start odometer to end
// odometer. Distance and FuelConsumed are derived when the trip closes.
type Trip struct {
	ID            string     `json:"id"`
	VehicleID     string     `json:"vehicle_id"`
	OdometerStart float64    `json:"odometer_start"`
	OdometerEnd   float64    `json:"odometer_end,omitempty"`
	StartedAt     int64      `json:"started_at"`
	EndedAt       int64      `json:"ended_at,omitempty"`
	Distance      float64    `json:"distance,omitempty"`
	FuelConsumed  float64    `json:"fuel_consumed,omitempty"`
	Status        TripStatus `json:"status"`
	Driver        string     `json:"driver,omitempty"`
}

// FuelLoad records a refuel event. Loads are immutable once created;
// applying one adjusts the owning vehicle's fuel level and odometer.
type FuelLoad struct {
	ID         string  `json:"id"`
	VehicleID  string  `json:"vehicle_id"`
	Odometer   float64 `json:"odometer"`
	Liters     float64 `json:"liters"`
	Price      float64 `json:"price"`
	RecordedAt int64   `json:"recorded_at"`
}
