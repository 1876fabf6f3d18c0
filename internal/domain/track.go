package domain

import "time"

type TripState string

const (
	TripStateIdle   TripState = "IDLE"
	TripStateMoving TripState = "MOVING"
)

// TrackSnapshot is the externally visible copy of one vehicle's live state.
// The mutable record it is taken from never leaves the tracker.
type TrackSnapshot struct {
	VehicleID    string    `json:"vehicle_id"`
	FleetID      string    `json:"fleet_id"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	SpeedKmh     float64   `json:"speed_kmh"`
	Heading      float64   `json:"heading"`
	HasHeading   bool      `json:"has_heading"`
	LastSampleAt time.Time `json:"last_sample_at"`

	TripState  TripState `json:"trip_state"`
	ActiveTrip *Trip     `json:"active_trip,omitempty"`

	// Geofence ids the vehicle is currently inside.
	InsideGeofences []string `json:"inside_geofences"`
}
