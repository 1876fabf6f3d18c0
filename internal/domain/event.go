package domain

import "time"

type EventKind string

const (
	EventLocationUpdate EventKind = "location:update"
	EventTripStart      EventKind = "trip:start"
	EventTripEnd        EventKind = "trip:end"
	EventGeofence       EventKind = "geofence:event"
	EventAlert          EventKind = "alert"
)

// Event is the envelope handed to the fan-out layer. Exactly one of the
// payload pointers matching Kind is set; location:update carries only the
// snapshot fields already present on the envelope.
type Event struct {
	Kind      EventKind `json:"kind"`
	VehicleID string    `json:"vehicle_id"`
	FleetID   string    `json:"fleet_id"`
	At        time.Time `json:"at"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	SpeedKmh  float64 `json:"speed_kmh"`

	Trip     *Trip          `json:"trip,omitempty"`
	Geofence *GeofenceEvent `json:"geofence,omitempty"`
	Alert    *Alert         `json:"alert,omitempty"`
}
