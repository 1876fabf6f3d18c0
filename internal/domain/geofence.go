package domain

import "time"

type GeofenceShape string

const (
	ShapeCircle  GeofenceShape = "CIRCLE"
	ShapePolygon GeofenceShape = "POLYGON"
)

type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Geofence is read-mostly from the core's perspective; the management
// surface owns it and the core consumes it by reference.
type Geofence struct {
	ID    string
	Name  string
	Shape GeofenceShape

	// Circle fields.
	Center       GeoPoint
	RadiusMeters float64

	// Polygon vertex ring, implicitly closed (last connects to first).
	Vertices []GeoPoint

	// Which transitions the owner wants notifications for. Membership is
	// tracked either way.
	NotifyOnEnter bool
	NotifyOnExit  bool
}

type GeofenceTransition string

const (
	TransitionEnter GeofenceTransition = "ENTER"
	TransitionExit  GeofenceTransition = "EXIT"
)

type GeofenceEvent struct {
	VehicleID  string
	GeofenceID string
	Transition GeofenceTransition
	At         time.Time
	Latitude   float64
	Longitude  float64
}
