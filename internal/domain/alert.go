package domain

import "time"

type AlertKind string

const (
	AlertOverspeed AlertKind = "OVERSPEED"
	AlertIdle      AlertKind = "IDLE"
	AlertOffline   AlertKind = "OFFLINE"
)

type Alert struct {
	VehicleID string
	FleetID   string
	Kind      AlertKind
	At        time.Time
	Details   map[string]interface{}
}
