package domain

import "time"

type TripStatus string

const (
	TripOngoing   TripStatus = "ONGOING"
	TripCompleted TripStatus = "COMPLETED"
)

type Trip struct {
	ID        string
	VehicleID string
	FleetID   string

	StartTime      time.Time
	EndTime        time.Time
	StartLatitude  float64
	StartLongitude float64
	EndLatitude    float64
	EndLongitude   float64

	DistanceMeters  float64
	DurationSeconds float64
	AvgSpeedKmh     float64
	MaxSpeedKmh     float64

	Status TripStatus
}
