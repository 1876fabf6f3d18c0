package domain

import (
	"errors"
	"time"
)

// Rejection reasons surfaced to ingest callers. Anything else that goes
// wrong during normalization wraps one of these.
var (
	ErrInvalidCoordinates   = errors.New("invalid_coordinates")
	ErrMissingField         = errors.New("missing_field")
	ErrUnparseableTimestamp = errors.New("unparseable_timestamp")
)

// LocationSample is one canonical position reading. Immutable after the
// normalizer constructs it.
type LocationSample struct {
	VehicleID string
	FleetID   string

	Latitude  float64
	Longitude float64

	SpeedKmh float64
	Heading  float64
	// HasHeading distinguishes "device sent 0°" from "device sent nothing".
	HasHeading bool
	AltitudeM  float64

	// DeviceTimestamp is what the device claimed. ReceivedAt is server
	// receipt time. Timestamp is the resolved ordering timestamp: the
	// device clock when trusted, receipt time when not.
	DeviceTimestamp time.Time
	ReceivedAt      time.Time
	Timestamp       time.Time

	// Restamped is set when the device clock was not trusted and
	// Timestamp was taken from ReceivedAt instead.
	Restamped bool
}

// SamePoint reports whether two samples are the duplicate-detection key:
// identical resolved timestamp and position.
func (s *LocationSample) SamePoint(o *LocationSample) bool {
	return s.Timestamp.Equal(o.Timestamp) &&
		s.Latitude == o.Latitude &&
		s.Longitude == o.Longitude
}
