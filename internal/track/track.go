// Package track owns the per-vehicle live state and the detection logic
// that runs against it: trip lifecycle, geofence transitions and
// threshold alerts. One vehicleState exists per vehicle id; all samples
// for a vehicle are applied under its lock, so the counters below never
// race.
package track

import (
	"sort"
	"sync"
	"time"

	"fleet-monitor/tracker/internal/domain"
)

// Config carries every detection threshold. Zero values are not usable;
// start from DefaultConfig or map it from the env config.
type Config struct {
	MovingSpeedKmh      float64
	MovingStreakSamples int
	MovingStreakWindow  time.Duration
	IdleStreakSamples   int
	IdleStreakWindow    time.Duration
	MinTripDuration     time.Duration

	OverspeedLimitKmh float64
	OverspeedDebounce time.Duration
	IdleAlertWindow   time.Duration
	IdleJitterMeters  float64
	OfflineThreshold  time.Duration
}

func DefaultConfig() Config {
	return Config{
		MovingSpeedKmh:      3.0,
		MovingStreakSamples: 3,
		MovingStreakWindow:  30 * time.Second,
		IdleStreakSamples:   4,
		IdleStreakWindow:    2 * time.Minute,
		MinTripDuration:     60 * time.Second,
		OverspeedLimitKmh:   100.0,
		OverspeedDebounce:   5 * time.Minute,
		IdleAlertWindow:     10 * time.Minute,
		IdleJitterMeters:    25.0,
		OfflineThreshold:    5 * time.Minute,
	}
}

// vehicleState is the authoritative mutable record for one vehicle.
// Everything in here is guarded by mu.
type vehicleState struct {
	mu sync.Mutex

	vehicleID string
	fleetID   string

	hasPosition  bool
	latitude     float64
	longitude    float64
	speedKmh     float64
	heading      float64
	hasHeading   bool
	lastSampleAt time.Time

	tripState domain.TripState
	trip      *domain.Trip

	// Moving-streak counters: consecutive samples above the moving
	// threshold, anchored at the first qualifying sample.
	movingStreak    int
	movingAnchorAt  time.Time
	movingAnchorLat float64
	movingAnchorLng float64
	movingDistance  float64
	movingMaxSpeed  float64
	movingPrevLat   float64
	movingPrevLng   float64

	// Idle-streak counters: consecutive samples below the moving
	// threshold while a trip is ongoing, anchored at the first
	// sub-threshold sample. idleAnchorDistance tracks distance added
	// after the anchor so it can be rolled back when the trip closes
	// there.
	idleStreak         int
	idleAnchorSet      bool
	idleAnchorAt       time.Time
	idleAnchorLat      float64
	idleAnchorLng      float64
	idleAnchorDistance float64

	// Geofence membership, keyed by geofence id. The sole source of
	// truth for transition detection.
	inside map[string]bool

	// Alert debounce state.
	overspeedActive bool
	lastOverspeedAt time.Time
	stationarySet   bool
	stationarySince time.Time
	stationaryLat   float64
	stationaryLng   float64
	idleAlerted     bool
	offlineAlerted  bool
}

func newVehicleState(vehicleID, fleetID string) *vehicleState {
	return &vehicleState{
		vehicleID: vehicleID,
		fleetID:   fleetID,
		tripState: domain.TripStateIdle,
		inside:    make(map[string]bool),
	}
}

// snapshot copies the externally visible state. Caller holds mu.
func (st *vehicleState) snapshot() domain.TrackSnapshot {
	snap := domain.TrackSnapshot{
		VehicleID:    st.vehicleID,
		FleetID:      st.fleetID,
		Latitude:     st.latitude,
		Longitude:    st.longitude,
		SpeedKmh:     st.speedKmh,
		Heading:      st.heading,
		HasHeading:   st.hasHeading,
		LastSampleAt: st.lastSampleAt,
		TripState:    st.tripState,
	}
	if st.trip != nil {
		tripCopy := *st.trip
		snap.ActiveTrip = &tripCopy
	}
	for id, in := range st.inside {
		if in {
			snap.InsideGeofences = append(snap.InsideGeofences, id)
		}
	}
	sort.Strings(snap.InsideGeofences)
	return snap
}

// resetToIdle clears all trip progress. Used both for normal trip close
// and for invariant-violation recovery.
func (st *vehicleState) resetToIdle() {
	st.tripState = domain.TripStateIdle
	st.trip = nil
	st.movingStreak = 0
	st.idleStreak = 0
	st.idleAnchorSet = false
	st.idleAnchorDistance = 0
}
