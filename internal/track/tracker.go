package track

import (
	"errors"
	"log"
	"sync"
	"time"

	"fleet-monitor/tracker/internal/domain"
	"fleet-monitor/tracker/internal/geo"
	"fleet-monitor/tracker/internal/metrics"
)

var ErrVehicleNotFound = errors.New("vehicle not found")

// AssignmentSource resolves the geofences assigned to a vehicle. It may
// serve results that are stale by a bounded refresh interval; the tracker
// does not require strong consistency here.
type AssignmentSource interface {
	AssignedGeofences(vehicleID string) []*domain.Geofence
}

// Tracker is the process-wide registry of vehicle state. The registry map
// needs a concurrency-safe insert-if-absent on first sight of a vehicle;
// after that, distinct entries are only ever touched independently under
// their own locks.
type Tracker struct {
	cfg         Config
	assignments AssignmentSource
	vehicles    sync.Map // vehicleID -> *vehicleState
}

func NewTracker(cfg Config, assignments AssignmentSource) *Tracker {
	return &Tracker{cfg: cfg, assignments: assignments}
}

func (t *Tracker) state(vehicleID, fleetID string) *vehicleState {
	if v, ok := t.vehicles.Load(vehicleID); ok {
		return v.(*vehicleState)
	}
	v, _ := t.vehicles.LoadOrStore(vehicleID, newVehicleState(vehicleID, fleetID))
	return v.(*vehicleState)
}

// Process applies one normalized sample to its vehicle's state and
// returns the updated snapshot plus the ordered events produced. Stale
// and duplicate samples are absorbed silently: the snapshot comes back
// unchanged with no events. Samples for the same vehicle must arrive here
// in resolved-timestamp order; the pipeline's sharding guarantees that.
func (t *Tracker) Process(sample *domain.LocationSample) (domain.TrackSnapshot, []domain.Event) {
	st := t.state(sample.VehicleID, sample.FleetID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.hasPosition && !sample.Timestamp.After(st.lastSampleAt) {
		if sample.Timestamp.Equal(st.lastSampleAt) &&
			sample.Latitude == st.latitude && sample.Longitude == st.longitude {
			metrics.DuplicateDropped.Add(1)
			return st.snapshot(), nil
		}
		// The device clock went backwards relative to this vehicle's
		// stream. Re-stamp to receipt time when that still preserves
		// order, otherwise drop as stale.
		if sample.ReceivedAt.After(st.lastSampleAt) {
			restamped := *sample
			restamped.Timestamp = sample.ReceivedAt
			restamped.Restamped = true
			sample = &restamped
		} else {
			metrics.StaleDropped.Add(1)
			return st.snapshot(), nil
		}
	}

	// A MOVING vehicle with no active trip is a broken contract. Fatal
	// to this vehicle's pipeline only: reset to IDLE and keep going.
	if st.tripState == domain.TripStateMoving && st.trip == nil {
		log.Printf("track: invariant violation for vehicle %s: MOVING with no active trip, resetting to IDLE", st.vehicleID)
		metrics.InvariantResets.Add(1)
		st.resetToIdle()
	}

	prevLat, prevLng := st.latitude, st.longitude
	hadPosition := st.hasPosition

	st.latitude = sample.Latitude
	st.longitude = sample.Longitude
	st.speedKmh = sample.SpeedKmh
	st.lastSampleAt = sample.Timestamp
	st.hasPosition = true
	st.offlineAlerted = false
	if sample.HasHeading {
		st.heading = sample.Heading
		st.hasHeading = true
	} else if hadPosition && geo.Haversine(prevLat, prevLng, sample.Latitude, sample.Longitude) > 1 {
		// Missing heading is "unknown", never an error; derive it from
		// movement when there is any.
		st.heading = geo.Bearing(prevLat, prevLng, sample.Latitude, sample.Longitude)
		st.hasHeading = true
	}

	events := make([]domain.Event, 0, 4)
	events = append(events, domain.Event{
		Kind:      domain.EventLocationUpdate,
		VehicleID: sample.VehicleID,
		FleetID:   sample.FleetID,
		At:        sample.Timestamp,
		Latitude:  sample.Latitude,
		Longitude: sample.Longitude,
		SpeedKmh:  sample.SpeedKmh,
	})

	events = append(events, t.detectTrip(st, sample, prevLat, prevLng, hadPosition)...)
	events = append(events, t.evaluateGeofences(st, sample)...)
	events = append(events, t.evaluateAlerts(st, sample)...)

	return st.snapshot(), events
}

// CurrentState returns a copy of a vehicle's live state.
func (t *Tracker) CurrentState(vehicleID string) (domain.TrackSnapshot, error) {
	v, ok := t.vehicles.Load(vehicleID)
	if !ok {
		return domain.TrackSnapshot{}, ErrVehicleNotFound
	}
	st := v.(*vehicleState)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snapshot(), nil
}

// CheckLiveness raises OFFLINE alerts for vehicles whose last sample is
// older than the offline threshold. Driven by an external periodic tick,
// since absence of samples is exactly what it detects. Takes each
// vehicle's lock so it cannot race a sample arriving mid-check; the
// debounce clears only when a new sample arrives.
func (t *Tracker) CheckLiveness(now time.Time) []domain.Event {
	var events []domain.Event
	t.vehicles.Range(func(_, v interface{}) bool {
		st := v.(*vehicleState)
		st.mu.Lock()
		if st.hasPosition && !st.offlineAlerted {
			gap := now.Sub(st.lastSampleAt)
			if gap > t.cfg.OfflineThreshold {
				st.offlineAlerted = true
				metrics.AlertsEmitted.Add(1)
				events = append(events, domain.Event{
					Kind:      domain.EventAlert,
					VehicleID: st.vehicleID,
					FleetID:   st.fleetID,
					At:        now,
					Latitude:  st.latitude,
					Longitude: st.longitude,
					SpeedKmh:  st.speedKmh,
					Alert: &domain.Alert{
						VehicleID: st.vehicleID,
						FleetID:   st.fleetID,
						Kind:      domain.AlertOffline,
						At:        now,
						Details: map[string]interface{}{
							"last_sample_at": st.lastSampleAt,
							"gap_seconds":    gap.Seconds(),
						},
					},
				})
			}
		}
		st.mu.Unlock()
		return true
	})
	return events
}
