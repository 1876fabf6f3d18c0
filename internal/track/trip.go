package track

import (
	"time"

	"github.com/google/uuid"

	"fleet-monitor/tracker/internal/domain"
	"fleet-monitor/tracker/internal/geo"
	"fleet-monitor/tracker/internal/metrics"
)

// detectTrip advances the IDLE/MOVING state machine for one sample.
// Caller holds st.mu and has already updated the last-position fields;
// prevLat/prevLng carry the position before this sample.
func (t *Tracker) detectTrip(st *vehicleState, sample *domain.LocationSample, prevLat, prevLng float64, hadPosition bool) []domain.Event {
	switch st.tripState {
	case domain.TripStateIdle:
		return t.detectTripStart(st, sample)
	case domain.TripStateMoving:
		return t.detectTripEnd(st, sample, prevLat, prevLng, hadPosition)
	}
	return nil
}

func (t *Tracker) detectTripStart(st *vehicleState, sample *domain.LocationSample) []domain.Event {
	if sample.SpeedKmh <= t.cfg.MovingSpeedKmh {
		st.movingStreak = 0
		return nil
	}

	// Streak samples must fall within a bounded window of the anchor;
	// too slow a cadence restarts the count at the current sample.
	if st.movingStreak > 0 && sample.Timestamp.Sub(st.movingAnchorAt) > t.cfg.MovingStreakWindow {
		st.movingStreak = 0
	}

	if st.movingStreak == 0 {
		st.movingAnchorAt = sample.Timestamp
		st.movingAnchorLat = sample.Latitude
		st.movingAnchorLng = sample.Longitude
		st.movingDistance = 0
		st.movingMaxSpeed = sample.SpeedKmh
	} else {
		st.movingDistance += geo.Haversine(st.movingPrevLat, st.movingPrevLng, sample.Latitude, sample.Longitude)
		if sample.SpeedKmh > st.movingMaxSpeed {
			st.movingMaxSpeed = sample.SpeedKmh
		}
	}
	st.movingPrevLat = sample.Latitude
	st.movingPrevLng = sample.Longitude
	st.movingStreak++

	if st.movingStreak < t.cfg.MovingStreakSamples {
		return nil
	}

	// Transition IDLE -> MOVING. The trip is anchored at the first
	// qualifying sample of the streak, not the one that triggered it.
	trip := &domain.Trip{
		ID:             uuid.NewString(),
		VehicleID:      st.vehicleID,
		FleetID:        st.fleetID,
		StartTime:      st.movingAnchorAt,
		StartLatitude:  st.movingAnchorLat,
		StartLongitude: st.movingAnchorLng,
		DistanceMeters: st.movingDistance,
		MaxSpeedKmh:    st.movingMaxSpeed,
		Status:         domain.TripOngoing,
	}
	updateTripDerived(trip, sample.Timestamp)

	st.trip = trip
	st.tripState = domain.TripStateMoving
	st.movingStreak = 0
	st.idleStreak = 0
	st.idleAnchorSet = false
	st.idleAnchorDistance = 0
	metrics.TripsStarted.Add(1)

	tripCopy := *trip
	return []domain.Event{{
		Kind:      domain.EventTripStart,
		VehicleID: st.vehicleID,
		FleetID:   st.fleetID,
		At:        trip.StartTime,
		Latitude:  trip.StartLatitude,
		Longitude: trip.StartLongitude,
		SpeedKmh:  sample.SpeedKmh,
		Trip:      &tripCopy,
	}}
}

func (t *Tracker) detectTripEnd(st *vehicleState, sample *domain.LocationSample, prevLat, prevLng float64, hadPosition bool) []domain.Event {
	trip := st.trip

	var delta float64
	if hadPosition {
		delta = geo.Haversine(prevLat, prevLng, sample.Latitude, sample.Longitude)
	}
	trip.DistanceMeters += delta
	if sample.SpeedKmh > trip.MaxSpeedKmh {
		trip.MaxSpeedKmh = sample.SpeedKmh
	}
	updateTripDerived(trip, sample.Timestamp)

	if sample.SpeedKmh >= t.cfg.MovingSpeedKmh {
		// Streak broken: the accumulated post-anchor distance stays in
		// the trip, only the anchor is discarded.
		st.idleStreak = 0
		st.idleAnchorSet = false
		st.idleAnchorDistance = 0
		return nil
	}

	if !st.idleAnchorSet {
		st.idleAnchorSet = true
		st.idleAnchorAt = sample.Timestamp
		st.idleAnchorLat = sample.Latitude
		st.idleAnchorLng = sample.Longitude
		st.idleAnchorDistance = 0
	} else {
		st.idleAnchorDistance += delta
	}
	st.idleStreak++

	if st.idleStreak < t.cfg.IdleStreakSamples ||
		sample.Timestamp.Sub(st.idleAnchorAt) < t.cfg.IdleStreakWindow {
		return nil
	}

	// Transition MOVING -> IDLE, anchored at the first sub-threshold
	// sample. Distance that accumulated after the anchor belongs to no
	// trip; roll it back.
	trip.DistanceMeters -= st.idleAnchorDistance
	trip.EndTime = st.idleAnchorAt
	trip.EndLatitude = st.idleAnchorLat
	trip.EndLongitude = st.idleAnchorLng
	trip.Status = domain.TripCompleted
	updateTripDerived(trip, trip.EndTime)

	st.resetToIdle()

	if trip.DurationSeconds < t.cfg.MinTripDuration.Seconds() {
		// Too short to be a real trip: drop it as if it never started.
		metrics.TripsDiscarded.Add(1)
		return nil
	}

	metrics.TripsCompleted.Add(1)
	tripCopy := *trip
	return []domain.Event{{
		Kind:      domain.EventTripEnd,
		VehicleID: st.vehicleID,
		FleetID:   st.fleetID,
		At:        trip.EndTime,
		Latitude:  trip.EndLatitude,
		Longitude: trip.EndLongitude,
		SpeedKmh:  sample.SpeedKmh,
		Trip:      &tripCopy,
	}}
}

// updateTripDerived recomputes duration and average speed up to the given
// timestamp. Duration never goes backwards because samples reach the
// detector in resolved-timestamp order.
func updateTripDerived(trip *domain.Trip, upTo time.Time) {
	trip.DurationSeconds = upTo.Sub(trip.StartTime).Seconds()
	if trip.DurationSeconds > 0 {
		trip.AvgSpeedKmh = trip.DistanceMeters / trip.DurationSeconds * 3.6
	}
}
