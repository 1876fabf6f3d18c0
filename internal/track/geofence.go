package track

import (
	"log"

	"fleet-monitor/tracker/internal/domain"
	"fleet-monitor/tracker/internal/geo"
	"fleet-monitor/tracker/internal/metrics"
)

// evaluateGeofences checks the sample position against the vehicle's
// assigned geofences only, never the full catalogue. Events fire on
// membership transitions; the stored membership is updated regardless of
// whether a notification is configured. Caller holds st.mu.
func (t *Tracker) evaluateGeofences(st *vehicleState, sample *domain.LocationSample) []domain.Event {
	if t.assignments == nil {
		return nil
	}
	fences := t.assignments.AssignedGeofences(st.vehicleID)

	var events []domain.Event
	seen := make(map[string]bool, len(fences))

	for _, fence := range fences {
		contained, ok := contains(fence, sample.Latitude, sample.Longitude)
		if !ok {
			// Malformed geofence: skip it for this vehicle, never
			// fatal to the sample.
			log.Printf("track: skipping malformed geofence %s for vehicle %s", fence.ID, st.vehicleID)
			continue
		}
		seen[fence.ID] = true

		was := st.inside[fence.ID]
		if contained == was {
			continue
		}
		st.inside[fence.ID] = contained

		transition := domain.TransitionEnter
		notify := fence.NotifyOnEnter
		if !contained {
			transition = domain.TransitionExit
			notify = fence.NotifyOnExit
		}
		if !notify {
			continue
		}

		metrics.GeofenceEvents.Add(1)
		events = append(events, domain.Event{
			Kind:      domain.EventGeofence,
			VehicleID: st.vehicleID,
			FleetID:   st.fleetID,
			At:        sample.Timestamp,
			Latitude:  sample.Latitude,
			Longitude: sample.Longitude,
			SpeedKmh:  sample.SpeedKmh,
			Geofence: &domain.GeofenceEvent{
				VehicleID:  st.vehicleID,
				GeofenceID: fence.ID,
				Transition: transition,
				At:         sample.Timestamp,
				Latitude:   sample.Latitude,
				Longitude:  sample.Longitude,
			},
		})
	}

	// Membership for fences no longer assigned is stale noise; drop it
	// so a re-assignment starts from a clean slate.
	for id := range st.inside {
		if !seen[id] {
			delete(st.inside, id)
		}
	}

	return events
}

// contains evaluates a geofence shape. The second return is false when
// the fence definition is malformed.
func contains(fence *domain.Geofence, lat, lng float64) (bool, bool) {
	switch fence.Shape {
	case domain.ShapeCircle:
		if fence.RadiusMeters <= 0 {
			return false, false
		}
		return geo.InCircle(lat, lng, fence.Center.Latitude, fence.Center.Longitude, fence.RadiusMeters), true
	case domain.ShapePolygon:
		if len(fence.Vertices) < 3 {
			return false, false
		}
		lats := make([]float64, len(fence.Vertices))
		lngs := make([]float64, len(fence.Vertices))
		for i, v := range fence.Vertices {
			lats[i] = v.Latitude
			lngs[i] = v.Longitude
		}
		return geo.InPolygon(lat, lng, lats, lngs), true
	}
	return false, false
}
