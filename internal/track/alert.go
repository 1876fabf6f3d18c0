package track

import (
	"fleet-monitor/tracker/internal/domain"
	"fleet-monitor/tracker/internal/geo"
	"fleet-monitor/tracker/internal/metrics"
)

// evaluateAlerts derives overspeed and idle alerts from the sample.
// Offline alerts live in CheckLiveness since they are about the absence
// of samples. Caller holds st.mu.
func (t *Tracker) evaluateAlerts(st *vehicleState, sample *domain.LocationSample) []domain.Event {
	var events []domain.Event

	if sample.SpeedKmh > t.cfg.OverspeedLimitKmh {
		// One alert per episode of continuous overspeed, refreshed
		// every debounce window while the condition holds.
		if !st.overspeedActive || sample.Timestamp.Sub(st.lastOverspeedAt) >= t.cfg.OverspeedDebounce {
			st.lastOverspeedAt = sample.Timestamp
			events = append(events, t.alertEvent(st, sample, domain.AlertOverspeed, map[string]interface{}{
				"speed_kmh": sample.SpeedKmh,
				"limit_kmh": t.cfg.OverspeedLimitKmh,
			}))
		}
		st.overspeedActive = true
	} else {
		st.overspeedActive = false
	}

	// Idle detection only applies while no trip is ongoing; a vehicle
	// stopped in traffic mid-trip is MOVING, not idle.
	if st.tripState == domain.TripStateIdle && sample.SpeedKmh < t.cfg.MovingSpeedKmh {
		moved := st.stationarySet &&
			geo.Haversine(st.stationaryLat, st.stationaryLng, sample.Latitude, sample.Longitude) > t.cfg.IdleJitterMeters
		if !st.stationarySet || moved {
			st.stationarySet = true
			st.stationarySince = sample.Timestamp
			st.stationaryLat = sample.Latitude
			st.stationaryLng = sample.Longitude
			st.idleAlerted = false
		} else if !st.idleAlerted && sample.Timestamp.Sub(st.stationarySince) >= t.cfg.IdleAlertWindow {
			st.idleAlerted = true
			events = append(events, t.alertEvent(st, sample, domain.AlertIdle, map[string]interface{}{
				"stationary_since": st.stationarySince,
				"idle_seconds":     sample.Timestamp.Sub(st.stationarySince).Seconds(),
			}))
		}
	} else {
		st.stationarySet = false
		st.idleAlerted = false
	}

	return events
}

func (t *Tracker) alertEvent(st *vehicleState, sample *domain.LocationSample, kind domain.AlertKind, details map[string]interface{}) domain.Event {
	metrics.AlertsEmitted.Add(1)
	return domain.Event{
		Kind:      domain.EventAlert,
		VehicleID: st.vehicleID,
		FleetID:   st.fleetID,
		At:        sample.Timestamp,
		Latitude:  sample.Latitude,
		Longitude: sample.Longitude,
		SpeedKmh:  sample.SpeedKmh,
		Alert: &domain.Alert{
			VehicleID: st.vehicleID,
			FleetID:   st.fleetID,
			Kind:      kind,
			At:        sample.Timestamp,
			Details:   details,
		},
	}
}
