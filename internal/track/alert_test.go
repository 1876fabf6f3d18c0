package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-monitor/tracker/internal/domain"
)

func alertsOfKind(events []domain.Event, kind domain.AlertKind) []domain.Event {
	var out []domain.Event
	for _, ev := range eventsOfKind(events, domain.EventAlert) {
		if ev.Alert != nil && ev.Alert.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func TestOverspeedOnePerEpisode(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil) // limit 100 km/h, debounce 5min
	const vid = "DL01AB1234"

	// 120 -> alert; 130 same episode -> silent; back under the limit;
	// 140 starts a fresh episode -> alert.
	speeds := []float64{120, 130, 50, 140}
	var alerts []domain.Event
	for i, sp := range speeds {
		_, events := tr.Process(sampleAt(vid, time.Duration(i)*10*time.Second, 28.6+float64(i)*0.01, 77.2, sp))
		alerts = append(alerts, alertsOfKind(events, domain.AlertOverspeed)...)
	}

	require.Len(t, alerts, 2)
	assert.Equal(t, 120.0, alerts[0].Alert.Details["speed_kmh"])
	assert.Equal(t, 140.0, alerts[1].Alert.Details["speed_kmh"])
}

func TestOverspeedRefreshesAfterDebounce(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil) // debounce 5min
	const vid = "DL01AB1234"

	// Continuous overspeed, one sample a minute for six minutes: the
	// alert fires at t0 and again once the debounce window has elapsed.
	var alerts []domain.Event
	for i := 0; i <= 6; i++ {
		_, events := tr.Process(sampleAt(vid, time.Duration(i)*time.Minute, 28.6+float64(i)*0.01, 77.2, 120))
		alerts = append(alerts, alertsOfKind(events, domain.AlertOverspeed)...)
	}

	require.Len(t, alerts, 2)
	assert.Equal(t, testBase, alerts[0].At)
	assert.Equal(t, testBase.Add(5*time.Minute), alerts[1].At)
}

func TestIdleAlertAfterStationaryWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleAlertWindow = time.Minute
	tr := NewTracker(cfg, nil)
	const vid = "DL01AB1234"

	offsets := []time.Duration{0, 30 * time.Second, time.Minute, 90 * time.Second}
	var alerts []domain.Event
	for _, off := range offsets {
		_, events := tr.Process(sampleAt(vid, off, 28.6140, 77.2100, 0))
		alerts = append(alerts, alertsOfKind(events, domain.AlertIdle)...)
	}

	// One alert when the window fills, then silence for the episode.
	require.Len(t, alerts, 1)
	assert.Equal(t, testBase.Add(time.Minute), alerts[0].At)
}

func TestIdleAlertToleratesGPSJitter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleAlertWindow = time.Minute // jitter allowance 25m
	tr := NewTracker(cfg, nil)
	const vid = "DL01AB1234"

	// ~11m of drift between samples: within the jitter allowance, so the
	// stationary episode holds and the alert still fires.
	_, events := tr.Process(sampleAt(vid, 0, 28.61400, 77.2100, 0))
	alerts := alertsOfKind(events, domain.AlertIdle)
	_, events = tr.Process(sampleAt(vid, 30*time.Second, 28.61410, 77.2100, 0))
	alerts = append(alerts, alertsOfKind(events, domain.AlertIdle)...)
	_, events = tr.Process(sampleAt(vid, time.Minute, 28.61405, 77.2100, 0))
	alerts = append(alerts, alertsOfKind(events, domain.AlertIdle)...)

	require.Len(t, alerts, 1)
}

func TestIdleEpisodeResetsOnRealMovement(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleAlertWindow = time.Minute
	tr := NewTracker(cfg, nil)
	const vid = "DL01AB1234"

	var alerts []domain.Event
	collect := func(off time.Duration, lat float64) {
		_, events := tr.Process(sampleAt(vid, off, lat, 77.2100, 0))
		alerts = append(alerts, alertsOfKind(events, domain.AlertIdle)...)
	}

	collect(0, 28.6140)
	collect(time.Minute, 28.6140) // first alert
	require.Len(t, alerts, 1)

	// The vehicle is towed ~1.1km while reporting zero speed: a new
	// stationary anchor, a new episode, a second alert a window later.
	collect(90*time.Second, 28.6240)
	require.Len(t, alerts, 1)
	collect(150*time.Second, 28.6240)
	require.Len(t, alerts, 2)
}

func TestNoIdleAlertMidTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleAlertWindow = 30 * time.Second
	tr := NewTracker(cfg, nil)
	const vid = "DL01AB1234"

	// Start a trip, then sit in traffic for 40s. The vehicle is MOVING
	// with a live trip; stopped-in-traffic is not idling.
	speeds := []float64{10, 12, 15, 0, 0, 0, 0}
	var alerts []domain.Event
	var lastSnap domain.TrackSnapshot
	for i, sp := range speeds {
		snap, events := tr.Process(sampleAt(vid, time.Duration(i)*10*time.Second, 28.6030, 77.2, sp))
		alerts = append(alerts, alertsOfKind(events, domain.AlertIdle)...)
		lastSnap = snap
	}

	assert.Equal(t, domain.TripStateMoving, lastSnap.TripState)
	assert.Empty(t, alerts)
}

func TestOfflineAlertLifecycle(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil) // offline threshold 5min
	const vid = "DL01AB1234"

	tr.Process(sampleAt(vid, 0, 28.6140, 77.2100, 0))

	// Not yet past the threshold.
	assert.Empty(t, tr.CheckLiveness(testBase.Add(4*time.Minute)))

	events := tr.CheckLiveness(testBase.Add(6 * time.Minute))
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Alert)
	assert.Equal(t, domain.AlertOffline, events[0].Alert.Kind)
	assert.Equal(t, vid, events[0].VehicleID)
	assert.InDelta(t, 360.0, events[0].Alert.Details["gap_seconds"], 1e-9)

	// Debounced until the vehicle is heard from again.
	assert.Empty(t, tr.CheckLiveness(testBase.Add(7*time.Minute)))

	tr.Process(sampleAt(vid, 8*time.Minute, 28.6140, 77.2100, 0))
	assert.Empty(t, tr.CheckLiveness(testBase.Add(9*time.Minute)))

	events = tr.CheckLiveness(testBase.Add(14 * time.Minute))
	require.Len(t, events, 1)
	assert.Equal(t, domain.AlertOffline, events[0].Alert.Kind)
}

func TestCheckLivenessSkipsVehiclesNeverSeen(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil)
	assert.Empty(t, tr.CheckLiveness(testBase.Add(time.Hour)))
}
