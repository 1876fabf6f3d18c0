package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-monitor/tracker/internal/domain"
)

func depotFence() *domain.Geofence {
	return &domain.Geofence{
		ID:            "gf_cp_depot",
		Name:          "Connaught Place depot",
		Shape:         domain.ShapeCircle,
		Center:        domain.GeoPoint{Latitude: 28.6140, Longitude: 77.2100},
		RadiusMeters:  200,
		NotifyOnEnter: true,
		NotifyOnExit:  true,
	}
}

func TestGeofenceEnterOnApproach(t *testing.T) {
	assignments := staticAssignments{"DL01AB1234": {depotFence()}}
	tr := NewTracker(DefaultConfig(), assignments)

	// Well outside the 200m radius.
	snap, events := tr.Process(sampleAt("DL01AB1234", 0, 28.6200, 77.2200, 20))
	assert.Empty(t, eventsOfKind(events, domain.EventGeofence))
	assert.Empty(t, snap.InsideGeofences)

	// Just inside.
	snap, events = tr.Process(sampleAt("DL01AB1234", 10*time.Second, 28.6141, 77.2101, 15))
	crossings := eventsOfKind(events, domain.EventGeofence)
	require.Len(t, crossings, 1)
	assert.Equal(t, "gf_cp_depot", crossings[0].Geofence.GeofenceID)
	assert.Equal(t, domain.TransitionEnter, crossings[0].Geofence.Transition)
	assert.Equal(t, []string{"gf_cp_depot"}, snap.InsideGeofences)

	// Still inside: no repeat event.
	snap, events = tr.Process(sampleAt("DL01AB1234", 20*time.Second, 28.6142, 77.2102, 10))
	assert.Empty(t, eventsOfKind(events, domain.EventGeofence))
	assert.Equal(t, []string{"gf_cp_depot"}, snap.InsideGeofences)

	// Leaving.
	snap, events = tr.Process(sampleAt("DL01AB1234", 30*time.Second, 28.6200, 77.2200, 25))
	crossings = eventsOfKind(events, domain.EventGeofence)
	require.Len(t, crossings, 1)
	assert.Equal(t, domain.TransitionExit, crossings[0].Geofence.Transition)
	assert.Empty(t, snap.InsideGeofences)
}

func TestGeofenceFirstSampleInsideEmitsEnter(t *testing.T) {
	assignments := staticAssignments{"DL01AB1234": {depotFence()}}
	tr := NewTracker(DefaultConfig(), assignments)

	_, events := tr.Process(sampleAt("DL01AB1234", 0, 28.6140, 77.2100, 0))

	crossings := eventsOfKind(events, domain.EventGeofence)
	require.Len(t, crossings, 1)
	assert.Equal(t, domain.TransitionEnter, crossings[0].Geofence.Transition)
}

func TestGeofenceNotifyFilterStillTracksMembership(t *testing.T) {
	fence := depotFence()
	fence.NotifyOnEnter = false // exit-only fence
	assignments := staticAssignments{"DL01AB1234": {fence}}
	tr := NewTracker(DefaultConfig(), assignments)

	// Entering is tracked but not notified.
	snap, events := tr.Process(sampleAt("DL01AB1234", 0, 28.6140, 77.2100, 10))
	assert.Empty(t, eventsOfKind(events, domain.EventGeofence))
	assert.Equal(t, []string{"gf_cp_depot"}, snap.InsideGeofences)

	// Exiting notifies; this only works if membership was recorded above.
	_, events = tr.Process(sampleAt("DL01AB1234", 10*time.Second, 28.6200, 77.2200, 20))
	crossings := eventsOfKind(events, domain.EventGeofence)
	require.Len(t, crossings, 1)
	assert.Equal(t, domain.TransitionExit, crossings[0].Geofence.Transition)
}

func TestGeofencePolygonContainment(t *testing.T) {
	fence := &domain.Geofence{
		ID:    "gf_airport_cargo",
		Shape: domain.ShapePolygon,
		Vertices: []domain.GeoPoint{
			{Latitude: 28.5500, Longitude: 77.0800},
			{Latitude: 28.5500, Longitude: 77.1200},
			{Latitude: 28.5700, Longitude: 77.1200},
			{Latitude: 28.5700, Longitude: 77.0800},
		},
		NotifyOnEnter: true,
		NotifyOnExit:  true,
	}
	assignments := staticAssignments{"DL01AB1234": {fence}}
	tr := NewTracker(DefaultConfig(), assignments)

	_, events := tr.Process(sampleAt("DL01AB1234", 0, 28.5600, 77.1000, 10))
	crossings := eventsOfKind(events, domain.EventGeofence)
	require.Len(t, crossings, 1)
	assert.Equal(t, domain.TransitionEnter, crossings[0].Geofence.Transition)

	_, events = tr.Process(sampleAt("DL01AB1234", 10*time.Second, 28.5800, 77.1000, 10))
	crossings = eventsOfKind(events, domain.EventGeofence)
	require.Len(t, crossings, 1)
	assert.Equal(t, domain.TransitionExit, crossings[0].Geofence.Transition)
}

func TestGeofenceMalformedShapesSkipped(t *testing.T) {
	degenerate := &domain.Geofence{
		ID:    "gf_broken_poly",
		Shape: domain.ShapePolygon,
		Vertices: []domain.GeoPoint{
			{Latitude: 28.61, Longitude: 77.21},
			{Latitude: 28.62, Longitude: 77.22},
		},
		NotifyOnEnter: true,
	}
	zeroRadius := &domain.Geofence{
		ID:            "gf_broken_circle",
		Shape:         domain.ShapeCircle,
		Center:        domain.GeoPoint{Latitude: 28.6140, Longitude: 77.2100},
		RadiusMeters:  0,
		NotifyOnEnter: true,
	}
	assignments := staticAssignments{"DL01AB1234": {degenerate, zeroRadius, depotFence()}}
	tr := NewTracker(DefaultConfig(), assignments)

	// The broken fences must not block the valid one or the sample.
	snap, events := tr.Process(sampleAt("DL01AB1234", 0, 28.6140, 77.2100, 0))

	crossings := eventsOfKind(events, domain.EventGeofence)
	require.Len(t, crossings, 1)
	assert.Equal(t, "gf_cp_depot", crossings[0].Geofence.GeofenceID)
	assert.Equal(t, []string{"gf_cp_depot"}, snap.InsideGeofences)
}

func TestGeofenceUnassignedMembershipPruned(t *testing.T) {
	assignments := staticAssignments{"DL01AB1234": {depotFence()}}
	tr := NewTracker(DefaultConfig(), assignments)

	snap, _ := tr.Process(sampleAt("DL01AB1234", 0, 28.6140, 77.2100, 0))
	require.Equal(t, []string{"gf_cp_depot"}, snap.InsideGeofences)

	// The fence is unassigned from the vehicle; no EXIT is synthesized,
	// the membership just goes away.
	delete(assignments, "DL01AB1234")
	snap, events := tr.Process(sampleAt("DL01AB1234", 10*time.Second, 28.6141, 77.2101, 0))

	assert.Empty(t, eventsOfKind(events, domain.EventGeofence))
	assert.Empty(t, snap.InsideGeofences)
}

func TestGeofenceOnlyAssignedFencesEvaluated(t *testing.T) {
	other := depotFence()
	other.ID = "gf_other_vehicle"
	assignments := staticAssignments{"DL99ZZ0001": {other}}
	tr := NewTracker(DefaultConfig(), assignments)

	// DL01AB1234 drives straight through the fence assigned to someone else.
	snap, events := tr.Process(sampleAt("DL01AB1234", 0, 28.6140, 77.2100, 10))

	assert.Empty(t, eventsOfKind(events, domain.EventGeofence))
	assert.Empty(t, snap.InsideGeofences)
}
