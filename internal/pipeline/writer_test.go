package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-monitor/tracker/internal/domain"
)

type captureStore struct {
	mu              sync.Mutex
	trips           []*domain.Trip
	alerts          []*domain.Alert
	geofenceBatches [][]*domain.GeofenceEvent
	failBatchesLeft int
}

func (c *captureStore) InsertTrip(_ context.Context, trip *domain.Trip) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trips = append(c.trips, trip)
	return nil
}

func (c *captureStore) CopyGeofenceEvents(_ context.Context, events []*domain.GeofenceEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failBatchesLeft > 0 {
		c.failBatchesLeft--
		return errors.New("connection reset")
	}
	batch := make([]*domain.GeofenceEvent, len(events))
	copy(batch, events)
	c.geofenceBatches = append(c.geofenceBatches, batch)
	return nil
}

func (c *captureStore) InsertAlert(_ context.Context, alert *domain.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, alert)
	return nil
}

func (c *captureStore) geofenceTotal() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.geofenceBatches {
		n += len(b)
	}
	return n
}

func runWriter(t *testing.T, w *EventWriter) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writer did not drain after Close")
	}
}

func TestEventWriterPersistsByKind(t *testing.T) {
	store := &captureStore{}
	w := NewEventWriter(store, 64, 10, 20)

	trip := &domain.Trip{ID: "t-1", VehicleID: "DL01AB1234", Status: domain.TripCompleted}
	alert := &domain.Alert{VehicleID: "DL01AB1234", Kind: domain.AlertOverspeed}

	w.Enqueue(
		domain.Event{Kind: domain.EventLocationUpdate, VehicleID: "DL01AB1234"},
		domain.Event{Kind: domain.EventGeofence, Geofence: &domain.GeofenceEvent{GeofenceID: "gf_cp_depot", Transition: domain.TransitionEnter}},
		domain.Event{Kind: domain.EventGeofence, Geofence: &domain.GeofenceEvent{GeofenceID: "gf_cp_depot", Transition: domain.TransitionExit}},
		domain.Event{Kind: domain.EventTripStart, Trip: &domain.Trip{ID: "t-1", Status: domain.TripOngoing}},
		domain.Event{Kind: domain.EventTripEnd, Trip: trip},
		domain.Event{Kind: domain.EventAlert, Alert: alert},
	)
	w.Close()
	runWriter(t, w)

	// Trips are persisted once, on completion.
	require.Len(t, store.trips, 1)
	assert.Equal(t, "t-1", store.trips[0].ID)
	assert.Equal(t, domain.TripCompleted, store.trips[0].Status)

	require.Len(t, store.alerts, 1)
	assert.Equal(t, domain.AlertOverspeed, store.alerts[0].Kind)

	assert.Equal(t, 2, store.geofenceTotal())
}

func TestEventWriterBatchesGeofenceEvents(t *testing.T) {
	store := &captureStore{}
	w := NewEventWriter(store, 64, 3, 1000)

	for i := 0; i < 7; i++ {
		w.Enqueue(domain.Event{Kind: domain.EventGeofence, Geofence: &domain.GeofenceEvent{GeofenceID: "gf_cp_depot"}})
	}
	w.Close()
	runWriter(t, w)

	// 7 events at batch size 3: two full batches plus the drain flush.
	assert.Equal(t, 7, store.geofenceTotal())
	require.Len(t, store.geofenceBatches, 3)
	assert.Len(t, store.geofenceBatches[0], 3)
	assert.Len(t, store.geofenceBatches[1], 3)
	assert.Len(t, store.geofenceBatches[2], 1)
}

func TestEventWriterRetriesFailedBatchOnce(t *testing.T) {
	store := &captureStore{failBatchesLeft: 1}
	w := NewEventWriter(store, 64, 10, 20)

	w.Enqueue(domain.Event{Kind: domain.EventGeofence, Geofence: &domain.GeofenceEvent{GeofenceID: "gf_cp_depot"}})
	w.Close()
	runWriter(t, w)

	assert.Equal(t, 1, store.geofenceTotal())
}

func TestEventWriterSkipsNilPayloads(t *testing.T) {
	store := &captureStore{}
	w := NewEventWriter(store, 64, 10, 20)

	w.Enqueue(
		domain.Event{Kind: domain.EventTripEnd},
		domain.Event{Kind: domain.EventAlert},
	)
	w.Close()
	runWriter(t, w)

	assert.Empty(t, store.trips)
	assert.Empty(t, store.alerts)
}
