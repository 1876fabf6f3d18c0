package pipeline

import (
	"context"
	"log"
	"time"

	"fleet-monitor/tracker/internal/domain"
	"fleet-monitor/tracker/internal/metrics"
)

// EventStore is the slice of persistence the writer needs.
type EventStore interface {
	InsertTrip(ctx context.Context, trip *domain.Trip) error
	CopyGeofenceEvents(ctx context.Context, events []*domain.GeofenceEvent) error
	InsertAlert(ctx context.Context, alert *domain.Alert) error
}

// EventWriter persists emitted events asynchronously. Geofence events are
// high-volume and go through CopyFrom in batches; trips and alerts are
// rare enough for single inserts. Persistence is a downstream effect the
// sample pipeline never waits on.
type EventWriter struct {
	ch        chan domain.Event
	db        EventStore
	batchSize int
	flushMS   int
}

func NewEventWriter(db EventStore, queueSize, batchSize, flushMS int) *EventWriter {
	return &EventWriter{
		ch:        make(chan domain.Event, queueSize),
		db:        db,
		batchSize: batchSize,
		flushMS:   flushMS,
	}
}

// Enqueue hands events off without blocking; a saturated writer drops and
// counts rather than stalling ingestion.
func (w *EventWriter) Enqueue(events ...domain.Event) {
	for _, ev := range events {
		if ev.Kind == domain.EventLocationUpdate {
			// Raw location history is the ingestion store's problem,
			// not this writer's.
			continue
		}
		select {
		case w.ch <- ev:
		default:
			metrics.DBWriteFailures.Add(1)
		}
	}
}

func (w *EventWriter) Run(ctx context.Context) {
	batch := make([]*domain.GeofenceEvent, 0, w.batchSize)
	ticker := time.NewTicker(time.Duration(w.flushMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-w.ch:
			if !ok {
				w.flushGeofence(ctx, batch)
				return
			}
			switch ev.Kind {
			case domain.EventGeofence:
				batch = append(batch, ev.Geofence)
				if len(batch) >= w.batchSize {
					w.flushGeofence(ctx, batch)
					batch = batch[:0]
				}
			case domain.EventTripEnd:
				w.writeTrip(ctx, ev.Trip)
			case domain.EventAlert:
				w.writeAlert(ctx, ev.Alert)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flushGeofence(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			w.flushGeofence(ctx, batch)
			return
		}
	}
}

// Close drains and stops the writer once Run has observed the close.
func (w *EventWriter) Close() {
	close(w.ch)
}

func (w *EventWriter) flushGeofence(ctx context.Context, batch []*domain.GeofenceEvent) {
	if len(batch) == 0 {
		return
	}
	err := w.db.CopyGeofenceEvents(ctx, batch)
	if err != nil {
		log.Printf("pipeline: geofence event write failed (batch=%d), retrying: %v", len(batch), err)
		time.Sleep(500 * time.Millisecond)
		err = w.db.CopyGeofenceEvents(ctx, batch)
		if err != nil {
			log.Printf("pipeline: geofence event write permanently failed (batch=%d): %v", len(batch), err)
			metrics.DBWriteFailures.Add(int64(len(batch)))
			return
		}
	}
	metrics.DBWriteSuccess.Add(int64(len(batch)))
}

func (w *EventWriter) writeTrip(ctx context.Context, trip *domain.Trip) {
	if trip == nil {
		return
	}
	if err := w.db.InsertTrip(ctx, trip); err != nil {
		log.Printf("pipeline: trip write failed for %s: %v", trip.ID, err)
		metrics.DBWriteFailures.Add(1)
		return
	}
	metrics.DBWriteSuccess.Add(1)
}

func (w *EventWriter) writeAlert(ctx context.Context, alert *domain.Alert) {
	if alert == nil {
		return
	}
	if err := w.db.InsertAlert(ctx, alert); err != nil {
		log.Printf("pipeline: alert write failed for %s/%s: %v", alert.VehicleID, alert.Kind, err)
		metrics.DBWriteFailures.Add(1)
		return
	}
	metrics.DBWriteSuccess.Add(1)
}
