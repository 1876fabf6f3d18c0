package pipeline

import (
	"context"
	"log"
	"time"

	"fleet-monitor/tracker/internal/domain"
	"fleet-monitor/tracker/internal/fanout"
)

// LivenessSource is the tracker surface the checker needs: the periodic
// offline sweep plus snapshot lookup for the resulting updates.
type LivenessSource interface {
	CheckLiveness(now time.Time) []domain.Event
	CurrentState(vehicleID string) (domain.TrackSnapshot, error)
}

// OfflineClaimer dedupes OFFLINE alerts across tracker instances. Nil
// means single-instance operation, no external claim.
type OfflineClaimer interface {
	ClaimOfflineAlert(ctx context.Context, vehicleID string, ttl time.Duration) (bool, error)
}

// LivenessChecker drives offline detection on a fixed schedule,
// independent of sample arrival — the absence of samples is exactly the
// condition being detected.
type LivenessChecker struct {
	tracker  LivenessSource
	hub      *fanout.Hub
	writer   *EventWriter
	claimer  OfflineClaimer
	interval time.Duration
	claimTTL time.Duration
}

func NewLivenessChecker(tracker LivenessSource, hub *fanout.Hub, writer *EventWriter, claimer OfflineClaimer, interval, claimTTL time.Duration) *LivenessChecker {
	return &LivenessChecker{
		tracker:  tracker,
		hub:      hub,
		writer:   writer,
		claimer:  claimer,
		interval: interval,
		claimTTL: claimTTL,
	}
}

func (c *LivenessChecker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			c.Tick(ctx, now)
		case <-ctx.Done():
			return
		}
	}
}

// Tick runs one liveness sweep. Split out from Run so tests and external
// schedulers can drive it directly with a chosen clock.
func (c *LivenessChecker) Tick(ctx context.Context, now time.Time) {
	for _, ev := range c.tracker.CheckLiveness(now) {
		if c.claimer != nil {
			claimed, err := c.claimer.ClaimOfflineAlert(ctx, ev.VehicleID, c.claimTTL)
			if err != nil {
				log.Printf("pipeline: offline claim failed for %s: %v", ev.VehicleID, err)
			} else if !claimed {
				// Another instance already raised this gap's alert.
				continue
			}
		}

		snap, err := c.tracker.CurrentState(ev.VehicleID)
		if err != nil {
			continue
		}
		update := &fanout.Update{
			Snapshot: snap,
			Events:   []domain.Event{ev},
		}
		c.hub.Publish(update)
		if c.writer != nil {
			c.writer.Enqueue(ev)
		}
	}
}
