package store

import (
	"context"
	"log"
	"sync"
	"time"

	"fleet-monitor/tracker/internal/domain"
)

// AssignmentLoader produces the full vehicle -> geofences mapping.
type AssignmentLoader interface {
	LoadAssignments(ctx context.Context) (map[string][]*domain.Geofence, error)
}

// AssignmentCache satisfies the tracker's geofence lookup with a
// periodically refreshed copy of the vehicle -> geofences mapping.
// Lookups are read-only and may be stale by at most the refresh
// interval, which the core explicitly tolerates.
type AssignmentCache struct {
	db       AssignmentLoader
	interval time.Duration

	mu          sync.RWMutex
	assignments map[string][]*domain.Geofence
}

func NewAssignmentCache(db AssignmentLoader, interval time.Duration) *AssignmentCache {
	return &AssignmentCache{
		db:          db,
		interval:    interval,
		assignments: make(map[string][]*domain.Geofence),
	}
}

func (c *AssignmentCache) AssignedGeofences(vehicleID string) []*domain.Geofence {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.assignments[vehicleID]
}

// Refresh swaps in a fresh mapping. The old map keeps serving readers
// until the swap, so lookups never block on the database.
func (c *AssignmentCache) Refresh(ctx context.Context) error {
	assignments, err := c.db.LoadAssignments(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.assignments = assignments
	c.mu.Unlock()
	return nil
}

// Run refreshes on the configured interval until the context ends. A
// failed refresh keeps the previous mapping; staleness beats an empty
// fence set.
func (c *AssignmentCache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				log.Printf("store: assignment refresh failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
