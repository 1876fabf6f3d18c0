// Package fanout distributes per-sample results to subscribers. Delivery
// is fire-and-forget: the core guarantees handoff to this layer, a slow
// or absent subscriber simply misses messages.
package fanout

import (
	"sync"

	"fleet-monitor/tracker/internal/domain"
	"fleet-monitor/tracker/internal/metrics"
)

// Update is the tuple produced for one processed sample: the updated
// snapshot plus the ordered events it generated.
type Update struct {
	Snapshot domain.TrackSnapshot `json:"snapshot"`
	Events   []domain.Event       `json:"events"`
}

// Subscription is one listener's buffered feed. Close it via Hub
// unsubscription, never by closing C directly.
type Subscription struct {
	C   chan *Update
	id  int
	key subKey
}

type subKey struct {
	fleet bool
	id    string
}

// Hub routes updates to per-vehicle and per-fleet subscribers. Sends
// never block: a subscriber whose buffer is full loses the message and
// the drop is counted.
type Hub struct {
	mu      sync.RWMutex
	nextID  int
	subs    map[subKey]map[int]*Subscription
	bufSize int
}

func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Hub{
		subs:    make(map[subKey]map[int]*Subscription),
		bufSize: bufSize,
	}
}

func (h *Hub) SubscribeVehicle(vehicleID string) *Subscription {
	return h.subscribe(subKey{id: vehicleID})
}

func (h *Hub) SubscribeFleet(fleetID string) *Subscription {
	return h.subscribe(subKey{fleet: true, id: fleetID})
}

func (h *Hub) subscribe(key subKey) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{
		C:   make(chan *Update, h.bufSize),
		id:  h.nextID,
		key: key,
	}
	if h.subs[key] == nil {
		h.subs[key] = make(map[int]*Subscription)
	}
	h.subs[key][sub.id] = sub
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.subs[sub.key]
	if group == nil {
		return
	}
	if _, ok := group[sub.id]; !ok {
		return
	}
	delete(group, sub.id)
	if len(group) == 0 {
		delete(h.subs, sub.key)
	}
	close(sub.C)
}

// Publish hands one update to every subscriber interested in the vehicle
// or its fleet.
func (h *Hub) Publish(update *Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.send(subKey{id: update.Snapshot.VehicleID}, update)
	if update.Snapshot.FleetID != "" {
		h.send(subKey{fleet: true, id: update.Snapshot.FleetID}, update)
	}
}

func (h *Hub) send(key subKey, update *Update) {
	for _, sub := range h.subs[key] {
		select {
		case sub.C <- update:
		default:
			metrics.SubscriberDrops.Add(1)
		}
	}
}

// SubscriberCount reports active subscriptions, for diagnostics.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, group := range h.subs {
		n += len(group)
	}
	return n
}
