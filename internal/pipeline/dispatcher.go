package pipeline

import (
	"hash/fnv"
	"sync"

	"fleet-monitor/tracker/internal/domain"
)

// Dispatcher is the ingest worker pool. Vehicle id is the sole partition
// key: every sample for a vehicle lands on the same shard, so one
// goroutine applies that vehicle's samples in submission order and no two
// samples for the same vehicle ever run concurrently. Distinct vehicles
// spread across shards and run fully in parallel.
type Dispatcher struct {
	shards  []chan *domain.LocationSample
	process func(*domain.LocationSample)
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(shardCount, queueSize int, process func(*domain.LocationSample)) *Dispatcher {
	if shardCount <= 0 {
		shardCount = 1
	}
	d := &Dispatcher{
		shards:  make([]chan *domain.LocationSample, shardCount),
		process: process,
	}
	for i := range d.shards {
		ch := make(chan *domain.LocationSample, queueSize)
		d.shards[i] = ch
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for sample := range ch {
				d.process(sample)
			}
		}()
	}
	return d
}

// Submit queues one sample on its vehicle's shard. The send blocks when
// the shard is saturated: ingestion waits rather than reordering or
// dropping. Returns false after Close.
func (d *Dispatcher) Submit(sample *domain.LocationSample) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	d.shards[d.shard(sample.VehicleID)] <- sample
	return true
}

func (d *Dispatcher) shard(vehicleID string) int {
	h := fnv.New32a()
	h.Write([]byte(vehicleID))
	return int(h.Sum32() % uint32(len(d.shards)))
}

// Close stops accepting samples and drains the in-flight per-vehicle
// pipelines before returning.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	for _, ch := range d.shards {
		close(ch)
	}
	d.wg.Wait()
}
