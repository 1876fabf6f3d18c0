package pipeline

import (
	"context"
	"log"
	"time"

	"fleet-monitor/tracker/internal/fanout"
	"fleet-monitor/tracker/internal/metrics"
)

// UpdateSink is where processed updates get mirrored; in production this
// is the redis store.
type UpdateSink interface {
	PublishUpdate(ctx context.Context, update *fanout.Update) error
}

// Publisher ships updates to the external backplane off the ingest path,
// so redis latency never stalls a shard worker.
type Publisher struct {
	ch   chan *fanout.Update
	sink UpdateSink
}

func NewPublisher(sink UpdateSink, queueSize int) *Publisher {
	return &Publisher{
		ch:   make(chan *fanout.Update, queueSize),
		sink: sink,
	}
}

// Enqueue never blocks; when the queue is full the update is dropped and
// counted. Live state self-heals on the next sample.
func (p *Publisher) Enqueue(update *fanout.Update) {
	select {
	case p.ch <- update:
	default:
		metrics.SubscriberDrops.Add(1)
	}
}

func (p *Publisher) Run(ctx context.Context) {
	batch := make([]*fanout.Update, 0, 100)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case update, ok := <-p.ch:
			if !ok {
				p.flush(ctx, batch)
				return
			}
			batch = append(batch, update)
			if len(batch) >= 100 {
				p.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				p.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			p.flush(ctx, batch)
			return
		}
	}
}

func (p *Publisher) flush(ctx context.Context, batch []*fanout.Update) {
	for _, update := range batch {
		if err := p.sink.PublishUpdate(ctx, update); err != nil {
			log.Printf("pipeline: state publish failed for %s: %v", update.Snapshot.VehicleID, err)
		}
	}
}
