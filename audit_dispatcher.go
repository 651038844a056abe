package authgate

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher decouples gate operations from the sink: events are queued
// on a buffered channel and delivered by a single background goroutine, so a
// slow sink can never block the request path. Backpressure policy comes from
// AuditConfig.DropIfFull.
type auditDispatcher struct {
	sink       AuditSink
	events     chan AuditEvent
	quit       chan struct{}
	dropIfFull bool

	pumpDone sync.WaitGroup
	dropped  atomic.Uint64
	closed   atomic.Bool
	stopOnce sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}

	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		events:     make(chan AuditEvent, buffer),
		quit:       make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
	}

	d.pumpDone.Add(1)
	go d.pump()

	return d
}

// pump is the single delivery goroutine. On shutdown it drains whatever is
// still queued before exiting, so Close never loses accepted events.
func (d *auditDispatcher) pump() {
	defer d.pumpDone.Done()

	for {
		select {
		case event := <-d.events:
			d.sink.Emit(context.Background(), event)
		case <-d.quit:
			d.drain()
			return
		}
	}
}

func (d *auditDispatcher) drain() {
	for {
		select {
		case event := <-d.events:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

// Emit queues an event for delivery. With DropIfFull the call never blocks;
// otherwise it waits until the queue accepts, the context ends, or the
// dispatcher shuts down. Safe on a nil or closed dispatcher.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.events <- event:
		case <-d.quit:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.events <- event:
	case <-ctx.Done():
	case <-d.quit:
	}
}

// Close stops accepting events and waits for the pump goroutine to deliver
// the queued remainder. Idempotent and safe on a nil dispatcher.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.closed.Store(true)
		close(d.quit)
		d.pumpDone.Wait()
	})
}

// Dropped reports how many events were discarded under backpressure.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
