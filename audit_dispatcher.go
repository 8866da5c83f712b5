package authcore

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher moves security event delivery off the request path.
// A single consumer goroutine feeds the sink from a bounded queue; when
// the queue is full the event is either dropped and counted, or the
// caller waits, per AuditConfig.DropIfFull.
type auditDispatcher struct {
	sink    AuditSink
	queue   chan AuditEvent
	quit    chan struct{}
	wg      sync.WaitGroup
	drops   atomic.Uint64
	stopped atomic.Bool
	once    sync.Once
	block   bool
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:  sink,
		queue: make(chan AuditEvent, size),
		quit:  make(chan struct{}),
		block: !cfg.DropIfFull,
	}

	d.wg.Add(1)
	go d.consume()

	return d
}

func (d *auditDispatcher) consume() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		case <-d.quit:
			d.flush()
			return
		}
	}
}

// flush empties whatever the queue holds at shutdown so accepted events
// are not lost.
func (d *auditDispatcher) flush() {
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.stopped.Load() {
		return
	}

	if !d.block {
		select {
		case d.queue <- event:
		default:
			d.drops.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.quit:
	}
}

// Close stops accepting events, flushes the queue, and waits for the
// consumer to exit.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.stopped.Store(true)
		close(d.quit)
		d.wg.Wait()
	})
}

// Dropped reports how many events were discarded because the queue was
// full.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.drops.Load()
}
