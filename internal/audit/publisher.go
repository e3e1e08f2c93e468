package audit

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Publisher accepts events from request paths. Implementations must never
// block the caller: losing an audit event is preferable to stalling a login.
type Publisher interface {
	Publish(event Event)
}

// Sink persists drained events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// ChannelPublisher buffers events on a channel for a background worker.
// When the buffer is full the event is dropped and counted.
type ChannelPublisher struct {
	inbox   chan Event
	dropped atomic.Int64
}

// NewChannelPublisher creates a publisher with the given buffer capacity.
func NewChannelPublisher(capacity int) *ChannelPublisher {
	if capacity <= 0 {
		capacity = 1024
	}
	return &ChannelPublisher{inbox: make(chan Event, capacity)}
}

// Publish enqueues the event, dropping it if the worker has fallen behind.
func (p *ChannelPublisher) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case p.inbox <- event:
	default:
		p.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded due to a full buffer.
func (p *ChannelPublisher) Dropped() int64 {
	return p.dropped.Load()
}

// Worker drains the publisher into a sink until the context is canceled.
type Worker struct {
	publisher *ChannelPublisher
	sink      Sink
	logger    *slog.Logger
}

// NewWorker wires a publisher to a sink.
func NewWorker(publisher *ChannelPublisher, sink Sink, logger *slog.Logger) *Worker {
	return &Worker{publisher: publisher, sink: sink, logger: logger}
}

// Run consumes events until ctx is canceled. Sink failures are logged and
// the worker keeps going; audit must never take the server down.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.publisher.inbox:
			if err := w.sink.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to append audit event",
					"action", event.Action,
					"error", err,
				)
			}
		}
	}
}

// NopPublisher discards all events. Used when auditing is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
