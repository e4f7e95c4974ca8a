// Package eventbus fans session events out to in-process consumers: the
// activity indexer, the duplicator and the log consumer. Publishing never
// blocks a render or a form write.
package eventbus

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/event"
)

const defaultBuffer = 256

// Handler consumes one event. A returned error is logged and does not reach
// the other handlers.
type Handler interface {
	HandleEvent(ctx context.Context, evt event.DomainEvent) error
}

// HandlerFunc lets a plain function act as a Handler.
type HandlerFunc func(ctx context.Context, evt event.DomainEvent) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	return f(ctx, evt)
}

// Bus queues events on a buffered channel. One goroutine delivers them to
// every handler in subscription order, so handlers never run concurrently
// with each other.
type Bus struct {
	mu       sync.RWMutex
	handlers []namedHandler
	stopped  bool

	queue     chan event.DomainEvent
	done      chan struct{}
	closeOnce sync.Once
	log       *zap.Logger
}

var _ event.Publisher = (*Bus)(nil)

type namedHandler struct {
	name    string
	handler Handler
}

// New returns a stopped bus holding at most bufSize pending events.
// bufSize below 1 selects the default.
func New(bufSize int, log *zap.Logger) *Bus {
	if bufSize < 1 {
		bufSize = defaultBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		queue: make(chan event.DomainEvent, bufSize),
		done:  make(chan struct{}),
		log:   log,
	}
}

// Subscribe adds h under name. Call it before Start.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, namedHandler{name: name, handler: h})
}

// Publish queues evt. A full queue drops the event with a warning, and so
// does a bus that has been stopped.
func (b *Bus) Publish(_ context.Context, evt event.DomainEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		b.log.Warn("eventbus: stopped, dropping event",
			zap.String("event_type", evt.EventType), zap.String("event_id", evt.ID))
		return
	}
	select {
	case b.queue <- evt:
	default:
		b.log.Warn("eventbus: buffer full, dropping event",
			zap.String("event_type", evt.EventType), zap.String("event_id", evt.ID))
	}
}

// Start launches the delivery goroutine. It exits when Stop closes the
// queue or ctx ends.
func (b *Bus) Start(ctx context.Context) {
	go b.run(ctx)
}

func (b *Bus) run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case evt, open := <-b.queue:
			if !open {
				return
			}
			b.deliver(ctx, evt)
		case <-ctx.Done():
			b.flush(ctx)
			return
		}
	}
}

// flush delivers whatever is already queued without waiting for more.
func (b *Bus) flush(ctx context.Context) {
	for {
		select {
		case evt, open := <-b.queue:
			if !open {
				return
			}
			b.deliver(ctx, evt)
		default:
			return
		}
	}
}

// Stop closes the queue and blocks until queued events are delivered.
// Calling it more than once is safe.
func (b *Bus) Stop() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.stopped = true
		close(b.queue)
		b.mu.Unlock()
	})
	<-b.done
}

func (b *Bus) deliver(ctx context.Context, evt event.DomainEvent) {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h.handler.HandleEvent(ctx, evt); err != nil {
			b.log.Error("eventbus: handler error",
				zap.String("handler", h.name), zap.String("event_type", evt.EventType), zap.Error(err))
		}
	}
}
