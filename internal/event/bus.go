package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/catalog-service/pkg/logger"
)

// DefaultHandlerTimeout bounds a single handler invocation.
const DefaultHandlerTimeout = 10 * time.Second

// Handler reacts to one event. Returned errors are logged, never propagated
// to the publisher.
type Handler func(ctx context.Context, e Event) error

var handlerResults = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "catalog_event_handler_results_total",
		Help: "Event handler invocations by event and result.",
	},
	[]string{"event", "result"},
)

type subscription struct {
	name    string
	handler Handler
}

// Bus dispatches events to subscribers in-process. Publish never blocks on
// or fails because of a subscriber.
type Bus struct {
	mu       sync.RWMutex
	subs     map[Name][]subscription
	closed   bool
	inflight sync.WaitGroup
	timeout  time.Duration
	logger   *slog.Logger
}

// NewBus creates a bus whose handlers each get at most timeout to run.
func NewBus(timeout time.Duration, logger *slog.Logger) *Bus {
	if timeout <= 0 {
		timeout = DefaultHandlerTimeout
	}
	return &Bus{
		subs:    make(map[Name][]subscription),
		timeout: timeout,
		logger:  logger,
	}
}

// Subscribe registers h for events called name, or for every event when
// name is AllEvents. subscriber labels the handler in logs.
func (b *Bus) Subscribe(name Name, subscriber string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[name] = append(b.subs[name], subscription{name: subscriber, handler: h})
}

// Publish hands e to every matching subscriber, each on its own goroutine
// with a context detached from the caller's cancellation.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if e.CorrelationID == "" {
		e.CorrelationID = logger.CorrelationIDFromContext(ctx)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.WarnContext(ctx, "event bus closed, dropping event", slog.String("event", string(e.Name)))
		return
	}

	detached := context.WithoutCancel(ctx)
	for _, group := range [][]subscription{b.subs[e.Name], b.subs[AllEvents]} {
		for _, sub := range group {
			b.inflight.Add(1)
			go b.dispatch(detached, sub, e)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, sub subscription, e Event) {
	defer b.inflight.Done()

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	log := logger.WithContext(ctx, b.logger).With(
		slog.String("event", string(e.Name)),
		slog.String("subscriber", sub.name),
		slog.Int64("product_id", e.ProductID),
	)

	defer func() {
		if r := recover(); r != nil {
			handlerResults.WithLabelValues(string(e.Name), "panic").Inc()
			log.ErrorContext(ctx, "event handler panicked", slog.String("panic", fmt.Sprint(r)))
		}
	}()

	if err := sub.handler(ctx, e); err != nil {
		handlerResults.WithLabelValues(string(e.Name), "error").Inc()
		log.WarnContext(ctx, "event handler failed", slog.String("error", err.Error()))
		return
	}
	handlerResults.WithLabelValues(string(e.Name), "ok").Inc()
}

// Close stops accepting events and waits for in-flight handlers until ctx
// is done.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for event handlers: %w", ctx.Err())
	}
}
