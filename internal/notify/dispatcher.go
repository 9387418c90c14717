package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("notify: dispatcher closed")

// Dispatcher queues notifications in a bounded buffer and delivers them to
// a Relay from a background worker, retrying with exponential backoff.
type Dispatcher struct {
	relay      Relay
	logger     *slog.Logger
	metrics    *Metrics
	maxRetries int
	backoff    time.Duration

	queue chan Notification
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithBufferSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Notification, n)
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.maxRetries = n
		}
	}
}

// WithBackoff sets the delay before the first retry. It doubles per attempt.
func WithBackoff(base time.Duration) Option {
	return func(d *Dispatcher) {
		d.backoff = base
	}
}

// NewDispatcher starts the delivery worker.
func NewDispatcher(relay Relay, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		relay:      relay,
		logger:     slog.Default(),
		maxRetries: 3,
		backoff:    200 * time.Millisecond,
		queue:      make(chan Notification, 256),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.run()
	return d
}

// Notify enqueues n without blocking. A full buffer drops the message and
// counts it; the caller's transition is never affected.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	select {
	case d.queue <- n:
		d.metrics.enqueued(n.Kind)
		return nil
	default:
		d.metrics.dropped(n.Kind)
		d.logger.WarnContext(ctx, "notification dropped, buffer full",
			"kind", n.Kind,
			"recipient_role", n.Recipient.Role,
			"session_id", n.SessionID,
		)
		return nil
	}
}

// Close stops accepting notifications and waits for the buffer to drain or
// ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n Notification) {
	ctx := context.Background()
	delay := d.backoff
	var err error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay *= 2
		}
		start := time.Now()
		err = d.relay.Notify(ctx, n)
		d.metrics.observe(n.Kind, start)
		if err == nil {
			d.metrics.delivered(n.Kind)
			return
		}
		d.logger.Warn("notification delivery failed",
			"kind", n.Kind,
			"attempt", attempt+1,
			"session_id", n.SessionID,
			"error", err,
		)
	}
	d.metrics.failed(n.Kind)
	d.logger.Error("notification abandoned after retries",
		"kind", n.Kind,
		"recipient_role", n.Recipient.Role,
		"session_id", n.SessionID,
		"error", err,
	)
}
