// Package audit records who did what to which session, application or
// employee. Every event is written as a structured log line and, when a
// store is configured, persisted asynchronously.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gramv/onboardingsoftware-sub000/pkg/attrs"
	"github.com/gramv/onboardingsoftware-sub000/pkg/requestcontext"
)

// Subject attribute keys, checked in order.
var subjectKeys = []string{"session_id", "application_id", "employee_id"}

// Event is one audited action.
type Event struct {
	ID             uuid.UUID
	Action         string
	SubjectID      string
	OrganizationID string
	ActorID        string
	ActorRole      string
	RequestID      string
	Attributes     map[string]string
	Timestamp      time.Time
}

// Store persists events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Recorder writes audit log lines and feeds the optional store.
type Recorder struct {
	logger *slog.Logger
	store  Store
	inbox  chan Event
	done   chan struct{}
}

type Option func(*Recorder)

// WithStore persists events through a buffered queue of size buffer.
func WithStore(store Store, buffer int) Option {
	return func(r *Recorder) {
		if buffer <= 0 {
			buffer = 256
		}
		r.store = store
		r.inbox = make(chan Event, buffer)
	}
}

// NewRecorder creates a Recorder. A nil logger discards log lines.
func NewRecorder(logger *slog.Logger, opts ...Option) *Recorder {
	r := &Recorder{logger: logger, done: make(chan struct{})}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record emits an audit event for action. kv holds slog-style attributes;
// session_id, application_id or employee_id name the subject and
// organization_id, actor_id and actor_role are lifted into the event.
func (r *Recorder) Record(ctx context.Context, action string, kv ...any) {
	if r == nil {
		return
	}
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		kv = append(kv, "request_id", requestID)
	}
	if r.logger != nil {
		args := append(kv, "event", action, "log_type", "audit")
		r.logger.InfoContext(ctx, action, args...)
	}
	if r.inbox == nil {
		return
	}

	event := Event{
		ID:             uuid.New(),
		Action:         action,
		OrganizationID: attrs.ExtractString(kv, "organization_id"),
		ActorID:        firstOf(kv, "actor_id", "reviewer_id"),
		ActorRole:      firstOf(kv, "actor_role", "reviewer_role"),
		RequestID:      requestID,
		Attributes:     attrs.ToMap(kv),
		Timestamp:      requestcontext.Now(ctx),
	}
	event.SubjectID = firstOf(kv, subjectKeys...)

	select {
	case r.inbox <- event:
	default:
		if r.logger != nil {
			r.logger.WarnContext(ctx, "audit queue full, event not persisted", "event", action)
		}
	}
}

// Run persists queued events until ctx is cancelled, then drains whatever
// is still buffered.
func (r *Recorder) Run(ctx context.Context) error {
	defer close(r.done)
	if r.inbox == nil {
		<-ctx.Done()
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return nil
		case event := <-r.inbox:
			r.persist(ctx, event)
		}
	}
}

// Wait blocks until Run has returned or ctx expires.
func (r *Recorder) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event := <-r.inbox:
			r.persist(ctx, event)
		default:
			return
		}
	}
}

func (r *Recorder) persist(ctx context.Context, event Event) {
	if err := r.store.Append(ctx, event); err != nil && r.logger != nil {
		r.logger.ErrorContext(ctx, "failed to persist audit event",
			"error", err,
			"audit_event", event.Action,
			"subject_id", event.SubjectID,
		)
	}
}

func firstOf(kv []any, keys ...string) string {
	for _, k := range keys {
		if v := attrs.ExtractString(kv, k); v != "" {
			return v
		}
	}
	return ""
}
