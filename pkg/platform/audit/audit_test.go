package audit_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/audit"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/audit/store/memory"
	"github.com/gramv/onboardingsoftware-sub000/pkg/requestcontext"
)

type role string

func TestRecorderLogsAndPersists(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	store := memory.NewInMemoryStore()
	rec := audit.NewRecorder(logger, audit.WithStore(store, 8))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = rec.Run(ctx) }()

	sessionID := id.NewSessionID()
	orgID := id.NewOrganizationID()
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	reqCtx := requestcontext.WithTime(requestcontext.WithRequestID(context.Background(), "req-1"), at)

	rec.Record(reqCtx, "session_transition",
		"session_id", sessionID,
		"organization_id", orgID,
		"actor_role", role("hr"),
		"to", "approved",
	)

	cancel()
	require.NoError(t, rec.Wait(context.Background()))

	events, err := store.ListBySubject(context.Background(), sessionID.String())
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, "session_transition", e.Action)
	assert.Equal(t, orgID.String(), e.OrganizationID)
	assert.Equal(t, "hr", e.ActorRole)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "approved", e.Attributes["to"])
	assert.Equal(t, at, e.Timestamp)

	assert.Contains(t, buf.String(), `"log_type":"audit"`)
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
}

func TestRecorderWithoutStoreOnlyLogs(t *testing.T) {
	var buf bytes.Buffer
	rec := audit.NewRecorder(slog.New(slog.NewJSONHandler(&buf, nil)))
	rec.Record(context.Background(), "employee_account_activated", "employee_id", "e-1")
	assert.Contains(t, buf.String(), `"event":"employee_account_activated"`)

	var nilRecorder *audit.Recorder
	assert.NotPanics(t, func() { nilRecorder.Record(context.Background(), "noop") })
}
