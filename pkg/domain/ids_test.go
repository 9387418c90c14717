package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
)

func TestParseSessionID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty string", "", true},
		{"whitespace only", "   ", true},
		{"nil uuid", uuid.Nil.String(), true},
		{"not a uuid", "not-a-uuid", true},
		{"sql injection attempt", "'; DROP TABLE onboarding_sessions;--", true},
		{"null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"oversized input", strings.Repeat("a", 1000), true},
		{"uppercase uuid", "550E8400-E29B-41D4-A716-446655440000", false},
		{"lowercase uuid", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSessionID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAllIDTypesParseConsistently(t *testing.T) {
	valid := uuid.New().String()
	parsers := map[string]func(string) error{
		"organization": func(s string) error { _, err := ParseOrganizationID(s); return err },
		"session":      func(s string) error { _, err := ParseSessionID(s); return err },
		"application":  func(s string) error { _, err := ParseApplicationID(s); return err },
		"employee":     func(s string) error { _, err := ParseEmployeeID(s); return err },
		"user":         func(s string) error { _, err := ParseUserID(s); return err },
	}

	for name, parse := range parsers {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, parse(valid))
			for _, bad := range []string{"", "invalid", uuid.Nil.String()} {
				require.Error(t, parse(bad), "input %q", bad)
			}
		})
	}
}

func TestIDsRoundTripThroughJSON(t *testing.T) {
	type payload struct {
		Session      SessionID      `json:"session_id"`
		Organization OrganizationID `json:"organization_id"`
	}
	in := payload{Session: NewSessionID(), Organization: OrganizationID(uuid.New())}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), in.Session.String())

	var out payload
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)
}
