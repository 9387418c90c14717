package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramv/onboardingsoftware-sub000/pkg/requestcontext"
)

func TestClientIP(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.1 ", ""})
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote string
		xff    string
		realIP string
		want   string
	}{
		{name: "untrusted peer ignores forwarded headers", remote: "203.0.113.9:4000", xff: "198.51.100.1", want: "203.0.113.9"},
		{name: "trusted peer uses right-most untrusted hop", remote: "10.1.2.3:4000", xff: "198.51.100.1, 203.0.113.7, 10.0.0.5", want: "203.0.113.7"},
		{name: "single trusted address", remote: "192.0.2.1:80", xff: "198.51.100.4", want: "198.51.100.4"},
		{name: "real ip used without forwarded for", remote: "10.1.2.3:4000", realIP: " 198.51.100.2 ", want: "198.51.100.2"},
		{name: "all hops trusted falls back to peer", remote: "10.1.2.3:4000", xff: "10.9.9.9", want: "10.1.2.3"},
		{name: "ipv6 peer port stripped", remote: "[::1]:54321", want: "::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, ClientIP(r, trusted))
		})
	}
}

func TestParseTrustedProxiesRejectsGarbage(t *testing.T) {
	_, err := ParseTrustedProxies([]string{"not-an-ip"})
	assert.Error(t, err)
	_, err = ParseTrustedProxies([]string{"10.0.0.0/99"})
	assert.Error(t, err)
}

func TestClientMetadataPopulatesContext(t *testing.T) {
	var gotIP, gotUA string
	h := ClientMetadata(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIP = requestcontext.ClientIP(r.Context())
		gotUA = requestcontext.UserAgent(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.10:443"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")
	r.Header.Set("User-Agent", "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "192.0.2.10", gotIP)
	assert.Contains(t, gotUA, "iPad")
}
