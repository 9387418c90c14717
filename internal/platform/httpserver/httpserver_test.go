package httpserver

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesOptions(t *testing.T) {
	srv := New(":0", http.NotFoundHandler(), WithWriteTimeout(2*time.Minute))
	assert.Equal(t, 2*time.Minute, srv.WriteTimeout)
	assert.Equal(t, 2*time.Minute, srv.ReadTimeout)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
}

func TestServeStopsOnCancel(t *testing.T) {
	srv := New("127.0.0.1:0", http.NotFoundHandler())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, srv, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Second)
	}()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeReturnsListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	srv := New(l.Addr().String(), http.NotFoundHandler())
	err = Serve(context.Background(), srv, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Second)
	require.Error(t, err)
}
