// Package httpserver runs the HTTP listener with graceful shutdown.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

type Option func(*http.Server)

// WithWriteTimeout bounds writing a response, including reading multipart
// document uploads.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *http.Server) {
		s.ReadTimeout = d
		s.WriteTimeout = d
	}
}

// New builds a server for handler. Uploads of signed forms and ID scans
// need a longer read window than the header timeout.
func New(addr string, handler http.Handler, opts ...Option) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Serve listens until ctx is cancelled or the listener fails, then shuts
// down within shutdownTimeout. A listener failure is returned; a shutdown
// that overruns is logged.
func Serve(ctx context.Context, srv *http.Server, log *slog.Logger, shutdownTimeout time.Duration) error {
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Info("shutdown signal received", "addr", srv.Addr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	return nil
}
