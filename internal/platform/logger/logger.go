package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a JSON slog logger writing to stdout. Production runs at Info,
// everything else at Debug.
func New(environment string) *slog.Logger {
	return NewWithWriter(os.Stdout, environment)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, environment string) *slog.Logger {
	level := slog.LevelDebug
	if strings.EqualFold(environment, "production") {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})).
		With("service", "onboarding")
}

// Discard returns a logger that drops everything, for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
