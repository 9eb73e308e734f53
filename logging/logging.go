// Package logging adapts zerolog to the console logger contract.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	auth "github.com/goliatone/go-console-auth"
	"github.com/goliatone/go-console-auth/activitymap"
	"github.com/rs/zerolog"
)

// Logger implements auth.Logger on top of zerolog.
type Logger struct {
	zl zerolog.Logger
}

var _ auth.Logger = (*Logger)(nil)

// New builds a logger writing to w at level. Pretty switches to the human
// readable console writer.
func New(w io.Writer, level string, pretty bool) (*Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return &Logger{zl: zl}, nil
}

// FromZerolog wraps an existing zerolog logger.
func FromZerolog(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl}
}

// ParseLevel accepts zerolog level names. Empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("logging: unknown level %q", level)
	}
	return lvl, nil
}

// Named returns a child logger tagged with component.
func (l *Logger) Named(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger()}
}

// Zerolog exposes the underlying logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

func (l *Logger) Debug(format string, args ...any) {
	l.zl.Debug().Msgf(format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.zl.Info().Msgf(format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.zl.Warn().Msgf(format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.zl.Error().Msgf(format, args...)
}

// AuditSink writes every activity event as a structured "activity" line.
func (l *Logger) AuditSink(opts ...activitymap.Option) auth.ActivitySink {
	return activitymap.Sink(func(_ context.Context, n activitymap.Normalized) error {
		evt := l.zl.Info().
			Str("verb", n.Verb).
			Str("actor_id", n.ActorID).
			Str("object_type", n.ObjectType).
			Str("channel", n.Channel).
			Time("occurred_at", n.OccurredAt)
		if n.ObjectID != "" {
			evt = evt.Str("object_id", n.ObjectID)
		}
		if len(n.Metadata) > 0 {
			evt = evt.Fields(map[string]any{"metadata": n.Metadata})
		}
		evt.Msg("activity")
		return nil
	}, opts...)
}
