package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	auth "github.com/goliatone/go-console-auth"
	"github.com/goliatone/go-console-auth/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestLoggerLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := logging.New(buf, "warn", false)
	require.NoError(t, err)

	logger.Debug("hidden %d", 1)
	logger.Info("hidden %d", 2)
	logger.Warn("shown %d", 3)
	logger.Named("idle").Error("expired for %s", "uid-1")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "shown 3", lines[0]["message"])
	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, "idle", lines[1]["component"])
	assert.Equal(t, "expired for uid-1", lines[1]["message"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: "info"},
		{in: "DEBUG", want: "debug"},
		{in: "warning", want: "warn"},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			lvl, err := logging.ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, lvl.String())
		})
	}
}

func TestAuditSink(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := logging.New(buf, "info", false)
	require.NoError(t, err)

	err = logger.AuditSink().Record(context.Background(), auth.ActivityEvent{
		EventType:  auth.ActivityEventSessionStateChanged,
		Actor:      auth.ActorRef{Type: auth.ActorTypeSystem},
		UserID:     "uid-3",
		FromState:  auth.StateAuthenticated,
		ToState:    auth.StateUnauthenticated,
		Metadata:   map[string]any{"reason": string(auth.ReasonIdleTimeout)},
		OccurredAt: time.Date(2024, 3, 1, 9, 10, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "activity", entry["message"])
	assert.Equal(t, string(auth.ActivityEventSessionStateChanged), entry["verb"])
	assert.Equal(t, "uid-3", entry["actor_id"])
	assert.Equal(t, "uid-3", entry["object_id"])

	metadata, ok := entry["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "idle_timeout", metadata["reason"])
	assert.Equal(t, "authenticated", metadata["from_state"])
	assert.Equal(t, "unauthenticated", metadata["to_state"])
}

func TestPrettyLoggerWritesText(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := logging.New(buf, "info", true)
	require.NoError(t, err)

	logger.Info("console listening on %s", ":8080")
	assert.Contains(t, buf.String(), "console listening on :8080")
}
