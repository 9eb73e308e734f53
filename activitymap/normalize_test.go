package activitymap_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/goliatone/go-console-auth"
	"github.com/goliatone/go-console-auth/activitymap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStateTransition(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventSessionStateChanged,
		Actor:     auth.ActorRef{ID: "uid-7", Type: auth.ActorTypeUser},
		UserID:    "uid-7",
		FromState: auth.StateResolving,
		ToState:   auth.StateAuthenticated,
		Metadata: map[string]any{
			"reason": string(auth.ReasonSignIn),
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	assert.Equal(t, "uid-7", out.ActorID)
	assert.Equal(t, string(auth.ActivityEventSessionStateChanged), out.Verb)
	assert.Equal(t, "session", out.ObjectType)
	assert.Equal(t, "uid-7", out.ObjectID)
	assert.Equal(t, "console", out.Channel)
	assert.True(t, out.OccurredAt.Equal(ts))

	assert.Equal(t, string(auth.ReasonSignIn), out.Metadata["reason"])
	assert.Equal(t, auth.ActorTypeUser, out.Metadata[activitymap.MetadataKeyActorType])
	assert.Equal(t, "resolving", out.Metadata[activitymap.MetadataKeyFromState])
	assert.Equal(t, "authenticated", out.Metadata[activitymap.MetadataKeyToState])

	assert.Len(t, event.Metadata, 1, "source metadata is not mutated")
}

func TestNormalizeOptions(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventPasswordResetSent,
		Actor:     auth.ActorRef{Type: auth.ActorTypeSystem},
		Metadata: map[string]any{
			activitymap.MetadataKeyActorType: "existing",
		},
	}

	out := activitymap.Normalize(event,
		activitymap.WithChannel("security"),
		activitymap.WithObjectType("account"),
		activitymap.WithActorFallback("idle-guard"),
		activitymap.WithClock(func() time.Time { return fixed }),
	)

	assert.Equal(t, "security", out.Channel)
	assert.Equal(t, "account", out.ObjectType)
	assert.Equal(t, "idle-guard", out.ActorID)
	assert.Empty(t, out.ObjectID)
	assert.Equal(t, "existing", out.Metadata[activitymap.MetadataKeyActorType])
	assert.True(t, out.OccurredAt.Equal(fixed))
}

func TestNormalizeActorFallbackChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  auth.ActivityEvent
		expect string
	}{
		{
			name:   "actor id",
			event:  auth.ActivityEvent{Actor: auth.ActorRef{ID: "actor-1"}, UserID: "user-1"},
			expect: "actor-1",
		},
		{
			name:   "user id when actor missing",
			event:  auth.ActivityEvent{UserID: "user-2"},
			expect: "user-2",
		},
		{
			name:   "system when both missing",
			event:  auth.ActivityEvent{},
			expect: "system",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expect, activitymap.Normalize(tc.event).ActorID)
		})
	}
}

func TestSinkForwardsNormalizedRecords(t *testing.T) {
	var got []activitymap.Normalized
	sink := activitymap.Sink(func(_ context.Context, n activitymap.Normalized) error {
		got = append(got, n)
		return nil
	}, activitymap.WithChannel("audit"))

	err := sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventSignOut,
		UserID:    "uid-9",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "audit", got[0].Channel)
	assert.Equal(t, string(auth.ActivityEventSignOut), got[0].Verb)
	assert.Nil(t, got[0].Metadata)
}
