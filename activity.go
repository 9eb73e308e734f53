package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSessionStateChanged ActivityEventType = "session.state.changed"
	ActivityEventLoginSuccess        ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure        ActivityEventType = "auth.login.failure"
	ActivityEventSignOut             ActivityEventType = "auth.sign_out"
	ActivityEventRegistered          ActivityEventType = "auth.registered"
	ActivityEventProfileUpdated      ActivityEventType = "profile.updated"
	ActivityEventEmailChanged        ActivityEventType = "auth.email.changed"
	ActivityEventPasswordChanged     ActivityEventType = "auth.password.changed"
	ActivityEventPasswordResetSent   ActivityEventType = "auth.password.reset_requested"
	ActivityEventConsistencyFailure  ActivityEventType = "auth.consistency.failure"
)

// ActorRef identifies who/what triggered an action.
type ActorRef struct {
	ID   string
	Type string
}

const (
	ActorTypeUser     = "user"
	ActorTypeSystem   = "system"
	ActorTypeProvider = "provider"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	FromState  AuthState
	ToState    AuthState
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiActivitySink fans events out to every sink, returning the first error.
type MultiActivitySink []ActivitySink

// Record implements ActivitySink.
func (m MultiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
