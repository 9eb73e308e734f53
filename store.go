package auth

import (
	"context"
	"slices"
	"sync"
	"time"
)

// SessionStore holds the process wide session. Only the controller in this
// package writes to it; everybody else reads snapshots or subscribes.
type SessionStore struct {
	mu          sync.RWMutex
	state       AuthState
	session     *Session
	err         error
	version     uint64
	transitions map[AuthState]map[AuthState]struct{}

	subMu  sync.Mutex
	subs   map[uint64]func(Snapshot)
	nextID uint64

	// serializes delivery so subscribers observe snapshots in version order
	notifyMu sync.Mutex

	now          func() time.Time
	logger       Logger
	activitySink ActivitySink
}

// StoreOption customizes store construction.
type StoreOption func(*SessionStore)

// WithStoreClock injects a custom clock (useful for tests).
func WithStoreClock(clock func() time.Time) StoreOption {
	return func(s *SessionStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithStoreLogger overrides the logger used for sink failures.
func WithStoreLogger(logger Logger) StoreOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreActivitySink sets the sink receiving state change events.
func WithStoreActivitySink(sink ActivitySink) StoreOption {
	return func(s *SessionStore) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// NewSessionStore returns a store in the initializing state.
func NewSessionStore(opts ...StoreOption) *SessionStore {
	s := &SessionStore{
		state:        StateInitializing,
		transitions:  defaultTransitions(),
		subs:         map[uint64]func(Snapshot){},
		now:          time.Now,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Snapshot returns the current state.
func (s *SessionStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// State returns the current lifecycle state.
func (s *SessionStore) State() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn for every published snapshot. fn is called once
// right away with the current snapshot. Callbacks run synchronously in
// publish order and must not block for long.
func (s *SessionStore) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.subMu.Unlock()

	s.notifyMu.Lock()
	fn(s.Snapshot())
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *SessionStore) snapshotLocked() Snapshot {
	return Snapshot{
		State:   s.state,
		Session: s.session.Clone(),
		Err:     s.err,
		Version: s.version,
	}
}

func (s *SessionStore) canTransition(from, to AuthState) bool {
	if allowed, ok := s.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

// transition moves the store to target. A session is kept only for the
// authenticated state.
func (s *SessionStore) transition(ctx context.Context, target AuthState, session *Session, opts ...TransitionOption) (Snapshot, error) {
	options := buildTransitionOptions(opts...)

	if target == StateAuthenticated && !session.IsAuthenticated() {
		return Snapshot{}, withMeta(ErrInvalidTransition, map[string]any{
			"to":     target,
			"reason": "authenticated state requires a resolved session",
		})
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	from := s.state
	if !options.force && !s.canTransition(from, target) {
		s.mu.Unlock()
		return Snapshot{}, withMeta(ErrInvalidTransition, map[string]any{
			"from": from,
			"to":   target,
		})
	}

	uid := s.session.UID()
	s.state = target
	if target == StateAuthenticated {
		s.session = session.Clone()
		uid = s.session.UID()
	} else {
		s.session = nil
	}
	s.err = options.err
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if from != target {
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventSessionStateChanged,
			Actor:     ActorRef{ID: uid, Type: ActorTypeUser},
			UserID:    uid,
			FromState: from,
			ToState:   target,
			Metadata:  transitionMetadata(options),
		})
	}

	s.publish(snap)
	return snap, nil
}

// fail records err on the current state without changing it.
func (s *SessionStore) fail(err error) Snapshot {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.err = err
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return snap
}

func (s *SessionStore) publish(snap Snapshot) {
	s.subMu.Lock()
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	s.subMu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		s.subMu.Lock()
		fn, ok := s.subs[id]
		s.subMu.Unlock()
		if ok {
			fn(snap)
		}
	}
}

func (s *SessionStore) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.activitySink.Record(ctx, event); err != nil {
		s.logger.Error("failed to record session activity %s: %v", event.EventType, err)
	}
}

func transitionMetadata(options *transitionOptions) map[string]any {
	meta := map[string]any{}
	if options.reason != "" {
		meta["reason"] = string(options.reason)
	}
	if options.force {
		meta["forced"] = true
	}
	for k, v := range options.metadata {
		meta[k] = v
	}
	return meta
}
