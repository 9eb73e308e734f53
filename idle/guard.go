// Package idle signs out sessions that saw no user activity for a while.
package idle

import (
	"context"
	"strings"
	"sync"
	"time"

	auth "github.com/goliatone/go-console-auth"
	"github.com/jonboulle/clockwork"
)

// DefaultTimeout is the inactivity window before sign out.
const DefaultTimeout = 10 * time.Minute

// Signal is a user activity notification.
type Signal string

const (
	SignalPointerMove Signal = "pointer_move"
	SignalKeyPress    Signal = "key_press"
	SignalClick       Signal = "click"
	SignalScroll      Signal = "scroll"
)

// ParseSignal accepts the signal names plus the browser event names.
func ParseSignal(value string) (Signal, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "pointer_move", "mousemove", "pointermove":
		return SignalPointerMove, true
	case "key_press", "keypress", "keydown":
		return SignalKeyPress, true
	case "click":
		return SignalClick, true
	case "scroll":
		return SignalScroll, true
	}
	return "", false
}

// Valid reports whether s is a known signal.
func (s Signal) Valid() bool {
	_, ok := ParseSignal(string(s))
	return ok
}

// ExpireFunc is called once per countdown that runs out.
type ExpireFunc func(ctx context.Context) error

// Guard keeps at most one pending countdown. Activity replaces it; a timer
// that was replaced or disarmed does nothing when it fires.
type Guard struct {
	mu         sync.Mutex
	clock      clockwork.Clock
	timeout    time.Duration
	timer      clockwork.Timer
	generation uint64
	armed      bool
	onExpire   ExpireFunc
	logger     auth.Logger
}

// Option customizes the guard.
type Option func(*Guard)

// WithTimeout sets the inactivity window.
func WithTimeout(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithClock injects the clock (clockwork.NewFakeClock in tests).
func WithClock(clock clockwork.Clock) Option {
	return func(g *Guard) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger auth.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New returns a disarmed guard calling onExpire when a countdown runs out.
func New(onExpire ExpireFunc, opts ...Option) *Guard {
	g := &Guard{
		clock:    clockwork.NewRealClock(),
		timeout:  DefaultTimeout,
		onExpire: onExpire,
		logger:   auth.DefaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// ForController returns a guard signing out c with the idle timeout reason.
func ForController(c *auth.Controller, opts ...Option) *Guard {
	return New(func(ctx context.Context) error {
		return c.SignOut(ctx, auth.WithSignOutReason(auth.ReasonIdleTimeout))
	}, opts...)
}

// Timeout returns the inactivity window.
func (g *Guard) Timeout() time.Duration {
	return g.timeout
}

// Armed reports whether a countdown is pending.
func (g *Guard) Armed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.armed
}

// Arm starts the countdown unless one is already pending.
func (g *Guard) Arm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.armed {
		return
	}
	g.armed = true
	g.scheduleLocked()
}

// Activity restarts a pending countdown. It reports whether the signal was
// applied; unknown signals and a disarmed guard are ignored.
func (g *Guard) Activity(sig Signal) bool {
	if !sig.Valid() {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.armed {
		return false
	}
	g.scheduleLocked()
	return true
}

// Disarm cancels the pending countdown.
func (g *Guard) Disarm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = false
	g.generation++
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

// Bind arms the guard on authenticated snapshots and disarms it otherwise.
func (g *Guard) Bind(store *auth.SessionStore) (unsubscribe func()) {
	return store.Subscribe(func(snap auth.Snapshot) {
		if snap.IsAuthenticated() {
			g.Arm()
			return
		}
		g.Disarm()
	})
}

func (g *Guard) scheduleLocked() {
	g.generation++
	gen := g.generation
	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = g.clock.AfterFunc(g.timeout, func() {
		g.expire(gen)
	})
}

func (g *Guard) expire(gen uint64) {
	g.mu.Lock()
	if !g.armed || gen != g.generation {
		g.mu.Unlock()
		return
	}
	g.armed = false
	g.timer = nil
	g.mu.Unlock()

	g.logger.Info("session idle for %s, signing out", g.timeout)
	if g.onExpire == nil {
		return
	}
	if err := g.onExpire(context.Background()); err != nil {
		g.logger.Error("idle sign out failed: %v", err)
	}
}
