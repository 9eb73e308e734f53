package idle_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	auth "github.com/goliatone/go-console-auth"
	"github.com/goliatone/go-console-auth/idle"
	"github.com/goliatone/go-console-auth/memory"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExpire struct {
	calls atomic.Int32
	err   error
}

func (c *countingExpire) fn(context.Context) error {
	c.calls.Add(1)
	return c.err
}

func (c *countingExpire) count() int {
	return int(c.calls.Load())
}

func newGuard(t *testing.T, expire *countingExpire) (*idle.Guard, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	return idle.New(expire.fn, idle.WithClock(clock)), clock
}

func TestParseSignal(t *testing.T) {
	tests := []struct {
		in   string
		want idle.Signal
		ok   bool
	}{
		{"pointer_move", idle.SignalPointerMove, true},
		{"mousemove", idle.SignalPointerMove, true},
		{"KeyDown", idle.SignalKeyPress, true},
		{" click ", idle.SignalClick, true},
		{"scroll", idle.SignalScroll, true},
		{"focus", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := idle.ParseSignal(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGuardDefaults(t *testing.T) {
	g := idle.New(nil)
	assert.Equal(t, 10*time.Minute, g.Timeout())
	assert.False(t, g.Armed())

	g = idle.New(nil, idle.WithTimeout(-time.Second))
	assert.Equal(t, idle.DefaultTimeout, g.Timeout())
}

func TestGuardExpiresAfterTimeout(t *testing.T) {
	expire := &countingExpire{}
	g, clock := newGuard(t, expire)

	g.Arm()
	assert.True(t, g.Armed())

	clock.Advance(10 * time.Minute)
	require.Eventually(t, func() bool { return expire.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, g.Armed())

	clock.Advance(time.Hour)
	assert.Never(t, func() bool { return expire.count() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestGuardActivityRestartsCountdown(t *testing.T) {
	expire := &countingExpire{}
	g, clock := newGuard(t, expire)
	g.Arm()

	clock.Advance(9*time.Minute + 59*time.Second)
	assert.True(t, g.Activity(idle.SignalKeyPress))

	clock.Advance(9*time.Minute + 59*time.Second)
	assert.Never(t, func() bool { return expire.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return expire.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestGuardArmKeepsPendingCountdown(t *testing.T) {
	expire := &countingExpire{}
	g, clock := newGuard(t, expire)

	g.Arm()
	clock.Advance(5 * time.Minute)
	g.Arm()
	clock.Advance(5 * time.Minute)

	require.Eventually(t, func() bool { return expire.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestGuardIgnoresActivity(t *testing.T) {
	expire := &countingExpire{}
	g, clock := newGuard(t, expire)

	assert.False(t, g.Activity(idle.SignalClick), "disarmed")
	assert.False(t, g.Armed())

	g.Arm()
	assert.False(t, g.Activity(idle.Signal("focus")), "unknown signal")

	clock.Advance(10 * time.Minute)
	require.Eventually(t, func() bool { return expire.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestGuardDisarmCancelsCountdown(t *testing.T) {
	expire := &countingExpire{}
	g, clock := newGuard(t, expire)

	g.Arm()
	clock.Advance(9 * time.Minute)
	g.Disarm()
	g.Disarm()
	clock.Advance(time.Hour)

	assert.Never(t, func() bool { return expire.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.False(t, g.Armed())
}

func TestGuardExpireErrorIsSwallowed(t *testing.T) {
	expire := &countingExpire{err: errors.New("provider down")}
	g, clock := newGuard(t, expire)

	g.Arm()
	clock.Advance(10 * time.Minute)
	require.Eventually(t, func() bool { return expire.count() == 1 }, time.Second, 5*time.Millisecond)

	g.Arm()
	assert.True(t, g.Armed(), "guard can be armed again")
}

type reasonSink struct {
	reasons chan any
}

func (s reasonSink) Record(_ context.Context, event auth.ActivityEvent) error {
	if event.EventType == auth.ActivityEventSignOut {
		s.reasons <- event.Metadata["reason"]
	}
	return nil
}

func TestForControllerSignsOutIdleSession(t *testing.T) {
	provider := memory.NewProvider()
	provider.AddAccount("ana@paints.test", "correct-horse-battery", "Ana")
	sink := reasonSink{reasons: make(chan any, 2)}

	c, err := auth.NewController(provider, memory.NewProfileStore(nil),
		auth.WithControllerActivitySink(sink),
	)
	require.NoError(t, err)
	defer c.Close()

	clock := clockwork.NewFakeClock()
	g := idle.ForController(c, idle.WithClock(clock))
	unsubscribe := g.Bind(c.Store())
	defer unsubscribe()
	assert.False(t, g.Armed(), "initializing session")

	_, err = c.SignIn(context.Background(), "ana@paints.test", "correct-horse-battery")
	require.NoError(t, err)
	assert.True(t, g.Armed())

	clock.Advance(9*time.Minute + 59*time.Second)
	assert.True(t, c.Snapshot().IsAuthenticated())

	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		return c.Snapshot().State == auth.StateUnauthenticated
	}, time.Second, 5*time.Millisecond)

	select {
	case reason := <-sink.reasons:
		assert.Equal(t, string(auth.ReasonIdleTimeout), reason)
	case <-time.After(time.Second):
		t.Fatal("sign out event not recorded")
	}
	assert.False(t, g.Armed())
	assert.Equal(t, 1, provider.Calls(memory.OpSignOut))

	require.NoError(t, c.SignOut(context.Background()), "manual sign out after idle is a no-op")
	assert.Equal(t, 1, provider.Calls(memory.OpSignOut))
}

func TestBindFollowsSession(t *testing.T) {
	provider := memory.NewProvider()
	provider.AddAccount("ana@paints.test", "correct-horse-battery", "Ana")
	c, err := auth.NewController(provider, memory.NewProfileStore(nil))
	require.NoError(t, err)
	defer c.Close()

	g := idle.New(nil, idle.WithClock(clockwork.NewFakeClock()))
	unsubscribe := g.Bind(c.Store())

	_, err = c.SignIn(context.Background(), "ana@paints.test", "correct-horse-battery")
	require.NoError(t, err)
	assert.True(t, g.Armed())

	require.NoError(t, c.SignOut(context.Background()))
	assert.False(t, g.Armed())

	unsubscribe()
	_, err = c.SignIn(context.Background(), "ana@paints.test", "correct-horse-battery")
	require.NoError(t, err)
	assert.False(t, g.Armed(), "unsubscribed guard stays disarmed")
}
