package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// DisclosurePolicy controls what password reset reports about unknown accounts.
type DisclosurePolicy string

const (
	// DisclosureConceal reports success whether or not the account exists
	DisclosureConceal DisclosurePolicy = "conceal"
	// DisclosureReveal surfaces provider errors such as unknown account
	DisclosureReveal DisclosurePolicy = "reveal"
)

// ParseDisclosurePolicy returns DisclosureConceal for anything but "reveal".
func ParseDisclosurePolicy(value string) DisclosurePolicy {
	if strings.EqualFold(strings.TrimSpace(value), string(DisclosureReveal)) {
		return DisclosureReveal
	}
	return DisclosureConceal
}

// Controller owns the session lifecycle. It is the only writer of its
// SessionStore and runs one mutation at a time.
type Controller struct {
	provider IdentityProvider
	profiles ProfileStore
	blobs    BlobStore
	tokens   RefreshTokenStore
	store    *SessionStore

	sem chan struct{}

	queueMu     sync.Mutex
	queue       []identityEvent
	pushSeq     uint64
	wake        chan struct{}
	done        chan struct{}
	wg          sync.WaitGroup
	unsubscribe func()
	startOnce   sync.Once
	closeOnce   sync.Once

	now          func() time.Time
	logger       Logger
	activitySink ActivitySink
	phoneRegion  string
	disclosure   DisclosurePolicy
	debug        bool
}

type identityEvent struct {
	identity *Identity
	seq      uint64
}

// ControllerOption customizes controller construction.
type ControllerOption func(*Controller)

// WithBlobStore sets the store used for profile images.
func WithBlobStore(blobs BlobStore) ControllerOption {
	return func(c *Controller) {
		c.blobs = blobs
	}
}

// WithRefreshTokenStore enables remember me with the given token store.
func WithRefreshTokenStore(tokens RefreshTokenStore) ControllerOption {
	return func(c *Controller) {
		c.tokens = tokens
	}
}

// WithSessionStore uses store instead of a fresh one.
func WithSessionStore(store *SessionStore) ControllerOption {
	return func(c *Controller) {
		if store != nil {
			c.store = store
		}
	}
}

// WithControllerClock injects a custom clock (useful for tests).
func WithControllerClock(clock func() time.Time) ControllerOption {
	return func(c *Controller) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithControllerLogger overrides the logger.
func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithControllerActivitySink sets the sink for login, sign out and profile events.
func WithControllerActivitySink(sink ActivitySink) ControllerOption {
	return func(c *Controller) {
		c.activitySink = normalizeActivitySink(sink)
	}
}

// WithPhoneRegion sets the region used to parse phone numbers without country code.
func WithPhoneRegion(region string) ControllerOption {
	return func(c *Controller) {
		if region != "" {
			c.phoneRegion = strings.ToUpper(region)
		}
	}
}

// WithPasswordResetDisclosure sets the password reset disclosure policy.
func WithPasswordResetDisclosure(policy DisclosurePolicy) ControllerOption {
	return func(c *Controller) {
		if policy != "" {
			c.disclosure = policy
		}
	}
}

// WithControllerDebug dumps resolved sessions to the debug log.
func WithControllerDebug(debug bool) ControllerOption {
	return func(c *Controller) {
		c.debug = debug
	}
}

// NewController returns a controller with its session in the initializing state.
func NewController(provider IdentityProvider, profiles ProfileStore, opts ...ControllerOption) (*Controller, error) {
	if provider == nil {
		return nil, goerrors.New("identity provider is required", goerrors.CategoryBadInput)
	}
	if profiles == nil {
		return nil, goerrors.New("profile store is required", goerrors.CategoryBadInput)
	}

	c := &Controller{
		provider:     provider,
		profiles:     profiles,
		sem:          make(chan struct{}, 1),
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		now:          time.Now,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		phoneRegion:  "SA",
		disclosure:   DisclosureConceal,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.store == nil {
		c.store = NewSessionStore(
			WithStoreClock(c.now),
			WithStoreLogger(c.logger),
			WithStoreActivitySink(c.activitySink),
		)
	}
	return c, nil
}

// Store returns the session store written by this controller.
func (c *Controller) Store() *SessionStore {
	return c.store
}

// Snapshot returns the current session snapshot.
func (c *Controller) Snapshot() Snapshot {
	return c.store.Snapshot()
}

// Start subscribes to provider pushes and applies them in order until ctx
// is done or Close is called.
func (c *Controller) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled before controller start")
	default:
	}

	c.startOnce.Do(func() {
		c.unsubscribe = c.provider.Subscribe(c.enqueue)
		// settle the initial state before returning
		c.applyPending(ctx)
		c.wg.Add(1)
		go c.loop(ctx)
	})
	return nil
}

// Close stops listening to the provider and waits for the event loop.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		close(c.done)
	})
	c.wg.Wait()
	return nil
}

// enqueue never blocks: providers may push from inside calls the
// controller is waiting on.
func (c *Controller) enqueue(identity *Identity) {
	c.queueMu.Lock()
	c.pushSeq++
	c.queue = append(c.queue, identityEvent{identity: identity.Clone(), seq: c.pushSeq})
	c.queueMu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) loop(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-c.wake:
			c.applyPending(ctx)
		}
	}
}

// applyPending applies queued pushes. A push superseded by a newer one is
// skipped, so a stale identity never outlives a later sign out.
func (c *Controller) applyPending(ctx context.Context) {
	for _, evt := range c.drain() {
		if err := c.handleIdentityChange(ctx, evt.identity, evt.seq); err != nil {
			c.logger.Error("failed to apply provider auth state: %v", err)
		}
	}
}

func (c *Controller) latestPush() uint64 {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	return c.pushSeq
}

func (c *Controller) drain() []identityEvent {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	events := c.queue
	c.queue = nil
	return events
}

// HandleIdentityChange applies an auth state push from the provider. A nil
// identity means the provider no longer has a signed in user.
func (c *Controller) HandleIdentityChange(ctx context.Context, identity *Identity) error {
	return c.handleIdentityChange(ctx, identity, 0)
}

func (c *Controller) handleIdentityChange(ctx context.Context, identity *Identity, seq uint64) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	if seq != 0 && seq != c.latestPush() {
		return nil
	}

	snap := c.store.Snapshot()

	if identity == nil {
		switch snap.State {
		case StateInitializing:
			_, err := c.store.transition(ctx, StateUnauthenticated, nil, WithTransitionReason(ReasonProviderPush))
			return err
		case StateUnauthenticated:
			return nil
		default:
			c.clearRefreshToken(ctx)
			_, err := c.store.transition(ctx, StateUnauthenticated, nil,
				WithForceTransition(),
				WithTransitionReason(ReasonProviderRevoked),
			)
			return err
		}
	}

	if snap.IsAuthenticated() && snap.Session.UID() == identity.UID {
		return c.refreshIdentity(ctx, snap.Session, identity)
	}

	_, err := c.resolve(ctx, identity, ReasonProviderPush, false)
	return err
}

func (c *Controller) refreshIdentity(ctx context.Context, current *Session, identity *Identity) error {
	next := current.Clone()
	next.Identity.EmailVerified = identity.EmailVerified
	if identity.Email != "" {
		next.Identity.Email = identity.Email
	}
	if identity.DisplayName != "" {
		next.Identity.DisplayName = identity.DisplayName
	}
	if identity.PhotoURL != "" {
		next.Identity.PhotoURL = identity.PhotoURL
	}
	if next.Identity == current.Identity {
		return nil
	}
	_, err := c.store.transition(ctx, StateAuthenticated, next, WithTransitionReason(ReasonIdentityRefresh))
	return err
}

// resolve loads or creates the profile of identity and publishes the
// session. On profile failure the store stays in resolving with the error
// recorded.
func (c *Controller) resolve(ctx context.Context, identity *Identity, reason TransitionReason, trackLogin bool) (*Session, error) {
	meta := map[string]any{"uid": identity.UID}
	if _, err := c.store.transition(ctx, StateResolving, nil,
		WithTransitionReason(reason),
		WithTransitionMetadata(meta),
	); err != nil {
		return nil, err
	}

	profile, err := c.fetchOrCreateProfile(ctx, identity)
	if err != nil {
		rerr := withSource(ErrProfileResolution, err, meta)
		c.store.fail(rerr)
		c.logger.Error("failed to resolve profile for %s: %v", identity.UID, err)
		return nil, rerr
	}

	if !profile.IsActive {
		if err := c.provider.SignOut(ctx); err != nil {
			c.logger.Warn("failed to revoke provider session for disabled account %s: %v", identity.UID, err)
		}
		c.clearRefreshToken(ctx)
		if _, err := c.store.transition(ctx, StateUnauthenticated, nil,
			WithForceTransition(),
			WithTransitionReason(ReasonAccountDisabled),
			WithTransitionMetadata(meta),
		); err != nil {
			return nil, err
		}
		return nil, withMeta(ErrAccountDisabled, meta)
	}

	if trackLogin {
		now := c.now()
		updated, err := c.profiles.Update(ctx, identity.UID, ProfileUpdate{LastLoginAt: &now})
		if err != nil {
			c.logger.Warn("failed to track successful login for %s: %v", identity.UID, err)
		} else if updated != nil {
			profile = updated
		}
	}

	sess := newSession(identity, profile)
	if _, err := c.store.transition(ctx, StateAuthenticated, sess, WithTransitionReason(reason)); err != nil {
		return nil, err
	}

	if c.debug {
		c.logger.Debug("session resolved: %s", print.MaybePrettyJSON(sess))
	}

	return sess.Clone(), nil
}

func (c *Controller) fetchOrCreateProfile(ctx context.Context, identity *Identity) (*Profile, error) {
	profile, err := c.profiles.Get(ctx, identity.UID)
	if err == nil && profile != nil {
		if !profile.Role.IsValid() {
			return nil, withMeta(ErrInvalidRole, map[string]any{"uid": identity.UID, "role": profile.Role})
		}
		return profile, nil
	}
	if err != nil && !IsProfileNotFound(err) {
		return nil, err
	}

	profile = NewProfile(identity, DefaultRole, c.now())
	if err := c.profiles.Put(ctx, profile); err != nil {
		return nil, err
	}
	c.logger.Info("created default profile for %s", identity.UID)
	return profile, nil
}

// IsProfileNotFound reports whether err means the profile does not exist.
func IsProfileNotFound(err error) bool {
	return HasTextCode(err, TextCodeProfileNotFound) || goerrors.IsNotFound(err)
}

// SignInOption customizes SignIn.
type SignInOption func(*signInOptions)

type signInOptions struct {
	rememberMe bool
}

// WithRememberMe persists a provider refresh token so Restore can resume the session.
func WithRememberMe(remember bool) SignInOption {
	return func(o *signInOptions) {
		o.rememberMe = remember
	}
}

// SignIn verifies credentials with the provider and resolves the session.
// On failure the current session is left untouched.
func (c *Controller) SignIn(ctx context.Context, email, password string, opts ...SignInOption) (*Session, error) {
	req := SignInRequest{Email: strings.TrimSpace(email), Password: password}
	if err := req.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	options := &signInOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	identity, err := c.provider.SignIn(ctx, req.Email, req.Password)
	if err == nil && identity == nil {
		err = errNilIdentity
	}
	if err != nil {
		cerr := classifyProviderError(err, "sign in failed")
		c.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Actor:     ActorRef{ID: req.Email, Type: ActorTypeUser},
			Metadata: map[string]any{
				"email": req.Email,
				"code":  TextCode(cerr),
			},
		})
		return nil, cerr
	}

	sess, err := c.resolve(ctx, identity, ReasonSignIn, true)
	if err != nil {
		c.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Actor:     ActorRef{ID: identity.UID, Type: ActorTypeUser},
			UserID:    identity.UID,
			Metadata:  map[string]any{"code": TextCode(err)},
		})
		return nil, err
	}

	if options.rememberMe {
		c.rememberSession(ctx, identity.UID)
	}

	c.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: identity.UID, Type: ActorTypeUser},
		UserID:    identity.UID,
		Metadata:  map[string]any{"remember_me": options.rememberMe},
	})

	return sess, nil
}

// Restore signs in with a stored refresh token. It returns a nil session
// when remember me is not configured or nothing was stored.
func (c *Controller) Restore(ctx context.Context) (*Session, error) {
	issuer, ok := c.provider.(TokenIssuer)
	if !ok || c.tokens == nil {
		return nil, nil
	}

	token, err := c.tokens.Load(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load refresh token")
	}
	if token == "" {
		return nil, nil
	}

	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	identity, err := issuer.SignInWithRefreshToken(ctx, token)
	if err == nil && identity == nil {
		err = errNilIdentity
	}
	if err != nil {
		c.clearRefreshToken(ctx)
		return nil, classifyProviderError(err, "session restore failed")
	}

	sess, err := c.resolve(ctx, identity, ReasonRestore, true)
	if err != nil {
		return nil, err
	}

	c.rememberSession(ctx, identity.UID)
	c.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: identity.UID, Type: ActorTypeUser},
		UserID:    identity.UID,
		Metadata:  map[string]any{"restored": true},
	})
	return sess, nil
}

// RegisterOption customizes Register.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	system bool
}

// AsSystem registers on behalf of the system, bypassing the admin check for
// privileged roles. Meant for bootstrap tooling.
func AsSystem() RegisterOption {
	return func(o *registerOptions) {
		o.system = true
	}
}

// Register creates a provider identity and its profile. The active session
// is not changed. The returned identity is not verified yet.
func (c *Controller) Register(ctx context.Context, req RegisterRequest, opts ...RegisterOption) (*Identity, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := req.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	role, err := ParseRole(req.Role)
	if err != nil {
		return nil, err
	}

	options := &registerOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	actor := ActorRef{Type: ActorTypeSystem}
	if !options.system {
		snap := c.store.Snapshot()
		actor = ActorRef{ID: snap.Session.UID(), Type: ActorTypeUser}
		if role != DefaultRole && !snap.IsAdmin() {
			return nil, withMeta(ErrForbidden, map[string]any{
				"operation": "register",
				"role":      role,
			})
		}
	}

	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	identity, err := c.provider.SignUp(ctx, req.Email, req.Password)
	if err == nil && identity == nil {
		err = errNilIdentity
	}
	if err != nil {
		return nil, classifyProviderError(err, "sign up failed")
	}

	// the profile always takes the display name the provider holds
	var nameErr error
	if req.DisplayName != "" {
		nameErr = c.provider.UpdateProviderProfile(ctx, identity.UID, ProviderProfile{DisplayName: req.DisplayName})
		if nameErr == nil {
			identity.DisplayName = req.DisplayName
		}
	}
	identity.EmailVerified = false

	profile := NewProfile(identity, role, c.now())
	if err := c.profiles.Put(ctx, profile); err != nil {
		meta := map[string]any{"uid": identity.UID, "email": identity.Email}
		c.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventConsistencyFailure,
			Actor:     actor,
			UserID:    identity.UID,
			Metadata:  map[string]any{"operation": "register", "error": err.Error()},
		})
		c.logger.Error("profile creation failed for new identity %s: %v", identity.UID, err)
		return nil, withSource(ErrOrphanedIdentity, err, meta)
	}

	if err := c.provider.SendVerificationEmail(ctx, identity.UID); err != nil {
		c.logger.Warn("failed to send verification email to %s: %v", identity.UID, err)
	}

	c.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventRegistered,
		Actor:     actor,
		UserID:    identity.UID,
		Metadata:  map[string]any{"role": role},
	})

	if nameErr != nil {
		c.logger.Error("display name not applied for new identity %s: %v", identity.UID, nameErr)
		c.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventConsistencyFailure,
			Actor:     actor,
			UserID:    identity.UID,
			Metadata:  map[string]any{"operation": "register", "field": "display_name", "error": nameErr.Error()},
		})
		return nil, withSource(ErrConsistency, nameErr, map[string]any{
			"uid":       identity.UID,
			"operation": "register",
			"field":     "display_name",
		})
	}

	return identity.Clone(), nil
}

// SignOutOption customizes SignOut.
type SignOutOption func(*signOutOptions)

type signOutOptions struct {
	reason TransitionReason
}

// WithSignOutReason records why the session ended.
func WithSignOutReason(reason TransitionReason) SignOutOption {
	return func(o *signOutOptions) {
		if reason != "" {
			o.reason = reason
		}
	}
}

// SignOut ends the session. It is a no-op without a session. The local
// session is always cleared; a provider failure is returned afterwards.
func (c *Controller) SignOut(ctx context.Context, opts ...SignOutOption) error {
	ctx = context.WithoutCancel(ctx)

	options := &signOutOptions{reason: ReasonSignOut}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	snap := c.store.Snapshot()
	if snap.State == StateUnauthenticated || snap.State == StateInitializing {
		return nil
	}
	uid := snap.Session.UID()

	perr := c.provider.SignOut(ctx)
	c.clearRefreshToken(ctx)

	if _, err := c.store.transition(ctx, StateUnauthenticated, nil,
		WithForceTransition(),
		WithTransitionReason(options.reason),
	); err != nil {
		return err
	}

	c.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSignOut,
		Actor:     ActorRef{ID: uid, Type: ActorTypeUser},
		UserID:    uid,
		Metadata:  map[string]any{"reason": string(options.reason)},
	})

	if perr != nil {
		c.logger.Error("provider sign out failed: %v", perr)
		return goerrors.Wrap(perr, goerrors.CategoryOperation, "provider sign out failed")
	}
	return nil
}

func (c *Controller) rememberSession(ctx context.Context, uid string) {
	issuer, ok := c.provider.(TokenIssuer)
	if !ok || c.tokens == nil {
		return
	}
	token, err := issuer.IssueRefreshToken(ctx, uid)
	if err != nil {
		c.logger.Warn("failed to issue refresh token for %s: %v", uid, err)
		return
	}
	if err := c.tokens.Save(ctx, token); err != nil {
		c.logger.Warn("failed to persist refresh token: %v", err)
	}
}

func (c *Controller) clearRefreshToken(ctx context.Context) {
	if c.tokens == nil {
		return
	}
	if err := c.tokens.Clear(ctx); err != nil {
		c.logger.Warn("failed to clear refresh token: %v", err)
	}
}

// acquire takes the mutation slot, waiting in line until ctx is done.
func (c *Controller) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled waiting for session mutation")
	}
}

func (c *Controller) release() {
	<-c.sem
}

func (c *Controller) requireSession() (*Session, error) {
	snap := c.store.Snapshot()
	if !snap.IsAuthenticated() {
		return nil, ErrNotAuthenticated.Clone()
	}
	return snap.Session, nil
}

func (c *Controller) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = c.now()
	}
	if err := c.activitySink.Record(ctx, event); err != nil {
		c.logger.Error("failed to record activity %s: %v", event.EventType, err)
	}
}
