// Package local is a self hosted identity provider: bcrypt credentials in a
// bun database, lockout after repeated failures and signed links for email
// verification, password reset and remember me.
package local

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	auth "github.com/goliatone/go-console-auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// Provider implements auth.IdentityProvider against a Credentials repository.
// It tracks a single signed in identity, the way a client side provider SDK
// does for one console.
type Provider struct {
	creds    Credentials
	cfg      Config
	tokens   *tokenService
	notifier Notifier
	logger   auth.Logger
	now      func() time.Time
	hash     func(string) (string, error)

	mu      sync.Mutex
	current *auth.Identity
	subs    map[int]func(*auth.Identity)
	nextSub int

	dummyOnce sync.Once
	dummyHash string
}

var (
	_ auth.IdentityProvider = (*Provider)(nil)
	_ auth.TokenIssuer      = (*Provider)(nil)
	_ auth.EmailVerifier    = (*Provider)(nil)
	_ auth.PasswordResetter = (*Provider)(nil)
)

// Option customizes the provider.
type Option func(*Provider)

// WithClock injects a custom clock.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithNotifier sets the account mail notifier.
func WithNotifier(n Notifier) Option {
	return func(p *Provider) {
		if n != nil {
			p.notifier = n
		}
	}
}

// WithLogger sets the provider logger.
func WithLogger(logger auth.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPasswordHasher overrides the password hash function.
func WithPasswordHasher(hash func(string) (string, error)) Option {
	return func(p *Provider) {
		if hash != nil {
			p.hash = hash
		}
	}
}

// NewProvider creates a provider. The signing key is required.
func NewProvider(creds Credentials, cfg Config, opts ...Option) (*Provider, error) {
	if creds == nil {
		return nil, goerrors.New("local provider: credentials repository is required", goerrors.CategoryBadInput)
	}
	if strings.TrimSpace(cfg.SigningKey) == "" {
		return nil, goerrors.New("local provider: signing key is required", goerrors.CategoryBadInput)
	}

	p := &Provider{
		creds:  creds,
		cfg:    cfg.withDefaults(),
		logger: auth.DefaultLogger(),
		now:    func() time.Time { return time.Now().UTC() },
		hash:   auth.HashPassword,
		subs:   map[int]func(*auth.Identity){},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.notifier == nil {
		p.notifier = LogNotifier{Logger: p.logger}
	}
	p.tokens = newTokenService(p.cfg.SigningKey, p.cfg.Issuer, p.now)

	return p, nil
}

// Subscribe delivers the current identity right away, then every change.
func (p *Provider) Subscribe(fn func(*auth.Identity)) func() {
	p.mu.Lock()
	p.nextSub++
	id := p.nextSub
	p.subs[id] = fn
	current := p.current.Clone()
	p.mu.Unlock()

	fn(current)

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Current returns the signed in identity, if any.
func (p *Provider) Current() *auth.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.Clone()
}

func (p *Provider) SignUp(ctx context.Context, email, password string) (*auth.Identity, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, auth.ErrInvalidInput.Clone().WithMetadata(map[string]any{"field": "email"})
	}

	if _, err := p.creds.GetByEmail(ctx, email); err == nil {
		return nil, auth.ErrEmailInUse.Clone()
	} else if !repository.IsRecordNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	hash, err := p.hash(password)
	if err != nil {
		return nil, auth.ErrInvalidInput.Clone().WithMetadata(map[string]any{"field": "password"})
	}

	now := p.now()
	cred, err := p.creds.Register(ctx, &Credential{
		Email:        email,
		DisplayName:  displayNameFromEmail(email),
		PasswordHash: hash,
		CreatedAt:    &now,
		UpdatedAt:    &now,
	})
	if err != nil {
		if _, lookupErr := p.creds.GetByEmail(ctx, email); lookupErr == nil {
			return nil, auth.ErrEmailInUse.Clone()
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to register account")
	}

	p.logger.Info("local provider registered account %s", cred.ID)
	return cred.Identity(), nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*auth.Identity, error) {
	cred, err := p.verify(ctx, email, password)
	if err != nil {
		return nil, err
	}
	identity := cred.Identity()
	p.setCurrent(identity)
	return identity.Clone(), nil
}

// verify checks credentials with lockout accounting. Unknown accounts and
// wrong passwords produce the same error.
func (p *Provider) verify(ctx context.Context, email, password string) (*Credential, error) {
	cred, err := p.creds.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			p.burnCompare(password)
			return nil, auth.ErrInvalidCredentials.Clone()
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	if cred.Disabled {
		return nil, auth.ErrAccountDisabled.Clone()
	}

	now := p.now()
	if until := cred.lockedUntil(p.cfg.MaxLoginAttempts, p.cfg.LoginCoolDown); !until.IsZero() && now.Before(until) {
		return nil, auth.ErrTooManyRequests.Clone().WithMetadata(map[string]any{
			"retry_after": until,
		})
	}

	if err := auth.ComparePasswordAndHash(password, cred.PasswordHash); err != nil {
		if _, trackErr := p.creds.TrackFailedLogin(ctx, cred.ID, now, now.Add(-p.cfg.LoginCoolDown)); trackErr != nil {
			p.logger.Error("local provider failed to track login attempt: %v", trackErr)
		}
		if auth.IsCredentialError(err) {
			return nil, err
		}
		return nil, auth.ErrInvalidCredentials.Clone()
	}

	updated, err := p.creds.TrackSuccessfulLogin(ctx, cred.ID, now)
	if err != nil {
		p.logger.Error("local provider failed to track login: %v", err)
		return cred, nil
	}
	return updated, nil
}

func (p *Provider) burnCompare(password string) {
	p.dummyOnce.Do(func() {
		p.dummyHash = auth.RandomPasswordHash()
	})
	_ = auth.ComparePasswordAndHash(password, p.dummyHash)
}

func (p *Provider) SignOut(ctx context.Context) error {
	p.setCurrent(nil)
	return nil
}

// Reauthenticate checks the password of the signed in account.
func (p *Provider) Reauthenticate(ctx context.Context, email, password string) error {
	current := p.Current()
	if current == nil || normalizeEmail(current.Email) != normalizeEmail(email) {
		return auth.ErrInvalidCredentials.Clone()
	}
	_, err := p.verify(ctx, email, password)
	return err
}

func (p *Provider) SendVerificationEmail(ctx context.Context, uid string) error {
	cred, err := p.load(ctx, uid)
	if err != nil {
		return err
	}
	token, err := p.tokens.mint(cred, PurposeVerifyEmail, p.cfg.VerificationTokenTTL)
	if err != nil {
		return err
	}
	return p.notifier.Notify(ctx, Message{
		Kind: KindVerifyEmail,
		To:   cred.Email,
		Link: p.cfg.BaseURL + "/verify-email?token=" + url.QueryEscape(token),
	})
}

// SendPasswordResetEmail returns auth.ErrAccountNotFound for unknown
// addresses. Callers decide whether to disclose it.
func (p *Provider) SendPasswordResetEmail(ctx context.Context, email string) error {
	cred, err := p.creds.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return auth.ErrAccountNotFound.Clone()
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}
	token, err := p.tokens.mint(cred, PurposeReset, p.cfg.ResetTokenTTL)
	if err != nil {
		return err
	}
	return p.notifier.Notify(ctx, Message{
		Kind: KindPasswordReset,
		To:   cred.Email,
		Link: p.cfg.BaseURL + "/password-reset/" + url.PathEscape(token),
	})
}

func (p *Provider) UpdateProviderProfile(ctx context.Context, uid string, profile auth.ProviderProfile) error {
	id, err := parseUID(uid)
	if err != nil {
		return err
	}
	cred, err := p.creds.UpdateProfile(ctx, id, profile.DisplayName, profile.PhotoURL, p.now())
	if err != nil {
		return p.mapRepoError(err, "failed to update account profile")
	}
	p.refreshCurrent(cred, false)
	return nil
}

func (p *Provider) UpdateEmail(ctx context.Context, uid, email string) error {
	id, err := parseUID(uid)
	if err != nil {
		return err
	}
	email = normalizeEmail(email)
	if owner, err := p.creds.GetByEmail(ctx, email); err == nil && owner.ID != id {
		return auth.ErrEmailInUse.Clone()
	}
	cred, err := p.creds.UpdateEmail(ctx, id, email, p.now())
	if err != nil {
		return p.mapRepoError(err, "failed to update account email")
	}
	p.refreshCurrent(cred, false)
	return nil
}

func (p *Provider) UpdatePassword(ctx context.Context, uid, password string) error {
	id, err := parseUID(uid)
	if err != nil {
		return err
	}
	hash, err := p.hash(password)
	if err != nil {
		return auth.ErrInvalidInput.Clone().WithMetadata(map[string]any{"field": "password"})
	}
	if _, err := p.creds.UpdatePassword(ctx, id, hash, p.now()); err != nil {
		return p.mapRepoError(err, "failed to update account password")
	}
	return nil
}

// SetDisabled toggles an account. Disabling revokes refresh tokens and signs
// the account out when it is the current one.
func (p *Provider) SetDisabled(ctx context.Context, uid string, disabled bool) error {
	id, err := parseUID(uid)
	if err != nil {
		return err
	}
	if _, err := p.creds.SetDisabled(ctx, id, disabled, p.now()); err != nil {
		return p.mapRepoError(err, "failed to update account status")
	}
	if current := p.Current(); disabled && current != nil && current.UID == uid {
		p.setCurrent(nil)
	}
	return nil
}

// IssueRefreshToken implements auth.TokenIssuer.
func (p *Provider) IssueRefreshToken(ctx context.Context, uid string) (string, error) {
	cred, err := p.load(ctx, uid)
	if err != nil {
		return "", err
	}
	return p.tokens.mint(cred, PurposeRefresh, p.cfg.RefreshTokenTTL)
}

// SignInWithRefreshToken implements auth.TokenIssuer. A token is accepted
// once; password changes and account disabling revoke outstanding tokens.
func (p *Provider) SignInWithRefreshToken(ctx context.Context, token string) (*auth.Identity, error) {
	claims, err := p.tokens.parse(token, PurposeRefresh)
	if err != nil {
		return nil, err
	}
	cred, err := p.load(ctx, claims.Subject)
	if err != nil {
		if auth.HasTextCode(err, auth.TextCodeAccountNotFound) {
			return nil, invalidToken(PurposeRefresh, err)
		}
		return nil, err
	}
	if cred.Disabled {
		return nil, auth.ErrAccountDisabled.Clone()
	}
	if claims.Version != cred.SessionVersion {
		return nil, invalidToken(PurposeRefresh, nil)
	}

	cred, err = p.creds.ConsumeSessionVersion(ctx, cred.ID, claims.Version)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, invalidToken(PurposeRefresh, nil)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume refresh token")
	}

	identity := cred.Identity()
	p.setCurrent(identity)
	return identity.Clone(), nil
}

// ConfirmEmail implements auth.EmailVerifier. Links minted before an email
// change are rejected.
func (p *Provider) ConfirmEmail(ctx context.Context, token string) error {
	claims, err := p.tokens.parse(token, PurposeVerifyEmail)
	if err != nil {
		return err
	}
	id, _ := uuid.Parse(claims.Subject)
	cred, err := p.creds.MarkVerified(ctx, id, claims.Email, p.now())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return invalidToken(PurposeVerifyEmail, nil)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to confirm email")
	}
	p.refreshCurrent(cred, true)
	return nil
}

// ConfirmPasswordReset implements auth.PasswordResetter. A link is accepted
// once and revokes refresh tokens. The account is signed out when it is the
// current one.
func (p *Provider) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	claims, err := p.tokens.parse(token, PurposeReset)
	if err != nil {
		return err
	}
	hash, err := p.hash(password)
	if err != nil {
		return auth.ErrInvalidInput.Clone().WithMetadata(map[string]any{"field": "password"})
	}
	id, _ := uuid.Parse(claims.Subject)
	if _, err := p.creds.ResetPassword(ctx, id, claims.Version, hash, p.now()); err != nil {
		if repository.IsRecordNotFound(err) {
			return invalidToken(PurposeReset, nil)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reset password")
	}
	p.logger.Info("local provider reset password for %s", id)
	if current := p.Current(); current != nil && current.UID == id.String() {
		p.setCurrent(nil)
	}
	return nil
}

func (p *Provider) load(ctx context.Context, uid string) (*Credential, error) {
	if _, err := parseUID(uid); err != nil {
		return nil, err
	}
	cred, err := p.creds.GetByIdentifier(ctx, uid)
	if err != nil {
		return nil, p.mapRepoError(err, "failed to load account")
	}
	return cred, nil
}

func (p *Provider) mapRepoError(err error, msg string) error {
	if repository.IsRecordNotFound(err) {
		return auth.ErrAccountNotFound.Clone()
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

func (p *Provider) setCurrent(identity *auth.Identity) {
	p.mu.Lock()
	p.current = identity.Clone()
	subs := make([]func(*auth.Identity), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(identity.Clone())
	}
}

// refreshCurrent mirrors cred into the current identity. With push the
// change is delivered to subscribers.
func (p *Provider) refreshCurrent(cred *Credential, push bool) {
	p.mu.Lock()
	matches := p.current != nil && p.current.UID == cred.ID.String()
	p.mu.Unlock()
	if !matches {
		return
	}
	if push {
		p.setCurrent(cred.Identity())
		return
	}
	p.mu.Lock()
	p.current = cred.Identity()
	p.mu.Unlock()
}

func parseUID(uid string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(uid))
	if err != nil {
		return uuid.Nil, auth.ErrAccountNotFound.Clone().WithMetadata(map[string]any{"uid": uid})
	}
	return id, nil
}

func displayNameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
