// Package memory provides in process implementations of the identity
// provider, profile store, blob store and refresh token store. They back
// tests and the console's in-memory mode.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	auth "github.com/goliatone/go-console-auth"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Provider operation names accepted by FailNext and Calls.
const (
	OpSignUp                = "SignUp"
	OpSignIn                = "SignIn"
	OpSignOut               = "SignOut"
	OpReauthenticate        = "Reauthenticate"
	OpSendVerificationEmail = "SendVerificationEmail"
	OpSendPasswordReset     = "SendPasswordResetEmail"
	OpUpdateProviderProfile = "UpdateProviderProfile"
	OpUpdateEmail           = "UpdateEmail"
	OpUpdatePassword        = "UpdatePassword"
	OpRefreshSignIn         = "SignInWithRefreshToken"
)

// Mail is a message the provider would have delivered.
type Mail struct {
	Kind string
	To   string
	UID  string
}

type account struct {
	identity  auth.Identity
	hash      string
	disabled  bool
	attempts  int
	attemptAt time.Time
}

// Provider is an in memory auth.IdentityProvider with lockout semantics
// close to a hosted provider.
type Provider struct {
	mu       sync.Mutex
	accounts map[string]*account
	byEmail  map[string]string
	tokens   map[string]string
	current  *auth.Identity
	subs     map[int]func(*auth.Identity)
	nextID   int
	mails    []Mail
	failures map[string][]error
	calls    map[string]int

	now         func() time.Time
	maxAttempts int
	coolDown    time.Duration
}

var (
	_ auth.IdentityProvider = (*Provider)(nil)
	_ auth.TokenIssuer      = (*Provider)(nil)
)

// ProviderOption customizes the provider.
type ProviderOption func(*Provider)

// WithProviderClock injects a custom clock.
func WithProviderClock(now func() time.Time) ProviderOption {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLockout sets how many failed attempts lock an account and for how long.
func WithLockout(maxAttempts int, coolDown time.Duration) ProviderOption {
	return func(p *Provider) {
		p.maxAttempts = maxAttempts
		p.coolDown = coolDown
	}
}

// NewProvider returns an empty provider.
func NewProvider(opts ...ProviderOption) *Provider {
	p := &Provider{
		accounts:    map[string]*account{},
		byEmail:     map[string]string{},
		tokens:      map[string]string{},
		subs:        map[int]func(*auth.Identity){},
		failures:    map[string][]error{},
		calls:       map[string]int{},
		now:         time.Now,
		maxAttempts: 5,
		coolDown:    24 * time.Hour,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// AddAccount seeds a verified account and returns its identity.
func (p *Provider) AddAccount(email, password, displayName string) *auth.Identity {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	id := auth.Identity{
		UID:           uuid.NewString(),
		Email:         email,
		DisplayName:   displayName,
		EmailVerified: true,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[id.UID] = &account{identity: id, hash: string(hash)}
	p.byEmail[normalizeEmail(email)] = id.UID
	return id.Clone()
}

// SetDisabled toggles the disabled flag of an account.
func (p *Provider) SetDisabled(uid string, disabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if acc, ok := p.accounts[uid]; ok {
		acc.disabled = disabled
	}
}

// Account returns the stored identity of uid.
func (p *Provider) Account(uid string) (*auth.Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, ok := p.accounts[uid]
	if !ok {
		return nil, false
	}
	return acc.identity.Clone(), true
}

// FailNext makes the next call to op return err.
func (p *Provider) FailNext(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op] = append(p.failures[op], err)
}

// Calls returns how many times op was invoked.
func (p *Provider) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// Mails returns the messages sent so far.
func (p *Provider) Mails() []Mail {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Mail(nil), p.mails...)
}

// Current returns the signed in identity, if any.
func (p *Provider) Current() *auth.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.Clone()
}

// Push simulates a provider side auth state change.
func (p *Provider) Push(identity *auth.Identity) {
	p.mu.Lock()
	p.current = identity.Clone()
	p.mu.Unlock()
	p.notify(identity)
}

// Subscribe delivers the current state right away, then every change.
func (p *Provider) Subscribe(fn func(*auth.Identity)) func() {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
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

func (p *Provider) SignUp(ctx context.Context, email, password string) (*auth.Identity, error) {
	if err := p.enter(OpSignUp); err != nil {
		return nil, err
	}
	key := normalizeEmail(email)

	p.mu.Lock()
	if _, exists := p.byEmail[key]; exists {
		p.mu.Unlock()
		return nil, auth.ErrEmailInUse.Clone()
	}
	p.mu.Unlock()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	id := auth.Identity{UID: uuid.NewString(), Email: strings.TrimSpace(email)}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[id.UID] = &account{identity: id, hash: string(hash)}
	p.byEmail[key] = id.UID
	return id.Clone(), nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*auth.Identity, error) {
	if err := p.enter(OpSignIn); err != nil {
		return nil, err
	}

	p.mu.Lock()
	acc, err := p.verifyLocked(email, password)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.current = acc.identity.Clone()
	out := acc.identity.Clone()
	p.mu.Unlock()

	p.notify(out)
	return out, nil
}

func (p *Provider) verifyLocked(email, password string) (*account, error) {
	uid, ok := p.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, auth.ErrInvalidCredentials.Clone()
	}
	acc := p.accounts[uid]
	if acc.disabled {
		return nil, auth.ErrAccountDisabled.Clone()
	}
	now := p.now()
	if !acc.attemptAt.IsZero() && now.Sub(acc.attemptAt) > p.coolDown {
		acc.attempts = 0
	}
	if p.maxAttempts > 0 && acc.attempts >= p.maxAttempts {
		return nil, auth.ErrTooManyRequests.Clone()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.hash), []byte(password)); err != nil {
		acc.attempts++
		acc.attemptAt = now
		return nil, auth.ErrInvalidCredentials.Clone()
	}
	acc.attempts = 0
	acc.attemptAt = time.Time{}
	return acc, nil
}

func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.enter(OpSignOut); err != nil {
		return err
	}
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	p.notify(nil)
	return nil
}

func (p *Provider) Reauthenticate(ctx context.Context, email, password string) error {
	if err := p.enter(OpReauthenticate); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || normalizeEmail(p.current.Email) != normalizeEmail(email) {
		return auth.ErrInvalidCredentials.Clone()
	}
	_, err := p.verifyLocked(email, password)
	return err
}

func (p *Provider) SendVerificationEmail(ctx context.Context, uid string) error {
	if err := p.enter(OpSendVerificationEmail); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, ok := p.accounts[uid]
	if !ok {
		return auth.ErrAccountNotFound.Clone()
	}
	p.mails = append(p.mails, Mail{Kind: "verify_email", To: acc.identity.Email, UID: uid})
	return nil
}

func (p *Provider) SendPasswordResetEmail(ctx context.Context, email string) error {
	if err := p.enter(OpSendPasswordReset); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	uid, ok := p.byEmail[normalizeEmail(email)]
	if !ok {
		return auth.ErrAccountNotFound.Clone()
	}
	p.mails = append(p.mails, Mail{Kind: "password_reset", To: email, UID: uid})
	return nil
}

func (p *Provider) UpdateProviderProfile(ctx context.Context, uid string, profile auth.ProviderProfile) error {
	if err := p.enter(OpUpdateProviderProfile); err != nil {
		return err
	}
	return p.mutate(uid, func(acc *account) error {
		acc.identity.DisplayName = profile.DisplayName
		acc.identity.PhotoURL = profile.PhotoURL
		return nil
	})
}

func (p *Provider) UpdateEmail(ctx context.Context, uid, email string) error {
	if err := p.enter(OpUpdateEmail); err != nil {
		return err
	}
	return p.mutate(uid, func(acc *account) error {
		key := normalizeEmail(email)
		if owner, exists := p.byEmail[key]; exists && owner != uid {
			return auth.ErrEmailInUse.Clone()
		}
		delete(p.byEmail, normalizeEmail(acc.identity.Email))
		p.byEmail[key] = uid
		acc.identity.Email = email
		acc.identity.EmailVerified = false
		return nil
	})
}

func (p *Provider) UpdatePassword(ctx context.Context, uid, password string) error {
	if err := p.enter(OpUpdatePassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	return p.mutate(uid, func(acc *account) error {
		acc.hash = string(hash)
		return nil
	})
}

// IssueRefreshToken implements auth.TokenIssuer.
func (p *Provider) IssueRefreshToken(ctx context.Context, uid string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.accounts[uid]; !ok {
		return "", auth.ErrAccountNotFound.Clone()
	}
	token := uuid.NewString()
	p.tokens[token] = uid
	return token, nil
}

// SignInWithRefreshToken implements auth.TokenIssuer. Tokens are single use.
func (p *Provider) SignInWithRefreshToken(ctx context.Context, token string) (*auth.Identity, error) {
	if err := p.enter(OpRefreshSignIn); err != nil {
		return nil, err
	}
	p.mu.Lock()
	uid, ok := p.tokens[token]
	delete(p.tokens, token)
	acc := p.accounts[uid]
	if !ok || acc == nil {
		p.mu.Unlock()
		return nil, auth.ErrInvalidToken.Clone()
	}
	if acc.disabled {
		p.mu.Unlock()
		return nil, auth.ErrAccountDisabled.Clone()
	}
	p.current = acc.identity.Clone()
	out := acc.identity.Clone()
	p.mu.Unlock()

	p.notify(out)
	return out, nil
}

func (p *Provider) mutate(uid string, fn func(acc *account) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, ok := p.accounts[uid]
	if !ok {
		return auth.ErrAccountNotFound.Clone()
	}
	if err := fn(acc); err != nil {
		return err
	}
	if p.current != nil && p.current.UID == uid {
		p.current = acc.identity.Clone()
	}
	return nil
}

// enter counts the call and pops an injected failure.
func (p *Provider) enter(op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[op]++
	if queue := p.failures[op]; len(queue) > 0 {
		err := queue[0]
		p.failures[op] = queue[1:]
		return err
	}
	return nil
}

func (p *Provider) notify(identity *auth.Identity) {
	p.mu.Lock()
	subs := make([]func(*auth.Identity), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(identity.Clone())
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
