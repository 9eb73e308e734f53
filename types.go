package auth

import (
	"context"
	"fmt"
	"io"
)

// Logger is the logging contract used across the package.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// ProviderProfile holds the identity attributes mirrored on the provider side.
type ProviderProfile struct {
	DisplayName string
	PhotoURL    string
}

// IdentityProvider is the external authority that verifies credentials and
// pushes auth state changes.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (*Identity, error)
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignOut(ctx context.Context) error
	Reauthenticate(ctx context.Context, email, password string) error
	SendVerificationEmail(ctx context.Context, uid string) error
	SendPasswordResetEmail(ctx context.Context, email string) error
	UpdateProviderProfile(ctx context.Context, uid string, profile ProviderProfile) error
	UpdateEmail(ctx context.Context, uid, email string) error
	UpdatePassword(ctx context.Context, uid, password string) error
	// Subscribe registers fn for auth state pushes. A nil identity means
	// signed out. The returned func removes the subscription.
	Subscribe(fn func(*Identity)) (unsubscribe func())
}

// TokenIssuer is implemented by providers able to issue long lived refresh
// tokens, used to restore a session without keeping the password.
type TokenIssuer interface {
	IssueRefreshToken(ctx context.Context, uid string) (string, error)
	SignInWithRefreshToken(ctx context.Context, token string) (*Identity, error)
}

// EmailVerifier confirms verification links issued by the provider.
type EmailVerifier interface {
	ConfirmEmail(ctx context.Context, token string) error
}

// PasswordResetter completes a password reset started with
// SendPasswordResetEmail.
type PasswordResetter interface {
	ConfirmPasswordReset(ctx context.Context, token, password string) error
}

// ProfileStore persists profiles keyed by provider UID.
type ProfileStore interface {
	// Get returns ErrProfileNotFound when no profile exists for uid.
	Get(ctx context.Context, uid string) (*Profile, error)
	// Put creates or overwrites the profile.
	Put(ctx context.Context, profile *Profile) error
	// Update applies a partial update and stamps UpdatedAt with the store clock.
	Update(ctx context.Context, uid string, update ProfileUpdate) (*Profile, error)
	Query(ctx context.Context, filter ProfileFilter) ([]*Profile, error)
}

// BlobStore stores binary objects and resolves their public URL.
type BlobStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	URL(ctx context.Context, key string) (string, error)
}

// RefreshTokenStore keeps the remember me refresh token between runs.
type RefreshTokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// DefaultLogger returns the printf logger used when none is configured.
func DefaultLogger() Logger {
	return defLogger{}
}
