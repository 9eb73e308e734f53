package local

import (
	"time"

	auth "github.com/goliatone/go-console-auth"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Credential is the provider side account record.
type Credential struct {
	bun.BaseModel   `bun:"table:credentials,alias:crd"`
	ID              uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Email           string     `bun:"email,notnull,unique" json:"email"`
	DisplayName     string     `bun:"display_name" json:"display_name,omitempty"`
	PhotoURL        string     `bun:"photo_url" json:"photo_url,omitempty"`
	PasswordHash    string     `bun:"password_hash,notnull" json:"-"`
	EmailVerified   bool       `bun:"email_verified,notnull" json:"email_verified"`
	Disabled        bool       `bun:"disabled,notnull" json:"disabled"`
	SessionVersion  int        `bun:"session_version,notnull,default:0" json:"-"`
	PasswordVersion int        `bun:"password_version,notnull,default:0" json:"-"`
	LoginAttempts   int        `bun:"login_attempts,notnull,default:0" json:"login_attempts"`
	LoginAttemptAt  *time.Time `bun:"login_attempt_at,nullzero" json:"login_attempt_at,omitempty"`
	LoggedInAt      *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt       *time.Time `bun:"created_at,nullzero" json:"created_at,omitempty"`
	UpdatedAt       *time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// Identity projects the credential into the identity shared with the controller.
func (c *Credential) Identity() *auth.Identity {
	if c == nil {
		return nil
	}
	return &auth.Identity{
		UID:           c.ID.String(),
		Email:         c.Email,
		DisplayName:   c.DisplayName,
		PhotoURL:      c.PhotoURL,
		EmailVerified: c.EmailVerified,
	}
}

// lockedUntil reports until when the account refuses sign in, zero if it does not.
func (c *Credential) lockedUntil(maxAttempts int, coolDown time.Duration) time.Time {
	if maxAttempts <= 0 || c.LoginAttempts < maxAttempts || c.LoginAttemptAt == nil {
		return time.Time{}
	}
	return c.LoginAttemptAt.Add(coolDown)
}
