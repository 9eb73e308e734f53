package local

import (
	"strings"
	"time"
)

// Config holds the local provider configuration.
type Config struct {
	// SigningKey signs refresh, verification and reset tokens (HS256).
	SigningKey string

	// Issuer is stamped on every token. Default: "paints-console".
	Issuer string

	// BaseURL prefixes the links sent by the notifier.
	BaseURL string

	// RefreshTokenTTL bounds remember me sessions. Default: 30 days.
	RefreshTokenTTL time.Duration

	// VerificationTokenTTL bounds email verification links. Default: 48 hours.
	VerificationTokenTTL time.Duration

	// ResetTokenTTL bounds password reset links. Default: 1 hour.
	ResetTokenTTL time.Duration

	// MaxLoginAttempts locks the account after that many failures. Zero disables lockout.
	MaxLoginAttempts int

	// LoginCoolDown is how long a locked account stays locked. Default: 24 hours.
	LoginCoolDown time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(signingKey string) Config {
	return Config{
		SigningKey:           signingKey,
		Issuer:               "paints-console",
		RefreshTokenTTL:      30 * 24 * time.Hour,
		VerificationTokenTTL: 48 * time.Hour,
		ResetTokenTTL:        time.Hour,
		MaxLoginAttempts:     5,
		LoginCoolDown:        24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig(c.SigningKey)
	if strings.TrimSpace(c.Issuer) == "" {
		c.Issuer = d.Issuer
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = d.RefreshTokenTTL
	}
	if c.VerificationTokenTTL <= 0 {
		c.VerificationTokenTTL = d.VerificationTokenTTL
	}
	if c.ResetTokenTTL <= 0 {
		c.ResetTokenTTL = d.ResetTokenTTL
	}
	if c.LoginCoolDown <= 0 {
		c.LoginCoolDown = d.LoginCoolDown
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}
