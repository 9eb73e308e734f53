package console

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-console-auth"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// sessionAudience keeps provider link tokens from passing as session cookies.
const sessionAudience = "console-session"

// sessionCookies mints and reads the browser cookie binding a client to the
// signed in identity.
type sessionCookies struct {
	name   string
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func newSessionCookies(cfg Config) *sessionCookies {
	ttl := cfg.GetSessionTTL()
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &sessionCookies{
		name:   cfg.GetSessionCookie(),
		key:    []byte(cfg.GetSigningKey()),
		issuer: cfg.GetIssuer(),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (sc *sessionCookies) sign(uid string) (string, error) {
	now := sc.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   uid,
		Issuer:    sc.issuer,
		Audience:  jwt.ClaimStrings{sessionAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sc.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sc.key)
}

// subject returns the uid a valid cookie was minted for, or "" when the
// cookie is missing, tampered or expired.
func (sc *sessionCookies) subject(c router.Context) string {
	raw := c.Cookies(sc.name)
	if raw == "" {
		return ""
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return sc.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sc.issuer),
		jwt.WithAudience(sessionAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(sc.now),
	)
	if err != nil {
		return ""
	}
	return claims.Subject
}

// owns reports whether the request carries the cookie of the session holder.
func (sc *sessionCookies) owns(c router.Context, sess *auth.Session) bool {
	if sess == nil {
		return false
	}
	sub := sc.subject(c)
	return sub != "" && sub == sess.UID()
}

func (sc *sessionCookies) set(c router.Context, uid string) error {
	token, err := sc.sign(uid)
	if err != nil {
		return err
	}
	c.Cookie(&router.Cookie{
		Name:     sc.name,
		Value:    token,
		Path:     "/",
		Expires:  sc.now().Add(sc.ttl),
		HTTPOnly: true,
		Secure:   true,
		SameSite: router.CookieSameSiteLaxMode,
	})
	return nil
}

func (sc *sessionCookies) clear(c router.Context) {
	c.Cookie(&router.Cookie{
		Name:     sc.name,
		Value:    "",
		Path:     "/",
		Expires:  sc.now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: router.CookieSameSiteLaxMode,
	})
}
