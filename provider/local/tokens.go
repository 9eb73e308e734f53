package local

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-console-auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Token purposes. A token minted for one purpose is rejected by the others.
const (
	PurposeRefresh     = "refresh"
	PurposeVerifyEmail = "verify_email"
	PurposeReset       = "password_reset"
)

// TokenClaims are the claims carried by provider tokens.
type TokenClaims struct {
	jwt.RegisteredClaims
	Purpose string `json:"pur"`
	Email   string `json:"email,omitempty"`
	Version int    `json:"ver"`
}

type tokenService struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

func newTokenService(signingKey, issuer string, now func() time.Time) *tokenService {
	return &tokenService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		now:        now,
	}
}

func (ts *tokenService) mint(cred *Credential, purpose string, ttl time.Duration) (string, error) {
	now := ts.now()
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   cred.ID.String(),
			Audience:  jwt.ClaimStrings{purpose},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Purpose: purpose,
	}
	switch purpose {
	case PurposeRefresh:
		claims.Version = cred.SessionVersion
	case PurposeReset:
		claims.Version = cred.PasswordVersion
	case PurposeVerifyEmail:
		claims.Email = cred.Email
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}
	return signed, nil
}

// parse validates raw for purpose. Every failure maps to auth.ErrInvalidToken.
func (ts *tokenService) parse(raw, purpose string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	},
		jwt.WithIssuer(ts.issuer),
		jwt.WithAudience(purpose),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, invalidToken(purpose, err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.Purpose != purpose {
		return nil, invalidToken(purpose, nil)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, invalidToken(purpose, err)
	}
	return claims, nil
}

func invalidToken(purpose string, source error) error {
	err := auth.ErrInvalidToken.Clone().WithMetadata(map[string]any{"purpose": purpose})
	if source != nil {
		err.Source = source
	}
	return err
}
