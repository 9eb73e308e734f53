package auth_test

import (
	"errors"
	"fmt"
	"testing"

	auth "github.com/goliatone/go-console-auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestTextCode(t *testing.T) {
	wrapped := goerrors.Wrap(errors.New("boom"), goerrors.CategoryOperation, "outer")
	wrapped.Source = auth.ErrEmailInUse.Clone()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain error", err: errors.New("plain"), want: ""},
		{name: "sentinel", err: auth.ErrInvalidCredentials, want: auth.TextCodeInvalidCredentials},
		{name: "clone with metadata", err: auth.ErrForbidden.Clone().WithMetadata(map[string]any{"role": "viewer"}), want: auth.TextCodeForbidden},
		{name: "fmt wrapped", err: fmt.Errorf("ctx: %w", auth.ErrAccountDisabled.Clone()), want: auth.TextCodeAccountDisabled},
		{name: "code found through source", err: wrapped, want: auth.TextCodeEmailInUse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.TextCode(tt.err))
		})
	}
}

func TestErrorClasses(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		credential    bool
		authorization bool
		consistency   bool
		transient     bool
	}{
		{name: "invalid credentials", err: auth.ErrInvalidCredentials, credential: true},
		{name: "disabled", err: auth.ErrAccountDisabled, credential: true},
		{name: "too many requests", err: auth.ErrTooManyRequests, credential: true},
		{name: "reauthentication", err: auth.ErrReauthenticationFailed, credential: true},
		{name: "not authenticated", err: auth.ErrNotAuthenticated, authorization: true},
		{name: "forbidden", err: auth.ErrForbidden, authorization: true},
		{name: "consistency", err: auth.ErrConsistency, consistency: true},
		{name: "orphaned identity", err: auth.ErrOrphanedIdentity, consistency: true},
		{name: "invalid input", err: auth.ErrInvalidInput},
		{name: "network failure", err: errors.New("connection reset"), transient: true},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.credential, auth.IsCredentialError(tt.err))
			assert.Equal(t, tt.authorization, auth.IsAuthorizationError(tt.err))
			assert.Equal(t, tt.consistency, auth.IsConsistencyError(tt.err))
			assert.Equal(t, tt.transient, auth.IsTransientError(tt.err))
		})
	}
}

func TestMessageKey(t *testing.T) {
	assert.Equal(t, auth.TextCodeInvalidCredentials, auth.MessageKey(auth.ErrInvalidCredentials.Clone()))
	assert.Equal(t, auth.TextCodeTooManyRequests, auth.MessageKey(auth.ErrTooManyRequests))
	assert.Equal(t, auth.TextCodeProfileResolution, auth.MessageKey(auth.ErrProfileResolution))

	// provider detail never reaches the user
	assert.Equal(t, auth.MessageKeyGeneric, auth.MessageKey(auth.ErrAccountNotFound))
	assert.Equal(t, auth.MessageKeyGeneric, auth.MessageKey(errors.New("dial tcp: timeout")))
	assert.Equal(t, auth.MessageKeyGeneric, auth.MessageKey(nil))
}

func TestSentinelsStayPristine(t *testing.T) {
	clone := auth.ErrForbidden.Clone().WithMetadata(map[string]any{"operation": "list_profiles"})
	assert.NotEmpty(t, clone.Metadata)
	assert.Empty(t, auth.ErrForbidden.Metadata)
}

func TestIsProfileNotFound(t *testing.T) {
	assert.True(t, auth.IsProfileNotFound(auth.ErrProfileNotFound.Clone()))
	assert.True(t, auth.IsProfileNotFound(goerrors.New("missing", goerrors.CategoryNotFound)))
	assert.False(t, auth.IsProfileNotFound(auth.ErrInvalidRole))
	assert.False(t, auth.IsProfileNotFound(errors.New("boom")))
}
