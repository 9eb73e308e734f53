package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	auth "github.com/goliatone/go-console-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var sagaNow = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

// signedInWithMocks returns a controller whose session belongs to a sales user.
func signedInWithMocks(t *testing.T) (*auth.Controller, *MockIdentityProvider, *MockProfileStore, *auth.Identity) {
	t.Helper()
	provider := new(MockIdentityProvider)
	profiles := new(MockProfileStore)
	identity := &auth.Identity{UID: "uid-ana", Email: "ana@paints.test", DisplayName: "Ana", EmailVerified: true}
	profile := auth.NewProfile(identity, auth.RoleSales, sagaNow)

	provider.On("SignIn", mock.Anything, identity.Email, testPassword).Return(identity, nil).Once()
	profiles.On("Get", mock.Anything, identity.UID).Return(profile, nil).Once()
	profiles.On("Update", mock.Anything, identity.UID, mock.MatchedBy(func(u auth.ProfileUpdate) bool {
		return u.LastLoginAt != nil
	})).Return(profile, nil).Once()

	c, err := auth.NewController(provider, profiles, auth.WithControllerClock(func() time.Time { return sagaNow }))
	require.NoError(t, err)

	_, err = c.SignIn(context.Background(), identity.Email, testPassword)
	require.NoError(t, err)
	return c, provider, profiles, identity
}

func TestUpdateProfileRevertsProviderOnStoreFailure(t *testing.T) {
	c, provider, profiles, identity := signedInWithMocks(t)
	storeErr := errors.New("write conflict")

	mock.InOrder(
		provider.On("UpdateProviderProfile", mock.Anything, identity.UID, auth.ProviderProfile{DisplayName: "Ana Saleh"}).
			Return(nil).Once(),
		profiles.On("Update", mock.Anything, identity.UID, mock.MatchedBy(func(u auth.ProfileUpdate) bool {
			return u.DisplayName != nil && *u.DisplayName == "Ana Saleh"
		})).Return(nil, storeErr).Once(),
		provider.On("UpdateProviderProfile", mock.Anything, identity.UID, auth.ProviderProfile{DisplayName: "Ana"}).
			Return(nil).Once(),
	)

	_, err := c.UpdateProfile(context.Background(), auth.ProfileUpdate{DisplayName: auth.StringPtr("Ana Saleh")})
	require.Error(t, err)
	assert.False(t, auth.IsConsistencyError(err))
	assert.Empty(t, auth.TextCode(err))
	assert.Equal(t, "Ana", c.Snapshot().Session.Identity.DisplayName)

	provider.AssertExpectations(t)
	profiles.AssertExpectations(t)
}

func TestUpdateProfileProviderFailureSkipsStore(t *testing.T) {
	c, provider, profiles, identity := signedInWithMocks(t)

	provider.On("UpdateProviderProfile", mock.Anything, identity.UID, mock.Anything).
		Return(errors.New("quota exceeded")).Once()

	_, err := c.UpdateProfile(context.Background(), auth.ProfileUpdate{DisplayName: auth.StringPtr("Ana Saleh")})
	require.Error(t, err)

	profiles.AssertNumberOfCalls(t, "Update", 1)
	provider.AssertExpectations(t)
}

func TestChangeEmailConfirmsPasswordFirst(t *testing.T) {
	c, provider, profiles, identity := signedInWithMocks(t)

	provider.On("Reauthenticate", mock.Anything, identity.Email, "wrong-password").
		Return(auth.ErrInvalidCredentials).Once()

	_, err := c.ChangeEmail(context.Background(), "ana.saleh@paints.test", "wrong-password")
	assert.Equal(t, auth.TextCodeReauthenticationFailed, auth.TextCode(err))

	provider.AssertNotCalled(t, "UpdateEmail", mock.Anything, mock.Anything, mock.Anything)
	profiles.AssertNumberOfCalls(t, "Update", 1)

	mock.InOrder(
		provider.On("Reauthenticate", mock.Anything, identity.Email, testPassword).Return(nil).Once(),
		provider.On("UpdateEmail", mock.Anything, identity.UID, "ana.saleh@paints.test").Return(nil).Once(),
		profiles.On("Update", mock.Anything, identity.UID, mock.MatchedBy(func(u auth.ProfileUpdate) bool {
			return u.Email != nil && *u.Email == "ana.saleh@paints.test"
		})).Return(nil, errors.New("profiles unavailable")).Once(),
		provider.On("UpdateEmail", mock.Anything, identity.UID, identity.Email).
			Return(errors.New("provider unavailable")).Once(),
	)

	_, err = c.ChangeEmail(context.Background(), "ana.saleh@paints.test", testPassword)
	require.Error(t, err)
	assert.Equal(t, auth.TextCodeConsistency, auth.TextCode(err))

	provider.AssertExpectations(t)
	profiles.AssertExpectations(t)
}

func TestSignInActivityEvents(t *testing.T) {
	provider := new(MockIdentityProvider)
	profiles := new(MockProfileStore)
	sink := new(MockActivitySink)
	identity := &auth.Identity{UID: "uid-omar", Email: "omar@paints.test"}

	c, err := auth.NewController(provider, profiles, auth.WithControllerActivitySink(sink))
	require.NoError(t, err)

	t.Run("failure event", func(t *testing.T) {
		provider.On("SignIn", mock.Anything, "omar@paints.test", "nope").
			Return(nil, auth.ErrInvalidCredentials).Once()
		sink.On("Record", mock.Anything, mock.MatchedBy(func(evt auth.ActivityEvent) bool {
			return evt.EventType == auth.ActivityEventLoginFailure &&
				evt.Metadata["email"] == "omar@paints.test" &&
				evt.Metadata["code"] == auth.TextCodeInvalidCredentials
		})).Return(nil).Once()

		_, err := c.SignIn(context.Background(), "omar@paints.test", "nope")
		require.Error(t, err)
		sink.AssertExpectations(t)
	})

	t.Run("success event", func(t *testing.T) {
		provider.On("SignIn", mock.Anything, "omar@paints.test", testPassword).Return(identity, nil).Once()
		profiles.On("Get", mock.Anything, identity.UID).Return(nil, auth.ErrProfileNotFound).Once()
		profiles.On("Put", mock.Anything, mock.MatchedBy(func(p *auth.Profile) bool {
			return p.UID == identity.UID && p.Role == auth.RoleViewer
		})).Return(nil).Once()
		profiles.On("Update", mock.Anything, identity.UID, mock.Anything).Return(nil, errors.New("stamp failed")).Once()

		sink.On("Record", mock.Anything, mock.MatchedBy(func(evt auth.ActivityEvent) bool {
			return evt.EventType == auth.ActivityEventSessionStateChanged
		})).Return(nil).Twice()
		sink.On("Record", mock.Anything, mock.MatchedBy(func(evt auth.ActivityEvent) bool {
			return evt.EventType == auth.ActivityEventLoginSuccess && evt.UserID == identity.UID
		})).Return(errors.New("sink offline")).Once()

		sess, err := c.SignIn(context.Background(), "omar@paints.test", testPassword)
		require.NoError(t, err, "sink and login stamp failures do not fail sign in")
		assert.Equal(t, auth.RoleViewer, sess.Role())

		sink.AssertExpectations(t)
		profiles.AssertExpectations(t)
	})
}
