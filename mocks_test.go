package auth_test

import (
	"context"

	auth "github.com/goliatone/go-console-auth"
	"github.com/stretchr/testify/mock"
)

// MockIdentityProvider implements auth.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func identityArg(args mock.Arguments, i int) *auth.Identity {
	if v, ok := args.Get(i).(*auth.Identity); ok {
		return v
	}
	return nil
}

func (m *MockIdentityProvider) SignUp(ctx context.Context, email, password string) (*auth.Identity, error) {
	args := m.Called(ctx, email, password)
	return identityArg(args, 0), args.Error(1)
}

func (m *MockIdentityProvider) SignIn(ctx context.Context, email, password string) (*auth.Identity, error) {
	args := m.Called(ctx, email, password)
	return identityArg(args, 0), args.Error(1)
}

func (m *MockIdentityProvider) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockIdentityProvider) Reauthenticate(ctx context.Context, email, password string) error {
	args := m.Called(ctx, email, password)
	return args.Error(0)
}

func (m *MockIdentityProvider) SendVerificationEmail(ctx context.Context, uid string) error {
	args := m.Called(ctx, uid)
	return args.Error(0)
}

func (m *MockIdentityProvider) SendPasswordResetEmail(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockIdentityProvider) UpdateProviderProfile(ctx context.Context, uid string, profile auth.ProviderProfile) error {
	args := m.Called(ctx, uid, profile)
	return args.Error(0)
}

func (m *MockIdentityProvider) UpdateEmail(ctx context.Context, uid, email string) error {
	args := m.Called(ctx, uid, email)
	return args.Error(0)
}

func (m *MockIdentityProvider) UpdatePassword(ctx context.Context, uid, password string) error {
	args := m.Called(ctx, uid, password)
	return args.Error(0)
}

func (m *MockIdentityProvider) Subscribe(fn func(*auth.Identity)) func() {
	m.Called(fn)
	return func() {}
}

// MockProfileStore implements auth.ProfileStore
type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) Get(ctx context.Context, uid string) (*auth.Profile, error) {
	args := m.Called(ctx, uid)
	p, _ := args.Get(0).(*auth.Profile)
	return p, args.Error(1)
}

func (m *MockProfileStore) Put(ctx context.Context, profile *auth.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *MockProfileStore) Update(ctx context.Context, uid string, update auth.ProfileUpdate) (*auth.Profile, error) {
	args := m.Called(ctx, uid, update)
	p, _ := args.Get(0).(*auth.Profile)
	return p, args.Error(1)
}

func (m *MockProfileStore) Query(ctx context.Context, filter auth.ProfileFilter) ([]*auth.Profile, error) {
	args := m.Called(ctx, filter)
	ps, _ := args.Get(0).([]*auth.Profile)
	return ps, args.Error(1)
}

// MockActivitySink implements auth.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
