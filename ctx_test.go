package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionFromContext(t *testing.T) {
	tests := []struct {
		name     string
		setupCtx func() context.Context
		wantOK   bool
	}{
		{
			name: "should return session when present in context",
			setupCtx: func() context.Context {
				return WithSession(context.Background(), testSession("u1", RoleSales))
			},
			wantOK: true,
		},
		{
			name: "should return false when no session in context",
			setupCtx: func() context.Context {
				return context.Background()
			},
		},
		{
			name: "should return false for a nil session",
			setupCtx: func() context.Context {
				return WithSession(context.Background(), nil)
			},
		},
		{
			name: "should return false when context has wrong type",
			setupCtx: func() context.Context {
				return context.WithValue(context.Background(), sessionCtxKey, "not-a-session")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, ok := SessionFromContext(tt.setupCtx())
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, "u1", sess.UID())
			}
		})
	}
}

func TestHasRole(t *testing.T) {
	ctx := WithSession(context.Background(), testSession("u1", RoleManager))

	assert.True(t, HasRole(ctx, RoleSales))
	assert.True(t, HasRole(ctx, RoleAdmin, RoleManager))
	assert.False(t, HasRole(ctx, RoleAdmin))
	assert.False(t, HasRole(ctx))
	assert.False(t, HasRole(context.Background(), RoleViewer))
}
