package auth_test

import (
	"testing"

	auth "github.com/goliatone/go-console-auth"
	"github.com/stretchr/testify/assert"
)

func snapshot(state auth.AuthState, role auth.Role) auth.Snapshot {
	snap := auth.Snapshot{State: state}
	if state == auth.StateAuthenticated && role != "" {
		snap.Session = &auth.Session{
			Identity: auth.Identity{UID: "u1", Email: "u1@paints.test"},
			Profile:  auth.Profile{UID: "u1", Role: role, IsActive: true},
		}
	}
	return snap
}

func TestRouteGuardDecide(t *testing.T) {
	guard := auth.NewRouteGuard()

	tests := []struct {
		name  string
		snap  auth.Snapshot
		roles []auth.Role
		want  auth.Decision
	}{
		{name: "initializing shows loading", snap: snapshot(auth.StateInitializing, ""), want: auth.DecisionLoading},
		{name: "resolving shows loading", snap: snapshot(auth.StateResolving, ""), want: auth.DecisionLoading},
		{name: "unauthenticated redirects", snap: snapshot(auth.StateUnauthenticated, ""), want: auth.DecisionRedirect},
		{name: "authenticated without session is still loading", snap: snapshot(auth.StateAuthenticated, ""), want: auth.DecisionLoading},
		{name: "any role may open an open page", snap: snapshot(auth.StateAuthenticated, auth.RoleViewer), want: auth.DecisionRender},
		{name: "admin may open admin page", snap: snapshot(auth.StateAuthenticated, auth.RoleAdmin), roles: []auth.Role{auth.RoleAdmin}, want: auth.DecisionRender},
		{name: "manager may not open admin page", snap: snapshot(auth.StateAuthenticated, auth.RoleManager), roles: []auth.Role{auth.RoleAdmin}, want: auth.DecisionForbidden},
		{name: "accountant opens payments", snap: snapshot(auth.StateAuthenticated, auth.RoleAccountant), roles: []auth.Role{auth.RoleAccountant}, want: auth.DecisionRender},
		{name: "sales may not open payments", snap: snapshot(auth.StateAuthenticated, auth.RoleSales), roles: []auth.Role{auth.RoleAccountant}, want: auth.DecisionForbidden},
		{name: "either of several roles", snap: snapshot(auth.StateAuthenticated, auth.RoleAccountant), roles: []auth.Role{auth.RoleSales, auth.RoleAccountant}, want: auth.DecisionRender},
		{name: "failed resolution surfaces the error", snap: auth.Snapshot{State: auth.StateResolving, Err: auth.ErrProfileResolution}, want: auth.DecisionError},
		{name: "failed resolution ignores roles", snap: auth.Snapshot{State: auth.StateResolving, Err: auth.ErrProfileResolution}, roles: []auth.Role{auth.RoleAdmin}, want: auth.DecisionError},
		{name: "initializing with a stale error is still loading", snap: auth.Snapshot{State: auth.StateInitializing, Err: auth.ErrProfileResolution}, want: auth.DecisionLoading},
		{name: "unauthenticated with roles still redirects", snap: snapshot(auth.StateUnauthenticated, ""), roles: []auth.Role{auth.RoleAdmin}, want: auth.DecisionRedirect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, guard.Decide(tt.snap, tt.roles...))
		})
	}
}

func TestRouteGuardLoginPath(t *testing.T) {
	assert.Equal(t, "/login", auth.NewRouteGuard().LoginPath)
	assert.Equal(t, "/auth/login", auth.NewRouteGuard(auth.WithLoginPath("/auth/login")).LoginPath)
	assert.Equal(t, "/login", auth.NewRouteGuard(auth.WithLoginPath("")).LoginPath)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "loading", auth.DecisionLoading.String())
	assert.Equal(t, "redirect", auth.DecisionRedirect.String())
	assert.Equal(t, "render", auth.DecisionRender.String())
	assert.Equal(t, "forbidden", auth.DecisionForbidden.String())
	assert.Equal(t, "error", auth.DecisionError.String())
	assert.Equal(t, "unknown", auth.Decision(42).String())
}
