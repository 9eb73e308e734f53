package auth

// Decision is the outcome of guarding a protected view.
type Decision int

const (
	// DecisionLoading renders a placeholder until auth state settles
	DecisionLoading Decision = iota
	// DecisionRedirect sends the visitor to the login view
	DecisionRedirect
	// DecisionRender renders the protected view
	DecisionRender
	// DecisionForbidden means signed in without the required role
	DecisionForbidden
	// DecisionError means profile resolution failed; the failure is shown
	// instead of a placeholder
	DecisionError
)

func (d Decision) String() string {
	switch d {
	case DecisionLoading:
		return "loading"
	case DecisionRedirect:
		return "redirect"
	case DecisionRender:
		return "render"
	case DecisionForbidden:
		return "forbidden"
	case DecisionError:
		return "error"
	}
	return "unknown"
}

// RouteGuard decides what a protected view shows for a snapshot.
type RouteGuard struct {
	LoginPath string
}

// RouteGuardOption customizes the guard.
type RouteGuardOption func(*RouteGuard)

// WithLoginPath sets the redirect target for unauthenticated visitors.
func WithLoginPath(p string) RouteGuardOption {
	return func(g *RouteGuard) {
		if p != "" {
			g.LoginPath = p
		}
	}
}

// NewRouteGuard returns a guard redirecting to /login.
func NewRouteGuard(opts ...RouteGuardOption) *RouteGuard {
	g := &RouteGuard{LoginPath: "/login"}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Decide evaluates snap. Callers pass the live snapshot on every
// evaluation; decisions are never cached. When roles are given the session
// must be at least one of them.
func (g *RouteGuard) Decide(snap Snapshot, roles ...Role) Decision {
	switch snap.State {
	case StateInitializing:
		return DecisionLoading
	case StateResolving:
		if snap.Err != nil {
			return DecisionError
		}
		return DecisionLoading
	case StateAuthenticated:
		if !snap.IsAuthenticated() {
			return DecisionLoading
		}
		if len(roles) == 0 {
			return DecisionRender
		}
		have := snap.Session.Role()
		for _, r := range roles {
			if have.IsAtLeast(r) {
				return DecisionRender
			}
		}
		return DecisionForbidden
	default:
		return DecisionRedirect
	}
}
