package auth

import "context"

var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithSession sets the Session in the given context
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, sess)
}

// SessionFromContext finds the session in the context.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(*Session)
	return raw, ok && raw != nil
}

// HasRole reports whether the context session is at least one of roles.
func HasRole(ctx context.Context, roles ...Role) bool {
	sess, ok := SessionFromContext(ctx)
	if !ok || !sess.IsAuthenticated() {
		return false
	}
	for _, r := range roles {
		if sess.Role().IsAtLeast(r) {
			return true
		}
	}
	return false
}
