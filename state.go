package auth

// AuthState is the lifecycle state of the process wide session.
type AuthState string

const (
	// StateInitializing is the state before the provider reported anything
	StateInitializing AuthState = "initializing"
	// StateUnauthenticated means no identity is signed in
	StateUnauthenticated AuthState = "unauthenticated"
	// StateResolving means an identity is known and its profile is being loaded
	StateResolving AuthState = "resolving"
	// StateAuthenticated means identity and profile are resolved
	StateAuthenticated AuthState = "authenticated"
)

// String implements fmt.Stringer.
func (s AuthState) String() string {
	return string(s)
}

// TransitionReason describes why the session state changed.
type TransitionReason string

const (
	ReasonProviderPush    TransitionReason = "provider_push"
	ReasonSignIn          TransitionReason = "sign_in"
	ReasonRestore         TransitionReason = "restore"
	ReasonSignOut         TransitionReason = "sign_out"
	ReasonIdleTimeout     TransitionReason = "idle_timeout"
	ReasonProviderRevoked TransitionReason = "provider_invalidated"
	ReasonAccountDisabled TransitionReason = "account_disabled"
	ReasonProfileUpdated  TransitionReason = "profile_updated"
	ReasonIdentityRefresh TransitionReason = "identity_refresh"
)

// TransitionOption customizes a single store transition.
type TransitionOption func(*transitionOptions)

type transitionOptions struct {
	reason   TransitionReason
	force    bool
	err      error
	metadata map[string]any
}

// WithTransitionReason sets the reason recorded for the transition.
func WithTransitionReason(reason TransitionReason) TransitionOption {
	return func(opts *transitionOptions) {
		opts.reason = reason
	}
}

// WithForceTransition bypasses the transition graph (teardown only).
func WithForceTransition() TransitionOption {
	return func(opts *transitionOptions) {
		opts.force = true
	}
}

// WithTransitionError records err on the resulting snapshot.
func WithTransitionError(err error) TransitionOption {
	return func(opts *transitionOptions) {
		opts.err = err
	}
}

// WithTransitionMetadata merges metadata into the activity event.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata == nil {
			opts.metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata[k] = v
		}
	}
}

func buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func defaultTransitions() map[AuthState]map[AuthState]struct{} {
	return map[AuthState]map[AuthState]struct{}{
		StateInitializing: {
			StateUnauthenticated: {},
			StateResolving:       {},
		},
		StateUnauthenticated: {
			StateResolving: {},
		},
		StateResolving: {
			StateAuthenticated: {},
			StateResolving:     {},
		},
		StateAuthenticated: {
			StateUnauthenticated: {},
			StateResolving:       {},
			StateAuthenticated:   {},
		},
	}
}
