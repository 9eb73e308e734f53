package auth

// Session is the resolved identity plus profile of the signed in user.
type Session struct {
	Identity Identity `json:"identity"`
	Profile  Profile  `json:"profile"`
}

// IsAuthenticated reports whether the session carries an identity.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Identity.UID != ""
}

// IsAdmin reports whether the session profile has the administrator role.
func (s *Session) IsAdmin() bool {
	return s.IsAuthenticated() && s.Profile.Role.IsAdmin()
}

// Role returns the profile role, empty when not authenticated.
func (s *Session) Role() Role {
	if !s.IsAuthenticated() {
		return ""
	}
	return s.Profile.Role
}

// UID returns the identity UID, empty when not authenticated.
func (s *Session) UID() string {
	if s == nil {
		return ""
	}
	return s.Identity.UID
}

// Clone deep copies the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	return &Session{
		Identity: s.Identity,
		Profile:  *s.Profile.Clone(),
	}
}

func newSession(identity *Identity, profile *Profile) *Session {
	sess := &Session{
		Identity: *identity,
		Profile:  *profile.Clone(),
	}
	// provider is the authority for email verification, the profile for the rest
	if sess.Identity.Email == "" {
		sess.Identity.Email = profile.Email
	}
	if sess.Identity.DisplayName == "" {
		sess.Identity.DisplayName = profile.DisplayName
	}
	if sess.Identity.PhotoURL == "" {
		sess.Identity.PhotoURL = profile.PhotoURL
	}
	return sess
}

// Snapshot is an immutable view of the session store.
type Snapshot struct {
	State   AuthState `json:"state"`
	Session *Session  `json:"session,omitempty"`
	Err     error     `json:"-"`
	Version uint64    `json:"version"`
}

// IsAuthenticated reports whether the snapshot holds a resolved session.
func (s Snapshot) IsAuthenticated() bool {
	return s.State == StateAuthenticated && s.Session.IsAuthenticated()
}

// IsAdmin reports whether the snapshot session belongs to an administrator.
func (s Snapshot) IsAdmin() bool {
	return s.IsAuthenticated() && s.Session.IsAdmin()
}

// Loading reports whether auth state is not yet settled.
func (s Snapshot) Loading() bool {
	return s.State == StateInitializing || s.State == StateResolving
}
