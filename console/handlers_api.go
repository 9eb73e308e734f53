package console

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-console-auth"
	"github.com/goliatone/go-console-auth/idle"
	"github.com/goliatone/go-router"
)

// SessionGet returns the current snapshot. A client without the session
// cookie sees a signed out snapshot.
func (s *Server) SessionGet(c router.Context) error {
	snap := s.controller.Snapshot()
	if snap.Session != nil && !s.cookies.owns(c, snap.Session) {
		snap = auth.Snapshot{State: auth.StateUnauthenticated, Version: snap.Version}
	}
	body := router.ViewContext{
		"state":            snap.State,
		"version":          snap.Version,
		"is_authenticated": snap.IsAuthenticated(),
		"is_admin":         snap.IsAdmin(),
	}
	if snap.Session != nil {
		body["session"] = snap.Session
	}
	if snap.Err != nil {
		body["error"] = s.messages.ForError(snap.Err)
	}
	return c.JSON(http.StatusOK, body)
}

type activityRequest struct {
	Signal string `json:"signal" form:"signal"`
}

// ActivityPost resets the idle countdown.
func (s *Server) ActivityPost(c router.Context) error {
	payload := new(activityRequest)
	if err := c.Bind(payload); err != nil {
		return s.jsonError(c, auth.ErrInvalidInput)
	}
	sig, ok := idle.ParseSignal(payload.Signal)
	if !ok {
		return s.jsonError(c, auth.ErrInvalidInput)
	}
	if s.idle != nil {
		s.idle.Activity(sig)
	}
	return c.NoContent(http.StatusNoContent)
}

type passwordPayload struct {
	Password string `json:"password" form:"password"`
}

// ReauthenticatePost confirms the current password.
func (s *Server) ReauthenticatePost(c router.Context) error {
	payload := new(passwordPayload)
	if err := c.Bind(payload); err != nil {
		return s.jsonError(c, auth.ErrInvalidInput)
	}
	if err := s.controller.Reauthenticate(c.Context(), payload.Password); err != nil {
		return s.jsonError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ProfilePatch applies a self service profile update.
func (s *Server) ProfilePatch(c router.Context) error {
	update := auth.ProfileUpdate{}
	if err := c.Bind(&update); err != nil {
		return s.jsonError(c, auth.ErrInvalidInput)
	}
	sess, err := s.controller.UpdateProfile(c.Context(), update)
	if err != nil {
		return s.jsonError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// EmailPost changes the account email.
func (s *Server) EmailPost(c router.Context) error {
	payload := new(auth.ChangeEmailRequest)
	if err := c.Bind(payload); err != nil {
		return s.jsonError(c, auth.ErrInvalidInput)
	}
	sess, err := s.controller.ChangeEmail(c.Context(), payload.Email, payload.CurrentPassword)
	if err != nil {
		return s.jsonError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// PasswordPost changes the account password.
func (s *Server) PasswordPost(c router.Context) error {
	payload := new(auth.ChangePasswordRequest)
	if err := c.Bind(payload); err != nil {
		return s.jsonError(c, auth.ErrInvalidInput)
	}
	if err := s.controller.ChangePassword(c.Context(), payload.CurrentPassword, payload.NewPassword); err != nil {
		return s.jsonError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PhotoPost uploads the multipart "photo" file as the profile image.
func (s *Server) PhotoPost(c router.Context) error {
	fh, err := c.FormFile("photo")
	if err != nil {
		return s.jsonError(c, auth.ErrInvalidInput)
	}
	f, err := fh.Open()
	if err != nil {
		return s.jsonError(c, auth.ErrInvalidInput)
	}
	defer f.Close()

	sess, err := s.controller.UploadProfileImage(c.Context(), fh.Filename, f, fh.Header.Get(fiber.HeaderContentType))
	if err != nil {
		return s.jsonError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// UsersGet lists profiles. Query: role, active, department, q, limit.
func (s *Server) UsersGet(c router.Context) error {
	filter := auth.ProfileFilter{
		Department: c.Query("department"),
		Search:     c.Query("q"),
	}
	if v := c.Query("role"); v != "" {
		role, err := auth.ParseRole(v)
		if err != nil {
			return s.jsonError(c, err)
		}
		filter.Role = &role
	}
	if v := c.Query("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return s.jsonError(c, auth.ErrInvalidInput)
		}
		filter.IsActive = &active
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return s.jsonError(c, auth.ErrInvalidInput)
		}
		filter.Limit = limit
	}

	profiles, err := s.controller.ListProfiles(c.Context(), filter)
	if err != nil {
		return s.jsonError(c, err)
	}
	return c.JSON(http.StatusOK, router.ViewContext{"profiles": profiles})
}

// UsersPost registers a new user on behalf of an administrator.
func (s *Server) UsersPost(c router.Context) error {
	payload := new(auth.RegisterRequest)
	if err := c.Bind(payload); err != nil {
		return s.jsonError(c, auth.ErrInvalidInput)
	}
	identity, err := s.controller.Register(c.Context(), *payload)
	if err != nil {
		return s.jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, identity)
}
