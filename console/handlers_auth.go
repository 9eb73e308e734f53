package console

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-console-auth"
	"github.com/goliatone/go-router"
)

// LoginShow renders the login view, or redirects when this client already
// holds the session.
func (s *Server) LoginShow(c router.Context) error {
	if snap := s.controller.Snapshot(); snap.IsAuthenticated() && s.cookies.owns(c, snap.Session) {
		return c.Redirect("/", http.StatusFound)
	}
	return s.renderLogin(c, http.StatusOK, nil, "", "")
}

// LoginPost signs in with the posted credentials.
func (s *Server) LoginPost(c router.Context) error {
	payload := new(auth.SignInRequest)
	if err := c.Bind(payload); err != nil {
		return s.renderLogin(c, http.StatusBadRequest, payload, s.messages.Get(auth.TextCodeInvalidInput), "")
	}

	if err := payload.Validate(); err != nil {
		return s.renderLogin(c, http.StatusBadRequest, payload, s.messages.Get(auth.TextCodeInvalidInput), "")
	}

	sess, err := s.controller.SignIn(c.Context(), payload.Email, payload.Password,
		auth.WithRememberMe(payload.RememberMe),
	)
	if err != nil {
		s.logger.Info("login failed for %s: %s", payload.Email, auth.TextCode(err))
		payload.Password = ""
		return s.renderLogin(c, statusFor(err), payload, s.messages.ForError(err), "")
	}

	if err := s.cookies.set(c, sess.UID()); err != nil {
		return err
	}
	return c.Redirect(s.redirectOrDefault(c), http.StatusSeeOther)
}

// LogOut ends the session held by this client and clears its cookie. A
// client without the session cookie cannot sign out someone else.
func (s *Server) LogOut(c router.Context) error {
	snap := s.controller.Snapshot()
	holder := s.cookies.owns(c, snap.Session)
	if snap.Session == nil {
		// an unresolved identity has no session to match; any cookie we minted will do
		holder = s.cookies.subject(c) != ""
	}
	if holder {
		if err := s.controller.SignOut(c.Context()); err != nil {
			s.logger.Warn("sign out reported an error: %v", err)
		}
	}
	s.cookies.clear(c)
	return c.Redirect(s.guard.LoginPath, http.StatusSeeOther)
}

func (s *Server) renderLogin(c router.Context, status int, record *auth.SignInRequest, errMsg, notice string) error {
	return s.view(c, status, "login", router.ViewContext{
		"title":  s.messages.Get("login.title"),
		"locale": s.messages.Locale(),
		"record": record,
		"error":  errMsg,
		"notice": notice,
	})
}

// PasswordResetGet renders the reset request form.
func (s *Server) PasswordResetGet(c router.Context) error {
	return s.renderReset(c, http.StatusOK, "", "", "")
}

// PasswordResetPost requests a reset link. The response does not depend on
// whether the account exists.
func (s *Server) PasswordResetPost(c router.Context) error {
	payload := new(auth.PasswordResetRequest)
	if err := c.Bind(payload); err != nil {
		return s.renderReset(c, http.StatusBadRequest, "", s.messages.Get(auth.TextCodeInvalidInput), "")
	}

	if err := s.controller.ResetPassword(c.Context(), payload.Email); err != nil {
		return s.renderReset(c, statusFor(err), "", s.messages.ForError(err), "")
	}
	return s.renderReset(c, http.StatusOK, "", "", s.messages.Get("password_reset.sent"))
}

// PasswordResetForm renders the new password form for a reset link.
func (s *Server) PasswordResetForm(c router.Context) error {
	if s.resetter == nil {
		return fiber.ErrNotFound
	}
	return s.renderReset(c, http.StatusOK, c.Param("token"), "", "")
}

// PasswordResetExecute completes a reset link.
func (s *Server) PasswordResetExecute(c router.Context) error {
	if s.resetter == nil {
		return fiber.ErrNotFound
	}
	token := c.Param("token")
	payload := struct {
		Password string `form:"password" json:"password"`
	}{}
	if err := c.Bind(&payload); err != nil {
		return s.renderReset(c, http.StatusBadRequest, token, s.messages.Get(auth.TextCodeInvalidInput), "")
	}

	req := auth.ChangePasswordRequest{CurrentPassword: token, NewPassword: payload.Password}
	if err := req.Validate(); err != nil {
		return s.renderReset(c, http.StatusBadRequest, token, s.messages.Get(auth.TextCodeInvalidInput), "")
	}

	if err := s.resetter.ConfirmPasswordReset(c.Context(), token, payload.Password); err != nil {
		return s.renderReset(c, statusFor(err), token, s.messages.ForError(err), "")
	}
	return s.renderLogin(c, http.StatusOK, nil, "", s.messages.Get("password_reset.done"))
}

func (s *Server) renderReset(c router.Context, status int, token, errMsg, notice string) error {
	return s.view(c, status, "password_reset", router.ViewContext{
		"title":  s.messages.Get("login.title"),
		"login":  s.messages.Get("login.title"),
		"token":  token,
		"error":  errMsg,
		"notice": notice,
	})
}

// VerifyEmail confirms an email verification link.
func (s *Server) VerifyEmail(c router.Context) error {
	if s.verifier == nil {
		return fiber.ErrNotFound
	}
	if err := s.verifier.ConfirmEmail(c.Context(), c.Query("token")); err != nil {
		return s.renderLogin(c, statusFor(err), nil, s.messages.ForError(err), "")
	}
	return s.renderLogin(c, http.StatusOK, nil, "", s.messages.Get("verify_email.done"))
}
