package console

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-console-auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// Protect guards a route with the live session snapshot. With roles the
// session must be at least one of them. The request must carry the session
// cookie minted for the signed in identity.
func (s *Server) Protect(roles ...auth.Role) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			snap := s.controller.Snapshot()
			decision := s.guard.Decide(snap, roles...)
			if decision == auth.DecisionRender || decision == auth.DecisionForbidden {
				if !s.cookies.owns(c, snap.Session) {
					decision = auth.DecisionRedirect
				}
			}

			switch decision {
			case auth.DecisionRender:
				c.SetContext(auth.WithSession(c.Context(), snap.Session))
				c.Locals("session", snap.Session)
				return next(c)

			case auth.DecisionLoading:
				if isAPI(c.Path()) {
					c.SetHeader(fiber.HeaderRetryAfter, "1")
					return c.JSON(http.StatusServiceUnavailable, router.ViewContext{
						"state": snap.State,
					})
				}
				return s.view(c, http.StatusOK, "loading", router.ViewContext{
					"title": s.messages.Get("loading.title"),
					"state": snap.State.String(),
				})

			case auth.DecisionError:
				s.logger.Warn("guarded %s %s while profile resolution failed: %v", c.Method(), c.Path(), snap.Err)
				if isAPI(c.Path()) {
					return s.jsonErrorStatus(c, http.StatusInternalServerError, snap.Err)
				}
				return s.view(c, http.StatusInternalServerError, "error", router.ViewContext{
					"title":      s.messages.Get("error.title"),
					"message":    s.messages.ForError(snap.Err),
					"state":      snap.State.String(),
					"logout":     s.messages.Get("logout"),
					"login":      s.messages.Get("login.title"),
					"login_path": s.guard.LoginPath,
				})

			case auth.DecisionForbidden:
				if isAPI(c.Path()) {
					return s.jsonError(c, auth.ErrForbidden)
				}
				return s.view(c, http.StatusForbidden, "forbidden", router.ViewContext{
					"title":   s.messages.Get("forbidden.title"),
					"message": s.messages.ForError(auth.ErrForbidden),
				})

			default:
				if isAPI(c.Path()) {
					return s.jsonError(c, auth.ErrNotAuthenticated)
				}
				s.setRedirect(c)
				statusCode := http.StatusSeeOther
				if c.Method() == fiber.MethodGet {
					statusCode = http.StatusFound
				}
				return c.Redirect(s.guard.LoginPath, statusCode)
			}
		}
	}
}

func isAPI(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

func (s *Server) setRedirect(c router.Context) {
	c.Cookie(&router.Cookie{
		Name:     s.cfg.GetRejectedRouteKey(),
		Value:    c.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: router.CookieSameSiteLaxMode,
	})
}

func (s *Server) redirectOrDefault(c router.Context) string {
	key := s.cfg.GetRejectedRouteKey()
	r := c.Cookies(key)
	if r == "" || !strings.HasPrefix(r, "/") || strings.HasPrefix(r, "//") {
		r = "/"
	}
	c.Cookie(&router.Cookie{
		Name:     key,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: router.CookieSameSiteLaxMode,
	})
	return r
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	for cur := err; cur != nil; {
		var richErr *goerrors.Error
		if !goerrors.As(cur, &richErr) || richErr == nil {
			break
		}
		if richErr.Code >= 400 && richErr.Code < 600 {
			return richErr.Code
		}
		cur = richErr.Source
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return http.StatusInternalServerError
}

func (s *Server) jsonError(c router.Context, err error) error {
	return s.jsonErrorStatus(c, statusFor(err), err)
}

func (s *Server) jsonErrorStatus(c router.Context, status int, err error) error {
	body := router.ViewContext{
		"error":  s.messages.ForError(err),
		"code":   auth.TextCode(err),
		"status": status,
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		if fields, ok := richErr.Metadata["fields"]; ok {
			body["fields"] = fields
		}
	}
	return c.JSON(status, body)
}

// errorHandler renders errors returned by handlers once they reach fiber.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("console request %s %s failed: %v", c.Method(), c.Path(), err)
	}
	if isAPI(c.Path()) {
		return c.Status(status).JSON(fiber.Map{
			"error":  s.messages.ForError(err),
			"code":   auth.TextCode(err),
			"status": status,
		})
	}
	return c.Status(status).SendString(s.messages.ForError(err))
}
