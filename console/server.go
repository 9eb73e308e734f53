// Package console serves the business console through go-router on fiber:
// login views, guarded sections and the JSON API driving the session
// controller.
package console

import (
	"bytes"
	"context"
	"embed"
	"io/fs"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	auth "github.com/goliatone/go-console-auth"
	"github.com/goliatone/go-console-auth/idle"
	"github.com/goliatone/go-router"
)

//go:embed views/*.html
var viewsFS embed.FS

// Config holds console options
type Config interface {
	GetAppName() string
	GetLocale() string
	GetRejectedRouteKey() string
	GetBlobDir() string
	GetBlobURLPrefix() string
	GetSigningKey() string
	GetIssuer() string
	GetSessionCookie() string
	GetSessionTTL() time.Duration
}

// Section is a guarded console page.
type Section struct {
	Path  string
	Title string
	Roles []auth.Role
}

// DefaultSections lists the console pages and who may open them.
func DefaultSections() []Section {
	return []Section{
		{Path: "/", Title: "dashboard"},
		{Path: "/customers", Title: "customers", Roles: []auth.Role{auth.RoleSales, auth.RoleAccountant}},
		{Path: "/products", Title: "products"},
		{Path: "/sales", Title: "sales", Roles: []auth.Role{auth.RoleSales}},
		{Path: "/returns", Title: "returns", Roles: []auth.Role{auth.RoleSales}},
		{Path: "/payments", Title: "payments", Roles: []auth.Role{auth.RoleAccountant}},
		{Path: "/users", Title: "users", Roles: []auth.Role{auth.RoleAdmin}},
		{Path: "/profile", Title: "profile"},
	}
}

// Server wires the session controller into a go-router server backed by
// fiber.
type Server struct {
	srv        router.Server[*fiber.App]
	cfg        Config
	controller *auth.Controller
	cookies    *sessionCookies
	guard      *auth.RouteGuard
	idle       *idle.Guard
	logger     auth.Logger
	messages   Messages
	sections   []Section
	views      router.Views
	resetter   auth.PasswordResetter
	verifier   auth.EmailVerifier
}

// Option customizes the server.
type Option func(*Server)

// WithIdleGuard routes /api/activity signals to g.
func WithIdleGuard(g *idle.Guard) Option {
	return func(s *Server) {
		s.idle = g
	}
}

// WithRouteGuard overrides the route guard.
func WithRouteGuard(g *auth.RouteGuard) Option {
	return func(s *Server) {
		if g != nil {
			s.guard = g
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(l auth.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSections replaces the guarded pages.
func WithSections(sections ...Section) Option {
	return func(s *Server) {
		s.sections = sections
	}
}

// WithPasswordResetter enables the reset link form.
func WithPasswordResetter(r auth.PasswordResetter) Option {
	return func(s *Server) {
		s.resetter = r
	}
}

// WithEmailVerifier enables the email verification link.
func WithEmailVerifier(v auth.EmailVerifier) Option {
	return func(s *Server) {
		s.verifier = v
	}
}

// New builds the server and registers its routes.
func New(cfg Config, controller *auth.Controller, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		controller: controller,
		cookies:    newSessionCookies(cfg),
		guard:      auth.NewRouteGuard(),
		logger:     auth.DefaultLogger(),
		sections:   DefaultSections(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.messages = NewMessages(cfg.GetLocale())

	views, err := fs.Sub(viewsFS, "views")
	if err != nil {
		return nil, err
	}
	engine := django.NewFileSystem(http.FS(views), ".html")
	if err := engine.Load(); err != nil {
		return nil, err
	}
	s.views = engine

	s.srv = router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:               cfg.GetAppName(),
			DisableStartupMessage: true,
			ReadTimeout:           30 * time.Second,
			BodyLimit:             8 * 1024 * 1024,
			ErrorHandler:          s.errorHandler,
		}))
	})

	s.routes(s.srv.Router())
	return s, nil
}

// App returns the fiber app behind the router, handy for app.Test.
func (s *Server) App() *fiber.App {
	return s.srv.WrappedRouter()
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	return s.srv.Serve(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) routes(r router.Router[*fiber.App]) {
	if dir := s.cfg.GetBlobDir(); dir != "" {
		r.Static(s.cfg.GetBlobURLPrefix(), dir)
	}

	r.Get("/login", s.LoginShow)
	r.Post("/login", s.LoginPost)
	r.Post("/logout", s.LogOut)
	r.Get("/password-reset", s.PasswordResetGet)
	r.Post("/password-reset", s.PasswordResetPost)
	r.Get("/password-reset/:token", s.PasswordResetForm)
	r.Post("/password-reset/:token", s.PasswordResetExecute)
	r.Get("/verify-email", s.VerifyEmail)

	api := r.Group("/api")
	api.Get("/session", s.SessionGet)
	api.Post("/activity", s.ActivityPost, s.Protect())
	api.Post("/reauthenticate", s.ReauthenticatePost, s.Protect())
	api.Patch("/profile", s.ProfilePatch, s.Protect())
	api.Post("/profile/email", s.EmailPost, s.Protect())
	api.Post("/profile/password", s.PasswordPost, s.Protect())
	api.Post("/profile/photo", s.PhotoPost, s.Protect())
	api.Get("/users", s.UsersGet, s.Protect(auth.RoleAdmin))
	api.Post("/users", s.UsersPost, s.Protect(auth.RoleAdmin))

	for _, section := range s.sections {
		r.Get(section.Path, s.sectionHandler(section), s.Protect(section.Roles...))
	}
}

func (s *Server) sectionHandler(section Section) router.HandlerFunc {
	return func(c router.Context) error {
		sess, _ := auth.SessionFromContext(c.Context())
		return s.view(c, http.StatusOK, "section", s.render(router.ViewContext{
			"title":        s.messages.Get("section." + section.Title),
			"section":      section.Title,
			"session":      sess,
			"is_admin":     auth.HasRole(c.Context(), auth.RoleAdmin),
			"idle_seconds": s.idleSeconds(),
			"logout":       s.messages.Get("logout"),
		}, sess, section.Title))
	}
}

// view renders name with the django engine. Bindings keep their Go values
// so templates can reach struct fields and helper funcs.
func (s *Server) view(c router.Context, status int, name string, data router.ViewContext) error {
	var buf bytes.Buffer
	if err := s.views.Render(&buf, name, map[string]any(data)); err != nil {
		return err
	}
	c.SetHeader(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).Send(buf.Bytes())
}

func (s *Server) idleSeconds() int {
	if s.idle == nil {
		return 0
	}
	return int(s.idle.Timeout().Seconds())
}
