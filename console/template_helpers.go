package console

import (
	"maps"

	auth "github.com/goliatone/go-console-auth"
	"github.com/goliatone/go-router"
)

// TemplateUserKey is the view variable holding the signed in session.
const TemplateUserKey = "current_user"

// NavItem is a section link shown to the current session.
type NavItem struct {
	Path   string
	Title  string
	Active bool
}

// TemplateHelpers returns the view globals bound to sess.
//
// In templates:
//
//	{% if is_authenticated() %}
//	{% if has_role("accountant") %}
//	{% if is_at_least(roles.manager) %}
//	{% for item in nav %}<a href="{{ item.Path }}">{{ item.Title }}</a>{% endfor %}
func (s *Server) TemplateHelpers(sess *auth.Session, current string) map[string]any {
	roles := map[string]string{}
	for _, r := range auth.Roles() {
		roles[string(r)] = string(r)
	}

	return map[string]any{
		TemplateUserKey:    sess,
		"is_authenticated": func() bool { return sess.IsAuthenticated() },
		"has_role":         func(role string) bool { return hasRole(sess, role) },
		"is_at_least":      func(role string) bool { return isAtLeast(sess, role) },
		"roles":            roles,
		"nav":              s.navFor(sess, current),
	}
}

func (s *Server) render(data router.ViewContext, sess *auth.Session, current string) router.ViewContext {
	out := router.ViewContext{}
	maps.Copy(out, s.TemplateHelpers(sess, current))
	maps.Copy(out, data)
	return out
}

func (s *Server) navFor(sess *auth.Session, current string) []NavItem {
	items := []NavItem{}
	for _, section := range s.sections {
		if !canOpen(sess, section.Roles) {
			continue
		}
		items = append(items, NavItem{
			Path:   section.Path,
			Title:  s.messages.Get("section." + section.Title),
			Active: section.Title == current,
		})
	}
	return items
}

func hasRole(sess *auth.Session, role string) bool {
	if !sess.IsAuthenticated() {
		return false
	}
	r, err := auth.ParseRole(role)
	if err != nil || role == "" {
		return false
	}
	return sess.Role() == r
}

func isAtLeast(sess *auth.Session, role string) bool {
	if !sess.IsAuthenticated() {
		return false
	}
	r, err := auth.ParseRole(role)
	if err != nil || role == "" {
		return false
	}
	return sess.Role().IsAtLeast(r)
}

func canOpen(sess *auth.Session, roles []auth.Role) bool {
	if !sess.IsAuthenticated() {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	have := sess.Role()
	for _, r := range roles {
		if have.IsAtLeast(r) {
			return true
		}
	}
	return false
}
