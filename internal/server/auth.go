package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

type role int

const (
	roleNone role = iota
	roleView
	roleEdit
)

// authenticate maps the bearer token to a role. With no tokens configured
// every caller may edit.
func (s *Server) authenticate(r *http.Request) role {
	view, edit := s.config.ViewToken, s.config.EditToken
	if view == "" && edit == "" {
		return roleEdit
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		// Browsers cannot set headers on websocket upgrades.
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return roleNone
	}

	switch {
	case edit != "" && secureCompare(token, edit):
		return roleEdit
	case view != "" && secureCompare(token, view):
		if edit == "" {
			return roleEdit
		}
		return roleView
	}
	return roleNone
}

// secureCompare performs constant-time string comparison.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requireRole rejects callers below min: 401 without a valid token, 403 when
// the token only allows viewing.
func (s *Server) requireRole(min role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := s.authenticate(r)
			switch {
			case got == roleNone:
				w.Header().Set("WWW-Authenticate", `Bearer realm="pedigree"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			case got < min:
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
