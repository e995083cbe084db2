package api

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/soroboxing/gymgate/auth"
)

const (
	loginPath   = "/login"
	landingPath = "/clases"
)

// Page paths that are reachable without a session.
var publicPages = map[string]bool{
	"/":            true,
	loginPath:      true,
	"/favicon.ico": true,
	"/health":      true,
	"/metrics":     true,
}

var publicPrefixes = []string{"/assets/", MountPath + "/"}

// Page path prefixes that need the admin role.
var adminPrefixes = []string{"/admin", "/gestion"}

// AuthContext is the outcome of authenticating one request. Handlers behind
// the gate receive it as an argument; the page gate also stores it on the
// request context for handlers outside this package.
type AuthContext struct {
	Identity      auth.Identity
	Authenticated bool
}

// IsAdmin reports whether the request carries an admin identity.
func (ac AuthContext) IsAdmin() bool {
	return ac.Authenticated && ac.Identity.IsAdmin()
}

type contextKey int

const authContextKey contextKey = iota

// WithAuthContext returns a copy of ctx carrying ac.
func WithAuthContext(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, ac)
}

// AuthContextFrom returns the AuthContext attached by PageGate.
func AuthContextFrom(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(authContextKey).(AuthContext)
	return ac, ok
}

// AuthedHandler is a handler that has already passed the gate.
type AuthedHandler func(w http.ResponseWriter, r *http.Request, ac AuthContext)

// authenticate resolves the session cookie. It is the only place in the
// server that calls auth.Service.Resolve. The returned bool reports whether
// a session cookie was presented at all.
func (a *API) authenticate(r *http.Request) (AuthContext, bool) {
	token := sessionToken(r)
	if token == "" {
		a.metrics.recordResolve(auth.ErrNoSession)
		return AuthContext{}, false
	}
	id, err := a.auth.Resolve(r.Context(), token)
	a.metrics.recordResolve(err)
	if err != nil {
		if !auth.IsAuthFailure(err) {
			a.logger.ErrorContext(r.Context(), "resolving session failed", "path", r.URL.Path, "error", err)
		}
		return AuthContext{}, true
	}
	return AuthContext{Identity: id, Authenticated: true}, true
}

// requireMember rejects anonymous requests with 401.
func (a *API) requireMember(next AuthedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, _ := a.authenticate(r)
		if !ac.Authenticated {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next(w, r, ac)
	}
}

// requireAdmin rejects anonymous requests with 401 and members with 403.
func (a *API) requireAdmin(next AuthedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, _ := a.authenticate(r)
		if !ac.Authenticated {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		if err := ac.Identity.RequireAdmin(); err != nil {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next(w, r, ac)
	}
}

// PageGate guards the web pages. Public pages pass untouched. Protected
// pages without a live session redirect to /login, dropping any stale
// cookie. Admin pages redirect non-admins to the member landing page.
func (a *API) PageGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if isPublicPath(p) {
			next.ServeHTTP(w, r)
			return
		}

		ac, hadCookie := a.authenticate(r)
		if !ac.Authenticated {
			if hadCookie {
				a.clearSessionCookie(w, r)
			}
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return
		}
		if isAdminPath(p) && !ac.IsAdmin() {
			http.Redirect(w, r, landingPath, http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), ac)))
	})
}

func isPublicPath(p string) bool {
	if publicPages[p] {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	// Static files such as /logo.png or /robots.txt. Pages are never public
	// under their file name.
	ext := path.Ext(p)
	return ext != "" && ext != ".html"
}

func isAdminPath(p string) bool {
	for _, prefix := range adminPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}
