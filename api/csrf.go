package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	csrfCookieName = "gym_csrf"
	csrfHeaderName = "X-CSRF-Token"
)

// CSRFMiddleware enforces double-submit cookie CSRF protection for
// cookie-authenticated mutating requests. Safe methods (GET, HEAD, OPTIONS)
// are exempt.
func (a *API) CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		// Without a session cookie the request is unauthenticated and the
		// gate rejects it anyway.
		if _, err := r.Cookie(sessionCookieName); err != nil {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get(csrfHeaderName)
		cookie, err := r.Cookie(csrfCookieName)
		if err != nil || cookie.Value == "" || header == "" {
			writeError(w, http.StatusForbidden, "missing CSRF token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
			writeError(w, http.StatusForbidden, "invalid CSRF token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeCSRFCookie sets the CSRF double-submit cookie. It is not HttpOnly so
// the admin pages can read it and echo it in the request header.
func (a *API) writeCSRFCookie(w http.ResponseWriter, r *http.Request, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    uuid.NewString(),
		Path:     "/",
		HttpOnly: false,
		Secure:   a.secureCookies(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
	})
}

func (a *API) clearCSRFCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: false,
		Secure:   a.secureCookies(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}
