package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/soroboxing/gymgate/auth"
)

// Login handles POST /auth/login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}

	identifier, secret := req.credentials()
	res, err := a.auth.Login(r.Context(), identifier, secret)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrMissingCredentials):
		writeError(w, http.StatusBadRequest, "identifier and secret are required")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		a.events.logFailure(EventLoginFailure, r, "invalid credentials")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	case errors.Is(err, auth.ErrAccountInactive):
		a.events.logFailure(EventLoginFailure, r, "account inactive")
		writeError(w, http.StatusForbidden, "account inactive")
		return
	default:
		a.writeInternalError(w, r, err)
		return
	}

	a.writeSessionCookie(w, r, res.Token, res.Session.ExpiresAt)
	a.writeCSRFCookie(w, r, res.Session.ExpiresAt)

	a.events.logEvent(EventLoginSuccess, r, res.Member.ID,
		slog.String("session_id", res.Session.ID),
		slog.String("role", string(res.Member.Role)))
	writeJSON(w, http.StatusOK, LoginResponse{
		Success: true,
		User:    userFromMember(res.Member),
	})
}

// Logout handles POST /auth/logout. It always succeeds and always clears the
// cookies; a store failure is logged but does not change the response.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := a.auth.Logout(r.Context(), token); err != nil {
			a.events.logFailure(EventStoreFailure, r, "logout revoke failed", slog.String("error", err.Error()))
		} else {
			a.events.log(EventLogout, r)
		}
	}

	a.clearSessionCookie(w, r)
	a.clearCSRFCookie(w, r)
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Me handles GET /auth/me.
func (a *API) Me(w http.ResponseWriter, r *http.Request, ac AuthContext) {
	m, err := a.auth.GetMember(r.Context(), ac.Identity.MemberID)
	if errors.Is(err, auth.ErrMemberNotFound) {
		// The session outlived its member record.
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if err != nil {
		a.writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{User: userFromMember(*m)})
}
