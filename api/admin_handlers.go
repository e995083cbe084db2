package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/soroboxing/gymgate/auth"
	"github.com/soroboxing/gymgate/member"
)

// ListMembers handles GET /admin/members.
func (a *API) ListMembers(w http.ResponseWriter, r *http.Request, _ AuthContext) {
	includeDeleted, _ := strconv.ParseBool(r.URL.Query().Get("include_deleted"))
	members, err := a.auth.ListMembers(r.Context(), includeDeleted)
	if err != nil {
		a.mapError(w, r, err)
		return
	}

	limit, offset := parsePagination(r)
	page, meta := paginate(members, limit, offset)
	out := make([]AdminMember, 0, len(page))
	for _, m := range page {
		out = append(out, adminMemberFrom(m))
	}
	writeJSON(w, http.StatusOK, ListMembersResponse{Members: out, PaginationMeta: meta})
}

// CreateMember handles POST /admin/members. The generated secret is in the
// response and nowhere else.
func (a *API) CreateMember(w http.ResponseWriter, r *http.Request, ac AuthContext) {
	req, ok := decodeJSON[CreateMemberRequest](w, r, maxAdminBodySize)
	if !ok {
		return
	}
	m, secret, err := a.auth.ProvisionMember(r.Context(), auth.NewMember{
		Identifier: req.Identifier,
		Role:       req.Role,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
	})
	if err != nil {
		a.mapError(w, r, err)
		return
	}

	a.events.logEvent(EventMemberCreated, r, m.ID,
		slog.String("role", string(m.Role)),
		slog.String("actor_id", ac.Identity.MemberID))
	writeJSON(w, http.StatusCreated, CreateMemberResponse{
		Success: true,
		User:    userFromMember(*m),
		Secret:  secret,
	})
}

// GetMember handles GET /admin/members/{memberID}.
func (a *API) GetMember(w http.ResponseWriter, r *http.Request, _ AuthContext) {
	memberID := chi.URLParam(r, "memberID")
	m, err := a.auth.GetMember(r.Context(), memberID)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	sessions, err := a.auth.ListSessions(r.Context(), memberID)
	if err != nil {
		a.mapError(w, r, err)
		return
	}

	now := a.auth.Now()
	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, sessionSummaryFrom(s, now))
	}
	writeJSON(w, http.StatusOK, MemberDetailResponse{
		Member:   adminMemberFrom(*m),
		Sessions: summaries,
	})
}

// ResetSecret handles POST /admin/members/{memberID}/reset-secret.
func (a *API) ResetSecret(w http.ResponseWriter, r *http.Request, ac AuthContext) {
	memberID := chi.URLParam(r, "memberID")
	secret, err := a.auth.ResetSecret(r.Context(), memberID)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	a.events.logEvent(EventSecretReset, r, memberID, slog.String("actor_id", ac.Identity.MemberID))
	writeJSON(w, http.StatusOK, ResetSecretResponse{Success: true, Secret: secret})
}

// DeactivateMember handles POST /admin/members/{memberID}/deactivate.
func (a *API) DeactivateMember(w http.ResponseWriter, r *http.Request, ac AuthContext) {
	memberID := chi.URLParam(r, "memberID")
	if memberID == ac.Identity.MemberID {
		writeError(w, http.StatusBadRequest, "cannot deactivate your own account")
		return
	}
	if err := a.auth.DeactivateMember(r.Context(), memberID); err != nil {
		a.mapError(w, r, err)
		return
	}
	a.events.logEvent(EventMemberDeactivated, r, memberID, slog.String("actor_id", ac.Identity.MemberID))
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// ReactivateMember handles POST /admin/members/{memberID}/reactivate.
func (a *API) ReactivateMember(w http.ResponseWriter, r *http.Request, ac AuthContext) {
	memberID := chi.URLParam(r, "memberID")
	if err := a.auth.ReactivateMember(r.Context(), memberID); err != nil {
		a.mapError(w, r, err)
		return
	}
	a.events.logEvent(EventMemberReactivated, r, memberID, slog.String("actor_id", ac.Identity.MemberID))
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// RevokeSessions handles POST /admin/members/{memberID}/revoke-sessions.
func (a *API) RevokeSessions(w http.ResponseWriter, r *http.Request, ac AuthContext) {
	memberID := chi.URLParam(r, "memberID")
	if _, err := a.auth.GetMember(r.Context(), memberID); err != nil {
		a.mapError(w, r, err)
		return
	}
	n, err := a.auth.RevokeAllSessions(r.Context(), memberID)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	a.events.logEvent(EventSessionsRevoked, r, memberID,
		slog.Int("revoked", n),
		slog.String("actor_id", ac.Identity.MemberID))
	writeJSON(w, http.StatusOK, RevokeSessionsResponse{Success: true, Revoked: n})
}

func sessionSummaryFrom(s member.Session, now time.Time) SessionSummary {
	return SessionSummary{
		ID:        s.ID,
		IssuedAt:  s.IssuedAt,
		ExpiresAt: s.ExpiresAt,
		RevokedAt: s.RevokedAt,
		Live:      s.Live(now),
	}
}
