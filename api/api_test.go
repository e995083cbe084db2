package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soroboxing/gymgate/api"
	"github.com/soroboxing/gymgate/auth"
	"github.com/soroboxing/gymgate/internal/util"
	"github.com/soroboxing/gymgate/member"
	"github.com/soroboxing/gymgate/storage"
	"github.com/soroboxing/gymgate/storage/memory"
)

const (
	adminIdentifier = "ADMIN01"
	adminSecret     = "9999"
)

type testServer struct {
	*httptest.Server
	svc *auth.Service
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T, members storage.MemberStore, sessions storage.SessionStore) *auth.Service {
	t.Helper()
	params, err := util.Argon2idProfile(util.KDFProfileInteractive)
	require.NoError(t, err)
	return auth.New(members, sessions,
		auth.WithLogger(discardLogger()),
		auth.WithArgon2idParams(params))
}

func newRouter(a *api.API) http.Handler {
	r := chi.NewRouter()
	r.Use(api.SecurityHeaders)
	r.Mount(api.MountPath, a.Router())
	r.With(a.PageGate).Get("/*", func(w http.ResponseWriter, r *http.Request) {
		ac, _ := api.AuthContextFrom(r.Context())
		w.Write([]byte("page " + r.URL.Path + " " + ac.Identity.Identifier))
	})
	return r
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	svc := newService(t, store, store)
	_, _, err := svc.BootstrapAdmin(context.Background(), adminIdentifier, adminSecret)
	require.NoError(t, err)

	srv := httptest.NewServer(newRouter(api.New(svc, api.WithLogger(discardLogger()))))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, svc: svc}
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func cookieValue(t *testing.T, client *http.Client, baseURL, name string) string {
	t.Helper()
	u, err := url.Parse(baseURL)
	require.NoError(t, err)
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) *http.Response {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req, err := http.NewRequestWithContext(t.Context(), method, url, &reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if csrf := cookieValue(t, client, url, "gym_csrf"); csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func login(t *testing.T, client *http.Client, baseURL, identifier, secret string) *http.Response {
	t.Helper()
	return doJSON(t, client, http.MethodPost, baseURL+"/api/auth/login", api.LoginRequest{
		Identifier: identifier,
		Secret:     secret,
	})
}

func loginAdmin(t *testing.T, srv *testServer) *http.Client {
	t.Helper()
	client := newClient(t)
	resp := login(t, client, srv.URL, adminIdentifier, adminSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return client
}

// createMember provisions a member through the admin API and returns its ID
// and one-time secret.
func createMember(t *testing.T, srv *testServer, admin *http.Client, identifier string) (string, string) {
	t.Helper()
	resp := doJSON(t, admin, http.MethodPost, srv.URL+"/api/admin/members", api.CreateMemberRequest{
		Identifier: identifier,
		FirstName:  "Lucía",
		LastName:   "Pérez",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[api.CreateMemberResponse](t, resp)
	require.True(t, created.Success)
	return created.User.ID, created.Secret
}

func TestLoginAndMe(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)

	resp := login(t, client, srv.URL, "admin01", adminSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[api.LoginResponse](t, resp)
	assert.True(t, body.Success)
	assert.Equal(t, adminIdentifier, body.User.Identifier)
	assert.Equal(t, member.RoleAdmin, body.User.Role)
	assert.NotEmpty(t, cookieValue(t, client, srv.URL, "gym_session"))
	assert.NotEmpty(t, cookieValue(t, client, srv.URL, "gym_csrf"))

	resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/auth/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[api.MeResponse](t, resp)
	assert.Equal(t, body.User.ID, me.User.ID)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

func TestLoginFailures(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantError  string
	}{
		{"wrong secret", api.LoginRequest{Identifier: adminIdentifier, Secret: "0000"}, http.StatusUnauthorized, "invalid credentials"},
		{"unknown identifier", api.LoginRequest{Identifier: "12345678A", Secret: "654321"}, http.StatusUnauthorized, "invalid credentials"},
		{"missing secret", api.LoginRequest{Identifier: adminIdentifier}, http.StatusBadRequest, "identifier and secret are required"},
		{"blank identifier", api.LoginRequest{Identifier: "   ", Secret: "1234"}, http.StatusBadRequest, "identifier and secret are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/auth/login", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantError, decode[api.ErrorResponse](t, resp).Error)
			assert.Empty(t, cookieValue(t, client, srv.URL, "gym_session"))
		})
	}
}

func TestLoginBadJSON(t *testing.T) {
	srv := setupServer(t)
	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp2, err := http.Post(srv.URL+"/api/auth/login", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestLoginLegacyFieldNames(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)
	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/auth/login", map[string]string{
		"dni": adminIdentifier,
		"pin": adminSecret,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMeWithoutSession(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)

	resp := doJSON(t, client, http.MethodGet, srv.URL+"/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "not authenticated", decode[api.ErrorResponse](t, resp).Error)
}

func TestMeWithForgedToken(t *testing.T) {
	srv := setupServer(t)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "gym_session", Value: "forged-token"})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogout(t *testing.T) {
	srv := setupServer(t)
	client := loginAdmin(t, srv)
	token := cookieValue(t, client, srv.URL, "gym_session")

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[api.SuccessResponse](t, resp).Success)
	assert.Empty(t, cookieValue(t, client, srv.URL, "gym_session"))

	// The revoked token is rejected even when replayed by hand.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "gym_session", Value: token})
	replay, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer replay.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, replay.StatusCode)

	// Second logout and logout without any cookie still succeed.
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/auth/logout", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doJSON(t, newClient(t), http.MethodPost, srv.URL+"/api/auth/logout", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	srv := setupServer(t)
	phone := loginAdmin(t, srv)
	laptop := loginAdmin(t, srv)

	doJSON(t, phone, http.MethodPost, srv.URL+"/api/auth/logout", nil)

	resp := doJSON(t, laptop, http.MethodGet, srv.URL+"/api/auth/me", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminGate(t *testing.T) {
	srv := setupServer(t)
	admin := loginAdmin(t, srv)
	_, secret := createMember(t, srv, admin, "12345678A")

	memberClient := newClient(t)
	require.Equal(t, http.StatusOK, login(t, memberClient, srv.URL, "12345678A", secret).StatusCode)

	resp := doJSON(t, memberClient, http.MethodGet, srv.URL+"/api/admin/members", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "admin role required", decode[api.ErrorResponse](t, resp).Error)

	resp = doJSON(t, newClient(t), http.MethodGet, srv.URL+"/api/admin/members", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminMutationRequiresCSRF(t *testing.T) {
	srv := setupServer(t)
	admin := loginAdmin(t, srv)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/admin/members",
		bytes.NewBufferString(`{"identifier":"12345678A"}`))
	require.NoError(t, err)
	resp, err := admin.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "missing CSRF token", decode[api.ErrorResponse](t, resp).Error)

	req, err = http.NewRequest(http.MethodPost, srv.URL+"/api/admin/members",
		bytes.NewBufferString(`{"identifier":"12345678A"}`))
	require.NoError(t, err)
	req.Header.Set("X-CSRF-Token", "wrong")
	resp2, err := admin.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp2.StatusCode)
	assert.Equal(t, "invalid CSRF token", decode[api.ErrorResponse](t, resp2).Error)
}

func TestCreateMember(t *testing.T) {
	srv := setupServer(t)
	admin := loginAdmin(t, srv)

	id, secret := createMember(t, srv, admin, "12345678a")
	assert.NotEmpty(t, id)
	assert.Regexp(t, `^[0-9]{6}$`, secret)

	memberClient := newClient(t)
	resp := login(t, memberClient, srv.URL, "12345678A", secret)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, member.RoleMember, decode[api.LoginResponse](t, resp).User.Role)

	resp = doJSON(t, admin, http.MethodPost, srv.URL+"/api/admin/members", api.CreateMemberRequest{Identifier: "12345678A"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, admin, http.MethodPost, srv.URL+"/api/admin/members", api.CreateMemberRequest{Identifier: "bad id!"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, admin, http.MethodPost, srv.URL+"/api/admin/members", api.CreateMemberRequest{
		Identifier: "87654321B",
		Role:       "owner",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResetSecretRevokesSessions(t *testing.T) {
	srv := setupServer(t)
	admin := loginAdmin(t, srv)
	id, oldSecret := createMember(t, srv, admin, "12345678A")

	memberClient := newClient(t)
	require.Equal(t, http.StatusOK, login(t, memberClient, srv.URL, "12345678A", oldSecret).StatusCode)

	resp := doJSON(t, admin, http.MethodPost, srv.URL+"/api/admin/members/"+id+"/reset-secret", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reset := decode[api.ResetSecretResponse](t, resp)
	require.NotEmpty(t, reset.Secret)

	resp = doJSON(t, memberClient, http.MethodGet, srv.URL+"/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "old session must be revoked")

	if reset.Secret != oldSecret {
		assert.Equal(t, http.StatusUnauthorized, login(t, newClient(t), srv.URL, "12345678A", oldSecret).StatusCode)
	}
	assert.Equal(t, http.StatusOK, login(t, newClient(t), srv.URL, "12345678A", reset.Secret).StatusCode)

	resp = doJSON(t, admin, http.MethodPost, srv.URL+"/api/admin/members/no-such-id/reset-secret", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeactivateAndReactivate(t *testing.T) {
	srv := setupServer(t)
	admin := loginAdmin(t, srv)
	id, secret := createMember(t, srv, admin, "12345678A")

	memberClient := newClient(t)
	require.Equal(t, http.StatusOK, login(t, memberClient, srv.URL, "12345678A", secret).StatusCode)

	base := srv.URL + "/api/admin/members/" + id
	resp := doJSON(t, admin, http.MethodPost, base+"/deactivate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, memberClient, http.MethodGet, srv.URL+"/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = login(t, newClient(t), srv.URL, "12345678A", secret)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "account inactive", decode[api.ErrorResponse](t, resp).Error)

	resp = doJSON(t, admin, http.MethodPost, base+"/deactivate", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, admin, http.MethodPost, base+"/reactivate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doJSON(t, admin, http.MethodPost, base+"/reactivate", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Sessions revoked on deactivation stay revoked.
	resp = doJSON(t, memberClient, http.MethodGet, srv.URL+"/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, http.StatusOK, login(t, newClient(t), srv.URL, "12345678A", secret).StatusCode)
}

func TestAdminCannotDeactivateSelf(t *testing.T) {
	srv := setupServer(t)
	admin := loginAdmin(t, srv)

	resp := doJSON(t, admin, http.MethodGet, srv.URL+"/api/auth/me", nil)
	me := decode[api.MeResponse](t, resp)

	resp = doJSON(t, admin, http.MethodPost, srv.URL+"/api/admin/members/"+me.User.ID+"/deactivate", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRevokeSessions(t *testing.T) {
	srv := setupServer(t)
	admin := loginAdmin(t, srv)
	id, secret := createMember(t, srv, admin, "12345678A")

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, login(t, newClient(t), srv.URL, "12345678A", secret).StatusCode)
	}

	resp := doJSON(t, admin, http.MethodPost, srv.URL+"/api/admin/members/"+id+"/revoke-sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, decode[api.RevokeSessionsResponse](t, resp).Revoked)

	resp = doJSON(t, admin, http.MethodGet, srv.URL+"/api/admin/members/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decode[api.MemberDetailResponse](t, resp)
	require.Len(t, detail.Sessions, 2)
	for _, s := range detail.Sessions {
		assert.False(t, s.Live)
		assert.NotNil(t, s.RevokedAt)
	}
}

func TestGetMember(t *testing.T) {
	srv := setupServer(t)
	admin := loginAdmin(t, srv)
	id, secret := createMember(t, srv, admin, "12345678A")
	require.Equal(t, http.StatusOK, login(t, newClient(t), srv.URL, "12345678A", secret).StatusCode)

	resp := doJSON(t, admin, http.MethodGet, srv.URL+"/api/admin/members/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decode[api.MemberDetailResponse](t, resp)
	assert.Equal(t, "12345678A", detail.Member.Identifier)
	assert.Equal(t, "Lucía", detail.Member.FirstName)
	assert.NotNil(t, detail.Member.LastLoginAt)
	require.Len(t, detail.Sessions, 1)
	assert.True(t, detail.Sessions[0].Live)

	resp = doJSON(t, admin, http.MethodGet, srv.URL+"/api/admin/members/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListMembers(t *testing.T) {
	srv := setupServer(t)
	admin := loginAdmin(t, srv)
	id, _ := createMember(t, srv, admin, "11111111A")
	createMember(t, srv, admin, "22222222B")
	require.Equal(t, http.StatusOK,
		doJSON(t, admin, http.MethodPost, srv.URL+"/api/admin/members/"+id+"/deactivate", nil).StatusCode)

	resp := doJSON(t, admin, http.MethodGet, srv.URL+"/api/admin/members", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[api.ListMembersResponse](t, resp)
	assert.Equal(t, 2, list.TotalCount, "admin plus one active member")
	for _, m := range list.Members {
		assert.NotEqual(t, id, m.ID)
	}

	resp = doJSON(t, admin, http.MethodGet, srv.URL+"/api/admin/members?include_deleted=true&limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list = decode[api.ListMembersResponse](t, resp)
	assert.Equal(t, 3, list.TotalCount)
	require.Len(t, list.Members, 1)
	assert.True(t, list.HasMore)
	assert.Equal(t, "11111111A", list.Members[0].Identifier, "members are sorted by identifier")
	assert.NotNil(t, list.Members[0].DeletedAt)
}

func TestPageGate(t *testing.T) {
	srv := setupServer(t)
	admin := loginAdmin(t, srv)
	_, secret := createMember(t, srv, admin, "12345678A")
	memberClient := newClient(t)
	require.Equal(t, http.StatusOK, login(t, memberClient, srv.URL, "12345678A", secret).StatusCode)
	anon := newClient(t)

	tests := []struct {
		name         string
		client       *http.Client
		path         string
		wantStatus   int
		wantLocation string
	}{
		{"anon root", anon, "/", http.StatusOK, ""},
		{"anon login page", anon, "/login", http.StatusOK, ""},
		{"anon static asset", anon, "/assets/app.css", http.StatusOK, ""},
		{"anon file with extension", anon, "/logo.png", http.StatusOK, ""},
		{"anon protected page", anon, "/clases", http.StatusSeeOther, "/login"},
		{"anon admin page", anon, "/admin", http.StatusSeeOther, "/login"},
		{"anon admin page file", anon, "/admin.html", http.StatusSeeOther, "/login"},
		{"anon protected page file", anon, "/clases.html", http.StatusSeeOther, "/login"},
		{"member admin page file", memberClient, "/admin.html", http.StatusSeeOther, "/clases"},
		{"member protected page", memberClient, "/clases", http.StatusOK, ""},
		{"member admin page", memberClient, "/admin/socios", http.StatusSeeOther, "/clases"},
		{"member gestion page", memberClient, "/gestion", http.StatusSeeOther, "/clases"},
		{"admin admin page", admin, "/admin/socios", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, tt.client, http.MethodGet, srv.URL+tt.path, nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantLocation, resp.Header.Get("Location"))
		})
	}
}

func TestPageGatePassesAuthContext(t *testing.T) {
	srv := setupServer(t)
	admin := loginAdmin(t, srv)

	resp := doJSON(t, admin, http.MethodGet, srv.URL+"/clases", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "page /clases "+adminIdentifier, string(body))
}

func TestPageGateClearsStaleCookie(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	client.Jar.SetCookies(u, []*http.Cookie{{Name: "gym_session", Value: "stale", Path: "/"}})

	resp := doJSON(t, client, http.MethodGet, srv.URL+"/clases", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Empty(t, cookieValue(t, client, srv.URL, "gym_session"))
}

func TestSessionCookieAttributes(t *testing.T) {
	store := memory.NewStore()
	svc := newService(t, store, store)
	_, _, err := svc.BootstrapAdmin(context.Background(), adminIdentifier, adminSecret)
	require.NoError(t, err)

	loginRecorder := func(a *api.API, forwardedProto string) *http.Cookie {
		body := bytes.NewBufferString(`{"identifier":"ADMIN01","secret":"9999"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
		if forwardedProto != "" {
			req.Header.Set("X-Forwarded-Proto", forwardedProto)
		}
		rec := httptest.NewRecorder()
		newRouter(a).ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		for _, c := range rec.Result().Cookies() {
			if c.Name == "gym_session" {
				return c
			}
		}
		t.Fatal("gym_session cookie not set")
		return nil
	}

	plain := loginRecorder(api.New(svc, api.WithLogger(discardLogger())), "")
	assert.True(t, plain.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, plain.SameSite)
	assert.Equal(t, "/", plain.Path)
	assert.False(t, plain.Secure)
	assert.WithinDuration(t, time.Now().Add(auth.DefaultSessionTTL), plain.Expires, time.Minute)

	proxied := loginRecorder(api.New(svc, api.WithLogger(discardLogger())), "https")
	assert.True(t, proxied.Secure)

	production := loginRecorder(api.New(svc, api.WithLogger(discardLogger()), api.WithProduction(true)), "")
	assert.True(t, production.Secure)
}

// failingMembers fails every identifier lookup.
type failingMembers struct {
	*memory.Store
}

func (failingMembers) GetMemberByIdentifier(context.Context, string) (*member.Member, error) {
	return nil, errors.New("connection refused")
}

func TestStoreFailureIsGeneric500(t *testing.T) {
	store := memory.NewStore()
	svc := newService(t, failingMembers{store}, store)
	srv := httptest.NewServer(newRouter(api.New(svc, api.WithLogger(discardLogger()))))
	defer srv.Close()

	resp := login(t, newClient(t), srv.URL, adminIdentifier, adminSecret)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal server error", decode[api.ErrorResponse](t, resp).Error)
}

func TestOpenAPISpecServed(t *testing.T) {
	srv := setupServer(t)
	resp := doJSON(t, newClient(t), http.MethodGet, srv.URL+"/api/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "/admin/members/{memberID}/reset-secret")
}
