package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandlerPages(t *testing.T) {
	h, err := Handler(nil)
	require.NoError(t, err)

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{"/", http.StatusOK, "Bienvenido"},
		{"/login", http.StatusOK, `id="login-form"`},
		{"/clases", http.StatusOK, "<h1>Clases</h1>"},
		{"/admin", http.StatusOK, `id="members"`},
		{"/admin/socios", http.StatusOK, `id="members"`},
		{"/gestion", http.StatusOK, `id="members"`},
		{"/assets/app.css", http.StatusOK, "font-family"},
		{"/nope", http.StatusNotFound, ""},
		{"/missing.png", http.StatusNotFound, ""},
		{"/admin.html", http.StatusNotFound, ""},
		{"/clases.html", http.StatusNotFound, ""},
		{"/index.html", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := serve(t, h, tt.path)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}

func TestHandlerInjectsMember(t *testing.T) {
	h, err := Handler(func(*http.Request) string { return `Ana <García>` })
	require.NoError(t, err)

	rec := serve(t, h, "/clases")
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `<meta name="gym-member" content="Ana &lt;García&gt;">`)
}

func TestHandlerNoMemberTagWhenAnonymous(t *testing.T) {
	h, err := Handler(func(*http.Request) string { return "" })
	require.NoError(t, err)
	assert.NotContains(t, serve(t, h, "/login").Body.String(), "gym-member")
}
