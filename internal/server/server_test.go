package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/vitrina/vitrina/internal/auth"
	"github.com/vitrina/vitrina/internal/server"
)

const testSecret = "test-secret"

// --- Mock types ---

type mockPinger struct{ err error }

func (m *mockPinger) Ping(ctx context.Context) error { return m.err }

type mockStorage struct{}

func (m *mockStorage) GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://storage.example.com/" + key, nil
}

// --- Helpers ---

func newServerWithoutDB(t *testing.T) *server.Server {
	t.Helper()
	srv, err := server.New(server.Config{})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func newServerWithDB(t *testing.T) (*server.Server, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	t.Cleanup(func() { mock.Close() })

	srv, err := server.New(server.Config{
		DB:              mock,
		Pinger:          &mockPinger{},
		Storage:         &mockStorage{},
		JWTSecret:       testSecret,
		BaseURL:         "http://localhost:8080",
		StorageEndpoint: "https://storage.example.com",
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv, mock
}

func executeRequest(srv http.Handler, method, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func expectProfile(mock pgxmock.PgxPoolIface, uid, data string) {
	mock.ExpectQuery(`SELECT data, created_at FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs("users", uid).
		WillReturnRows(pgxmock.NewRows([]string{"data", "created_at"}).AddRow([]byte(data), time.Now()))
}

func sessionCookies(t *testing.T, uid, email string) []*http.Cookie {
	t.Helper()
	access, err := auth.GenerateAccessToken(testSecret, uid, email)
	if err != nil {
		t.Fatalf("generate access token: %v", err)
	}
	return []*http.Cookie{{Name: auth.AccessCookie, Value: access}}
}

func liveCookies(cookies []*http.Cookie) []*http.Cookie {
	var out []*http.Cookie
	for _, c := range cookies {
		if c.MaxAge >= 0 && c.Value != "" {
			out = append(out, c)
		}
	}
	return out
}

// --- Health ---

func TestHealthEndpoint(t *testing.T) {
	srv := newServerWithoutDB(t)
	rec := executeRequest(srv, http.MethodGet, "/api/health")

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}
	if rec.Body.String() != `{"status":"ok"}` {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHealthEndpointWithPingFailure(t *testing.T) {
	srv, err := server.New(server.Config{Pinger: &mockPinger{err: errors.New("connection refused")}})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	rec := executeRequest(srv, http.MethodGet, "/api/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
}

func TestNew_RequiresSecretWithDB(t *testing.T) {
	mock, _ := pgxmock.NewPool()
	defer mock.Close()

	if _, err := server.New(server.Config{DB: mock}); !errors.Is(err, server.ErrMissingSecret) {
		t.Errorf("expected ErrMissingSecret, got %v", err)
	}
}

func TestNilDBAuthRoutesNotRegistered(t *testing.T) {
	srv := newServerWithoutDB(t)
	for _, path := range []string{"/api/auth/login", "/api/videos"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404 without a database, got %d", path, rec.Code)
		}
	}
}

// --- Navigation shell ---

func TestRoutesTable(t *testing.T) {
	want := []struct{ path, label, role string }{
		{"/", "Home", ""},
		{"/posts", "Images", "premium"},
		{"/videos", "Videos", "premium"},
	}
	if len(server.Routes) != len(want) {
		t.Fatalf("expected %d routes, got %d", len(want), len(server.Routes))
	}
	for i, w := range want {
		r := server.Routes[i]
		if r.Path != w.path || r.Label != w.label || r.Role != w.role {
			t.Errorf("route %d: expected %+v, got %+v", i, w, r)
		}
	}
}

func TestUnauthenticatedPagesRedirectToLogin(t *testing.T) {
	srv, _ := newServerWithDB(t)
	for _, path := range []string{"/", "/videos", "/posts"} {
		rec := executeRequest(srv, http.MethodGet, path)
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
			t.Errorf("%s: expected redirect to /login, got %d %q", path, rec.Code, rec.Header().Get("Location"))
		}
	}
}

func TestUnauthenticatedAPIReturns401(t *testing.T) {
	srv, _ := newServerWithDB(t)
	for _, path := range []string{"/api/me", "/api/videos", "/api/posts"} {
		rec := executeRequest(srv, http.MethodGet, path)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestUnknownPageGoesHome(t *testing.T) {
	srv, _ := newServerWithDB(t)

	rec := executeRequest(srv, http.MethodGet, "/nowhere")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Errorf("expected redirect home, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = executeRequest(srv, http.MethodGet, "/api/nowhere")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected JSON 404 for unknown API path, got %d", rec.Code)
	}
}

func TestStaticAssetsServed(t *testing.T) {
	srv := newServerWithoutDB(t)
	rec := executeRequest(srv, http.MethodGet, "/static/app.css")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for stylesheet, got %d", rec.Code)
	}
}

func TestAPIDocsOnlyWhenEnabled(t *testing.T) {
	srv := newServerWithoutDB(t)
	if rec := executeRequest(srv, http.MethodGet, "/api/docs/openapi.yaml"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 with docs disabled, got %d", rec.Code)
	}

	srv, err := server.New(server.Config{EnableDocs: true})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(srv.Close)

	rec := executeRequest(srv, http.MethodGet, "/api/docs/openapi.yaml")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/api/videos") {
		t.Error("expected OpenAPI document to describe /api/videos")
	}
	rec = executeRequest(srv, http.MethodGet, "/api/docs")
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "cdn.jsdelivr.net") {
		t.Errorf("expected docs CSP, got %q", rec.Header().Get("Content-Security-Policy"))
	}
}

// --- Role gate ---

func TestNonPremiumUserRedirectedHomeWithNotice(t *testing.T) {
	srv, mock := newServerWithDB(t)
	cookies := sessionCookies(t, "user-basic", "bo@example.com")

	for _, path := range []string{"/videos", "/posts"} {
		expectProfile(mock, "user-basic", `{"display_name":"Bo","role":"basic"}`)

		rec := executeRequest(srv, http.MethodGet, path, cookies...)

		if rec.Code != http.StatusSeeOther {
			t.Fatalf("%s: expected 303, got %d", path, rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/?notice=no-access" {
			t.Errorf("%s: expected redirect home with notice, got %q", path, loc)
		}
		if strings.Contains(rec.Body.String(), "video-card") || strings.Contains(rec.Body.String(), "post-card") {
			t.Errorf("%s: gated content leaked", path)
		}
	}

	expectProfile(mock, "user-basic", `{"display_name":"Bo","role":"basic"}`)
	rec := executeRequest(srv, http.MethodGet, "/?notice=no-access", cookies...)
	if !strings.Contains(rec.Body.String(), "You do not have access to this content.") {
		t.Error("expected the home view to explain the redirect")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet mock expectations: %v", err)
	}
}

func TestNonPremiumUserForbiddenOnAPI(t *testing.T) {
	srv, mock := newServerWithDB(t)
	access, _ := auth.GenerateAccessToken(testSecret, "user-basic", "")
	expectProfile(mock, "user-basic", `{"role":"basic"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestAPIMe(t *testing.T) {
	srv, mock := newServerWithDB(t)
	access, _ := auth.GenerateAccessToken(testSecret, "user-1", "ana@example.com")
	expectProfile(mock, "user-1", `{"display_name":"Ana","role":"premium","plan_name":"Annual"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var me struct {
		UID      string `json:"uid"`
		Email    string `json:"email"`
		Role     string `json:"role"`
		PlanName string `json:"planName"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&me); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if me.UID != "user-1" || me.Email != "ana@example.com" || me.Role != "premium" || me.PlanName != "Annual" {
		t.Errorf("unexpected profile %+v", me)
	}
}

func TestPremiumVideosAPI(t *testing.T) {
	srv, mock := newServerWithDB(t)
	access, _ := auth.GenerateAccessToken(testSecret, "user-1", "")
	expectProfile(mock, "user-1", `{"role":"premium"}`)
	mock.ExpectQuery(`SELECT id, data, created_at FROM documents WHERE collection = \$1`).
		WithArgs("videos").
		WillReturnRows(pgxmock.NewRows([]string{"id", "data", "created_at"}).
			AddRow("v1", []byte(`{"titulo":"Sunset","file_key":"media/v1.mp4"}`), time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"title":"Sunset"`) || !strings.Contains(body, "https://storage.example.com/media/v1.mp4") {
		t.Errorf("unexpected body %s", body)
	}
}

// --- End to end ---

func TestLoginBrowseLogout(t *testing.T) {
	srv, mock := newServerWithDB(t)

	hashed, _ := bcrypt.GenerateFromPassword([]byte("correctpassword"), bcrypt.MinCost)
	mock.ExpectQuery(`SELECT id, password FROM accounts`).
		WithArgs("ana@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "password"}).AddRow("user-1", string(hashed)))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	form := url.Values{"email": {"ana@example.com"}, "password": {"correctpassword"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect home after login, got %d %q: %s", rec.Code, rec.Header().Get("Location"), rec.Body.String())
	}
	cookies := liveCookies(rec.Result().Cookies())
	if len(cookies) != 2 {
		t.Fatalf("expected access and refresh cookies, got %v", cookies)
	}

	// Home: profile from the session only.
	expectProfile(mock, "user-1", `{"display_name":"Ana","role":"premium","plan_name":"Annual"}`)
	rec = executeRequest(srv, http.MethodGet, "/", cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected home 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "Welcome, Ana") || !strings.Contains(body, "Annual") {
		t.Errorf("expected profile on home, got: %s", body)
	}

	// Videos: loading indicator, then the fetched grid.
	expectProfile(mock, "user-1", `{"role":"premium"}`)
	mock.ExpectQuery(`SELECT id, data, created_at FROM documents WHERE collection = \$1`).
		WithArgs("videos").
		WillReturnRows(pgxmock.NewRows([]string{"id", "data", "created_at"}).
			AddRow("v1", []byte(`{"titulo":"Sunset","visualizaciones":1200,"valoracion":4,"url":"https://cdn.example.com/v1.mp4"}`), time.Now()).
			AddRow("v2", []byte(`{}`), time.Now()))
	rec = executeRequest(srv, http.MethodGet, "/videos", cookies...)
	body := rec.Body.String()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected videos 200, got %d", rec.Code)
	}
	if strings.Index(body, `id="loading"`) > strings.Index(body, "Sunset") {
		t.Error("expected the loading indicator before the grid")
	}
	for _, want := range []string{"Sunset", "1,200 views", "Untitled", "No description", "#loading { display: none; }"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected videos page to contain %q", want)
		}
	}

	// Logout revokes the refresh token and returns to the login view.
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	rec = executeRequest(srv, http.MethodPost, "/logout", cookies...)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login after logout, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if live := liveCookies(rec.Result().Cookies()); len(live) != 0 {
		t.Errorf("expected cookies cleared, got %v", live)
	}

	rec = executeRequest(srv, http.MethodGet, "/")
	if rec.Header().Get("Location") != "/login" {
		t.Errorf("expected signed-out home to redirect to /login, got %q", rec.Header().Get("Location"))
	}
	rec = executeRequest(srv, http.MethodGet, "/login")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `action="/login"`) {
		t.Errorf("expected login form, got %d", rec.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet mock expectations: %v", err)
	}
}

func TestLoginFailureShowsMessage(t *testing.T) {
	srv, mock := newServerWithDB(t)
	hashed, _ := bcrypt.GenerateFromPassword([]byte("correctpassword"), bcrypt.MinCost)
	mock.ExpectQuery(`SELECT id, password FROM accounts`).
		WithArgs("ana@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "password"}).AddRow("user-1", string(hashed)))

	form := url.Values{"email": {"ana@example.com"}, "password": {"wrongpassword"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Incorrect password. Please try again.") {
		t.Errorf("expected wrong password message, got: %s", rec.Body.String())
	}
}

func TestAuthRoutesRateLimited(t *testing.T) {
	srv, _ := newServerWithDB(t)

	var last int
	for i := 0; i < 7; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
		req.RemoteAddr = "198.51.100.7:4000"
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("expected 429 after exhausting the burst, got %d", last)
	}
}
