package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vitrina/vitrina/internal/httputil"
)

func serveWithSecurity(cfg SecurityConfig, inner http.Handler) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	securityHeaders(cfg)(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func TestSecurityHeaders_CSPContainsNonce(t *testing.T) {
	var capturedNonce string
	rec := serveWithSecurity(SecurityConfig{BaseURL: "https://app.test"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedNonce = httputil.NonceFromContext(r.Context())
	}))

	csp := rec.Header().Get("Content-Security-Policy")
	if capturedNonce == "" {
		t.Fatal("expected non-empty nonce in context")
	}
	if !strings.Contains(csp, "style-src 'self' 'nonce-"+capturedNonce+"'") {
		t.Errorf("CSP should allow nonce styles, got: %s", csp)
	}
	if strings.Contains(csp, "'unsafe-inline'") {
		t.Errorf("CSP should not contain 'unsafe-inline', got: %s", csp)
	}
}

func TestSecurityHeaders_MediaSources(t *testing.T) {
	rec := serveWithSecurity(SecurityConfig{
		BaseURL:         "https://app.test",
		StorageEndpoint: "http://localhost:9000",
		RemoteMedia:     true,
	}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "media-src 'self' https: http://localhost:9000;") {
		t.Errorf("CSP media-src should allow remote and storage media, got: %s", csp)
	}
	if !strings.Contains(csp, "img-src 'self' data: https: http://localhost:9000;") {
		t.Errorf("CSP img-src should allow remote and storage images, got: %s", csp)
	}
}

func TestSecurityHeaders_SelfOnlyMedia(t *testing.T) {
	rec := serveWithSecurity(SecurityConfig{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "media-src 'self';") {
		t.Errorf("expected media-src limited to self, got: %s", csp)
	}
}

func TestSecurityHeaders_UniqueNoncePerRequest(t *testing.T) {
	var nonces []string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nonces = append(nonces, httputil.NonceFromContext(r.Context()))
	})
	for i := 0; i < 3; i++ {
		serveWithSecurity(SecurityConfig{}, inner)
	}

	if nonces[0] == nonces[1] || nonces[1] == nonces[2] {
		t.Errorf("expected unique nonces per request, got %v", nonces)
	}
}

func TestSecurityHeaders_PermissionsPolicyAllowsFullscreen(t *testing.T) {
	rec := serveWithSecurity(SecurityConfig{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	pp := rec.Header().Get("Permissions-Policy")
	if !strings.Contains(pp, "fullscreen=(self)") || !strings.Contains(pp, "camera=()") {
		t.Errorf("unexpected Permissions-Policy: %s", pp)
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	if rec := serveWithSecurity(SecurityConfig{BaseURL: "https://app.test"}, inner); rec.Header().Get("Strict-Transport-Security") == "" {
		t.Error("expected HSTS header for HTTPS base URL")
	}
	if rec := serveWithSecurity(SecurityConfig{BaseURL: "http://localhost:8080"}, inner); rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("expected no HSTS for HTTP base URL")
	}
}
