package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"OK", http.StatusOK},
		{"Created", http.StatusCreated},
		{"BadGateway", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()

			WriteJSON(recorder, tt.statusCode, map[string]string{"title": "Sunset"})

			if recorder.Code != tt.statusCode {
				t.Errorf("expected status %d, got %d", tt.statusCode, recorder.Code)
			}
			if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected Content-Type application/json, got %s", ct)
			}
			var decoded map[string]string
			if err := json.NewDecoder(recorder.Body).Decode(&decoded); err != nil {
				t.Fatalf("failed to decode response body: %v", err)
			}
			if decoded["title"] != "Sunset" {
				t.Errorf("expected title=Sunset, got %s", decoded["title"])
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	recorder := httptest.NewRecorder()

	WriteError(recorder, http.StatusForbidden, "premium access required")

	if recorder.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, recorder.Code)
	}
	var decoded ErrorBody
	if err := json.NewDecoder(recorder.Body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if decoded.Error != "premium access required" {
		t.Errorf("expected error message, got %q", decoded.Error)
	}
}

func TestDecodeJSON(t *testing.T) {
	var body struct {
		Email string `json:"email"`
	}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"ana@example.com"}`))
	if err := DecodeJSON(req, &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Email != "ana@example.com" {
		t.Errorf("expected email decoded, got %q", body.Email)
	}
}

func TestDecodeJSON_Invalid(t *testing.T) {
	for _, raw := range []string{"", "{", `["not","object"]`} {
		var body struct {
			Email string `json:"email"`
		}
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(raw))
		if err := DecodeJSON(req, &body); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestWantsHTML(t *testing.T) {
	tests := []struct {
		path   string
		accept string
		want   bool
	}{
		{"/videos", "text/html,application/xhtml+xml", true},
		{"/videos", "", true},
		{"/videos", "application/json", false},
		{"/api/videos", "text/html", false},
		{"/posts", "*/*", true},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if tt.accept != "" {
			req.Header.Set("Accept", tt.accept)
		}
		if got := WantsHTML(req); got != tt.want {
			t.Errorf("WantsHTML(%s, %q) = %v, want %v", tt.path, tt.accept, got, tt.want)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:5123"
	if got := ClientIP(req); got != "10.0.0.2" {
		t.Errorf("expected remote host, got %q", got)
	}

	req.Header.Set("X-Real-IP", "192.0.2.9")
	if got := ClientIP(req); got != "192.0.2.9" {
		t.Errorf("expected X-Real-IP, got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Errorf("expected first forwarded hop, got %q", got)
	}
}
