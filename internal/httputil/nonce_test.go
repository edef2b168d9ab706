package httputil

import (
	"context"
	"encoding/base64"
	"testing"
)

func TestGenerateNonce(t *testing.T) {
	seen := make(map[string]bool)
	for range 8 {
		nonce := GenerateNonce()
		if len(nonce) != 22 {
			t.Fatalf("expected 22-character nonce, got %d: %q", len(nonce), nonce)
		}
		raw, err := base64.RawURLEncoding.DecodeString(nonce)
		if err != nil || len(raw) != nonceBytes {
			t.Fatalf("nonce %q is not %d url-safe bytes: %v", nonce, nonceBytes, err)
		}
		if seen[nonce] {
			t.Fatalf("nonce %q repeated", nonce)
		}
		seen[nonce] = true
	}
}

func TestNonceContext(t *testing.T) {
	if got := NonceFromContext(context.Background()); got != "" {
		t.Errorf("expected empty nonce without one stored, got %q", got)
	}
	ctx := ContextWithNonce(context.Background(), "gallery-page")
	if got := NonceFromContext(ctx); got != "gallery-page" {
		t.Errorf("expected %q, got %q", "gallery-page", got)
	}
}
