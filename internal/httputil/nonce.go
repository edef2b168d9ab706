package httputil

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
)

// nonceBytes encodes to 22 URL-safe characters.
const nonceBytes = 16

type nonceKey struct{}

// GenerateNonce returns a fresh value for the page's script-src and
// style-src nonce. An empty string disables inline content for the request.
func GenerateNonce() string {
	var b [nonceBytes]byte
	if _, err := rand.Read(b[:]); err != nil {
		slog.Error("failed to generate CSP nonce", "error", err)
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b[:])
}

func ContextWithNonce(ctx context.Context, nonce string) context.Context {
	return context.WithValue(ctx, nonceKey{}, nonce)
}

// NonceFromContext is read by templates when rendering inline tags.
func NonceFromContext(ctx context.Context) string {
	nonce, _ := ctx.Value(nonceKey{}).(string)
	return nonce
}
