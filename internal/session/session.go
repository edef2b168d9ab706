// Package session resolves the signed-in account to its profile and guards
// views by role.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/vitrina/vitrina/internal/auth"
	"github.com/vitrina/vitrina/internal/gallery"
	"github.com/vitrina/vitrina/internal/httputil"
)

const (
	NoticeParam    = "notice"
	NoticeNoAccess = "no-access"
)

var notices = map[string]string{
	NoticeNoAccess: "You do not have access to this content.",
}

// NoticeText returns the message for a notice code, or "" for unknown codes.
func NoticeText(code string) string {
	return notices[code]
}

type ProfileLoader interface {
	Profile(ctx context.Context, uid, email string) (gallery.User, error)
}

type contextKey struct{}

func WithUser(ctx context.Context, u gallery.User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// FromContext returns the user placed by Gate, if any.
func FromContext(ctx context.Context) (gallery.User, bool) {
	u, ok := ctx.Value(contextKey{}).(gallery.User)
	return u, ok
}

// Gate holds the session for the request: it must run behind
// auth.Handler.Middleware so the account id is known.
type Gate struct {
	profiles ProfileLoader
}

func NewGate(profiles ProfileLoader) *Gate {
	return &Gate{profiles: profiles}
}

func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := auth.UserIDFromContext(r.Context())
		if uid == "" {
			unauthenticated(w, r)
			return
		}

		u, err := g.profiles.Profile(r.Context(), uid, auth.EmailFromContext(r.Context()))
		if err != nil {
			slog.Error("failed to load session profile", "user_id", uid, "error", err)
			if httputil.WantsHTML(r) {
				http.Error(w, "Could not load your profile. Please try again later.", http.StatusBadGateway)
				return
			}
			httputil.WriteError(w, http.StatusBadGateway, "failed to load profile")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// RequireRole lets through only users whose profile carries role. Pages
// send everyone else home with a notice; API calls get 403.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := FromContext(r.Context())
			if !ok {
				unauthenticated(w, r)
				return
			}
			if u.Role != role {
				slog.Info("role gate denied access", "user_id", u.UID, "role", u.Role, "required", role, "path", r.URL.Path)
				if httputil.WantsHTML(r) {
					http.Redirect(w, r, HomeWithNotice(NoticeNoAccess), http.StatusSeeOther)
					return
				}
				httputil.WriteError(w, http.StatusForbidden, NoticeText(NoticeNoAccess))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func HomeWithNotice(code string) string {
	return "/?" + url.Values{NoticeParam: {code}}.Encode()
}

func unauthenticated(w http.ResponseWriter, r *http.Request) {
	if httputil.WantsHTML(r) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	httputil.WriteError(w, http.StatusUnauthorized, "authentication required")
}
