// Package web renders the gallery's HTML views.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vitrina/vitrina/internal/auth"
	"github.com/vitrina/vitrina/internal/gallery"
	"github.com/vitrina/vitrina/internal/httputil"
	"github.com/vitrina/vitrina/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var numbers = message.NewPrinter(language.English)

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"thousands":    func(n int) string { return numbers.Sprintf("%d", n) },
	"stars":        stars,
	"rating":       func(r float64) string { return strconv.FormatFloat(r, 'f', -1, 64) },
	"date":         func(t time.Time) string { return t.Format("Jan 2, 2006") },
	"isoDate":      func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	"optionalDate": optionalDate,
	"inc":          func(i int) int { return i + 1 },
}).ParseFS(templateFS, "templates/*.html"))

// Static serves the stylesheet and other assets under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (auth.Session, error)
	SetSessionCookies(w http.ResponseWriter, s auth.Session)
	SignOut(w http.ResponseWriter, r *http.Request)
	Identify(w http.ResponseWriter, r *http.Request) (*auth.Claims, error)
}

type Feeds interface {
	VideoFeed(r *http.Request) (gallery.Feed[gallery.Video], error)
	PostFeed(r *http.Request) (gallery.Feed[gallery.Post], error)
}

// NavItem is one link of the navigation bar.
type NavItem struct {
	Label  string
	Path   string
	Active bool
}

type Pages struct {
	auth  Authenticator
	feeds Feeds
	nav   []NavItem
}

// NewPages builds the page handlers; nav lists the navigation bar links in
// display order.
func NewPages(a Authenticator, feeds Feeds, nav []NavItem) *Pages {
	return &Pages{auth: a, feeds: feeds, nav: nav}
}

type layoutData struct {
	Title  string
	Nonce  string
	User   *gallery.User
	Nav    []NavItem
	Notice string
}

type loginData struct {
	Email string
	Error string
}

func (p *Pages) layout(r *http.Request, title string) layoutData {
	data := layoutData{
		Title: title,
		Nonce: httputil.NonceFromContext(r.Context()),
	}
	if u, ok := session.FromContext(r.Context()); ok {
		data.User = &u
		data.Nav = make([]NavItem, len(p.nav))
		for i, item := range p.nav {
			item.Active = item.Path == r.URL.Path
			data.Nav[i] = item
		}
	}
	return data
}

func (p *Pages) LoginForm(w http.ResponseWriter, r *http.Request) {
	if _, err := p.auth.Identify(w, r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	p.renderLogin(w, r, http.StatusOK, loginData{})
}

func (p *Pages) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		p.renderLogin(w, r, http.StatusBadRequest, loginData{Error: auth.LoginMessage(auth.ErrInvalidEmail)})
		return
	}
	email := r.PostFormValue("email")

	s, err := p.auth.SignIn(r.Context(), email, r.PostFormValue("password"))
	if err != nil {
		status := http.StatusUnauthorized
		switch {
		case errors.Is(err, auth.ErrInvalidEmail):
			status = http.StatusBadRequest
		case !errors.Is(err, auth.ErrUserNotFound) && !errors.Is(err, auth.ErrWrongPassword):
			slog.Error("sign in failed", "error", err)
			status = http.StatusInternalServerError
		}
		p.renderLogin(w, r, status, loginData{Email: email, Error: auth.LoginMessage(err)})
		return
	}

	slog.Info("user signed in", "user_id", s.UserID)
	p.auth.SetSessionCookies(w, s)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (p *Pages) Logout(w http.ResponseWriter, r *http.Request) {
	p.auth.SignOut(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (p *Pages) renderLogin(w http.ResponseWriter, r *http.Request, status int, data loginData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	render(w, p.layout(r, "Sign in"), "login", data)
}

// Home shows the signed-in user's profile. It needs nothing beyond the
// session.
func (p *Pages) Home(w http.ResponseWriter, r *http.Request) {
	u, ok := session.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	data := p.layout(r, "Home")
	data.Notice = session.NoticeText(r.URL.Query().Get(session.NoticeParam))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	render(w, data, "home", u)
}

func (p *Pages) Videos(w http.ResponseWriter, r *http.Request) {
	streamFeed(w, r, p.layout(r, "Videos"), "Loading videos...", "videos", p.feeds.VideoFeed)
}

func (p *Pages) Posts(w http.ResponseWriter, r *http.Request) {
	streamFeed(w, r, p.layout(r, "Images"), "Loading posts...", "posts", p.feeds.PostFeed)
}

// streamFeed sends the page with a loading indicator first, then the feed
// once it arrives. The indicator is hidden by the trailing style block so
// it never shows alongside items or an error.
func streamFeed[T any](w http.ResponseWriter, r *http.Request, layout layoutData, loadingText, name string, load func(*http.Request) (gallery.Feed[T], error)) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "layout-start", layout); err != nil {
		slog.Error("failed to render page", "page", name, "error", err)
		return
	}
	execute(w, "loading", loadingText)
	httputil.Flush(w)

	feed, err := load(r)
	if errors.Is(err, gallery.ErrViewClosed) {
		slog.Debug("view closed before feed loaded", "page", name)
		return
	}
	execute(w, name, feed)
	execute(w, "loaded", layout.Nonce)
	execute(w, "layout-end", nil)
}

func render(w io.Writer, layout layoutData, name string, data any) {
	if err := templates.ExecuteTemplate(w, "layout-start", layout); err != nil {
		slog.Error("failed to render page", "page", name, "error", err)
		return
	}
	execute(w, name, data)
	execute(w, "layout-end", nil)
}

func execute(w io.Writer, name string, data any) {
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// stars reports for each of the five stars whether it is filled.
func stars(rating float64) []bool {
	out := make([]bool, gallery.MaxRating)
	for i := range out {
		out[i] = float64(i+1) <= rating
	}
	return out
}

func optionalDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "Not available"
	}
	return t.Format("Jan 2, 2006")
}
