package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vitrina/vitrina/internal/auth"
	"github.com/vitrina/vitrina/internal/database"
	"github.com/vitrina/vitrina/internal/docs"
	"github.com/vitrina/vitrina/internal/docstore"
	"github.com/vitrina/vitrina/internal/gallery"
	"github.com/vitrina/vitrina/internal/geoip"
	"github.com/vitrina/vitrina/internal/httputil"
	"github.com/vitrina/vitrina/internal/ratelimit"
	"github.com/vitrina/vitrina/internal/session"
	"github.com/vitrina/vitrina/internal/web"
)

var ErrMissingSecret = errors.New("JWT_SECRET is required; set the environment variable")

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	DB              database.DBTX
	Pinger          Pinger
	Documents       gallery.DocumentReader
	Storage         gallery.MediaSigner
	GeoIP           *geoip.Resolver
	JWTSecret       string
	BaseURL         string
	StorageEndpoint string
	EnableDocs      bool
}

// Route is one view of the navigation shell. Views with a Label appear in
// the navigation bar; Role, when set, is required to open the view.
type Route struct {
	Path  string
	Label string
	Role  string
	view  func(*web.Pages) http.HandlerFunc
}

var Routes = []Route{
	{Path: "/", Label: "Home", view: func(p *web.Pages) http.HandlerFunc { return p.Home }},
	{Path: "/posts", Label: "Images", Role: gallery.RolePremium, view: func(p *web.Pages) http.HandlerFunc { return p.Posts }},
	{Path: "/videos", Label: "Videos", Role: gallery.RolePremium, view: func(p *web.Pages) http.HandlerFunc { return p.Videos }},
}

func navigation() []web.NavItem {
	items := make([]web.NavItem, 0, len(Routes))
	for _, route := range Routes {
		if route.Label != "" {
			items = append(items, web.NavItem{Label: route.Label, Path: route.Path})
		}
	}
	return items
}

type Server struct {
	router         chi.Router
	pinger         Pinger
	authHandler    *auth.Handler
	galleryHandler *gallery.Handler
	gate           *session.Gate
	pages          *web.Pages
	limiters       []*ratelimit.Limiter
	enableDocs     bool
}

func New(cfg Config) (*Server, error) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(cfg.GeoIP))
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:         cfg.BaseURL,
		StorageEndpoint: cfg.StorageEndpoint,
		RemoteMedia:     true,
	}))

	s := &Server{router: r, pinger: cfg.Pinger, enableDocs: cfg.EnableDocs}

	if cfg.DB != nil {
		if cfg.JWTSecret == "" {
			return nil, ErrMissingSecret
		}

		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:8080"
		}
		secureCookies := strings.HasPrefix(baseURL, "https://")

		docs := cfg.Documents
		if docs == nil {
			docs = docstore.New(cfg.DB)
		}
		service := gallery.NewService(docs, cfg.Storage)

		s.authHandler = auth.NewHandler(cfg.DB, cfg.JWTSecret, secureCookies)
		s.galleryHandler = gallery.NewHandler(service)
		s.gate = session.NewGate(service)
		s.pages = web.NewPages(s.authHandler, s.galleryHandler, navigation())
	}

	s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	for _, l := range s.limiters {
		l.Stop()
	}
}

func (s *Server) limiter(rps float64, burst int) *ratelimit.Limiter {
	l := ratelimit.NewLimiter(rps, burst)
	s.limiters = append(s.limiters, l)
	return l
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Handle("/static/*", web.Static())

	if s.enableDocs {
		s.router.Get("/api/docs", docs.HandleDocs)
		s.router.Get("/api/docs/openapi.yaml", docs.HandleSpec)
	}

	if s.authHandler != nil {
		authLimiter := s.limiter(0.5, 5)
		apiLimiter := s.limiter(5, 20)

		s.router.Route("/api/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/login", s.authHandler.Login)
			r.Post("/refresh", s.authHandler.Refresh)
			r.Post("/logout", s.authHandler.Logout)
		})

		s.router.Group(func(r chi.Router) {
			r.Use(apiLimiter.Middleware)
			r.Use(s.authHandler.Middleware)
			r.Use(s.gate.Middleware)
			r.Get("/api/me", s.handleMe)
			r.With(session.RequireRole(gallery.RolePremium)).Get("/api/videos", s.galleryHandler.ListVideos)
			r.With(session.RequireRole(gallery.RolePremium)).Get("/api/posts", s.galleryHandler.ListPosts)
		})

		s.router.Get("/login", s.pages.LoginForm)
		s.router.With(authLimiter.Middleware).Post("/login", s.pages.Login)
		s.router.Post("/logout", s.pages.Logout)

		s.router.Group(func(r chi.Router) {
			r.Use(s.authHandler.Middleware)
			r.Use(s.gate.Middleware)
			for _, route := range Routes {
				h := http.Handler(route.view(s.pages))
				if route.Role != "" {
					h = session.RequireRole(route.Role)(h)
				}
				r.Method(http.MethodGet, route.Path, h)
			}
		})
	}

	s.router.NotFound(s.handleNotFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"database unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := session.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

// handleNotFound sends unknown pages home; unknown API paths get a JSON 404.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if httputil.WantsHTML(r) && r.Method == http.MethodGet && s.pages != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	httputil.WriteError(w, http.StatusNotFound, "not found")
}
