package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/vitrina/vitrina/internal/database"
	"github.com/vitrina/vitrina/internal/httputil"
	"github.com/vitrina/vitrina/internal/validate"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrWrongPassword   = errors.New("wrong password")
	ErrInvalidEmail    = errors.New("invalid email")
	ErrAccountExists   = errors.New("account already exists")
	ErrUnauthenticated = errors.New("not authenticated")
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

type contextKey string

const (
	userIDKey contextKey = "userID"
	emailKey  contextKey = "email"
)

type Handler struct {
	db            database.DBTX
	jwtSecret     string
	secureCookies bool
}

func NewHandler(db database.DBTX, jwtSecret string, secureCookies bool) *Handler {
	return &Handler{db: db, jwtSecret: jwtSecret, secureCookies: secureCookies}
}

// Session is the result of a successful sign in.
type Session struct {
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
	Email        string `json:"email"`
}

// LoginMessage is the text shown to a user whose sign in failed with err.
func LoginMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUserNotFound):
		return "User not found. Please check your email."
	case errors.Is(err, ErrWrongPassword):
		return "Incorrect password. Please try again."
	case errors.Is(err, ErrInvalidEmail):
		return "Invalid email address. Please enter a valid email."
	default:
		return "Could not sign in. Please try again later."
	}
}

// NormalizeEmail is the form in which emails are stored and looked up.
// Addresses differing only in case belong to one account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignIn checks the credentials against the accounts table and issues a
// token pair.
func (h *Handler) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = NormalizeEmail(email)
	if validate.Email(email) != "" {
		return Session{}, ErrInvalidEmail
	}
	if password == "" {
		return Session{}, ErrWrongPassword
	}

	var userID, hashedPassword string
	err := h.db.QueryRow(ctx,
		"SELECT id, password FROM accounts WHERE lower(email) = $1", email,
	).Scan(&userID, &hashedPassword)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrUserNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("look up account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		return Session{}, ErrWrongPassword
	}

	accessToken, refreshToken, err := h.issueTokens(ctx, userID, email)
	if err != nil {
		return Session{}, fmt.Errorf("issue tokens: %w", err)
	}
	return Session{UserID: userID, Email: email, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// CreateAccount registers an email/password account and returns its id.
func (h *Handler) CreateAccount(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)
	if msg := validate.Email(email); msg != "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidEmail, msg)
	}
	if msg := validate.Password(password); msg != "" {
		return "", errors.New(msg)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	var userID string
	err = h.db.QueryRow(ctx,
		"INSERT INTO accounts (email, password) VALUES ($1, $2) RETURNING id",
		email, string(hashedPassword),
	).Scan(&userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", ErrAccountExists
		}
		return "", fmt.Errorf("insert account: %w", err)
	}
	return userID, nil
}

// Login is the JSON sign in endpoint used by API clients.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := h.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeSignInError(w, err)
		return
	}

	h.SetSessionCookies(w, s)
	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		UserID:       s.UserID,
		Email:        s.Email,
	})
}

func (h *Handler) writeSignInError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidEmail):
		httputil.WriteError(w, http.StatusBadRequest, LoginMessage(err))
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrWrongPassword):
		httputil.WriteError(w, http.StatusUnauthorized, LoginMessage(err))
	default:
		slog.Error("sign in failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, LoginMessage(err))
	}
}

// Refresh rotates a refresh token taken from the JSON body or the cookie.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := ""
	if cookie, err := r.Cookie(RefreshCookie); err == nil {
		token = cookie.Value
	}
	if r.ContentLength > 0 {
		var req refreshRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.RefreshToken != "" {
			token = req.RefreshToken
		}
	}
	if token == "" {
		httputil.WriteError(w, http.StatusUnauthorized, "refresh token not found")
		return
	}

	s, err := h.rotate(r.Context(), token)
	if err != nil {
		slog.Debug("refresh rejected", "error", err)
		httputil.WriteError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	h.SetSessionCookies(w, s)
	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		UserID:       s.UserID,
		Email:        s.Email,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.SignOut(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// SignOut revokes the request's refresh token, if any, and clears the
// session cookies.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	token := ""
	if cookie, err := r.Cookie(RefreshCookie); err == nil {
		token = cookie.Value
	}
	if token == "" && r.ContentLength > 0 && !httputil.WantsHTML(r) {
		var req refreshRequest
		if err := httputil.DecodeJSON(r, &req); err == nil {
			token = req.RefreshToken
		}
	}
	if token != "" {
		if claims, err := ValidateToken(h.jwtSecret, token); err == nil && claims.TokenType == "refresh" && claims.TokenID != "" {
			if err := h.revokeRefreshToken(r.Context(), claims.TokenID); err != nil {
				slog.Warn("failed to revoke refresh token", "user_id", claims.UserID, "error", err)
			}
		}
	}
	h.clearCookie(w, AccessCookie)
	h.clearCookie(w, RefreshCookie)
}

// Identify resolves the caller from a Bearer header or the session cookies.
// An expired access cookie is renewed from a valid refresh cookie.
func (h *Handler) Identify(w http.ResponseWriter, r *http.Request) (*Claims, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		tokenStr, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			return nil, fmt.Errorf("%w: invalid authorization header format", ErrUnauthenticated)
		}
		return h.accessClaims(tokenStr)
	}

	if cookie, err := r.Cookie(AccessCookie); err == nil && cookie.Value != "" {
		if claims, err := h.accessClaims(cookie.Value); err == nil {
			return claims, nil
		}
	}

	cookie, err := r.Cookie(RefreshCookie)
	if err != nil || cookie.Value == "" {
		return nil, ErrUnauthenticated
	}
	s, err := h.rotate(r.Context(), cookie.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	h.SetSessionCookies(w, s)
	return &Claims{UserID: s.UserID, Email: s.Email, TokenType: "access"}, nil
}

// Middleware rejects unauthenticated requests: pages are sent to /login,
// API calls get 401.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.Identify(w, r)
		if err != nil {
			if httputil.WantsHTML(r) {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			httputil.WriteError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), claims.UserID, claims.Email)))
	})
}

func ContextWithUser(ctx context.Context, userID, email string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, emailKey, email)
}

func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

func EmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(emailKey).(string)
	return email
}

func (h *Handler) accessClaims(token string) (*Claims, error) {
	claims, err := ValidateToken(h.jwtSecret, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.TokenType != "access" {
		return nil, fmt.Errorf("%w: invalid token type", ErrUnauthenticated)
	}
	return claims, nil
}

// SetSessionCookies stores the token pair for browser sessions.
func (h *Handler) SetSessionCookies(w http.ResponseWriter, s Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookie,
		Value:    s.AccessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(AccessTokenDuration / time.Second),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    s.RefreshToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(RefreshTokenDuration / time.Second),
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func (h *Handler) rotate(ctx context.Context, token string) (Session, error) {
	claims, err := ValidateToken(h.jwtSecret, token)
	if err != nil {
		return Session{}, err
	}
	if claims.TokenType != "refresh" || claims.TokenID == "" {
		return Session{}, errors.New("not a refresh token")
	}
	if err := h.validateStoredRefreshToken(ctx, claims.UserID, claims.TokenID); err != nil {
		return Session{}, err
	}
	if err := h.revokeRefreshToken(ctx, claims.TokenID); err != nil {
		return Session{}, fmt.Errorf("revoke refresh token: %w", err)
	}
	accessToken, refreshToken, err := h.issueTokens(ctx, claims.UserID, claims.Email)
	if err != nil {
		return Session{}, fmt.Errorf("issue tokens: %w", err)
	}
	return Session{UserID: claims.UserID, Email: claims.Email, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (h *Handler) issueTokens(ctx context.Context, userID, email string) (accessToken, refreshToken string, err error) {
	tokenID, err := newTokenID()
	if err != nil {
		return "", "", err
	}

	expiresAt := time.Now().Add(RefreshTokenDuration)
	if _, err := h.db.Exec(ctx, "INSERT INTO refresh_tokens (token_id, user_id, expires_at, revoked) VALUES ($1, $2, $3, false)", tokenID, userID, expiresAt); err != nil {
		return "", "", err
	}

	accessToken, err = GenerateAccessToken(h.jwtSecret, userID, email)
	if err != nil {
		return "", "", err
	}

	refreshToken, err = GenerateRefreshToken(h.jwtSecret, userID, email, tokenID)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

func (h *Handler) validateStoredRefreshToken(ctx context.Context, userID, tokenID string) error {
	var revoked bool
	var expiresAt time.Time
	err := h.db.QueryRow(ctx, "SELECT revoked, expires_at FROM refresh_tokens WHERE token_id = $1 AND user_id = $2", tokenID, userID).Scan(&revoked, &expiresAt)
	if err != nil {
		return err
	}
	if revoked || time.Now().After(expiresAt) {
		return errors.New("token revoked or expired")
	}
	return nil
}

func (h *Handler) revokeRefreshToken(ctx context.Context, tokenID string) error {
	_, err := h.db.Exec(ctx, "UPDATE refresh_tokens SET revoked = true, revoked_at = now() WHERE token_id = $1", tokenID)
	return err
}

func newTokenID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
