package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/response"
)

// AuthHandler implements registration and the session lifecycle endpoints.
type AuthHandler struct {
	Users    UserStore
	Sessions SessionManager
	Limiter  middleware.RateLimiter
	Metrics  *metrics.Metrics
	Cookies  CookieOptions
	NowFunc  func() time.Time
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30,alphanum"`
	Email    string `json:"email" validate:"required,email,max=254"`
	FullName string `json:"fullName" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (r *registerRequest) clean() {
	r.Username = normalize(r.Username)
	r.Email = normalize(r.Email)
	r.FullName = strings.TrimSpace(r.FullName)
}

type loginRequest struct {
	Username string `json:"username" validate:"required_without=Email"`
	Email    string `json:"email"`
	Password string `json:"password" validate:"required"`
}

func (r *loginRequest) clean() {
	r.Username = normalize(r.Username)
	r.Email = normalize(r.Email)
}

func (r loginRequest) key() string {
	if r.Username != "" {
		return r.Username
	}
	return r.Email
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// sessionPayload carries the user next to its tokens at the top level of data.
type sessionPayload struct {
	User models.User `json:"user"`
	models.SessionTokens
}

// Register handles POST /api/v1/users/register.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if err := allowRequest(h.Limiter, h.Metrics, r, "register"); err != nil {
		response.Error(ctx, w, err)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(ctx, w, err)
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	now := h.now()
	user := models.User{
		ID:        uuid.NewString(),
		Username:  req.Username,
		Email:     req.Email,
		FullName:  req.FullName,
		Password:  hashed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Users.Create(ctx, user); err != nil {
		h.Metrics.AuthEvent("register", false)
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("register conflict", "username", req.Username, "email", req.Email)
		}
		response.Error(ctx, w, conflictAs(err, "username or email already exists"))
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logger.Error("failed to issue session", "error", err, "userId", user.ID)
		response.Error(ctx, w, fmt.Errorf("issue session: %w", err))
		return
	}

	h.Metrics.AuthEvent("register", true)
	setSessionCookies(w, h.Cookies, tokens, h.Sessions.AccessTTL(), h.Sessions.RefreshTTL())
	response.Created(ctx, w, sessionPayload{User: user.Sanitized(), SessionTokens: tokens}, "user registered")
}

// Login handles POST /api/v1/users/login. Unknown accounts and wrong passwords
// produce the same response and take the same time.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if err := allowRequest(h.Limiter, h.Metrics, r, "login"); err != nil {
		response.Error(ctx, w, err)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(ctx, w, err)
		return
	}

	user, err := h.Users.FindByUsernameOrEmail(ctx, req.key())
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		auth.CheckMissingPassword(req.Password)
		h.Metrics.AuthEvent("login", false)
		logger.Warn("login for unknown account", "key", req.key())
		response.Error(ctx, w, auth.ErrInvalidCredentials)
		return
	case err != nil:
		response.Error(ctx, w, fmt.Errorf("lookup account: %w", err))
		return
	}

	if !auth.CheckPassword(user.Password, req.Password) {
		h.Metrics.AuthEvent("login", false)
		logger.Warn("login password mismatch", "userId", user.ID)
		response.Error(ctx, w, auth.ErrInvalidCredentials)
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logger.Error("failed to issue session", "error", err, "userId", user.ID)
		response.Error(ctx, w, fmt.Errorf("issue session: %w", err))
		return
	}

	h.Metrics.AuthEvent("login", true)
	setSessionCookies(w, h.Cookies, tokens, h.Sessions.AccessTTL(), h.Sessions.RefreshTTL())
	response.OK(ctx, w, sessionPayload{User: user.Sanitized(), SessionTokens: tokens}, "user logged in")
}

// Refresh handles POST /api/v1/users/refresh-token. The refresh token is read from
// the refreshToken cookie, or from the JSON body when the cookie is absent.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := allowRequest(h.Limiter, h.Metrics, r, "refresh"); err != nil {
		response.Error(ctx, w, err)
		return
	}

	tokens, err := h.Sessions.Rotate(ctx, refreshTokenFrom(r))
	if err != nil {
		h.Metrics.AuthEvent("refresh", false)
		response.Error(ctx, w, err)
		return
	}

	h.Metrics.AuthEvent("refresh", true)
	setSessionCookies(w, h.Cookies, tokens, h.Sessions.AccessTTL(), h.Sessions.RefreshTTL())
	response.OK(ctx, w, tokens, "access token refreshed")
}

// Logout handles POST /api/v1/users/logout. It empties the refresh slot, so every
// outstanding refresh token of the user stops working.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	if err := h.Sessions.Revoke(ctx, user.ID); err != nil {
		response.Error(ctx, w, fmt.Errorf("revoke session: %w", err))
		return
	}

	h.Metrics.AuthEvent("logout", true)
	clearSessionCookies(w, h.Cookies)
	response.OK(ctx, w, struct{}{}, "user logged out")
}

func refreshTokenFrom(r *http.Request) string {
	if cookie, err := r.Cookie(refreshCookie); err == nil {
		if value := strings.TrimSpace(cookie.Value); value != "" {
			return value
		}
	}
	if r.Body == nil {
		return ""
	}

	var req refreshRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
		return ""
	}
	return strings.TrimSpace(req.RefreshToken)
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
