package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utafrali/gallery/internal/domain"
	"github.com/utafrali/gallery/internal/service"
	apperrors "github.com/utafrali/gallery/pkg/errors"
	"github.com/utafrali/gallery/pkg/httputil"
	"github.com/utafrali/gallery/pkg/middleware"
	"github.com/utafrali/gallery/pkg/validator"
)

// SessionService is the part of service.SessionService used by the handlers.
type SessionService interface {
	Register(ctx context.Context, input service.RegisterInput) (*domain.Session, error)
	Login(ctx context.Context, input service.LoginInput) (*domain.Session, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*service.RefreshResult, error)
	VerifyCurrentPassword(ctx context.Context, userID, password string) error
	ResetPassword(ctx context.Context, userID, newPassword string) error
	Logout(ctx context.Context, userID string) error
	Details(ctx context.Context, userID string) (*domain.Profile, error)
}

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	sessions SessionService
	cookies  CookieConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(sessions SessionService, cookies CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, cookies: cookies, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for registration. bcrypt ignores
// input past 72 bytes, hence the upper bound.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,phone10"`
	Password string `json:"password" validate:"required,maxbytes=72,strongpassword"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,maxbytes=72"`
}

// VerifyPasswordRequest is the JSON request body for verify-current-password.
type VerifyPasswordRequest struct {
	Password string `json:"password" validate:"required,maxbytes=72"`
}

// ResetPasswordRequest is the JSON request body for reset-password.
type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,maxbytes=72,strongpassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// --- Response types ---

type sessionResponse struct {
	User domain.Identity `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// --- Handlers ---

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.sessions.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.setSessionCookies(w, session.Tokens)
	httputil.WriteData(w, http.StatusCreated, sessionResponse{User: session.User})
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.sessions.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.setSessionCookies(w, session.Tokens)
	httputil.WriteData(w, http.StatusOK, sessionResponse{User: session.User})
}

// RefreshToken handles POST /api/v1/auth/refresh-token. Both tokens are read
// from cookies.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	res, err := h.sessions.Refresh(r.Context(),
		cookieValue(r, middleware.AccessTokenCookie),
		cookieValue(r, RefreshTokenCookie),
	)
	if err != nil {
		if apperrors.HasCode(err, domain.CodeRefreshTokenInvalid) || apperrors.HasCode(err, domain.CodeRefreshTokenReused) {
			h.cookies.clearSessionCookies(w)
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if !res.Rotated {
		httputil.WriteData(w, http.StatusOK, messageResponse{Message: "token still valid"})
		return
	}

	h.cookies.setSessionCookies(w, res.Session.Tokens)
	httputil.WriteData(w, http.StatusOK, sessionResponse{User: res.Session.User})
}

// VerifyCurrentPassword handles POST /api/v1/auth/verify-current-password
func (h *AuthHandler) VerifyCurrentPassword(w http.ResponseWriter, r *http.Request) {
	var req VerifyPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	if err := h.sessions.VerifyCurrentPassword(r.Context(), userID, req.Password); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, messageResponse{Message: "password verified"})
}

// ResetPassword handles PATCH /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	if err := h.sessions.ResetPassword(r.Context(), userID, req.Password); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, messageResponse{Message: "password updated"})
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if err := h.sessions.Logout(r.Context(), userID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.clearSessionCookies(w)
	httputil.WriteData(w, http.StatusOK, messageResponse{Message: "logged out"})
}

// Details handles GET /api/v1/auth/details
func (h *AuthHandler) Details(w http.ResponseWriter, r *http.Request) {
	profile, err := h.sessions.Details(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, profile)
}

// decode reads and validates a JSON body, writing the error response itself
// when it returns false.
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httputil.DecodeJSON(w, r, dst); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return false
	}
	if err := validator.Validate(dst); err != nil {
		httputil.WriteValidationError(w, r, err)
		return false
	}
	return true
}
