package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/utafrali/gallery/pkg/errors"
	"github.com/utafrali/gallery/pkg/httputil"
	"github.com/utafrali/gallery/pkg/logger"
)

type contextKeyType string

const (
	userIDKey contextKeyType = "user_id"
	emailKey  contextKeyType = "email"
)

// AccessTokenCookie is the cookie carrying the access token.
const AccessTokenCookie = "access_token"

// Claims represents the identity extracted by the auth middleware.
type Claims struct {
	UserID string
	Email  string
}

// TokenValidator validates an access token and returns its claims. Errors that
// are *apperrors.AppError are written as-is, anything else becomes TOKEN_INVALID.
type TokenValidator func(token string) (*Claims, error)

// Auth validates the access token and injects the caller identity into the
// request context. The token is read from the access_token cookie, falling
// back to an "Authorization: Bearer" header.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				httputil.WriteError(w, r,
					apperrors.New(apperrors.ErrUnauthorized, "TOKEN_MISSING", "access token missing"), nil)
				return
			}

			claims, err := validate(token)
			if err != nil {
				var appErr *apperrors.AppError
				if !errors.As(err, &appErr) {
					err = apperrors.New(apperrors.ErrUnauthorized, "TOKEN_INVALID", "invalid token")
				}
				httputil.WriteError(w, r, err, nil)
				return
			}

			ctx := WithIdentity(r.Context(), claims.UserID, claims.Email)
			trace.SpanFromContext(ctx).SetAttributes(attribute.String("enduser.id", claims.UserID))

			// Enrich the request-scoped logger now that the caller is known.
			ctx = logger.WithUserID(ctx, claims.UserID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", claims.UserID)))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// WithIdentity stores the caller identity in ctx.
func WithIdentity(ctx context.Context, userID, email string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, emailKey, email)
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// EmailFromContext extracts the caller email from the request context.
func EmailFromContext(ctx context.Context) string {
	if email, ok := ctx.Value(emailKey).(string); ok {
		return email
	}
	return ""
}
