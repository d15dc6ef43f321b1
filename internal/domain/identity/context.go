package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/telehealth/internal/platform/auth"
)

type contextKey string

const currentUserKey contextKey = "current_user"

func WithCurrentUser(ctx context.Context, cu *CurrentUser) context.Context {
	return context.WithValue(ctx, currentUserKey, cu)
}

// FromContext returns the user resolved for this request, or nil.
func FromContext(ctx context.Context) *CurrentUser {
	cu, _ := ctx.Value(currentUserKey).(*CurrentUser)
	return cu
}

// CallerFromContext is FromContext(ctx).Caller().
func CallerFromContext(ctx context.Context) *Caller {
	return FromContext(ctx).Caller()
}

// Middleware resolves the session left by the auth middleware exactly once
// per request. Anonymous requests continue without a user.
func Middleware(svc *Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			sess := auth.SessionFromContext(ctx)
			if sess == nil {
				return next(c)
			}
			cu, err := svc.Resolve(ctx, sess)
			if err != nil {
				return err
			}
			if cu != nil {
				c.SetRequest(c.Request().WithContext(WithCurrentUser(ctx, cu)))
			}
			return next(c)
		}
	}
}

// RequireRole rejects anonymous callers with 401 and callers whose role is
// not listed with 403.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cu := FromContext(c.Request().Context())
			if cu == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			for _, r := range roles {
				if cu.Role == r {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(names, " or ")))
		}
	}
}
