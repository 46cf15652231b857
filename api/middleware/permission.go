package middleware

import (
	"errors"
	"net/http"

	"oneoffice/internal/entity"
	"oneoffice/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// PermissionMiddleware attaches a declarative (permission, scope) requirement
// to a route. It runs after the session gate: a missing identity is 401, a
// failed permission or scope check is 403, and a storage failure is 500 —
// never a silent pass.
type PermissionMiddleware struct {
	Permissions *service.PermissionService
}

// Require guards a route with a permission key. The scope is carried by the
// permission definition itself; the target user is resolved from the named
// route parameter when one is configured.
func (m PermissionMiddleware) Require(key entity.PermissionKey, targetParams ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := UserFromContext(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}

			targetUserID := resolveTarget(c, targetParams)
			err := m.Permissions.Authorize(c.Request().Context(), user, key, targetUserID, c.Path())
			switch {
			case err == nil:
				return next(c)
			case errors.Is(err, service.ErrPermissionDenied), errors.Is(err, service.ErrScopeDenied):
				return echo.NewHTTPError(http.StatusForbidden, "forbidden")
			default:
				return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
			}
		}
	}
}

func resolveTarget(c echo.Context, params []string) *uuid.UUID {
	for _, name := range params {
		if raw := c.Param(name); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				return &id
			}
			// A malformed target id still counts as targeting something;
			// returning the nil UUID lets the scope check fail closed instead
			// of degrading into an untargeted request.
			nilID := uuid.Nil
			return &nilID
		}
	}
	return nil
}
