package routes

import (
	"time"

	"oneoffice/api/handler"
	"oneoffice/api/middleware"
	"oneoffice/internal/entity"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type Router struct {
	Echo        *echo.Echo
	Auth        *handler.AuthHandler
	Sessions    *handler.SessionHandler
	SessionGate middleware.SessionMiddleware
	Permissions middleware.PermissionMiddleware
	AuthRate    *middleware.RateLimiter
	LoginRate   *middleware.RateLimiter
}

func NewRouter(
	e *echo.Echo,
	authHandler *handler.AuthHandler,
	sessionHandler *handler.SessionHandler,
	sessionGate middleware.SessionMiddleware,
	permissions middleware.PermissionMiddleware,
) *Router {
	return &Router{
		Echo:        e,
		Auth:        authHandler,
		Sessions:    sessionHandler,
		SessionGate: sessionGate,
		Permissions: permissions,
		AuthRate:    middleware.NewRateLimiter(rate.Limit(5), 10, 5*time.Minute),
		LoginRate:   middleware.NewRateLimiter(rate.Limit(2), 4, 10*time.Minute),
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo

	e.POST("/auth/register", r.Auth.Register, r.AuthRate.Middleware())
	e.POST("/auth/verify-email", r.Auth.VerifyEmail, r.AuthRate.Middleware())
	e.POST("/auth/login", r.Auth.Login, r.LoginRate.Middleware())
	e.POST("/auth/login/mfa", r.Auth.LoginWithMFA, r.LoginRate.Middleware())
	e.POST("/auth/password/forgot", r.Auth.PasswordForgot, r.LoginRate.Middleware())
	e.POST("/auth/password/reset", r.Auth.PasswordReset, r.AuthRate.Middleware())

	// Logout and the validity probe take the token directly so a stale
	// session can still be ended (or reported invalid) without tripping the
	// session gate.
	e.POST("/auth/logout", r.Sessions.Logout)
	e.GET("/auth/session", r.Sessions.CheckSession)
	e.POST("/auth/session/refresh", r.Sessions.RefreshActivity)

	e.POST("/auth/logout-device", r.Sessions.LogoutDevice, r.SessionGate.RequireSession)
	e.POST("/auth/logout-others", r.Sessions.LogoutOtherDevices, r.SessionGate.RequireSession)
	e.POST("/auth/logout-all", r.Sessions.LogoutAllDevices, r.SessionGate.RequireSession)
	e.GET("/auth/sessions", r.Sessions.ListSessions, r.SessionGate.RequireSession)

	e.POST("/auth/mfa/enable", r.Auth.EnableMFA, r.SessionGate.RequireSession)
	e.POST("/auth/mfa/verify", r.Auth.VerifyMFA, r.SessionGate.RequireSession)
	e.POST("/auth/mfa/disable", r.Auth.DisableMFA, r.SessionGate.RequireSession)

	e.GET("/me", r.Auth.Me, r.SessionGate.RequireSession)

	e.GET("/admin/users", r.Auth.AdminListUsers,
		r.SessionGate.RequireSession,
		r.Permissions.Require(entity.PermissionKey{Module: "admin", Resource: "users", Action: "read"}),
	)
	e.POST("/admin/users/:id/revoke-sessions", r.Sessions.AdminRevokeUserSessions,
		r.SessionGate.RequireSession,
		r.Permissions.Require(entity.PermissionKey{Module: "admin", Resource: "sessions", Action: "revoke"}, "id"),
	)
}
