package middleware

import (
	"errors"
	"net/http"
	"strings"

	"oneoffice/internal/service"

	"github.com/labstack/echo/v4"
)

const DefaultSessionCookie = "session_token"

// SessionMiddleware is the per-request validity gate. A stale or revoked
// session is terminated here (the service deactivates the row), the client
// reference is cleared, and the caller is told to re-authenticate: a JSON 401
// for API clients, a redirect for browser navigation.
type SessionMiddleware struct {
	Auth       *service.DeviceAuthService
	CookieName string
	LoginPath  string
}

func (m SessionMiddleware) cookieName() string {
	if m.CookieName == "" {
		return DefaultSessionCookie
	}
	return m.CookieName
}

func (m SessionMiddleware) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := m.ExtractToken(c)
		if token == "" {
			return m.reject(c)
		}

		session, user, err := m.Auth.Authenticate(c.Request().Context(), token)
		if err != nil {
			if errors.Is(err, service.ErrSessionExpired) {
				m.clearCookie(c)
				return m.reject(c)
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}

		SetAuthContext(c, user, session, token)
		return next(c)
	}
}

// ExtractToken reads the opaque session token from the cookie or, for API
// clients, from the Authorization header.
func (m SessionMiddleware) ExtractToken(c echo.Context) string {
	if cookie, err := c.Cookie(m.cookieName()); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return bearerToken(c.Request())
}

func (m SessionMiddleware) reject(c echo.Context) error {
	if m.LoginPath != "" && wantsHTML(c.Request()) {
		return c.Redirect(http.StatusSeeOther, m.LoginPath)
	}
	return c.JSON(http.StatusUnauthorized, map[string]string{"message": "authentication required"})
}

func (m SessionMiddleware) clearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     m.cookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func bearerToken(r *http.Request) string {
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		return ""
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html")
}
