package handler

import (
	"errors"
	"net/http"

	"oneoffice/api/middleware"
	"oneoffice/internal/dto"
	"oneoffice/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SessionHandler exposes device/session management: logout in its variants,
// a validity probe, an explicit activity refresh, and the device list.
type SessionHandler struct {
	Auth     *service.DeviceAuthService
	Validate *validator.Validate

	Sessions middleware.SessionMiddleware

	SessionCookieName string
	CookieDomain      string
	SecureCookies     bool
	SameSite          http.SameSite
}

func NewSessionHandler(auth *service.DeviceAuthService, validate *validator.Validate, sessions middleware.SessionMiddleware) *SessionHandler {
	return &SessionHandler{
		Auth:              auth,
		Validate:          validate,
		Sessions:          sessions,
		SessionCookieName: middleware.DefaultSessionCookie,
		SecureCookies:     true,
		SameSite:          http.SameSiteStrictMode,
	}
}

// Logout ends the caller's own session. It succeeds even when the token is
// already stale so that a logout click never errors out on the client.
func (h *SessionHandler) Logout(c echo.Context) error {
	token := h.Sessions.ExtractToken(c)
	if token != "" {
		if err := h.Auth.Logout(c.Request().Context(), token); err != nil {
			return writeServiceError(c, err)
		}
	}
	h.clearSessionCookie(c)
	return c.JSON(http.StatusOK, dto.LogoutResponse{Success: true, Message: "logged out"})
}

// LogoutDevice revokes one of the caller's other sessions, addressed by
// session id. Sessions owned by other users are indistinguishable from
// missing ones.
func (h *SessionHandler) LogoutDevice(c echo.Context) error {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	var req dto.LogoutDeviceRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validatePayload(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return writeError(c, http.StatusBadRequest, errors.New("invalid session id"))
	}
	if err := h.Auth.LogoutDevice(c.Request().Context(), user.ID, sessionID); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.LogoutResponse{Success: true, Message: "device logged out"})
}

// LogoutOtherDevices revokes every session of the caller except the one
// backing this request.
func (h *SessionHandler) LogoutOtherDevices(c echo.Context) error {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	token, _ := middleware.SessionTokenFromContext(c)
	affected, err := h.Auth.LogoutOtherDevices(c.Request().Context(), user.ID, token)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.LogoutResponse{Success: true, Message: "other devices logged out", AffectedDevices: affected})
}

// LogoutAllDevices revokes every session of the caller, the current one
// included.
func (h *SessionHandler) LogoutAllDevices(c echo.Context) error {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	affected, err := h.Auth.LogoutAllDevices(c.Request().Context(), user.ID)
	if err != nil {
		return writeServiceError(c, err)
	}
	h.clearSessionCookie(c)
	return c.JSON(http.StatusOK, dto.LogoutResponse{Success: true, Message: "all devices logged out", AffectedDevices: affected})
}

// CheckSession reports whether the presented token still backs a valid
// session. It is a pure read: it never extends nor terminates the session.
func (h *SessionHandler) CheckSession(c echo.Context) error {
	token := h.Sessions.ExtractToken(c)
	if token == "" {
		return c.JSON(http.StatusOK, dto.CheckSessionResponse{IsValid: false})
	}
	valid, err := h.Auth.ValidateSession(c.Request().Context(), token)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.CheckSessionResponse{IsValid: valid})
}

// RefreshActivity records activity on the caller's session, sliding its
// expiry forward. An invalid token is a silent no-op.
func (h *SessionHandler) RefreshActivity(c echo.Context) error {
	token := h.Sessions.ExtractToken(c)
	if token == "" {
		return writeError(c, http.StatusUnauthorized, errors.New("authentication required"))
	}
	if err := h.Auth.UpdateActivity(c.Request().Context(), token); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListSessions returns the caller's active devices, most recently active
// first, with the current one flagged.
func (h *SessionHandler) ListSessions(c echo.Context) error {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	token, _ := middleware.SessionTokenFromContext(c)
	infos, err := h.Auth.ListSessions(c.Request().Context(), user.ID, token)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.SessionResponsesFromInfos(infos))
}

// AdminRevokeUserSessions force-logs-out every device of the user named in
// the route. Guarded by the permission middleware at registration.
func (h *SessionHandler) AdminRevokeUserSessions(c echo.Context) error {
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return writeError(c, http.StatusBadRequest, errors.New("invalid user id"))
	}
	affected, err := h.Auth.LogoutAllDevices(c.Request().Context(), targetID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.LogoutResponse{Success: true, Message: "user sessions revoked", AffectedDevices: affected})
}

func (h *SessionHandler) validatePayload(payload any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(payload)
}

func (h *SessionHandler) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     h.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: h.SameSite,
	})
}
