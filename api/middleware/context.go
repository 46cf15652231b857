package middleware

import (
	"oneoffice/internal/entity"

	"github.com/labstack/echo/v4"
)

const (
	contextUserKey    = "auth_user"
	contextSessionKey = "auth_session"
	contextTokenKey   = "auth_session_token"
)

func SetAuthContext(c echo.Context, user *entity.User, session *entity.Session, token string) {
	c.Set(contextUserKey, user)
	c.Set(contextSessionKey, session)
	c.Set(contextTokenKey, token)
}

func UserFromContext(c echo.Context) (*entity.User, bool) {
	user, ok := c.Get(contextUserKey).(*entity.User)
	return user, ok && user != nil
}

func SessionFromContext(c echo.Context) (*entity.Session, bool) {
	session, ok := c.Get(contextSessionKey).(*entity.Session)
	return session, ok && session != nil
}

func SessionTokenFromContext(c echo.Context) (string, bool) {
	token, ok := c.Get(contextTokenKey).(string)
	return token, ok && token != ""
}
