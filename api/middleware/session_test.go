package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"oneoffice/internal/entity"
	"oneoffice/internal/service"
	"oneoffice/internal/testutil"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gateFixture struct {
	auth     *service.DeviceAuthService
	users    *testutil.FakeUserRepo
	sessions *testutil.FakeSessionRepo
	clock    *testutil.FixedClock
}

type gatePlainHasher struct{}

func (gatePlainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }
func (gatePlainHasher) Verify(hash string, password string) bool {
	return hash == "plain:"+password
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	f := &gateFixture{
		users:    testutil.NewFakeUserRepo(),
		sessions: testutil.NewFakeSessionRepo(),
		clock:    testutil.NewFixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.auth = service.NewDeviceAuthService(
		f.users,
		f.sessions,
		nil,
		nil,
		gatePlainHasher{},
		nil,
		nil,
		f.clock,
		nil,
		service.SessionConfig{Lifetime: 24 * time.Hour, IdleTimeout: 2 * time.Hour},
	)
	return f
}

func (f *gateFixture) loginToken(t *testing.T) string {
	t.Helper()
	hash := "plain:hunter22"
	verifiedAt := f.clock.Now()
	user := &entity.User{
		ID:              uuid.New(),
		Email:           "ana@example.com",
		PasswordHash:    &hash,
		IsActive:        true,
		EmailVerifiedAt: &verifiedAt,
	}
	require.NoError(t, f.users.Create(context.Background(), user))

	result, err := f.auth.Login(context.Background(), service.LoginInput{
		Email:    "ana@example.com",
		Password: "hunter22",
	})
	require.NoError(t, err)
	return result.SessionToken
}

func performRequest(gate SessionMiddleware, req *http.Request) (*httptest.ResponseRecorder, bool) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var reached bool
	handler := gate.RequireSession(func(c echo.Context) error {
		reached = true
		_, ok := UserFromContext(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.NoContent(http.StatusOK)
	})
	_ = handler(c)
	return rec, reached
}

func TestRequireSessionWithCookie(t *testing.T) {
	f := newGateFixture(t)
	token := f.loginToken(t)
	gate := SessionMiddleware{Auth: f.auth}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: token})

	rec, reached := performRequest(gate, req)
	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireSessionWithBearerToken(t *testing.T) {
	f := newGateFixture(t)
	token := f.loginToken(t)
	gate := SessionMiddleware{Auth: f.auth}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec, reached := performRequest(gate, req)
	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireSessionRejectsMissingToken(t *testing.T) {
	f := newGateFixture(t)
	gate := SessionMiddleware{Auth: f.auth}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec, reached := performRequest(gate, req)

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireSessionTerminatesExpiredSession(t *testing.T) {
	f := newGateFixture(t)
	token := f.loginToken(t)
	gate := SessionMiddleware{Auth: f.auth}

	f.clock.Advance(25 * time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: token})
	rec, reached := performRequest(gate, req)

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The stale cookie is cleared so the client stops presenting it.
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultSessionCookie, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)

	// The row itself was deactivated; the token is dead for good.
	valid, err := f.auth.ValidateSession(context.Background(), token)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestRequireSessionRedirectsBrowsers(t *testing.T) {
	f := newGateFixture(t)
	gate := SessionMiddleware{Auth: f.auth, LoginPath: "/login"}

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rec, reached := performRequest(gate, req)

	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestRequireSessionExtendsActivity(t *testing.T) {
	f := newGateFixture(t)
	token := f.loginToken(t)
	gate := SessionMiddleware{Auth: f.auth}

	// Keep touching the session just inside the idle window; it must stay
	// valid past the point where an untouched one would have gone idle.
	for i := 0; i < 3; i++ {
		f.clock.Advance(90 * time.Minute)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: token})
		rec, _ := performRequest(gate, req)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}
