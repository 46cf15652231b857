package service

import (
	"context"
	"testing"
	"time"

	"oneoffice/internal/entity"
	"oneoffice/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }
func (plainHasher) Verify(hash string, password string) bool {
	return hash == "plain:"+password
}

type staticMFAProvider struct {
	accepted string
}

func (p staticMFAProvider) GenerateSecret() (string, error) { return "secret", nil }
func (p staticMFAProvider) QRCodeURL(email string, issuer string, secret string) (string, error) {
	return "otpauth://totp/" + issuer + ":" + email, nil
}
func (p staticMFAProvider) ValidateCode(secret string, code string) bool {
	return code == p.accepted
}

type authFixture struct {
	svc      *DeviceAuthService
	users    *testutil.FakeUserRepo
	sessions *testutil.FakeSessionRepo
	mfa      *testutil.FakeMFASecretRepo
	logs     *testutil.FakeSecurityLogRepo
	clock    *testutil.FixedClock
}

func newAuthFixture(t *testing.T, config SessionConfig) *authFixture {
	t.Helper()
	f := &authFixture{
		users:    testutil.NewFakeUserRepo(),
		sessions: testutil.NewFakeSessionRepo(),
		mfa:      testutil.NewFakeMFASecretRepo(),
		logs:     testutil.NewFakeSecurityLogRepo(),
		clock:    testutil.NewFixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.svc = NewDeviceAuthService(
		f.users,
		f.sessions,
		f.mfa,
		f.logs,
		plainHasher{},
		MFATokenIssuerJWT{Secret: []byte("test-secret"), Issuer: "test", TTL: 5 * time.Minute},
		staticMFAProvider{accepted: "123456"},
		f.clock,
		nil,
		config,
	)
	return f
}

func (f *authFixture) addUser(t *testing.T, email string, password string) *entity.User {
	t.Helper()
	hash := "plain:" + password
	verifiedAt := f.clock.Now()
	user := &entity.User{
		ID:              uuid.New(),
		Email:           email,
		PasswordHash:    &hash,
		IsActive:        true,
		EmailVerifiedAt: &verifiedAt,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *authFixture) login(t *testing.T, email string, password string) *LoginResult {
	t.Helper()
	result, err := f.svc.Login(context.Background(), LoginInput{
		Email:    email,
		Password: password,
		Client:   ClientContext{UserAgent: "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0"},
	})
	require.NoError(t, err)
	require.False(t, result.MFARequired)
	require.NotEmpty(t, result.SessionToken)
	return result
}

func defaultSessionConfig() SessionConfig {
	return SessionConfig{
		Lifetime:         24 * time.Hour,
		RememberLifetime: 30 * 24 * time.Hour,
		IdleTimeout:      2 * time.Hour,
		MaxDevices:       5,
	}
}

func TestLoginCreatesValidSession(t *testing.T) {
	f := newAuthFixture(t, defaultSessionConfig())
	f.addUser(t, "ana@example.com", "hunter22")

	result := f.login(t, "ana@example.com", "hunter22")

	assert.Equal(t, f.clock.Now().Add(24*time.Hour), result.ExpiresAt)
	assert.Equal(t, entity.DeviceDesktop, result.Device.Type)
	assert.Equal(t, "Chrome", result.Device.Browser)

	valid, err := f.svc.ValidateSession(context.Background(), result.SessionToken)
	require.NoError(t, err)
	assert.True(t, valid)

	assert.Len(t, f.logs.ByAction(entity.LoginSuccess), 1)
}

func TestLoginFailureIsGeneric(t *testing.T) {
	f := newAuthFixture(t, defaultSessionConfig())
	f.addUser(t, "ana@example.com", "hunter22")

	_, unknownErr := f.svc.Login(context.Background(), LoginInput{Email: "nobody@example.com", Password: "whatever"})
	_, wrongErr := f.svc.Login(context.Background(), LoginInput{Email: "ana@example.com", Password: "wrong"})

	assert.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, ErrInvalidCredentials)
	assert.Equal(t, unknownErr, wrongErr)
	assert.Len(t, f.logs.ByAction(entity.LoginFailed), 2)
}

func TestLoginRejectsInactiveAndUnverified(t *testing.T) {
	f := newAuthFixture(t, defaultSessionConfig())

	inactive := f.addUser(t, "off@example.com", "hunter22")
	inactive.IsActive = false
	require.NoError(t, f.users.Update(context.Background(), inactive))

	unverified := f.addUser(t, "new@example.com", "hunter22")
	unverified.EmailVerifiedAt = nil
	require.NoError(t, f.users.Update(context.Background(), unverified))

	_, err := f.svc.Login(context.Background(), LoginInput{Email: "off@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrAccountInactive)

	_, err = f.svc.Login(context.Background(), LoginInput{Email: "new@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrAccountUnverified)
}

func TestLoginWithMFAEnabled(t *testing.T) {
	f := newAuthFixture(t, defaultSessionConfig())
	user := f.addUser(t, "ana@example.com", "hunter22")

	enabledAt := f.clock.Now()
	require.NoError(t, f.mfa.Upsert(context.Background(), &entity.MFASecret{
		UserID:    user.ID,
		Secret:    "secret",
		EnabledAt: &enabledAt,
	}))

	result, err := f.svc.Login(context.Background(), LoginInput{Email: "ana@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.True(t, result.MFARequired)
	assert.NotEmpty(t, result.MFAToken)
	assert.Empty(t, result.SessionToken)

	// No session exists until the MFA step completes.
	active, err := f.sessions.FindActiveByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, active)

	// Wrong code is rejected and audited.
	_, err = f.svc.LoginWithMFA(context.Background(), LoginMFAInput{MFAToken: result.MFAToken, Code: "000000"})
	assert.ErrorIs(t, err, ErrInvalidMFACode)
	assert.Len(t, f.logs.ByAction(entity.MFAFailed), 1)

	final, err := f.svc.LoginWithMFA(context.Background(), LoginMFAInput{MFAToken: result.MFAToken, Code: "123456"})
	require.NoError(t, err)
	assert.NotEmpty(t, final.SessionToken)

	valid, err := f.svc.ValidateSession(context.Background(), final.SessionToken)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestDeviceLimitEvictsLeastRecentlyActive(t *testing.T) {
	config := defaultSessionConfig()
	config.MaxDevices = 2
	f := newAuthFixture(t, config)
	f.addUser(t, "ana@example.com", "hunter22")

	first := f.login(t, "ana@example.com", "hunter22")
	f.clock.Advance(time.Minute)
	second := f.login(t, "ana@example.com", "hunter22")
	f.clock.Advance(time.Minute)

	// The first session became the most recently active one: it must survive
	// the eviction triggered by the third login, while the second (now the
	// least recently active) is evicted.
	require.NoError(t, f.svc.UpdateActivity(context.Background(), first.SessionToken))
	f.clock.Advance(time.Minute)
	third := f.login(t, "ana@example.com", "hunter22")

	firstValid, err := f.svc.ValidateSession(context.Background(), first.SessionToken)
	require.NoError(t, err)
	secondValid, err := f.svc.ValidateSession(context.Background(), second.SessionToken)
	require.NoError(t, err)
	thirdValid, err := f.svc.ValidateSession(context.Background(), third.SessionToken)
	require.NoError(t, err)

	assert.True(t, firstValid)
	assert.False(t, secondValid)
	assert.True(t, thirdValid)
}

func TestDeviceLimitAtDefaultCap(t *testing.T) {
	f := newAuthFixture(t, defaultSessionConfig())
	f.addUser(t, "ana@example.com", "hunter22")

	// Five sessions with strictly increasing activity, then a sixth login:
	// the session with the oldest activity goes, the rest survive.
	var tokens []string
	for i := 0; i < 6; i++ {
		tokens = append(tokens, f.login(t, "ana@example.com", "hunter22").SessionToken)
		f.clock.Advance(time.Minute)
	}

	for i, token := range tokens {
		valid, err := f.svc.ValidateSession(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, i != 0, valid, "token %d", i)
	}
}

func TestDeviceLimitNeverEvictsTheNewSession(t *testing.T) {
	config := defaultSessionConfig()
	config.MaxDevices = 1
	f := newAuthFixture(t, config)
	f.addUser(t, "ana@example.com", "hunter22")

	old := f.login(t, "ana@example.com", "hunter22")
	f.clock.Advance(time.Minute)
	fresh := f.login(t, "ana@example.com", "hunter22")

	oldValid, err := f.svc.ValidateSession(context.Background(), old.SessionToken)
	require.NoError(t, err)
	freshValid, err := f.svc.ValidateSession(context.Background(), fresh.SessionToken)
	require.NoError(t, err)

	assert.False(t, oldValid)
	assert.True(t, freshValid)
}

func TestLogoutOtherDevices(t *testing.T) {
	f := newAuthFixture(t, defaultSessionConfig())
	user := f.addUser(t, "ana@example.com", "hunter22")

	var tokens []string
	for i := 0; i < 4; i++ {
		tokens = append(tokens, f.login(t, "ana@example.com", "hunter22").SessionToken)
		f.clock.Advance(time.Second)
	}

	affected, err := f.svc.LogoutOtherDevices(context.Background(), user.ID, tokens[3])
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	for i, token := range tokens {
		valid, err := f.svc.ValidateSession(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, i == 3, valid, "token %d", i)
	}
}

func TestLogoutDeviceCrossUserIsNotFound(t *testing.T) {
	f := newAuthFixture(t, defaultSessionConfig())
	f.addUser(t, "ana@example.com", "hunter22")
	mallory := f.addUser(t, "mallory@example.com", "hunter22")

	victim := f.login(t, "ana@example.com", "hunter22")
	sessions, err := f.svc.ListSessions(context.Background(), victimUserID(t, f, "ana@example.com"), victim.SessionToken)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	err = f.svc.LogoutDevice(context.Background(), mallory.ID, sessions[0].ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	valid, err := f.svc.ValidateSession(context.Background(), victim.SessionToken)
	require.NoError(t, err)
	assert.True(t, valid)
}

func victimUserID(t *testing.T, f *authFixture, email string) uuid.UUID {
	t.Helper()
	user, err := f.users.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user.ID
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newAuthFixture(t, defaultSessionConfig())
	f.addUser(t, "ana@example.com", "hunter22")
	result := f.login(t, "ana@example.com", "hunter22")

	require.NoError(t, f.svc.Logout(context.Background(), result.SessionToken))

	valid, err := f.svc.ValidateSession(context.Background(), result.SessionToken)
	require.NoError(t, err)
	assert.False(t, valid)

	// A second logout and a logout with garbage are both no-ops.
	assert.NoError(t, f.svc.Logout(context.Background(), result.SessionToken))
	assert.NoError(t, f.svc.Logout(context.Background(), "not-a-token"))
}

func TestDeactivatedSessionStaysDead(t *testing.T) {
	f := newAuthFixture(t, defaultSessionConfig())
	f.addUser(t, "ana@example.com", "hunter22")
	result := f.login(t, "ana@example.com", "hunter22")

	require.NoError(t, f.svc.Logout(context.Background(), result.SessionToken))

	// Activity refresh must not resurrect the row.
	require.NoError(t, f.svc.UpdateActivity(context.Background(), result.SessionToken))
	valid, err := f.svc.ValidateSession(context.Background(), result.SessionToken)
	require.NoError(t, err)
	assert.False(t, valid)

	_, _, err = f.svc.Authenticate(context.Background(), result.SessionToken)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestUpdateActivitySlidesExpiry(t *testing.T) {
	f := newAuthFixture(t, defaultSessionConfig())
	f.addUser(t, "ana@example.com", "hunter22")

	result, err := f.svc.Login(context.Background(), LoginInput{
		Email:    "ana@example.com",
		Password: "hunter22",
		Remember: true,
		Client:   ClientContext{UserAgent: "Mozilla/5.0"},
	})
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(30*24*time.Hour), result.ExpiresAt)

	f.clock.Advance(time.Hour)
	require.NoError(t, f.svc.UpdateActivity(context.Background(), result.SessionToken))

	// The remembered window carries over: new expiry is now + 30d, not now + 24h.
	infos, err := f.svc.ListSessions(context.Background(), victimUserID(t, f, "ana@example.com"), result.SessionToken)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, f.clock.Now(), infos[0].LastActivityAt)
	assert.Equal(t, f.clock.Now().Add(30*24*time.Hour), infos[0].ExpiresAt)
}

func TestIdleTimeoutInvalidatesSession(t *testing.T) {
	f := newAuthFixture(t, defaultSessionConfig())
	f.addUser(t, "ana@example.com", "hunter22")
	result := f.login(t, "ana@example.com", "hunter22")

	f.clock.Advance(2*time.Hour + time.Second)

	valid, err := f.svc.ValidateSession(context.Background(), result.SessionToken)
	require.NoError(t, err)
	assert.False(t, valid)

	// Authenticate terminates the stale row and audits it.
	_, _, err = f.svc.Authenticate(context.Background(), result.SessionToken)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Len(t, f.logs.ByAction(entity.SessionExpired), 1)

	// Only the first authentication deactivates; the second sees a dead row.
	_, _, err = f.svc.Authenticate(context.Background(), result.SessionToken)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Len(t, f.logs.ByAction(entity.SessionExpired), 1)
}

func TestAuthenticateExtendsActivity(t *testing.T) {
	f := newAuthFixture(t, defaultSessionConfig())
	user := f.addUser(t, "ana@example.com", "hunter22")
	result := f.login(t, "ana@example.com", "hunter22")

	f.clock.Advance(time.Hour)
	session, authUser, err := f.svc.Authenticate(context.Background(), result.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, authUser.ID)
	assert.Equal(t, f.clock.Now(), session.LastActivityAt)
	assert.Equal(t, f.clock.Now().Add(24*time.Hour), session.ExpiresAt)
}

func TestAuthenticateRejectsDeactivatedUser(t *testing.T) {
	f := newAuthFixture(t, defaultSessionConfig())
	user := f.addUser(t, "ana@example.com", "hunter22")
	result := f.login(t, "ana@example.com", "hunter22")

	user.IsActive = false
	require.NoError(t, f.users.Update(context.Background(), user))

	_, _, err := f.svc.Authenticate(context.Background(), result.SessionToken)
	assert.ErrorIs(t, err, ErrSessionExpired)

	// The session was terminated along the way.
	valid, err := f.svc.ValidateSession(context.Background(), result.SessionToken)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestValidateSessionIsPureRead(t *testing.T) {
	f := newAuthFixture(t, defaultSessionConfig())
	f.addUser(t, "ana@example.com", "hunter22")
	result := f.login(t, "ana@example.com", "hunter22")

	f.clock.Advance(time.Hour)
	valid, err := f.svc.ValidateSession(context.Background(), result.SessionToken)
	require.NoError(t, err)
	assert.True(t, valid)

	infos, err := f.svc.ListSessions(context.Background(), victimUserID(t, f, "ana@example.com"), result.SessionToken)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, f.clock.Now().Add(-time.Hour), infos[0].LastActivityAt)
}

func TestListSessionsMarksCurrent(t *testing.T) {
	f := newAuthFixture(t, defaultSessionConfig())
	user := f.addUser(t, "ana@example.com", "hunter22")

	first := f.login(t, "ana@example.com", "hunter22")
	f.clock.Advance(time.Second)
	second := f.login(t, "ana@example.com", "hunter22")

	infos, err := f.svc.ListSessions(context.Background(), user.ID, second.SessionToken)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	// Most recently active first.
	assert.True(t, infos[0].IsCurrent)
	assert.False(t, infos[1].IsCurrent)

	infos, err = f.svc.ListSessions(context.Background(), user.ID, first.SessionToken)
	require.NoError(t, err)
	assert.False(t, infos[0].IsCurrent)
	assert.True(t, infos[1].IsCurrent)
}
