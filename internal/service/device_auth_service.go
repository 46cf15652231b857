package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"oneoffice/internal/entity"
	"oneoffice/internal/repository"
	"oneoffice/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// Stand-in hash so a login against an unknown email costs the same as one
// against a real account.
const dummyPasswordHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8yQbWc1x9uxw2sQ2sXUNx5x9xJ9F2S"

const sessionTokenBytes = 48

// DeviceAuthService is the single authority for turning credentials into a
// live device session and for tearing sessions down.
type DeviceAuthService struct {
	users        repository.UserRepository
	sessions     repository.SessionRepository
	mfaSecrets   repository.MFASecretRepository
	securityLogs repository.SecurityLogRepository

	passwordHash PasswordHasher
	mfaTokens    MFATokenIssuer
	mfaProvider  MFAProvider
	clock        Clock
	logger       *logrus.Logger
	config       SessionConfig
}

func NewDeviceAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	mfaSecrets repository.MFASecretRepository,
	securityLogs repository.SecurityLogRepository,
	passwordHash PasswordHasher,
	mfaTokens MFATokenIssuer,
	mfaProvider MFAProvider,
	clock Clock,
	logger *logrus.Logger,
	config SessionConfig,
) *DeviceAuthService {
	return &DeviceAuthService{
		users:        users,
		sessions:     sessions,
		mfaSecrets:   mfaSecrets,
		securityLogs: securityLogs,
		passwordHash: passwordHash,
		mfaTokens:    mfaTokens,
		mfaProvider:  mfaProvider,
		clock:        clock,
		logger:       logger,
		config:       config,
	}
}

func (s *DeviceAuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	if strings.TrimSpace(input.Email) == "" || strings.TrimSpace(input.Password) == "" {
		return nil, ErrInvalidInput
	}

	email := utils.NormalizeEmail(input.Email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == nil {
		_ = s.passwordHash.Verify(dummyPasswordHash, input.Password)
		s.logSecurity(ctx, nil, input.Client.IPAddress, entity.LoginFailed, map[string]any{"email": email})
		return nil, ErrInvalidCredentials
	}

	if !s.passwordHash.Verify(*user.PasswordHash, input.Password) {
		s.logSecurity(ctx, &user.ID, input.Client.IPAddress, entity.LoginFailed, map[string]any{"email": email})
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}
	if user.EmailVerifiedAt == nil {
		return nil, ErrAccountUnverified
	}

	if s.mfaProvider != nil && s.mfaSecrets != nil && s.mfaTokens != nil {
		secret, err := s.mfaSecrets.FindByUserID(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if secret != nil && secret.EnabledAt != nil {
			mfaToken, expiresIn, err := s.mfaTokens.IssueMFAToken(user.ID)
			if err != nil {
				return nil, err
			}
			return &LoginResult{
				MFARequired:       true,
				MFAToken:          mfaToken,
				MFATokenExpiresIn: int64(expiresIn.Seconds()),
			}, nil
		}
	}

	return s.establishSession(ctx, user, input.Client, input.Remember, "password")
}

func (s *DeviceAuthService) LoginWithMFA(ctx context.Context, input LoginMFAInput) (*LoginResult, error) {
	if s.mfaProvider == nil || s.mfaTokens == nil || s.mfaSecrets == nil {
		return nil, ErrMFANotConfigured
	}
	if strings.TrimSpace(input.MFAToken) == "" || strings.TrimSpace(input.Code) == "" {
		return nil, ErrInvalidInput
	}

	userID, err := s.mfaTokens.ParseMFAToken(input.MFAToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	secret, err := s.mfaSecrets.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if secret == nil || secret.EnabledAt == nil {
		return nil, ErrMFARequired
	}
	if !s.mfaProvider.ValidateCode(secret.Secret, input.Code) {
		s.logSecurity(ctx, &user.ID, input.Client.IPAddress, entity.MFAFailed, nil)
		return nil, ErrInvalidMFACode
	}

	return s.establishSession(ctx, user, input.Client, input.Remember, "mfa")
}

// Logout deactivates the caller's own session. A token that no longer maps to
// an active session is a no-op, not an error.
func (s *DeviceAuthService) Logout(ctx context.Context, token string) error {
	session, err := s.sessions.FindByTokenHash(ctx, utils.HashToken(token))
	if err != nil {
		return err
	}
	if session == nil || !session.IsActive {
		return nil
	}
	if _, err := s.sessions.Deactivate(ctx, session.UserID, session.ID, s.now()); err != nil {
		return err
	}
	s.logSecurity(ctx, &session.UserID, session.IPAddress, entity.Logout, nil)
	return nil
}

// LogoutDevice deactivates one session owned by userID. A session id that
// belongs to another user (or to nothing) is reported as not found; the
// deactivation itself is scoped to the owner, so cross-user teardown is
// impossible even on a guessed id.
func (s *DeviceAuthService) LogoutDevice(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID) error {
	ok, err := s.sessions.Deactivate(ctx, userID, sessionID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	s.logSecurity(ctx, &userID, nil, entity.SessionRevoked, map[string]any{"session_id": sessionID.String()})
	return nil
}

// LogoutOtherDevices deactivates every active session of userID except the one
// the caller is currently using. Returns the number of sessions affected.
func (s *DeviceAuthService) LogoutOtherDevices(ctx context.Context, userID uuid.UUID, currentToken string) (int64, error) {
	session, err := s.sessions.FindByTokenHash(ctx, utils.HashToken(currentToken))
	if err != nil {
		return 0, err
	}
	if session == nil || session.UserID != userID {
		return 0, ErrSessionNotFound
	}

	count, err := s.sessions.DeactivateOthers(ctx, userID, session.ID, s.now())
	if err != nil {
		return 0, err
	}
	s.logSecurity(ctx, &userID, session.IPAddress, entity.SessionRevoked, map[string]any{"scope": "others", "affected": count})
	return count, nil
}

// LogoutAllDevices deactivates every active session including the current one.
// The transport layer is responsible for clearing the caller's own reference.
func (s *DeviceAuthService) LogoutAllDevices(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.sessions.DeactivateAllByUser(ctx, userID, s.now())
	if err != nil {
		return 0, err
	}
	s.logSecurity(ctx, &userID, nil, entity.SessionRevoked, map[string]any{"scope": "all", "affected": count})
	return count, nil
}

// ValidateSession is a pure read: it never mutates session state.
func (s *DeviceAuthService) ValidateSession(ctx context.Context, token string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}
	session, err := s.sessions.FindByTokenHash(ctx, utils.HashToken(token))
	if err != nil {
		return false, err
	}
	return session != nil && session.IsValidAt(s.now(), s.config.IdleTimeout), nil
}

// UpdateActivity extends a valid session's liveness window. Invalid or unknown
// tokens are silently ignored; this never resurrects a dead session.
func (s *DeviceAuthService) UpdateActivity(ctx context.Context, token string) error {
	session, err := s.sessions.FindByTokenHash(ctx, utils.HashToken(token))
	if err != nil {
		return err
	}
	now := s.now()
	if session == nil || !session.IsValidAt(now, s.config.IdleTimeout) {
		return nil
	}
	_, err = s.sessions.Touch(ctx, session.ID, now, now.Add(s.sessionWindow(session)))
	return err
}

// Authenticate is the middleware path: it resolves a token to a live session
// and its user, terminating stale sessions along the way. This is the only
// place an expired-but-still-active row is actively deactivated.
func (s *DeviceAuthService) Authenticate(ctx context.Context, token string) (*entity.Session, *entity.User, error) {
	session, err := s.sessions.FindByTokenHash(ctx, utils.HashToken(token))
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, ErrSessionExpired
	}

	now := s.now()
	if !session.IsValidAt(now, s.config.IdleTimeout) {
		if session.IsActive {
			if _, err := s.sessions.Deactivate(ctx, session.UserID, session.ID, now); err != nil {
				return nil, nil, err
			}
			s.logSecurity(ctx, &session.UserID, session.IPAddress, entity.SessionExpired, map[string]any{"session_id": session.ID.String()})
		}
		return nil, nil, ErrSessionExpired
	}

	window := s.sessionWindow(session)
	touched, err := s.sessions.Touch(ctx, session.ID, now, now.Add(window))
	if err != nil {
		return nil, nil, err
	}
	if !touched {
		// Lost a race against a concurrent deactivation.
		return nil, nil, ErrSessionExpired
	}
	session.LastActivityAt = now
	session.ExpiresAt = now.Add(window)

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil || !user.IsActive {
		_, _ = s.sessions.Deactivate(ctx, session.UserID, session.ID, now)
		return nil, nil, ErrSessionExpired
	}
	return session, user, nil
}

func (s *DeviceAuthService) ListSessions(ctx context.Context, userID uuid.UUID, currentToken string) ([]SessionInfo, error) {
	sessions, err := s.sessions.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	currentHash := utils.HashToken(currentToken)
	infos := make([]SessionInfo, 0, len(sessions))
	for i := range sessions {
		sess := &sessions[i]
		infos = append(infos, SessionInfo{
			ID:             sess.ID,
			DeviceName:     sess.DeviceName,
			DeviceType:     sess.DeviceType,
			Browser:        sess.Browser,
			Platform:       sess.Platform,
			IPAddress:      sess.IPAddress,
			LoginAt:        sess.LoginAt,
			LastActivityAt: sess.LastActivityAt,
			ExpiresAt:      sess.ExpiresAt,
			IsCurrent:      sess.TokenHash == currentHash,
		})
	}
	return infos, nil
}

func (s *DeviceAuthService) establishSession(
	ctx context.Context,
	user *entity.User,
	client ClientContext,
	remember bool,
	loginMethod string,
) (*LoginResult, error) {
	now := s.now()

	info := utils.ParseUserAgent(client.UserAgent)
	deviceName := strings.TrimSpace(client.DeviceName)
	if deviceName == "" {
		deviceName = info.Name()
	}

	ip := ""
	if client.IPAddress != nil {
		ip = *client.IPAddress
	}

	token, err := utils.GenerateRandomToken(sessionTokenBytes)
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(map[string]any{
		"login_method": loginMethod,
		"remember":     remember,
	})
	if err != nil {
		return nil, err
	}

	lifetime := s.config.lifetime(remember)
	session := &entity.Session{
		UserID:            user.ID,
		TokenHash:         utils.HashToken(token),
		DeviceFingerprint: utils.DeviceFingerprint(client.UserAgent, ip),
		DeviceName:        deviceName,
		DeviceType:        info.Type,
		Browser:           info.Browser,
		Platform:          info.Platform,
		IPAddress:         client.IPAddress,
		IsActive:          true,
		LoginAt:           now,
		LastActivityAt:    now,
		ExpiresAt:         now.Add(lifetime),
		Metadata:          datatypes.JSON(metadata),
	}

	// The session must be durable before the token is handed out; a login
	// without a persisted row never succeeds.
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	if err := s.enforceDeviceLimit(ctx, user.ID, session.ID, now); err != nil {
		return nil, err
	}

	s.logSecurity(ctx, &user.ID, client.IPAddress, entity.LoginSuccess, map[string]any{
		"session_id":  session.ID.String(),
		"device_name": deviceName,
		"method":      loginMethod,
	})

	return &LoginResult{
		SessionToken: token,
		ExpiresAt:    session.ExpiresAt,
		Device: DeviceSummary{
			Name:     deviceName,
			Type:     info.Type,
			Browser:  info.Browser,
			Platform: info.Platform,
		},
	}, nil
}

// enforceDeviceLimit evicts by recency, not by login order: a long-lived but
// recently-active session outlives a newer one that has gone idle. It runs
// strictly after the new row is persisted and never evicts that row.
func (s *DeviceAuthService) enforceDeviceLimit(ctx context.Context, userID uuid.UUID, newSessionID uuid.UUID, now time.Time) error {
	active, err := s.sessions.FindActiveByUser(ctx, userID)
	if err != nil {
		return err
	}
	max := s.config.maxDevices()
	if len(active) <= max {
		return nil
	}
	for i := max; i < len(active); i++ {
		if active[i].ID == newSessionID {
			continue
		}
		if _, err := s.sessions.Deactivate(ctx, userID, active[i].ID, now); err != nil {
			return err
		}
		s.logSecurity(ctx, &userID, nil, entity.SessionRevoked, map[string]any{
			"session_id": active[i].ID.String(),
			"reason":     "device_limit",
		})
	}
	return nil
}

// sessionWindow recovers the lifetime chosen at login from the stored
// activity/expiry pair, so a remembered session keeps its extended window
// across refreshes.
func (s *DeviceAuthService) sessionWindow(session *entity.Session) time.Duration {
	window := session.ExpiresAt.Sub(session.LastActivityAt)
	if window <= 0 {
		return s.config.lifetime(false)
	}
	return window
}

// logSecurity is fire-and-forget: the audit sink must never block or fail an
// authentication decision. Failures go to the fallback logger.
func (s *DeviceAuthService) logSecurity(
	ctx context.Context,
	userID *uuid.UUID,
	ipAddress *string,
	action entity.SecurityAction,
	metadata map[string]any,
) {
	if s.securityLogs == nil {
		return
	}
	var payload datatypes.JSON
	if metadata != nil {
		bytes, err := json.Marshal(metadata)
		if err != nil {
			s.warn(err, "marshal security log metadata")
			return
		}
		payload = datatypes.JSON(bytes)
	}

	log := &entity.SecurityLog{
		UserID:    userID,
		IPAddress: ipAddress,
		Action:    action,
		Metadata:  payload,
	}
	if err := s.securityLogs.Log(ctx, log); err != nil {
		s.warn(err, "write security log")
	}
}

func (s *DeviceAuthService) warn(err error, msg string) {
	if s.logger != nil {
		s.logger.WithError(err).Warn(msg)
	}
}

func (s *DeviceAuthService) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}
