package service

import (
	"context"
	"strings"
	"time"

	"oneoffice/internal/entity"
	"oneoffice/internal/repository"
	"oneoffice/internal/utils"

	"github.com/google/uuid"
)

const verificationTokenBytes = 32

// AccountService owns the account lifecycle around the session core:
// registration, email verification, password reset, and MFA enrollment.
type AccountService struct {
	users         repository.UserRepository
	sessions      repository.SessionRepository
	verifications repository.VerificationTokenRepository
	mfaSecrets    repository.MFASecretRepository

	emailSender  EmailSender
	passwordHash PasswordHasher
	mfaProvider  MFAProvider
	clock        Clock
	config       AccountConfig
}

func NewAccountService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	verifications repository.VerificationTokenRepository,
	mfaSecrets repository.MFASecretRepository,
	emailSender EmailSender,
	passwordHash PasswordHasher,
	mfaProvider MFAProvider,
	clock Clock,
	config AccountConfig,
) *AccountService {
	return &AccountService{
		users:         users,
		sessions:      sessions,
		verifications: verifications,
		mfaSecrets:    mfaSecrets,
		emailSender:   emailSender,
		passwordHash:  passwordHash,
		mfaProvider:   mfaProvider,
		clock:         clock,
		config:        config,
	}
}

func (s *AccountService) Register(ctx context.Context, input RegisterInput) error {
	if strings.TrimSpace(input.Email) == "" || strings.TrimSpace(input.Password) == "" {
		return ErrInvalidInput
	}

	email := utils.NormalizeEmail(input.Email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user != nil {
		if user.EmailVerifiedAt != nil {
			return ErrEmailAlreadyRegistered
		}
		return s.sendEmailVerification(ctx, user)
	}

	hash, err := s.passwordHash.Hash(input.Password)
	if err != nil {
		return err
	}

	newUser := &entity.User{
		Email:        email,
		PasswordHash: &hash,
		FullName:     strings.TrimSpace(input.FullName),
		IsActive:     true,
	}
	if err := s.users.Create(ctx, newUser); err != nil {
		return err
	}

	return s.sendEmailVerification(ctx, newUser)
}

func (s *AccountService) VerifyEmail(ctx context.Context, token string) error {
	verification, err := s.verifications.FindValid(ctx, utils.HashToken(token), entity.EmailVerify, s.now())
	if err != nil {
		return err
	}
	if verification == nil {
		return ErrInvalidToken
	}

	if err := s.users.VerifyEmail(ctx, verification.UserID, s.now()); err != nil {
		return err
	}
	return s.verifications.MarkUsed(ctx, verification.ID, s.now())
}

// RequestPasswordReset is silent for unknown or unverified addresses so the
// endpoint cannot be used to probe which emails exist.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrInvalidInput
	}

	user, err := s.users.FindByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil || user.EmailVerifiedAt == nil {
		return nil
	}

	token, err := s.createVerificationToken(ctx, user.ID, entity.PasswordRecovery, s.resetTokenTTL())
	if err != nil {
		return err
	}

	if s.emailSender != nil {
		return s.emailSender.SendPasswordResetEmail(ctx, user.Email, token)
	}
	return nil
}

// ResetPassword sets the new hash and revokes every session; the credential
// change invalidates all devices at once.
func (s *AccountService) ResetPassword(ctx context.Context, token string, newPassword string) error {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(newPassword) == "" {
		return ErrInvalidInput
	}

	verification, err := s.verifications.FindValid(ctx, utils.HashToken(token), entity.PasswordRecovery, s.now())
	if err != nil {
		return err
	}
	if verification == nil {
		return ErrInvalidToken
	}

	user, err := s.users.FindByID(ctx, verification.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	hash, err := s.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = &hash
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	if err := s.verifications.MarkUsed(ctx, verification.ID, s.now()); err != nil {
		return err
	}

	_, err = s.sessions.DeactivateAllByUser(ctx, user.ID, s.now())
	return err
}

func (s *AccountService) EnableMFA(ctx context.Context, userID uuid.UUID) (string, error) {
	if s.mfaProvider == nil || s.mfaSecrets == nil {
		return "", ErrMFANotConfigured
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	secret, err := s.mfaProvider.GenerateSecret()
	if err != nil {
		return "", err
	}

	mfaSecret := &entity.MFASecret{
		UserID:    user.ID,
		Secret:    secret,
		EnabledAt: nil,
	}
	if err := s.mfaSecrets.Upsert(ctx, mfaSecret); err != nil {
		return "", err
	}

	return s.mfaProvider.QRCodeURL(user.Email, s.config.MFAIssuer, secret)
}

func (s *AccountService) VerifyMFA(ctx context.Context, userID uuid.UUID, code string) error {
	if s.mfaProvider == nil || s.mfaSecrets == nil {
		return ErrMFANotConfigured
	}
	if strings.TrimSpace(code) == "" {
		return ErrInvalidInput
	}
	secret, err := s.mfaSecrets.FindByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if secret == nil {
		return ErrMFARequired
	}
	if !s.mfaProvider.ValidateCode(secret.Secret, code) {
		return ErrInvalidMFACode
	}

	now := s.now()
	secret.EnabledAt = &now
	return s.mfaSecrets.Upsert(ctx, secret)
}

func (s *AccountService) DisableMFA(ctx context.Context, userID uuid.UUID) error {
	if s.mfaSecrets == nil {
		return nil
	}
	return s.mfaSecrets.Disable(ctx, userID)
}

func (s *AccountService) GetUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *AccountService) ListUsers(ctx context.Context, limit, offset int) ([]entity.User, error) {
	return s.users.List(ctx, limit, offset)
}

func (s *AccountService) sendEmailVerification(ctx context.Context, user *entity.User) error {
	if s.emailSender == nil {
		return nil
	}
	token, err := s.createVerificationToken(ctx, user.ID, entity.EmailVerify, s.verificationTokenTTL())
	if err != nil {
		return err
	}
	return s.emailSender.SendVerificationEmail(ctx, user.Email, token)
}

func (s *AccountService) createVerificationToken(
	ctx context.Context,
	userID uuid.UUID,
	typeValue entity.VerificationType,
	ttl time.Duration,
) (string, error) {
	rawToken, err := utils.GenerateRandomToken(verificationTokenBytes)
	if err != nil {
		return "", err
	}

	verification := &entity.VerificationToken{
		UserID:    userID,
		TokenHash: utils.HashToken(rawToken),
		Type:      typeValue,
		ExpiresAt: s.now().Add(ttl),
	}
	if err := s.verifications.Create(ctx, verification); err != nil {
		return "", err
	}
	return rawToken, nil
}

func (s *AccountService) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}

func (s *AccountService) verificationTokenTTL() time.Duration {
	if s.config.VerificationTokenTTL > 0 {
		return s.config.VerificationTokenTTL
	}
	return 24 * time.Hour
}

func (s *AccountService) resetTokenTTL() time.Duration {
	if s.config.ResetTokenTTL > 0 {
		return s.config.ResetTokenTTL
	}
	return 30 * time.Minute
}
