package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SessionConfig governs the liveness window of device sessions.
type SessionConfig struct {
	// Lifetime is the absolute validity window granted at login.
	Lifetime time.Duration
	// RememberLifetime replaces Lifetime when the user asked to be remembered.
	RememberLifetime time.Duration
	// IdleTimeout invalidates a session that saw no activity for this long.
	IdleTimeout time.Duration
	// MaxDevices caps concurrent active sessions per user; the oldest-by-activity
	// sessions beyond the cap are evicted. Zero means the default of 5.
	MaxDevices int
}

const defaultMaxDevices = 5

func (c SessionConfig) lifetime(remember bool) time.Duration {
	if remember && c.RememberLifetime > 0 {
		return c.RememberLifetime
	}
	if c.Lifetime > 0 {
		return c.Lifetime
	}
	return 24 * time.Hour
}

func (c SessionConfig) maxDevices() int {
	if c.MaxDevices > 0 {
		return c.MaxDevices
	}
	return defaultMaxDevices
}

type AccountConfig struct {
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
	MFATokenTTL          time.Duration
	MFAIssuer            string
}

type EmailSender interface {
	SendVerificationEmail(ctx context.Context, email string, token string) error
	SendPasswordResetEmail(ctx context.Context, email string, token string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash string, password string) bool
}

type MFATokenIssuer interface {
	IssueMFAToken(userID uuid.UUID) (string, time.Duration, error)
	ParseMFAToken(token string) (uuid.UUID, error)
}

type MFAProvider interface {
	GenerateSecret() (string, error)
	QRCodeURL(email string, issuer string, secret string) (string, error)
	ValidateCode(secret string, code string) bool
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

type BcryptPasswordHasher struct {
	Cost int
}

func (h BcryptPasswordHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func (h BcryptPasswordHasher) Verify(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
