package service

import (
	"time"

	"oneoffice/internal/entity"

	"github.com/google/uuid"
)

// ClientContext carries what the transport layer knows about the caller's
// device. The user agent is client-declared and purely cosmetic.
type ClientContext struct {
	UserAgent  string
	IPAddress  *string
	DeviceName string
}

type LoginInput struct {
	Email    string
	Password string
	Remember bool
	Client   ClientContext
}

type LoginMFAInput struct {
	MFAToken string
	Code     string
	Remember bool
	Client   ClientContext
}

type DeviceSummary struct {
	Name     string
	Type     entity.DeviceType
	Browser  string
	Platform string
}

type LoginResult struct {
	SessionToken string
	ExpiresAt    time.Time
	Device       DeviceSummary

	MFARequired       bool
	MFAToken          string
	MFATokenExpiresIn int64
}

type SessionInfo struct {
	ID             uuid.UUID
	DeviceName     string
	DeviceType     entity.DeviceType
	Browser        string
	Platform       string
	IPAddress      *string
	LoginAt        time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
	IsCurrent      bool
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
}
