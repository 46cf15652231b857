package dto

import (
	"time"

	"oneoffice/internal/service"
)

type LogoutDeviceRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
}

type LogoutResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message,omitempty"`
	AffectedDevices int64  `json:"affected_devices,omitempty"`
}

type CheckSessionResponse struct {
	IsValid bool `json:"is_valid"`
}

type SessionResponse struct {
	ID             string     `json:"id"`
	DeviceName     string     `json:"device_name"`
	DeviceType     string     `json:"device_type"`
	Browser        string     `json:"browser,omitempty"`
	Platform       string     `json:"platform,omitempty"`
	IPAddress      *string    `json:"ip_address,omitempty"`
	LoginAt        time.Time  `json:"login_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	IsCurrent      bool       `json:"is_current"`
}

func SessionResponsesFromInfos(infos []service.SessionInfo) []SessionResponse {
	responses := make([]SessionResponse, 0, len(infos))
	for _, info := range infos {
		responses = append(responses, SessionResponse{
			ID:             info.ID.String(),
			DeviceName:     info.DeviceName,
			DeviceType:     string(info.DeviceType),
			Browser:        info.Browser,
			Platform:       info.Platform,
			IPAddress:      info.IPAddress,
			LoginAt:        info.LoginAt,
			LastActivityAt: info.LastActivityAt,
			ExpiresAt:      info.ExpiresAt,
			IsCurrent:      info.IsCurrent,
		})
	}
	return responses
}
