package dto

import (
	"time"

	"oneoffice/internal/entity"
	"oneoffice/internal/service"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"omitempty,max=255"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	Remember   bool   `json:"remember"`
	DeviceName string `json:"device_name" validate:"omitempty,max=100"`
}

type LoginMFARequest struct {
	MFAToken   string `json:"mfa_token" validate:"required"`
	Code       string `json:"code" validate:"required"`
	Remember   bool   `json:"remember"`
	DeviceName string `json:"device_name" validate:"omitempty,max=100"`
}

type DeviceInfoResponse struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Browser  string `json:"browser,omitempty"`
	Platform string `json:"platform,omitempty"`
}

type LoginResponse struct {
	Success      bool                `json:"success"`
	Message      string              `json:"message,omitempty"`
	SessionToken string              `json:"session_token,omitempty"`
	DeviceInfo   *DeviceInfoResponse `json:"device_info,omitempty"`
	ExpiresAt    *time.Time          `json:"expires_at,omitempty"`

	MFARequired       bool   `json:"mfa_required,omitempty"`
	MFAToken          string `json:"mfa_token,omitempty"`
	MFATokenExpiresIn int64  `json:"mfa_token_expires_in,omitempty"`
}

func LoginResponseFromResult(result *service.LoginResult) LoginResponse {
	if result == nil {
		return LoginResponse{}
	}
	if result.MFARequired {
		return LoginResponse{
			Success:           true,
			MFARequired:       true,
			MFAToken:          result.MFAToken,
			MFATokenExpiresIn: result.MFATokenExpiresIn,
		}
	}
	expiresAt := result.ExpiresAt
	return LoginResponse{
		Success:      true,
		SessionToken: result.SessionToken,
		ExpiresAt:    &expiresAt,
		DeviceInfo: &DeviceInfoResponse{
			Name:     result.Device.Name,
			Type:     string(result.Device.Type),
			Browser:  result.Device.Browser,
			Platform: result.Device.Platform,
		},
	}
}

type PasswordForgotRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type PasswordResetRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type MFAEnableResponse struct {
	QRCode string `json:"qr_code"`
}

type MFAVerifyRequest struct {
	Code string `json:"code" validate:"required"`
}

type UserResponse struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	FullName        string     `json:"full_name,omitempty"`
	IsSuperAdmin    bool       `json:"is_super_admin"`
	IsActive        bool       `json:"is_active"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	OrganizationID  *string    `json:"organization_id,omitempty"`
	DepartmentID    *string    `json:"department_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func UserResponseFromEntity(user *entity.User) UserResponse {
	response := UserResponse{
		ID:              user.ID.String(),
		Email:           user.Email,
		FullName:        user.FullName,
		IsSuperAdmin:    user.IsSuperAdmin,
		IsActive:        user.IsActive,
		EmailVerifiedAt: user.EmailVerifiedAt,
		CreatedAt:       user.CreatedAt,
		UpdatedAt:       user.UpdatedAt,
	}
	if user.OrganizationID != nil {
		id := user.OrganizationID.String()
		response.OrganizationID = &id
	}
	if user.DepartmentID != nil {
		id := user.DepartmentID.String()
		response.DepartmentID = &id
	}
	return response
}

func UserResponsesFromEntities(users []entity.User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, UserResponseFromEntity(&users[i]))
	}
	return responses
}
