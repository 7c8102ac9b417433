package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest holds the open-registration payload. Role is chosen by
// the caller and must belong to the closed enum.
type RegisterRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6"`
	FullName string   `json:"fullName" validate:"required"`
	Role     UserRole `json:"role" validate:"required,oneof=admin faculty student"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse returns the issued token together with the public user view.
// The token is valid for a fixed window and is never refreshed.
type AuthResponse struct {
	Token     string    `json:"token"`
	User      UserView  `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChangePasswordRequest payload for updating the caller's password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// RequestMeta carries client metadata for the audit trail.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// JWTClaims is the access-token payload: user identity and role, nothing else.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}
