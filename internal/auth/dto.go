package auth

import (
	"github.com/iamnithishraja/klinic-sub000/internal/users"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries the refresh token paired with the (possibly expired)
// access token sent in the Authorization header.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RegisterRequest is the self sign up payload. LaboratoryName is required
// when Role is laboratory.
type RegisterRequest struct {
	Name           string         `json:"name" validate:"required,max=120"`
	Email          string         `json:"email" validate:"required,email"`
	Password       string         `json:"password" validate:"required"`
	Phone          *string        `json:"phone,omitempty" validate:"omitempty,max=32"`
	Role           enums.UserRole `json:"role" validate:"required"`
	LaboratoryName string         `json:"laboratory_name,omitempty" validate:"omitempty,max=200"`
}

// AdminRegisterRequest contains the credentials for the dev-only admin registration flow.
type AdminRegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse contains the token pair and the authenticated user.
type TokenResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}
