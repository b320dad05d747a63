package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
)

// AccessTokenPayload is what the caller knows when minting. An empty JTI is
// generated; it also keys the refresh session.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.UserRole
	JTI    string
}

// AccessTokenClaims is the JWT body handed to clients.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Actor is the identity middleware extracts from verified claims.
func (c *AccessTokenClaims) Actor() (uuid.UUID, enums.UserRole, string) {
	return c.UserID, c.Role, c.ID
}
