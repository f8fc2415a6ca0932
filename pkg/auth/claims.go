package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
)

// AccessTokenClaims is the typed JWT the identity service issues. This
// backend only consumes it; token minting here exists for tests and tooling.
type AccessTokenClaims struct {
	UserID uuid.UUID  `json:"user_id"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}
