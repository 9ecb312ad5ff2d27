package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the only supported JWT claims shape for this service.
// Tokens are minted by the upstream identity service; this service only verifies them.
type Claims struct {
	jwt.RegisteredClaims

	UserID string `json:"user_id"`
	Role   string `json:"role"`
}
