package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	Operator string
	Name     string
}

// AccessTokenClaims carries the opaque operator identity. The service only
// records it in audit columns.
type AccessTokenClaims struct {
	Operator string `json:"operator"`
	Name     string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the operator, falling back to the subject claim.
func (c *AccessTokenClaims) Identity() string {
	if c == nil {
		return ""
	}
	if op := strings.TrimSpace(c.Operator); op != "" {
		return op
	}
	return strings.TrimSpace(c.Subject)
}
