package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims combines standard claims with the linked identity
type SessionClaims struct {
	jwt.RegisteredClaims
	PlatformID string `json:"pid"`
	AgentID    string `json:"aid"`
}
