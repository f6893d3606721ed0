package tokenizer

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/layer-3/questproof/core"
	"github.com/layer-3/questproof/ports"
)

const AudienceSession = "questproof:session"

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs.
// The token is still opaque to clients; the server only trusts the store.
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	now     func() time.Time
}

// NewJWTTokenizer creates a new JWT tokenizer. A nil now uses time.Now.
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, now func() time.Time) ports.Tokenizer {
	if now == nil {
		now = time.Now
	}
	return &JWTTokenizer{signKey: signKey, now: now}
}

// SessionToToken converts a Session to a signed token
func (j *JWTTokenizer) SessionToToken(session *core.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Wallet,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
		PlatformID: session.PlatformID,
		AgentID:    session.AgentID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, nil
}

// TokenToSessionID parses a token and returns the session id it carries
func (j *JWTTokenizer) TokenToSessionID(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, jwt.WithAudience(AudienceSession), jwt.WithTimeFunc(j.now))

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", core.ErrInvalidSession)
	}

	if !token.Valid {
		return "", core.ErrInvalidSession
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.ID == "" {
		return "", core.ErrInvalidSession
	}

	return claims.ID, nil
}
