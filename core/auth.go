package core

import "time"

// Identity binds a wallet to a platform id and an agent id
type Identity struct {
	Wallet             string    `json:"wallet"`
	PlatformID         string    `json:"platformId"`
	AgentID            string    `json:"agentId"`
	Alias              string    `json:"alias,omitempty"`
	RegisteredAt       time.Time `json:"registeredAt"`
	LastVerifiedAt     time.Time `json:"lastVerifiedAt"`
	TotalVerifications int       `json:"totalVerifications"`
}

// Challenge represents a pending sign-in challenge for a wallet
type Challenge struct {
	ID         string    // Unique identifier for the challenge
	Wallet     string    // Wallet address as supplied by the client
	PlatformID string    // Platform id the wallet wants to link
	AgentID    string    // Agent id the wallet wants to link
	Alias      string    // Alias requested with this challenge, may be empty
	Nonce      string    // Random nonce embedded in the message
	Message    string    // Exact text the wallet must sign
	IssuedAt   time.Time // When the challenge was created
	ExpiresAt  time.Time // When the challenge expires
}

// Expired reports whether the challenge has lapsed at t
func (c *Challenge) Expired(t time.Time) bool {
	return !t.Before(c.ExpiresAt)
}

// Session represents an authenticated wallet session
type Session struct {
	ID         string    `json:"id"`
	Token      string    `json:"token"`
	Wallet     string    `json:"wallet"`
	PlatformID string    `json:"platformId"`
	AgentID    string    `json:"agentId"`
	Alias      string    `json:"alias,omitempty"`
	IssuedAt   time.Time `json:"issuedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Expired reports whether the session has lapsed at t
func (s *Session) Expired(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}
