package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/questproof/core"
	"github.com/layer-3/questproof/ports"
)

// DefaultSessionTTL is how long a session stays valid after sign-in
const DefaultSessionTTL = 24 * time.Hour

// SessionManager issues and resolves bearer sessions.
// Expired sessions are dropped lazily when they are read.
type SessionManager struct {
	store     ports.SessionStore
	tokenizer ports.Tokenizer
	ttl       time.Duration
	now       func() time.Time
	logger    logrus.FieldLogger
}

// NewSessionManager creates a session manager. Zero ttl uses DefaultSessionTTL.
func NewSessionManager(store ports.SessionStore, tokenizer ports.Tokenizer, ttl time.Duration, now func() time.Time, logger logrus.FieldLogger) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if now == nil {
		now = time.Now
	}
	return &SessionManager{
		store:     store,
		tokenizer: tokenizer,
		ttl:       ttl,
		now:       now,
		logger:    logger.WithField("component", "sessions"),
	}
}

// Create starts a session for the identity
func (m *SessionManager) Create(ctx context.Context, identity *core.Identity) (*core.Session, error) {
	now := m.now().UTC()
	session := &core.Session{
		ID:         uuid.New().String(),
		Wallet:     identity.Wallet,
		PlatformID: identity.PlatformID,
		AgentID:    identity.AgentID,
		Alias:      identity.Alias,
		IssuedAt:   now,
		ExpiresAt:  now.Add(m.ttl),
	}

	token, err := m.tokenizer.SessionToToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}
	session.Token = token

	if err := m.store.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return session, nil
}

// Get returns the live session for token, or nil when unknown or expired.
// The stored entry is consulted before the token so a lapsed session is
// removed even after its token has stopped parsing.
func (m *SessionManager) Get(ctx context.Context, token string) (*core.Session, error) {
	if token == "" {
		return nil, nil
	}

	session, err := m.store.GetSession(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	if session.Expired(m.now()) {
		m.drop(ctx, token, "Failed to drop expired session")
		return nil, nil
	}

	id, err := m.tokenizer.TokenToSessionID(token)
	if err != nil || id != session.ID {
		m.drop(ctx, token, "Failed to drop unusable session")
		return nil, nil
	}
	return session, nil
}

func (m *SessionManager) drop(ctx context.Context, token, msg string) {
	if err := m.store.DeleteSession(ctx, token); err != nil {
		m.logger.WithError(err).Warn(msg)
	}
}

// Assert is Get that fails with an invalid session error when nothing is found
func (m *SessionManager) Assert(ctx context.Context, token string) (*core.Session, error) {
	session, err := m.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, core.Errorf(core.ErrInvalidSession, "session is invalid or has expired, please sign in again")
	}
	return session, nil
}

// Invalidate removes the session. Unknown tokens are ignored.
func (m *SessionManager) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
