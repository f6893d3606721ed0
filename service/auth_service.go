package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/questproof/core"
	"github.com/layer-3/questproof/ports"
)

// DefaultChallengeTTL is how long a challenge can be signed
const DefaultChallengeTTL = 5 * time.Minute

const nonceBytes = 32

// AuthConfig tunes the authenticator
type AuthConfig struct {
	ChallengeTTL time.Duration
	Now          func() time.Time
}

// ChallengeRequest asks for a sign-in challenge
type ChallengeRequest struct {
	Wallet     string
	PlatformID string
	AgentID    string
	Alias      string
}

// VerifyRequest answers a challenge with a signature
type VerifyRequest struct {
	Wallet     string
	PlatformID string
	AgentID    string
	Signature  string
	Nonce      string
}

// AuthService handles wallet challenge/response sign-in
type AuthService struct {
	registry   *IdentityRegistry
	challenges ports.ChallengeStore
	sessions   *SessionManager
	verifier   ports.WalletVerifier
	eventPub   ports.EventPublisher
	logger     logrus.FieldLogger

	challengeTTL time.Duration
	now          func() time.Time
}

// NewAuthService creates a new authentication service. eventPub may be nil.
func NewAuthService(
	cfg AuthConfig,
	registry *IdentityRegistry,
	challenges ports.ChallengeStore,
	sessions *SessionManager,
	verifier ports.WalletVerifier,
	eventPub ports.EventPublisher,
	logger logrus.FieldLogger,
) *AuthService {
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = DefaultChallengeTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AuthService{
		registry:     registry,
		challenges:   challenges,
		sessions:     sessions,
		verifier:     verifier,
		eventPub:     eventPub,
		logger:       logger.WithField("component", "auth"),
		challengeTTL: cfg.ChallengeTTL,
		now:          cfg.Now,
	}
}

// RequestChallenge issues a challenge for the wallet and identity pair.
// A newer challenge for the same wallet replaces the pending one.
func (s *AuthService) RequestChallenge(ctx context.Context, req ChallengeRequest) (*core.Challenge, error) {
	wallet := strings.TrimSpace(req.Wallet)
	platformID := strings.TrimSpace(req.PlatformID)
	agentID := strings.TrimSpace(req.AgentID)

	if err := validateBinding(s.verifier, wallet, platformID, agentID); err != nil {
		return nil, err
	}
	alias := SanitizeAlias(req.Alias)

	existing, err := s.registry.AssertLinkable(wallet, platformID, agentID)
	if err != nil {
		return nil, err
	}
	if alias == "" && existing != nil {
		alias = existing.Alias
	}

	nonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := s.now().UTC().Truncate(time.Second)
	challenge := &core.Challenge{
		ID:         uuid.New().String(),
		Wallet:     wallet,
		PlatformID: platformID,
		AgentID:    agentID,
		Alias:      alias,
		Nonce:      nonce,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.challengeTTL),
	}
	challenge.Message = RenderChallengeMessage(challenge)

	s.challenges.PutChallenge(walletKey(wallet), challenge)

	s.logger.WithFields(logrus.Fields{
		"wallet":       wallet,
		"platform_id":  platformID,
		"agent_id":     agentID,
		"challenge_id": challenge.ID,
	}).Debug("Issued challenge")

	return challenge, nil
}

// VerifyChallenge checks the signed challenge and starts a session
func (s *AuthService) VerifyChallenge(ctx context.Context, req VerifyRequest) (*core.Session, error) {
	wallet := strings.TrimSpace(req.Wallet)
	platformID := strings.TrimSpace(req.PlatformID)
	agentID := strings.TrimSpace(req.AgentID)
	key := walletKey(wallet)

	if err := validateBinding(s.verifier, wallet, platformID, agentID); err != nil {
		return nil, err
	}

	// The caller's own challenge is read before the sweep so a lapsed one
	// reports as expired rather than missing.
	now := s.now()
	challenge, ok := s.challenges.GetChallenge(key)
	s.challenges.SweepChallenges(now)
	if !ok {
		return nil, core.Errorf(core.ErrNotFound, "no pending challenge for this wallet, request a new one")
	}

	if challenge.Nonce != strings.TrimSpace(req.Nonce) {
		s.challenges.DeleteChallenge(key)
		return nil, core.Errorf(core.ErrMismatch, "nonce does not match the pending challenge")
	}

	if !strings.EqualFold(challenge.PlatformID, platformID) || !strings.EqualFold(challenge.AgentID, agentID) {
		s.challenges.DeleteChallenge(key)
		return nil, core.Errorf(core.ErrMismatch, "platform id or agent id does not match the pending challenge")
	}

	if challenge.Expired(now) {
		s.challenges.DeleteChallenge(key)
		return nil, core.Errorf(core.ErrExpired, "challenge has expired, request a new one")
	}

	if err := s.verifier.VerifyMessage(wallet, challenge.Message, req.Signature); err != nil {
		s.challenges.DeleteChallenge(key)
		s.logger.WithError(err).WithField("wallet", wallet).Info("Rejected challenge signature")
		return nil, core.Errorf(core.ErrInvalidSignature, "signature does not match the challenge message for this wallet")
	}

	// Only one verification may consume a given nonce
	if !s.challenges.ConsumeChallenge(key, challenge.Nonce) {
		return nil, core.Errorf(core.ErrNotFound, "no pending challenge for this wallet, request a new one")
	}

	identity, err := s.registry.Register(ctx, challenge.Wallet, challenge.PlatformID, challenge.AgentID, challenge.Alias)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Create(ctx, identity)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"wallet":        identity.Wallet,
		"platform_id":   identity.PlatformID,
		"agent_id":      identity.AgentID,
		"verifications": identity.TotalVerifications,
	}).Info("Wallet signed in")

	if s.eventPub != nil {
		if err := s.eventPub.PublishSignIn(ctx, session); err != nil {
			s.logger.WithError(err).Warn("Failed to publish sign-in event")
		}
	}

	return session, nil
}

// Session resolves a bearer token into its live session
func (s *AuthService) Session(ctx context.Context, token string) (*core.Session, error) {
	return s.sessions.Assert(ctx, token)
}

// Logout invalidates the session behind token. Unknown tokens succeed.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to resolve session on logout")
	}

	if err := s.sessions.Invalidate(ctx, token); err != nil {
		return err
	}

	if session != nil && s.eventPub != nil {
		if err := s.eventPub.PublishLogout(ctx, session); err != nil {
			// The session is already gone, which is the critical part
			s.logger.WithError(err).Warn("Failed to publish logout event")
		}
	}
	return nil
}

// SweepExpired drops every lapsed challenge
func (s *AuthService) SweepExpired() int {
	return s.challenges.SweepChallenges(s.now())
}

// RunSweeper sweeps expired challenges every interval until ctx is done
func (s *AuthService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.SweepExpired(); n > 0 {
				s.logger.WithField("count", n).Debug("Swept expired challenges")
			}
		}
	}
}

func generateNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
