package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/questproof/core"
	"github.com/layer-3/questproof/ports"
	"github.com/layer-3/questproof/service"
)

type challengeResponse struct {
	Wallet     string    `json:"wallet"`
	PlatformID string    `json:"platformId"`
	AgentID    string    `json:"agentId"`
	Alias      string    `json:"alias,omitempty"`
	Nonce      string    `json:"nonce"`
	Message    string    `json:"message"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type sessionResponse struct {
	Token      string    `json:"token"`
	Wallet     string    `json:"wallet"`
	PlatformID string    `json:"platformId"`
	AgentID    string    `json:"agentId"`
	Alias      string    `json:"alias,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

func newSessionResponse(s *core.Session) sessionResponse {
	return sessionResponse{
		Token:      s.Token,
		Wallet:     s.Wallet,
		PlatformID: s.PlatformID,
		AgentID:    s.AgentID,
		Alias:      s.Alias,
		ExpiresAt:  s.ExpiresAt,
	}
}

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	metrics     *Metrics
	logger      logrus.FieldLogger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, metrics *Metrics, logger logrus.FieldLogger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		metrics:     metrics,
		logger:      logger,
	}
}

// Challenge issues a sign-in challenge
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req struct {
		Wallet     string `json:"wallet"`
		PlatformID string `json:"platformId"`
		AgentID    string `json:"agentId"`
		Alias      string `json:"alias"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	challenge, err := h.authService.RequestChallenge(c.Request.Context(), service.ChallengeRequest{
		Wallet:     req.Wallet,
		PlatformID: req.PlatformID,
		AgentID:    req.AgentID,
		Alias:      req.Alias,
	})
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	h.metrics.challengeIssued()

	c.JSON(http.StatusOK, challengeResponse{
		Wallet:     challenge.Wallet,
		PlatformID: challenge.PlatformID,
		AgentID:    challenge.AgentID,
		Alias:      challenge.Alias,
		Nonce:      challenge.Nonce,
		Message:    challenge.Message,
		ExpiresAt:  challenge.ExpiresAt,
	})
}

// Verify checks a signed challenge and starts a session
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		Wallet     string `json:"wallet"`
		PlatformID string `json:"platformId"`
		AgentID    string `json:"agentId"`
		Signature  string `json:"signature"`
		Nonce      string `json:"nonce"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	session, err := h.authService.VerifyChallenge(c.Request.Context(), service.VerifyRequest{
		Wallet:     req.Wallet,
		PlatformID: req.PlatformID,
		AgentID:    req.AgentID,
		Signature:  req.Signature,
		Nonce:      req.Nonce,
	})
	h.metrics.verification(err)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, newSessionResponse(session))
}

// Logout invalidates the session named in the body or the bearer header
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	// An empty or malformed body falls back to the Authorization header
	_ = c.ShouldBindJSON(&req)

	token := req.Token
	if token == "" {
		token = bearerToken(c)
	}

	if err := h.authService.Logout(c.Request.Context(), token); err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Session returns the session resolved by SessionMiddleware
func (h *AuthHandlers) Session(c *gin.Context) {
	session := c.MustGet(sessionKey).(*core.Session)
	c.JSON(http.StatusOK, newSessionResponse(session))
}

// IdentityHandlers serves the identity registry
type IdentityHandlers struct {
	registry *service.IdentityRegistry
	verifier ports.WalletVerifier
}

// NewIdentityHandlers creates identity handlers
func NewIdentityHandlers(registry *service.IdentityRegistry, verifier ports.WalletVerifier) *IdentityHandlers {
	return &IdentityHandlers{registry: registry, verifier: verifier}
}

// Get returns the identity bound to :wallet
func (h *IdentityHandlers) Get(c *gin.Context) {
	wallet := c.Param("wallet")
	if !h.verifier.ValidAddress(wallet) {
		badRequest(c, "wallet must be a 0x-prefixed 20 byte hex address")
		return
	}

	identity, ok := h.registry.Lookup(wallet)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "no identity is linked to this wallet"})
		return
	}
	c.JSON(http.StatusOK, identity)
}

// List returns every identity
func (h *IdentityHandlers) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"identities": h.registry.List()})
}

type questResponse struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Prompt          string `json:"prompt"`
	MinAnswerLength int    `json:"minAnswerLength"`
	MaxAnswerLength int    `json:"maxAnswerLength"`
}

// QuestHandlers serves quests, submissions and history
type QuestHandlers struct {
	submissions *service.SubmissionService
	verifier    ports.WalletVerifier
	metrics     *Metrics
	logger      logrus.FieldLogger
}

// NewQuestHandlers creates quest handlers
func NewQuestHandlers(submissions *service.SubmissionService, verifier ports.WalletVerifier, metrics *Metrics, logger logrus.FieldLogger) *QuestHandlers {
	return &QuestHandlers{
		submissions: submissions,
		verifier:    verifier,
		metrics:     metrics,
		logger:      logger,
	}
}

// Quests lists the catalog without the grading keywords
func (h *QuestHandlers) Quests(c *gin.Context) {
	quests := h.submissions.Quests()
	out := make([]questResponse, 0, len(quests))
	for _, q := range quests {
		out = append(out, questResponse{
			ID:              q.ID,
			Title:           q.Title,
			Prompt:          q.Prompt,
			MinAnswerLength: q.MinAnswerLength,
			MaxAnswerLength: q.MaxAnswerLength,
		})
	}
	c.JSON(http.StatusOK, gin.H{"quests": out})
}

// Submit grades an answer
func (h *QuestHandlers) Submit(c *gin.Context) {
	var req service.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.SessionToken == "" {
		req.SessionToken = bearerToken(c)
	}

	result, err := h.submissions.Submit(c.Request.Context(), req)
	h.metrics.submission(result, err)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// History returns the wallet's recent submissions
func (h *QuestHandlers) History(c *gin.Context) {
	wallet := c.Param("wallet")
	if !h.verifier.ValidAddress(wallet) {
		badRequest(c, "wallet must be a 0x-prefixed 20 byte hex address")
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": h.submissions.Recent(wallet)})
}
