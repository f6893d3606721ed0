package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/questproof/core"
	"github.com/layer-3/questproof/ports"
)

const (
	// DefaultCooldown is the minimum gap between two submissions of one quest by one wallet
	DefaultCooldown = 60 * time.Second

	// DefaultMemoPrefix prefixes every anchored proof hash
	DefaultMemoPrefix = "questproof"
)

// SubmitRequest carries a quest answer from a signed-in wallet
type SubmitRequest struct {
	QuestID      string `json:"questId" validate:"required"`
	SessionToken string `json:"sessionToken" validate:"required,min=16"`
	DisplayName  string `json:"displayName" validate:"omitempty,min=2,max=40"`
	Answer       string `json:"answer" validate:"required,min=10,max=4000"`
}

// SubmissionConfig tunes the orchestrator
type SubmissionConfig struct {
	Cooldown   time.Duration
	MemoPrefix string
	Now        func() time.Time
}

// SubmissionDeps are the collaborators of the orchestrator.
// Ledger, Rewards and Events may be nil.
type SubmissionDeps struct {
	Sessions  *SessionManager
	Catalog   ports.QuestCatalog
	Limiter   ports.RateLimiter
	Evaluator ports.Evaluator
	Ledger    ports.LedgerClient
	Rewards   ports.RewardClient
	History   *History
	Events    ports.EventPublisher
	Logger    logrus.FieldLogger
}

// SubmissionService grades answers and records proofs of attempt
type SubmissionService struct {
	deps     SubmissionDeps
	validate *validator.Validate
	logger   logrus.FieldLogger

	cooldown   time.Duration
	memoPrefix string
	now        func() time.Time
}

// NewSubmissionService creates the orchestrator
func NewSubmissionService(cfg SubmissionConfig, deps SubmissionDeps) *SubmissionService {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.MemoPrefix == "" {
		cfg.MemoPrefix = DefaultMemoPrefix
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return &SubmissionService{
		deps:       deps,
		validate:   v,
		logger:     deps.Logger.WithField("component", "submissions"),
		cooldown:   cfg.Cooldown,
		memoPrefix: cfg.MemoPrefix,
		now:        cfg.Now,
	}
}

// Submit grades an answer. Only input, session, quest, length and rate-limit
// problems fail the call; ledger and reward outcomes are reported in the result.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest) (*core.SubmissionResult, error) {
	req.QuestID = strings.TrimSpace(req.QuestID)
	req.SessionToken = strings.TrimSpace(req.SessionToken)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.Answer = strings.TrimSpace(req.Answer)

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	session, err := s.deps.Sessions.Assert(ctx, req.SessionToken)
	if err != nil {
		return nil, err
	}

	quest, ok := s.deps.Catalog.Get(req.QuestID)
	if !ok {
		return nil, core.Errorf(core.ErrNotFound, "quest %s not found", req.QuestID)
	}

	length := utf8.RuneCountInString(req.Answer)
	if quest.MinAnswerLength > 0 && length < quest.MinAnswerLength {
		return nil, core.Errorf(core.ErrAnswerLength, "answer must be at least %d characters for this quest", quest.MinAnswerLength)
	}
	if quest.MaxAnswerLength > 0 && length > quest.MaxAnswerLength {
		return nil, core.Errorf(core.ErrAnswerLength, "answer must be at most %d characters for this quest", quest.MaxAnswerLength)
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = session.Alias
	}
	if displayName == "" {
		displayName = session.Wallet
	}

	if err := s.checkRateLimit(ctx, quest.ID, session.Wallet); err != nil {
		return nil, err
	}

	evaluation := s.deps.Evaluator.Evaluate(ctx, quest, req.Answer)

	submittedAt := s.now().UTC()
	payload := BuildProofPayload(quest, session, displayName, evaluation.Score, submittedAt, req.Answer)
	proofHash, err := HashProof(payload)
	if err != nil {
		return nil, err
	}
	memo := MemoText(s.memoPrefix, proofHash)

	result := core.SubmissionResult{
		ID:          uuid.New().String(),
		QuestID:     quest.ID,
		QuestTitle:  quest.Title,
		Wallet:      session.Wallet,
		PlatformID:  session.PlatformID,
		AgentID:     session.AgentID,
		DisplayName: displayName,
		Evaluation:  evaluation,
		Payload:     payload,
		ProofHash:   proofHash,
		Memo:        memo,
		Ledger:      s.anchor(ctx, memo),
		Reward:      s.reward(ctx, session.Wallet, evaluation.Score),
		SubmittedAt: submittedAt,
	}

	s.deps.History.Append(ctx, result)

	s.logger.WithFields(logrus.Fields{
		"quest_id":      quest.ID,
		"wallet":        session.Wallet,
		"score":         evaluation.Score,
		"used_llm":      evaluation.UsedLLM,
		"proof_hash":    proofHash,
		"ledger_status": result.Ledger.Status,
		"reward_status": result.Reward.Status,
	}).Info("Recorded submission")

	if s.deps.Events != nil {
		if err := s.deps.Events.PublishSubmission(ctx, &result); err != nil {
			s.logger.WithError(err).Warn("Failed to publish submission event")
		}
	}

	return &result, nil
}

// Recent returns the wallet's latest submissions
func (s *SubmissionService) Recent(wallet string) []core.SubmissionResult {
	return s.deps.History.Recent(wallet)
}

// Quests lists the catalog
func (s *SubmissionService) Quests() []*core.Quest {
	return s.deps.Catalog.List()
}

func (s *SubmissionService) validateRequest(req SubmitRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return core.Errorf(core.ErrValidation, "%s", err.Error())
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fieldMessage(fe))
	}
	return core.Errorf(core.ErrValidation, "%s", strings.Join(messages, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// checkRateLimit records the attempt in the same call that checks it.
// A limiter outage lets the submission through.
func (s *SubmissionService) checkRateLimit(ctx context.Context, questID, wallet string) error {
	key := strings.ToLower(questID + ":" + wallet)
	retryAfter, ok, err := s.deps.Limiter.Allow(ctx, key, s.cooldown)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Error("Rate limiter unavailable, allowing submission")
		return nil
	}
	if !ok {
		return &core.RateLimitError{RetryAfter: retryAfter}
	}
	return nil
}

func (s *SubmissionService) anchor(ctx context.Context, memo string) core.LedgerResult {
	if s.deps.Ledger == nil {
		return core.LedgerResult{Status: core.LedgerSkipped, Reason: "ledger anchoring is disabled"}
	}
	result := s.deps.Ledger.SubmitMemo(ctx, memo)
	if result.Status == core.LedgerFailed {
		s.logger.WithField("reason", result.Reason).Warn("Memo anchoring failed")
	}
	return result
}

func (s *SubmissionService) reward(ctx context.Context, wallet string, score int) core.RewardReceipt {
	if s.deps.Rewards == nil {
		return core.RewardReceipt{Status: core.RewardSkipped, Reason: "rewards are disabled"}
	}
	receipt := s.deps.Rewards.Distribute(ctx, wallet, score)
	if receipt.Status == core.RewardFailed {
		s.logger.WithField("reason", receipt.Reason).Warn("Reward distribution failed")
	}
	return receipt
}
