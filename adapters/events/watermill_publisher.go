package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/layer-3/questproof/core"
	"github.com/layer-3/questproof/ports"
)

const (
	TopicSignIn     = "questproof.signin"
	TopicLogout     = "questproof.logout"
	TopicSubmission = "questproof.submission"
)

// SessionEvent is published on sign-in and logout
type SessionEvent struct {
	SessionID  string    `json:"session_id"`
	Wallet     string    `json:"wallet"`
	PlatformID string    `json:"platform_id"`
	AgentID    string    `json:"agent_id"`
	At         time.Time `json:"at"`
}

// SubmissionEvent is published once a submission is recorded
type SubmissionEvent struct {
	SubmissionID string    `json:"submission_id"`
	QuestID      string    `json:"quest_id"`
	Wallet       string    `json:"wallet"`
	Score        int       `json:"score"`
	ProofHash    string    `json:"proof_hash"`
	LedgerStatus string    `json:"ledger_status"`
	RewardStatus string    `json:"reward_status"`
	At           time.Time `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	now       func() time.Time
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		now:       time.Now,
	}
}

// PublishSignIn publishes a sign-in event
func (p *WatermillPublisher) PublishSignIn(ctx context.Context, session *core.Session) error {
	return p.publish(ctx, TopicSignIn, p.sessionEvent(session))
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, session *core.Session) error {
	return p.publish(ctx, TopicLogout, p.sessionEvent(session))
}

// PublishSubmission publishes a recorded submission
func (p *WatermillPublisher) PublishSubmission(ctx context.Context, result *core.SubmissionResult) error {
	return p.publish(ctx, TopicSubmission, SubmissionEvent{
		SubmissionID: result.ID,
		QuestID:      result.QuestID,
		Wallet:       result.Wallet,
		Score:        result.Evaluation.Score,
		ProofHash:    result.ProofHash,
		LedgerStatus: string(result.Ledger.Status),
		RewardStatus: string(result.Reward.Status),
		At:           result.SubmittedAt,
	})
}

func (p *WatermillPublisher) sessionEvent(session *core.Session) SessionEvent {
	return SessionEvent{
		SessionID:  session.ID,
		Wallet:     session.Wallet,
		PlatformID: session.PlatformID,
		AgentID:    session.AgentID,
		At:         p.now().UTC(),
	}
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
