package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Handlers react to decoded events. Nil handlers are not subscribed.
type Handlers struct {
	SignIn     func(ctx context.Context, event SessionEvent) error
	Logout     func(ctx context.Context, event SessionEvent) error
	Submission func(ctx context.Context, event SubmissionEvent) error
}

// Listener consumes questproof topics from a Watermill subscriber
type Listener struct {
	subscriber message.Subscriber
	handlers   Handlers
	logger     logrus.FieldLogger
	wg         sync.WaitGroup
}

// NewListener creates a listener for handlers
func NewListener(subscriber message.Subscriber, handlers Handlers, logger logrus.FieldLogger) *Listener {
	return &Listener{
		subscriber: subscriber,
		handlers:   handlers,
		logger:     logger.WithField("component", "event_listener"),
	}
}

// Start subscribes to every topic with a handler and consumes in the
// background until ctx is done
func (l *Listener) Start(ctx context.Context) error {
	if h := l.handlers.SignIn; h != nil {
		if err := l.consume(ctx, TopicSignIn, decodeSession(h)); err != nil {
			return err
		}
	}
	if h := l.handlers.Logout; h != nil {
		if err := l.consume(ctx, TopicLogout, decodeSession(h)); err != nil {
			return err
		}
	}
	if h := l.handlers.Submission; h != nil {
		if err := l.consume(ctx, TopicSubmission, decodeSubmission(h)); err != nil {
			return err
		}
	}
	return nil
}

// Wait blocks until every subscription has closed
func (l *Listener) Wait() {
	l.wg.Wait()
}

type decodeFunc func(ctx context.Context, payload []byte) (handled bool, err error)

func decodeSession(h func(context.Context, SessionEvent) error) decodeFunc {
	return func(ctx context.Context, payload []byte) (bool, error) {
		var event SessionEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return false, err
		}
		return true, h(ctx, event)
	}
}

func decodeSubmission(h func(context.Context, SubmissionEvent) error) decodeFunc {
	return func(ctx context.Context, payload []byte) (bool, error) {
		var event SubmissionEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return false, err
		}
		return true, h(ctx, event)
	}
}

func (l *Listener) consume(ctx context.Context, topic string, handle decodeFunc) error {
	messages, err := l.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return errors.Wrapf(err, "failed to subscribe to %s", topic)
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for msg := range messages {
			logger := l.logger.WithFields(logrus.Fields{"topic": topic, "message_uuid": msg.UUID})

			handled, err := handle(msg.Context(), msg.Payload)
			switch {
			case !handled:
				// Undecodable payloads would be redelivered forever
				logger.WithError(err).Warn("Dropping malformed event")
				msg.Ack()
			case err != nil:
				logger.WithError(err).Warn("Event handler failed")
				msg.Nack()
			default:
				msg.Ack()
			}
		}
	}()
	return nil
}

// AuditLog returns handlers that write every event to logger
func AuditLog(logger logrus.FieldLogger) Handlers {
	logger = logger.WithField("component", "audit")
	session := func(action string) func(context.Context, SessionEvent) error {
		return func(_ context.Context, e SessionEvent) error {
			logger.WithFields(logrus.Fields{
				"session_id":  e.SessionID,
				"wallet":      e.Wallet,
				"platform_id": e.PlatformID,
				"agent_id":    e.AgentID,
			}).Info(action)
			return nil
		}
	}

	return Handlers{
		SignIn: session("Signed in"),
		Logout: session("Logged out"),
		Submission: func(_ context.Context, e SubmissionEvent) error {
			logger.WithFields(logrus.Fields{
				"submission_id": e.SubmissionID,
				"quest_id":      e.QuestID,
				"wallet":        e.Wallet,
				"score":         e.Score,
				"proof_hash":    e.ProofHash,
				"ledger_status": e.LedgerStatus,
				"reward_status": e.RewardStatus,
			}).Info("Submission recorded")
			return nil
		},
	}
}
