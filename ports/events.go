package ports

import (
	"context"

	"github.com/layer-3/questproof/core"
)

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishSignIn(ctx context.Context, session *core.Session) error
	PublishLogout(ctx context.Context, session *core.Session) error
	PublishSubmission(ctx context.Context, result *core.SubmissionResult) error
}
