package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/questproof/core"
)

func newPubSub(t *testing.T) *gochannel.GoChannel {
	t.Helper()
	logger, _ := test.NewNullLogger()
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, NewLogrusAdapter(logger))
	t.Cleanup(func() { _ = pubSub.Close() })
	return pubSub
}

func receive(t *testing.T, messages <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-messages:
		msg.Ack()
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestPublishSessionEvents(t *testing.T) {
	ctx := context.Background()
	pubSub := newPubSub(t)
	pub := NewWatermillPublisher(pubSub)

	signIns, err := pubSub.Subscribe(ctx, TopicSignIn)
	require.NoError(t, err)
	logouts, err := pubSub.Subscribe(ctx, TopicLogout)
	require.NoError(t, err)

	session := &core.Session{ID: "s1", Wallet: "0xabc", PlatformID: "demo_001", AgentID: "agent_001"}
	require.NoError(t, pub.PublishSignIn(ctx, session))
	require.NoError(t, pub.PublishLogout(ctx, session))

	var event SessionEvent
	require.NoError(t, json.Unmarshal(receive(t, signIns).Payload, &event))
	assert.Equal(t, "s1", event.SessionID)
	assert.Equal(t, "demo_001", event.PlatformID)

	require.NoError(t, json.Unmarshal(receive(t, logouts).Payload, &event))
	assert.Equal(t, "0xabc", event.Wallet)
}

func TestPublishSubmission(t *testing.T) {
	ctx := context.Background()
	pubSub := newPubSub(t)
	pub := NewWatermillPublisher(pubSub)

	submissions, err := pubSub.Subscribe(ctx, TopicSubmission)
	require.NoError(t, err)

	result := &core.SubmissionResult{
		ID:         "sub-1",
		QuestID:    "q1",
		Wallet:     "0xabc",
		Evaluation: core.Evaluation{Score: 80},
		ProofHash:  "0xhash",
		Ledger:     core.LedgerResult{Status: core.LedgerSkipped},
		Reward:     core.RewardReceipt{Status: core.RewardMinted},
	}
	require.NoError(t, pub.PublishSubmission(ctx, result))

	var event SubmissionEvent
	require.NoError(t, json.Unmarshal(receive(t, submissions).Payload, &event))
	assert.Equal(t, "sub-1", event.SubmissionID)
	assert.Equal(t, 80, event.Score)
	assert.Equal(t, "skipped", event.LedgerStatus)
	assert.Equal(t, "minted", event.RewardStatus)
}
