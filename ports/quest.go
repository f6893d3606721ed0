package ports

import (
	"context"

	"github.com/layer-3/questproof/core"
)

// QuestCatalog resolves quests by id
type QuestCatalog interface {
	Get(questID string) (*core.Quest, bool)
	List() []*core.Quest
}

// Evaluator grades an answer. It never fails; implementations fall back to a heuristic.
type Evaluator interface {
	Evaluate(ctx context.Context, quest *core.Quest, answer string) core.Evaluation
}

// LedgerClient anchors memo text on a ledger
type LedgerClient interface {
	SubmitMemo(ctx context.Context, memo string) core.LedgerResult
}

// RewardClient distributes score-gated rewards
type RewardClient interface {
	Distribute(ctx context.Context, wallet string, score int) core.RewardReceipt
}
