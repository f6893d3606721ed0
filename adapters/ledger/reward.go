package ledger

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/questproof/core"
	"github.com/layer-3/questproof/ports"
)

const weiDecimals = 18

// RewardConfig tunes reward distribution
type RewardConfig struct {
	// Amount is the reward in whole native units, e.g. "0.001"
	Amount        string
	MinScore      int
	ExplorerTxURL string
	SendTimeout   time.Duration
}

// RewardClient pays a fixed native-token reward to high scorers
type RewardClient struct {
	sender        *Sender
	amount        decimal.Decimal
	minScore      int
	explorerTxURL string
	sendTimeout   time.Duration
	logger        logrus.FieldLogger
}

// NewRewardClient creates a reward client sending through sender
func NewRewardClient(sender *Sender, cfg RewardConfig, logger logrus.FieldLogger) (ports.RewardClient, error) {
	amount := decimal.Zero
	if cfg.Amount != "" {
		var err error
		amount, err = decimal.NewFromString(cfg.Amount)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid reward amount %q", cfg.Amount)
		}
		if amount.IsNegative() {
			return nil, errors.Errorf("reward amount %s is negative", cfg.Amount)
		}
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	return &RewardClient{
		sender:        sender,
		amount:        amount,
		minScore:      cfg.MinScore,
		explorerTxURL: cfg.ExplorerTxURL,
		sendTimeout:   cfg.SendTimeout,
		logger:        logger.WithField("component", "reward"),
	}, nil
}

// Distribute never returns an error; failures come back as a failed receipt
func (r *RewardClient) Distribute(ctx context.Context, wallet string, score int) core.RewardReceipt {
	if r.amount.IsZero() {
		return core.RewardReceipt{Status: core.RewardSkipped, Reason: "no reward amount configured"}
	}
	if score < r.minScore {
		return core.RewardReceipt{Status: core.RewardSkipped, Reason: "score below reward threshold"}
	}
	if !common.IsHexAddress(wallet) {
		return core.RewardReceipt{Status: core.RewardFailed, Reason: "wallet is not a valid address"}
	}

	ctx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()

	wei := r.amount.Shift(weiDecimals).BigInt()
	hash, err := r.sender.Send(ctx, common.HexToAddress(wallet), wei, nil)
	if err != nil {
		r.logger.WithError(err).WithField("wallet", wallet).Warn("Failed to send reward")
		return core.RewardReceipt{Status: core.RewardFailed, Amount: r.amount.String(), Reason: err.Error()}
	}

	return core.RewardReceipt{
		Status:      core.RewardMinted,
		Amount:      r.amount.String(),
		Signature:   hash.Hex(),
		ExplorerURL: explorerURL(r.explorerTxURL, hash.Hex()),
	}
}
