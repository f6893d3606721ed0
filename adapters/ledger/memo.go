package ledger

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/layer-3/questproof/core"
	"github.com/layer-3/questproof/ports"
)

// MemoClient anchors memo text as calldata of a zero-value self transfer
type MemoClient struct {
	sender         *Sender
	explorerTxURL  string
	sendTimeout    time.Duration
	confirmTimeout time.Duration
	logger         logrus.FieldLogger
}

// MemoConfig tunes memo anchoring
type MemoConfig struct {
	// ExplorerTxURL is a format string with one %s for the tx hash
	ExplorerTxURL  string
	SendTimeout    time.Duration
	ConfirmTimeout time.Duration
}

// NewMemoClient creates a memo client sending through sender
func NewMemoClient(sender *Sender, cfg MemoConfig, logger logrus.FieldLogger) ports.LedgerClient {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	return &MemoClient{
		sender:         sender,
		explorerTxURL:  cfg.ExplorerTxURL,
		sendTimeout:    cfg.SendTimeout,
		confirmTimeout: cfg.ConfirmTimeout,
		logger:         logger.WithField("component", "memo"),
	}
}

// SubmitMemo never returns an error; failures come back as a failed result
func (m *MemoClient) SubmitMemo(ctx context.Context, memo string) core.LedgerResult {
	sendCtx, cancel := context.WithTimeout(ctx, m.sendTimeout)
	defer cancel()

	self := m.sender.Address()
	hash, err := m.sender.Send(sendCtx, self, big.NewInt(0), []byte(memo))
	if err != nil {
		m.logger.WithError(err).Warn("Failed to anchor memo")
		return core.LedgerResult{Status: core.LedgerFailed, Reason: err.Error()}
	}

	result := core.LedgerResult{
		Status:      core.LedgerSubmitted,
		Signature:   hash.Hex(),
		ExplorerURL: explorerURL(m.explorerTxURL, hash.Hex()),
	}

	if m.confirmTimeout > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, m.confirmTimeout)
		defer cancel()

		ok, err := m.sender.WaitMined(waitCtx, hash)
		if err != nil {
			m.logger.WithError(err).WithField("tx", hash.Hex()).Debug("Memo not confirmed in time")
		}
		result.Verified = ok
	}
	return result
}

func explorerURL(format, hash string) string {
	if format == "" {
		return ""
	}
	return fmt.Sprintf(format, hash)
}
