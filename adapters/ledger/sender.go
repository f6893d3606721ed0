package ledger

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// ChainClient is the subset of ethclient.Client used to send transactions
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Sender signs and submits transactions from one funded account.
// Sends are serialized so pending nonces never collide.
type Sender struct {
	client ChainClient
	key    *ecdsa.PrivateKey
	from   common.Address

	mu      sync.Mutex
	chainID *big.Int

	pollInterval time.Duration
}

// NewSender creates a sender for the hex private key
func NewSender(client ChainClient, keyHex string) (*Sender, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(keyHex), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid ledger private key")
	}
	return &Sender{
		client:       client,
		key:          key,
		from:         crypto.PubkeyToAddress(key.PublicKey),
		pollInterval: 2 * time.Second,
	}, nil
}

// Address is the account transactions are sent from
func (s *Sender) Address() common.Address {
	return s.from
}

// Send submits a legacy transaction carrying value and data
func (s *Sender) Send(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chainID == nil {
		chainID, err := s.client.ChainID(ctx)
		if err != nil {
			return common.Hash{}, errors.Wrap(err, "failed to read chain id")
		}
		s.chainID = chainID
	}

	nonce, err := s.client.PendingNonceAt(ctx, s.from)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to read nonce")
	}
	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to suggest gas price")
	}
	gas, err := s.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  s.from,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to estimate gas")
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to sign transaction")
	}

	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to send transaction")
	}
	return signed.Hash(), nil
}

// WaitMined polls for the receipt until ctx ends.
// It reports whether the transaction executed successfully.
func (s *Sender) WaitMined(ctx context.Context, hash common.Hash) (bool, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.client.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt.Status == types.ReceiptStatusSuccessful, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return false, errors.Wrap(err, "failed to read receipt")
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}
