package wallet

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/layer-3/questproof/core"
	"github.com/layer-3/questproof/ports"
)

const signatureLength = 65

// EthVerifier verifies EIP-191 personal_sign signatures for EVM addresses
type EthVerifier struct{}

// NewEthVerifier creates a new verifier
func NewEthVerifier() ports.WalletVerifier {
	return EthVerifier{}
}

// ValidAddress requires a 0x-prefixed 20 byte hex address
func (EthVerifier) ValidAddress(wallet string) bool {
	if !strings.HasPrefix(wallet, "0x") && !strings.HasPrefix(wallet, "0X") {
		return false
	}
	return common.IsHexAddress(wallet)
}

// VerifyMessage recovers the signer of message and compares it with wallet
func (v EthVerifier) VerifyMessage(wallet, message, signature string) error {
	if !v.ValidAddress(wallet) {
		return errors.Wrap(core.ErrInvalidSignature, "malformed wallet address")
	}
	sig, err := hexutil.Decode(strings.TrimSpace(signature))
	if err != nil {
		return errors.Wrap(core.ErrInvalidSignature, "failed to decode signature")
	}
	if len(sig) != signatureLength {
		return errors.Wrapf(core.ErrInvalidSignature, "signature must be %d bytes", signatureLength)
	}

	// Wallets emit v as 27/28, crypto.SigToPub expects 0/1
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return errors.Wrap(core.ErrInvalidSignature, "invalid recovery id")
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return errors.Wrap(core.ErrInvalidSignature, err.Error())
	}
	if crypto.PubkeyToAddress(*pub) != common.HexToAddress(wallet) {
		return core.ErrInvalidSignature
	}
	return nil
}

// SignMessage produces a personal_sign signature over message.
// Used by the CLI and by tests to play the wallet's role.
func SignMessage(keyHex, message string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return "", errors.Wrap(err, "failed to parse private key")
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign message")
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}
