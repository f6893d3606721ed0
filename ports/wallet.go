package ports

// WalletVerifier knows the wallet address scheme
type WalletVerifier interface {
	ValidAddress(wallet string) bool
	// VerifyMessage checks that signature was produced by wallet over message
	VerifyMessage(wallet, message, signature string) error
}
