package catalog

import "github.com/layer-3/questproof/core"

// DefaultQuests ship with the server
var DefaultQuests = []core.Quest{
	{
		ID:              "proof-of-attempt",
		Title:           "Proof of attempt",
		Prompt:          "Explain why anchoring a hash of your answer on a ledger proves you attempted this quest, without revealing the answer itself.",
		Keywords:        []string{"hash", "ledger", "timestamp", "tamper", "privacy"},
		MinAnswerLength: 160,
		MaxAnswerLength: 2000,
		PreviewLimit:    120,
	},
	{
		ID:              "wallet-signatures",
		Title:           "Wallet signatures",
		Prompt:          "Describe how signing a server-issued challenge lets a site confirm you control a wallet.",
		Keywords:        []string{"private key", "public key", "nonce", "signature", "replay"},
		MinAnswerLength: 80,
		MaxAnswerLength: 1500,
		PreviewLimit:    120,
	},
	{
		ID:              "agent-identity",
		Title:           "Agent identity",
		Prompt:          "Why should one agent id map to exactly one wallet?",
		Keywords:        []string{"unique", "impersonation", "binding", "accountability"},
		MinAnswerLength: 40,
		MaxAnswerLength: 1000,
		PreviewLimit:    100,
	},
}
