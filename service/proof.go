package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/layer-3/questproof/core"
)

const defaultPreviewLimit = 140

// BuildProofPayload assembles the canonical payload of a graded submission
func BuildProofPayload(quest *core.Quest, session *core.Session, displayName string, score int, at time.Time, answer string) core.ProofPayload {
	return core.ProofPayload{
		QuestID:       quest.ID,
		Wallet:        session.Wallet,
		PlatformID:    session.PlatformID,
		AgentID:       session.AgentID,
		DisplayName:   displayName,
		Score:         score,
		Timestamp:     at.UTC().Format(time.RFC3339),
		AnswerPreview: AnswerPreview(answer, quest.PreviewLimit),
	}
}

// AnswerPreview collapses whitespace and truncates to at most limit runes
func AnswerPreview(answer string, limit int) string {
	if limit <= 0 {
		limit = defaultPreviewLimit
	}
	collapsed := strings.Join(strings.Fields(answer), " ")
	runes := []rune(collapsed)
	if len(runes) <= limit {
		return collapsed
	}
	return strings.TrimRight(string(runes[:limit-1]), " ") + "…"
}

// HashProof returns the keccak256 hash of the payload's canonical JSON encoding
func HashProof(payload core.ProofPayload) (string, error) {
	canonical, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode proof payload: %w", err)
	}
	return crypto.Keccak256Hash(canonical).Hex(), nil
}

// MemoText is the memo anchored on the ledger for a proof hash
func MemoText(prefix, proofHash string) string {
	return prefix + ":" + proofHash
}
