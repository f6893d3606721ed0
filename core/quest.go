package core

import "time"

// Quest describes a short text quest and the rules used to grade it
type Quest struct {
	ID              string   `json:"id" yaml:"id"`
	Title           string   `json:"title" yaml:"title"`
	Prompt          string   `json:"prompt" yaml:"prompt"`
	Keywords        []string `json:"keywords,omitempty" yaml:"keywords"`
	MinAnswerLength int      `json:"minAnswerLength" yaml:"minAnswerLength"`
	MaxAnswerLength int      `json:"maxAnswerLength" yaml:"maxAnswerLength"`
	PreviewLimit    int      `json:"previewLimit" yaml:"previewLimit"`
}

// Evaluation is the grade produced for an answer
type Evaluation struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
	UsedLLM   bool   `json:"usedLLM"`
}

// ProofPayload is the canonical record hashed into the proof hash.
// Field order is part of the hash; do not reorder.
type ProofPayload struct {
	QuestID       string `json:"questId"`
	Wallet        string `json:"wallet"`
	PlatformID    string `json:"platformId"`
	AgentID       string `json:"agentId"`
	DisplayName   string `json:"displayName"`
	Score         int    `json:"score"`
	Timestamp     string `json:"timestamp"`
	AnswerPreview string `json:"answerPreview"`
}

// LedgerStatus tags the outcome of a memo anchoring attempt
type LedgerStatus string

const (
	LedgerSubmitted LedgerStatus = "submitted"
	LedgerSkipped   LedgerStatus = "skipped"
	LedgerFailed    LedgerStatus = "failed"
)

// LedgerResult is returned as data, never as an error
type LedgerResult struct {
	Status      LedgerStatus `json:"status"`
	Signature   string       `json:"signature,omitempty"`
	ExplorerURL string       `json:"explorerUrl,omitempty"`
	Verified    bool         `json:"verified"`
	Reason      string       `json:"reason,omitempty"`
}

// RewardStatus tags the outcome of a reward distribution
type RewardStatus string

const (
	RewardMinted  RewardStatus = "minted"
	RewardSkipped RewardStatus = "skipped"
	RewardFailed  RewardStatus = "failed"
)

// RewardReceipt is returned as data, never as an error
type RewardReceipt struct {
	Status      RewardStatus `json:"status"`
	Amount      string       `json:"amount,omitempty"`
	Signature   string       `json:"signature,omitempty"`
	ExplorerURL string       `json:"explorerUrl,omitempty"`
	Reason      string       `json:"reason,omitempty"`
}

// SubmissionResult is the full outcome of a graded submission
type SubmissionResult struct {
	ID          string        `json:"id"`
	QuestID     string        `json:"questId"`
	QuestTitle  string        `json:"questTitle"`
	Wallet      string        `json:"wallet"`
	PlatformID  string        `json:"platformId"`
	AgentID     string        `json:"agentId"`
	DisplayName string        `json:"displayName"`
	Evaluation  Evaluation    `json:"evaluation"`
	Payload     ProofPayload  `json:"payload"`
	ProofHash   string        `json:"proofHash"`
	Memo        string        `json:"memo"`
	Ledger      LedgerResult  `json:"ledger"`
	Reward      RewardReceipt `json:"reward"`
	SubmittedAt time.Time     `json:"submittedAt"`
}
