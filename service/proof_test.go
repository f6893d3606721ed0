package service

import (
	"regexp"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/questproof/core"
)

func TestAnswerPreview(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		limit  int
		want   string
	}{
		{"short", "hello world", 20, "hello world"},
		{"collapses whitespace", "  hello \n\t world  ", 20, "hello world"},
		{"exact fit", "abcde", 5, "abcde"},
		{"truncates with ellipsis", "abcdefgh", 5, "abcd…"},
		{"drops trailing space before ellipsis", "abc defgh", 5, "abc…"},
		{"counts runes", "ééééééé", 4, "ééé…"},
		{"default limit", strings.Repeat("a", 200), 0, strings.Repeat("a", 139) + "…"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := AnswerPreview(tc.answer, tc.limit)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHashProof(t *testing.T) {
	quest := &core.Quest{ID: "q1", PreviewLimit: 50}
	session := &core.Session{Wallet: "0xabc", PlatformID: "discord_a", AgentID: "agent_a"}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	payload := BuildProofPayload(quest, session, "Alice", 80, at, "my   answer")
	assert.Equal(t, "2024-05-01T12:00:00Z", payload.Timestamp)
	assert.Equal(t, "my answer", payload.AnswerPreview)

	hash, err := HashProof(payload)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^0x[0-9a-f]{64}$`), hash)

	again, err := HashProof(BuildProofPayload(quest, session, "Alice", 80, at, "my   answer"))
	require.NoError(t, err)
	assert.Equal(t, hash, again, "identical payloads hash identically")

	changes := map[string]func(p *core.ProofPayload){
		"quest":        func(p *core.ProofPayload) { p.QuestID = "q2" },
		"wallet":       func(p *core.ProofPayload) { p.Wallet = "0xdef" },
		"platform":     func(p *core.ProofPayload) { p.PlatformID = "discord_b" },
		"agent":        func(p *core.ProofPayload) { p.AgentID = "agent_b" },
		"display name": func(p *core.ProofPayload) { p.DisplayName = "Bob" },
		"score":        func(p *core.ProofPayload) { p.Score = 81 },
		"timestamp":    func(p *core.ProofPayload) { p.Timestamp = "2024-05-01T12:00:01Z" },
		"preview":      func(p *core.ProofPayload) { p.AnswerPreview = "other" },
	}
	for name, change := range changes {
		t.Run(name, func(t *testing.T) {
			modified := payload
			change(&modified)
			other, err := HashProof(modified)
			require.NoError(t, err)
			assert.NotEqual(t, hash, other)
		})
	}

	assert.Equal(t, "questproof:"+hash, MemoText("questproof", hash))
	assert.True(t, utf8.ValidString(payload.AnswerPreview))
}
