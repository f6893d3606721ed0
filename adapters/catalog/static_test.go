package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/questproof/core"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	require.Len(t, c.List(), len(DefaultQuests))

	q, ok := c.Get("Proof-Of-Attempt")
	require.True(t, ok)
	assert.Equal(t, 160, q.MinAnswerLength)

	q.MinAnswerLength = 1
	again, _ := c.Get("proof-of-attempt")
	assert.Equal(t, 160, again.MinAnswerLength, "callers get copies")

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestNewStaticRejectsBadQuests(t *testing.T) {
	_, err := NewStatic([]core.Quest{{ID: "a"}, {ID: "A"}})
	assert.Error(t, err)

	_, err = NewStatic([]core.Quest{{ID: " "}})
	assert.Error(t, err)

	_, err = NewStatic([]core.Quest{{ID: "a", MinAnswerLength: 10, MaxAnswerLength: 5}})
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quests.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
quests:
  - id: haiku
    title: Haiku
    prompt: Write a haiku about consensus.
    keywords: [block, vote]
    minAnswerLength: 20
    maxAnswerLength: 200
`), 0600))

	c, err := LoadFile(path)
	require.NoError(t, err)

	q, ok := c.Get("haiku")
	require.True(t, ok)
	assert.Equal(t, []string{"block", "vote"}, q.Keywords)
	assert.Equal(t, 140, q.PreviewLimit, "preview limit defaults")

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
