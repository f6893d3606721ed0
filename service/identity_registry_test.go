package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/questproof/adapters/snapshot"
	"github.com/layer-3/questproof/core"
)

type failingSnapshotter struct{}

func (failingSnapshotter) Load(context.Context, interface{}) (bool, error) {
	return false, errors.New("disk unavailable")
}

func (failingSnapshotter) Save(context.Context, interface{}) error {
	return errors.New("disk full")
}

func TestIdentityRegistry_Uniqueness(t *testing.T) {
	logger, _ := test.NewNullLogger()
	clock := newFakeClock()
	r := NewIdentityRegistry(nil, logger, clock.Now)
	ctx := context.Background()

	_, err := r.Register(ctx, "0xAAAA", "discord_one", "agent_one", "")
	require.NoError(t, err)

	tests := []struct {
		name       string
		wallet     string
		platformID string
		agentID    string
		wantErr    error
	}{
		{"same binding", "0xaaaa", "discord_ONE", "agent_One", nil},
		{"wallet relinked to new platform id", "0xAAAA", "discord_two", "agent_one", core.ErrConflict},
		{"wallet relinked to new agent id", "0xAAAA", "discord_one", "agent_two", core.ErrConflict},
		{"platform id taken", "0xBBBB", "discord_one", "agent_two", core.ErrConflict},
		{"agent id taken", "0xBBBB", "discord_two", "agent_ONE", core.ErrConflict},
		{"fresh binding", "0xBBBB", "discord_two", "agent_two", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.AssertLinkable(tc.wallet, tc.platformID, tc.agentID)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}

	_, err = r.Register(ctx, "0xBBBB", "discord_one", "agent_two", "")
	assert.ErrorIs(t, err, core.ErrConflict)
	assert.Len(t, r.List(), 1)
}

func TestIdentityRegistry_RegisterUpdates(t *testing.T) {
	logger, _ := test.NewNullLogger()
	clock := newFakeClock()
	r := NewIdentityRegistry(nil, logger, clock.Now)
	ctx := context.Background()

	first, err := r.Register(ctx, "0xAAAA", "discord_one", "agent_one", "One")
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalVerifications)
	assert.Equal(t, first.RegisteredAt, first.LastVerifiedAt)

	clock.Advance(time.Minute)
	second, err := r.Register(ctx, "0xaaaa", "discord_one", "agent_one", "")
	require.NoError(t, err)
	assert.Equal(t, 2, second.TotalVerifications)
	assert.Equal(t, "One", second.Alias)
	assert.Equal(t, "0xAAAA", second.Wallet, "original casing is kept")
	assert.Equal(t, first.RegisteredAt, second.RegisteredAt)
	assert.Equal(t, clock.Now(), second.LastVerifiedAt)

	// Returned records are copies
	second.Alias = "mutated"
	stored, _ := r.Lookup("0xAAAA")
	assert.Equal(t, "One", stored.Alias)
}

func TestIdentityRegistry_ListOrder(t *testing.T) {
	logger, _ := test.NewNullLogger()
	clock := newFakeClock()
	r := NewIdentityRegistry(nil, logger, clock.Now)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		_, err := r.Register(ctx, "0x"+id, "discord_"+id, "agent_"+id, "")
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	_, err := r.Register(ctx, "0xc", "discord_c", "agent_c", "")
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "0xc", list[0].Wallet)
	assert.Equal(t, "0xa", list[1].Wallet)
	assert.Equal(t, "0xb", list[2].Wallet)
}

func TestIdentityRegistry_Persistence(t *testing.T) {
	logger, _ := test.NewNullLogger()
	clock := newFakeClock()
	ctx := context.Background()
	snap := snapshot.NewFileSnapshotter(filepath.Join(t.TempDir(), "identities.json"))

	r := NewIdentityRegistry(snap, logger, clock.Now)
	for _, id := range []string{"b", "a"} {
		_, err := r.Register(ctx, "0x"+id, "discord_"+id, "agent_"+id, "Name "+id)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	restored := NewIdentityRegistry(snap, logger, clock.Now)
	require.NoError(t, restored.Load(ctx))

	list := restored.List()
	require.Len(t, list, 2)
	assert.Equal(t, "0xb", list[0].Wallet)
	assert.Equal(t, "0xa", list[1].Wallet)
	assert.Equal(t, "Name a", list[1].Alias)

	_, err := restored.AssertLinkable("0xc", "discord_a", "agent_c")
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestIdentityRegistry_PersistFailureIsLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	r := NewIdentityRegistry(failingSnapshotter{}, logger, nil)

	identity, err := r.Register(context.Background(), "0xa", "discord_a", "agent_a", "")
	require.NoError(t, err)
	assert.Equal(t, "0xa", identity.Wallet)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "Failed to persist identities", entry.Message)

	_, ok := r.Lookup("0xa")
	assert.True(t, ok, "memory stays authoritative")

	assert.Error(t, r.Load(context.Background()))
}
