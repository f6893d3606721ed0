package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/layer-3/questproof/core"
	"github.com/layer-3/questproof/ports"
)

// identitySnapshot is the persisted layout of the registry
type identitySnapshot struct {
	WalletToIdentity   map[string]core.Identity `json:"walletToIdentity"`
	PlatformIDToWallet map[string]string        `json:"platformIdToWallet"`
	AgentIDToWallet    map[string]string        `json:"agentIdToWallet"`
}

// IdentityRegistry owns wallet <-> (platform id, agent id) bindings.
// Every key is compared lowercased; records keep the caller's casing.
type IdentityRegistry struct {
	mu         sync.RWMutex
	byWallet   map[string]*core.Identity
	byPlatform map[string]string
	byAgent    map[string]string
	order      []string

	snapshot ports.Snapshotter
	logger   logrus.FieldLogger
	now      func() time.Time
}

// NewIdentityRegistry creates an empty registry. snapshot may be nil.
func NewIdentityRegistry(snapshot ports.Snapshotter, logger logrus.FieldLogger, now func() time.Time) *IdentityRegistry {
	if now == nil {
		now = time.Now
	}
	return &IdentityRegistry{
		byWallet:   make(map[string]*core.Identity),
		byPlatform: make(map[string]string),
		byAgent:    make(map[string]string),
		snapshot:   snapshot,
		logger:     logger.WithField("component", "identity_registry"),
		now:        now,
	}
}

// Load restores the registry from its snapshot
func (r *IdentityRegistry) Load(ctx context.Context) error {
	if r.snapshot == nil {
		return nil
	}

	var snap identitySnapshot
	found, err := r.snapshot.Load(ctx, &snap)
	if err != nil {
		return fmt.Errorf("failed to load identities: %w", err)
	}
	if !found {
		return nil
	}

	records := make([]core.Identity, 0, len(snap.WalletToIdentity))
	for _, identity := range snap.WalletToIdentity {
		records = append(records, identity)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].RegisteredAt.Before(records[j].RegisteredAt)
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byWallet = make(map[string]*core.Identity, len(records))
	r.byPlatform = make(map[string]string, len(records))
	r.byAgent = make(map[string]string, len(records))
	r.order = r.order[:0]
	for i := range records {
		record := records[i]
		key := walletKey(record.Wallet)
		r.byWallet[key] = &record
		r.byPlatform[strings.ToLower(record.PlatformID)] = key
		r.byAgent[strings.ToLower(record.AgentID)] = key
		r.order = append(r.order, key)
	}

	r.logger.WithField("count", len(records)).Info("Loaded identities")
	return nil
}

// Lookup returns a copy of the identity bound to wallet
func (r *IdentityRegistry) Lookup(wallet string) (*core.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.byWallet[walletKey(wallet)]
	if !ok {
		return nil, false
	}
	copied := *record
	return &copied, true
}

// AssertLinkable checks that wallet may be bound to platformID and agentID.
// It returns the existing record when the wallet is already known.
func (r *IdentityRegistry) AssertLinkable(wallet, platformID, agentID string) (*core.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	existing, err := r.checkLinkable(walletKey(wallet), platformID, agentID)
	if err != nil || existing == nil {
		return nil, err
	}
	copied := *existing
	return &copied, nil
}

// Register creates the binding or touches an existing one
func (r *IdentityRegistry) Register(ctx context.Context, wallet, platformID, agentID, alias string) (*core.Identity, error) {
	key := walletKey(wallet)
	alias = SanitizeAlias(alias)
	now := r.now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Checked again under the write lock: a concurrent verification may have
	// claimed one of the identifiers since AssertLinkable ran.
	record, err := r.checkLinkable(key, platformID, agentID)
	if err != nil {
		return nil, err
	}

	if record == nil {
		record = &core.Identity{
			Wallet:             strings.TrimSpace(wallet),
			PlatformID:         platformID,
			AgentID:            agentID,
			Alias:              alias,
			RegisteredAt:       now,
			LastVerifiedAt:     now,
			TotalVerifications: 1,
		}
		r.byWallet[key] = record
		r.byPlatform[strings.ToLower(platformID)] = key
		r.byAgent[strings.ToLower(agentID)] = key
		r.order = append(r.order, key)
	} else {
		if alias != "" {
			record.Alias = alias
		}
		record.LastVerifiedAt = now
		record.TotalVerifications++
	}

	r.persistLocked(ctx)

	copied := *record
	return &copied, nil
}

// List returns every identity in registration order
func (r *IdentityRegistry) List() []core.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]core.Identity, 0, len(r.order))
	for _, key := range r.order {
		list = append(list, *r.byWallet[key])
	}
	return list
}

// checkLinkable must be called with r.mu held
func (r *IdentityRegistry) checkLinkable(key, platformID, agentID string) (*core.Identity, error) {
	existing := r.byWallet[key]
	if existing != nil {
		if !strings.EqualFold(existing.PlatformID, platformID) || !strings.EqualFold(existing.AgentID, agentID) {
			return nil, core.Errorf(core.ErrConflict,
				"wallet is already linked to platform id %s and agent id %s", existing.PlatformID, existing.AgentID)
		}
	}
	if owner, ok := r.byPlatform[strings.ToLower(platformID)]; ok && owner != key {
		return nil, core.Errorf(core.ErrConflict, "platform id %s is already linked to another wallet", platformID)
	}
	if owner, ok := r.byAgent[strings.ToLower(agentID)]; ok && owner != key {
		return nil, core.Errorf(core.ErrConflict, "agent id %s is already linked to another wallet", agentID)
	}
	return existing, nil
}

// persistLocked writes the snapshot. Failures are logged; memory stays authoritative.
func (r *IdentityRegistry) persistLocked(ctx context.Context) {
	if r.snapshot == nil {
		return
	}

	snap := identitySnapshot{
		WalletToIdentity:   make(map[string]core.Identity, len(r.byWallet)),
		PlatformIDToWallet: make(map[string]string, len(r.byPlatform)),
		AgentIDToWallet:    make(map[string]string, len(r.byAgent)),
	}
	for key, record := range r.byWallet {
		snap.WalletToIdentity[key] = *record
	}
	for k, v := range r.byPlatform {
		snap.PlatformIDToWallet[k] = v
	}
	for k, v := range r.byAgent {
		snap.AgentIDToWallet[k] = v
	}

	if err := r.snapshot.Save(ctx, snap); err != nil {
		r.logger.WithError(err).Error("Failed to persist identities")
	}
}
