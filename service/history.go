package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/layer-3/questproof/core"
	"github.com/layer-3/questproof/ports"
)

// DefaultHistoryLimit is the number of submissions kept per wallet
const DefaultHistoryLimit = 20

// History keeps the most recent submissions per wallet, newest first
type History struct {
	mu       sync.RWMutex
	entries  map[string][]core.SubmissionResult
	limit    int
	snapshot ports.Snapshotter
	logger   logrus.FieldLogger
}

// NewHistory creates an empty history. snapshot may be nil.
func NewHistory(limit int, snapshot ports.Snapshotter, logger logrus.FieldLogger) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{
		entries:  make(map[string][]core.SubmissionResult),
		limit:    limit,
		snapshot: snapshot,
		logger:   logger.WithField("component", "history"),
	}
}

// Load restores history from its snapshot
func (h *History) Load(ctx context.Context) error {
	if h.snapshot == nil {
		return nil
	}

	entries := make(map[string][]core.SubmissionResult)
	found, err := h.snapshot.Load(ctx, &entries)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if !found {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = make(map[string][]core.SubmissionResult, len(entries))
	for wallet, list := range entries {
		if len(list) > h.limit {
			list = list[:h.limit]
		}
		h.entries[walletKey(wallet)] = list
	}
	return nil
}

// Append records result at the head of its wallet's list
func (h *History) Append(ctx context.Context, result core.SubmissionResult) {
	key := walletKey(result.Wallet)

	h.mu.Lock()
	defer h.mu.Unlock()

	list := make([]core.SubmissionResult, 0, h.limit)
	list = append(list, result)
	list = append(list, h.entries[key]...)
	if len(list) > h.limit {
		list = list[:h.limit]
	}
	h.entries[key] = list

	if h.snapshot == nil {
		return
	}
	if err := h.snapshot.Save(ctx, h.entries); err != nil {
		h.logger.WithError(err).Error("Failed to persist history")
	}
}

// Recent returns the wallet's submissions, newest first
func (h *History) Recent(wallet string) []core.SubmissionResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	list := h.entries[walletKey(wallet)]
	out := make([]core.SubmissionResult, len(list))
	copy(out, list)
	return out
}
