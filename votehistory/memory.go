// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package votehistory

import (
	"sync"

	"github.com/luxfi/votor/types"
)

// Memory is an in-memory Storage implementation for tests: it satisfies
// the same fail-closed equivocation contract as File but never touches
// disk, so unit tests don't pay for fsync.
type Memory struct {
	mu      sync.Mutex
	entries []types.VoteHistoryEntry
	refl    *reflection
	closed  bool
}

// NewMemory returns an empty in-memory vote history.
func NewMemory() *Memory {
	return &Memory{refl: newReflection()}
}

// Record implements Storage.
func (m *Memory) Record(slot types.Slot, vote types.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrIO
	}
	if m.refl.conflicts(vote) {
		return ErrEquivocation
	}
	m.entries = append(m.entries, types.VoteHistoryEntry{Slot: slot, Vote: vote})
	m.refl.observe(vote)
	return nil
}

// Load implements Storage.
func (m *Memory) Load() ([]types.VoteHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]types.VoteHistoryEntry(nil), m.entries...)
	m.refl.load(out)
	return out, nil
}

// WouldEquivocate implements Storage.
func (m *Memory) WouldEquivocate(_ types.Slot, proposed types.Vote) bool {
	return m.refl.conflicts(proposed)
}

// Close implements Storage.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
