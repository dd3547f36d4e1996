// Package votehistorymock provides a mock implementation of votehistory.Storage
package votehistorymock

import (
	"sync"

	"github.com/luxfi/votor/types"
	"github.com/luxfi/votor/votehistory"
)

// MockStorage is an in-memory votehistory.Storage double that records
// every call, for tests asserting the Voting Service's record-then-send
// ordering.
type MockStorage struct {
	mu      sync.Mutex
	entries map[types.Slot]types.Vote

	// RecordErr, when set, is returned by every Record call instead of
	// performing the write — for exercising the fail-closed path.
	RecordErr error

	recordCalls int
}

// NewMockStorage constructs an empty MockStorage.
func NewMockStorage() *MockStorage {
	return &MockStorage{entries: make(map[types.Slot]types.Vote)}
}

// Record implements votehistory.Storage.
func (m *MockStorage) Record(slot types.Slot, vote types.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCalls++
	if m.RecordErr != nil {
		return m.RecordErr
	}
	if prior, ok := m.entries[slot]; ok && prior.ConflictsWith(vote) {
		return votehistory.ErrEquivocation
	}
	m.entries[slot] = vote
	return nil
}

// Load implements votehistory.Storage. The mock keeps only the latest
// vote recorded for each slot, so Load returns at most one entry per
// slot, in no particular order.
func (m *MockStorage) Load() ([]types.VoteHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.VoteHistoryEntry, 0, len(m.entries))
	for slot, vote := range m.entries {
		out = append(out, types.VoteHistoryEntry{Slot: slot, Vote: vote})
	}
	return out, nil
}

// WouldEquivocate implements votehistory.Storage.
func (m *MockStorage) WouldEquivocate(slot types.Slot, proposed types.Vote) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	prior, ok := m.entries[slot]
	return ok && prior.ConflictsWith(proposed)
}

// Close implements votehistory.Storage.
func (m *MockStorage) Close() error { return nil }

// RecordCalls returns how many times Record was invoked, for assertions
// that a failed signing attempt never touched storage twice.
func (m *MockStorage) RecordCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recordCalls
}

var _ votehistory.Storage = (*MockStorage)(nil)
