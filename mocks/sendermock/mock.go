// Package sendermock provides mock implementations of votor's external
// collaborator interfaces, for Event Handler tests that need to assert
// what was published without wiring a real bank-forks or RPC layer.
package sendermock

import (
	"sync"

	"github.com/luxfi/votor/types"
	"github.com/luxfi/votor/votor"
)

// MockBankForks records every SetRoot call.
type MockBankForks struct {
	mu    sync.Mutex
	roots []types.Slot
}

// NewMockBankForks constructs an empty MockBankForks.
func NewMockBankForks() *MockBankForks { return &MockBankForks{} }

// SetRoot implements votor.BankForks.
func (m *MockBankForks) SetRoot(slot types.Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roots = append(m.roots, slot)
}

// Roots returns every slot SetRoot was called with, in call order.
func (m *MockBankForks) Roots() []types.Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Slot(nil), m.roots...)
}

var _ votor.BankForks = (*MockBankForks)(nil)

// MockLeaderScheduleCache reports leadership from a fixed set of slots
// configured by the test.
type MockLeaderScheduleCache struct {
	mu     sync.Mutex
	leader map[types.Slot]bool
}

// NewMockLeaderScheduleCache constructs a MockLeaderScheduleCache with
// no slots led.
func NewMockLeaderScheduleCache() *MockLeaderScheduleCache {
	return &MockLeaderScheduleCache{leader: make(map[types.Slot]bool)}
}

// SetLeader configures whether this validator leads slot.
func (m *MockLeaderScheduleCache) SetLeader(slot types.Slot, leads bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leader[slot] = leads
}

// IsLeader implements votor.LeaderScheduleCache.
func (m *MockLeaderScheduleCache) IsLeader(slot types.Slot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leader[slot]
}

var _ votor.LeaderScheduleCache = (*MockLeaderScheduleCache)(nil)

// MockSnapshotController records every Snapshot call.
type MockSnapshotController struct {
	mu    sync.Mutex
	slots []types.Slot
}

// NewMockSnapshotController constructs an empty MockSnapshotController.
func NewMockSnapshotController() *MockSnapshotController { return &MockSnapshotController{} }

// Snapshot implements votor.SnapshotController.
func (m *MockSnapshotController) Snapshot(slot types.Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = append(m.slots, slot)
}

// Slots returns every slot Snapshot was called with.
func (m *MockSnapshotController) Slots() []types.Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Slot(nil), m.slots...)
}

var _ votor.SnapshotController = (*MockSnapshotController)(nil)

// MockRPCSubscriptions records root and finalization notifications.
type MockRPCSubscriptions struct {
	mu         sync.Mutex
	roots      []types.Slot
	finalized  []types.BlockID
}

// NewMockRPCSubscriptions constructs an empty MockRPCSubscriptions.
func NewMockRPCSubscriptions() *MockRPCSubscriptions { return &MockRPCSubscriptions{} }

// NotifyRoot implements votor.RPCSubscriptions.
func (m *MockRPCSubscriptions) NotifyRoot(slot types.Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roots = append(m.roots, slot)
}

// NotifyFinalized implements votor.RPCSubscriptions.
func (m *MockRPCSubscriptions) NotifyFinalized(slot types.Slot, hash types.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalized = append(m.finalized, types.BlockID{Slot: slot, Hash: hash})
}

// Finalized returns every (slot, hash) pair reported, in call order.
func (m *MockRPCSubscriptions) Finalized() []types.BlockID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.BlockID(nil), m.finalized...)
}

var _ votor.RPCSubscriptions = (*MockRPCSubscriptions)(nil)

// MockBlockCreator records every leader window the handler started.
type MockBlockCreator struct {
	mu      sync.Mutex
	windows []votor.LeaderWindowInfo
}

// NewMockBlockCreator constructs an empty MockBlockCreator.
func NewMockBlockCreator() *MockBlockCreator { return &MockBlockCreator{} }

// StartLeaderWindow implements votor.BlockCreator.
func (m *MockBlockCreator) StartLeaderWindow(info votor.LeaderWindowInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows = append(m.windows, info)
}

// Windows returns every LeaderWindowInfo passed to StartLeaderWindow.
func (m *MockBlockCreator) Windows() []votor.LeaderWindowInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]votor.LeaderWindowInfo(nil), m.windows...)
}

var _ votor.BlockCreator = (*MockBlockCreator)(nil)
