// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package votehistory

import (
	"sync"

	"github.com/luxfi/votor/types"
)

// reflection is the in-memory mirror of the journal both Storage
// implementations check proposed votes against, so WouldEquivocate never
// touches the underlying medium.
type reflection struct {
	mu      sync.RWMutex
	bySlot  map[types.Slot][]types.Vote
}

func newReflection() *reflection {
	return &reflection{bySlot: make(map[types.Slot][]types.Vote)}
}

// conflicts reports whether proposed conflicts with any entry already
// recorded for its slot.
func (r *reflection) conflicts(proposed types.Vote) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.bySlot[proposed.Slot] {
		if v.ConflictsWith(proposed) {
			return true
		}
	}
	return false
}

// observe records vote into the reflection without any conflict check;
// callers must have already verified it doesn't conflict.
func (r *reflection) observe(vote types.Vote) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySlot[vote.Slot] = append(r.bySlot[vote.Slot], vote)
}

// load replaces the reflection's contents from a full journal replay.
func (r *reflection) load(entries []types.VoteHistoryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySlot = make(map[types.Slot][]types.Vote, len(entries))
	for _, e := range entries {
		r.bySlot[e.Slot] = append(r.bySlot[e.Slot], e.Vote)
	}
}
