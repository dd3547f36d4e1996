// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package votehistory is the durable, crash-consistent journal of this
// validator's own votes: the anti-equivocation record consulted before
// every signature. It models the teacher's "global singleton storage"
// pattern (Design Notes §9) as an owned resource behind a small
// interface with two implementations — file-backed for production, and
// in-memory for tests — rather than a package-level global.
package votehistory

import (
	"errors"

	"github.com/luxfi/votor/types"
)

// ErrEquivocation is returned by Record when the proposed vote conflicts
// with a prior entry for the same slot. Storage is left unmodified.
var ErrEquivocation = errors.New("votehistory: proposed vote would equivocate")

// ErrIO wraps an underlying durable-write failure. Record must not
// report success when the medium has not acknowledged the write.
var ErrIO = errors.New("votehistory: durable write failed")

// Storage is the vote-history journal. Record must be the last action
// before a vote is released to the Voting Service: if Record fails, the
// vote must not be sent; if the process crashes between Record and send,
// the protocol tolerates the vote being resent on restart.
type Storage interface {
	// Record durably appends the entry and returns only once the write
	// has been acknowledged by the underlying medium. It is fail-closed:
	// an entry conflicting with a prior one for the same slot returns
	// ErrEquivocation and never touches storage.
	Record(slot types.Slot, vote types.Vote) error

	// Load returns every entry ever recorded, in write order. Memory's
	// Load also rebuilds the in-memory reflection used by
	// WouldEquivocate; File builds its reflection when OpenFile replays
	// the journal.
	Load() ([]types.VoteHistoryEntry, error)

	// WouldEquivocate is a pure check against the in-memory reflection of
	// the journal: it never touches the underlying medium.
	WouldEquivocate(slot types.Slot, proposed types.Vote) bool

	// Close releases the underlying medium.
	Close() error
}
