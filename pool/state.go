// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import "github.com/luxfi/votor/types"

// Status is the per-slot vote state machine described in spec §4.4:
// Open -> Notarized(h) -> Finalized, or Open -> Skipped; a Finalize or
// FinalizeFast certificate may also take Open straight to Finalized.
// Finalized and Skipped are terminal: a later certificate still emits
// its events but does not change the status.
type Status uint8

const (
	// Open is the initial state: no certificate has formed yet.
	Open Status = iota
	// Notarized means a Notarize or NotarizeFallback certificate formed
	// for Hash.
	Notarized
	// Skipped means a Skip certificate formed. Terminal.
	Skipped
	// FinalizedStatus means a Finalize or FinalizeFast certificate
	// formed. Terminal.
	FinalizedStatus
)

// voteGroup tracks, for one exact (kind, hash) vote pair at a slot, the
// set of ranks that cast exactly that vote and their signatures.
type voteGroup map[types.Rank][]byte

// slotState is the Consensus Pool's in-memory, per-slot aggregation
// state: every vote seen, grouped for fast threshold recomputation, the
// best known certificate per type, and equivocation bookkeeping.
type slotState struct {
	slot types.Slot

	// votes[kind][hash] is the set of ranks that cast that exact vote.
	// Hash-less kinds (Skip, SkipFallback, Finalize) are stored under
	// the zero Hash.
	votes map[types.Kind]map[types.Hash]voteGroup

	// byRank[rank] is every vote that rank has cast at this slot, used
	// for equivocation detection.
	byRank map[types.Rank][]types.Vote

	// equivocators is the set of ranks flagged for casting conflicting
	// votes at this slot. Their contributions are still aggregated.
	equivocators map[types.Rank]bool

	// certs is the best known (highest bitmap weight) certificate formed
	// so far for each certificate type.
	certs map[types.CertType]types.Certificate

	status        Status
	notarizedHash types.Hash
	finalized     bool
	finalizedHash types.Hash
	hasFinalHash  bool
}

func newSlotState(slot types.Slot) *slotState {
	return &slotState{
		slot:         slot,
		votes:        make(map[types.Kind]map[types.Hash]voteGroup),
		byRank:       make(map[types.Rank][]types.Vote),
		equivocators: make(map[types.Rank]bool),
		certs:        make(map[types.CertType]types.Certificate),
	}
}

// group returns (creating if necessary) the vote group for (kind, hash).
func (s *slotState) group(kind types.Kind, hash types.Hash) voteGroup {
	byHash, ok := s.votes[kind]
	if !ok {
		byHash = make(map[types.Hash]voteGroup)
		s.votes[kind] = byHash
	}
	g, ok := byHash[hash]
	if !ok {
		g = make(voteGroup)
		byHash[hash] = g
	}
	return g
}

// hasVote reports whether this exact (kind, hash) vote from rank is
// already known — the pipeline's deduplication step.
func (s *slotState) hasVote(kind types.Kind, hash types.Hash, rank types.Rank) bool {
	byHash, ok := s.votes[kind]
	if !ok {
		return false
	}
	g, ok := byHash[hash]
	if !ok {
		return false
	}
	_, ok = g[rank]
	return ok
}

// insert records rank's vote and signature, flags equivocation against
// any prior vote this rank cast at this slot, and returns whether this
// insertion newly flagged the rank.
func (s *slotState) insert(vote types.Vote, rank types.Rank, sig []byte) (equivocated bool) {
	s.group(vote.Kind, vote.Hash)[rank] = sig

	for _, prior := range s.byRank[rank] {
		if prior.ConflictsWith(vote) {
			if !s.equivocators[rank] {
				s.equivocators[rank] = true
				equivocated = true
			}
			break
		}
	}
	s.byRank[rank] = append(s.byRank[rank], vote)
	return equivocated
}

// ranksFor returns the rank set and signature list for (kind, hash).
func (s *slotState) ranksFor(kind types.Kind, hash types.Hash) voteGroup {
	byHash, ok := s.votes[kind]
	if !ok {
		return nil
	}
	return byHash[hash]
}
