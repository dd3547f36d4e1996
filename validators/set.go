// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package validators provides the per-epoch, rank-indexed validator set
// the Consensus Pool and Voting Service consult: stake weights for
// threshold arithmetic and BLS public keys for signature verification.
// It follows the shape of the teacher's validators.Manager / Set, scaled
// down to what Votor needs: members are stored by dense rank, since
// certificate bitmaps are positional, with a NodeID-to-rank map kept
// alongside for RankOf.
package validators

import (
	"fmt"
	"math/bits"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/ids"
	"github.com/luxfi/votor/blssig"
)

// Member is one validator's entry in an epoch's validator set.
type Member struct {
	NodeID    ids.NodeID
	PublicKey *bls.PublicKey
	Stake     uint64
}

// NewMemberFromBytes builds a Member from a node ID, a compressed G1 BLS
// public key (the wire format genesis/config files and RPC snapshots
// carry), and a stake weight. It is the canonical way to turn an
// on-disk or network-supplied validator entry into a Member.
func NewMemberFromBytes(nodeID ids.NodeID, pubKeyBytes []byte, stake uint64) (Member, error) {
	pk, err := blssig.PublicKeyFromCompressedBytes(pubKeyBytes)
	if err != nil {
		return Member{}, fmt.Errorf("validators: parse public key for %s: %w", nodeID, err)
	}
	return Member{NodeID: nodeID, PublicKey: pk, Stake: stake}, nil
}

// Set is the epoch-scoped, rank-indexed validator set.
type Set struct {
	epoch      uint64
	members    []Member
	totalStake uint64
	byNodeID   map[ids.NodeID]uint32
}

// NewSet builds a rank-indexed validator set for one epoch. Rank is the
// member's index in members; callers must supply members in the
// canonical rank order the whole validator set agrees on.
func NewSet(epoch uint64, members []Member) *Set {
	s := &Set{
		epoch:    epoch,
		members:  append([]Member(nil), members...),
		byNodeID: make(map[ids.NodeID]uint32, len(members)),
	}
	for i, m := range members {
		s.totalStake += m.Stake
		s.byNodeID[m.NodeID] = uint32(i)
	}
	return s
}

// Epoch returns the epoch this set is scoped to.
func (s *Set) Epoch() uint64 { return s.epoch }

// Len returns the number of ranks in the set.
func (s *Set) Len() int { return len(s.members) }

// TotalStake returns the sum of every member's stake.
func (s *Set) TotalStake() uint64 { return s.totalStake }

// StakeOf returns the stake of rank, or 0 if rank is out of range.
func (s *Set) StakeOf(rank uint32) uint64 {
	if int(rank) >= len(s.members) {
		return 0
	}
	return s.members[rank].Stake
}

// PublicKeyOf returns the BLS public key of rank.
func (s *Set) PublicKeyOf(rank uint32) (*bls.PublicKey, error) {
	if int(rank) >= len(s.members) {
		return nil, fmt.Errorf("validators: rank %d out of range (set has %d members)", rank, len(s.members))
	}
	return s.members[rank].PublicKey, nil
}

// RankOf returns the rank of nodeID within this epoch's set.
func (s *Set) RankOf(nodeID ids.NodeID) (uint32, bool) {
	r, ok := s.byNodeID[nodeID]
	return r, ok
}

// StakeBps returns stake expressed as basis points of total stake,
// rounding down, for logging. Threshold decisions do not use it; they
// go through MeetsThreshold's exact cross-multiplication.
func (s *Set) StakeBps(stake uint64) int {
	if s.totalStake == 0 {
		return 0
	}
	return int(stake * 10000 / s.totalStake)
}

// MeetsThreshold reports whether stake crosses thresholdBps of total
// stake. It compares cross-multiplied integers rather than computing a
// basis-point ratio, so it is exact even when 10000 doesn't evenly
// divide total stake. Both products are computed as full 128-bit
// values via bits.Mul64: plain uint64 multiplication overflows once
// total stake exceeds roughly 1.8e15 (lamport-scale stake sums cross
// that well within realistic validator counts), silently corrupting
// the quorum decision.
func (s *Set) MeetsThreshold(stake uint64, thresholdBps int) bool {
	if s.totalStake == 0 {
		return false
	}
	lhsHi, lhsLo := bits.Mul64(stake, 10000)
	rhsHi, rhsLo := bits.Mul64(s.totalStake, uint64(thresholdBps))
	if lhsHi != rhsHi {
		return lhsHi > rhsHi
	}
	return lhsLo >= rhsLo
}
