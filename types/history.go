// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "encoding/binary"

// VoteHistoryEntry is one record of the validator's own append-only vote
// journal: a (slot, vote) pair. The set of all entries must never
// contain two conflicting votes for the same slot (see Vote.ConflictsWith).
type VoteHistoryEntry struct {
	Slot Slot
	Vote Vote
}

// EncodeVoteHistoryEntry is the on-disk payload for a VoteHistoryEntry,
// before the length prefix and checksum the journal wraps it in.
func EncodeVoteHistoryEntry(e VoteHistoryEntry) []byte {
	return EncodeVote(e.Vote)
}

// DecodeVoteHistoryEntry parses the payload written by
// EncodeVoteHistoryEntry.
func DecodeVoteHistoryEntry(b []byte) (VoteHistoryEntry, error) {
	v, _, err := DecodeVote(b)
	if err != nil {
		return VoteHistoryEntry{}, err
	}
	return VoteHistoryEntry{Slot: v.Slot, Vote: v}, nil
}

// checksum is the journal's record checksum. It is not a cryptographic
// digest: it only needs to detect a torn write at the tail of the file
// so recovery can truncate there.
func checksum(b []byte) uint32 {
	var h uint32 = 2166136261
	for _, c := range b {
		h ^= uint32(c)
		h *= 16777619
	}
	return h
}

// Checksum exposes the journal checksum function so storage backends
// outside this package can validate records without reimplementing it.
func Checksum(b []byte) uint32 { return checksum(b) }

// PutUint32 is a tiny re-export so callers building the on-disk framing
// don't need a second import of encoding/binary for one call site.
func PutUint32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }

// Uint32 is the decode counterpart of PutUint32.
func Uint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
