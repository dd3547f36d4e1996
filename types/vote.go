// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package types defines the Votor wire vocabulary: votes, certificates,
// slots, block identifiers and the messages that carry them between the
// Consensus Pool, the Voting Service and the Event Handler.
package types

import (
	"encoding/hex"
	"fmt"

	"github.com/luxfi/ids"
)

// Slot is a monotonically increasing position in the chain.
type Slot uint64

// MaxSlot is never constructed by this package; callers must treat it as
// an invalid sentinel rather than a real position.
const MaxSlot Slot = 1<<64 - 1

// Hash is a 32-byte block hash.
type Hash [32]byte

// String returns the hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// BlockID uniquely identifies a candidate block by slot and hash.
type BlockID struct {
	Slot Slot
	Hash Hash
}

// String implements fmt.Stringer.
func (b BlockID) String() string {
	return fmt.Sprintf("%d:%s", b.Slot, b.Hash)
}

// Kind enumerates the vote variants the protocol can carry.
type Kind uint8

const (
	// KindNotarize casts a vote to notarize a specific block.
	KindNotarize Kind = iota
	// KindNotarizeFallback casts a fallback notarize vote.
	KindNotarizeFallback
	// KindSkip casts a vote to skip the slot's leader.
	KindSkip
	// KindSkipFallback casts a fallback skip vote.
	KindSkipFallback
	// KindFinalize casts a vote to finalize a slot.
	KindFinalize
	// KindGenesis is the bootstrap-only genesis vote.
	KindGenesis
)

// String names the vote kind for logging.
func (k Kind) String() string {
	switch k {
	case KindNotarize:
		return "Notarize"
	case KindNotarizeFallback:
		return "NotarizeFallback"
	case KindSkip:
		return "Skip"
	case KindSkipFallback:
		return "SkipFallback"
	case KindFinalize:
		return "Finalize"
	case KindGenesis:
		return "Genesis"
	default:
		return "Unknown"
	}
}

// HasHash reports whether votes of this kind carry a block hash.
func (k Kind) HasHash() bool {
	switch k {
	case KindNotarize, KindNotarizeFallback, KindGenesis:
		return true
	default:
		return false
	}
}

// Vote is a tagged variant carrying a slot and, for hash-bearing kinds, a
// block hash. The zero value of Hash is used for kinds that do not carry
// one and is never a meaningful payload.
type Vote struct {
	Kind Kind
	Slot Slot
	Hash Hash
}

// Notarize constructs a Notarize(slot, hash) vote.
func Notarize(slot Slot, hash Hash) Vote { return Vote{Kind: KindNotarize, Slot: slot, Hash: hash} }

// NotarizeFallback constructs a NotarizeFallback(slot, hash) vote.
func NotarizeFallback(slot Slot, hash Hash) Vote {
	return Vote{Kind: KindNotarizeFallback, Slot: slot, Hash: hash}
}

// Skip constructs a Skip(slot) vote.
func Skip(slot Slot) Vote { return Vote{Kind: KindSkip, Slot: slot} }

// SkipFallback constructs a SkipFallback(slot) vote.
func SkipFallback(slot Slot) Vote { return Vote{Kind: KindSkipFallback, Slot: slot} }

// Finalize constructs a Finalize(slot) vote.
func Finalize(slot Slot) Vote { return Vote{Kind: KindFinalize, Slot: slot} }

// Genesis constructs a Genesis(slot, hash) bootstrap vote.
func Genesis(slot Slot, hash Hash) Vote { return Vote{Kind: KindGenesis, Slot: slot, Hash: hash} }

// String implements fmt.Stringer.
func (v Vote) String() string {
	if v.Kind.HasHash() {
		return fmt.Sprintf("%s(%d,%s)", v.Kind, v.Slot, v.Hash)
	}
	return fmt.Sprintf("%s(%d)", v.Kind, v.Slot)
}

// ConflictsWith reports whether v and other cannot both be legitimate
// votes cast by the same honest validator for the same slot — the
// predicate vote history enforces before signing.
func (v Vote) ConflictsWith(other Vote) bool {
	if v.Slot != other.Slot {
		return false
	}
	switch {
	case v.Kind == KindNotarize && other.Kind == KindNotarize:
		return v.Hash != other.Hash
	case v.Kind == KindNotarize && other.Kind == KindSkip:
		return true
	case v.Kind == KindSkip && other.Kind == KindNotarize:
		return true
	default:
		return false
	}
}

// Rank is the compact per-epoch validator identifier indexing a bitmap
// position in an aggregate signature.
type Rank uint32

// VoteMessage is a single validator's signed ballot.
type VoteMessage struct {
	Vote         Vote
	BLSSignature []byte
	Rank         Rank
}

// NodeID identifies the validator that cast a VoteMessage, when known.
type NodeID = ids.NodeID
