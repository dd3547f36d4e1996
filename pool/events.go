// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pool implements the Consensus Pool: the protocol's aggregation
// engine. It sequentially ingests validated ConsensusMessages and, for
// each, updates per-slot state and emits any events newly entailed.
package pool

import (
	"fmt"

	"github.com/luxfi/votor/types"
)

// EventKind distinguishes the Consensus Pool's high-level output events.
type EventKind uint8

const (
	// SafeToNotarize fires once a notarize certificate has formed; the
	// validator may now cast Finalize(slot).
	SafeToNotarize EventKind = iota
	// SafeToSkip fires once a skip certificate has formed for the slot.
	SafeToSkip
	// BlockNotarized is informational, for downstream replay.
	BlockNotarized
	// Finalized fires once a finalize or fast-finalize certificate has
	// formed; the root may advance.
	Finalized
	// ParentReady fires once a block identifier becomes an acceptable
	// parent for a leader window proposing at Slot.
	ParentReady
	// Standstill fires when no progress has been observed for the
	// configured wall-clock interval.
	Standstill
)

// String names the event kind for logging and metrics labels.
func (k EventKind) String() string {
	switch k {
	case SafeToNotarize:
		return "SafeToNotarize"
	case SafeToSkip:
		return "SafeToSkip"
	case BlockNotarized:
		return "BlockNotarized"
	case Finalized:
		return "Finalized"
	case ParentReady:
		return "ParentReady"
	case Standstill:
		return "Standstill"
	default:
		return "Unknown"
	}
}

// Event is one high-level transition the pool reports to the Event
// Handler. Hash is meaningful only for event kinds that carry one;
// Finalized may carry the zero Hash when formed from a certificate type
// that doesn't name a block (plain Finalize).
type Event struct {
	Kind   EventKind
	Slot   types.Slot
	Hash   types.Hash
	Parent types.BlockID // meaningful only for ParentReady
}

// String implements fmt.Stringer.
func (e Event) String() string {
	switch e.Kind {
	case ParentReady:
		return fmt.Sprintf("%s(slot=%d parent=%s)", e.Kind, e.Slot, e.Parent)
	case Standstill:
		return fmt.Sprintf("%s(latest_observed_slot=%d)", e.Kind, e.Slot)
	default:
		return fmt.Sprintf("%s(slot=%d hash=%s)", e.Kind, e.Slot, e.Hash)
	}
}
