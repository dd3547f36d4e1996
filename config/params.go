// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config centralizes the Votor protocol's numeric parameters:
// certificate thresholds, timer durations and the pool retention
// horizon. Section 9 of the design treats all of these as protocol
// parameters that may move with future SIMDs; this package is the one
// place that names the current values so the codec, the certificate
// builder and the verifier never disagree.
package config

import (
	"fmt"
	"time"
)

// Threshold basis points (1bp = 0.01%). Kept as basis points rather than
// floats so the same integer constant is usable directly against
// integer stake sums without rounding drift.
const (
	NotarizeThresholdBps         = 6000 // 60%
	FinalizeFastThresholdBps     = 8000 // 80%
	NotarizeFallbackThresholdBps = 6000 // 60%
	SkipThresholdBps             = 6000 // 60%
	FinalizeThresholdBps         = 6000 // 60%
)

// Default timer durations and liveness windows. These govern throughput
// and are intentionally conservative; operators may override them via
// Parameters.
const (
	DefaultSkipTimeout        = 400 * time.Millisecond
	DefaultNotarizeTimeout    = 400 * time.Millisecond
	DefaultStandstillInterval = 10 * time.Second
)

// DefaultRetentionHorizon is the number of slots of pool state kept
// in memory behind the current root before being pruned, and the
// boundary used by the ingest pipeline's range check.
const DefaultRetentionHorizon Slot = 64

// Slot mirrors types.Slot without importing package types, so config has
// no dependency on the data model it parameterizes.
type Slot = uint64

// Parameters bundles every tunable the Consensus Pool, Timer Manager and
// Event Handler consult. It is built once at startup (typically from
// the active epoch's on-chain parameters) and passed down by
// construction, never read from a package-level global.
type Parameters struct {
	NotarizeThresholdBps         int
	FinalizeFastThresholdBps     int
	NotarizeFallbackThresholdBps int
	SkipThresholdBps             int
	FinalizeThresholdBps         int

	SkipTimeout        time.Duration
	NotarizeTimeout    time.Duration
	StandstillInterval time.Duration

	RetentionHorizon Slot

	// WaitForVoteToStartLeaderWindow is the Design Notes §4.6 one-shot
	// liveness guard: when set, the Event Handler refuses to emit a
	// leader-window start signal until the validator's own next vote has
	// itself been rooted.
	WaitForVoteToStartLeaderWindow bool
}

// DefaultParameters returns the protocol's current constants.
func DefaultParameters() Parameters {
	return Parameters{
		NotarizeThresholdBps:         NotarizeThresholdBps,
		FinalizeFastThresholdBps:     FinalizeFastThresholdBps,
		NotarizeFallbackThresholdBps: NotarizeFallbackThresholdBps,
		SkipThresholdBps:             SkipThresholdBps,
		FinalizeThresholdBps:         FinalizeThresholdBps,
		SkipTimeout:                  DefaultSkipTimeout,
		NotarizeTimeout:              DefaultNotarizeTimeout,
		StandstillInterval:           DefaultStandstillInterval,
		RetentionHorizon:             DefaultRetentionHorizon,
	}
}

// Validate rejects parameter combinations that can never form a
// coherent certificate table (e.g. a fast-finalize threshold below the
// plain notarize threshold would let FinalizeFast form before Notarize).
func (p Parameters) Validate() error {
	if p.FinalizeFastThresholdBps < p.NotarizeThresholdBps {
		return fmt.Errorf("config: fast-finalize threshold %dbps below notarize threshold %dbps", p.FinalizeFastThresholdBps, p.NotarizeThresholdBps)
	}
	for name, bps := range map[string]int{
		"notarize":          p.NotarizeThresholdBps,
		"finalize_fast":     p.FinalizeFastThresholdBps,
		"notarize_fallback": p.NotarizeFallbackThresholdBps,
		"skip":              p.SkipThresholdBps,
		"finalize":          p.FinalizeThresholdBps,
	} {
		if bps <= 0 || bps > 10000 {
			return fmt.Errorf("config: %s threshold %dbps out of range (0,10000]", name, bps)
		}
	}
	if p.SkipTimeout <= 0 || p.NotarizeTimeout <= 0 || p.StandstillInterval <= 0 {
		return fmt.Errorf("config: timer durations must be positive")
	}
	if p.RetentionHorizon == 0 {
		return fmt.Errorf("config: retention horizon must be positive")
	}
	return nil
}
