// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "fmt"

// CertType names the quorum a Certificate attests to.
type CertType uint8

const (
	// CertFinalize attests a Finalize(slot) quorum.
	CertFinalize CertType = iota
	// CertFinalizeFast attests an 80% Notarize(slot,hash) quorum, implying
	// fast finalization without a separate Finalize round.
	CertFinalizeFast
	// CertNotarize attests a 60% Notarize(slot,hash) quorum.
	CertNotarize
	// CertNotarizeFallback attests a combined Notarize+NotarizeFallback
	// quorum for the same (slot,hash).
	CertNotarizeFallback
	// CertSkip attests a combined Skip+SkipFallback quorum for a slot.
	CertSkip
	// CertGenesis attests the bootstrap genesis block.
	CertGenesis
)

// String names the certificate type for logging.
func (t CertType) String() string {
	switch t {
	case CertFinalize:
		return "Finalize"
	case CertFinalizeFast:
		return "FinalizeFast"
	case CertNotarize:
		return "Notarize"
	case CertNotarizeFallback:
		return "NotarizeFallback"
	case CertSkip:
		return "Skip"
	case CertGenesis:
		return "Genesis"
	default:
		return "Unknown"
	}
}

// HasHash reports whether certificates of this type carry a block hash.
func (t CertType) HasHash() bool {
	switch t {
	case CertFinalizeFast, CertNotarize, CertNotarizeFallback, CertGenesis:
		return true
	default:
		return false
	}
}

// Encoding names the bitmap shape a certificate type uses.
type Encoding uint8

const (
	// EncodingBinary is a one-bit-per-rank participation bitmap, used for
	// certificate types reconstructible from a single source-vote kind.
	EncodingBinary Encoding = iota
	// EncodingTernary is a one-trit-per-rank bitmap distinguishing "signed
	// source A" / "signed source B" / "absent", used for certificate
	// types with two acceptable source-vote kinds whose signatures may be
	// mixed into one aggregate.
	EncodingTernary
)

// CertID identifies a certificate instance by type, slot and (when the
// type carries one) hash.
type CertID struct {
	Type CertType
	Slot Slot
	Hash Hash
}

// String implements fmt.Stringer.
func (c CertID) String() string {
	if c.Type.HasHash() {
		return fmt.Sprintf("%s(%d,%s)", c.Type, c.Slot, c.Hash)
	}
	return fmt.Sprintf("%s(%d)", c.Type, c.Slot)
}

// Certificate is an aggregate BLS signature plus participation bitmap
// attesting that a quorum of stake-weighted validators cast a specific
// class of vote on a specific slot (and, for hash-bearing types, block).
type Certificate struct {
	ID        CertID
	Signature []byte
	Bitmap    []byte
}

// Rule describes how a certificate type is formed: the stake fraction
// (in basis points of total epoch stake) required, which vote kinds may
// contribute signatures, and which bitmap encoding the type uses. The
// aggregation engine in package pool is a single function parameterized
// by a table of Rules, rather than one hand-written branch per
// certificate type.
type Rule struct {
	Type            CertType
	ThresholdBps    int
	PrimaryKind     Kind
	FallbackKind    Kind // zero value KindNotarize is ignored when HasFallback is false
	HasFallback     bool
	Encoding        Encoding
}

// DefaultRules is the certificate-formation table used by the Consensus
// Pool. Percentages are protocol parameters (see package config) and are
// expressed here in basis points so every caller uses the same constants
// the codec, certificate builder and verifier all share.
func DefaultRules(notarizeBps, fastFinalizeBps, notarizeFallbackBps, skipBps, finalizeBps int) map[CertType]Rule {
	return map[CertType]Rule{
		CertNotarize: {
			Type:         CertNotarize,
			ThresholdBps: notarizeBps,
			PrimaryKind:  KindNotarize,
			Encoding:     EncodingBinary,
		},
		CertFinalizeFast: {
			Type:         CertFinalizeFast,
			ThresholdBps: fastFinalizeBps,
			PrimaryKind:  KindNotarize,
			Encoding:     EncodingBinary,
		},
		CertNotarizeFallback: {
			Type:         CertNotarizeFallback,
			ThresholdBps: notarizeFallbackBps,
			PrimaryKind:  KindNotarize,
			FallbackKind: KindNotarizeFallback,
			HasFallback:  true,
			Encoding:     EncodingTernary,
		},
		CertSkip: {
			Type:         CertSkip,
			ThresholdBps: skipBps,
			PrimaryKind:  KindSkip,
			FallbackKind: KindSkipFallback,
			HasFallback:  true,
			Encoding:     EncodingTernary,
		},
		CertFinalize: {
			Type:         CertFinalize,
			ThresholdBps: finalizeBps,
			PrimaryKind:  KindFinalize,
			Encoding:     EncodingBinary,
		},
	}
}
