// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/votor/bitmap"
	"github.com/luxfi/votor/blssig"
	"github.com/luxfi/votor/types"
	"github.com/luxfi/votor/validators"
)

// Verifier checks BLS signatures over votes and certificates. The
// default implementation wraps blssig (github.com/luxfi/crypto/bls); a
// fake implementation is used in tests that don't need real
// cryptography.
type Verifier interface {
	// VerifyVote checks a single validator's signature over vote.
	VerifyVote(vote types.Vote, rank types.Rank, sig []byte, set *validators.Set) bool

	// VerifyCertificate reconstructs the source-vote message(s) named by
	// rule and checks the certificate's aggregate signature against the
	// public keys the bitmap says contributed.
	VerifyCertificate(cert types.Certificate, rule types.Rule, set *validators.Set) bool
}

// BLSVerifier is the production Verifier.
type BLSVerifier struct{}

// VerifyVote implements Verifier.
func (BLSVerifier) VerifyVote(vote types.Vote, rank types.Rank, sig []byte, set *validators.Set) bool {
	pk, err := set.PublicKeyOf(uint32(rank))
	if err != nil {
		return false
	}
	return blssig.VerifyBytes(pk, sig, types.CanonicalVoteBytes(vote))
}

// VerifyCertificate implements Verifier.
func (BLSVerifier) VerifyCertificate(cert types.Certificate, rule types.Rule, set *validators.Set) bool {
	sig, err := blssig.SignatureFromBytes(cert.Signature)
	if err != nil {
		return false
	}

	if !rule.HasFallback {
		bm, _, err := bitmap.DecodeBinary(cert.Bitmap)
		if err != nil {
			return false
		}
		pks, err := publicKeysOf(bm.Ranks(), set)
		if err != nil {
			return false
		}
		agg, err := blssig.AggregatePublicKeys(pks)
		if err != nil {
			return false
		}
		primary := types.Vote{Kind: rule.PrimaryKind, Slot: cert.ID.Slot, Hash: cert.ID.Hash}
		return blssig.Verify(agg, sig, types.CanonicalVoteBytes(primary))
	}

	tern, _, err := bitmap.DecodeTernary(cert.Bitmap)
	if err != nil {
		return false
	}
	pksA, err := publicKeysOf(tern.RanksFor(bitmap.TritSourceA), set)
	if err != nil {
		return false
	}
	pksB, err := publicKeysOf(tern.RanksFor(bitmap.TritSourceB), set)
	if err != nil {
		return false
	}
	msgA := types.CanonicalVoteBytes(types.Vote{Kind: rule.PrimaryKind, Slot: cert.ID.Slot, Hash: cert.ID.Hash})
	msgB := types.CanonicalVoteBytes(types.Vote{Kind: rule.FallbackKind, Slot: cert.ID.Slot, Hash: cert.ID.Hash})
	return blssig.VerifyTwoMessageAggregate(sig, pksA, pksB, msgA, msgB)
}

func publicKeysOf(ranks []uint32, set *validators.Set) ([]*bls.PublicKey, error) {
	pks := make([]*bls.PublicKey, 0, len(ranks))
	for _, r := range ranks {
		pk, err := set.PublicKeyOf(r)
		if err != nil {
			return nil, err
		}
		pks = append(pks, pk)
	}
	return pks, nil
}
