// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package blssig is the thin seam between Votor's vote/certificate
// signing and verification logic and github.com/luxfi/crypto/bls, the
// BLS12-381 implementation assumed available per spec §1. It is
// grounded on the same package's use in consensus/beam/engine.go (the
// Signer interface and localsigner.FromBytes) and protocol/quasar's
// hybrid aggregation path (AggregateSignatures, AggregatePublicKeys,
// Verify).
package blssig

import (
	"fmt"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/crypto/bls/signer/localsigner"
)

// Signer produces BLS signatures with a key this validator holds. It is
// satisfied by github.com/luxfi/crypto/bls.Signer (localsigner.FromBytes
// for a validator's own key on disk).
type Signer interface {
	PublicKey() *bls.PublicKey
	Sign(msg []byte) (*bls.Signature, error)
}

// NewSignerFromBytes wraps a raw BLS secret key in a Signer.
func NewSignerFromBytes(skBytes []byte) (Signer, error) {
	s, err := localsigner.FromBytes(skBytes)
	if err != nil {
		return nil, fmt.Errorf("blssig: load signer: %w", err)
	}
	return s, nil
}

// Verify checks a single BLS signature over msg against pk.
func Verify(pk *bls.PublicKey, sig *bls.Signature, msg []byte) bool {
	if pk == nil || sig == nil {
		return false
	}
	return bls.Verify(pk, sig, msg)
}

// VerifyBytes parses a compressed signature before verifying it,
// returning false (never panicking) on a malformed signature.
func VerifyBytes(pk *bls.PublicKey, sigBytes, msg []byte) bool {
	sig, err := bls.SignatureFromBytes(sigBytes)
	if err != nil {
		return false
	}
	return Verify(pk, sig, msg)
}

// AggregateSignatures combines per-rank signatures into one aggregate.
func AggregateSignatures(sigs []*bls.Signature) (*bls.Signature, error) {
	return bls.AggregateSignatures(sigs)
}

// AggregatePublicKeys combines per-rank public keys for aggregate
// verification of a single-message certificate.
func AggregatePublicKeys(pks []*bls.PublicKey) (*bls.PublicKey, error) {
	return bls.AggregatePublicKeys(pks)
}

// SignatureToBytes returns the 96-byte compressed G2 encoding.
func SignatureToBytes(sig *bls.Signature) []byte {
	return bls.SignatureToBytes(sig)
}

// SignatureFromBytes parses a 96-byte compressed G2 signature.
func SignatureFromBytes(b []byte) (*bls.Signature, error) {
	return bls.SignatureFromBytes(b)
}

// PublicKeyToCompressedBytes returns the 48-byte compressed G1 encoding.
func PublicKeyToCompressedBytes(pk *bls.PublicKey) []byte {
	return bls.PublicKeyToCompressedBytes(pk)
}

// PublicKeyFromCompressedBytes parses a 48-byte compressed G1 key.
func PublicKeyFromCompressedBytes(b []byte) (*bls.PublicKey, error) {
	return bls.PublicKeyFromCompressedBytes(b)
}

// VerifyTwoMessageAggregate verifies an aggregate signature that mixes
// signatures over two distinct messages, as the ternary bitmap encoding
// requires: the certificate's single aggregate signature must equal the
// aggregate of (pk, digest) pairs implied by the bitmap across both
// source-vote kinds. It aggregates pksA (the signers of msgA) and pksB
// (the signers of msgB) separately and verifies the multi-message
// aggregate in one multi-pairing check.
func VerifyTwoMessageAggregate(aggSig *bls.Signature, pksA, pksB []*bls.PublicKey, msgA, msgB []byte) bool {
	if len(pksA) == 0 && len(pksB) == 0 {
		return false
	}
	var aggA, aggB *bls.PublicKey
	var err error
	if len(pksA) > 0 {
		aggA, err = bls.AggregatePublicKeys(pksA)
		if err != nil {
			return false
		}
	}
	if len(pksB) > 0 {
		aggB, err = bls.AggregatePublicKeys(pksB)
		if err != nil {
			return false
		}
	}
	return bls.VerifyMultiMessage([]*bls.PublicKey{aggA, aggB}, [][]byte{msgA, msgB}, aggSig)
}
