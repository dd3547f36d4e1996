// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package voting implements the Voting Service: the sole component
// authorized to sign this validator's own votes. It is grounded on the
// vote-history/signing pipeline described in Design Notes §9 — record
// before send, fail-closed on conflict or durable-write failure — and
// on the teacher's key-rotation cache pattern in protocol/quasar/bls.go.
package voting

import (
	"fmt"
	"sync"

	"github.com/luxfi/votor/blssig"
	"github.com/luxfi/votor/log"
	"github.com/luxfi/votor/types"
	"github.com/luxfi/votor/votehistory"
)

// KeyLookup resolves the authorized voter key for an epoch. The caller
// typically backs this with the active epoch's staking configuration;
// the returned bytes are a raw BLS secret key.
type KeyLookup func(epoch uint64) ([]byte, error)

// cachedSigner pairs a derived signer with the raw key it was derived
// from, so a lookup returning the same bytes again is a cache hit.
type cachedSigner struct {
	keyBytes string
	signer   blssig.Signer
}

// Service is the Voting Service. One Service is owned by exactly one
// Event Handler thread. Sign and PublicKeyFor hold mu for their whole
// run, so vote-history's conflict check and record are atomic with
// respect to each other even if Sign is called from several goroutines.
type Service struct {
	mu sync.Mutex

	history  votehistory.Storage
	lookup   KeyLookup
	rankOf   func(epoch uint64) (types.Rank, error)
	outbound chan<- types.ConsensusMessage
	ownVotes chan<- types.ConsensusMessage
	log      log.Logger

	signers map[uint64]cachedSigner
}

// Config bundles Service's construction dependencies.
type Config struct {
	History  votehistory.Storage
	Lookup   KeyLookup
	RankOf   func(epoch uint64) (types.Rank, error)
	Outbound chan<- types.ConsensusMessage
	OwnVotes chan<- types.ConsensusMessage
	Log      log.Logger
}

// New constructs a Voting Service.
func New(cfg Config) *Service {
	logger := cfg.Log
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Service{
		history:  cfg.History,
		lookup:   cfg.Lookup,
		rankOf:   cfg.RankOf,
		outbound: cfg.Outbound,
		ownVotes: cfg.OwnVotes,
		log:      logger,
		signers:  make(map[uint64]cachedSigner),
	}
}

// Sign runs the six-step pipeline of spec §4.5: vote-history conflict
// check, durable record, BLS sign, VoteMessage construction, outbound
// publish, and local ingestion by the Consensus Pool. It is fail-closed:
// a vote-history conflict or a durable-write failure aborts before any
// signature is produced and nothing is sent.
func (s *Service) Sign(epoch uint64, vote types.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.history.WouldEquivocate(vote.Slot, vote) {
		return fmt.Errorf("voting: %w", votehistory.ErrEquivocation)
	}

	if err := s.history.Record(vote.Slot, vote); err != nil {
		return fmt.Errorf("voting: record vote: %w", err)
	}

	signer, err := s.signerFor(epoch)
	if err != nil {
		return fmt.Errorf("voting: resolve signer: %w", err)
	}

	sig, err := signer.Sign(types.CanonicalVoteBytes(vote))
	if err != nil {
		return fmt.Errorf("voting: sign vote: %w", err)
	}

	rank, err := s.rankOf(epoch)
	if err != nil {
		return fmt.Errorf("voting: resolve rank: %w", err)
	}

	vm := types.VoteMessage{
		Vote:         vote,
		BLSSignature: blssig.SignatureToBytes(sig),
		Rank:         rank,
	}
	msg := types.VoteConsensusMessage(vm)

	s.outbound <- msg
	s.ownVotes <- msg

	s.log.Info("voting: signed vote", "vote", vote.String(), "rank", rank)
	return nil
}

// signerFor returns the cached signer for epoch, deriving and caching
// one if the key lookup returns bytes not already cached for that
// epoch (e.g. the authorized voter key rotated).
func (s *Service) signerFor(epoch uint64) (blssig.Signer, error) {
	keyBytes, err := s.lookup(epoch)
	if err != nil {
		return nil, err
	}
	keyStr := string(keyBytes)

	if cached, ok := s.signers[epoch]; ok && cached.keyBytes == keyStr {
		return cached.signer, nil
	}

	signer, err := blssig.NewSignerFromBytes(keyBytes)
	if err != nil {
		return nil, err
	}
	s.signers[epoch] = cachedSigner{keyBytes: keyStr, signer: signer}
	return signer, nil
}

// Rebroadcast re-publishes an already-formed message (typically a
// certificate) onto the outbound channel, for Standstill recovery. It
// does not touch vote history and is safe to call for messages this
// validator did not originate.
func (s *Service) Rebroadcast(msg types.ConsensusMessage) {
	s.outbound <- msg
}

// PublicKeyFor returns the compressed public key the service is
// currently signing with for epoch, primarily for diagnostics and
// tests asserting the correct key rotated in.
func (s *Service) PublicKeyFor(epoch uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	signer, err := s.signerFor(epoch)
	if err != nil {
		return nil, err
	}
	return blssig.PublicKeyToCompressedBytes(signer.PublicKey()), nil
}
