// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"errors"
	"time"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/votor/bitmap"
	"github.com/luxfi/votor/blssig"
	"github.com/luxfi/votor/config"
	"github.com/luxfi/votor/log"
	"github.com/luxfi/votor/metrics"
	"github.com/luxfi/votor/types"
	"github.com/luxfi/votor/validators"
)

// ErrOutOfRange is returned (and only counted, never propagated) when a
// message references a slot outside the retention window.
var ErrOutOfRange = errors.New("pool: slot out of range")

// ErrInvalidSignature is returned (and only counted) when a message
// fails BLS verification.
var ErrInvalidSignature = errors.New("pool: invalid signature")

// ErrDuplicate is returned (and only counted) when a message is an
// exact or dominated duplicate of one already ingested.
var ErrDuplicate = errors.New("pool: duplicate message")

// Pool is the Consensus Pool. It is designed to be owned exclusively by
// one goroutine (Design Notes §9): all mutation happens inside Ingest and
// Retire, both called sequentially from the Event Handler's Run loop, so
// no field needs a lock of its own.
type Pool struct {
	params   config.Parameters
	rules    map[types.CertType]types.Rule
	set      *validators.Set
	verifier Verifier
	metrics  *metrics.Pool
	log      log.Logger

	slots map[types.Slot]*slotState
	root  types.Slot

	tipSlot types.Slot
	tipHash types.Hash
	hasTip  bool

	lastObserved  types.Slot
	lastProgress  time.Time
}

// New constructs a Consensus Pool for one epoch's validator set.
func New(params config.Parameters, set *validators.Set, verifier Verifier, m *metrics.Pool, logger log.Logger) *Pool {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	if verifier == nil {
		verifier = BLSVerifier{}
	}
	return &Pool{
		params:       params,
		rules:        types.DefaultRules(params.NotarizeThresholdBps, params.FinalizeFastThresholdBps, params.NotarizeFallbackThresholdBps, params.SkipThresholdBps, params.FinalizeThresholdBps),
		set:          set,
		verifier:     verifier,
		metrics:      m,
		log:          logger,
		slots:        make(map[types.Slot]*slotState),
		lastProgress: time.Time{},
	}
}

// slotInRange reports whether slot passes the retention-horizon range
// check relative to the current root.
func (p *Pool) slotInRange(slot types.Slot) bool {
	if slot == types.MaxSlot {
		return false
	}
	if p.root > 0 && slot+types.Slot(p.params.RetentionHorizon) <= p.root {
		return false
	}
	return true
}

func (p *Pool) slotState(slot types.Slot) *slotState {
	s, ok := p.slots[slot]
	if !ok {
		s = newSlotState(slot)
		p.slots[slot] = s
	}
	return s
}

// Ingest runs one ConsensusMessage through the six-step pipeline of
// spec §4.4 and returns every event and certificate newly entailed.
func (p *Pool) Ingest(msg types.ConsensusMessage) ([]Event, []types.Certificate, error) {
	switch msg.Kind {
	case types.MessageVote:
		return p.ingestVote(msg.Vote)
	case types.MessageCertificate:
		return p.ingestCertificate(msg.Certificate)
	default:
		return nil, nil, errors.New("pool: unknown message kind")
	}
}

func (p *Pool) ingestVote(vm types.VoteMessage) ([]Event, []types.Certificate, error) {
	vote := vm.Vote

	// 1. Range check.
	if !p.slotInRange(vote.Slot) {
		if p.metrics != nil {
			p.metrics.OutOfRange.Inc()
		}
		return nil, nil, ErrOutOfRange
	}

	s := p.slotState(vote.Slot)

	// 2. Deduplication.
	if s.hasVote(vote.Kind, vote.Hash, vm.Rank) {
		if p.metrics != nil {
			p.metrics.ExistVotes.Inc()
		}
		return nil, nil, ErrDuplicate
	}

	// 3. Signature verification.
	if !p.verifier.VerifyVote(vote, vm.Rank, vm.BLSSignature, p.set) {
		if p.metrics != nil {
			p.metrics.InvalidSig.Inc()
		}
		return nil, nil, ErrInvalidSignature
	}

	// 4 & 5. Equivocation detection and insertion (tolerated: the vote
	// is aggregated regardless of whether it equivocates).
	if equivocated := s.insert(vote, vm.Rank, vm.BLSSignature); equivocated {
		if p.metrics != nil {
			p.metrics.Equivocations.Inc()
		}
		p.log.Warn("pool: equivocation detected", "slot", vote.Slot, "rank", vm.Rank)
	}

	p.observeProgress(vote.Slot)

	// 6. Threshold check.
	events, certs := p.recomputeThresholds(s, vote.Kind, vote.Hash)
	return events, certs, nil
}

func (p *Pool) ingestCertificate(cert types.Certificate) ([]Event, []types.Certificate, error) {
	if !p.slotInRange(cert.ID.Slot) {
		if p.metrics != nil {
			p.metrics.OutOfRange.Inc()
		}
		return nil, nil, ErrOutOfRange
	}

	s := p.slotState(cert.ID.Slot)

	if existing, ok := s.certs[cert.ID.Type]; ok && bitmapWeight(existing, p.rules[cert.ID.Type]) >= bitmapWeight(cert, p.rules[cert.ID.Type]) {
		if p.metrics != nil {
			p.metrics.ExistCerts.Inc()
		}
		return nil, nil, ErrDuplicate
	}

	rule, ok := p.rules[cert.ID.Type]
	if !ok {
		return nil, nil, ErrInvalidSignature
	}
	if !p.verifier.VerifyCertificate(cert, rule, p.set) {
		if p.metrics != nil {
			p.metrics.InvalidSig.Inc()
		}
		return nil, nil, ErrInvalidSignature
	}

	s.certs[cert.ID.Type] = cert
	p.observeProgress(cert.ID.Slot)
	events := p.applyCertificate(s, cert)
	return events, nil, nil
}

// bitmapWeight returns the number of ranks a certificate's bitmap marks
// as participating (not their stake), so the dedup step can compare "is
// the new certificate at least as good as the one we already have". An
// undecodable bitmap weighs -1.
func bitmapWeight(cert types.Certificate, rule types.Rule) int {
	if rule.Encoding == types.EncodingTernary {
		t, _, err := bitmap.DecodeTernary(cert.Bitmap)
		if err != nil {
			return -1
		}
		n := 0
		for _, v := range t.Trits {
			if v != bitmap.TritAbsent {
				n++
			}
		}
		return n
	}
	b, _, err := bitmap.DecodeBinary(cert.Bitmap)
	if err != nil {
		return -1
	}
	return len(b.Ranks())
}

// observeProgress marks that the pool has seen activity for slot, for
// Standstill detection.
func (p *Pool) observeProgress(slot types.Slot) {
	if slot > p.lastObserved {
		p.lastObserved = slot
	}
	p.lastProgress = time.Now()
}

// recomputeThresholds checks every certificate type whose primary or
// fallback vote kind matches kind for newly crossed thresholds at hash,
// constructing and emitting any certificate formed.
func (p *Pool) recomputeThresholds(s *slotState, kind types.Kind, hash types.Hash) ([]Event, []types.Certificate) {
	var events []Event
	var certs []types.Certificate

	for certType, rule := range p.rules {
		if rule.PrimaryKind != kind && !(rule.HasFallback && rule.FallbackKind == kind) {
			continue
		}
		if _, already := s.certs[certType]; already {
			continue
		}
		candidateHash := hash
		if !rule.Type.HasHash() {
			candidateHash = types.Hash{}
		}
		if p.fallbackRedundant(rule, s, candidateHash) {
			continue
		}

		ranks := p.contributingRanks(s, rule, candidateHash)
		stake := p.stakeOf(ranks)
		if !p.set.MeetsThreshold(stake, rule.ThresholdBps) {
			continue
		}

		cert := p.buildCertificate(s, rule, candidateHash, ranks)
		s.certs[certType] = cert
		certs = append(certs, cert)
		if p.metrics != nil {
			p.metrics.CertsFormed.WithLabelValues(certType.String()).Inc()
		}
		p.log.Debug("pool: certificate formed", "type", certType.String(), "slot", s.slot, "stake_bps", p.set.StakeBps(stake))
		events = append(events, p.applyCertificate(s, cert)...)
	}
	return events, certs
}

// fallbackRedundant reports whether rule's fallback certificate would be
// fully subsumed by a sibling non-fallback rule sharing the same primary
// vote kind (e.g. CertNotarize and CertNotarizeFallback both key off
// Notarize): if the primary kind's votes alone already meet a sibling
// rule's threshold, that sibling forms (or already has formed) on its
// own and carries the same applyCertificate effects, so forming the
// fallback certificate here would only duplicate events.
func (p *Pool) fallbackRedundant(rule types.Rule, s *slotState, hash types.Hash) bool {
	if !rule.HasFallback {
		return false
	}
	primaryStake := p.stakeOf(s.ranksFor(rule.PrimaryKind, hash))
	for _, sibling := range p.rules {
		if sibling.Type == rule.Type || sibling.HasFallback || sibling.PrimaryKind != rule.PrimaryKind {
			continue
		}
		if p.set.MeetsThreshold(primaryStake, sibling.ThresholdBps) {
			return true
		}
	}
	return false
}

// contributingRanks returns the union of ranks that cast the primary
// (and, if any, fallback) vote kind for (rule, hash) at this slot.
func (p *Pool) contributingRanks(s *slotState, rule types.Rule, hash types.Hash) map[types.Rank][]byte {
	out := make(map[types.Rank][]byte)
	for rank, sig := range s.ranksFor(rule.PrimaryKind, hash) {
		out[rank] = sig
	}
	if rule.HasFallback {
		for rank, sig := range s.ranksFor(rule.FallbackKind, hash) {
			if _, exists := out[rank]; !exists {
				out[rank] = sig
			}
		}
	}
	return out
}

func (p *Pool) stakeOf(ranks map[types.Rank][]byte) uint64 {
	var total uint64
	for rank := range ranks {
		total += p.set.StakeOf(uint32(rank))
	}
	return total
}

// buildCertificate aggregates the contributing ranks' signatures and
// builds the bitmap for rule's encoding.
func (p *Pool) buildCertificate(s *slotState, rule types.Rule, hash types.Hash, ranks map[types.Rank][]byte) types.Certificate {
	id := types.CertID{Type: rule.Type, Slot: s.slot, Hash: hash}

	if rule.Encoding == types.EncodingBinary {
		rankList := make([]uint32, 0, len(ranks))
		sigs := make([][]byte, 0, len(ranks))
		for r, sig := range ranks {
			rankList = append(rankList, uint32(r))
			sigs = append(sigs, sig)
		}
		bm := bitmap.NewBinary(p.set.Len(), rankList)
		agg := aggregateSignatures(sigs)
		return types.Certificate{ID: id, Signature: agg, Bitmap: bitmap.EncodeBinary(bm)}
	}

	primaryRanks := s.ranksFor(rule.PrimaryKind, hash)
	var sourceA, sourceB []uint32
	sigs := make([][]byte, 0, len(ranks))
	for r, sig := range ranks {
		if _, fromPrimary := primaryRanks[r]; fromPrimary {
			sourceA = append(sourceA, uint32(r))
		} else {
			sourceB = append(sourceB, uint32(r))
		}
		sigs = append(sigs, sig)
	}
	tern := bitmap.NewTernary(p.set.Len(), sourceA, sourceB)
	agg := aggregateSignatures(sigs)
	return types.Certificate{ID: id, Signature: agg, Bitmap: bitmap.EncodeTernary(tern)}
}

func aggregateSignatures(sigBytes [][]byte) []byte {
	sigs := make([]*bls.Signature, 0, len(sigBytes))
	for _, b := range sigBytes {
		sig, err := blssig.SignatureFromBytes(b)
		if err != nil {
			continue
		}
		sigs = append(sigs, sig)
	}
	agg, err := blssig.AggregateSignatures(sigs)
	if err != nil {
		return nil
	}
	return blssig.SignatureToBytes(agg)
}

// applyCertificate advances s's status machine and returns the events a
// newly-applied certificate entails.
func (p *Pool) applyCertificate(s *slotState, cert types.Certificate) []Event {
	var events []Event
	emit := func(e Event) {
		events = append(events, e)
		if p.metrics != nil {
			p.metrics.EventsEmitted.WithLabelValues(e.Kind.String()).Inc()
		}
	}

	advance := func(slot types.Slot, hash types.Hash) {
		if p.advanceTip(slot, hash) {
			if ev, ok := p.ParentReadyEvent(); ok {
				emit(ev)
			}
		}
	}

	switch cert.ID.Type {
	case types.CertNotarize, types.CertNotarizeFallback:
		firstNotarize := s.status == Open
		if firstNotarize {
			s.status = Notarized
		}
		s.notarizedHash = cert.ID.Hash
		if firstNotarize {
			emit(Event{Kind: BlockNotarized, Slot: cert.ID.Slot, Hash: cert.ID.Hash})
		}
		emit(Event{Kind: SafeToNotarize, Slot: cert.ID.Slot, Hash: cert.ID.Hash})
		advance(cert.ID.Slot, cert.ID.Hash)

	case types.CertFinalizeFast:
		firstNotarize := s.status == Open
		if s.status != Skipped {
			s.status = FinalizedStatus
		}
		s.notarizedHash = cert.ID.Hash
		s.finalized = true
		s.finalizedHash = cert.ID.Hash
		s.hasFinalHash = true
		if firstNotarize {
			emit(Event{Kind: BlockNotarized, Slot: cert.ID.Slot, Hash: cert.ID.Hash})
			emit(Event{Kind: SafeToNotarize, Slot: cert.ID.Slot, Hash: cert.ID.Hash})
		}
		emit(Event{Kind: Finalized, Slot: cert.ID.Slot, Hash: cert.ID.Hash})
		advance(cert.ID.Slot, cert.ID.Hash)

	case types.CertFinalize:
		s.finalized = true
		if s.status == Notarized {
			s.finalizedHash = s.notarizedHash
			s.hasFinalHash = true
		}
		if s.status != Skipped {
			s.status = FinalizedStatus
		}
		emit(Event{Kind: Finalized, Slot: cert.ID.Slot, Hash: s.finalizedHash})
		if s.hasFinalHash {
			advance(cert.ID.Slot, s.finalizedHash)
		}

	case types.CertSkip:
		if s.status != FinalizedStatus {
			s.status = Skipped
		}
		emit(Event{Kind: SafeToSkip, Slot: cert.ID.Slot})

	case types.CertGenesis:
		if s.status == Open {
			s.status = Notarized
		}
		s.notarizedHash = cert.ID.Hash
		emit(Event{Kind: BlockNotarized, Slot: cert.ID.Slot, Hash: cert.ID.Hash})
		advance(cert.ID.Slot, cert.ID.Hash)
	}

	return events
}

// advanceTip updates the pool's view of the canonical chain tip,
// reporting whether the tip actually moved.
func (p *Pool) advanceTip(slot types.Slot, hash types.Hash) bool {
	if p.hasTip && slot <= p.tipSlot {
		return false
	}
	p.tipSlot = slot
	p.tipHash = hash
	p.hasTip = true
	return true
}

// ParentReadyEvent returns the ParentReady event for the slot
// immediately following the current tip, or false if no tip has been
// set yet. applyCertificate emits it each time a certificate moves the
// tip forward, since ParentReady depends on global tip state rather than
// one slot's votes.
func (p *Pool) ParentReadyEvent() (Event, bool) {
	if !p.hasTip {
		return Event{}, false
	}
	return Event{
		Kind:   ParentReady,
		Slot:   p.tipSlot + 1,
		Parent: types.BlockID{Slot: p.tipSlot, Hash: p.tipHash},
	}, true
}

// EquivocatingRanks returns every rank flagged for casting conflicting
// votes at slot.
func (p *Pool) EquivocatingRanks(slot types.Slot) []types.Rank {
	s, ok := p.slots[slot]
	if !ok {
		return nil
	}
	out := make([]types.Rank, 0, len(s.equivocators))
	for r := range s.equivocators {
		out = append(out, r)
	}
	return out
}

// Retire prunes every slot state at or below root minus the retention
// horizon, and records root as the pool's new floor for the range check.
func (p *Pool) Retire(root types.Slot) {
	p.root = root
	horizon := types.Slot(p.params.RetentionHorizon)
	if root < horizon {
		return
	}
	floor := root - horizon
	for slot := range p.slots {
		if slot <= floor {
			delete(p.slots, slot)
			if p.metrics != nil {
				p.metrics.SlotsRetired.Inc()
			}
		}
	}
}

// Health reports the pool's liveness for the api/health-style readiness
// surface: the highest slot observed and whether standstill is current.
type Health struct {
	LastObserved  types.Slot
	SinceProgress time.Duration
	Standstill    bool
}

// Health returns the pool's current liveness snapshot.
func (p *Pool) Health() Health {
	since := time.Since(p.lastProgress)
	return Health{
		LastObserved:  p.lastObserved,
		SinceProgress: since,
		Standstill:    since >= p.params.StandstillInterval,
	}
}
