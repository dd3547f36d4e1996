// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package votor implements the Event Handler: the Votor main loop. It
// is the single-threaded cooperative decision-maker described in spec
// §4.6 — one select over inbound consensus messages, block-replay
// notifications and timer firings, dispatching to the Consensus Pool,
// the Timer Manager and the Voting Service and notifying the declared
// external collaborators on root advance. It follows the teacher's
// engine/chain event-loop shape (engine/chain/engine.go): a struct
// owning its dependencies by construction, a blocking Run loop, and a
// cooperative shutdown handshake rather than a context cancellation
// race.
package votor

import (
	"context"
	"sync"
	"time"

	"github.com/luxfi/votor/config"
	"github.com/luxfi/votor/log"
	"github.com/luxfi/votor/pool"
	"github.com/luxfi/votor/timer"
	"github.com/luxfi/votor/types"
	"github.com/luxfi/votor/voting"
)

// BankForks is the external collaborator that owns replayed/executed
// bank state. It is declared, not implemented, per spec §1's
// deliberately-out-of-scope boundary.
type BankForks interface {
	// SetRoot advances the bank-forks structure's root to slot,
	// squashing ancestor banks.
	SetRoot(slot types.Slot)
}

// LeaderScheduleCache answers whether this validator leads slot's
// window, an external collaborator the handler consults before
// emitting a leader-window start signal.
type LeaderScheduleCache interface {
	IsLeader(slot types.Slot) bool
}

// SnapshotController is notified on root advance so it may consider
// taking a new snapshot. Optional: a nil SnapshotController is a valid
// configuration (no snapshots configured).
type SnapshotController interface {
	Snapshot(slot types.Slot)
}

// RPCSubscriptions is notified of root and finalization events so RPC
// subscribers observing slot/account state updates can be served.
type RPCSubscriptions interface {
	NotifyRoot(slot types.Slot)
	NotifyFinalized(slot types.Slot, hash types.Hash)
}

// LeaderWindowInfo is emitted to the block-creation collaborator once
// ParentReady names an acceptable parent for a window this validator
// leads.
type LeaderWindowInfo struct {
	Slot   types.Slot
	Parent types.BlockID
}

// BlockCreator is the leader (block production) pipeline, declared out
// of scope per spec §1 and consulted only through this interface.
type BlockCreator interface {
	StartLeaderWindow(info LeaderWindowInfo)
}

// BlockReplayed is delivered by the (out-of-scope) replay/execution
// pipeline once it has finished replaying a candidate block, the
// trigger for this validator's own notarize decision.
type BlockReplayed struct {
	Slot types.Slot
	Hash types.Hash
}

// Collaborators bundles every external dependency the handler notifies
// or consults; any field may be nil except where noted, and a nil
// collaborator is simply skipped.
type Collaborators struct {
	BankForks           BankForks
	LeaderScheduleCache LeaderScheduleCache
	SnapshotController  SnapshotController
	RPCSubscriptions    RPCSubscriptions
	BlockCreator        BlockCreator

	// BankNotify and DropBank mirror spec §4.6's "bank-notification
	// channel" and "drop-bank channel for old banks"; either may be nil
	// to skip that notification.
	BankNotify chan<- types.Slot
	DropBank   chan<- types.Slot
}

// perSlotVotes tracks which vote kinds this validator has already cast
// for a slot, keyed by the hash-bearing kinds' chosen hash where
// relevant, so the dispatch table's "if not already voted" guards are
// decidable without re-deriving state from vote history.
type perSlotVotes struct {
	notarizedHash types.Hash
	hasNotarize   bool
	hasSkip       bool
	hasFinalize   bool
	hasFallback   bool
}

// Handler is the Event Handler (Votor main loop).
type Handler struct {
	pool   *pool.Pool
	timers *timer.Manager
	voter  *voting.Service
	params config.Parameters
	log    log.Logger

	epoch uint64
	rank  types.Rank

	collab Collaborators

	mu            sync.Mutex
	votes         map[types.Slot]*perSlotVotes
	notarizedHash map[types.Slot]types.Hash // observed from BlockNotarized events

	certsBySlot map[types.Slot][]types.Certificate // for standstill re-broadcast

	root   types.Slot
	rooted bool

	waitingForVoteToStartLeader bool
}

// Config bundles Handler's construction dependencies.
type Config struct {
	Pool          *pool.Pool
	Timers        *timer.Manager
	Voter         *voting.Service
	Params        config.Parameters
	Log           log.Logger
	Epoch         uint64
	Rank          types.Rank
	Collaborators Collaborators
}

// New constructs an Event Handler.
func New(cfg Config) *Handler {
	logger := cfg.Log
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Handler{
		pool:          cfg.Pool,
		timers:        cfg.Timers,
		voter:         cfg.Voter,
		params:        cfg.Params,
		log:           logger,
		epoch:         cfg.Epoch,
		rank:          cfg.Rank,
		collab:        cfg.Collaborators,
		votes:         make(map[types.Slot]*perSlotVotes),
		notarizedHash: make(map[types.Slot]types.Hash),
		certsBySlot:   make(map[types.Slot][]types.Certificate),
		waitingForVoteToStartLeader: cfg.Params.WaitForVoteToStartLeaderWindow,
	}
}

func (h *Handler) slotVotes(slot types.Slot) *perSlotVotes {
	v, ok := h.votes[slot]
	if !ok {
		v = &perSlotVotes{}
		h.votes[slot] = v
	}
	return v
}

// Run is the main loop: one select over inbound consensus messages,
// block-replay notifications, timer firings and the standstill
// watchdog, until shutdown fires. It returns only after every timer
// callback in flight at shutdown has drained.
func (h *Handler) Run(ctx context.Context, msgs <-chan types.ConsensusMessage, replayed <-chan BlockReplayed, timerEvents <-chan timer.Event, shutdown <-chan struct{}) {
	standstill := time.NewTicker(h.params.StandstillInterval / 4)
	defer standstill.Stop()

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				h.timers.Shutdown()
				h.timers.Wait()
				return
			}
			h.handleMessage(msg)

		case ev, ok := <-replayed:
			if !ok {
				h.timers.Shutdown()
				h.timers.Wait()
				return
			}
			h.handleReplayed(ev)

		case ev, ok := <-timerEvents:
			if !ok {
				h.timers.Shutdown()
				h.timers.Wait()
				return
			}
			h.handleTimer(ev)

		case <-standstill.C:
			h.checkStandstill()

		case <-shutdown:
			h.timers.Shutdown()
			h.timers.Wait()
			return

		case <-ctx.Done():
			h.timers.Shutdown()
			h.timers.Wait()
			return
		}
	}
}

func (h *Handler) handleMessage(msg types.ConsensusMessage) {
	events, certs, err := h.pool.Ingest(msg)
	if err != nil {
		h.log.Debug("votor: message dropped", "err", err)
		return
	}
	if msg.Kind == types.MessageCertificate {
		h.recordCert(msg.Certificate)
	}
	for _, c := range certs {
		h.recordCert(c)
	}
	for _, ev := range events {
		h.handlePoolEvent(ev)
	}
}

func (h *Handler) recordCert(c types.Certificate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	slot := c.ID.Slot
	for i, existing := range h.certsBySlot[slot] {
		if existing.ID.Type == c.ID.Type {
			h.certsBySlot[slot][i] = c
			return
		}
	}
	h.certsBySlot[slot] = append(h.certsBySlot[slot], c)
}

// handleReplayed implements the BlockReplayed row of spec §4.6's
// dispatch table: arm the Notarize timer and, if this validator has
// not yet voted on the slot, request a Notarize vote.
func (h *Handler) handleReplayed(ev BlockReplayed) {
	h.timers.Arm(ev.Slot, timer.Notarize, h.params.NotarizeTimeout)

	h.mu.Lock()
	v := h.slotVotes(ev.Slot)
	already := v.hasNotarize || v.hasSkip
	h.mu.Unlock()
	if already {
		return
	}

	h.requestVote(types.Notarize(ev.Slot, ev.Hash))
}

func (h *Handler) handleTimer(ev timer.Event) {
	switch ev.Key.Kind {
	case timer.Skip:
		h.mu.Lock()
		v := h.slotVotes(ev.Key.Slot)
		already := v.hasNotarize || v.hasSkip
		h.mu.Unlock()
		if already {
			return
		}
		h.requestVote(types.Skip(ev.Key.Slot))

	case timer.Notarize:
		h.mu.Lock()
		v := h.slotVotes(ev.Key.Slot)
		hash, votedNotarize := v.notarizedHash, v.hasNotarize
		h.mu.Unlock()
		if !votedNotarize {
			return
		}
		h.requestVote(types.NotarizeFallback(ev.Key.Slot, hash))
	}
}

// handlePoolEvent implements the five pool-driven rows of spec §4.6's
// dispatch table.
func (h *Handler) handlePoolEvent(ev pool.Event) {
	switch ev.Kind {
	case pool.BlockNotarized:
		h.mu.Lock()
		h.notarizedHash[ev.Slot] = ev.Hash
		h.mu.Unlock()

	case pool.SafeToNotarize:
		h.mu.Lock()
		v := h.slotVotes(ev.Slot)
		already := v.hasFinalize
		h.mu.Unlock()
		if !already {
			h.requestVote(types.Finalize(ev.Slot))
		}

	case pool.SafeToSkip:
		h.mu.Lock()
		_, hasNotarizeCert := h.notarizedHash[ev.Slot]
		v := h.slotVotes(ev.Slot)
		already := v.hasFallback
		h.mu.Unlock()
		if !hasNotarizeCert && !already {
			h.requestVote(types.SkipFallback(ev.Slot))
		}

	case pool.Finalized:
		h.advanceRoot(ev.Slot, ev.Hash)

	case pool.ParentReady:
		if h.collab.LeaderScheduleCache != nil && h.collab.LeaderScheduleCache.IsLeader(ev.Parent.Slot+1) {
			if h.waitingForVoteToStartLeader {
				h.log.Debug("votor: suppressing leader window start, waiting for own vote to root", "slot", ev.Slot)
				return
			}
			if h.collab.BlockCreator != nil {
				h.collab.BlockCreator.StartLeaderWindow(LeaderWindowInfo{Slot: ev.Slot, Parent: ev.Parent})
			}
		}

	case pool.Standstill:
		h.rebroadcast(ev.Slot)
	}
}

// requestVote drives the Voting Service and records locally which vote
// kinds have been cast so later dispatch-table guards don't re-request
// them. advanceRoot reads that record to clear the one-shot liveness
// guard once this validator's own vote roots.
func (h *Handler) requestVote(vote types.Vote) {
	if err := h.voter.Sign(h.epoch, vote); err != nil {
		h.log.Warn("votor: vote request failed", "vote", vote.String(), "err", err)
		return
	}

	h.mu.Lock()
	v := h.slotVotes(vote.Slot)
	switch vote.Kind {
	case types.KindNotarize:
		v.hasNotarize = true
		v.notarizedHash = vote.Hash
	case types.KindSkip:
		v.hasSkip = true
	case types.KindNotarizeFallback:
		v.hasFallback = true
	case types.KindSkipFallback:
		v.hasFallback = true
	case types.KindFinalize:
		v.hasFinalize = true
	}
	h.mu.Unlock()
}

// advanceRoot implements spec §4.6's rooting policy: monotonic root
// advance, squashing/pruning the Consensus Pool and notifying every
// configured external collaborator.
func (h *Handler) advanceRoot(slot types.Slot, hash types.Hash) {
	h.mu.Lock()
	if h.rooted && slot <= h.root {
		h.mu.Unlock()
		return
	}
	h.root = slot
	h.rooted = true
	wasWaiting := h.waitingForVoteToStartLeader
	v, hasVotes := h.votes[slot]
	ownVoteRooted := hasVotes && (v.hasNotarize || v.hasFinalize)
	if wasWaiting && ownVoteRooted {
		h.waitingForVoteToStartLeader = false
	}
	for s := range h.certsBySlot {
		if s <= slot {
			delete(h.certsBySlot, s)
		}
	}
	h.mu.Unlock()

	h.pool.Retire(slot)
	h.timers.CancelThrough(slot)

	if h.collab.BankForks != nil {
		h.collab.BankForks.SetRoot(slot)
	}
	if h.collab.SnapshotController != nil {
		h.collab.SnapshotController.Snapshot(slot)
	}
	if h.collab.BankNotify != nil {
		select {
		case h.collab.BankNotify <- slot:
		default:
		}
	}
	if h.collab.DropBank != nil {
		select {
		case h.collab.DropBank <- slot:
		default:
		}
	}
	if h.collab.RPCSubscriptions != nil {
		h.collab.RPCSubscriptions.NotifyRoot(slot)
		h.collab.RPCSubscriptions.NotifyFinalized(slot, hash)
	}

	h.log.Info("votor: root advanced", "slot", slot, "hash", hash)
}

// checkStandstill polls the pool's liveness snapshot and, if standstill
// is current, emits the same re-broadcast behavior a Standstill event
// from the pool would trigger. The pool's own Standstill event kind
// exists for the case where Ingest's caller already has a fresh
// Health() reading; this ticker covers the case where no message has
// arrived at all to trigger a check.
func (h *Handler) checkStandstill() {
	health := h.pool.Health()
	if !health.Standstill {
		return
	}
	h.rebroadcast(health.LastObserved)
}

// rebroadcast re-publishes the latest known certificate for every slot
// at or below upTo, onto the outbound channel via the Voting Service's
// shared sender — Standstill recovery per spec §4.6.
func (h *Handler) rebroadcast(upTo types.Slot) {
	h.mu.Lock()
	certs := make([]types.Certificate, 0)
	for slot, cs := range h.certsBySlot {
		if slot <= upTo {
			certs = append(certs, cs...)
		}
	}
	h.mu.Unlock()

	for _, c := range certs {
		h.voter.Rebroadcast(types.CertConsensusMessage(c))
	}
}

// Root returns the highest rooted slot observed so far.
func (h *Handler) Root() (types.Slot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.root, h.rooted
}
