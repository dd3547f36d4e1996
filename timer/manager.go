// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package timer implements the Timer Manager: per-slot skip/notarize
// timeouts that drive liveness. Cancellation races are resolved with a
// generation counter per (slot, kind) key (Design Notes §9) rather than
// a synchronous cancel/fire rendezvous — a fired event carrying a stale
// generation is simply discarded by the Event Handler.
package timer

import (
	"sync"
	"time"

	"github.com/luxfi/votor/types"
)

// Kind distinguishes the two timeout classes the Event Handler arms.
type Kind uint8

const (
	// Skip is the per-slot skip-vote timeout.
	Skip Kind = iota
	// Notarize is the per-slot notarize-fallback timeout.
	Notarize
)

// String names the timer kind for logging.
func (k Kind) String() string {
	if k == Skip {
		return "Skip"
	}
	return "Notarize"
}

// Key identifies one armed timer.
type Key struct {
	Slot types.Slot
	Kind Kind
}

// Event is delivered on the shared channel when a timer fires. The Event
// Handler must discard any Event whose Generation does not match the
// generation Manager currently has recorded for Key — that indicates the
// timer was cancelled (or re-armed after cancellation) after this
// firing was already in flight.
type Event struct {
	Key        Key
	Generation uint64
}

type armed struct {
	generation uint64
	timer      *time.Timer
}

// Manager owns the set of armed timers. All mutation happens on
// whichever goroutine calls Arm/Cancel/CancelThrough/Shutdown; a firing
// callback only compares the stored generation with its own and, when
// they match, removes its entry before sending.
type Manager struct {
	mu          sync.Mutex
	armed       map[Key]*armed
	generations map[Key]uint64
	out         chan<- Event
	done        chan struct{}
	wg          sync.WaitGroup
}

// NewManager constructs a Timer Manager that delivers fired events on
// out, a bounded channel shared with the Event Handler.
func NewManager(out chan<- Event) *Manager {
	return &Manager{
		armed: make(map[Key]*armed),
		out:   out,
		done:  make(chan struct{}),
	}
}

// Arm schedules a timeout for (slot, kind) after duration. It is
// idempotent: a second Arm for the same key while one is already armed
// is a no-op — first wins.
func (m *Manager) Arm(slot types.Slot, kind Kind, duration time.Duration) {
	key := Key{Slot: slot, Kind: kind}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.armed[key]; exists {
		return
	}

	select {
	case <-m.done:
		return
	default:
	}

	gen := m.nextGeneration(key)
	a := &armed{generation: gen}
	m.wg.Add(1)
	a.timer = time.AfterFunc(duration, func() {
		defer m.wg.Done()
		m.fire(key, gen)
	})
	m.armed[key] = a
}

// nextGeneration must be called with mu held. It hands back a
// monotonically increasing generation per key without retaining history
// for keys that have never been armed, by tracking the last-used
// generation in a side map that survives across Cancel.
func (m *Manager) nextGeneration(key Key) uint64 {
	if m.generations == nil {
		m.generations = make(map[Key]uint64)
	}
	m.generations[key]++
	return m.generations[key]
}

func (m *Manager) fire(key Key, generation uint64) {
	m.mu.Lock()
	cur, exists := m.armed[key]
	if !exists || cur.generation != generation {
		m.mu.Unlock()
		return
	}
	delete(m.armed, key)
	m.mu.Unlock()

	select {
	case m.out <- Event{Key: key, Generation: generation}:
	case <-m.done:
	}
}

// Cancel removes an armed timer without firing it. A timer already in
// flight whose callback has not yet taken mu will observe the deleted
// entry (or a new generation from a subsequent Arm) and will not send.
func (m *Manager) Cancel(slot types.Slot, kind Kind) {
	key := Key{Slot: slot, Kind: kind}
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.armed[key]; ok {
		if a.timer.Stop() {
			m.wg.Done()
		}
		delete(m.armed, key)
	}
}

// CancelThrough bulk-cancels every armed timer for a slot at or below
// the given slot, e.g. after the root advances.
func (m *Manager) CancelThrough(slot types.Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, a := range m.armed {
		if key.Slot <= slot {
			if a.timer.Stop() {
				m.wg.Done()
			}
			delete(m.armed, key)
		}
	}
}

// Shutdown cancels every pending timer and returns without blocking on
// any in-flight firing callback; callers that need firing goroutines
// fully drained can use Wait after Shutdown.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	select {
	case <-m.done:
	default:
		close(m.done)
	}
	for key, a := range m.armed {
		if a.timer.Stop() {
			m.wg.Done()
		}
		delete(m.armed, key)
	}
	m.mu.Unlock()
}

// Wait blocks until every timer callback that was in flight at Shutdown
// time has returned. It is separate from Shutdown so Shutdown itself
// never blocks.
func (m *Manager) Wait() {
	m.wg.Wait()
}
