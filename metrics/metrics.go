// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics wires the Consensus Pool's and Event Handler's
// counters into a prometheus.Registerer, the way api/metrics wires the
// sampling-layer counters for the rest of the validator.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pool holds the Consensus Pool's ingest-pipeline counters: one per drop
// reason named in spec §4.4, plus certificate and equivocation counts.
type Pool struct {
	ExistVotes      prometheus.Counter
	ExistCerts      prometheus.Counter
	OutOfRange      prometheus.Counter
	InvalidSig      prometheus.Counter
	Equivocations   prometheus.Counter
	CertsFormed     *prometheus.CounterVec
	EventsEmitted   *prometheus.CounterVec
	SlotsRetired    prometheus.Counter
}

// NewPool registers and returns the Consensus Pool's metrics under the
// given namespace.
func NewPool(namespace string, reg prometheus.Registerer) (*Pool, error) {
	p := &Pool{
		ExistVotes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "exist_votes_total",
			Help: "Votes dropped because an identical (rank, vote) was already seen.",
		}),
		ExistCerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "exist_certs_total",
			Help: "Certificates dropped because a certificate of equal or greater bitmap weight was already known.",
		}),
		OutOfRange: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "out_of_range_total",
			Help: "Messages dropped for referencing a slot outside the retention window.",
		}),
		InvalidSig: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "invalid_signature_total",
			Help: "Messages dropped for failing BLS signature verification.",
		}),
		Equivocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "equivocations_total",
			Help: "Distinct (rank, slot) pairs observed casting conflicting votes.",
		}),
		CertsFormed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "certificates_formed_total",
			Help: "Certificates formed, by certificate type.",
		}, []string{"type"}),
		EventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_emitted_total",
			Help: "High-level events emitted to the Event Handler, by event type.",
		}, []string{"event"}),
		SlotsRetired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "slots_retired_total",
			Help: "Per-slot pool state retired after the root advanced past the retention horizon.",
		}),
	}
	for _, c := range []prometheus.Collector{
		p.ExistVotes, p.ExistCerts, p.OutOfRange, p.InvalidSig,
		p.Equivocations, p.CertsFormed, p.EventsEmitted, p.SlotsRetired,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// NewPoolForTest builds a Pool registered against a fresh, unshared
// registry so package tests never collide on global metric names.
func NewPoolForTest() *Pool {
	p, err := NewPool("votor_test", prometheus.NewRegistry())
	if err != nil {
		panic(err)
	}
	return p
}
