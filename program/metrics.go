// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package program

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	greetingsSent     prometheus.Counter
	greetingsReceived *prometheus.CounterVec
	duplicates        *prometheus.CounterVec
	plansResolved     *prometheus.CounterVec
	relayRequests     *prometheus.CounterVec
}

func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		greetingsSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hello_greetings_sent_count",
				Help: "Number of greetings published through the bridge",
			},
		),
		greetingsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hello_greetings_received_count",
				Help: "Number of greetings accepted from peers",
			},
			[]string{"source_chain"},
		),
		duplicates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hello_duplicate_delivery_count",
				Help: "Number of delivery attempts rejected as already received",
			},
			[]string{"source_chain"},
		),
		plansResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hello_plans_resolved_count",
				Help: "Number of execution plans built, including simulated resolves",
			},
			[]string{"entry_point"},
		),
		relayRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hello_relay_request_count",
				Help: "Number of relay requests paid to the executor",
			},
			[]string{"destination_chain"},
		),
	}
	if registerer == nil {
		return m, nil
	}
	return m, errors.Join(
		registerer.Register(m.greetingsSent),
		registerer.Register(m.greetingsReceived),
		registerer.Register(m.duplicates),
		registerer.Register(m.plansResolved),
		registerer.Register(m.relayRequests),
	)
}

func chainLabel(chain uint16) string {
	return strconv.FormatUint(uint64(chain), 10)
}
