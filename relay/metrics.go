// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Failure reasons
const (
	reasonFetch    = "fetch"
	reasonResolve  = "resolve"
	reasonPost     = "post"
	reasonDeliver  = "deliver"
	reasonRequest  = "request"
	reasonCanceled = "canceled"
)

type metrics struct {
	relayedMessages   *prometheus.CounterVec
	duplicateMessages *prometheus.CounterVec
	failedMessages    *prometheus.CounterVec
	relayLatencyMS    *prometheus.GaugeVec
	planCacheHits     prometheus.Counter
}

func newMetrics(registerer prometheus.Registerer) *metrics {
	m := metrics{
		relayedMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hello_relayer_relayed_message_count",
				Help: "Number of messages delivered to the destination program",
			},
			[]string{"source_chain", "destination_chain"},
		),
		duplicateMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hello_relayer_duplicate_message_count",
				Help: "Number of messages the destination had already received",
			},
			[]string{"source_chain", "destination_chain"},
		),
		failedMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hello_relayer_failed_message_count",
				Help: "Number of messages that failed to relay",
			},
			[]string{"source_chain", "destination_chain", "failure_reason"},
		),
		relayLatencyMS: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hello_relayer_relay_latency_ms",
				Help: "Latency of the last relay from request to delivery in milliseconds",
			},
			[]string{"source_chain", "destination_chain"},
		),
		planCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hello_relayer_plan_cache_hits",
				Help: "Number of delivery plans served from the cache",
			},
		),
	}

	registerer.MustRegister(m.relayedMessages)
	registerer.MustRegister(m.duplicateMessages)
	registerer.MustRegister(m.failedMessages)
	registerer.MustRegister(m.relayLatencyMS)
	registerer.MustRegister(m.planCacheHits)

	return &m
}
