// Package metrics provides Prometheus metrics for the dispatcher and the host emulator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wanremote"

var (
	// DispatchesTotal counts dispatches by result.
	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "dispatches_total",
			Help:      "Total number of remote encode dispatches by result",
		},
		[]string{"result"}, // "succeeded", "transport", "rejected", "timeout", "decode", "canceled", "failed"
	)

	// DispatchDuration tracks end-to-end dispatch latency.
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "dispatch_duration_seconds",
			Help:      "Dispatch duration from submission to decoded artifact",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"result"},
	)

	// PollAttemptsTotal counts history polls by outcome.
	PollAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "poll_attempts_total",
			Help:      "History poll attempts by outcome",
		},
		[]string{"outcome"}, // "done", "pending", "error"
	)

	// ArtifactBytes tracks the size of artifacts moved over the wire.
	ArtifactBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "artifact_bytes",
			Help:      "Size of encoded artifacts",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		},
		[]string{"role"}, // "collector", "dispatcher"
	)

	// CollectorSavesTotal counts collector writes by result.
	CollectorSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "saves_total",
			Help:      "Artifacts persisted by the collector by result",
		},
		[]string{"result"}, // "succeeded", "failed"
	)

	// PromptsTotal counts prompts finished by the host emulator by status.
	PromptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "prompts_total",
			Help:      "Prompts executed by the host by final status",
		},
		[]string{"status"},
	)

	// QueueDepth tracks pending prompts on the host emulator.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "queue_depth",
			Help:      "Number of prompts waiting for execution",
		},
	)

	// HTTPRequestsTotal counts host HTTP requests by route and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "http_requests_total",
			Help:      "HTTP requests served by the host",
		},
		[]string{"method", "route", "code"},
	)
)
