// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes prometheus instrumentation for the upload core.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	// LabelKind is the retry classification of a failed attempt.
	LabelKind = "kind"
	// LabelSucceeded marks a series as success or failure.
	LabelSucceeded = "succeeded"
	// ValueSucceededTrue is value True for metric label succeeded.
	ValueSucceededTrue = "true"
	// ValueSucceededFalse is value False for metric label succeeded.
	ValueSucceededFalse = "false"

	namespaceQuarkStor = "quarkstor"
	subsystemUpload    = "upload"
	subsystemDispatch  = "dispatch"
)

var (
	// AttemptFailures counts failed request attempts by retry kind.
	AttemptFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceQuarkStor,
			Subsystem: subsystemDispatch,
			Name:      "attempt_failures_total",
			Help:      "Total number of failed request attempts by retry classification.",
		},
		[]string{LabelKind},
	)

	// RetryWaitSeconds observes the cumulative backoff wait per logical request.
	RetryWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespaceQuarkStor,
			Subsystem: subsystemDispatch,
			Name:      "retry_wait_seconds",
			Help:      "Backoff wait accumulated by one logical request.",
		},
	)

	// FrozenEndpoints tracks the number of endpoint addresses currently
	// frozen after repeated failures.
	FrozenEndpoints = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespaceQuarkStor,
			Subsystem: subsystemDispatch,
			Name:      "frozen_endpoints",
			Help:      "Number of endpoint addresses currently frozen after repeated failures.",
		},
	)

	// PartsUploaded counts confirmed part uploads.
	PartsUploaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceQuarkStor,
			Subsystem: subsystemUpload,
			Name:      "parts_total",
			Help:      "Total number of confirmed part uploads.",
		},
	)

	// PartsResumed counts parts skipped because a valid record existed.
	PartsResumed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceQuarkStor,
			Subsystem: subsystemUpload,
			Name:      "parts_resumed_total",
			Help:      "Total number of parts skipped thanks to resumable records.",
		},
	)

	// BytesUploaded counts the bytes confirmed by the service.
	BytesUploaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceQuarkStor,
			Subsystem: subsystemUpload,
			Name:      "bytes_total",
			Help:      "Total number of object bytes confirmed by the service.",
		},
	)

	// UploadDurationSeconds observes whole upload latency.
	UploadDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespaceQuarkStor,
			Subsystem: subsystemUpload,
			Name:      "duration_seconds",
			Help:      "Latency distribution of whole uploads.",
		},
		[]string{LabelSucceeded},
	)
)

func init() {
	prometheus.MustRegister(AttemptFailures)
	prometheus.MustRegister(RetryWaitSeconds)
	prometheus.MustRegister(FrozenEndpoints)
	prometheus.MustRegister(PartsUploaded)
	prometheus.MustRegister(PartsResumed)
	prometheus.MustRegister(BytesUploaded)
	prometheus.MustRegister(UploadDurationSeconds)
}
