// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "safezone"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	SamplesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_processed_total",
			Help:      "Device samples accepted for processing, by source",
		},
		[]string{"source"},
	)

	SamplesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_rejected_total",
			Help:      "Device samples dropped, by reason",
		},
		[]string{"reason"},
	)

	ZoneEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zone_events_total",
			Help:      "Zone evaluations, by event type",
		},
		[]string{"event_type"},
	)

	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_created_total",
			Help:      "Alerts persisted, by type and priority",
		},
		[]string{"alert_type", "priority"},
	)

	AlertsDeduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_deduplicated_total",
			Help:      "Alert requests answered with an existing alert",
		},
		[]string{"alert_type"},
	)

	AlertsCapped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_capped_total",
			Help:      "Alerts stored without notifying contacts because the daily cap was reached",
		},
		[]string{"alert_type"},
	)

	NotificationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_outcomes_total",
			Help:      "Per-channel notification outcomes",
		},
		[]string{"channel", "status"},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time to fan one alert out to every recipient",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	DispatchQueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_queue_dropped_total",
			Help:      "Dispatch tasks dropped because the queue was full",
		},
	)
)
