package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch metrics
var (
	MessagesSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_messages_submitted_total",
			Help: "Total number of message requests accepted",
		},
	)

	MessagesDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_messages_dispatched_total",
			Help: "Total number of completed dispatches by final status",
		},
		[]string{"status"}, // sent, partially_sent, failed
	)

	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_sends_total",
			Help: "Total number of per-recipient gateway sends",
		},
		[]string{"outcome"}, // success, failure
	)

	SendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_send_duration_seconds",
			Help:    "Duration of individual gateway send calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	MediaUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_media_uploads_total",
			Help: "Total number of gateway media uploads",
		},
		[]string{"result"}, // uploaded, failed
	)

	ScheduledJobsArmed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_scheduled_jobs_armed",
			Help: "Number of deferred dispatches currently armed",
		},
	)
)

// API metrics
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
