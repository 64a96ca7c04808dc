// Package metrics provides Prometheus metrics for Vaulty.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vaulty",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vaulty",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks the number of in-flight HTTP requests.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vaulty",
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	// SecretsTotal tracks the total number of secrets.
	SecretsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vaulty",
			Name:      "secrets_total",
			Help:      "Total number of secrets stored",
		},
	)

	// ProjectsTotal tracks the total number of projects.
	ProjectsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vaulty",
			Name:      "projects_total",
			Help:      "Total number of projects",
		},
	)

	// DevicesTotal tracks registered devices by status.
	DevicesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vaulty",
			Name:      "devices_total",
			Help:      "Registered devices by status",
		},
		[]string{"status"}, // "pending" or "authorized"
	)

	// TokensTotal tracks issued tokens by tier.
	TokensTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vaulty",
			Name:      "tokens_total",
			Help:      "Issued tokens by tier",
		},
		[]string{"tier"}, // "master" or "project"
	)

	// EncryptionOperations counts encryption operations.
	EncryptionOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vaulty",
			Name:      "encryption_operations_total",
			Help:      "Total number of encryption/decryption operations",
		},
		[]string{"operation"}, // "encrypt" or "decrypt"
	)

	// ExposuresTotal counts responses flagged as exposing confidential data.
	ExposuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vaulty",
			Name:      "exposures_total",
			Help:      "Responses that carried confidential data out",
		},
	)

	// ActivitiesRecorded counts persisted activity records by source.
	ActivitiesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vaulty",
			Name:      "activities_recorded_total",
			Help:      "Activity records persisted, by origin",
		},
		[]string{"source"}, // "ui", "api", or "mcp"
	)

	// RateLimitRejections counts requests rejected by the rate limiter.
	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vaulty",
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the rate limiter",
		},
	)
)
