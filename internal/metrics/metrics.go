// Package metrics exposes the Prometheus instruments shared by the API and
// the worker. Collectors register on the default registry; /metrics serves
// them via promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransactionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duorico_transactions_created_total",
		Help: "Transactions persisted, labelled by type.",
	}, []string{"type"})

	TransactionsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duorico_transactions_deleted_total",
		Help: "Transactions deleted, installments included.",
	})

	SyncPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duorico_sync_publish_failures_total",
		Help: "Sync messages that could not be handed to the broker.",
	})

	SheetSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duorico_sheet_syncs_total",
		Help: "Mirror operations performed by the worker, by outcome.",
	}, []string{"outcome"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duorico_http_requests_total",
		Help: "HTTP requests served, by route pattern and status class.",
	}, []string{"pattern", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "duorico_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"pattern"})
)
