package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GeocodeLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cph_geocode_lookups_total",
			Help: "Location lookups by resolution tier and outcome",
		},
		[]string{"tier", "result"},
	)

	CatalogRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cph_catalog_requests_total",
			Help: "Catalog API requests by endpoint and outcome",
		},
		[]string{"endpoint", "status"},
	)

	CatalogDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "cph_catalog_request_duration_seconds",
			Help: "Duration of catalog API requests in seconds, retries included",
		},
		[]string{"endpoint"},
	)

	StorageFaults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cph_storage_faults_total",
			Help: "Swallowed persistent storage faults by operation",
		},
		[]string{"op"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cph_active_sessions",
			Help: "Number of viewer sessions currently tracked",
		},
	)
)
