// Package metrics exposes Prometheus collectors for fetch and load
// activity.
//
// # Basic Usage
//
//	metrics.FetchUnits.WithLabelValues("510k", "downloaded").Inc()
//	metrics.RecordsParsed.WithLabelValues("pma").Add(float64(n))
//
//	timer := metrics.NewTimer()
//	resp, err := client.Do(req)
//	metrics.HTTPRequestDuration.WithLabelValues("GET", "200").Observe(timer.Stop().Seconds())
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchUnits counts fetch units (pages, eras, archives) by outcome.
	// Labels: source, status (cached/downloaded/failed)
	FetchUnits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meddevices_fetch_units_total",
			Help: "Fetch units by source and outcome",
		},
		[]string{"source", "status"},
	)

	// DownloadedBytes counts response bytes written to the cache
	DownloadedBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meddevices_downloaded_bytes_total",
			Help: "Bytes downloaded into the local cache",
		},
		[]string{"source"},
	)

	// RecordsParsed counts records produced by a source
	RecordsParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meddevices_records_parsed_total",
			Help: "Records parsed from cached files",
		},
		[]string{"source"},
	)

	// RecordsWritten counts records accepted by a destination
	RecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meddevices_records_written_total",
			Help: "Records written to a destination",
		},
		[]string{"destination", "collection"},
	)

	// HTTPRequestDuration tracks request latency in seconds.
	// Archive downloads take minutes, hence the wide buckets.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meddevices_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 900},
		},
		[]string{"method", "status"},
	)
)

// Timer measures elapsed time from its creation
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It may be called
// more than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
