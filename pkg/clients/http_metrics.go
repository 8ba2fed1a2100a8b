package clients

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ajitpratap0/meddevices/pkg/errors"
	"github.com/ajitpratap0/meddevices/pkg/metrics"
)

// HTTPMetrics keeps in-process request statistics for a client and
// forwards latency observations to the Prometheus histogram.
type HTTPMetrics struct {
	totalRequests  int64
	failedRequests int64
	bytesRead      int64
	totalLatency   int64
	maxLatency     int64

	errorsByType map[string]int64
	mu           sync.Mutex
}

// HTTPStats represents HTTP client statistics
type HTTPStats struct {
	TotalRequests  int64            `json:"total_requests"`
	FailedRequests int64            `json:"failed_requests"`
	BytesRead      int64            `json:"bytes_read"`
	SuccessRate    float64          `json:"success_rate"`
	AverageLatency time.Duration    `json:"average_latency"`
	MaxLatency     time.Duration    `json:"max_latency"`
	ErrorsByType   map[string]int64 `json:"errors_by_type"`
}

// NewHTTPMetrics creates an empty tracker
func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{errorsByType: make(map[string]int64)}
}

// RecordRequest records one round trip. status is zero when the request
// failed before a response arrived. Non-2xx statuses count as failures.
func (hm *HTTPMetrics) RecordRequest(method string, status int, latency time.Duration, err error) {
	atomic.AddInt64(&hm.totalRequests, 1)
	atomic.AddInt64(&hm.totalLatency, int64(latency))
	for {
		cur := atomic.LoadInt64(&hm.maxLatency)
		if int64(latency) <= cur || atomic.CompareAndSwapInt64(&hm.maxLatency, cur, int64(latency)) {
			break
		}
	}

	label := "error"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	metrics.HTTPRequestDuration.WithLabelValues(method, label).Observe(latency.Seconds())

	switch {
	case err != nil:
		hm.RecordFailure(err)
	case status < 200 || status > 299:
		atomic.AddInt64(&hm.failedRequests, 1)
		hm.countError(string(errors.ErrorTypeHTTPStatus))
	}
}

// RecordFailure counts a failed request or body read
func (hm *HTTPMetrics) RecordFailure(err error) {
	atomic.AddInt64(&hm.failedRequests, 1)
	hm.countError(classify(err))
}

// RecordBytes adds to the number of body bytes read
func (hm *HTTPMetrics) RecordBytes(n int64) {
	atomic.AddInt64(&hm.bytesRead, n)
}

// Snapshot returns a copy of the current statistics
func (hm *HTTPMetrics) Snapshot() HTTPStats {
	total := atomic.LoadInt64(&hm.totalRequests)
	failed := atomic.LoadInt64(&hm.failedRequests)

	stats := HTTPStats{
		TotalRequests:  total,
		FailedRequests: failed,
		BytesRead:      atomic.LoadInt64(&hm.bytesRead),
		MaxLatency:     time.Duration(atomic.LoadInt64(&hm.maxLatency)),
		ErrorsByType:   make(map[string]int64),
	}
	if total > 0 {
		stats.SuccessRate = float64(total-failed) / float64(total) * 100
		stats.AverageLatency = time.Duration(atomic.LoadInt64(&hm.totalLatency) / total)
	}

	hm.mu.Lock()
	for k, v := range hm.errorsByType {
		stats.ErrorsByType[k] = v
	}
	hm.mu.Unlock()

	return stats
}

func (hm *HTTPMetrics) countError(kind string) {
	hm.mu.Lock()
	hm.errorsByType[kind]++
	hm.mu.Unlock()
}

func classify(err error) string {
	var e *errors.Error
	if errors.As(err, &e) {
		return string(e.Type)
	}
	return "unknown"
}
