package metrics

import (
	"net/http"
	"time"
)

// Metrics interface for dependency injection
type Metrics interface {
	RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration)
	RecordFeedProcessed(feed, status string)
	RecordIngestionRun(duration time.Duration, incidents int)
	SetDBConnectionsActive(count float64)
	RecordDBQuery(operation, status string)
	Handler() http.Handler
}

// NoOpMetrics provides a no-op implementation
type NoOpMetrics struct{}

func (m *NoOpMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
}
func (m *NoOpMetrics) RecordFeedProcessed(feed, status string)                  {}
func (m *NoOpMetrics) RecordIngestionRun(duration time.Duration, incidents int) {}
func (m *NoOpMetrics) SetDBConnectionsActive(count float64)                     {}
func (m *NoOpMetrics) RecordDBQuery(operation, status string)                   {}
func (m *NoOpMetrics) Handler() http.Handler                                    { return http.NotFoundHandler() }

// Global metrics instance
var globalMetrics Metrics = &NoOpMetrics{}

// Init initializes metrics (no-op for now, can be extended with Prometheus)
func Init() {
	// For now, keep using no-op metrics
	// In a full implementation, this would initialize Prometheus metrics
}

// Handler returns the metrics handler
func Handler() http.Handler {
	return globalMetrics.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	globalMetrics.RecordHTTPRequest(method, endpoint, statusCode, duration)
}

// RecordFeedProcessed records the outcome of one feed's processing
func RecordFeedProcessed(feed, status string) {
	globalMetrics.RecordFeedProcessed(feed, status)
}

// RecordIngestionRun records a full ingestion run
func RecordIngestionRun(duration time.Duration, incidents int) {
	globalMetrics.RecordIngestionRun(duration, incidents)
}

// SetDBConnectionsActive sets the number of active database connections
func SetDBConnectionsActive(count float64) {
	globalMetrics.SetDBConnectionsActive(count)
}

// RecordDBQuery records database query metrics
func RecordDBQuery(operation, status string) {
	globalMetrics.RecordDBQuery(operation, status)
}
