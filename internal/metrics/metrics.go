package metrics

import (
	"net/http"
	"time"
)

// Metrics interface for dependency injection
type Metrics interface {
	RecordIngest(source, status string, inserted int)
	RecordEnrichment(status string)
	RecordPost(platform, status string)
	RecordPipelineRun(stage string, duration time.Duration)
	SetDBConnectionsActive(count float64)
	RecordDBQuery(operation, status string)
	Handler() http.Handler
}

// NoOpMetrics provides a no-op implementation
type NoOpMetrics struct{}

func (m *NoOpMetrics) RecordIngest(source, status string, inserted int)         {}
func (m *NoOpMetrics) RecordEnrichment(status string)                           {}
func (m *NoOpMetrics) RecordPost(platform, status string)                       {}
func (m *NoOpMetrics) RecordPipelineRun(stage string, duration time.Duration)   {}
func (m *NoOpMetrics) SetDBConnectionsActive(count float64)                     {}
func (m *NoOpMetrics) RecordDBQuery(operation, status string)                   {}
func (m *NoOpMetrics) Handler() http.Handler                                    { return http.NotFoundHandler() }

// Global metrics instance
var globalMetrics Metrics = &NoOpMetrics{}

// Init initializes metrics (no-op for now, can be extended with Prometheus)
func Init() {
	// For now, keep using no-op metrics
}

// Handler returns the metrics handler
func Handler() http.Handler {
	return globalMetrics.Handler()
}

// RecordIngest records one ingestion run
func RecordIngest(source, status string, inserted int) {
	globalMetrics.RecordIngest(source, status, inserted)
}

// RecordEnrichment records one reverse-geocode outcome
func RecordEnrichment(status string) {
	globalMetrics.RecordEnrichment(status)
}

// RecordPost records one platform post attempt
func RecordPost(platform, status string) {
	globalMetrics.RecordPost(platform, status)
}

// RecordPipelineRun records pipeline stage timing
func RecordPipelineRun(stage string, duration time.Duration) {
	globalMetrics.RecordPipelineRun(stage, duration)
}

// SetDBConnectionsActive sets the number of active database connections
func SetDBConnectionsActive(count float64) {
	globalMetrics.SetDBConnectionsActive(count)
}

// RecordDBQuery records database query metrics
func RecordDBQuery(operation, status string) {
	globalMetrics.RecordDBQuery(operation, status)
}
