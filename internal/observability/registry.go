package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics.
// Components receive it by injection instead of touching the global
// Prometheus collectors directly, which keeps them testable.
type MetricsRegistry interface {
	// HTTP request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Auction metrics
	IncrementAuctions(outcome string)
	RecordAuctionDuration(duration time.Duration)

	// Adapter call metrics
	IncrementAdapterBids(adapter, status string)
	RecordAdapterLatency(adapter string, duration time.Duration)
	IncrementBreakerTransitions(adapter, toState string)

	// Waterfall metrics
	IncrementWaterfallAttempts(adapter, result string)

	// Floor optimizer metrics
	ObserveFloorSelected(adapter, format string, price float64)
	IncrementFloorPersistErrors()

	// Landscape logger metrics
	IncrementLandscapeDropped(reason string)
	IncrementLandscapeBatches(result string)
	SetLandscapeQueueDepth(depth int)
}

// PrometheusRegistry implements MetricsRegistry using the package-level
// Prometheus collectors.
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementAuctions(outcome string) {
	AuctionCount.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRegistry) RecordAuctionDuration(duration time.Duration) {
	AuctionDuration.Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementAdapterBids(adapter, status string) {
	AdapterBidCount.WithLabelValues(adapter, status).Inc()
}

func (r *PrometheusRegistry) RecordAdapterLatency(adapter string, duration time.Duration) {
	AdapterLatency.WithLabelValues(adapter).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementBreakerTransitions(adapter, toState string) {
	BreakerTransitions.WithLabelValues(adapter, toState).Inc()
}

func (r *PrometheusRegistry) IncrementWaterfallAttempts(adapter, result string) {
	WaterfallAttempts.WithLabelValues(adapter, result).Inc()
}

func (r *PrometheusRegistry) ObserveFloorSelected(adapter, format string, price float64) {
	FloorSelected.WithLabelValues(adapter, format).Observe(price)
}

func (r *PrometheusRegistry) IncrementFloorPersistErrors() {
	FloorPersistErrors.Inc()
}

func (r *PrometheusRegistry) IncrementLandscapeDropped(reason string) {
	LandscapeDropped.WithLabelValues(reason).Inc()
}

func (r *PrometheusRegistry) IncrementLandscapeBatches(result string) {
	LandscapeBatches.WithLabelValues(result).Inc()
}

func (r *PrometheusRegistry) SetLandscapeQueueDepth(depth int) {
	LandscapeQueueDepth.Set(float64(depth))
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementAuctions(outcome string)                                     {}
func (r *NoOpRegistry) RecordAuctionDuration(duration time.Duration)                         {}
func (r *NoOpRegistry) IncrementAdapterBids(adapter, status string)                          {}
func (r *NoOpRegistry) RecordAdapterLatency(adapter string, duration time.Duration)          {}
func (r *NoOpRegistry) IncrementBreakerTransitions(adapter, toState string)                  {}
func (r *NoOpRegistry) IncrementWaterfallAttempts(adapter, result string)                    {}
func (r *NoOpRegistry) ObserveFloorSelected(adapter, format string, price float64)           {}
func (r *NoOpRegistry) IncrementFloorPersistErrors()                                         {}
func (r *NoOpRegistry) IncrementLandscapeDropped(reason string)                              {}
func (r *NoOpRegistry) IncrementLandscapeBatches(result string)                              {}
func (r *NoOpRegistry) SetLandscapeQueueDepth(depth int)                                     {}
