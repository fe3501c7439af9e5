package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auctioncore_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auctioncore_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// auctions by terminal outcome: won, no_fill, waterfall_fill
	AuctionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auctioncore_auctions_total",
			Help: "Total auctions run, labelled by outcome",
		},
		[]string{"outcome"},
	)

	// auction wall-clock duration; buckets sized around the 120ms budget
	AuctionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auctioncore_auction_duration_seconds",
			Help:    "Histogram of auction wall-clock durations",
			Buckets: []float64{.005, .01, .025, .05, .075, .1, .12, .15, .25, .5},
		},
	)

	// adapter bid calls labelled by adapter and status
	AdapterBidCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auctioncore_adapter_bids_total",
			Help: "Total adapter bid calls, labelled by adapter and status",
		},
		[]string{"adapter", "status"},
	)

	// per-adapter bid call latency
	AdapterLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auctioncore_adapter_duration_seconds",
			Help:    "Histogram of adapter bid call latencies",
			Buckets: []float64{.005, .01, .025, .05, .1, .15, .25, .5, 1},
		},
		[]string{"adapter"},
	)

	// circuit breaker state transitions per adapter
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auctioncore_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"adapter", "to_state"},
	)

	// waterfall attempts per adapter and result
	WaterfallAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auctioncore_waterfall_attempts_total",
			Help: "Total waterfall attempts, labelled by adapter and result",
		},
		[]string{"adapter", "result"},
	)

	// floor prices chosen by the optimizer, labelled by the bounded
	// segment dimensions (country and currency are left off to keep
	// cardinality down)
	FloorSelected = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auctioncore_floor_selected",
			Help:    "Histogram of floor prices selected by the optimizer",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		},
		[]string{"adapter", "format"},
	)

	// floor experiment persistence errors
	FloorPersistErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auctioncore_floor_persist_errors_total",
			Help: "Total floor experiment persistence errors",
		},
	)

	// landscape records dropped, by reason (queue_full, retries_exhausted)
	LandscapeDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auctioncore_landscape_dropped_total",
			Help: "Total bid landscape records dropped, labelled by reason",
		},
		[]string{"reason"},
	)

	// landscape batch flushes by result
	LandscapeBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auctioncore_landscape_batches_total",
			Help: "Total bid landscape batch flushes, labelled by result",
		},
		[]string{"result"},
	)

	// current landscape queue depth
	LandscapeQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "auctioncore_landscape_queue_depth",
			Help: "Current depth of the bid landscape write queue",
		},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		AuctionCount,
		AuctionDuration,
		AdapterBidCount,
		AdapterLatency,
		BreakerTransitions,
		WaterfallAttempts,
		FloorSelected,
		FloorPersistErrors,
		LandscapeDropped,
		LandscapeBatches,
		LandscapeQueueDepth,
	)
}
