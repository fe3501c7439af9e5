// Package waterfall implements the sequential fallback chain used when the
// concurrent auction produces no fill: adapters are tried one at a time in
// priority order, with exponential back-off between failed attempts.
package waterfall

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bidmesh/auctioncore/internal/adapters"
	"github.com/bidmesh/auctioncore/internal/models"
	"github.com/bidmesh/auctioncore/internal/observability"
)

// Tier is one entry in a placement's priority list.
type Tier struct {
	AdapterID string
	Priority  int
}

// Config controls one cascade run. Reloaded out-of-band; read-only here.
type Config struct {
	Enabled      bool
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Priority is the ordered adapter list. With Smart set, the list is
	// reordered by observed success rate before each run.
	Priority []string
	Smart    bool
}

// FloorAdvisor mirrors the auction engine's view of the floor optimizer; the
// cascade consults it so waterfall fills respect the same reserve prices.
type FloorAdvisor interface {
	GetFloor(ctx context.Context, key models.SegmentKey) float64
	RecordOutcome(ctx context.Context, key models.SegmentKey, price float64, cleared bool)
}

// Cascade walks a priority-ordered adapter list. It deliberately does not
// consult circuit breakers: breaker state belongs to the auction engine, and
// the cascade's own back-off already throttles failing adapters.
type Cascade struct {
	registry *adapters.Registry
	floors   FloorAdvisor
	perf     *PerformanceTracker
	metrics  observability.MetricsRegistry
	logger   *zap.Logger
}

// NewCascade constructs a Cascade. perf may be nil when smart mode is unused.
func NewCascade(registry *adapters.Registry, floors FloorAdvisor, perf *PerformanceTracker, metrics observability.MetricsRegistry, logger *zap.Logger) *Cascade {
	return &Cascade{
		registry: registry,
		floors:   floors,
		perf:     perf,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run tries adapters in priority order until one returns an acceptable bid or
// the attempt budget is spent. A nil bid means terminal no-fill; callers must
// issue a new request to retry.
func (c *Cascade) Run(ctx context.Context, req models.AuctionRequest, cfg Config) *models.Bid {
	if !cfg.Enabled || len(cfg.Priority) == 0 {
		return nil
	}

	priority := cfg.Priority
	if cfg.Smart && c.perf != nil {
		priority = c.perf.Order(ctx, priority)
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 || maxAttempts > len(priority) {
		maxAttempts = len(priority)
	}

	delay := cfg.InitialDelay
	attempts := 0
	for _, id := range priority {
		if attempts >= maxAttempts {
			break
		}
		// Stale configuration entries are skipped without consuming the
		// attempt budget: an attempt is an adapter actually tried.
		bidder, ok := c.registry.Get(id)
		if !ok {
			c.logger.Warn("unknown adapter in waterfall", zap.String("adapter", id))
			c.metrics.IncrementWaterfallAttempts(id, "unknown")
			continue
		}

		if attempts > 0 {
			// Back off before the next attempt; the delay envelope is
			// independent of the original auction deadline.
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil
			}
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
		attempts++

		bid := c.attempt(ctx, bidder, req)
		if bid != nil {
			c.metrics.IncrementWaterfallAttempts(id, "fill")
			return bid
		}
		c.metrics.IncrementWaterfallAttempts(id, "miss")
	}

	return nil
}

// attempt issues one adapter call under the adapter's own timeout and
// validates the bid against its segment floor.
func (c *Cascade) attempt(ctx context.Context, bidder adapters.Bidder, req models.AuctionRequest) *models.Bid {
	id := bidder.Name()
	seg := models.Segment(id, req)
	floor := c.floors.GetFloor(ctx, seg)

	callCtx, cancel := context.WithTimeout(ctx, bidder.Timeout())
	defer cancel()

	bid, err := bidder.RequestBid(callCtx, adapters.BidRequest{
		PlacementID: req.PlacementID,
		Format:      req.Format,
		FloorPrice:  floor,
		Currency:    req.Currency,
		Device:      req.Device,
	})

	success := err == nil && bid != nil && bid.Price >= floor
	if c.perf != nil {
		c.perf.Record(ctx, id, success)
	}
	c.floors.RecordOutcome(ctx, seg, floor, success)

	if err != nil {
		c.logger.Debug("waterfall attempt failed",
			zap.String("adapter", id),
			zap.String("reason", adapters.NoBidReason(err)),
		)
		return nil
	}
	if bid == nil || bid.Price < floor {
		return nil
	}
	return bid
}
