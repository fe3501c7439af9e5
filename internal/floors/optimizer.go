// Package floors learns the best reserve price per traffic segment with a
// Thompson Sampling bandit over a fixed set of floor candidates. Each
// candidate carries a Beta posterior over its clear probability; sampling
// from the posteriors balances exploration and exploitation without a tuned
// epsilon.
package floors

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bidmesh/auctioncore/internal/models"
	"github.com/bidmesh/auctioncore/internal/observability"
)

// Optimizer implements the Thompson Sampling floor policy. The candidate set
// is fixed at construction; only the per-segment counters in the store change
// over its lifetime.
type Optimizer struct {
	candidates []float64
	store      Store

	// During warm-up (fewer than warmupTrials outcomes in a segment) a
	// forced-exploration draw supplements pure sampling, guarding against
	// premature convergence on sparse data. Both knobs are tunables.
	explorationRate float64
	warmupTrials    int64

	mu  sync.Mutex
	rng *rand.Rand

	metrics observability.MetricsRegistry
	logger  *zap.Logger
}

// NewOptimizer constructs an Optimizer over the given candidates, which are
// copied and sorted ascending so the safe default is always index 0.
func NewOptimizer(candidates []float64, store Store, explorationRate float64, warmupTrials int, metrics observability.MetricsRegistry, logger *zap.Logger) *Optimizer {
	sorted := make([]float64, len(candidates))
	copy(sorted, candidates)
	sort.Float64s(sorted)

	return &Optimizer{
		candidates:      sorted,
		store:           store,
		explorationRate: explorationRate,
		warmupTrials:    int64(warmupTrials),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		metrics:         metrics,
		logger:          logger,
	}
}

// SetRandSource replaces the random source for deterministic tests.
func (o *Optimizer) SetRandSource(src rand.Source) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rng = rand.New(src)
}

// Candidates returns a copy of the candidate set.
func (o *Optimizer) Candidates() []float64 {
	out := make([]float64, len(o.candidates))
	copy(out, o.candidates)
	return out
}

// GetFloor returns the floor to use for the segment right now. It performs a
// single store read plus the sampling computation; on store failure it falls
// back to the lowest candidate so the auction proceeds with the least
// restrictive reserve.
func (o *Optimizer) GetFloor(ctx context.Context, key models.SegmentKey) float64 {
	if len(o.candidates) == 0 {
		return 0
	}

	counts, err := o.store.Load(ctx, key, len(o.candidates))
	if err != nil {
		o.metrics.IncrementFloorPersistErrors()
		o.logger.Warn("floor experiment load failed, using default floor",
			zap.String("segment", key.String()),
			zap.Error(err),
		)
		return o.candidates[0]
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if counts.Trials() < o.warmupTrials && o.rng.Float64() < o.explorationRate {
		return o.candidates[o.rng.Intn(len(o.candidates))]
	}

	best := 0
	bestSample := -1.0
	for i := range o.candidates {
		sample := sampleBeta(o.rng,
			float64(counts.Successes[i])+1,
			float64(counts.Failures[i])+1,
		)
		if sample > bestSample {
			bestSample = sample
			best = i
		}
	}
	return o.candidates[best]
}

// RecordOutcome updates the posterior for the candidate that was used.
// Persistence failures are absorbed: lost updates degrade learning, never the
// auction.
func (o *Optimizer) RecordOutcome(ctx context.Context, key models.SegmentKey, price float64, cleared bool) {
	idx := o.candidateIndex(price)
	if idx < 0 {
		return
	}
	if err := o.store.Record(ctx, key, idx, cleared); err != nil {
		o.metrics.IncrementFloorPersistErrors()
		o.logger.Warn("floor outcome persist failed",
			zap.String("segment", key.String()),
			zap.Float64("price", price),
			zap.Error(err),
		)
	}
}

// candidateIndex matches a price back to its candidate at monetary precision.
func (o *Optimizer) candidateIndex(price float64) int {
	p := decimal.NewFromFloat(price).Round(4)
	for i, c := range o.candidates {
		if decimal.NewFromFloat(c).Round(4).Equal(p) {
			return i
		}
	}
	return -1
}
