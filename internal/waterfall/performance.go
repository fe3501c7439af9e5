package waterfall

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// statsTTL bounds how long rolling counters live without traffic, so the
// smart ordering reflects recent behaviour rather than all-time history.
const statsTTL = 24 * time.Hour

// PerformanceTracker keeps rolling attempt/fill counters per adapter in
// Redis and derives the smart waterfall ordering from them. The computed
// order is cached briefly; recomputing on every request would put a Redis
// round-trip on the fallback path for no benefit.
type PerformanceTracker struct {
	client *redis.Client

	mu       sync.Mutex
	cached   map[string]float64
	cachedAt time.Time
	cacheTTL time.Duration

	logger *zap.Logger
}

// NewPerformanceTracker creates a tracker backed by the given Redis client.
func NewPerformanceTracker(client *redis.Client, logger *zap.Logger) *PerformanceTracker {
	return &PerformanceTracker{
		client:   client,
		cacheTTL: 30 * time.Second,
		logger:   logger,
	}
}

// Record counts one waterfall attempt and, when success is set, one fill.
func (t *PerformanceTracker) Record(ctx context.Context, adapterID string, success bool) {
	if t.client == nil {
		return
	}
	pipe := t.client.Pipeline()
	attemptKey := fmt.Sprintf("waterfall:stats:%s:attempts", adapterID)
	pipe.Incr(ctx, attemptKey)
	pipe.Expire(ctx, attemptKey, statsTTL)
	if success {
		fillKey := fmt.Sprintf("waterfall:stats:%s:fills", adapterID)
		pipe.Incr(ctx, fillKey)
		pipe.Expire(ctx, fillKey, statsTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		t.logger.Warn("waterfall stats update failed", zap.Error(err))
	}
}

// Order returns the priority list reordered by rolling success rate,
// highest first. Adapters without history keep their configured relative
// order; on any Redis failure the configured order is returned unchanged.
func (t *PerformanceTracker) Order(ctx context.Context, priority []string) []string {
	rates, err := t.successRates(ctx, priority)
	if err != nil {
		t.logger.Warn("waterfall stats read failed, using static order", zap.Error(err))
		return priority
	}

	ordered := make([]string, len(priority))
	copy(ordered, priority)
	// Stable: adapters with equal (or no) history keep configured order.
	sort.SliceStable(ordered, func(i, j int) bool {
		return rates[ordered[i]] > rates[ordered[j]]
	})
	return ordered
}

// successRates loads fills/attempts per adapter, via the cache when fresh.
func (t *PerformanceTracker) successRates(ctx context.Context, adapterIDs []string) (map[string]float64, error) {
	t.mu.Lock()
	if t.cached != nil && time.Since(t.cachedAt) < t.cacheTTL {
		cached := t.cached
		t.mu.Unlock()
		return cached, nil
	}
	t.mu.Unlock()

	if t.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	pipe := t.client.Pipeline()
	attemptCmds := make(map[string]*redis.StringCmd, len(adapterIDs))
	fillCmds := make(map[string]*redis.StringCmd, len(adapterIDs))
	for _, id := range adapterIDs {
		attemptCmds[id] = pipe.Get(ctx, fmt.Sprintf("waterfall:stats:%s:attempts", id))
		fillCmds[id] = pipe.Get(ctx, fmt.Sprintf("waterfall:stats:%s:fills", id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("pipeline exec failed: %w", err)
	}

	rates := make(map[string]float64, len(adapterIDs))
	for _, id := range adapterIDs {
		attempts, err := attemptCmds[id].Int64()
		if err != nil || attempts == 0 {
			rates[id] = 0
			continue
		}
		fills, err := fillCmds[id].Int64()
		if err != nil {
			fills = 0
		}
		rates[id] = float64(fills) / float64(attempts)
	}

	t.mu.Lock()
	t.cached = rates
	t.cachedAt = time.Now()
	t.mu.Unlock()
	return rates, nil
}
