package waterfall

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bidmesh/auctioncore/internal/adapters"
	"github.com/bidmesh/auctioncore/internal/models"
	"github.com/bidmesh/auctioncore/internal/observability"
)

type fixedFloors struct {
	floor float64
}

func (f fixedFloors) GetFloor(ctx context.Context, key models.SegmentKey) float64 { return f.floor }

func (f fixedFloors) RecordOutcome(ctx context.Context, key models.SegmentKey, price float64, cleared bool) {
}

// trackingBidder counts calls and records call times, returning the
// configured error or bid.
type trackingBidder struct {
	name  string
	price float64
	err   error

	calls atomic.Int64
	times []time.Time
}

func (b *trackingBidder) Name() string { return b.name }

func (b *trackingBidder) Timeout() time.Duration { return 100 * time.Millisecond }

func (b *trackingBidder) RequestBid(ctx context.Context, req adapters.BidRequest) (*models.Bid, error) {
	b.calls.Add(1)
	b.times = append(b.times, time.Now())
	if b.err != nil {
		return nil, b.err
	}
	return &models.Bid{AdapterID: b.name, BidID: b.name + "-bid", Price: b.price, Currency: req.Currency}, nil
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(s.Close)
	return s, redis.NewClient(&redis.Options{Addr: s.Addr()})
}

func cascadeRequest() models.AuctionRequest {
	return models.AuctionRequest{
		PlacementID: "placement-1",
		Format:      models.FormatBanner,
		Currency:    "USD",
	}
}

func newTestCascade(registry *adapters.Registry, perf *PerformanceTracker) *Cascade {
	return NewCascade(registry, fixedFloors{floor: 0.50}, perf, observability.NewNoOpRegistry(), zap.NewNop())
}

func TestCascadeStopsAtFirstFill(t *testing.T) {
	registry := adapters.NewRegistry()
	first := &trackingBidder{name: "first", err: adapters.ErrNoBid}
	second := &trackingBidder{name: "second", price: 1.20}
	third := &trackingBidder{name: "third", price: 2.00}
	registry.Register(first)
	registry.Register(second)
	registry.Register(third)

	c := newTestCascade(registry, nil)
	bid := c.Run(context.Background(), cascadeRequest(), Config{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		Priority:     []string{"first", "second", "third"},
	})

	require.NotNil(t, bid)
	assert.Equal(t, "second", bid.AdapterID)
	assert.Equal(t, int64(1), first.calls.Load())
	assert.Equal(t, int64(1), second.calls.Load())
	assert.Equal(t, int64(0), third.calls.Load(), "cascade stops at the first fill")
}

func TestCascadeExhaustsAttempts(t *testing.T) {
	registry := adapters.NewRegistry()
	bidders := make([]*trackingBidder, 4)
	priority := make([]string, 4)
	for i := range bidders {
		name := "adapter-" + strconv.Itoa(i)
		bidders[i] = &trackingBidder{name: name, err: adapters.ErrNoBid}
		registry.Register(bidders[i])
		priority[i] = name
	}

	c := newTestCascade(registry, nil)
	bid := c.Run(context.Background(), cascadeRequest(), Config{
		Enabled:      true,
		MaxAttempts:  4,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   2.0,
		Priority:     priority,
	})

	assert.Nil(t, bid)
	for i, b := range bidders {
		assert.Equal(t, int64(1), b.calls.Load(), "adapter %d tried exactly once", i)
	}
}

func TestCascadeMaxAttemptsCapsChain(t *testing.T) {
	registry := adapters.NewRegistry()
	var priority []string
	bidders := make([]*trackingBidder, 5)
	for i := range bidders {
		name := "adapter-" + strconv.Itoa(i)
		bidders[i] = &trackingBidder{name: name, err: adapters.ErrNoBid}
		registry.Register(bidders[i])
		priority = append(priority, name)
	}

	c := newTestCascade(registry, nil)
	bid := c.Run(context.Background(), cascadeRequest(), Config{
		Enabled:      true,
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   2.0,
		Priority:     priority,
	})

	assert.Nil(t, bid)
	assert.Equal(t, int64(1), bidders[0].calls.Load())
	assert.Equal(t, int64(1), bidders[1].calls.Load())
	assert.Equal(t, int64(0), bidders[2].calls.Load())
}

func TestCascadeUnknownAdapterDoesNotConsumeAttempt(t *testing.T) {
	registry := adapters.NewRegistry()
	first := &trackingBidder{name: "first", err: adapters.ErrNoBid}
	second := &trackingBidder{name: "second", price: 1.00}
	registry.Register(first)
	registry.Register(second)

	c := newTestCascade(registry, nil)
	bid := c.Run(context.Background(), cascadeRequest(), Config{
		Enabled:      true,
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   2.0,
		Priority:     []string{"ghost", "first", "second"},
	})

	require.NotNil(t, bid)
	assert.Equal(t, "second", bid.AdapterID)
	assert.Equal(t, int64(1), first.calls.Load())
	assert.Equal(t, int64(1), second.calls.Load(), "a stale config entry must not burn the attempt budget")
}

func TestCascadeBackoffGrowsAndCaps(t *testing.T) {
	registry := adapters.NewRegistry()
	var priority []string
	bidders := make([]*trackingBidder, 5)
	for i := range bidders {
		name := "adapter-" + strconv.Itoa(i)
		bidders[i] = &trackingBidder{name: name, err: adapters.ErrNoBid}
		registry.Register(bidders[i])
		priority = append(priority, name)
	}

	c := newTestCascade(registry, nil)
	start := time.Now()
	c.Run(context.Background(), cascadeRequest(), Config{
		Enabled:      true,
		MaxAttempts:  5,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
		Priority:     priority,
	})

	// Delays between attempts: 10, 20, 20, 20 (capped) = 70ms minimum.
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 70*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)

	var gaps []time.Duration
	for i := 1; i < len(bidders); i++ {
		gaps = append(gaps, bidders[i].times[0].Sub(bidders[i-1].times[0]))
	}
	for i := 1; i < len(gaps); i++ {
		// Timer jitter aside, the envelope must never shrink.
		assert.GreaterOrEqual(t, gaps[i]+5*time.Millisecond, gaps[i-1],
			"back-off between attempts must be non-decreasing")
	}
}

func TestCascadeDisabled(t *testing.T) {
	registry := adapters.NewRegistry()
	b := &trackingBidder{name: "only", price: 2.00}
	registry.Register(b)

	c := newTestCascade(registry, nil)
	bid := c.Run(context.Background(), cascadeRequest(), Config{
		Enabled:  false,
		Priority: []string{"only"},
	})

	assert.Nil(t, bid)
	assert.Equal(t, int64(0), b.calls.Load())
}

func TestCascadeRejectsBelowFloorBid(t *testing.T) {
	registry := adapters.NewRegistry()
	cheap := &trackingBidder{name: "cheap", price: 0.10}
	fair := &trackingBidder{name: "fair", price: 1.00}
	registry.Register(cheap)
	registry.Register(fair)

	c := newTestCascade(registry, nil)
	bid := c.Run(context.Background(), cascadeRequest(), Config{
		Enabled:      true,
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   2.0,
		Priority:     []string{"cheap", "fair"},
	})

	require.NotNil(t, bid)
	assert.Equal(t, "fair", bid.AdapterID, "below-floor bid is not an acceptable fill")
}

func TestCascadeContextCancelStops(t *testing.T) {
	registry := adapters.NewRegistry()
	failing := &trackingBidder{name: "failing", err: adapters.ErrNoBid}
	never := &trackingBidder{name: "never", price: 1.00}
	registry.Register(failing)
	registry.Register(never)

	ctx, cancel := context.WithCancel(context.Background())
	c := newTestCascade(registry, nil)

	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	bid := c.Run(ctx, cascadeRequest(), Config{
		Enabled:      true,
		MaxAttempts:  2,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     200 * time.Millisecond,
		Multiplier:   2.0,
		Priority:     []string{"failing", "never"},
	})

	assert.Nil(t, bid)
	assert.Equal(t, int64(0), never.calls.Load(), "cancellation during back-off aborts the chain")
}

func TestPerformanceTrackerOrder(t *testing.T) {
	_, store := setupTestRedis(t)
	tracker := NewPerformanceTracker(store, zap.NewNop())
	ctx := context.Background()

	// strong: 3/4 fills, weak: 1/4, cold: no history.
	for i := 0; i < 4; i++ {
		tracker.Record(ctx, "strong", i < 3)
		tracker.Record(ctx, "weak", i < 1)
	}

	order := tracker.Order(ctx, []string{"cold", "weak", "strong"})
	assert.Equal(t, []string{"strong", "weak", "cold"}, order)
}

func TestPerformanceTrackerFailsOpen(t *testing.T) {
	s, store := setupTestRedis(t)
	tracker := NewPerformanceTracker(store, zap.NewNop())
	s.Close()

	order := tracker.Order(context.Background(), []string{"a", "b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, order, "redis failure falls back to configured order")
}

func TestCascadeSmartOrdering(t *testing.T) {
	_, store := setupTestRedis(t)
	tracker := NewPerformanceTracker(store, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		tracker.Record(ctx, "reliable", true)
		tracker.Record(ctx, "flaky", false)
	}

	registry := adapters.NewRegistry()
	reliable := &trackingBidder{name: "reliable", price: 1.00}
	flaky := &trackingBidder{name: "flaky", err: adapters.ErrNoBid}
	registry.Register(reliable)
	registry.Register(flaky)

	c := newTestCascade(registry, tracker)
	bid := c.Run(ctx, cascadeRequest(), Config{
		Enabled:      true,
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   2.0,
		Priority:     []string{"flaky", "reliable"},
		Smart:        true,
	})

	require.NotNil(t, bid)
	assert.Equal(t, "reliable", bid.AdapterID)
	assert.Equal(t, int64(0), flaky.calls.Load(), "smart ordering promotes the reliable adapter first")
}
