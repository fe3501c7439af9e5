package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusRegistryFloorSelectedLabels(t *testing.T) {
	r := NewPrometheusRegistry()

	r.ObserveFloorSelected("alpha", "banner", 0.5)
	r.ObserveFloorSelected("alpha", "video", 1.0)
	r.ObserveFloorSelected("beta", "banner", 2.0)

	// One child series per (adapter, format) pair.
	assert.GreaterOrEqual(t, testutil.CollectAndCount(FloorSelected), 3)
}

func TestPrometheusRegistryCounters(t *testing.T) {
	r := NewPrometheusRegistry()

	r.IncrementAuctions("won")
	r.IncrementAdapterBids("alpha", "no_fill")
	r.IncrementBreakerTransitions("alpha", "open")
	r.RecordAuctionDuration(90 * time.Millisecond)
	r.SetLandscapeQueueDepth(7)

	assert.InDelta(t, 7, testutil.ToFloat64(LandscapeQueueDepth), 1e-9)
	assert.GreaterOrEqual(t, testutil.ToFloat64(AuctionCount.WithLabelValues("won")), 1.0)
}
