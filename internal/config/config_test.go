package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8686", cfg.Port)
	assert.Equal(t, 120*time.Millisecond, cfg.AuctionTimeout)
	assert.InDelta(t, 0.01, cfg.BidIncrement, 1e-9)
	assert.Equal(t, 5, cfg.BreakerThreshold)
	assert.Equal(t, 60*time.Second, cfg.BreakerResetTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.WaterfallInitialDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.WaterfallMaxDelay)
	assert.Equal(t, []float64{0.1, 0.25, 0.5, 1.0, 2.0, 3.0, 5.0, 10.0}, cfg.FloorCandidates)
	assert.InDelta(t, 0.10, cfg.FloorExplorationRate, 1e-9)
	assert.Equal(t, 100, cfg.FloorWarmupTrials)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUCTION_TIMEOUT", "250ms")
	t.Setenv("BREAKER_THRESHOLD", "3")
	t.Setenv("WATERFALL_ENABLED", "false")
	t.Setenv("FLOOR_CANDIDATES", "0.5, 1.5, 2.5")

	cfg := Load()
	assert.Equal(t, 250*time.Millisecond, cfg.AuctionTimeout)
	assert.Equal(t, 3, cfg.BreakerThreshold)
	assert.False(t, cfg.WaterfallEnabled)
	assert.Equal(t, []float64{0.5, 1.5, 2.5}, cfg.FloorCandidates)
}

func TestEnvDurationSeconds(t *testing.T) {
	t.Setenv("BREAKER_RESET_TIMEOUT", "90")
	cfg := Load()
	assert.Equal(t, 90*time.Second, cfg.BreakerResetTimeout, "bare numbers parse as seconds")
}

func TestEnvInvalidFallsBack(t *testing.T) {
	t.Setenv("BREAKER_THRESHOLD", "lots")
	t.Setenv("FLOOR_CANDIDATES", "not,numbers")
	cfg := Load()
	assert.Equal(t, 5, cfg.BreakerThreshold)
	assert.Equal(t, []float64{0.1, 0.25, 0.5, 1.0, 2.0, 3.0, 5.0, 10.0}, cfg.FloorCandidates)
}
