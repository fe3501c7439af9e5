package floors

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleBetaRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		v := sampleBeta(rng, 2, 5)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestSampleBetaMeanTracksPosterior(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	mean := func(a, b float64) float64 {
		sum := 0.0
		const n = 5000
		for i := 0; i < n; i++ {
			sum += sampleBeta(rng, a, b)
		}
		return sum / n
	}

	// Beta(a,b) mean is a/(a+b).
	assert.InDelta(t, 0.5, mean(10, 10), 0.03)
	assert.InDelta(t, 0.9, mean(90, 10), 0.03)
	assert.InDelta(t, 0.1, mean(10, 90), 0.03)
}

func TestSampleBetaConcentration(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	spread := func(a, b float64) float64 {
		lo, hi := 1.0, 0.0
		for i := 0; i < 1000; i++ {
			v := sampleBeta(rng, a, b)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		return hi - lo
	}

	// More evidence concentrates the posterior.
	assert.Greater(t, spread(2, 2), spread(200, 200))
}

func TestSampleGammaPositive(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for _, shape := range []float64{0.5, 1, 2, 10, 100} {
		for i := 0; i < 200; i++ {
			assert.Greater(t, sampleGamma(rng, shape), 0.0, "shape %v", shape)
		}
	}
}

func TestSampleGammaMean(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	// Gamma(k,1) mean is k.
	for _, shape := range []float64{1.0, 4.0, 16.0} {
		sum := 0.0
		const n = 5000
		for i := 0; i < n; i++ {
			sum += sampleGamma(rng, shape)
		}
		assert.InDelta(t, shape, sum/n, shape*0.1)
	}
}
