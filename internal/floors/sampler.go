package floors

import (
	"math"
	"math/rand"
)

// sampleBeta draws from Beta(a, b) as the ratio of two independent Gamma
// variates: X/(X+Y) with X~Gamma(a,1), Y~Gamma(b,1).
func sampleBeta(rng *rand.Rand, a, b float64) float64 {
	x := sampleGamma(rng, a)
	y := sampleGamma(rng, b)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// sampleGamma draws from Gamma(shape, 1) using the Marsaglia–Tsang squeeze
// method. Shapes below 1 are boosted: Gamma(a) = Gamma(a+1) * U^(1/a).
// Posterior shapes here are successes+1 and failures+1, so the boost branch
// only matters for callers experimenting with sub-unit priors.
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		return sampleGamma(rng, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
