package spawning

import (
	"math"
	"math/rand"
)

// PoissonDraw samples a Poisson-distributed count with mean lambda. Returns 0
// when lambda <= 0. For small means it uses Knuth's product method; above the
// cutoff it switches to a normal approximation, which is accurate to well
// under the sampling noise at those magnitudes.
func PoissonDraw(lambda float64, rng *rand.Rand) int {
	if lambda <= 0 || math.IsNaN(lambda) {
		return 0
	}
	if lambda < 30 {
		return poissonKnuth(lambda, rng)
	}
	// Normal approximation with continuity correction.
	n := rng.NormFloat64()*math.Sqrt(lambda) + lambda + 0.5
	if n < 0 {
		return 0
	}
	return int(n)
}

func poissonKnuth(lambda float64, rng *rand.Rand) int {
	limit := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		p *= rng.Float64()
		if p <= limit {
			return k
		}
		k++
	}
}

// MultinomialPick selects an index with probability proportional to its
// weight. Zero or negative total weight falls back to a uniform pick.
// An empty weight slice returns -1.
func MultinomialPick(weights []float64, rng *rand.Rand) int {
	if len(weights) == 0 {
		return -1
	}
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return rng.Intn(len(weights))
	}
	r := rng.Float64() * total
	cum := 0.0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cum += w
		if r <= cum {
			return i
		}
	}
	return len(weights) - 1
}
