package spawning_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mtransit/fleetsim/internal/domain/spawning"
)

func TestPoissonDraw_NonPositiveLambda(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	assert.Zero(t, spawning.PoissonDraw(0, rng))
	assert.Zero(t, spawning.PoissonDraw(-3.2, rng))
}

func TestPoissonDraw_SmallLambdaMean(t *testing.T) {
	rng := rand.New(rand.NewSource(99))

	const trials = 2000
	sum := 0
	for i := 0; i < trials; i++ {
		sum += spawning.PoissonDraw(2.5, rng)
	}
	mean := float64(sum) / trials

	assert.InDelta(t, 2.5, mean, 0.15)
}

func TestPoissonDraw_LargeLambdaMean(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	const trials = 2000
	sum := 0
	for i := 0; i < trials; i++ {
		sum += spawning.PoissonDraw(80, rng)
	}
	mean := float64(sum) / trials

	assert.InDelta(t, 80, mean, 1.5)
}

func TestMultinomialPick_Empty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Equal(t, -1, spawning.MultinomialPick(nil, rng))
}

func TestMultinomialPick_RespectsWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	weights := []float64{1, 0, 9}

	counts := make([]int, 3)
	for i := 0; i < 5000; i++ {
		counts[spawning.MultinomialPick(weights, rng)]++
	}

	assert.Zero(t, counts[1], "zero-weight index must never be picked")
	assert.InDelta(t, 0.9, float64(counts[2])/5000, 0.05)
}

func TestMultinomialPick_ZeroTotalFallsBackToUniform(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	weights := []float64{0, 0, 0}

	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		idx := spawning.MultinomialPick(weights, rng)
		counts[idx]++
	}

	for _, c := range counts {
		assert.InDelta(t, 1000, c, 150)
	}
}
