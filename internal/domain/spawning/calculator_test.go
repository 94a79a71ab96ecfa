package spawning_test

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtransit/fleetsim/internal/domain/spawning"
)

// mondayAt returns a Monday at the given hour, UTC.
func mondayAt(hour int) time.Time {
	return time.Date(2025, 6, 2, hour, 0, 0, 0, time.UTC)
}

func TestResolveTemporalMultipliers_Defaults(t *testing.T) {
	cfg := &spawning.SpawnConfig{SpatialBase: 0.05}

	m, err := spawning.ResolveTemporalMultipliers(cfg, mondayAt(8))

	require.NoError(t, err)
	assert.Equal(t, 0.05, m.Base)
	assert.Equal(t, 1.0, m.Hourly)
	assert.Equal(t, 1.0, m.Day)
}

func TestResolveTemporalMultipliers_HourBoundary(t *testing.T) {
	cfg := &spawning.SpawnConfig{
		SpatialBase: 1.0,
		HourlyRates: map[int]float64{7: 0.5, 8: 2.0, 9: 0.7},
	}

	m, err := spawning.ResolveTemporalMultipliers(cfg, mondayAt(8))

	require.NoError(t, err)
	assert.Equal(t, 2.0, m.Hourly, "hour 8 must use hourly_rates[8], not a neighbor")
}

func TestResolveTemporalMultipliers_SundayIsSix(t *testing.T) {
	cfg := &spawning.SpawnConfig{
		SpatialBase:    1.0,
		DayMultipliers: map[int]float64{6: 0.4},
	}
	sunday := time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)
	require.Equal(t, time.Sunday, sunday.Weekday())

	m, err := spawning.ResolveTemporalMultipliers(cfg, sunday)

	require.NoError(t, err)
	assert.Equal(t, 0.4, m.Day)
}

func TestResolveTemporalMultipliers_RejectsNegativeBase(t *testing.T) {
	cfg := &spawning.SpawnConfig{SpatialBase: -0.1}

	_, err := spawning.ResolveTemporalMultipliers(cfg, mondayAt(8))

	assert.ErrorIs(t, err, spawning.ErrBadConfig)
}

func TestResolveTemporalMultipliers_RejectsNonFinite(t *testing.T) {
	cfg := &spawning.SpawnConfig{
		SpatialBase: 1.0,
		HourlyRates: map[int]float64{8: math.Inf(1)},
	}

	_, err := spawning.ResolveTemporalMultipliers(cfg, mondayAt(8))

	assert.ErrorIs(t, err, spawning.ErrBadConfig)
}

func TestEffectiveRate_ZeroIffAnyFactorZero(t *testing.T) {
	assert.Zero(t, spawning.EffectiveRate(spawning.TemporalMultipliers{Base: 0, Hourly: 2, Day: 1}))
	assert.Zero(t, spawning.EffectiveRate(spawning.TemporalMultipliers{Base: 1, Hourly: 0, Day: 1}))
	assert.Zero(t, spawning.EffectiveRate(spawning.TemporalMultipliers{Base: 1, Hourly: 2, Day: 0}))
	assert.NotZero(t, spawning.EffectiveRate(spawning.TemporalMultipliers{Base: 0.1, Hourly: 1, Day: 1}))
}

func TestRouteAttractiveness_Bounds(t *testing.T) {
	assert.Zero(t, spawning.RouteAttractiveness(50, 0))
	assert.Equal(t, 1.0, spawning.RouteAttractiveness(69, 69))
	a := spawning.RouteAttractiveness(69, 389)
	assert.InDelta(t, 0.1774, a, 0.0001)
	assert.GreaterOrEqual(t, a, 0.0)
	assert.LessOrEqual(t, a, 1.0)
}

// Scenario 1 from the acceptance set: single-route depot, 15 minute window.
func TestExpectedHybridSpawn_SingleRoute(t *testing.T) {
	cfg := &spawning.SpawnConfig{
		SpatialBase:    0.05,
		HourlyRates:    map[int]float64{8: 2.0},
		DayMultipliers: map[int]float64{0: 1.3},
	}

	res, err := spawning.ExpectedHybridSpawn(cfg, mondayAt(8), 15, 1556, 69, 69)

	require.NoError(t, err)
	assert.InDelta(t, 0.130, res.EffectiveRate, 1e-9)
	assert.InDelta(t, 202.28, res.TerminalPopulation, 0.001)
	assert.Equal(t, 1.0, res.Attractiveness)
	assert.InDelta(t, 50.57, res.Lambda, 0.01)
}

// Scenario 2: the same depot shared by several routes.
func TestExpectedHybridSpawn_MultiRouteSplit(t *testing.T) {
	cfg := &spawning.SpawnConfig{
		SpatialBase:    0.05,
		HourlyRates:    map[int]float64{8: 2.0},
		DayMultipliers: map[int]float64{0: 1.3},
	}

	res, err := spawning.ExpectedHybridSpawn(cfg, mondayAt(8), 15, 1556, 69, 389)

	require.NoError(t, err)
	assert.InDelta(t, 0.1774, res.Attractiveness, 0.0001)
	assert.InDelta(t, 8.97, res.Lambda, 0.01)

	// Adding a route grows the denominator but the sum over routes never
	// shrinks below the original single-route share.
	grown, err := spawning.ExpectedHybridSpawn(cfg, mondayAt(8), 15, 1556, 69, 439)
	require.NoError(t, err)
	assert.Less(t, grown.Lambda, res.Lambda)
	assert.Greater(t, grown.Lambda, 0.0)
}

// Scenario 3: empty depot falls back to the route-only shape the spawner
// uses: bDepot := bRoute, attractiveness := 1.
func TestExpectedHybridSpawn_RouteOnlyFallbackShape(t *testing.T) {
	cfg := &spawning.SpawnConfig{SpatialBase: 0.10}

	res, err := spawning.ExpectedHybridSpawn(cfg, mondayAt(10), 60, 120, 120, 120)

	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Attractiveness)
	assert.InDelta(t, 12.0, res.Lambda, 1e-9)
}

func TestCalculateHybridSpawn_PoissonMoments(t *testing.T) {
	cfg := &spawning.SpawnConfig{
		SpatialBase:    0.05,
		HourlyRates:    map[int]float64{8: 2.0},
		DayMultipliers: map[int]float64{0: 1.3},
	}
	rng := rand.New(rand.NewSource(42))

	const trials = 100
	sum, sumSq := 0.0, 0.0
	var lambda float64
	for i := 0; i < trials; i++ {
		res, err := spawning.CalculateHybridSpawn(cfg, mondayAt(8), 15, 1556, 69, 69, rng)
		require.NoError(t, err)
		lambda = res.Lambda
		sum += float64(res.SpawnCount)
		sumSq += float64(res.SpawnCount) * float64(res.SpawnCount)
	}
	mean := sum / trials
	variance := sumSq/trials - mean*mean

	assert.Less(t, math.Abs(mean-lambda)/lambda, 0.15)
	assert.Less(t, math.Abs(variance-lambda)/lambda, 0.25)
	assert.GreaterOrEqual(t, mean, 43.0)
	assert.LessOrEqual(t, mean, 58.0)
}

func TestSpatialBaseLambda(t *testing.T) {
	cfg := &spawning.SpawnConfig{
		HourlyRates:    map[int]float64{7: 1.5},
		DayMultipliers: map[int]float64{0: 2.0},
	}

	lambda, err := spawning.SpatialBaseLambda(4.0, cfg, mondayAt(7), 30)

	require.NoError(t, err)
	assert.InDelta(t, 6.0, lambda, 1e-9)
}

func TestSpatialBaseLambda_MeanVarianceRatio(t *testing.T) {
	cfg := &spawning.SpawnConfig{}
	rng := rand.New(rand.NewSource(7))

	lambda, err := spawning.SpatialBaseLambda(10.0, cfg, mondayAt(9), 60)
	require.NoError(t, err)

	const trials = 100
	sum, sumSq := 0.0, 0.0
	for i := 0; i < trials; i++ {
		n := float64(spawning.PoissonDraw(lambda, rng))
		sum += n
		sumSq += n * n
	}
	mean := sum / trials
	variance := sumSq/trials - mean*mean

	// Mean-to-variance ratio of a Poisson stream is ~1.
	assert.InDelta(t, 1.0, mean/variance, 0.35)
}

func TestSpatialBaseLambda_RejectsNegativeWindow(t *testing.T) {
	_, err := spawning.SpatialBaseLambda(1.0, &spawning.SpawnConfig{}, mondayAt(9), -5)
	assert.ErrorIs(t, err, spawning.ErrBadConfig)
}
