package spawning

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ErrBadConfig is returned when a rate or multiplier is negative or
// non-finite. The kernel never silently clamps bad input.
var ErrBadConfig = fmt.Errorf("invalid spawn configuration")

// TemporalMultipliers holds the time-of-day factors resolved from a config.
type TemporalMultipliers struct {
	Base   float64
	Hourly float64
	Day    float64
}

// HybridSpawnResult carries every intermediate of the hybrid model alongside
// the final draw, so callers can log and assert on the full derivation.
type HybridSpawnResult struct {
	Base               float64
	HourlyMultiplier   float64
	DayMultiplier      float64
	EffectiveRate      float64
	TerminalPopulation float64
	Attractiveness     float64
	PassengersPerHour  float64
	Lambda             float64
	SpawnCount         int
}

// ResolveTemporalMultipliers looks up the base rate and the hour/day
// multipliers for t from cfg. Missing table entries default to 1.
func ResolveTemporalMultipliers(cfg *SpawnConfig, t time.Time) (TemporalMultipliers, error) {
	base := 0.0
	if cfg != nil {
		base = cfg.SpatialBase
	}
	m := TemporalMultipliers{
		Base:   base,
		Hourly: cfg.HourlyRate(t.Hour()),
		Day:    cfg.DayMultiplier(WeekdayIndex(t.Weekday())),
	}
	if err := checkRates(m.Base, m.Hourly, m.Day); err != nil {
		return TemporalMultipliers{}, err
	}
	return m, nil
}

// EffectiveRate composes the three temporal factors.
func EffectiveRate(m TemporalMultipliers) float64 {
	return m.Base * m.Hourly * m.Day
}

// TerminalPopulation is the expected passengers per hour emitted by a depot
// catchment of bDepot buildings at the given effective rate.
func TerminalPopulation(bDepot, effRate float64) float64 {
	return bDepot * effRate
}

// RouteAttractiveness is a route's fractional share of depot demand. It is
// exactly 0 when the denominator is 0.
func RouteAttractiveness(bRoute, bTotal float64) float64 {
	if bTotal <= 0 {
		return 0
	}
	return bRoute / bTotal
}

// Lambda converts a passengers-per-hour rate to the Poisson mean for a
// window of windowMinutes.
func Lambda(passengersPerHour, windowMinutes float64) float64 {
	return passengersPerHour * (windowMinutes / 60.0)
}

// CalculateHybridSpawn runs the full hybrid model: population-derived terminal
// rate weighted by route attractiveness, then a Poisson draw over the window.
// bDepot, bRoute and bTotal are building counts; rng must not be nil.
func CalculateHybridSpawn(cfg *SpawnConfig, t time.Time, windowMinutes float64,
	bDepot, bRoute, bTotal float64, rng *rand.Rand) (HybridSpawnResult, error) {

	res, err := ExpectedHybridSpawn(cfg, t, windowMinutes, bDepot, bRoute, bTotal)
	if err != nil {
		return HybridSpawnResult{}, err
	}
	res.SpawnCount = PoissonDraw(res.Lambda, rng)
	return res, nil
}

// ExpectedHybridSpawn is the validation form of the hybrid model: it returns
// every intermediate and the expectation without drawing.
func ExpectedHybridSpawn(cfg *SpawnConfig, t time.Time, windowMinutes float64,
	bDepot, bRoute, bTotal float64) (HybridSpawnResult, error) {

	m, err := ResolveTemporalMultipliers(cfg, t)
	if err != nil {
		return HybridSpawnResult{}, err
	}
	if err := checkCounts(windowMinutes, bDepot, bRoute, bTotal); err != nil {
		return HybridSpawnResult{}, err
	}

	eff := EffectiveRate(m)
	terminal := TerminalPopulation(bDepot, eff)
	attract := RouteAttractiveness(bRoute, bTotal)
	perHour := terminal * attract

	return HybridSpawnResult{
		Base:               m.Base,
		HourlyMultiplier:   m.Hourly,
		DayMultiplier:      m.Day,
		EffectiveRate:      eff,
		TerminalPopulation: terminal,
		Attractiveness:     attract,
		PassengersPerHour:  perHour,
		Lambda:             Lambda(perHour, windowMinutes),
	}, nil
}

// SpatialBaseLambda is the simpler model used by depot spawners: the base
// rate modulated by hour and day only, scaled to the window.
func SpatialBaseLambda(base float64, cfg *SpawnConfig, t time.Time, windowMinutes float64) (float64, error) {
	hourly := cfg.HourlyRate(t.Hour())
	day := cfg.DayMultiplier(WeekdayIndex(t.Weekday()))
	if err := checkRates(base, hourly, day); err != nil {
		return 0, err
	}
	if windowMinutes < 0 || !isFinite(windowMinutes) {
		return 0, fmt.Errorf("%w: window %v minutes", ErrBadConfig, windowMinutes)
	}
	return Lambda(base*hourly*day, windowMinutes), nil
}

func checkRates(vals ...float64) error {
	for _, v := range vals {
		if v < 0 || !isFinite(v) {
			return fmt.Errorf("%w: rate %v", ErrBadConfig, v)
		}
	}
	return nil
}

func checkCounts(vals ...float64) error {
	for _, v := range vals {
		if v < 0 || !isFinite(v) {
			return fmt.Errorf("%w: count %v", ErrBadConfig, v)
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
