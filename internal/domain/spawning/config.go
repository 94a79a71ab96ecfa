package spawning

import "time"

// Defaults applied when a spawn config omits a field.
const (
	DefaultSpawnRadiusMeters          = 500.0
	DefaultDepotCatchmentRadiusMeters = 1000.0
	DefaultMinSpawnIntervalSeconds    = 30
	DefaultMaxSpawnsPerCycle          = 200
	DefaultPassengerTTL               = 30 * time.Minute
)

// SpawnConfig is a versioned bundle of spawn rates and multipliers, scoped to
// a country or a single route. Snapshots delivered by the config loader are
// immutable; readers must go through the lookup helpers so that missing
// entries resolve to their documented defaults.
type SpawnConfig struct {
	Key     string
	Version int

	// SpatialBase is the base rate in passengers per building per hour.
	SpatialBase float64

	// HourlyRates holds per-hour multipliers indexed 0..23.
	HourlyRates map[int]float64

	// DayMultipliers holds per-weekday multipliers indexed 0..6, Monday = 0.
	DayMultipliers map[int]float64

	SpawnRadiusMeters          float64
	DepotCatchmentRadiusMeters float64
	MinSpawnIntervalSeconds    int
	MaxSpawnsPerCycle          int
}

// HourlyRate returns the multiplier for hour h (0..23), defaulting to 1.0.
func (c *SpawnConfig) HourlyRate(h int) float64 {
	if c == nil || c.HourlyRates == nil {
		return 1.0
	}
	if v, ok := c.HourlyRates[h]; ok {
		return v
	}
	return 1.0
}

// DayMultiplier returns the multiplier for weekday wd where Monday is 0 and
// Sunday is 6, defaulting to 1.0.
func (c *SpawnConfig) DayMultiplier(wd int) float64 {
	if c == nil || c.DayMultipliers == nil {
		return 1.0
	}
	if v, ok := c.DayMultipliers[wd]; ok {
		return v
	}
	return 1.0
}

// SpawnRadius returns the route buffer in meters used for building queries.
func (c *SpawnConfig) SpawnRadius() float64 {
	if c == nil || c.SpawnRadiusMeters <= 0 {
		return DefaultSpawnRadiusMeters
	}
	return c.SpawnRadiusMeters
}

// CatchmentRadius returns the depot buffer in meters.
func (c *SpawnConfig) CatchmentRadius() float64 {
	if c == nil || c.DepotCatchmentRadiusMeters <= 0 {
		return DefaultDepotCatchmentRadiusMeters
	}
	return c.DepotCatchmentRadiusMeters
}

// MaxPerCycle returns the absolute spawn ceiling for one cycle.
func (c *SpawnConfig) MaxPerCycle() int {
	if c == nil || c.MaxSpawnsPerCycle <= 0 {
		return DefaultMaxSpawnsPerCycle
	}
	return c.MaxSpawnsPerCycle
}

// WeekdayIndex converts a time.Weekday to the config encoding (Monday = 0,
// Sunday = 6).
func WeekdayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
