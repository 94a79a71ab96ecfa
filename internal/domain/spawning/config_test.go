package spawning_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mtransit/fleetsim/internal/domain/spawning"
)

func TestSpawnConfig_NilSafeDefaults(t *testing.T) {
	var cfg *spawning.SpawnConfig

	assert.Equal(t, 1.0, cfg.HourlyRate(8))
	assert.Equal(t, 1.0, cfg.DayMultiplier(0))
	assert.Equal(t, spawning.DefaultSpawnRadiusMeters, cfg.SpawnRadius())
	assert.Equal(t, spawning.DefaultDepotCatchmentRadiusMeters, cfg.CatchmentRadius())
	assert.Equal(t, spawning.DefaultMaxSpawnsPerCycle, cfg.MaxPerCycle())
}

func TestSpawnConfig_ExplicitValuesWin(t *testing.T) {
	cfg := &spawning.SpawnConfig{
		HourlyRates:                map[int]float64{17: 2.5},
		DayMultipliers:             map[int]float64{5: 1.4},
		SpawnRadiusMeters:          250,
		DepotCatchmentRadiusMeters: 800,
		MaxSpawnsPerCycle:          50,
	}

	assert.Equal(t, 2.5, cfg.HourlyRate(17))
	assert.Equal(t, 1.0, cfg.HourlyRate(3))
	assert.Equal(t, 1.4, cfg.DayMultiplier(5))
	assert.Equal(t, 250.0, cfg.SpawnRadius())
	assert.Equal(t, 800.0, cfg.CatchmentRadius())
	assert.Equal(t, 50, cfg.MaxPerCycle())
}

func TestWeekdayIndex_MondayZeroSundaySix(t *testing.T) {
	assert.Equal(t, 0, spawning.WeekdayIndex(time.Monday))
	assert.Equal(t, 4, spawning.WeekdayIndex(time.Friday))
	assert.Equal(t, 6, spawning.WeekdayIndex(time.Sunday))
}
