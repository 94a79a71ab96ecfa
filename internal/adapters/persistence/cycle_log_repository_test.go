package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtransit/fleetsim/internal/adapters/persistence"
	"github.com/mtransit/fleetsim/internal/domain/shared"
	"github.com/mtransit/fleetsim/internal/infrastructure/database"
)

func TestCycleLogRepository_WriteAndRecent(t *testing.T) {
	db, err := database.NewTestConnection()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	clock := shared.NewMockClock(time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC))
	repo := persistence.NewCycleLogRepository(db, clock)
	ctx := context.Background()

	require.NoError(t, repo.Write(ctx, "routespawner", "info", "cycle complete", map[string]interface{}{
		"spawn_count": 12,
	}))
	clock.Advance(2 * time.Minute)
	require.NoError(t, repo.Write(ctx, "routespawner", "warn", "fallback engaged", nil))

	entries, err := repo.Recent(ctx, "routespawner", 10, "", nil)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "fallback engaged", entries[0].Message, "newest first")
	assert.EqualValues(t, 12, entries[1].Metadata["spawn_count"])
}

func TestCycleLogRepository_DeduplicatesWithinWindow(t *testing.T) {
	db, err := database.NewTestConnection()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	clock := shared.NewMockClock(time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC))
	repo := persistence.NewCycleLogRepository(db, clock)
	ctx := context.Background()

	require.NoError(t, repo.Write(ctx, "depotspawner", "warn", "store slow", nil))
	clock.Advance(10 * time.Second)
	require.NoError(t, repo.Write(ctx, "depotspawner", "warn", "store slow", nil))
	clock.Advance(2 * time.Minute)
	require.NoError(t, repo.Write(ctx, "depotspawner", "warn", "store slow", nil))

	entries, err := repo.Recent(ctx, "depotspawner", 10, "warn", nil)

	require.NoError(t, err)
	assert.Len(t, entries, 2, "the repeat inside the window is dropped")
}

func TestCycleLogRepository_FilterByLevel(t *testing.T) {
	db, err := database.NewTestConnection()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	repo := persistence.NewCycleLogRepository(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.Write(ctx, "coordinator", "info", "cycle summary", nil))
	require.NoError(t, repo.Write(ctx, "coordinator", "error", "spawner failed", nil))

	errorsOnly, err := repo.Recent(ctx, "coordinator", 10, "error", nil)

	require.NoError(t, err)
	require.Len(t, errorsOnly, 1)
	assert.Equal(t, "spawner failed", errorsOnly[0].Message)
}
