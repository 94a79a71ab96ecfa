package passenger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtransit/fleetsim/internal/domain/geo"
	"github.com/mtransit/fleetsim/internal/domain/passenger"
)

func TestStatus_Transitions(t *testing.T) {
	assert.True(t, passenger.StatusWaiting.CanTransitionTo(passenger.StatusBoarded))
	assert.True(t, passenger.StatusWaiting.CanTransitionTo(passenger.StatusExpired))
	assert.True(t, passenger.StatusWaiting.CanTransitionTo(passenger.StatusCancelled))
	assert.True(t, passenger.StatusBoarded.CanTransitionTo(passenger.StatusAlighted))

	assert.False(t, passenger.StatusBoarded.CanTransitionTo(passenger.StatusWaiting))
	assert.False(t, passenger.StatusBoarded.CanTransitionTo(passenger.StatusExpired))
	assert.False(t, passenger.StatusAlighted.CanTransitionTo(passenger.StatusBoarded))
	assert.False(t, passenger.StatusExpired.CanTransitionTo(passenger.StatusWaiting))
	assert.False(t, passenger.StatusCancelled.CanTransitionTo(passenger.StatusBoarded))
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, passenger.StatusWaiting.IsTerminal())
	assert.False(t, passenger.StatusBoarded.IsTerminal())
	assert.True(t, passenger.StatusAlighted.IsTerminal())
	assert.True(t, passenger.StatusExpired.IsTerminal())
	assert.True(t, passenger.StatusCancelled.IsTerminal())
}

func TestPassenger_Validate(t *testing.T) {
	now := time.Now().UTC()
	p := &passenger.Passenger{
		PassengerID: "PSG-1",
		Status:      passenger.StatusWaiting,
		SpawnTime:   now,
		ExpiresAt:   now.Add(30 * time.Minute),
	}

	assert.NoError(t, p.Validate())

	p.ExpiresAt = now.Add(-time.Minute)
	assert.Error(t, p.Validate())

	p.ExpiresAt = now.Add(time.Minute)
	p.Status = "LOST"
	assert.Error(t, p.Validate())
}

func TestSpawnRequest_EnsureID(t *testing.T) {
	r := &passenger.SpawnRequest{}

	id := r.EnsureID()

	require.NotEmpty(t, id)
	assert.Contains(t, id, "PSG-")
	assert.Equal(t, id, r.EnsureID(), "an existing identifier must not be regenerated")
}

func TestSpawnRequest_ToPassenger(t *testing.T) {
	spawnAt := time.Date(2025, 6, 2, 8, 15, 0, 0, time.UTC)
	r := &passenger.SpawnRequest{
		Spawn:       geo.Point{Lat: -6.80, Lon: 39.25},
		Destination: geo.Point{Lat: -6.82, Lon: 39.27},
		RouteID:     "route-1",
		SpawnTime:   spawnAt,
		Context:     passenger.ContextRoute,
		Priority:    1.0,
	}

	p := r.ToPassenger(0)

	assert.Equal(t, passenger.StatusWaiting, p.Status)
	assert.Equal(t, spawnAt.Add(30*time.Minute), p.ExpiresAt)
	assert.Equal(t, 1, p.Priority)
	assert.True(t, p.SpawnTime.Before(p.ExpiresAt))
	require.NoError(t, p.Validate())
}
