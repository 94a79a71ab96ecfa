package api_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtransit/fleetsim/internal/adapters/api"
	"github.com/mtransit/fleetsim/internal/domain/shared"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	cb := api.NewCircuitBreaker(3, 30*time.Second, clock)
	boom := errors.New("store down")

	for i := 0; i < 3; i++ {
		err := cb.Call(func() error { return boom })
		require.ErrorIs(t, err, boom)
	}

	assert.Equal(t, api.CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Call(func() error { return nil }), api.ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	cb := api.NewCircuitBreaker(1, 10*time.Second, clock)

	_ = cb.Call(func() error { return errors.New("fail") })
	require.Equal(t, api.CircuitOpen, cb.State())

	clock.Advance(11 * time.Second)

	// Probe succeeds, circuit closes
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, api.CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	cb := api.NewCircuitBreaker(1, 10*time.Second, clock)

	_ = cb.Call(func() error { return errors.New("fail") })
	clock.Advance(11 * time.Second)
	_ = cb.Call(func() error { return errors.New("still failing") })

	assert.Equal(t, api.CircuitOpen, cb.State())
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := api.NewCircuitBreaker(2, time.Second, shared.NewMockClock(time.Now()))

	_ = cb.Call(func() error { return errors.New("one") })
	require.NoError(t, cb.Call(func() error { return nil }))
	_ = cb.Call(func() error { return errors.New("two") })

	assert.Equal(t, api.CircuitClosed, cb.State())
}
