package manifest_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/application/manifest"
	"github.com/mtransit/fleetsim/internal/domain/geo"
	"github.com/mtransit/fleetsim/internal/domain/passenger"
	"github.com/mtransit/fleetsim/internal/domain/shared"
)

type stubGeo struct {
	line        geo.Polyline
	geomErr     error
	geocodeErr  error
	geocodeHits atomic.Int64
}

func (s *stubGeo) RouteGeometry(_ context.Context, routeID string) (*common.RouteGeometry, error) {
	if s.geomErr != nil {
		return nil, s.geomErr
	}
	return &common.RouteGeometry{RouteID: routeID, Coordinates: s.line, LengthM: s.line.Length()}, nil
}

func (s *stubGeo) ReverseGeocode(_ context.Context, p geo.Point) (*common.Address, error) {
	s.geocodeHits.Add(1)
	if s.geocodeErr != nil {
		return nil, s.geocodeErr
	}
	return &common.Address{Formatted: "addr@" + p.RoundedKey()}, nil
}

func (s *stubGeo) NearbyBuildings(context.Context, geo.Point, float64, int) ([]common.BuildingRef, error) {
	return nil, nil
}
func (s *stubGeo) BuildingsAlongRoute(context.Context, geo.Polyline, float64, int) ([]common.BuildingRef, error) {
	return nil, nil
}
func (s *stubGeo) DepotCatchment(context.Context, geo.Point, float64, int) ([]common.BuildingRef, error) {
	return nil, nil
}
func (s *stubGeo) GeofenceCheck(context.Context, geo.Point) (*common.GeofenceResult, error) {
	return &common.GeofenceResult{}, nil
}

// spacedLine builds a polyline with vertices roughly 100 m apart going north.
func spacedLine(n int) geo.Polyline {
	const step = 0.0009 // ~100 m of latitude
	line := make(geo.Polyline, n)
	for i := range line {
		line[i] = geo.Point{Lat: -6.80 + float64(i)*step, Lon: 39.25}
	}
	return line
}

func rowAt(id string, p geo.Point) *passenger.Passenger {
	at := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	return &passenger.Passenger{
		PassengerID: id,
		RouteID:     "route-1",
		Spawn:       p,
		Destination: geo.Point{Lat: -6.82, Lon: 39.27},
		SpawnTime:   at,
		ExpiresAt:   at.Add(30 * time.Minute),
		Status:      passenger.StatusWaiting,
		Priority:    1,
	}
}

func TestEnricher_SortsByRoutePosition(t *testing.T) {
	line := spacedLine(6)
	svc := &stubGeo{line: line}
	e := manifest.NewEnricher(svc, 5)

	// Rows at vertices 0, 5 and 2: cumulative 0 m, 500 m, 200 m.
	rows := []*passenger.Passenger{
		rowAt("PSG-V0", line[0]),
		rowAt("PSG-V5", line[5]),
		rowAt("PSG-V2", line[2]),
	}

	out, err := e.Enrich(context.Background(), rows, "route-1")

	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{out[0].Index, out[1].Index, out[2].Index})
	assert.Equal(t, "PSG-V0", out[0].PassengerID)
	assert.Equal(t, "PSG-V2", out[1].PassengerID)
	assert.Equal(t, "PSG-V5", out[2].PassengerID)
	assert.InDelta(t, 0, out[0].RoutePositionM, 1)
	assert.InDelta(t, 200, out[1].RoutePositionM, 2)
	assert.InDelta(t, 500, out[2].RoutePositionM, 3)
}

func TestEnricher_PreservesInputMultiset(t *testing.T) {
	line := spacedLine(4)
	e := manifest.NewEnricher(&stubGeo{line: line}, 5)

	var rows []*passenger.Passenger
	want := map[string]bool{}
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("PSG-%02d", i)
		rows = append(rows, rowAt(id, line[i%len(line)]))
		want[id] = true
	}

	out, err := e.Enrich(context.Background(), rows, "route-1")

	require.NoError(t, err)
	require.Len(t, out, len(rows))
	got := map[string]bool{}
	for _, r := range out {
		got[r.PassengerID] = true
	}
	assert.Equal(t, want, got)
}

func TestEnricher_GeocodeFailureRendersDash(t *testing.T) {
	line := spacedLine(3)
	svc := &stubGeo{line: line, geocodeErr: errors.New("geocoder down")}
	e := manifest.NewEnricher(svc, 2)

	out, err := e.Enrich(context.Background(), []*passenger.Passenger{rowAt("PSG-A", line[1])}, "route-1")

	require.NoError(t, err, "geocoding failures must not abort the request")
	require.Len(t, out, 1)
	assert.Equal(t, "-", out[0].SpawnAddress)
	assert.Equal(t, "-", out[0].DestinationAddress)
}

func TestEnricher_RoundedCacheDeduplicatesLookups(t *testing.T) {
	line := spacedLine(3)
	svc := &stubGeo{line: line}
	e := manifest.NewEnricher(svc, 1)

	// Five rows at the same spawn point share one destination too: at most
	// two distinct rounded keys exist.
	var rows []*passenger.Passenger
	for i := 0; i < 5; i++ {
		rows = append(rows, rowAt(fmt.Sprintf("PSG-%d", i), line[0]))
	}

	out, err := e.Enrich(context.Background(), rows, "route-1")

	require.NoError(t, err)
	assert.LessOrEqual(t, svc.geocodeHits.Load(), int64(2))
	for _, r := range out {
		assert.Equal(t, out[0].SpawnAddress, r.SpawnAddress, "identical keys must yield identical addresses")
	}
}

func TestEnricher_NoRouteSkipsPositions(t *testing.T) {
	e := manifest.NewEnricher(&stubGeo{}, 5)

	out, err := e.Enrich(context.Background(), []*passenger.Passenger{rowAt("PSG-A", geo.Point{Lat: -6.8, Lon: 39.25})}, "")

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Zero(t, out[0].RoutePositionM)
	assert.Positive(t, out[0].TravelDistanceM)
}

func TestEnricher_GeometryErrorPropagates(t *testing.T) {
	e := manifest.NewEnricher(&stubGeo{geomErr: shared.ErrNoGeometry}, 5)

	_, err := e.Enrich(context.Background(), []*passenger.Passenger{rowAt("PSG-A", geo.Point{})}, "route-1")

	assert.ErrorIs(t, err, shared.ErrNoGeometry)
}

func TestEnricher_EmptyInput(t *testing.T) {
	e := manifest.NewEnricher(&stubGeo{}, 5)

	out, err := e.Enrich(context.Background(), nil, "")

	require.NoError(t, err)
	assert.Empty(t, out)
}
