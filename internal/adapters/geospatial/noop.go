package geospatial

import (
	"context"
	"fmt"

	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/domain/geo"
	"github.com/mtransit/fleetsim/internal/domain/shared"
)

// Noop is the degraded geospatial service used when no service URL is
// configured. Building queries return empty sets so spawners fall back to
// their route-only and spatial-base paths; geometry lookups fail loudly
// because nothing sensible can be synthesized for them.
type Noop struct{}

var _ common.GeospatialService = (*Noop)(nil)

// NewNoop returns a geospatial service that answers every building query
// with an empty result.
func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) RouteGeometry(_ context.Context, routeID string) (*common.RouteGeometry, error) {
	return nil, fmt.Errorf("route %s: %w", routeID, shared.ErrNoGeometry)
}

func (n *Noop) NearbyBuildings(context.Context, geo.Point, float64, int) ([]common.BuildingRef, error) {
	return nil, nil
}

func (n *Noop) DepotCatchment(context.Context, geo.Point, float64, int) ([]common.BuildingRef, error) {
	return nil, nil
}

func (n *Noop) BuildingsAlongRoute(context.Context, geo.Polyline, float64, int) ([]common.BuildingRef, error) {
	return nil, nil
}

func (n *Noop) ReverseGeocode(context.Context, geo.Point) (*common.Address, error) {
	return &common.Address{}, nil
}

func (n *Noop) GeofenceCheck(context.Context, geo.Point) (*common.GeofenceResult, error) {
	return &common.GeofenceResult{}, nil
}
