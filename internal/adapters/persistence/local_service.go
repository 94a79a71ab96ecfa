package persistence

import (
	"context"

	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/domain/geo"
)

// LocalService adapts the spatial repository to the application-facing
// geospatial port, fixing the geocode radii at construction. Spawners and
// manifest enrichment running in the same process use it instead of the HTTP
// client.
type LocalService struct {
	repo           *SpatialRepository
	highwayRadiusM float64
	poiRadiusM     float64
}

var _ common.GeospatialService = (*LocalService)(nil)

// NewLocalService wraps repo with the given geocode radii. Non-positive radii
// select the defaults.
func NewLocalService(repo *SpatialRepository, highwayRadiusM, poiRadiusM float64) *LocalService {
	if highwayRadiusM <= 0 {
		highwayRadiusM = DefaultHighwayRadiusM
	}
	if poiRadiusM <= 0 {
		poiRadiusM = DefaultPOIRadiusM
	}
	return &LocalService{repo: repo, highwayRadiusM: highwayRadiusM, poiRadiusM: poiRadiusM}
}

func (s *LocalService) RouteGeometry(ctx context.Context, routeID string) (*common.RouteGeometry, error) {
	return s.repo.RouteGeometry(ctx, routeID)
}

func (s *LocalService) NearbyBuildings(ctx context.Context, p geo.Point, radiusM float64, limit int) ([]common.BuildingRef, error) {
	return s.repo.NearbyBuildings(ctx, p, radiusM, limit)
}

func (s *LocalService) BuildingsAlongRoute(ctx context.Context, line geo.Polyline, bufferM float64, limit int) ([]common.BuildingRef, error) {
	return s.repo.BuildingsAlongRoute(ctx, line, bufferM, limit)
}

func (s *LocalService) DepotCatchment(ctx context.Context, p geo.Point, radiusM float64, limit int) ([]common.BuildingRef, error) {
	return s.repo.DepotCatchment(ctx, p, radiusM, limit)
}

func (s *LocalService) ReverseGeocode(ctx context.Context, p geo.Point) (*common.Address, error) {
	return s.repo.ReverseGeocode(ctx, p, s.highwayRadiusM, s.poiRadiusM)
}

func (s *LocalService) GeofenceCheck(ctx context.Context, p geo.Point) (*common.GeofenceResult, error) {
	return s.repo.GeofenceCheck(ctx, p)
}
