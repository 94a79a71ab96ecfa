package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/domain/geo"
	"github.com/mtransit/fleetsim/internal/domain/shared"
)

// Default search radii for reverse geocoding, in meters.
const (
	DefaultHighwayRadiusM = 100.0
	DefaultPOIRadiusM     = 250.0
)

// SpatialRepository answers spatial queries over the local database. Exact
// distances use Haversine after a bounding-box prefilter, since the schema
// carries plain lat/lon columns rather than a spatial index.
type SpatialRepository struct {
	db *gorm.DB
}

// NewSpatialRepository creates a repository over db.
func NewSpatialRepository(db *gorm.DB) *SpatialRepository {
	return &SpatialRepository{db: db}
}

// Migrate creates or updates the spatial schema.
func (r *SpatialRepository) Migrate() error {
	return r.db.AutoMigrate(SpatialModels()...)
}

// NearbyBuildings returns buildings within radiusM of p, sorted by distance
// ascending, at most limit rows.
func (r *SpatialRepository) NearbyBuildings(ctx context.Context, p geo.Point, radiusM float64, limit int) ([]common.BuildingRef, error) {
	var models []BuildingModel
	if err := r.boxQuery(ctx, p, radiusM).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to query buildings: %w", err)
	}
	refs := refsWithin(p, radiusM, models)
	return clampRefs(refs, limit), nil
}

// DepotCatchment returns buildings and POIs within radiusM of p, merged and
// sorted by distance.
func (r *SpatialRepository) DepotCatchment(ctx context.Context, p geo.Point, radiusM float64, limit int) ([]common.BuildingRef, error) {
	refs, err := r.NearbyBuildings(ctx, p, radiusM, 0)
	if err != nil {
		return nil, err
	}

	var pois []POIModel
	if err := r.boxQuery(ctx, p, radiusM).Find(&pois).Error; err != nil {
		return nil, fmt.Errorf("failed to query pois: %w", err)
	}
	for _, poi := range pois {
		loc := geo.Point{Lat: poi.Lat, Lon: poi.Lon}
		if d := geo.Haversine(p, loc); d <= radiusM {
			refs = append(refs, common.BuildingRef{ID: "poi:" + poi.ID, Location: loc, DistanceM: d})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].DistanceM < refs[j].DistanceM })
	return clampRefs(refs, limit), nil
}

// BuildingsAlongRoute returns the buildings within bufferM of any vertex of
// line, deduplicated by identifier.
func (r *SpatialRepository) BuildingsAlongRoute(ctx context.Context, line geo.Polyline, bufferM float64, limit int) ([]common.BuildingRef, error) {
	if len(line) == 0 {
		return nil, geo.ErrEmptyPolyline
	}

	seen := make(map[string]common.BuildingRef)
	for _, vertex := range line {
		var models []BuildingModel
		if err := r.boxQuery(ctx, vertex, bufferM).Find(&models).Error; err != nil {
			return nil, fmt.Errorf("failed to query buildings along route: %w", err)
		}
		for _, ref := range refsWithin(vertex, bufferM, models) {
			if prev, ok := seen[ref.ID]; !ok || ref.DistanceM < prev.DistanceM {
				seen[ref.ID] = ref
			}
		}
	}

	refs := make([]common.BuildingRef, 0, len(seen))
	for _, ref := range seen {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].DistanceM < refs[j].DistanceM })
	return clampRefs(refs, limit), nil
}

// ReverseGeocode resolves the nearest highway and POI within their radii plus
// the containing parish, and synthesizes a display address. Missing features
// leave their field empty. Growing a radius can only add features, never
// remove one already found.
func (r *SpatialRepository) ReverseGeocode(ctx context.Context, p geo.Point, highwayRadiusM, poiRadiusM float64) (*common.Address, error) {
	if highwayRadiusM <= 0 {
		highwayRadiusM = DefaultHighwayRadiusM
	}
	if poiRadiusM <= 0 {
		poiRadiusM = DefaultPOIRadiusM
	}

	addr := &common.Address{}

	var highways []HighwayModel
	if err := r.boxQuery(ctx, p, highwayRadiusM).Find(&highways).Error; err != nil {
		return nil, fmt.Errorf("failed to query highways: %w", err)
	}
	bestDist := highwayRadiusM
	for _, hw := range highways {
		line, err := decodeLine(hw.Geometry)
		if err != nil {
			continue
		}
		if _, d, err := line.NearestVertex(p); err == nil && d <= bestDist {
			bestDist = d
			addr.Highway = hw.Name
		}
	}

	var pois []POIModel
	if err := r.boxQuery(ctx, p, poiRadiusM).Find(&pois).Error; err != nil {
		return nil, fmt.Errorf("failed to query pois: %w", err)
	}
	bestDist = poiRadiusM
	for _, poi := range pois {
		if d := geo.Haversine(p, geo.Point{Lat: poi.Lat, Lon: poi.Lon}); d <= bestDist {
			bestDist = d
			addr.POI = poi.Name
		}
	}

	var parishes []ParishModel
	if err := r.db.WithContext(ctx).Find(&parishes).Error; err != nil {
		return nil, fmt.Errorf("failed to query parishes: %w", err)
	}
	for _, parish := range parishes {
		ring, err := decodeRing(parish.Boundary)
		if err != nil {
			continue
		}
		if ring.Contains(p) {
			addr.Parish = parish.Name
			break
		}
	}

	addr.Formatted = formatAddress(addr)
	return addr, nil
}

// GeofenceCheck reports whether p falls inside any region and any landuse
// zone.
func (r *SpatialRepository) GeofenceCheck(ctx context.Context, p geo.Point) (*common.GeofenceResult, error) {
	result := &common.GeofenceResult{}

	var regions []RegionModel
	if err := r.db.WithContext(ctx).Find(&regions).Error; err != nil {
		return nil, fmt.Errorf("failed to query regions: %w", err)
	}
	for _, region := range regions {
		ring, err := decodeRing(region.Boundary)
		if err != nil {
			continue
		}
		if ring.Contains(p) {
			result.InsideRegion = true
			result.RegionName = region.Name
			break
		}
	}

	var zones []LanduseModel
	if err := r.db.WithContext(ctx).Find(&zones).Error; err != nil {
		return nil, fmt.Errorf("failed to query landuse: %w", err)
	}
	for _, zone := range zones {
		ring, err := decodeRing(zone.Boundary)
		if err != nil {
			continue
		}
		if ring.Contains(p) {
			result.InsideLanduse = true
			result.LanduseKind = zone.Kind
			break
		}
	}
	return result, nil
}

// RouteGeometry loads a route's polyline. Unknown routes return ErrNotFound.
func (r *SpatialRepository) RouteGeometry(ctx context.Context, routeID string) (*common.RouteGeometry, error) {
	var model RouteGeometryModel
	result := r.db.WithContext(ctx).Where("route_id = ?", routeID).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("route %s: %w", routeID, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load route geometry: %w", result.Error)
	}
	line, err := decodeLine(model.Coordinates)
	if err != nil {
		return nil, fmt.Errorf("route %s: corrupt geometry: %w", routeID, err)
	}
	return &common.RouteGeometry{RouteID: routeID, Coordinates: line, LengthM: model.LengthM}, nil
}

// SaveRouteGeometry upserts a route polyline, recomputing its length.
func (r *SpatialRepository) SaveRouteGeometry(ctx context.Context, routeID string, line geo.Polyline) error {
	encoded, err := encodeLine(line)
	if err != nil {
		return err
	}
	model := RouteGeometryModel{RouteID: routeID, Coordinates: encoded, LengthM: line.Length()}
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("failed to save route geometry: %w", err)
	}
	return nil
}

// boxQuery narrows a lat/lon table to the bounding box covering radiusM
// around p.
func (r *SpatialRepository) boxQuery(ctx context.Context, p geo.Point, radiusM float64) *gorm.DB {
	dLat, dLon := geo.BoundingBoxDegrees(p.Lat, radiusM)
	return r.db.WithContext(ctx).
		Where("lat BETWEEN ? AND ?", p.Lat-dLat, p.Lat+dLat).
		Where("lon BETWEEN ? AND ?", p.Lon-dLon, p.Lon+dLon)
}

func refsWithin(p geo.Point, radiusM float64, models []BuildingModel) []common.BuildingRef {
	refs := make([]common.BuildingRef, 0, len(models))
	for _, m := range models {
		loc := geo.Point{Lat: m.Lat, Lon: m.Lon}
		if d := geo.Haversine(p, loc); d <= radiusM {
			refs = append(refs, common.BuildingRef{ID: m.ID, Location: loc, DistanceM: d})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].DistanceM < refs[j].DistanceM })
	return refs
}

func clampRefs(refs []common.BuildingRef, limit int) []common.BuildingRef {
	if limit > 0 && len(refs) > limit {
		return refs[:limit]
	}
	return refs
}

func decodeLine(encoded string) (geo.Polyline, error) {
	var pairs [][]float64
	if err := json.Unmarshal([]byte(encoded), &pairs); err != nil {
		return nil, err
	}
	line := make(geo.Polyline, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) < 2 {
			continue
		}
		line = append(line, geo.Point{Lat: pair[1], Lon: pair[0]})
	}
	return line, nil
}

func decodeRing(encoded string) (geo.Polygon, error) {
	line, err := decodeLine(encoded)
	if err != nil {
		return nil, err
	}
	return geo.Polygon(line), nil
}

func encodeLine(line geo.Polyline) (string, error) {
	pairs := make([][]float64, len(line))
	for i, p := range line {
		pairs[i] = []float64{p.Lon, p.Lat}
	}
	bytes, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal geometry: %w", err)
	}
	return string(bytes), nil
}

func formatAddress(addr *common.Address) string {
	var parts []string
	if addr.POI != "" {
		parts = append(parts, addr.POI)
	}
	if addr.Highway != "" {
		parts = append(parts, addr.Highway)
	}
	if addr.Parish != "" {
		parts = append(parts, addr.Parish)
	}
	return strings.Join(parts, ", ")
}
