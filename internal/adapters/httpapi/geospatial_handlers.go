package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mtransit/fleetsim/internal/adapters/persistence"
	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/domain/geo"
	"github.com/mtransit/fleetsim/internal/domain/shared"
)

type buildingDTO struct {
	ID        string  `json:"id"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	DistanceM float64 `json:"distance_m"`
}

type buildingsDTO struct {
	Buildings []buildingDTO `json:"buildings"`
	Count     int           `json:"count"`
	LatencyMS float64       `json:"latency_ms"`
}

func toBuildingDTOs(refs []common.BuildingRef) []buildingDTO {
	out := make([]buildingDTO, len(refs))
	for i, ref := range refs {
		out[i] = buildingDTO{
			ID:        ref.ID,
			Lat:       ref.Location.Lat,
			Lon:       ref.Location.Lon,
			DistanceM: ref.DistanceM,
		}
	}
	return out
}

func (s *Server) handleRouteGeometry(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	routeID := chi.URLParam(r, "routeID")
	if routeID == "" {
		writeError(w, http.StatusBadRequest, "missing_route", "route identifier is required")
		return
	}

	geom, err := s.spatial.RouteGeometry(r.Context(), routeID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrNoGeometry) {
			writeError(w, http.StatusNotFound, "route_not_found", "no geometry for route "+routeID)
			return
		}
		writeError(w, http.StatusInternalServerError, "spatial_query_failed", err.Error())
		return
	}

	coords := make([][]float64, len(geom.Coordinates))
	for i, p := range geom.Coordinates {
		coords[i] = []float64{p.Lon, p.Lat}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"route_id":    geom.RouteID,
		"coordinates": coords,
		"length_m":    geom.LengthM,
		"latency_ms":  latencyMS(start),
	})
}

// parsePointQuery reads lat/lon/radius_meters/limit query parameters shared
// by the building endpoints.
func parsePointQuery(r *http.Request) (geo.Point, float64, int, error) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return geo.Point{}, 0, 0, errors.New("lat must be a number")
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		return geo.Point{}, 0, 0, errors.New("lon must be a number")
	}
	p := geo.Point{Lat: lat, Lon: lon}
	if !p.IsValid() {
		return geo.Point{}, 0, 0, errors.New("coordinates outside WGS84 ranges")
	}
	radius, err := strconv.ParseFloat(q.Get("radius_meters"), 64)
	if err != nil || radius <= 0 {
		return geo.Point{}, 0, 0, errors.New("radius_meters must be a positive number")
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return geo.Point{}, 0, 0, errors.New("limit must be a non-negative integer")
		}
	}
	return p, radius, limit, nil
}

func (s *Server) handleNearbyBuildings(w http.ResponseWriter, r *http.Request) {
	s.buildingQuery(w, r, s.spatial.NearbyBuildings)
}

func (s *Server) handleDepotCatchment(w http.ResponseWriter, r *http.Request) {
	s.buildingQuery(w, r, s.spatial.DepotCatchment)
}

func (s *Server) buildingQuery(
	w http.ResponseWriter,
	r *http.Request,
	query func(ctx context.Context, p geo.Point, radiusM float64, limit int) ([]common.BuildingRef, error),
) {
	start := time.Now()
	p, radius, limit, err := parsePointQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_query", err.Error())
		return
	}

	refs, err := query(r.Context(), p, radius, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "spatial_query_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, buildingsDTO{
		Buildings: toBuildingDTOs(refs),
		Count:     len(refs),
		LatencyMS: latencyMS(start),
	})
}

func (s *Server) handleBuildingsAlongRoute(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var body struct {
		Coordinates  [][]float64 `json:"coordinates"` // [lon, lat]
		BufferMeters float64     `json:"buffer_meters"`
		Limit        int         `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_body", "request body must be JSON")
		return
	}
	if body.BufferMeters <= 0 {
		writeError(w, http.StatusBadRequest, "bad_body", "buffer_meters must be a positive number")
		return
	}
	line := make(geo.Polyline, 0, len(body.Coordinates))
	for _, pair := range body.Coordinates {
		if len(pair) < 2 {
			continue
		}
		line = append(line, geo.Point{Lat: pair[1], Lon: pair[0]})
	}
	if len(line) == 0 {
		writeError(w, http.StatusBadRequest, "bad_body", "coordinates must hold at least one [lon, lat] pair")
		return
	}

	refs, err := s.spatial.BuildingsAlongRoute(r.Context(), line, body.BufferMeters, body.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "spatial_query_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, buildingsDTO{
		Buildings: toBuildingDTOs(refs),
		Count:     len(refs),
		LatencyMS: latencyMS(start),
	})
}

func (s *Server) handleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var body struct {
		Latitude            float64  `json:"latitude"`
		Longitude           float64  `json:"longitude"`
		HighwayRadiusMeters *float64 `json:"highway_radius_meters"`
		POIRadiusMeters     *float64 `json:"poi_radius_meters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_body", "request body must be JSON")
		return
	}
	p := geo.Point{Lat: body.Latitude, Lon: body.Longitude}
	if !p.IsValid() {
		writeError(w, http.StatusBadRequest, "bad_body", "coordinates outside WGS84 ranges")
		return
	}
	highwayRadius := persistence.DefaultHighwayRadiusM
	if body.HighwayRadiusMeters != nil && *body.HighwayRadiusMeters > 0 {
		highwayRadius = *body.HighwayRadiusMeters
	}
	poiRadius := persistence.DefaultPOIRadiusM
	if body.POIRadiusMeters != nil && *body.POIRadiusMeters > 0 {
		poiRadius = *body.POIRadiusMeters
	}

	addr, err := s.spatial.ReverseGeocode(r.Context(), p, highwayRadius, poiRadius)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "geocode_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"highway":           addr.Highway,
		"poi":               addr.POI,
		"parish":            addr.Parish,
		"formatted_address": addr.Formatted,
		"latency_ms":        latencyMS(start),
	})
}

func (s *Server) handleGeofenceCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var body struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_body", "request body must be JSON")
		return
	}
	p := geo.Point{Lat: body.Latitude, Lon: body.Longitude}
	if !p.IsValid() {
		writeError(w, http.StatusBadRequest, "bad_body", "coordinates outside WGS84 ranges")
		return
	}

	result, err := s.spatial.GeofenceCheck(r.Context(), p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "geofence_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"inside_region":  result.InsideRegion,
		"region_name":    result.RegionName,
		"inside_landuse": result.InsideLanduse,
		"landuse_kind":   result.LanduseKind,
		"latency_ms":     latencyMS(start),
	})
}
