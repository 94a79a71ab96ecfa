package geospatial

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/domain/geo"
	"github.com/mtransit/fleetsim/internal/domain/shared"
)

const (
	spatialTimeout = 30 * time.Second
	geocodeTimeout = 10 * time.Second
)

// Client talks to the geospatial query service over HTTP. Spawners treat the
// service as optional; see NewNoop for the degraded variant.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ common.GeospatialService = (*Client)(nil)

// NewClient creates a geospatial client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: spatialTimeout},
		baseURL:    baseURL,
	}
}

type buildingPayload struct {
	ID        string  `json:"id"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	DistanceM float64 `json:"distance_m"`
}

type buildingsResponse struct {
	Buildings []buildingPayload `json:"buildings"`
	Count     int               `json:"count"`
	LatencyMS float64           `json:"latency_ms"`
}

// RouteGeometry fetches the polyline and total length for a route.
func (c *Client) RouteGeometry(ctx context.Context, routeID string) (*common.RouteGeometry, error) {
	var out struct {
		RouteID     string      `json:"route_id"`
		Coordinates [][]float64 `json:"coordinates"` // [lon, lat]
		LengthM     float64     `json:"length_m"`
	}
	path := "/spatial/route-geometry/" + url.PathEscape(routeID)
	if err := c.get(ctx, path, nil, &out, spatialTimeout); err != nil {
		return nil, err
	}
	line := make(geo.Polyline, 0, len(out.Coordinates))
	for _, pair := range out.Coordinates {
		if len(pair) < 2 {
			continue
		}
		line = append(line, geo.Point{Lat: pair[1], Lon: pair[0]})
	}
	if len(line) == 0 {
		return nil, fmt.Errorf("route %s: %w", routeID, shared.ErrNoGeometry)
	}
	return &common.RouteGeometry{RouteID: routeID, Coordinates: line, LengthM: out.LengthM}, nil
}

// NearbyBuildings returns buildings within radiusM of p, sorted by distance.
func (c *Client) NearbyBuildings(ctx context.Context, p geo.Point, radiusM float64, limit int) ([]common.BuildingRef, error) {
	return c.buildingQuery(ctx, "/spatial/nearby-buildings", p, radiusM, limit)
}

// DepotCatchment returns the buildings within a depot's catchment radius.
func (c *Client) DepotCatchment(ctx context.Context, p geo.Point, radiusM float64, limit int) ([]common.BuildingRef, error) {
	return c.buildingQuery(ctx, "/spatial/depot-catchment", p, radiusM, limit)
}

func (c *Client) buildingQuery(ctx context.Context, path string, p geo.Point, radiusM float64, limit int) ([]common.BuildingRef, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(p.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(p.Lon, 'f', -1, 64))
	params.Set("radius_meters", strconv.FormatFloat(radiusM, 'f', -1, 64))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var out buildingsResponse
	if err := c.get(ctx, path, params, &out, spatialTimeout); err != nil {
		return nil, err
	}
	return toRefs(out.Buildings), nil
}

// BuildingsAlongRoute returns the deduplicated buildings within bufferM of
// any vertex of line.
func (c *Client) BuildingsAlongRoute(ctx context.Context, line geo.Polyline, bufferM float64, limit int) ([]common.BuildingRef, error) {
	coords := make([][]float64, len(line))
	for i, p := range line {
		coords[i] = []float64{p.Lon, p.Lat}
	}
	body := map[string]interface{}{
		"coordinates":   coords,
		"buffer_meters": bufferM,
		"limit":         limit,
	}
	var out buildingsResponse
	if err := c.post(ctx, "/spatial/buildings-along-route", body, &out, spatialTimeout); err != nil {
		return nil, err
	}
	return toRefs(out.Buildings), nil
}

// ReverseGeocode resolves the nearest highway, POI and parish for p.
func (c *Client) ReverseGeocode(ctx context.Context, p geo.Point) (*common.Address, error) {
	body := map[string]float64{"latitude": p.Lat, "longitude": p.Lon}
	var out struct {
		Highway   string  `json:"highway"`
		POI       string  `json:"poi"`
		Parish    string  `json:"parish"`
		Formatted string  `json:"formatted_address"`
		LatencyMS float64 `json:"latency_ms"`
	}
	if err := c.post(ctx, "/geocode/reverse", body, &out, geocodeTimeout); err != nil {
		return nil, err
	}
	return &common.Address{
		Highway:   out.Highway,
		POI:       out.POI,
		Parish:    out.Parish,
		Formatted: out.Formatted,
	}, nil
}

// GeofenceCheck reports region and landuse membership for p.
func (c *Client) GeofenceCheck(ctx context.Context, p geo.Point) (*common.GeofenceResult, error) {
	body := map[string]float64{"latitude": p.Lat, "longitude": p.Lon}
	var out struct {
		InsideRegion  bool    `json:"inside_region"`
		RegionName    string  `json:"region_name"`
		InsideLanduse bool    `json:"inside_landuse"`
		LanduseKind   string  `json:"landuse_kind"`
		LatencyMS     float64 `json:"latency_ms"`
	}
	if err := c.post(ctx, "/geofence/check", body, &out, spatialTimeout); err != nil {
		return nil, err
	}
	return &common.GeofenceResult{
		InsideRegion:  out.InsideRegion,
		RegionName:    out.RegionName,
		InsideLanduse: out.InsideLanduse,
		LanduseKind:   out.LanduseKind,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}, timeout time.Duration) error {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodGet, fullURL, nil, result, timeout)
}

func (c *Client) post(ctx context.Context, path string, body, result interface{}, timeout time.Duration) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData), result, timeout)
}

func (c *Client) do(ctx context.Context, method, fullURL string, body io.Reader, result interface{}, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("geospatial request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read geospatial response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("geospatial %s: %w", fullURL, shared.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("geospatial error (status %d): %s", resp.StatusCode, truncate(string(respBody), 200))
	}
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal geospatial response: %w", err)
		}
	}
	return nil
}

func toRefs(buildings []buildingPayload) []common.BuildingRef {
	refs := make([]common.BuildingRef, len(buildings))
	for i, b := range buildings {
		refs[i] = common.BuildingRef{
			ID:        b.ID,
			Location:  geo.Point{Lat: b.Lat, Lon: b.Lon},
			DistanceM: b.DistanceM,
		}
	}
	return refs
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
