package api

import (
	"context"
	"fmt"
	"time"

	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/domain/geo"
	"github.com/mtransit/fleetsim/internal/domain/shared"
	"github.com/mtransit/fleetsim/internal/domain/transit"
)

const (
	routesResource      = "routes"
	depotsResource      = "depots"
	routeDepotsResource = "route-depots"
	catalogPageSize     = 50
	catalogFetchTimeout = 10 * time.Second
)

// Catalog resolves routes, depots and the route-depot junction from the
// content API.
type Catalog struct {
	client *ContentClient
}

var _ common.TransitCatalog = (*Catalog)(nil)

// NewCatalog creates a catalog over the shared content client.
func NewCatalog(client *ContentClient) *Catalog {
	return &Catalog{client: client}
}

type routeAttrs struct {
	RouteID   string      `json:"route_id"`
	ShortName string      `json:"short_name"`
	Geometry  [][]float64 `json:"geometry"` // [lon, lat] pairs
}

type depotAttrs struct {
	DepotID string  `json:"depot_id"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

type routeDepotAttrs struct {
	RouteID string `json:"route_id"`
	DepotID string `json:"depot_id"`
}

// Routes returns every route with its geometry.
func (c *Catalog) Routes(ctx context.Context) ([]*transit.Route, error) {
	ctx, cancel := context.WithTimeout(ctx, catalogFetchTimeout)
	defer cancel()

	var routes []*transit.Route
	page := 1
	for {
		q := ListQuery{Page: page, PageSize: catalogPageSize}
		var out struct {
			Data []struct {
				ID         int        `json:"id"`
				Attributes routeAttrs `json:"attributes"`
			} `json:"data"`
		}
		if err := c.client.Get(ctx, routesResource+"?"+q.Encode(), &out); err != nil {
			return nil, fmt.Errorf("failed to list routes (page %d): %w", page, err)
		}
		if len(out.Data) == 0 {
			return routes, nil
		}
		for _, row := range out.Data {
			routes = append(routes, toRoute(row.Attributes))
		}
		page++
	}
}

// RouteByShortName resolves one route by its human short name.
func (c *Catalog) RouteByShortName(ctx context.Context, shortName string) (*transit.Route, error) {
	ctx, cancel := context.WithTimeout(ctx, catalogFetchTimeout)
	defer cancel()

	q := ListQuery{
		Page:     1,
		PageSize: 1,
		Filters:  []Filter{{Field: "short_name", Op: "$eq", Value: shortName}},
	}
	var out struct {
		Data []struct {
			ID         int        `json:"id"`
			Attributes routeAttrs `json:"attributes"`
		} `json:"data"`
	}
	if err := c.client.Get(ctx, routesResource+"?"+q.Encode(), &out); err != nil {
		return nil, fmt.Errorf("failed to look up route %q: %w", shortName, err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("route %q: %w", shortName, shared.ErrNotFound)
	}
	return toRoute(out.Data[0].Attributes), nil
}

// Depots returns every depot with the identifiers of the routes it serves,
// hydrated from the route-depot junction.
func (c *Catalog) Depots(ctx context.Context) ([]*transit.Depot, error) {
	ctx, cancel := context.WithTimeout(ctx, catalogFetchTimeout)
	defer cancel()

	var depots []*transit.Depot
	page := 1
	for {
		q := ListQuery{Page: page, PageSize: catalogPageSize, Populate: "*"}
		var out struct {
			Data []struct {
				ID         int        `json:"id"`
				Attributes depotAttrs `json:"attributes"`
			} `json:"data"`
		}
		if err := c.client.Get(ctx, depotsResource+"?"+q.Encode(), &out); err != nil {
			return nil, fmt.Errorf("failed to list depots (page %d): %w", page, err)
		}
		if len(out.Data) == 0 {
			break
		}
		for _, row := range out.Data {
			depots = append(depots, &transit.Depot{
				ID:       row.Attributes.DepotID,
				Name:     row.Attributes.Name,
				Location: geo.Point{Lat: row.Attributes.Lat, Lon: row.Attributes.Lon},
			})
		}
		page++
	}

	for _, d := range depots {
		routeIDs, err := c.RoutesForDepot(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		d.RouteIDs = routeIDs
	}
	return depots, nil
}

// RoutesForDepot returns the route identifiers linked to a depot through the
// junction resource.
func (c *Catalog) RoutesForDepot(ctx context.Context, depotID string) ([]string, error) {
	q := ListQuery{
		Page:     1,
		PageSize: catalogPageSize,
		Filters:  []Filter{{Field: "depot_id", Op: "$eq", Value: depotID}},
	}
	var out struct {
		Data []struct {
			ID         int             `json:"id"`
			Attributes routeDepotAttrs `json:"attributes"`
		} `json:"data"`
	}
	if err := c.client.Get(ctx, routeDepotsResource+"?"+q.Encode(), &out); err != nil {
		return nil, fmt.Errorf("failed to resolve routes for depot %s: %w", depotID, err)
	}
	routeIDs := make([]string, 0, len(out.Data))
	for _, row := range out.Data {
		routeIDs = append(routeIDs, row.Attributes.RouteID)
	}
	return routeIDs, nil
}

func toRoute(a routeAttrs) *transit.Route {
	line := make(geo.Polyline, 0, len(a.Geometry))
	for _, pair := range a.Geometry {
		if len(pair) < 2 {
			continue
		}
		// Stored GeoJSON-style: [lon, lat]
		line = append(line, geo.Point{Lat: pair[1], Lon: pair[0]})
	}
	return &transit.Route{
		ID:        a.RouteID,
		ShortName: a.ShortName,
		Geometry:  line,
	}
}
