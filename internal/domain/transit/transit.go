// Package transit holds the route and depot reference types. The route/depot
// relationship is many-to-many through RouteDepot; the types hold identifiers
// only, never back-pointers.
package transit

import "github.com/mtransit/fleetsim/internal/domain/geo"

// Route is a bus line with its polyline geometry.
type Route struct {
	ID        string
	ShortName string
	Geometry  geo.Polyline
}

// Depot is a terminal that originates passengers for the routes it serves.
type Depot struct {
	ID       string
	Name     string
	Location geo.Point
	RouteIDs []string
}

// RouteDepot is the junction row linking a route to a depot.
type RouteDepot struct {
	RouteID string
	DepotID string
}

// Building is an opaque population proxy at a coordinate.
type Building struct {
	ID       string
	Location geo.Point
}
