package geo

import "math"

// Polygon is a closed ring of vertices. The closing edge from the last vertex
// back to the first is implicit.
type Polygon []Point

// Contains reports whether p lies inside the polygon using the ray casting
// rule. Points exactly on an edge may fall on either side; callers that need
// edge semantics should buffer the polygon instead.
func (pg Polygon) Contains(p Point) bool {
	if len(pg) < 3 {
		return false
	}
	inside := false
	j := len(pg) - 1
	for i := 0; i < len(pg); i++ {
		vi, vj := pg[i], pg[j]
		if (vi.Lat > p.Lat) != (vj.Lat > p.Lat) {
			cross := (vj.Lon-vi.Lon)*(p.Lat-vi.Lat)/(vj.Lat-vi.Lat) + vi.Lon
			if p.Lon < cross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// BoundingBoxDegrees returns a latitude/longitude half-extent that covers
// radiusMeters around lat. Used as a cheap prefilter before exact Haversine
// checks; the longitude extent widens with latitude.
func BoundingBoxDegrees(lat, radiusMeters float64) (dLat, dLon float64) {
	const metersPerDegreeLat = 111320.0
	dLat = radiusMeters / metersPerDegreeLat
	c := math.Cos(lat * math.Pi / 180)
	if c < 0.01 {
		c = 0.01
	}
	dLon = radiusMeters / (metersPerDegreeLat * c)
	return dLat, dLon
}
