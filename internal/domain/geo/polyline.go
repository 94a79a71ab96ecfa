package geo

import "errors"

// ErrEmptyPolyline is returned when an operation requires at least one vertex.
var ErrEmptyPolyline = errors.New("polyline has no vertices")

// Polyline is an ordered vertex sequence representing a route's geometry.
type Polyline []Point

// Length returns the total arc length of the polyline in meters.
func (pl Polyline) Length() float64 {
	cum := pl.CumulativeDistances()
	if len(cum) == 0 {
		return 0
	}
	return cum[len(cum)-1]
}

// CumulativeDistances returns the running arc length at every vertex.
// The result is monotonically non-decreasing and its first element is 0.
func (pl Polyline) CumulativeDistances() []float64 {
	if len(pl) == 0 {
		return nil
	}
	cum := make([]float64, len(pl))
	for i := 1; i < len(pl); i++ {
		cum[i] = cum[i-1] + Haversine(pl[i-1], pl[i])
	}
	return cum
}

// NearestVertex returns the index of the vertex closest to p and its distance
// in meters. An empty polyline returns ErrEmptyPolyline.
func (pl Polyline) NearestVertex(p Point) (int, float64, error) {
	if len(pl) == 0 {
		return 0, 0, ErrEmptyPolyline
	}
	bestIdx := 0
	bestDist := Haversine(p, pl[0])
	for i := 1; i < len(pl); i++ {
		if d := Haversine(p, pl[i]); d < bestDist {
			bestIdx = i
			bestDist = d
		}
	}
	return bestIdx, bestDist, nil
}

// PositionAlong projects p onto the polyline by nearest vertex and returns the
// cumulative arc length at that vertex. A single-vertex polyline always
// yields 0.
func (pl Polyline) PositionAlong(p Point) (float64, error) {
	idx, _, err := pl.NearestVertex(p)
	if err != nil {
		return 0, err
	}
	return pl.CumulativeDistances()[idx], nil
}
