package manifest

import (
	"context"
	"sort"
	"sync"

	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/domain/geo"
	"github.com/mtransit/fleetsim/internal/domain/passenger"
)

// DefaultGeocodeConcurrency bounds the reverse-geocode pool when the
// configuration does not override it.
const DefaultGeocodeConcurrency = 5

// Row is one enriched manifest line. Indexes start at 1 after sorting by
// route position.
type Row struct {
	Index              int       `json:"index"`
	PassengerID        string    `json:"passenger_id"`
	RouteID            string    `json:"route_id"`
	DepotID            string    `json:"depot_id,omitempty"`
	Status             string    `json:"status"`
	Spawn              geo.Point `json:"spawn"`
	Destination        geo.Point `json:"destination"`
	SpawnAddress       string    `json:"spawn_address"`
	DestinationAddress string    `json:"destination_address"`
	RoutePositionM     float64   `json:"route_position_m"`
	TravelDistanceM    float64   `json:"travel_distance_m"`
	SpawnTime          string    `json:"spawn_time"`
	ExpiresAt          string    `json:"expires_at"`
	Priority           int       `json:"priority"`
}

// Enricher turns persisted passengers into manifest rows: route positions,
// straight-line travel distances and reverse-geocoded addresses.
type Enricher struct {
	geo         common.GeospatialService
	concurrency int
}

// NewEnricher creates an enricher with the given geocode pool size (<=0
// selects the default of 5).
func NewEnricher(geoSvc common.GeospatialService, concurrency int) *Enricher {
	if concurrency <= 0 {
		concurrency = DefaultGeocodeConcurrency
	}
	return &Enricher{geo: geoSvc, concurrency: concurrency}
}

// Enrich builds manifest rows for the given passengers. When routeID is
// supplied, route positions come from that route's polyline; otherwise they
// stay 0. Geocoding failures render as "-" and never abort the request. The
// output is sorted by route position ascending and re-indexed from 1.
func (e *Enricher) Enrich(ctx context.Context, rows []*passenger.Passenger, routeID string) ([]Row, error) {
	if len(rows) == 0 {
		return []Row{}, nil
	}

	var line geo.Polyline
	var cumulative []float64
	if routeID != "" {
		geom, err := e.geo.RouteGeometry(ctx, routeID)
		if err != nil {
			return nil, err
		}
		line = geom.Coordinates
		cumulative = line.CumulativeDistances()
	}

	out := make([]Row, len(rows))
	for i, p := range rows {
		row := Row{
			PassengerID:     p.PassengerID,
			RouteID:         p.RouteID,
			DepotID:         p.DepotID,
			Status:          string(p.Status),
			Spawn:           p.Spawn,
			Destination:     p.Destination,
			TravelDistanceM: geo.Haversine(p.Spawn, p.Destination),
			SpawnTime:       p.SpawnTime.UTC().Format("2006-01-02T15:04:05Z"),
			ExpiresAt:       p.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"),
			Priority:        p.Priority,
		}
		if p.RoutePositionM != nil {
			row.RoutePositionM = *p.RoutePositionM
		} else if len(line) > 0 {
			if idx, _, err := line.NearestVertex(p.Spawn); err == nil {
				row.RoutePositionM = cumulative[idx]
			}
		}
		out[i] = row
	}

	e.geocodeAll(ctx, out)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RoutePositionM < out[j].RoutePositionM
	})
	for i := range out {
		out[i].Index = i + 1
	}
	return out, nil
}

// geocodeAll resolves spawn and destination addresses for every row with a
// bounded worker pool. Identical coordinates rounded to 5 decimals share one
// lookup per request.
func (e *Enricher) geocodeAll(ctx context.Context, rows []Row) {
	type job struct {
		point  geo.Point
		target *string
	}
	var jobs []job
	for i := range rows {
		jobs = append(jobs,
			job{rows[i].Spawn, &rows[i].SpawnAddress},
			job{rows[i].Destination, &rows[i].DestinationAddress},
		)
	}

	cache := struct {
		sync.Mutex
		m map[string]string
	}{m: make(map[string]string)}

	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()

			key := j.point.RoundedKey()
			cache.Lock()
			if addr, ok := cache.m[key]; ok {
				cache.Unlock()
				*j.target = addr
				return
			}
			cache.Unlock()

			sem <- struct{}{}
			// Re-check after acquiring a slot: a lookup for the same key may
			// have finished while this goroutine queued.
			cache.Lock()
			if addr, ok := cache.m[key]; ok {
				cache.Unlock()
				<-sem
				*j.target = addr
				return
			}
			cache.Unlock()

			addr := e.resolve(ctx, j.point)
			<-sem

			cache.Lock()
			// The first writer wins so addresses stay consistent per key.
			if existing, ok := cache.m[key]; ok {
				addr = existing
			} else {
				cache.m[key] = addr
			}
			cache.Unlock()
			*j.target = addr
		}(j)
	}
	wg.Wait()
}

func (e *Enricher) resolve(ctx context.Context, p geo.Point) string {
	addr, err := e.geo.ReverseGeocode(ctx, p)
	if err != nil || addr == nil || addr.Formatted == "" {
		return "-"
	}
	return addr.Formatted
}
