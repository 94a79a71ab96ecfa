package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	appspawning "github.com/mtransit/fleetsim/internal/application/spawning"
	"github.com/mtransit/fleetsim/internal/domain/shared"
	"github.com/mtransit/fleetsim/internal/domain/transit"
)

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// spawnInstant builds the simulated spawn time: today's date advanced to the
// requested weekday, at the requested wall-clock time. Only the weekday and
// hour feed the demand model, so the concrete date is immaterial.
func spawnInstant(now time.Time, day time.Weekday, clockStr string) (time.Time, error) {
	parsed, err := time.Parse("15:04:05", clockStr)
	if err != nil {
		return time.Time{}, errors.New("time must be HH:MM:SS")
	}
	date := now.UTC()
	for date.Weekday() != day {
		date = date.Add(24 * time.Hour)
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		parsed.Hour(), parsed.Minute(), parsed.Second(), 0, time.UTC), nil
}

// resolveRoute matches by short name first, then by route identifier.
func (s *Server) resolveRoute(r *http.Request, key string) (*transit.Route, error) {
	route, err := s.catalog.RouteByShortName(r.Context(), key)
	if err == nil {
		return route, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	routes, err := s.catalog.Routes(r.Context())
	if err != nil {
		return nil, err
	}
	for _, candidate := range routes {
		if candidate.ID == key {
			return candidate, nil
		}
	}
	return nil, shared.ErrNotFound
}

// depotForRoute finds a depot serving the route, or nil when none does.
func (s *Server) depotForRoute(r *http.Request, routeID string) *transit.Depot {
	depots, err := s.catalog.Depots(r.Context())
	if err != nil {
		return nil
	}
	for _, depot := range depots {
		for _, id := range depot.RouteIDs {
			if id == routeID {
				return depot
			}
		}
	}
	return nil
}

func (s *Server) handleSpawnStream(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil || s.configs == nil || s.geoSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "spawning_unavailable", "spawn dependencies are not configured")
		return
	}

	q := r.URL.Query()
	clockStr := q.Get("time")
	if clockStr == "" {
		clockStr = "08:00:00"
	}
	dayStr := strings.ToLower(q.Get("day"))
	if dayStr == "" {
		dayStr = "monday"
	}
	day, ok := weekdayNames[dayStr]
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_query", "day must be a weekday name")
		return
	}
	windowMinutes := 60
	if raw := q.Get("window"); raw != "" {
		var err error
		if windowMinutes, err = strconv.Atoi(raw); err != nil || windowMinutes <= 0 {
			writeError(w, http.StatusBadRequest, "bad_query", "window must be a positive number of minutes")
			return
		}
	}
	at, err := spawnInstant(s.clock.Now(), day, clockStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_query", err.Error())
		return
	}

	route, err := s.resolveRoute(r, chi.URLParam(r, "routeID"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			writeError(w, http.StatusNotFound, "route_not_found", "unknown route")
			return
		}
		writeError(w, http.StatusInternalServerError, "catalog_failed", err.Error())
		return
	}

	spawner := appspawning.NewRouteSpawner(
		route,
		s.depotForRoute(r, route.ID),
		s.opts.ConfigKey,
		s.configs,
		s.geoSvc,
		s.catalog,
		nil, // dry run, nothing is stored
		0,
	)
	reqs, err := spawner.Spawn(r.Context(), at, time.Duration(windowMinutes)*time.Minute)
	if err != nil {
		if errors.Is(err, shared.ErrNoGeometry) {
			writeError(w, http.StatusNotFound, "route_not_found", "no geometry for route "+route.ID)
			return
		}
		writeError(w, http.StatusInternalServerError, "spawn_failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	for _, req := range reqs {
		if err := enc.Encode(req); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
