package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/domain/passenger"
	"github.com/mtransit/fleetsim/internal/domain/shared"
)

// allStatuses is the query order for day-level aggregations, which count
// passengers regardless of lifecycle state.
var allStatuses = []passenger.Status{
	passenger.StatusWaiting,
	passenger.StatusBoarded,
	passenger.StatusAlighted,
	passenger.StatusExpired,
	passenger.StatusCancelled,
}

// parseManifestFilter reads the shared manifest query parameters. Unknown
// status values and unparsable timestamps are validation errors.
func parseManifestFilter(r *http.Request) (common.PassengerFilter, error) {
	q := r.URL.Query()
	f := common.PassengerFilter{
		RouteID: q.Get("route"),
		DepotID: q.Get("depot"),
		Sort:    q.Get("sort"),
	}
	if raw := q.Get("status"); raw != "" {
		status := passenger.Status(raw)
		if !status.IsValid() {
			return f, errors.New("unknown status " + raw)
		}
		f.Status = status
	}
	if raw := q.Get("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, errors.New("start must be RFC3339")
		}
		f.Start = t
	}
	if raw := q.Get("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, errors.New("end must be RFC3339")
		}
		f.End = t
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return f, errors.New("limit must be a non-negative integer")
		}
		f.Limit = limit
	}
	return f, nil
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if s.repo == nil || s.enricher == nil {
		writeError(w, http.StatusServiceUnavailable, "manifest_unavailable", "passenger store is not configured")
		return
	}
	f, err := parseManifestFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_query", err.Error())
		return
	}

	rows, err := s.repo.QueryWaiting(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "manifest_query_failed", err.Error())
		return
	}
	enriched, err := s.enricher.Enrich(r.Context(), rows, f.RouteID)
	if err != nil {
		if errors.Is(err, shared.ErrNoGeometry) || errors.Is(err, shared.ErrNotFound) {
			// Enrich without route positions rather than failing the request.
			enriched, err = s.enricher.Enrich(r.Context(), rows, "")
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "manifest_enrich_failed", err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"route_id":   f.RouteID,
		"count":      len(enriched),
		"passengers": enriched,
		"latency_ms": latencyMS(start),
	})
}

func (s *Server) handleManifestPurge(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if s.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "manifest_unavailable", "passenger store is not configured")
		return
	}
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusBadRequest, "confirm_required", "pass confirm=true to delete manifest rows")
		return
	}
	f, err := parseManifestFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_query", err.Error())
		return
	}

	deleted, err := s.repo.Purge(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "manifest_purge_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted":    deleted,
		"latency_ms": latencyMS(start),
	})
}

// parseDay reads date=YYYY-MM-DD and returns the UTC day bounds.
func parseDay(r *http.Request) (time.Time, time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Time{}, time.Time{}, errors.New("date is required (YYYY-MM-DD)")
	}
	day, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("date must be YYYY-MM-DD")
	}
	return day, day.Add(24*time.Hour - time.Second), nil
}

// queryDay collects a day's passengers across every lifecycle status.
func (s *Server) queryDay(ctx context.Context, routeID string, dayStart, dayEnd time.Time) ([]*passenger.Passenger, error) {
	var all []*passenger.Passenger
	for _, status := range allStatuses {
		rows, err := s.repo.QueryWaiting(ctx, common.PassengerFilter{
			RouteID: routeID,
			Status:  status,
			Start:   dayStart,
			End:     dayEnd,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	return all, nil
}

func (s *Server) handleManifestBarchart(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if s.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "manifest_unavailable", "passenger store is not configured")
		return
	}
	dayStart, dayEnd, err := parseDay(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_query", err.Error())
		return
	}
	startHour, endHour := 0, 23
	q := r.URL.Query()
	if raw := q.Get("start_hour"); raw != "" {
		if startHour, err = strconv.Atoi(raw); err != nil || startHour < 0 || startHour > 23 {
			writeError(w, http.StatusBadRequest, "bad_query", "start_hour must be 0..23")
			return
		}
	}
	if raw := q.Get("end_hour"); raw != "" {
		if endHour, err = strconv.Atoi(raw); err != nil || endHour < 0 || endHour > 23 {
			writeError(w, http.StatusBadRequest, "bad_query", "end_hour must be 0..23")
			return
		}
	}
	if endHour < startHour {
		writeError(w, http.StatusBadRequest, "bad_query", "end_hour must not precede start_hour")
		return
	}

	rows, err := s.queryDay(r.Context(), q.Get("route"), dayStart, dayEnd)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "manifest_query_failed", err.Error())
		return
	}

	counts := make(map[int]int)
	for _, p := range rows {
		counts[p.SpawnTime.UTC().Hour()]++
	}
	type bar struct {
		Hour  int `json:"hour"`
		Count int `json:"count"`
	}
	bars := make([]bar, 0, endHour-startHour+1)
	total := 0
	for h := startHour; h <= endHour; h++ {
		bars = append(bars, bar{Hour: h, Count: counts[h]})
		total += counts[h]
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":       dayStart.Format("2006-01-02"),
		"route_id":   q.Get("route"),
		"start_hour": startHour,
		"end_hour":   endHour,
		"bars":       bars,
		"total":      total,
		"latency_ms": latencyMS(start),
	})
}

func (s *Server) handleManifestTable(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if s.repo == nil || s.enricher == nil {
		writeError(w, http.StatusServiceUnavailable, "manifest_unavailable", "passenger store is not configured")
		return
	}
	dayStart, dayEnd, err := parseDay(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_query", err.Error())
		return
	}
	routeID := r.URL.Query().Get("route")

	rows, err := s.queryDay(r.Context(), routeID, dayStart, dayEnd)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "manifest_query_failed", err.Error())
		return
	}
	enriched, err := s.enricher.Enrich(r.Context(), rows, routeID)
	if err != nil {
		enriched, err = s.enricher.Enrich(r.Context(), rows, "")
		if err != nil {
			writeError(w, http.StatusInternalServerError, "manifest_enrich_failed", err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":       dayStart.Format("2006-01-02"),
		"route_id":   routeID,
		"count":      len(enriched),
		"rows":       enriched,
		"latency_ms": latencyMS(start),
	})
}

func (s *Server) handleManifestStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if s.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "manifest_unavailable", "passenger store is not configured")
		return
	}
	dayStart, dayEnd, err := parseDay(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_query", err.Error())
		return
	}

	rows, err := s.queryDay(r.Context(), r.URL.Query().Get("route"), dayStart, dayEnd)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "manifest_query_failed", err.Error())
		return
	}

	byStatus := make(map[string]int)
	byHour := make(map[int]int)
	routes := make(map[string]struct{})
	for _, p := range rows {
		byStatus[string(p.Status)]++
		byHour[p.SpawnTime.UTC().Hour()]++
		routes[p.RouteID] = struct{}{}
	}
	peakHour, peakCount := 0, 0
	for h := 0; h < 24; h++ {
		if byHour[h] > peakCount {
			peakHour, peakCount = h, byHour[h]
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":        dayStart.Format("2006-01-02"),
		"total":       len(rows),
		"by_status":   byStatus,
		"peak_hour":   peakHour,
		"peak_count":  peakCount,
		"route_count": len(routes),
		"latency_ms":  latencyMS(start),
	})
}
