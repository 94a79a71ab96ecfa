package httpapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/mtransit/fleetsim/internal/domain/geo"
	"github.com/mtransit/fleetsim/internal/domain/shared"
)

// Device is one tracked unit's last known state.
type Device struct {
	DeviceID string    `json:"device_id"`
	RouteID  string    `json:"route_id,omitempty"`
	Location geo.Point `json:"location"`
	LastSeen time.Time `json:"last_seen"`
}

// DeviceStore keeps device telemetry in memory. Safe for concurrent use; the
// janitor prunes entries past the staleness window.
type DeviceStore struct {
	mu      sync.RWMutex
	devices map[string]Device
	clock   shared.Clock
}

// NewDeviceStore creates an empty store. A nil clock selects the real clock.
func NewDeviceStore(clock shared.Clock) *DeviceStore {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &DeviceStore{devices: make(map[string]Device), clock: clock}
}

// Upsert records a ping, stamping LastSeen with the store's clock.
func (d *DeviceStore) Upsert(deviceID, routeID string, location geo.Point) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.devices[deviceID] = Device{
		DeviceID: deviceID,
		RouteID:  routeID,
		Location: location,
		LastSeen: d.clock.Now(),
	}
}

// List returns all devices sorted by identifier.
func (d *DeviceStore) List() []Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Device, 0, len(d.devices))
	for _, dev := range d.devices {
		out = append(out, dev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// PruneStale drops devices not seen within maxAge and returns the count.
func (d *DeviceStore) PruneStale(maxAge time.Duration) int {
	cutoff := d.clock.Now().Add(-maxAge)
	d.mu.Lock()
	defer d.mu.Unlock()
	pruned := 0
	for id, dev := range d.devices {
		if dev.LastSeen.Before(cutoff) {
			delete(d.devices, id)
			pruned++
		}
	}
	return pruned
}

// Len returns the number of tracked devices.
func (d *DeviceStore) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.devices)
}

func (s *Server) handleTelemetryPing(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DeviceID  string  `json:"device_id"`
		RouteID   string  `json:"route_id"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_body", "request body must be JSON")
		return
	}
	if body.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "bad_body", "device_id is required")
		return
	}
	p := geo.Point{Lat: body.Latitude, Lon: body.Longitude}
	if !p.IsValid() {
		writeError(w, http.StatusBadRequest, "bad_body", "coordinates outside WGS84 ranges")
		return
	}

	s.devices.Upsert(body.DeviceID, body.RouteID, p)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"device_count": s.devices.Len(),
	})
}

func (s *Server) handleTelemetryDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.devices.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"devices": devices,
		"count":   len(devices),
	})
}
