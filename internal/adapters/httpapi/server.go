// Package httpapi is the unified backend facade: geospatial queries, the
// passenger manifest, device telemetry and spawn streaming behind one chi
// router with shared CORS and bearer-token auth.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mtransit/fleetsim/internal/adapters/metrics"
	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/application/manifest"
	"github.com/mtransit/fleetsim/internal/domain/geo"
	"github.com/mtransit/fleetsim/internal/domain/shared"
)

// SpatialBackend answers the spatial queries the facade exposes. The gorm
// repository satisfies it directly; geocode radii travel per request.
type SpatialBackend interface {
	RouteGeometry(ctx context.Context, routeID string) (*common.RouteGeometry, error)
	NearbyBuildings(ctx context.Context, p geo.Point, radiusM float64, limit int) ([]common.BuildingRef, error)
	BuildingsAlongRoute(ctx context.Context, line geo.Polyline, bufferM float64, limit int) ([]common.BuildingRef, error)
	DepotCatchment(ctx context.Context, p geo.Point, radiusM float64, limit int) ([]common.BuildingRef, error)
	ReverseGeocode(ctx context.Context, p geo.Point, highwayRadiusM, poiRadiusM float64) (*common.Address, error)
	GeofenceCheck(ctx context.Context, p geo.Point) (*common.GeofenceResult, error)
}

// Options carries the facade's wiring-time settings.
type Options struct {
	// AuthToken guards every route except /healthz and /metrics. Empty
	// disables auth (development mode).
	AuthToken string

	// CORSOrigins is the allowed-origin list for the CORS middleware.
	CORSOrigins []string

	// ConfigKey selects the spawn configuration for streaming requests.
	ConfigKey string

	// GeocodeConcurrency bounds the manifest enrichment pool.
	GeocodeConcurrency int
}

// Server assembles the facade. All dependencies except spatial are optional;
// endpoints whose dependency is missing answer 503.
type Server struct {
	opts     Options
	spatial  SpatialBackend
	repo     common.PassengerRepository
	enricher *manifest.Enricher
	catalog  common.TransitCatalog
	configs  common.SpawnConfigSource
	geoSvc   common.GeospatialService
	devices  *DeviceStore
	logger   common.CycleLogger
	clock    shared.Clock
	httpm    *metrics.HTTPMetricsCollector
}

// NewServer wires the facade. geoSvc backs spawn streaming and manifest
// enrichment; spatial backs the raw spatial endpoints. A nil clock selects
// the real clock.
func NewServer(
	opts Options,
	spatial SpatialBackend,
	repo common.PassengerRepository,
	geoSvc common.GeospatialService,
	catalog common.TransitCatalog,
	configs common.SpawnConfigSource,
	logger common.CycleLogger,
	clock shared.Clock,
) *Server {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	s := &Server{
		opts:    opts,
		spatial: spatial,
		repo:    repo,
		catalog: catalog,
		configs: configs,
		geoSvc:  geoSvc,
		devices: NewDeviceStore(clock),
		logger:  logger,
		clock:   clock,
	}
	if geoSvc != nil {
		s.enricher = manifest.NewEnricher(geoSvc, opts.GeocodeConcurrency)
	}
	if metrics.IsEnabled() {
		s.httpm = metrics.NewHTTPMetricsCollector()
		if err := s.httpm.Register(); err != nil && logger != nil {
			logger.Log("warn", "http metrics registration failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return s
}

// Devices exposes the telemetry store so the janitor can prune it.
func (s *Server) Devices() *DeviceStore { return s.devices }

// Router builds the chi router with CORS, metrics and auth middleware and
// every mounted endpoint group.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if s.httpm != nil {
		r.Use(s.httpm.Middleware)
	}
	r.Use(bearerAuth(s.opts.AuthToken, "/healthz", "/metrics"))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metricsHandler())

	r.Route("/spatial", func(r chi.Router) {
		r.Get("/route-geometry/{routeID}", s.handleRouteGeometry)
		r.Get("/nearby-buildings", s.handleNearbyBuildings)
		r.Get("/depot-catchment", s.handleDepotCatchment)
		r.Post("/buildings-along-route", s.handleBuildingsAlongRoute)
	})
	r.Post("/geocode/reverse", s.handleReverseGeocode)
	r.Post("/geofence/check", s.handleGeofenceCheck)

	r.Route("/api/manifest", func(r chi.Router) {
		r.Get("/", s.handleManifest)
		r.Delete("/", s.handleManifestPurge)
		r.Get("/visualization/barchart", s.handleManifestBarchart)
		r.Get("/visualization/table", s.handleManifestTable)
		r.Get("/stats", s.handleManifestStats)
	})

	r.Post("/telemetry/ping", s.handleTelemetryPing)
	r.Get("/telemetry/devices", s.handleTelemetryDevices)

	r.Get("/spawn/route/{routeID}", s.handleSpawnStream)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"spatial":         s.spatial != nil,
		"passenger_store": s.repo != nil,
		"geospatial":      s.geoSvc != nil,
		"device_count":    s.devices.Len(),
	})
}

func (s *Server) metricsHandler() http.Handler {
	if reg := metrics.GetRegistry(); reg != nil {
		return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "metrics_disabled", "metrics collection is not enabled")
	})
}
