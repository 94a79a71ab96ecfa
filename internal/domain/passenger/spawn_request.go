package passenger

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mtransit/fleetsim/internal/domain/geo"
)

// SpawnContext records which kind of spawner produced a request.
type SpawnContext string

const (
	ContextRoute SpawnContext = "ROUTE"
	ContextDepot SpawnContext = "DEPOT"
)

// SpawnRequest is a passenger-to-be, owned by the spawner that produced it
// until a reservoir accepts it.
type SpawnRequest struct {
	PassengerID string       `json:"passenger_id"`
	Spawn       geo.Point    `json:"spawn"`
	Destination geo.Point    `json:"destination"`
	RouteID     string       `json:"route_id"`
	DepotID     string       `json:"depot_id,omitempty"`
	SpawnTime   time.Time    `json:"spawn_time"`
	Context     SpawnContext `json:"context"`
	Method      string       `json:"method"`
	Priority    float64      `json:"priority"`
}

// NewPassengerID generates a collision-resistant passenger identifier.
func NewPassengerID() string {
	return "PSG-" + strings.ToUpper(uuid.NewString()[:13])
}

// EnsureID assigns a generated identifier when one is absent and returns it.
func (r *SpawnRequest) EnsureID() string {
	if r.PassengerID == "" {
		r.PassengerID = NewPassengerID()
	}
	return r.PassengerID
}

// ToPassenger materializes the persisted form with the given TTL. A zero ttl
// falls back to the 30 minute default.
func (r *SpawnRequest) ToPassenger(ttl time.Duration) *Passenger {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	priority := int(r.Priority)
	if priority < 1 {
		priority = 1
	}
	return &Passenger{
		PassengerID: r.EnsureID(),
		RouteID:     r.RouteID,
		DepotID:     r.DepotID,
		Spawn:       r.Spawn,
		Destination: r.Destination,
		SpawnTime:   r.SpawnTime.UTC(),
		ExpiresAt:   r.SpawnTime.UTC().Add(ttl),
		Status:      StatusWaiting,
		Priority:    priority,
	}
}
