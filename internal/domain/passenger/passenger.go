package passenger

import (
	"fmt"
	"time"

	"github.com/mtransit/fleetsim/internal/domain/geo"
)

// Status is the lifecycle state of a persisted passenger.
type Status string

const (
	StatusWaiting   Status = "WAITING"
	StatusBoarded   Status = "BOARDED"
	StatusAlighted  Status = "ALIGHTED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// IsValid reports whether s is one of the recognized statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusWaiting, StatusBoarded, StatusAlighted, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusAlighted || s == StatusExpired || s == StatusCancelled
}

// CanTransitionTo enforces the monotonic lifecycle:
// WAITING -> BOARDED -> ALIGHTED, with EXPIRED and CANCELLED reachable only
// from WAITING.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusWaiting:
		return next == StatusBoarded || next == StatusExpired || next == StatusCancelled
	case StatusBoarded:
		return next == StatusAlighted
	default:
		return false
	}
}

// Passenger is a persisted rider record owned by the content store and
// referenced by PassengerID.
type Passenger struct {
	PassengerID     string     `json:"passenger_id"`
	RouteID         string     `json:"route_id"`
	DepotID         string     `json:"depot_id,omitempty"`
	Spawn           geo.Point  `json:"spawn"`
	Destination     geo.Point  `json:"destination"`
	DestinationName string     `json:"destination_name,omitempty"`
	SpawnTime       time.Time  `json:"spawn_time"`
	ExpiresAt       time.Time  `json:"expires_at"`
	Status          Status     `json:"status"`
	Priority        int        `json:"priority"`
	RoutePositionM  *float64   `json:"route_position_m,omitempty"`
	BoardedAt       *time.Time `json:"boarded_at,omitempty"`
	AlightedAt      *time.Time `json:"alighted_at,omitempty"`
}

// Validate checks the persisted-passenger invariants.
func (p *Passenger) Validate() error {
	if p.PassengerID == "" {
		return fmt.Errorf("passenger_id is required")
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("unknown status %q", p.Status)
	}
	if !p.SpawnTime.Before(p.ExpiresAt) {
		return fmt.Errorf("spawn_time %s must precede expires_at %s", p.SpawnTime, p.ExpiresAt)
	}
	return nil
}

// Expired reports whether the record has outlived its TTL at time now.
func (p *Passenger) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
