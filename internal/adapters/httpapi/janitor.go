package httpapi

import (
	"context"
	"time"

	"github.com/mtransit/fleetsim/internal/adapters/metrics"
	"github.com/mtransit/fleetsim/internal/application/common"
)

// DefaultJanitorInterval is the sweep cadence when configuration does not
// override it.
const DefaultJanitorInterval = 30 * time.Second

// Janitor periodically drops stale telemetry entries and expired passengers.
// A failing tick is logged and the loop keeps running.
type Janitor struct {
	repo       common.PassengerRepository
	devices    *DeviceStore
	interval   time.Duration
	staleAfter time.Duration
	logger     common.CycleLogger
}

// NewJanitor creates a janitor. repo may be nil, in which case only telemetry
// is pruned.
func NewJanitor(
	repo common.PassengerRepository,
	devices *DeviceStore,
	interval, staleAfter time.Duration,
	logger common.CycleLogger,
) *Janitor {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	return &Janitor{
		repo:       repo,
		devices:    devices,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     logger,
	}
}

// Run sweeps on the janitor's interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep runs one cleanup pass. Panics and errors are contained so a bad tick
// never kills the loop.
func (j *Janitor) Sweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil && j.logger != nil {
			j.logger.Log("error", "janitor sweep panicked", map[string]interface{}{
				"panic": r,
			})
		}
	}()

	pruned := 0
	if j.devices != nil && j.staleAfter > 0 {
		pruned = j.devices.PruneStale(j.staleAfter)
	}

	deleted := 0
	if j.repo != nil {
		var err error
		deleted, err = j.repo.DeleteExpired(ctx)
		if err != nil {
			if j.logger != nil {
				j.logger.Log("warn", "expired passenger sweep failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
			return
		}
		metrics.RecordExpiredSweep(deleted)
	}

	if (pruned > 0 || deleted > 0) && j.logger != nil {
		j.logger.Log("info", "janitor sweep complete", map[string]interface{}{
			"devices_pruned":     pruned,
			"passengers_deleted": deleted,
		})
	}
}
