package spawning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mtransit/fleetsim/internal/adapters/metrics"
	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/domain/shared"
)

// DefaultSpawnInterval is the continuous-mode cycle interval when the
// configuration does not set one.
const DefaultSpawnInterval = 60 * time.Second

// CoordinatorConfig selects which spawner kinds run and how.
type CoordinatorConfig struct {
	// EnableFlags maps "enable_<spawner-name>" to whether that kind runs.
	// A kind with no flag present is enabled.
	EnableFlags map[string]bool

	ContinuousMode bool
	SpawnInterval  time.Duration

	// Window is the time window each cycle covers. Zero means the spawn
	// interval (continuous) or one hour (single cycle).
	Window time.Duration
}

// SpawnerResult is one spawner's outcome within a cycle.
type SpawnerResult struct {
	Name    string
	Spawned int
	Err     error
}

// CycleSummary aggregates one coordinator cycle.
type CycleSummary struct {
	StartedAt time.Time
	Duration  time.Duration
	Spawned   int
	Errors    int
	Results   []SpawnerResult
}

// Coordinator multiplexes spawners: it runs the enabled set concurrently per
// cycle, either once or on a fixed interval until stopped.
type Coordinator struct {
	spawners []common.Spawner
	cfg      CoordinatorConfig
	clock    shared.Clock

	mu         sync.Mutex
	running    bool
	stopCh     chan struct{}
	loopDone   chan struct{}
	cumSpawned int64
	cumErrors  int64
}

// NewCoordinator creates a coordinator over the given spawners.
func NewCoordinator(spawners []common.Spawner, cfg CoordinatorConfig, clock shared.Clock) *Coordinator {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if cfg.SpawnInterval <= 0 {
		cfg.SpawnInterval = DefaultSpawnInterval
	}
	return &Coordinator{spawners: spawners, cfg: cfg, clock: clock}
}

// Enabled returns the spawners whose kind is switched on. A missing flag
// means enabled.
func (c *Coordinator) Enabled() []common.Spawner {
	var out []common.Spawner
	for _, s := range c.spawners {
		if enabled, ok := c.cfg.EnableFlags["enable_"+s.Name()]; ok && !enabled {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Start runs one cycle at time t, or the continuous loop when configured.
// The continuous loop returns after Stop is called, at the next interval
// boundary; the in-flight cycle always completes.
func (c *Coordinator) Start(ctx context.Context, t time.Time) (*CycleSummary, error) {
	if !c.cfg.ContinuousMode {
		summary := c.SingleCycle(ctx, t, c.window())
		return summary, nil
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil, fmt.Errorf("coordinator already running")
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.loopDone = make(chan struct{})
	c.mu.Unlock()

	c.continuous(ctx)
	return nil, nil
}

// Stop signals the continuous loop to exit and waits until it has. Safe to
// call when the loop is not running.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	stopCh, loopDone := c.stopCh, c.loopDone
	c.mu.Unlock()

	close(stopCh)
	<-loopDone
}

func (c *Coordinator) continuous(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		close(c.loopDone)
	}()

	ticker := time.NewTicker(c.cfg.SpawnInterval)
	defer ticker.Stop()

	window := c.window()
	c.SingleCycle(ctx, c.clock.Now(), window)
	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.SingleCycle(ctx, c.clock.Now(), window)
		}
	}
}

func (c *Coordinator) window() time.Duration {
	if c.cfg.Window > 0 {
		return c.cfg.Window
	}
	if c.cfg.ContinuousMode {
		return c.cfg.SpawnInterval
	}
	return time.Hour
}

// SingleCycle runs every enabled spawner concurrently and waits for all of
// them. Panics and errors are captured per spawner; the cycle itself never
// fails.
func (c *Coordinator) SingleCycle(ctx context.Context, t time.Time, window time.Duration) *CycleSummary {
	logger := common.LoggerFromContext(ctx)
	enabled := c.Enabled()

	summary := &CycleSummary{
		StartedAt: t,
		Results:   make([]SpawnerResult, len(enabled)),
	}
	begin := c.clock.Now()

	var wg sync.WaitGroup
	for i, s := range enabled {
		wg.Add(1)
		go func(i int, s common.Spawner) {
			defer wg.Done()
			start := time.Now()
			defer func() {
				if r := recover(); r != nil {
					summary.Results[i] = SpawnerResult{
						Name: s.Stats().Name,
						Err:  fmt.Errorf("spawner panic: %v", r),
					}
					metrics.RecordSpawnCycle(s.Name(), 0, time.Since(start).Seconds(), false)
				}
			}()
			n, err := s.SpawnAndStore(ctx, t, window)
			summary.Results[i] = SpawnerResult{Name: s.Stats().Name, Spawned: n, Err: err}
			metrics.RecordSpawnCycle(s.Name(), n, time.Since(start).Seconds(), err == nil)
		}(i, s)
	}
	wg.Wait()

	for _, r := range summary.Results {
		summary.Spawned += r.Spawned
		if r.Err != nil {
			summary.Errors++
			logger.Log("error", "spawner failed", map[string]interface{}{
				"spawner": r.Name,
				"error":   r.Err.Error(),
			})
		}
	}
	summary.Duration = c.clock.Now().Sub(begin)

	c.mu.Lock()
	c.cumSpawned += int64(summary.Spawned)
	c.cumErrors += int64(summary.Errors)
	c.mu.Unlock()

	logger.Log("info", "spawn cycle summary", map[string]interface{}{
		"spawners": len(enabled),
		"spawned":  summary.Spawned,
		"errors":   summary.Errors,
	})
	return summary
}

// Totals returns the cumulative spawned and error counts across all cycles.
func (c *Coordinator) Totals() (spawned, errors int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cumSpawned, c.cumErrors
}

// SpawnerStats returns a per-spawner snapshot across the full set, enabled
// or not.
func (c *Coordinator) SpawnerStats() []common.SpawnerStats {
	out := make([]common.SpawnerStats, len(c.spawners))
	for i, s := range c.spawners {
		out[i] = s.Stats()
	}
	return out
}
