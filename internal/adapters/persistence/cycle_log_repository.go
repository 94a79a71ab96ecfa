package persistence

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/mtransit/fleetsim/internal/domain/shared"
)

// CycleLogModel is the persisted form of one spawn-cycle log line.
type CycleLogModel struct {
	ID        int       `gorm:"primaryKey;autoIncrement"`
	Source    string    `gorm:"index;size:64"`
	Timestamp time.Time `gorm:"index"`
	Level     string    `gorm:"size:16"`
	Message   string
	Metadata  string
}

// TableName sets the cycle log table name
func (CycleLogModel) TableName() string {
	return "cycle_logs"
}

// CycleLogEntry is a decoded log row.
type CycleLogEntry struct {
	ID        int
	Source    string
	Timestamp time.Time
	Level     string
	Message   string
	Metadata  map[string]interface{}
}

// CycleLogRepository persists spawn-cycle logs with time-windowed
// deduplication: the same source+message pair is written at most once per
// window so a hot loop cannot flood the table.
type CycleLogRepository struct {
	db    *gorm.DB
	clock shared.Clock

	dedupMu      sync.Mutex
	dedupCache   map[string]time.Time
	dedupWindow  time.Duration
	dedupMaxSize int
}

// NewCycleLogRepository creates a log repository. A nil clock selects the
// real clock.
func NewCycleLogRepository(db *gorm.DB, clock shared.Clock) *CycleLogRepository {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &CycleLogRepository{
		db:           db,
		clock:        clock,
		dedupCache:   make(map[string]time.Time),
		dedupWindow:  60 * time.Second,
		dedupMaxSize: 10000,
	}
}

// Write stores one log line under the given source, skipping duplicates
// inside the deduplication window.
func (r *CycleLogRepository) Write(ctx context.Context, source, level, message string, metadata map[string]interface{}) error {
	now := r.clock.Now()
	cacheKey := source + "|" + message

	r.dedupMu.Lock()
	if last, ok := r.dedupCache[cacheKey]; ok && now.Sub(last) < r.dedupWindow {
		r.dedupMu.Unlock()
		return nil
	}
	if len(r.dedupCache) >= r.dedupMaxSize {
		r.cleanupDedupCache(now)
	}
	r.dedupCache[cacheKey] = now
	r.dedupMu.Unlock()

	var metadataJSON string
	if len(metadata) > 0 {
		if raw, err := json.Marshal(metadata); err == nil {
			metadataJSON = string(raw)
		}
	}

	return r.db.WithContext(ctx).Create(&CycleLogModel{
		Source:    source,
		Timestamp: now,
		Level:     level,
		Message:   message,
		Metadata:  metadataJSON,
	}).Error
}

// cleanupDedupCache drops entries older than the window. Callers hold dedupMu.
func (r *CycleLogRepository) cleanupDedupCache(now time.Time) {
	cutoff := now.Add(-r.dedupWindow)
	for key, at := range r.dedupCache {
		if at.Before(cutoff) {
			delete(r.dedupCache, key)
		}
	}
}

// Recent returns up to limit log rows for a source, newest first. An empty
// level matches all levels.
func (r *CycleLogRepository) Recent(ctx context.Context, source string, limit int, level string, since *time.Time) ([]CycleLogEntry, error) {
	query := r.db.WithContext(ctx).Where("source = ?", source)
	if level != "" {
		query = query.Where("level = ?", level)
	}
	if since != nil {
		query = query.Where("timestamp > ?", *since)
	}
	var models []CycleLogModel
	if err := query.Order("timestamp DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}

	entries := make([]CycleLogEntry, len(models))
	for i, m := range models {
		var metadata map[string]interface{}
		if m.Metadata != "" {
			_ = json.Unmarshal([]byte(m.Metadata), &metadata)
		}
		entries[i] = CycleLogEntry{
			ID:        m.ID,
			Source:    m.Source,
			Timestamp: m.Timestamp,
			Level:     m.Level,
			Message:   m.Message,
			Metadata:  metadata,
		}
	}
	return entries, nil
}

// CycleLogger adapts the repository to the application logging port for one
// source. Write failures are dropped; logging never fails a cycle.
type CycleLogger struct {
	repo   *CycleLogRepository
	source string
}

// NewCycleLogger creates a logger persisting under the given source.
func (r *CycleLogRepository) NewCycleLogger(source string) *CycleLogger {
	return &CycleLogger{repo: r, source: source}
}

// Log satisfies the application logging port.
func (l *CycleLogger) Log(level, message string, metadata map[string]interface{}) {
	_ = l.repo.Write(context.Background(), l.source, level, message, metadata)
}
