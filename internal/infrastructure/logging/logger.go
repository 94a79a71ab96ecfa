// Package logging provides the process-level logger behind the application
// logging port: leveled, structured, writing JSON or text lines to the
// configured output.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/infrastructure/config"
)

var levelRank = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
}

// Logger writes structured log lines. Safe for concurrent use.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	minLevel int
	jsonFmt  bool
}

var _ common.CycleLogger = (*Logger)(nil)

// New builds a logger from the logging configuration. Unknown levels default
// to info; an unopenable log file falls back to stderr.
func New(cfg *config.LoggingConfig) *Logger {
	minLevel := levelRank["info"]
	if cfg != nil {
		if rank, ok := levelRank[strings.ToLower(cfg.Level)]; ok {
			minLevel = rank
		}
	}

	var out io.Writer = os.Stdout
	jsonFmt := true
	if cfg != nil {
		if cfg.Format == "text" {
			jsonFmt = false
		}
		switch cfg.Output {
		case "stderr":
			out = os.Stderr
		case "file":
			if f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
				out = f
			} else {
				out = os.Stderr
			}
		}
	}
	return &Logger{out: out, minLevel: minLevel, jsonFmt: jsonFmt}
}

// NewWriter builds a logger over an explicit writer, for tests.
func NewWriter(out io.Writer, level string, jsonFmt bool) *Logger {
	minLevel, ok := levelRank[strings.ToLower(level)]
	if !ok {
		minLevel = levelRank["info"]
	}
	return &Logger{out: out, minLevel: minLevel, jsonFmt: jsonFmt}
}

// Log writes one line when level clears the configured threshold. Unknown
// levels are treated as info.
func (l *Logger) Log(level, message string, metadata map[string]interface{}) {
	normalized := strings.ToLower(level)
	rank, ok := levelRank[normalized]
	if !ok {
		normalized, rank = "info", levelRank["info"]
	}
	if rank < l.minLevel {
		return
	}
	now := time.Now().UTC().Format(time.RFC3339)

	var line string
	if l.jsonFmt {
		entry := map[string]interface{}{
			"time":    now,
			"level":   normalized,
			"message": message,
		}
		for k, v := range metadata {
			entry[k] = v
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			return
		}
		line = string(raw)
	} else {
		var b strings.Builder
		fmt.Fprintf(&b, "%s %-5s %s", now, strings.ToUpper(normalized), message)
		keys := make([]string, 0, len(metadata))
		for k := range metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, metadata[k])
		}
		line = b.String()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, line)
}

// Multi fans every log line out to all targets.
type Multi struct {
	targets []common.CycleLogger
}

// NewMulti combines loggers; nil entries are skipped.
func NewMulti(targets ...common.CycleLogger) *Multi {
	kept := make([]common.CycleLogger, 0, len(targets))
	for _, t := range targets {
		if t != nil {
			kept = append(kept, t)
		}
	}
	return &Multi{targets: kept}
}

// Log forwards to every target.
func (m *Multi) Log(level, message string, metadata map[string]interface{}) {
	for _, t := range m.targets {
		t.Log(level, message, metadata)
	}
}
