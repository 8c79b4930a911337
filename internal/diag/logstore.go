// internal/diag/logstore.go
// In-memory recent-log capture for embedded consumers (SPEC_FULL §12
// "structured dashboard-style log capture"), grounded on
// internal/dashboard/store.go's logStore: a bounded ring buffer that
// implements the logrus Hook interface so it can be attached directly
// to the engine's logger without standing up external log
// infrastructure. Never blocks the logger — Fire only takes a brief
// mutex over an in-memory slice.
package diag

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Record is the serializable form of one captured log entry.
type Record struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// LogStore retains the most recent log entries that flow through the
// logger it is hooked to. Safe for concurrent use; a façade can expose
// Snapshot to a host application for a recent-activity view.
type LogStore struct {
	mu      sync.RWMutex
	items   []Record
	limit   int
	enabled atomic.Bool
}

// NewLogStore constructs a LogStore retaining at most limit entries
// (default 200 when limit <= 0).
func NewLogStore(limit int) *LogStore {
	if limit <= 0 {
		limit = 200
	}
	s := &LogStore{limit: limit}
	s.enabled.Store(true)
	return s
}

// Levels implements logrus.Hook: capture every level.
func (s *LogStore) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (s *LogStore) Fire(entry *logrus.Entry) error {
	if !s.enabled.Load() {
		return nil
	}

	rec := Record{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
	}
	if component, ok := entry.Data["component"].(string); ok {
		rec.Component = component
	}
	if len(entry.Data) > 0 {
		rec.Fields = make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			if k == "component" {
				continue
			}
			switch val := v.(type) {
			case error:
				rec.Fields[k] = val.Error()
			case fmt.Stringer:
				rec.Fields[k] = val.String()
			default:
				rec.Fields[k] = val
			}
		}
	}

	s.mu.Lock()
	s.items = append(s.items, rec)
	if len(s.items) > s.limit {
		s.items = append([]Record(nil), s.items[len(s.items)-s.limit:]...)
	}
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the currently retained records, oldest first.
func (s *LogStore) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.items))
	copy(out, s.items)
	return out
}

// SetEnabled toggles capture without detaching the hook, useful for a
// host that wants to pause log retention without reconfiguring logrus.
func (s *LogStore) SetEnabled(v bool) {
	s.enabled.Store(v)
}
