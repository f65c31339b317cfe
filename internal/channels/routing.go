package channels

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aatumaykin/ocalt/internal/constants"
)

// Route links an outbound message to the agent that sent it.
type Route struct {
	Agent     string    `json:"agent"`
	Timestamp time.Time `json:"timestamp"`
}

// RoutingMap remembers which agent produced which outbound message so
// replies can be routed back. It holds at most limit entries; the oldest
// entry is evicted first.
type RoutingMap struct {
	mu     sync.Mutex
	path   string
	limit  int
	routes map[string]Route
}

// NewRoutingMap creates an in-memory routing map.
func NewRoutingMap(limit int) *RoutingMap {
	if limit <= 0 {
		limit = constants.DefaultRoutingLimit
	}
	return &RoutingMap{limit: limit, routes: make(map[string]Route)}
}

// LoadRoutingMap creates a routing map persisted at path.
// Отсутствующий файл не ошибка.
func LoadRoutingMap(path string, limit int) (*RoutingMap, error) {
	m := NewRoutingMap(limit)
	m.path = path
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read routing map: %w", err)
	}
	if err := json.Unmarshal(data, &m.routes); err != nil {
		return nil, fmt.Errorf("failed to parse routing map %s: %w", path, err)
	}
	if m.routes == nil {
		m.routes = make(map[string]Route)
	}
	m.evict()
	return m, nil
}

// Remember records that messageID was sent by agent.
func (m *RoutingMap) Remember(messageID, agent string, at time.Time) {
	if messageID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.routes[messageID] = Route{Agent: agent, Timestamp: at}
	m.evict()
}

// Lookup returns the agent that sent messageID.
func (m *RoutingMap) Lookup(messageID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.routes[messageID]
	return r.Agent, ok
}

// Len returns the number of tracked messages.
func (m *RoutingMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.routes)
}

// Save writes the map to its file. No-op for in-memory maps.
func (m *RoutingMap) Save() error {
	if m.path == "" {
		return nil
	}

	m.mu.Lock()
	data, err := json.MarshalIndent(m.routes, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal routing map: %w", err)
	}
	return writeFileAtomic(m.path, data)
}

// evict drops the oldest routes until the map fits its limit. Caller holds mu.
func (m *RoutingMap) evict() {
	for len(m.routes) > m.limit {
		var (
			oldestID string
			oldest   time.Time
		)
		for id, r := range m.routes {
			if oldestID == "" || r.Timestamp.Before(oldest) {
				oldestID, oldest = id, r.Timestamp
			}
		}
		delete(m.routes, oldestID)
	}
}

// writeFileAtomic пишет во временный файл рядом и переименовывает
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}

// WriteJSON atomically writes v as indented JSON to path.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	return writeFileAtomic(path, data)
}
