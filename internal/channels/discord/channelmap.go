package discord

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/aatumaykin/ocalt/internal/channels"
)

// ChannelMap maps agent names to their Discord channel ids.
type ChannelMap struct {
	mu      sync.RWMutex
	path    string
	byAgent map[string]string
}

// LoadChannelMap reads the map persisted at path. A missing file yields
// an empty map.
func LoadChannelMap(path string) (*ChannelMap, error) {
	m := &ChannelMap{path: path, byAgent: make(map[string]string)}
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read channel map: %w", err)
	}
	if err := json.Unmarshal(data, &m.byAgent); err != nil {
		return nil, fmt.Errorf("failed to parse channel map %s: %w", path, err)
	}
	if m.byAgent == nil {
		m.byAgent = make(map[string]string)
	}
	return m, nil
}

// Get returns the channel id of agent.
func (m *ChannelMap) Get(agent string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byAgent[agent]
	return id, ok
}

// AgentFor returns the agent owning channelID.
func (m *ChannelMap) AgentFor(channelID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for agent, id := range m.byAgent {
		if id == channelID {
			return agent, true
		}
	}
	return "", false
}

// Set assigns channelID to agent.
func (m *ChannelMap) Set(agent, channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byAgent[agent] = channelID
}

// Missing returns the agents without a channel, sorted.
func (m *ChannelMap) Missing(agents []string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var missing []string
	for _, a := range agents {
		if _, ok := m.byAgent[a]; !ok {
			missing = append(missing, a)
		}
	}
	sort.Strings(missing)
	return missing
}

// Save persists the map.
func (m *ChannelMap) Save() error {
	if m.path == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return channels.WriteJSON(m.path, m.byAgent)
}

// channelNameFor is the Discord channel name used for agent.
func channelNameFor(agent string) string {
	return strings.ToLower(agent)
}
