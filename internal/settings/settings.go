// Package settings holds the user-editable enrichment preferences and
// persists them as a single blob in a key-value store.
package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/spf13/viper"
)

// StoreKey is the key the settings blob is saved under.
const StoreKey = "enrichment.settings"

// Settings is a snapshot of the enrichment preferences.
type Settings struct {
	PreferredSource     string   `json:"preferredSource" yaml:"preferredSource"`
	SourcePriority      []string `json:"sourcePriority" yaml:"sourcePriority"`
	AutoSyncEnabled     bool     `json:"autoSyncEnabled" yaml:"autoSyncEnabled"`
	RefreshIntervalDays int      `json:"refreshIntervalDays" yaml:"refreshIntervalDays"`
}

// EffectiveOrder returns the provider IDs in the order they should be tried:
// the preferred source first, then SourcePriority without duplicates.
func (s Settings) EffectiveOrder() []string {
	out := make([]string, 0, len(s.SourcePriority)+1)
	if s.PreferredSource != "" {
		out = append(out, s.PreferredSource)
	}
	for _, id := range s.SourcePriority {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func (s Settings) normalized() Settings {
	s.SourcePriority = slices.Clone(s.SourcePriority)
	s.RefreshIntervalDays = clampDays(s.RefreshIntervalDays)
	return s
}

func clampDays(days int) int {
	return max(days, 1)
}

// Reader is the read side consumed by the service and scheduler.
type Reader interface {
	Current() Settings
}

// Store is a key-value store holding opaque blobs.
type Store interface {
	Load(key string) ([]byte, bool, error)
	Save(key string, value []byte) error
}

// Defaults builds settings from viper configuration.
func Defaults() Settings {
	return Settings{
		PreferredSource:     viper.GetString("enrichment.preferred_source"),
		SourcePriority:      viper.GetStringSlice("enrichment.source_priority"),
		AutoSyncEnabled:     viper.GetBool("enrichment.auto_sync"),
		RefreshIntervalDays: viper.GetInt("enrichment.refresh_interval_days"),
	}.normalized()
}

// Manager holds the current settings and writes every change to its store.
type Manager struct {
	mu      sync.RWMutex
	current Settings
	store   Store
}

// NewManager loads settings from store, falling back to defaults when the
// store holds nothing. A nil store keeps settings in memory only.
func NewManager(store Store, defaults Settings) (*Manager, error) {
	m := &Manager{current: defaults.normalized(), store: store}
	if store == nil {
		return m, nil
	}

	raw, ok, err := store.Load(StoreKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if !ok {
		return m, nil
	}

	var loaded Settings
	if err := json.Unmarshal(raw, &loaded); err != nil {
		slog.Warn("Stored settings are unreadable, using defaults", "error", err)
		return m, nil
	}
	m.current = loaded.normalized()
	return m, nil
}

// Current returns a copy of the current settings.
func (m *Manager) Current() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.normalized()
}

func (m *Manager) SetPreferredSource(id string) error {
	return m.update(func(s *Settings) { s.PreferredSource = id })
}

func (m *Manager) SetSourcePriority(ids []string) error {
	return m.update(func(s *Settings) { s.SourcePriority = slices.Clone(ids) })
}

func (m *Manager) SetAutoSyncEnabled(enabled bool) error {
	return m.update(func(s *Settings) { s.AutoSyncEnabled = enabled })
}

// SetRefreshIntervalDays stores days, clamped to at least 1.
func (m *Manager) SetRefreshIntervalDays(days int) error {
	return m.update(func(s *Settings) { s.RefreshIntervalDays = clampDays(days) })
}

func (m *Manager) update(fn func(*Settings)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.current.normalized()
	fn(&next)

	if m.store != nil {
		raw, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to encode settings: %w", err)
		}
		if err := m.store.Save(StoreKey, raw); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
	}
	m.current = next
	return nil
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

func (s *MemoryStore) Load(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return slices.Clone(v), ok, nil
}

func (s *MemoryStore) Save(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = slices.Clone(value)
	return nil
}

// Static is a fixed Reader, useful in tests and one-shot commands.
type Static Settings

func (s Static) Current() Settings {
	return Settings(s).normalized()
}
