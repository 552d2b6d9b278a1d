// Package config implements the memory engine's on-disk configuration:
// dimension, similarity threshold, store paths, and a default decay
// half-life, loaded from and saved to a small JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
)

// EngineConfig holds the construction-time parameters of a memory engine.
// Dimension and Threshold are fixed for the lifetime of an engine built
// from this config; see SPEC_FULL.md §9 for why these are not meant to be
// overridden per call.
type EngineConfig struct {
	Dimension           int     `json:"dimension"`
	Threshold           float32 `json:"threshold"`
	VectorStorePath     string  `json:"vector_store_path"`
	VectorStoreCapacity uint64  `json:"vector_store_capacity"`
	SnapshotPath        string  `json:"snapshot_path"`
	DecayHalfLifeHours  float64 `json:"decay_half_life_hours"`
}

// DecayFactor converts DecayHalfLifeHours into the exponential decay rate
// used by the search planner (decay = exp(-rate * age_hours)). A
// non-positive half-life disables decay (returns 0).
func (c EngineConfig) DecayFactor() float64 {
	if c.DecayHalfLifeHours <= 0 {
		return 0
	}
	return math.Ln2 / c.DecayHalfLifeHours
}

// DefaultConfig returns the engine's default configuration. Dimension has
// no sane default and is always zero here; callers are expected to set it
// explicitly before construction.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		Dimension:           0,
		Threshold:           0.7,
		VectorStorePath:     "./data/memory.vec",
		VectorStoreCapacity: 100000,
		SnapshotPath:        "./data/memory.json",
		DecayHalfLifeHours:  0,
	}
}

// Manager guards an EngineConfig behind a RWMutex and persists it as
// pretty JSON, following the load/save/get shape used throughout this
// codebase's own configuration layer.
type Manager struct {
	mu     sync.RWMutex
	path   string
	config EngineConfig
}

// NewManager returns a Manager backed by path, not yet loaded.
func NewManager(path string) *Manager {
	return &Manager{path: path, config: DefaultConfig()}
}

// Load reads the config file at path, creating it with defaults if
// missing.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("config: read %s: %w", m.path, err)
		}
		m.config = DefaultConfig()
		return m.saveLocked()
	}

	var cfg EngineConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", m.path, err)
	}
	m.config = cfg
	return nil
}

// Save writes the current config to path.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: mkdir %s: %w", dir, err)
		}
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", m.path, err)
	}
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() EngineConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Update replaces the current configuration and persists it.
func (m *Manager) Update(cfg EngineConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = cfg
	return m.saveLocked()
}
