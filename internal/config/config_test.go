package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "ragmemory.json")
}

func TestLoadCreatesDefaultOnMissing(t *testing.T) {
	path := tempConfigPath(t)
	m := NewManager(path)

	if err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}

	cfg := m.Get()
	if cfg.Threshold != 0.7 {
		t.Errorf("Threshold = %v, want 0.7", cfg.Threshold)
	}
	if cfg.VectorStoreCapacity != 100000 {
		t.Errorf("VectorStoreCapacity = %v, want 100000", cfg.VectorStoreCapacity)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := tempConfigPath(t)
	m := NewManager(path)
	if err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	cfg := m.Get()
	cfg.Dimension = 384
	cfg.Threshold = 0.5
	if err := m.Update(cfg); err != nil {
		t.Fatalf("update: %v", err)
	}

	m2 := NewManager(path)
	if err := m2.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	got := m2.Get()
	if got.Dimension != 384 || got.Threshold != 0.5 {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestDecayFactorZeroWhenHalfLifeNotSet(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DecayFactor() != 0 {
		t.Errorf("expected decay factor 0 by default, got %v", cfg.DecayFactor())
	}
}

func TestDecayFactorFromHalfLife(t *testing.T) {
	cfg := EngineConfig{DecayHalfLifeHours: 1}
	want := math.Ln2
	if math.Abs(cfg.DecayFactor()-want) > 1e-9 {
		t.Errorf("expected decay factor %v for 1h half-life, got %v", want, cfg.DecayFactor())
	}
}
