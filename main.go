// Command ragmemory-demo wires together the config manager and engine
// the way a host process would: load (or create) configuration, open the
// engine, insert a few entries, and run one search, logging each stage.
// Real hosts embed the ragmemory package directly rather than running
// this binary; it exists to exercise the wiring end to end.
package main

import (
	"log"
	"os"
	"time"

	"ragmemory"
	"ragmemory/internal/config"
)

func main() {
	if err := os.MkdirAll("./data", 0o755); err != nil {
		log.Fatalf("[Demo] failed to create data directory: %v", err)
	}

	cm := config.NewManager("./data/ragmemory.json")
	if err := cm.Load(); err != nil {
		log.Fatalf("[Demo] failed to load config: %v", err)
	}

	cfg := cm.Get()
	if cfg.Dimension == 0 {
		cfg.Dimension = 3
		if err := cm.Update(cfg); err != nil {
			log.Fatalf("[Demo] failed to persist default dimension: %v", err)
		}
	}
	log.Printf("[Demo] config loaded: dimension=%d threshold=%v", cfg.Dimension, cfg.Threshold)

	engine, err := ragmemory.FromConfig(cfg)
	if err != nil {
		log.Fatalf("[Demo] failed to open engine: %v", err)
	}
	defer engine.Close()

	now := float64(time.Now().Unix())

	seed := []ragmemory.Entry{
		{ID: "note-1", Text: "the deploy pipeline uses blue-green releases", Embedding: []float32{1, 0, 0}, Timestamp: now, Importance: 1},
		{ID: "note-2", Text: "on-call rotation starts on Mondays", Embedding: []float32{0.9, 0.1, 0}, Timestamp: now, Importance: 1},
		{ID: "note-3", Text: "unrelated memory about lunch plans", Embedding: []float32{0, 1, 0}, Timestamp: now, Importance: 0.5},
	}
	for _, e := range seed {
		if err := engine.Add(e); err != nil {
			log.Printf("[Demo] skipping entry %s: %v", e.ID, err)
		}
	}
	log.Printf("[Demo] inserted %d entries", engine.Len())

	results, err := engine.Search([]float32{1, 0, 0}, 2, 0)
	if err != nil {
		log.Fatalf("[Demo] search failed: %v", err)
	}
	for _, r := range results {
		log.Printf("[Demo] result id=%s score=%.4f text=%q", r.ID, r.Score, r.Text)
	}

	if err := engine.Save("./data/memory.json"); err != nil {
		log.Fatalf("[Demo] save failed: %v", err)
	}
	log.Printf("[Demo] snapshot written to ./data/memory.json")
}
