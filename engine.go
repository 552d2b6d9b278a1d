// Package ragmemory implements a persistent, vector-similarity search
// index over short text memories with per-entry importance weights and
// optional exponential time decay. It is consumed as a library by a
// host process — typically a conversational agent's memory layer — and
// exposes a small operation set: construct, add, add_batch, remove,
// search, get/get_ids/len, save/load, compute_similarity.
package ragmemory

import (
	"errors"
	"fmt"
	"log"
	"time"

	"ragmemory/internal/config"
	"ragmemory/internal/entrytable"
	"ragmemory/internal/keywordindex"
	"ragmemory/internal/planner"
	"ragmemory/internal/similarity"
	"ragmemory/internal/snapshot"
	"ragmemory/internal/vecstore"
)

// Sentinel errors surfaced at the engine boundary, classified via
// errors.Is. Dimension and capacity failures wrap the first two; I/O,
// parse and snapshot-load failures from Open, Save and Load are returned
// wrapped as they arise. No operation returns ErrNotFound: Get reports an
// absent id through its boolean result. None of the operations below
// panics on well-formed input.
var (
	ErrDimensionMismatch = errors.New("ragmemory: dimension mismatch")
	// ErrCapacityExceeded is the same sentinel vecstore.Push returns;
	// aliased here so hosts can classify it with errors.Is without
	// importing an internal package.
	ErrCapacityExceeded = vecstore.ErrCapacityExceeded
	ErrNotFound         = errors.New("ragmemory: id not found")
)

// Entry is a single memory record: a host-chosen id, its text, its
// fixed-dimension embedding, a timestamp (seconds since epoch), and an
// importance weight (1.0 is neutral).
type Entry struct {
	ID         string
	Text       string
	Embedding  []float32
	Timestamp  float64
	Importance float32
}

// Result is a single scored search hit.
type Result struct {
	ID        string
	Text      string
	Score     float32
	Timestamp float64
}

// Engine wires the entry table, keyword index, vector store, and search
// planner into the operation set the host sees. It is safe for
// concurrent use by multiple goroutines.
type Engine struct {
	dimension int
	threshold float32

	table   *entrytable.Table
	kwindex *keywordindex.Index
	store   *vecstore.Store // nil when the engine was built without a durable vector store
}

// New constructs an engine with fixed dimension D and similarity
// threshold τ. Both are construction-time only: see SPEC_FULL.md §9 for
// why per-call overrides are not exposed.
func New(dimension int, threshold float32) *Engine {
	return &Engine{
		dimension: dimension,
		threshold: threshold,
		table:     entrytable.New(),
		kwindex:   keywordindex.New(),
	}
}

// Open constructs an engine the same way New does, additionally opening
// (or creating) a durable, memory-mapped vector store at storePath with
// room for capacity vectors. Entries added with AddPersisted are appended
// to this store; entries added with AddIndexed are not.
func Open(dimension int, threshold float32, storePath string, capacity uint64) (*Engine, error) {
	store, err := vecstore.Open(storePath, dimension, capacity)
	if err != nil {
		if errors.Is(err, vecstore.ErrDimensionMismatch) {
			return nil, fmt.Errorf("ragmemory: open: %w: %w", ErrDimensionMismatch, err)
		}
		return nil, fmt.Errorf("ragmemory: open: %w", err)
	}
	e := New(dimension, threshold)
	e.store = store
	return e, nil
}

// FromConfig constructs an engine from a loaded EngineConfig, opening its
// vector store.
func FromConfig(cfg config.EngineConfig) (*Engine, error) {
	return Open(cfg.Dimension, cfg.Threshold, cfg.VectorStorePath, cfg.VectorStoreCapacity)
}

// Dimension returns the engine's fixed embedding width.
func (e *Engine) Dimension() int { return e.dimension }

// validate returns ErrDimensionMismatch if vec's length does not match
// the engine's configured dimension.
func (e *Engine) validate(vec []float32) error {
	if len(vec) != e.dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), e.dimension)
	}
	return nil
}

// Add is an alias for AddPersisted when the engine owns a vector store,
// and for AddIndexed otherwise, matching the "optionally" phrasing of the
// write data flow: hosts that opened the engine with Open get full
// durability by default; hosts that used New get the lighter in-memory
// path by default.
func (e *Engine) Add(entry Entry) error {
	if e.store != nil {
		return e.AddPersisted(entry)
	}
	return e.AddIndexed(entry)
}

// AddIndexed inserts or replaces entry in the entry table and keyword
// index only; it never touches the vector store, even if one is open.
// Useful for scratch entries a host does not yet want to persist.
func (e *Engine) AddIndexed(entry Entry) error {
	if err := e.validate(entry.Embedding); err != nil {
		return err
	}
	e.table.Add(toTableEntry(entry))
	e.kwindex.Add(entry.ID, entry.Text)
	return nil
}

// AddPersisted does everything AddIndexed does, and additionally appends
// the embedding to the durable vector store. It requires the engine to
// have been constructed with Open or FromConfig.
func (e *Engine) AddPersisted(entry Entry) error {
	if err := e.validate(entry.Embedding); err != nil {
		return err
	}
	if e.store == nil {
		return fmt.Errorf("ragmemory: add persisted: no vector store open")
	}
	if _, err := e.store.Push(entry.Embedding); err != nil {
		return fmt.Errorf("ragmemory: add persisted: %w", err)
	}
	e.table.Add(toTableEntry(entry))
	e.kwindex.Add(entry.ID, entry.Text)
	return nil
}

// AddBatch inserts or replaces each of entries, silently skipping any
// whose embedding dimension does not match, and returns the count
// actually accepted.
func (e *Engine) AddBatch(entries []Entry) int {
	accepted := make([]entrytable.Entry, 0, len(entries))
	for _, entry := range entries {
		if err := e.validate(entry.Embedding); err != nil {
			continue
		}
		accepted = append(accepted, toTableEntry(entry))
		e.kwindex.Add(entry.ID, entry.Text)
	}
	return e.table.AddBatch(accepted)
}

// Remove deletes id from the entry table and tombstones its keyword
// postings. It reports whether id was present. It does not reclaim the
// id's vector-store slot, per the store's append-only contract.
func (e *Engine) Remove(id string) bool {
	e.kwindex.Remove(id)
	return e.table.Remove(id)
}

// Search validates query's dimension, snapshots the entry table, scores
// every entry in parallel with the given decay factor and the engine's
// configured threshold, and returns up to k results sorted by score
// descending.
func (e *Engine) Search(query []float32, k int, decayFactor float64) ([]Result, error) {
	if err := e.validate(query); err != nil {
		return nil, err
	}

	now := float64(time.Now().Unix())
	results, err := planner.Search(e.table, e.dimension, query, k, decayFactor, e.threshold, now)
	if err != nil {
		return nil, err
	}

	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = Result(r)
	}
	return out, nil
}

// Get returns a copy of the entry for id, if present.
func (e *Engine) Get(id string) (Entry, bool) {
	te, ok := e.table.Get(id)
	if !ok {
		return Entry{}, false
	}
	return fromTableEntry(te), true
}

// GetIDs returns the ids of every live entry, in unspecified order.
func (e *Engine) GetIDs() []string {
	return e.table.GetIDs()
}

// Len returns the number of live entries.
func (e *Engine) Len() int {
	return e.table.Len()
}

// Clear removes every entry from the entry table and keyword index. It
// does not truncate a durable vector store, which remains append-only.
func (e *Engine) Clear() {
	e.table.Clear()
	e.kwindex.Clear()
}

// Save serializes the entry table to path as a JSON snapshot, written
// atomically.
func (e *Engine) Save(path string) error {
	return snapshot.Save(e.table, path)
}

// Load replaces the entry table's contents with the snapshot at path,
// keeping only entries whose embedding length matches the engine's
// dimension, and returns the count loaded. A snapshot that parses
// non-empty but yields zero matching entries leaves the table untouched.
func (e *Engine) Load(path string) (int, error) {
	n, err := snapshot.Load(e.table, path, e.dimension)
	if err != nil {
		return 0, err
	}
	// The keyword index must be rebuilt to match the freshly loaded
	// table, since Load replaces entries wholesale rather than going
	// through AddIndexed/AddPersisted.
	e.kwindex.Clear()
	for _, id := range e.table.GetIDs() {
		if entry, ok := e.table.Get(id); ok {
			e.kwindex.Add(id, entry.Text)
		}
	}
	return n, nil
}

// ComputeSimilarity returns the cosine similarity of a and b, or 0 if
// they differ in length or either has near-zero norm.
func (e *Engine) ComputeSimilarity(a, b []float32) float32 {
	return similarity.Cosine(a, b)
}

// Close flushes and unmaps the engine's durable vector store, if any. It
// is a no-op for engines constructed with New.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	if err := e.store.Close(); err != nil {
		log.Printf("[Engine] error closing vector store: %v", err)
		return err
	}
	return nil
}

func toTableEntry(e Entry) entrytable.Entry {
	return entrytable.Entry{
		ID:         e.ID,
		Text:       e.Text,
		Embedding:  e.Embedding,
		Timestamp:  e.Timestamp,
		Importance: e.Importance,
	}
}

func fromTableEntry(e entrytable.Entry) Entry {
	return Entry{
		ID:         e.ID,
		Text:       e.Text,
		Embedding:  e.Embedding,
		Timestamp:  e.Timestamp,
		Importance: e.Importance,
	}
}
