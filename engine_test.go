package ragmemory

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEndToEndScenarioOne(t *testing.T) {
	e := New(3, 0.5)
	e.Add(Entry{ID: "a", Text: "hello world", Embedding: []float32{1, 0, 0}, Importance: 1})
	e.Add(Entry{ID: "b", Embedding: []float32{0.9, 0.1, 0}, Importance: 1})
	e.Add(Entry{ID: "c", Embedding: []float32{0, 1, 0}, Importance: 1})

	results, err := e.Search([]float32{1, 0, 0}, 2, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 || results[0].ID != "a" || results[1].ID != "b" {
		t.Fatalf("expected [a b], got %+v", results)
	}
	for _, r := range results {
		if r.ID == "c" {
			t.Fatal("c should be below threshold")
		}
	}
}

func TestEndToEndScenarioTwoDecay(t *testing.T) {
	e := New(2, 0)
	now := float64(time.Now().Unix())
	e.Add(Entry{ID: "x", Embedding: []float32{1, 0}, Timestamp: now - 3600, Importance: 1})
	e.Add(Entry{ID: "y", Embedding: []float32{1, 0}, Timestamp: now, Importance: 1})

	results, err := e.Search([]float32{1, 0}, 2, 1.0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 || results[0].ID != "y" || results[1].ID != "x" {
		t.Fatalf("expected [y x], got %+v", results)
	}
}

func TestEndToEndScenarioThreeImportance(t *testing.T) {
	e := New(2, 0)
	e.Add(Entry{ID: "p", Embedding: []float32{1, 0}, Importance: 2})
	e.Add(Entry{ID: "q", Embedding: []float32{1, 0}, Importance: 1})

	results, err := e.Search([]float32{1, 0}, 2, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if math.Abs(float64(results[0].Score)-2.0) > 1e-4 {
		t.Errorf("expected score(p)=2.0, got %v", results[0].Score)
	}
	if math.Abs(float64(results[1].Score)-1.0) > 1e-4 {
		t.Errorf("expected score(q)=1.0, got %v", results[1].Score)
	}
}

func TestEndToEndScenarioFourVectorStoreCapacity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.bin")

	e, err := Open(4, 0.5, path, 2)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := e.AddPersisted(Entry{ID: "a", Embedding: []float32{1, 2, 3, 4}}); err != nil {
		t.Fatalf("add 1: %v", err)
	}
	if err := e.AddPersisted(Entry{ID: "b", Embedding: []float32{5, 6, 7, 8}}); err != nil {
		t.Fatalf("add 2: %v", err)
	}
	if err := e.AddPersisted(Entry{ID: "c", Embedding: []float32{9, 10, 11, 12}}); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected capacity-exceeded, got %v", err)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	e2, err := Open(4, 0.5, path, 1)
	if err != nil {
		t.Fatalf("reopen with smaller capacity: %v", err)
	}
	defer e2.Close()

	if e2.store.Len() != 2 {
		t.Fatalf("expected 2 durable vectors, got %d", e2.store.Len())
	}
	v0, ok := e2.store.Get(0)
	if !ok || v0[0] != 1 {
		t.Fatalf("expected slot 0 to survive reopen, got %v ok=%v", v0, ok)
	}
}

func TestEndToEndScenarioFiveDimensionMismatchOnReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.bin")

	e, err := Open(4, 0.5, path, 4)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	e.Close()

	if _, err := Open(5, 0.5, path, 4); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected dimension-mismatch, got %v", err)
	}
}

func TestEndToEndScenarioSixCorruptedSnapshotLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.json")

	e := New(4, 0.5)
	e.Add(Entry{ID: "a", Embedding: []float32{1, 2, 3, 4}})
	if err := e.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	corrupt := []byte(`[{"id":"a","text":"","embedding":[1,2,3],"timestamp":0,"importance":1}]`)
	if err := os.WriteFile(path, corrupt, 0o600); err != nil {
		t.Fatalf("corrupt fixture: %v", err)
	}

	if _, err := e.Load(path); err == nil {
		t.Fatal("expected error loading corrupted (wrong-dimension) snapshot")
	}
	if _, ok := e.Get("a"); !ok {
		t.Fatal("expected engine state unchanged after failed load")
	}
}

func TestAddReplaceSemantics(t *testing.T) {
	e := New(2, 0)
	e.Add(Entry{ID: "a", Text: "first", Embedding: []float32{1, 0}, Importance: 1})
	e.Add(Entry{ID: "a", Text: "second", Embedding: []float32{0, 1}, Importance: 2})

	got, ok := e.Get("a")
	if !ok || got.Text != "second" {
		t.Fatalf("expected replaced entry, got %+v, ok=%v", got, ok)
	}
	if e.Len() != 1 {
		t.Fatalf("expected len 1, got %d", e.Len())
	}
}

func TestRemoveLivenessAffectsSearch(t *testing.T) {
	e := New(2, 0)
	e.Add(Entry{ID: "a", Embedding: []float32{1, 0}, Importance: 1})
	e.Add(Entry{ID: "b", Embedding: []float32{0, 1}, Importance: 1})

	if !e.Remove("a") {
		t.Fatal("expected remove to report true")
	}
	if _, ok := e.Get("a"); ok {
		t.Fatal("expected entry gone")
	}

	results, err := e.Search([]float32{1, 0}, 5, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, r := range results {
		if r.ID == "a" {
			t.Fatal("removed entry returned by search")
		}
	}
}

func TestDimensionGateDoesNotMutateState(t *testing.T) {
	e := New(3, 0)
	if err := e.Add(Entry{ID: "a", Embedding: []float32{1, 2}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
	if e.Len() != 0 {
		t.Fatalf("expected no mutation on rejected add, got len %d", e.Len())
	}

	if _, err := e.Search([]float32{1, 2}, 1, 0); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch on search, got %v", err)
	}
}

func TestAddBatchSkipsMismatchedDimension(t *testing.T) {
	e := New(2, 0)
	n := e.AddBatch([]Entry{
		{ID: "a", Embedding: []float32{1, 2}},
		{ID: "b", Embedding: []float32{1, 2, 3}},
		{ID: "c", Embedding: []float32{3, 4}},
	})
	if n != 2 {
		t.Fatalf("expected 2 accepted, got %d", n)
	}
	if e.Len() != 2 {
		t.Fatalf("expected len 2, got %d", e.Len())
	}
}

func TestComputeSimilarity(t *testing.T) {
	e := New(2, 0)
	sim := e.ComputeSimilarity([]float32{1, 0}, []float32{1, 0})
	if math.Abs(float64(sim)-1.0) > 1e-6 {
		t.Errorf("expected similarity 1.0, got %v", sim)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.json")

	e := New(3, 0)
	e.Add(Entry{ID: "a", Text: "hello", Embedding: []float32{1, 2, 3}, Importance: 1})
	e.Add(Entry{ID: "b", Text: "world", Embedding: []float32{4, 5, 6}, Importance: 2})

	if err := e.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	e.Clear()
	n, err := e.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 loaded, got %d", n)
	}
	if _, ok := e.Get("a"); !ok {
		t.Fatal("expected a restored")
	}
	if _, ok := e.Get("b"); !ok {
		t.Fatal("expected b restored")
	}
}
