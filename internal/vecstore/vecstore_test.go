package vecstore

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestOpenPushGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.bin")

	s, err := Open(path, 4, 2)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	idx, err := s.Push([]float32{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("push 1: %v", err)
	}
	if idx != 0 {
		t.Fatalf("expected slot 0, got %d", idx)
	}

	idx, err = s.Push([]float32{5, 6, 7, 8})
	if err != nil {
		t.Fatalf("push 2: %v", err)
	}
	if idx != 1 {
		t.Fatalf("expected slot 1, got %d", idx)
	}

	if _, err := s.Push([]float32{9, 10, 11, 12}); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected capacity-exceeded, got %v", err)
	}

	got, ok := s.Get(0)
	if !ok {
		t.Fatal("expected slot 0 to exist")
	}
	want := []float32{1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("slot 0 mismatch at %d: got %v want %v", i, got, want)
		}
	}

	if s.Len() != 2 {
		t.Fatalf("expected len 2, got %d", s.Len())
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestDurabilityAcrossReopenWithoutTruncation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.bin")

	s, err := Open(path, 4, 2)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Push([]float32{1, 2, 3, 4}); err != nil {
		t.Fatalf("push 1: %v", err)
	}
	if _, err := s.Push([]float32{5, 6, 7, 8}); err != nil {
		t.Fatalf("push 2: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(path, 4, 1)
	if err != nil {
		t.Fatalf("reopen with smaller capacity: %v", err)
	}
	defer s2.Close()

	if s2.Len() != 2 {
		t.Fatalf("expected len 2 after reopen, got %d", s2.Len())
	}

	v0, ok := s2.Get(0)
	if !ok || v0[0] != 1 || v0[3] != 4 {
		t.Fatalf("slot 0 not durable: %v, ok=%v", v0, ok)
	}
	v1, ok := s2.Get(1)
	if !ok || v1[0] != 5 || v1[3] != 8 {
		t.Fatalf("slot 1 not durable: %v, ok=%v", v1, ok)
	}
}

func TestReopenWithDifferentDimensionFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.bin")

	s, err := Open(path, 4, 2)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Close()

	if _, err := Open(path, 5, 2); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}

func TestGetOutOfRangeReturnsFalseNeverError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.bin")

	s, err := Open(path, 3, 2)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, ok := s.Get(0); ok {
		t.Fatal("expected no vector at slot 0 on empty store")
	}
	if _, ok := s.Get(100); ok {
		t.Fatal("expected no vector far out of range")
	}
}

func TestPushWrongDimensionRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.bin")

	s, err := Open(path, 3, 2)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, err := s.Push([]float32{1, 2}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}
