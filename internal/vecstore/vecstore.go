// Package vecstore implements a persistent, memory-mapped, append-only
// vector log: a fixed 64-byte header followed by a run of fixed-width
// float32 slots. The store is single-writer; Push, Get, Len, Flush and
// Close all take one internal mutex, so concurrent calls on one handle,
// Gets included, are serialized.
package vecstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

const (
	headerSize       = 64
	magic            = "RAGV"
	supportedVersion = uint32(1)

	offMagic      = 0
	offVersion    = 4
	offDimension  = 8
	offCount      = 12
	offReserved   = 20
	reservedBytes = headerSize - offReserved
)

var (
	// ErrDimensionMismatch is returned when a store is reopened with a
	// dimension different from the one it was created with, or when a
	// vector of the wrong length is pushed.
	ErrDimensionMismatch = errors.New("vecstore: dimension mismatch")
	// ErrCapacityExceeded is returned when Push is called on a store that
	// has no remaining free slots.
	ErrCapacityExceeded = errors.New("vecstore: capacity exceeded")
	// ErrUnsupportedVersion is returned when an existing file's header
	// declares a version this build does not understand.
	ErrUnsupportedVersion = errors.New("vecstore: unsupported header version")
	// ErrClosed is returned by any operation on a store after Close.
	ErrClosed = errors.New("vecstore: store is closed")
)

// Store is a memory-mapped, append-only log of fixed-dimension float32
// vectors with a self-describing 64-byte header.
type Store struct {
	mu sync.Mutex

	file   *os.File
	mapped []byte

	dimension int
	capacity  uint64 // slots the mapped region can currently hold
	count     uint64 // slots durably appended so far
	closed    bool
}

// Open opens path, creating it if missing, memory-maps it, and validates
// or writes its header. capacity is the number of slots the file should
// be sized for on creation; on reopen of an existing, larger file, the
// file is never truncated and the effective capacity is raised to at
// least the stored count.
func Open(path string, dimension int, capacity uint64) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("vecstore: open %s: %w: dimension must be positive", path, ErrDimensionMismatch)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("vecstore: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("vecstore: stat %s: %w", path, err)
	}

	wantSize := int64(headerSize) + int64(capacity)*int64(dimension)*4

	s := &Store{file: f, dimension: dimension}

	if info.Size() == 0 {
		if err := f.Truncate(wantSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("vecstore: truncate %s: %w", path, err)
		}
		if err := s.mmap(wantSize); err != nil {
			f.Close()
			return nil, err
		}
		s.writeFreshHeader(dimension)
		s.capacity = capacity
		s.count = 0
		return s, nil
	}

	if err := s.mmap(info.Size()); err != nil {
		f.Close()
		return nil, err
	}

	if string(s.mapped[offMagic:offMagic+4]) != magic {
		// Pre-existing non-empty file with no valid header: treat as a
		// fresh store, matching the contract's "writes a fresh header"
		// instruction for files missing the magic.
		if info.Size() < wantSize {
			s.munmapLocked()
			if err := f.Truncate(wantSize); err != nil {
				f.Close()
				return nil, fmt.Errorf("vecstore: truncate %s: %w", path, err)
			}
			if err := s.mmap(wantSize); err != nil {
				f.Close()
				return nil, err
			}
		}
		s.writeFreshHeader(dimension)
		s.capacity = (uint64(len(s.mapped)) - headerSize) / uint64(dimension*4)
		s.count = 0
		return s, nil
	}

	version := binary.LittleEndian.Uint32(s.mapped[offVersion:])
	if version != supportedVersion {
		s.munmapLocked()
		f.Close()
		return nil, fmt.Errorf("vecstore: open %s: %w: got version %d, want %d", path, ErrUnsupportedVersion, version, supportedVersion)
	}

	storedDim := binary.LittleEndian.Uint32(s.mapped[offDimension:])
	if int(storedDim) != dimension {
		s.munmapLocked()
		f.Close()
		return nil, fmt.Errorf("vecstore: open %s: %w: got dimension %d, want %d", path, ErrDimensionMismatch, storedDim, dimension)
	}

	storedCount := binary.LittleEndian.Uint64(s.mapped[offCount:])
	s.count = storedCount

	effectiveCapacity := (uint64(len(s.mapped)) - headerSize) / uint64(dimension*4)
	if wantSize > info.Size() && effectiveCapacity < capacity {
		// Grow, never shrink: only extend if the caller asked for more
		// room than the file currently has.
		s.munmapLocked()
		if err := f.Truncate(wantSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("vecstore: truncate %s: %w", path, err)
		}
		if err := s.mmap(wantSize); err != nil {
			f.Close()
			return nil, err
		}
		effectiveCapacity = (uint64(len(s.mapped)) - headerSize) / uint64(dimension*4)
	}
	if effectiveCapacity < storedCount {
		effectiveCapacity = storedCount
	}
	s.capacity = effectiveCapacity

	return s, nil
}

func (s *Store) mmap(size int64) error {
	mapped, err := unix.Mmap(int(s.file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("vecstore: mmap: %w", err)
	}
	s.mapped = mapped
	return nil
}

// munmapLocked unmaps the current mapping. Caller must hold s.mu.
func (s *Store) munmapLocked() {
	if s.mapped != nil {
		if err := unix.Munmap(s.mapped); err != nil {
			log.Printf("[VecStore] munmap failed, continuing: %v", err)
		}
		s.mapped = nil
	}
}

func (s *Store) writeFreshHeader(dimension int) {
	binary.LittleEndian.PutUint32(s.mapped[offVersion:], supportedVersion)
	binary.LittleEndian.PutUint32(s.mapped[offDimension:], uint32(dimension))
	binary.LittleEndian.PutUint64(s.mapped[offCount:], 0)
	for i := offReserved; i < headerSize; i++ {
		s.mapped[i] = 0
	}
	copy(s.mapped[offMagic:], magic)
}

// rewriteHeaderLocked rewrites the full header with the current count and
// flushes the mapping. Caller must hold s.mu and must have already written
// the vector bytes for any new slot.
func (s *Store) rewriteHeaderLocked() error {
	copy(s.mapped[offMagic:], magic)
	binary.LittleEndian.PutUint32(s.mapped[offVersion:], supportedVersion)
	binary.LittleEndian.PutUint32(s.mapped[offDimension:], uint32(s.dimension))
	binary.LittleEndian.PutUint64(s.mapped[offCount:], s.count)
	for i := offReserved; i < headerSize; i++ {
		s.mapped[i] = 0
	}
	if err := unix.Msync(s.mapped, unix.MS_SYNC); err != nil {
		return fmt.Errorf("vecstore: flush header: %w", err)
	}
	return nil
}

// Push appends vec as the next slot and durably updates the header count.
// It fails with ErrDimensionMismatch if len(vec) != the store's dimension,
// or ErrCapacityExceeded if the store has no free slots.
func (s *Store) Push(vec []float32) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	if len(vec) != s.dimension {
		return 0, fmt.Errorf("vecstore: push: %w: got %d, want %d", ErrDimensionMismatch, len(vec), s.dimension)
	}
	if s.count >= s.capacity {
		return 0, ErrCapacityExceeded
	}

	slot := s.count
	offset := headerSize + int(slot)*s.dimension*4
	buf := s.mapped[offset : offset+s.dimension*4]
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}

	s.count++
	if err := s.rewriteHeaderLocked(); err != nil {
		s.count--
		return 0, err
	}

	return slot, nil
}

// Get returns the vector at slot i, or (nil, false) if i is out of range.
// It never returns an error; out-of-range is reported via the boolean.
func (s *Store) Get(i uint64) ([]float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || i >= s.count {
		return nil, false
	}

	offset := headerSize + int(i)*s.dimension*4
	end := offset + s.dimension*4
	if end > len(s.mapped) {
		return nil, false
	}

	buf := s.mapped[offset:end]
	out := make([]float32, s.dimension)
	for j := range out {
		out[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
	}
	return out, true
}

// Len returns the number of durably appended slots.
func (s *Store) Len() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Dimension returns the store's fixed vector width.
func (s *Store) Dimension() int {
	return s.dimension
}

// Flush flushes any outstanding mapped writes to disk.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := unix.Msync(s.mapped, unix.MS_SYNC); err != nil {
		return fmt.Errorf("vecstore: flush: %w", err)
	}
	return nil
}

// Close flushes and unmaps the store. The Store must not be used after
// Close returns.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var flushErr error
	if s.mapped != nil {
		if err := unix.Msync(s.mapped, unix.MS_SYNC); err != nil {
			flushErr = fmt.Errorf("vecstore: flush on close: %w", err)
		}
		s.munmapLocked()
	}
	if err := s.file.Close(); err != nil && flushErr == nil {
		flushErr = fmt.Errorf("vecstore: close file: %w", err)
	}
	return flushErr
}
