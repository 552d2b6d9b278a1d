// Package snapshot implements the JSON export/import format for the
// memory engine's entry table, with atomic replace-on-rename writes and
// an all-or-nothing load guard against wrong-dimension imports.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/natefinch/atomic"

	"ragmemory/internal/entrytable"
)

// ErrEmptyLoad is returned when a snapshot file parses as a non-empty
// array but yields zero entries whose embedding length matches the
// engine's dimension — a defence against loading a snapshot written for a
// different D.
var ErrEmptyLoad = errors.New("snapshot: source parsed but yielded zero matching-dimension entries")

// record is the on-disk shape of a single entry. Unknown fields are
// ignored by encoding/json; fields are all required for the object to be
// accepted by Load.
type record struct {
	ID         *string   `json:"id"`
	Text       *string   `json:"text"`
	Embedding  []float64 `json:"embedding"`
	Timestamp  *float64  `json:"timestamp"`
	Importance *float32  `json:"importance"`
}

// Save serializes every entry in table to path as a pretty-printed JSON
// array, writing atomically via atomic.WriteFile (temp file and rename).
// If that write fails for any reason, Save falls back to copyThenDelete:
// the payload is written to path+".tmp", its bytes are copied over the
// target, and the temp file is deleted. Any failure in that fallback
// deletes the temp file and surfaces an error. A failure before the copy
// step leaves the original target untouched; a failure during the copy
// can leave the target truncated or partly written.
func Save(table *entrytable.Table, path string) error {
	entries := table.Snapshot()

	records := make([]record, 0, len(entries))
	for _, e := range entries {
		id, text, ts, imp := e.ID, e.Text, e.Timestamp, e.Importance
		emb := make([]float64, len(e.Embedding))
		for i, v := range e.Embedding {
			emb[i] = float64(v)
		}
		records = append(records, record{
			ID: &id, Text: &text, Embedding: emb, Timestamp: &ts, Importance: &imp,
		})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: save %s: %w", path, err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		log.Printf("[Snapshot] atomic rename failed for %s, falling back to copy: %v", path, err)
		return copyThenDelete(path, data)
	}

	return nil
}

// copyThenDelete is the documented fallback for platforms where
// rename-over-an-open-file is disallowed: write the payload to a temp
// file, copy its bytes over the target, then delete the temp file. Any
// failure along the way deletes the temp file and returns an error
// without touching an existing target beyond the copy step.
func copyThenDelete(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("snapshot: write temp file: %w", err)
	}

	src, err := os.Open(tmp)
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("snapshot: reopen temp file: %w", err)
	}

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		src.Close()
		os.Remove(tmp)
		return fmt.Errorf("snapshot: open target for copy: %w", err)
	}

	_, copyErr := io.Copy(dst, src)
	src.Close()
	closeErr := dst.Close()
	os.Remove(tmp)

	if copyErr != nil {
		return fmt.Errorf("snapshot: copy temp over target: %w", copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("snapshot: close target: %w", closeErr)
	}
	return nil
}

// Load parses path and replaces table's contents with the entries whose
// embedding length equals dimension. If the file parses as a non-empty
// array but yields zero accepted entries, Load returns ErrEmptyLoad and
// leaves table untouched. Otherwise table is atomically replaced and the
// count loaded is returned.
func Load(table *entrytable.Table, path string, dimension int) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("snapshot: load %s: %w", path, err)
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("snapshot: parse %s: %w", path, err)
	}

	entries := make([]entrytable.Entry, 0, len(records))
	for _, r := range records {
		if r.ID == nil || r.Text == nil || r.Timestamp == nil || r.Importance == nil {
			continue
		}
		if len(r.Embedding) != dimension {
			continue
		}
		emb := make([]float32, dimension)
		for i, v := range r.Embedding {
			emb[i] = float32(v)
		}
		entries = append(entries, entrytable.Entry{
			ID:         *r.ID,
			Text:       *r.Text,
			Embedding:  emb,
			Timestamp:  *r.Timestamp,
			Importance: *r.Importance,
		})
	}

	if len(records) > 0 && len(entries) == 0 {
		return 0, fmt.Errorf("snapshot: load %s: %w", path, ErrEmptyLoad)
	}

	table.ReplaceAll(entries)
	return len(entries), nil
}
