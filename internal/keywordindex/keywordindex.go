// Package keywordindex implements an in-memory token to entry-slot
// inverted index, used to pre-filter memory entries by keyword match
// before similarity scoring. It is not internally locked; callers that
// mutate it concurrently with reads must provide external synchronization,
// as described by the engine's concurrency model.
package keywordindex

import (
	"strings"
	"unicode/utf8"
)

// tombstone marks a reverse slot -> id entry whose id has been removed.
// Postings referencing a tombstoned slot are skipped at query time rather
// than eagerly compacted.
const tombstone = ""

const minTokenRunes = 3

// Index is a token -> []slot inverted posting list plus the id <-> slot
// maps needed to add, remove, and tombstone entries.
type Index struct {
	idToSlot map[string]int
	slotToID []string // tombstone marks a removed slot
	postings map[string][]int
	live     int
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		idToSlot: make(map[string]int),
		postings: make(map[string][]int),
	}
}

// Add tokenizes text and indexes it under id, returning the slot it was
// assigned. If id already has a slot, its prior postings are dropped
// first and the same slot is reused; otherwise the next sequential slot
// is assigned.
func (idx *Index) Add(id, text string) int {
	slot, exists := idx.idToSlot[id]
	if exists {
		idx.dropPostingsForSlot(slot)
	} else {
		slot = len(idx.slotToID)
		idx.slotToID = append(idx.slotToID, tombstone)
		idx.idToSlot[id] = slot
		idx.live++
	}

	idx.slotToID[slot] = id

	for _, tok := range tokenize(text) {
		idx.postings[tok] = append(idx.postings[tok], slot)
	}

	return slot
}

// dropPostingsForSlot removes slot from every posting list that contains
// it. This is the one O(total postings) operation in the package, paid
// only when an existing id is re-indexed with new text.
func (idx *Index) dropPostingsForSlot(slot int) {
	for tok, slots := range idx.postings {
		filtered := slots[:0]
		for _, s := range slots {
			if s != slot {
				filtered = append(filtered, s)
			}
		}
		if len(filtered) == 0 {
			delete(idx.postings, tok)
		} else {
			idx.postings[tok] = filtered
		}
	}
}

// Remove drops id's slot mapping and tombstones the reverse entry. It
// does not eagerly prune postings; SearchKeyword filters tombstones at
// query time.
func (idx *Index) Remove(id string) bool {
	slot, ok := idx.idToSlot[id]
	if !ok {
		return false
	}
	delete(idx.idToSlot, id)
	idx.slotToID[slot] = tombstone
	idx.live--
	return true
}

// SearchKeyword returns the live slots whose text contained token at
// insertion time, filtering out tombstoned slots.
func (idx *Index) SearchKeyword(token string) []int {
	candidates, ok := idx.postings[strings.ToLower(token)]
	if !ok {
		return nil
	}

	out := make([]int, 0, len(candidates))
	for _, slot := range candidates {
		if slot < len(idx.slotToID) && idx.slotToID[slot] != tombstone {
			out = append(out, slot)
		}
	}
	return out
}

// GetIdx returns the slot currently assigned to id, if any.
func (idx *Index) GetIdx(id string) (int, bool) {
	slot, ok := idx.idToSlot[id]
	return slot, ok
}

// GetID returns the id currently occupying slot, or ("", false) if the
// slot is out of range or tombstoned.
func (idx *Index) GetID(slot int) (string, bool) {
	if slot < 0 || slot >= len(idx.slotToID) {
		return "", false
	}
	id := idx.slotToID[slot]
	if id == tombstone {
		return "", false
	}
	return id, true
}

// Len returns the number of live ids.
func (idx *Index) Len() int {
	return idx.live
}

// Clear removes every id, slot, and posting.
func (idx *Index) Clear() {
	idx.idToSlot = make(map[string]int)
	idx.slotToID = nil
	idx.postings = make(map[string][]int)
	idx.live = 0
}

// tokenize splits text on whitespace, lowercases each token, and keeps
// only tokens with at least minTokenRunes code points. No stemming is
// performed; folding is limited to lowercasing.
func tokenize(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minTokenRunes {
			continue
		}
		out = append(out, strings.ToLower(f))
	}
	return out
}
