package dobj

import (
	"cmp"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
)

// Entry is an element of a DSet. Keys must be unique within a set and must
// not change while the entry is a member.
type Entry[K cmp.Ordered] interface {
	Key() K
}

const (
	// DefaultSetWarningSize is the capacity above which growing a DSet logs a
	// warning.
	DefaultSetWarningSize = 2048

	initialSetCapacity = 2
)

var defaultWarningSize atomic.Int64

func init() {
	defaultWarningSize.Store(DefaultSetWarningSize)
}

// SetDefaultWarningSize changes the warning threshold for sets created
// afterwards. Non-positive values restore DefaultSetWarningSize.
func SetDefaultWarningSize(n int) {
	if n <= 0 {
		n = DefaultSetWarningSize
	}
	defaultWarningSize.Store(int64(n))
}

// DSet is a set of entries kept sorted by key. It is an attribute type: its
// contents change only through EntryAdded, EntryUpdated and EntryRemoved
// events, which is why its mutators are unexported.
//
// The zero value is an empty set ready for use.
type DSet[K cmp.Ordered, E Entry[K]] struct {
	// entries has len == capacity; the first size slots are live.
	entries     []E
	size        int
	modCount    int
	warningSize int
}

// NewDSet returns a set holding the given entries. Duplicate keys are
// dropped with a warning.
func NewDSet[K cmp.Ordered, E Entry[K]](entries ...E) *DSet[K, E] {
	s := &DSet[K, E]{}
	for _, e := range entries {
		s.add(e)
	}
	return s
}

// WithWarningSize sets the capacity above which growth logs a warning and
// returns s.
func (s *DSet[K, E]) WithWarningSize(n int) *DSet[K, E] {
	s.warningSize = n
	return s
}

// Size returns the number of entries.
func (s *DSet[K, E]) Size() int {
	return s.size
}

// IsEmpty reports whether the set has no entries.
func (s *DSet[K, E]) IsEmpty() bool {
	return s.size == 0
}

// Contains reports whether an entry with e's key is present.
func (s *DSet[K, E]) Contains(e E) bool {
	return s.ContainsKey(e.Key())
}

// ContainsKey reports whether an entry with the given key is present.
func (s *DSet[K, E]) ContainsKey(key K) bool {
	_, found := s.search(key)
	return found
}

// Get returns the entry with the given key.
func (s *DSet[K, E]) Get(key K) (E, bool) {
	idx, found := s.search(key)
	if !found {
		var zero E
		return zero, false
	}
	return s.entries[idx], true
}

// All iterates the entries in key order. The iterator panics with
// ErrConcurrentModification if the set changes before iteration finishes.
func (s *DSet[K, E]) All() iter.Seq[E] {
	return func(yield func(E) bool) {
		expected := s.modCount
		for i := 0; ; i++ {
			if s.modCount != expected {
				panic(ErrConcurrentModification)
			}
			if i >= s.size {
				return
			}
			if !yield(s.entries[i]) {
				return
			}
		}
	}
}

// Keys iterates the keys in order, with the same modification check as All.
func (s *DSet[K, E]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for e := range s.All() {
			if !yield(e.Key()) {
				return
			}
		}
	}
}

// Entries returns a copy of the entries in key order.
func (s *DSet[K, E]) Entries() []E {
	return slices.Clone(s.entries[:s.size])
}

// Clone returns a copy of the set. The entries themselves are shared and the
// copy starts with a fresh modification count.
func (s *DSet[K, E]) Clone() *DSet[K, E] {
	return &DSet[K, E]{
		entries:     slices.Clone(s.entries),
		size:        s.size,
		warningSize: s.warningSize,
	}
}

func (s *DSet[K, E]) String() string {
	var b strings.Builder
	b.WriteString("(")
	for i, e := range s.entries[:s.size] {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprint(&b, e)
	}
	b.WriteString(")")
	return b.String()
}

type dsetWire[E any] struct {
	Count   int `json:"count"`
	Entries []E `json:"entries"`
}

// MarshalJSON encodes the set as its entry count followed by the entries in
// key order.
func (s *DSet[K, E]) MarshalJSON() ([]byte, error) {
	entries := s.entries[:s.size]
	if entries == nil {
		entries = []E{}
	}
	return json.Marshal(dsetWire[E]{Count: s.size, Entries: entries})
}

// UnmarshalJSON replaces the contents of s with the encoded entries.
func (s *DSet[K, E]) UnmarshalJSON(data []byte) error {
	var w dsetWire[E]
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Count != len(w.Entries) {
		return fmt.Errorf("distributed set count %d does not match %d entries", w.Count, len(w.Entries))
	}
	capacity := initialSetCapacity
	for capacity < len(w.Entries) {
		capacity *= 2
	}
	entries := make([]E, capacity)
	copy(entries, w.Entries)
	live := entries[:len(w.Entries)]
	slices.SortFunc(live, func(a, b E) int { return cmp.Compare(a.Key(), b.Key()) })
	for i := 1; i < len(live); i++ {
		if live[i-1].Key() == live[i].Key() {
			return fmt.Errorf("distributed set has duplicate key %v", live[i].Key())
		}
	}
	s.entries = entries
	s.size = len(w.Entries)
	s.modCount++
	return nil
}

func (s *DSet[K, E]) search(key K) (int, bool) {
	return slices.BinarySearchFunc(s.entries[:s.size], key, func(e E, k K) int {
		return cmp.Compare(e.Key(), k)
	})
}

func (s *DSet[K, E]) warnAt() int {
	if s.warningSize > 0 {
		return s.warningSize
	}
	return int(defaultWarningSize.Load())
}

// add inserts e at its sorted position. A duplicate key is refused.
func (s *DSet[K, E]) add(e E) bool {
	idx, found := s.search(e.Key())
	if found {
		slog.Warn("refusing to add duplicate entry", "key", e.Key())
		return false
	}
	if s.size >= len(s.entries) {
		capacity := max(len(s.entries)*2, initialSetCapacity)
		if capacity > s.warnAt() {
			slog.Warn("distributed set growing large", "capacity", capacity, "size", s.size)
		}
		grown := make([]E, capacity)
		copy(grown, s.entries[:s.size])
		s.entries = grown
	}
	copy(s.entries[idx+1:s.size+1], s.entries[idx:s.size])
	s.entries[idx] = e
	s.size++
	s.modCount++
	return true
}

// update replaces the entry with e's key and returns the entry it replaced.
func (s *DSet[K, E]) update(e E) (E, bool) {
	idx, found := s.search(e.Key())
	if !found {
		var zero E
		return zero, false
	}
	old := s.entries[idx]
	s.entries[idx] = e
	s.modCount++
	return old, true
}

// removeKey deletes the entry with the given key and returns it. The backing
// array is halved once it falls below one-eighth occupancy.
func (s *DSet[K, E]) removeKey(key K) (E, bool) {
	idx, found := s.search(key)
	if !found {
		var zero E
		return zero, false
	}
	old := s.entries[idx]
	s.size--
	if capacity := len(s.entries); capacity > initialSetCapacity && s.size < capacity/8 {
		shrunk := make([]E, capacity/2)
		copy(shrunk, s.entries[:idx])
		copy(shrunk[idx:], s.entries[idx+1:s.size+1])
		s.entries = shrunk
	} else {
		copy(s.entries[idx:], s.entries[idx+1:s.size+1])
		var zero E
		s.entries[s.size] = zero
	}
	s.modCount++
	return old, true
}

// capacity is used by tests to observe growth and shrinkage.
func (s *DSet[K, E]) capacity() int {
	return len(s.entries)
}

// entrySet is the type-erased view of a DSet used by events, which carry
// entries and keys as untyped values.
type entrySet interface {
	addEntry(entry any) (bool, error)
	updateEntry(entry any) (any, bool, error)
	removeEntry(key any) (any, bool, error)
	clone() any
}

func (s *DSet[K, E]) addEntry(entry any) (bool, error) {
	e, ok := entry.(E)
	if !ok {
		return false, entryTypeError[E](entry)
	}
	return s.add(e), nil
}

func (s *DSet[K, E]) updateEntry(entry any) (any, bool, error) {
	e, ok := entry.(E)
	if !ok {
		return nil, false, entryTypeError[E](entry)
	}
	old, found := s.update(e)
	if !found {
		return nil, false, nil
	}
	return old, true, nil
}

func (s *DSet[K, E]) removeEntry(key any) (any, bool, error) {
	k, ok := key.(K)
	if !ok {
		var zero K
		return nil, false, &StructuralError{
			Code:    ErrCodeFieldType,
			Message: fmt.Sprintf("set key has type %T, want %T", key, zero),
		}
	}
	old, found := s.removeKey(k)
	if !found {
		return nil, false, nil
	}
	return old, true, nil
}

func (s *DSet[K, E]) clone() any {
	return s.Clone()
}

func entryTypeError[E any](entry any) error {
	var zero E
	return &StructuralError{
		Code:    ErrCodeFieldType,
		Message: fmt.Sprintf("set entry has type %T, want %T", entry, zero),
	}
}
