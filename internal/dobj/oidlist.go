package dobj

import (
	"encoding/json"
	"iter"
	"slices"
	"strconv"
	"strings"
)

const defaultOidListSize = 4

// OidList is an unordered collection of unique object ids used as an
// attribute. Like DSet it changes only through events, but its mutators are
// exported because holders of a list outside of an object use them directly.
//
// The zero value is an empty list ready for use.
type OidList struct {
	oids []int
	size int
}

// NewOidList returns an empty list with room for initialSize ids. Sizes
// below 2 are raised to 2.
func NewOidList(initialSize int) *OidList {
	return &OidList{oids: make([]int, max(initialSize, 2))}
}

// OidListOf returns a list holding the given ids.
func OidListOf(oids ...int) *OidList {
	l := NewOidList(max(len(oids)+1, defaultOidListSize))
	for _, oid := range oids {
		l.Add(oid)
	}
	return l
}

// Size returns the number of ids in the list.
func (l *OidList) Size() int {
	return l.size
}

// Add appends oid unless it is already present and reports whether it was
// added.
func (l *OidList) Add(oid int) bool {
	if l.Contains(oid) {
		return false
	}
	if l.size+1 >= len(l.oids) {
		grown := make([]int, max(len(l.oids)*2, defaultOidListSize))
		copy(grown, l.oids[:l.size])
		l.oids = grown
	}
	l.oids[l.size] = oid
	l.size++
	return true
}

// Remove deletes oid and reports whether it was present. The relative order
// of the remaining ids is preserved.
func (l *OidList) Remove(oid int) bool {
	idx := l.indexOf(oid)
	if idx < 0 {
		return false
	}
	copy(l.oids[idx:], l.oids[idx+1:l.size])
	l.size--
	l.oids[l.size] = 0
	return true
}

// Contains reports whether oid is in the list.
func (l *OidList) Contains(oid int) bool {
	return l.indexOf(oid) >= 0
}

// Get returns the id at index.
func (l *OidList) Get(index int) int {
	if index < 0 || index >= l.size {
		panic(&StructuralError{
			Code:    ErrCodeIndexRange,
			Message: "oid list index " + strconv.Itoa(index) + " out of range",
		})
	}
	return l.oids[index]
}

// All iterates the ids in insertion order.
func (l *OidList) All() iter.Seq[int] {
	return slices.Values(l.oids[:l.size])
}

// Oids returns a copy of the ids in insertion order.
func (l *OidList) Oids() []int {
	return slices.Clone(l.oids[:l.size])
}

// Clone returns an independent copy of the list.
func (l *OidList) Clone() *OidList {
	return &OidList{oids: slices.Clone(l.oids), size: l.size}
}

func (l *OidList) String() string {
	parts := make([]string, l.size)
	for i, oid := range l.oids[:l.size] {
		parts[i] = strconv.Itoa(oid)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON encodes the list as an array of ids.
func (l *OidList) MarshalJSON() ([]byte, error) {
	oids := l.oids[:l.size]
	if oids == nil {
		oids = []int{}
	}
	return json.Marshal(oids)
}

// UnmarshalJSON replaces the contents of l with the encoded ids.
func (l *OidList) UnmarshalJSON(data []byte) error {
	var oids []int
	if err := json.Unmarshal(data, &oids); err != nil {
		return err
	}
	*l = OidList{oids: make([]int, max(len(oids)+1, defaultOidListSize))}
	for _, oid := range oids {
		l.Add(oid)
	}
	return nil
}

func (l *OidList) indexOf(oid int) int {
	return slices.Index(l.oids[:l.size], oid)
}
