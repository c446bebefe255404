package dobj

import (
	"encoding/json"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keysOf(s *DSet[int, *occupant]) []int {
	return slices.Collect(s.Keys())
}

func TestDSet_ZeroValueUsable(t *testing.T) {
	var s DSet[int, *occupant]
	assert.True(t, s.IsEmpty())
	assert.True(t, s.add(&occupant{BodyOid: 3}))
	assert.Equal(t, 1, s.Size())
}

func TestDSet_AddKeepsKeyOrder(t *testing.T) {
	s := NewDSet[int, *occupant]()
	for _, k := range []int{5, 1, 9, 3, 7} {
		require.True(t, s.add(&occupant{BodyOid: k}))
	}
	assert.Equal(t, []int{1, 3, 5, 7, 9}, keysOf(s))
	assert.Equal(t, 5, s.Size())
}

func TestDSet_DuplicateKeyRefused(t *testing.T) {
	s := NewDSet[int, *occupant](&occupant{BodyOid: 1, Name: "a"})

	assert.False(t, s.add(&occupant{BodyOid: 1, Name: "b"}))

	got, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, "a", got.Name, "duplicate add must leave the set unchanged")
	assert.Equal(t, 1, s.Size())
}

func TestDSet_UpdateAndRemove(t *testing.T) {
	s := NewDSet[int, *occupant](&occupant{BodyOid: 1, Name: "a"}, &occupant{BodyOid: 2, Name: "b"})

	old, ok := s.update(&occupant{BodyOid: 2, Name: "B"})
	require.True(t, ok)
	assert.Equal(t, "b", old.Name)
	got, _ := s.Get(2)
	assert.Equal(t, "B", got.Name)

	_, ok = s.update(&occupant{BodyOid: 3})
	assert.False(t, ok, "update of an absent key reports failure")

	removed, ok := s.removeKey(1)
	require.True(t, ok)
	assert.Equal(t, "a", removed.Name)
	assert.False(t, s.ContainsKey(1))

	_, ok = s.removeKey(1)
	assert.False(t, ok)
}

func TestDSet_OrderInvariantUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	s := NewDSet[int, *occupant]()
	live := map[int]bool{}

	for range 2000 {
		k := rng.IntN(200)
		switch rng.IntN(3) {
		case 0:
			assert.Equal(t, !live[k], s.add(&occupant{BodyOid: k}))
			live[k] = true
		case 1:
			_, ok := s.update(&occupant{BodyOid: k, Name: "u"})
			assert.Equal(t, live[k], ok)
		case 2:
			_, ok := s.removeKey(k)
			assert.Equal(t, live[k], ok)
			delete(live, k)
		}

		keys := keysOf(s)
		require.True(t, slices.IsSorted(keys), "keys out of order: %v", keys)
		require.Equal(t, len(live), s.Size())
		require.Len(t, keys, s.Size())
	}
}

func TestDSet_GrowsAndShrinks(t *testing.T) {
	s := NewDSet[int, *occupant]()
	for k := range 64 {
		s.add(&occupant{BodyOid: k})
	}
	assert.Equal(t, 64, s.capacity())

	for k := range 60 {
		s.removeKey(k)
	}
	assert.Less(t, s.capacity(), 64, "storage should halve once sparsely occupied")
	assert.Equal(t, []int{60, 61, 62, 63}, keysOf(s))
}

func TestDSet_IterationDetectsModification(t *testing.T) {
	s := NewDSet[int, *occupant](&occupant{BodyOid: 1}, &occupant{BodyOid: 2}, &occupant{BodyOid: 3})

	assert.PanicsWithValue(t, ErrConcurrentModification, func() {
		for e := range s.All() {
			if e.BodyOid == 1 {
				s.removeKey(3)
			}
		}
	})
}

func TestDSet_CloneIsIndependent(t *testing.T) {
	s := NewDSet[int, *occupant](&occupant{BodyOid: 1})
	c := s.Clone()
	c.add(&occupant{BodyOid: 2})

	assert.Equal(t, 1, s.Size())
	assert.Equal(t, 2, c.Size())
}

func TestDSet_JSONEncodesCountThenEntries(t *testing.T) {
	s := NewDSet[int, *occupant](&occupant{BodyOid: 2, Name: "b"}, &occupant{BodyOid: 1, Name: "a"})

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":2,"entries":[{"bodyOid":1,"name":"a"},{"bodyOid":2,"name":"b"}]}`, string(data))

	decoded := &DSet[int, *occupant]{}
	require.NoError(t, json.Unmarshal(data, decoded))
	assert.Equal(t, []int{1, 2}, keysOf(decoded))
	assert.True(t, decoded.add(&occupant{BodyOid: 3}), "decoded set must accept further entries")
}

func TestDSet_UnmarshalRejectsBadInput(t *testing.T) {
	s := &DSet[int, *occupant]{}
	assert.Error(t, json.Unmarshal([]byte(`{"count":3,"entries":[]}`), s))
	assert.Error(t, json.Unmarshal([]byte(`{"count":2,"entries":[{"bodyOid":1},{"bodyOid":1}]}`), s))
}

func TestDSet_EntrySetTypeMismatch(t *testing.T) {
	var es entrySet = NewDSet[int, *occupant]()

	_, err := es.addEntry("not an occupant")
	assert.True(t, IsStructuralError(err, ErrCodeFieldType))

	_, _, err = es.removeEntry("not an int")
	assert.True(t, IsStructuralError(err, ErrCodeFieldType))
}
