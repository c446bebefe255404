package omgr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dobj/internal/dobj"
)

func TestUnitQueue_FIFO(t *testing.T) {
	q := newUnitQueue()

	for oid := 1; oid <= 3; oid++ {
		require.True(t, q.Enqueue(unit{event: dobj.NewObjectDestroyedEvent(oid)}))
	}
	assert.Equal(t, 3, q.Len())

	for oid := 1; oid <= 3; oid++ {
		u, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, oid, u.event.TargetOid())
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestUnitQueue_SignalCoalesces(t *testing.T) {
	q := newUnitQueue()

	q.Enqueue(unit{run: func(context.Context) {}})
	q.Enqueue(unit{run: func(context.Context) {}})

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a pending signal")
	}

	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce")
	default:
	}
}

func TestUnitQueue_Close(t *testing.T) {
	q := newUnitQueue()
	q.Enqueue(unit{run: func(context.Context) {}})

	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(unit{run: func(context.Context) {}}), "closed queue should refuse units")

	_, open := <-q.Wait()
	assert.False(t, open)

	_, ok := q.TryDequeue()
	assert.True(t, ok, "units queued before close remain")
}

func TestUnit_String(t *testing.T) {
	assert.Equal(t, "runnable", unit{run: func(context.Context) {}}.String())
	assert.Contains(t, unit{event: dobj.NewObjectDestroyedEvent(4)}.String(), "4")
}

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())

	resumed := NewClockAt(41)
	assert.Equal(t, int64(42), resumed.Next())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	a := UUIDv7Generator{}.Generate()
	b := UUIDv7Generator{}.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
