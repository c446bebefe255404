package omgr

import (
	"context"
	"testing"

	"github.com/roach88/dobj/internal/dobj"
)

type member struct {
	Oid  int    `json:"oid"`
	Name string `json:"name"`
}

func (m *member) Key() int { return m.Oid }

type lobby struct {
	dobj.Object
	Name    string
	Count   int
	Members *dobj.DSet[int, *member]
	Rooms   *dobj.OidList
}

func newLobby() *lobby {
	l := &lobby{
		Members: dobj.NewDSet[int, *member](),
		Rooms:   dobj.NewOidList(2),
	}
	l.Init(l)
	return l
}

func (l *lobby) ClassKey() string { return "lobby" }

func (l *lobby) CreateAccessors() []dobj.Accessor {
	return []dobj.Accessor{
		dobj.FieldAccessor("name", func(l *lobby) *string { return &l.Name }),
		dobj.FieldAccessor("count", func(l *lobby) *int { return &l.Count }),
		dobj.SetAccessor("members", func(l *lobby) **dobj.DSet[int, *member] { return &l.Members }),
		dobj.OidListAccessor("rooms", func(l *lobby) **dobj.OidList { return &l.Rooms }),
	}
}

// changeLog records attribute changes and oid list events.
type changeLog struct {
	changes []string
	added   []int
	removed []int
}

func (c *changeLog) AttributeChanged(ev *dobj.AttributeChangedEvent) {
	c.changes = append(c.changes, ev.Name())
}

func (c *changeLog) ObjectAdded(ev *dobj.ObjectAddedEvent) {
	c.added = append(c.added, ev.Oid())
}

func (c *changeLog) ObjectRemoved(ev *dobj.ObjectRemovedEvent) {
	c.removed = append(c.removed, ev.Oid())
}

// drain runs every manager until none of them has queued work.
func drain(t *testing.T, mgrs ...*Manager) {
	t.Helper()
	ctx := context.Background()
	for range 100 {
		n := 0
		for _, m := range mgrs {
			n += m.Drain(ctx)
		}
		if n == 0 {
			return
		}
	}
	t.Fatal("managers did not quiesce")
}
