package dobj

import "fmt"

// occupant is a set entry keyed by body oid.
type occupant struct {
	BodyOid int    `json:"bodyOid"`
	Name    string `json:"name"`
}

func (o *occupant) Key() int { return o.BodyOid }

func (o *occupant) String() string { return fmt.Sprintf("%d:%s", o.BodyOid, o.Name) }

// room is a representative object type exercising every accessor kind.
type room struct {
	Object
	Name      string
	Score     int
	Seats     []int
	Occupants *DSet[int, *occupant]
	Players   *OidList
}

func newRoom() *room {
	r := &room{
		Seats:     make([]int, 4),
		Occupants: NewDSet[int, *occupant](),
		Players:   NewOidList(4),
	}
	r.Init(r)
	return r
}

func (r *room) CreateAccessors() []Accessor {
	return []Accessor{
		FieldAccessor("score", func(r *room) *int { return &r.Score }),
		FieldAccessor("name", func(r *room) *string { return &r.Name }),
		SliceAccessor("seats", func(r *room) *[]int { return &r.Seats }),
		SetAccessor("occupants", func(r *room) **DSet[int, *occupant] { return &r.Occupants }),
		OidListAccessor("players", func(r *room) **OidList { return &r.Players }),
	}
}

// fakeManager records posted events and can deliver them the way a
// dispatcher would.
type fakeManager struct {
	authoritative bool
	posted        []Event
	lastRemoved   *Object
	deathWish     bool
	failures      int
}

func (m *fakeManager) PostEvent(ev Event) {
	m.posted = append(m.posted, ev)
}

func (m *fakeManager) IsManager(*Object) bool {
	return m.authoritative
}

func (m *fakeManager) RemovedLastSubscriber(obj *Object, deathWish bool) {
	m.lastRemoved = obj
	m.deathWish = deathWish
}

func (m *fakeManager) ListenerFailed(*Object, Event, any) {
	m.failures++
}

// deliver applies and notifies every posted event on target, in order.
func (m *fakeManager) deliver(target *Object) {
	events := m.posted
	m.posted = nil
	for _, ev := range events {
		deliverTo(target, ev)
	}
}

func deliverTo(target *Object, ev Event) {
	if c, ok := ev.(*CompoundEvent); ok {
		for _, member := range c.Events() {
			deliverTo(target, member)
		}
		return
	}
	notify, err := ev.ApplyToObject(target)
	if err != nil {
		panic(err)
	}
	if notify {
		target.NotifyListeners(ev)
	}
	target.NotifyProxies(ev)
}

func managedRoom(oid int, authoritative bool) (*room, *fakeManager) {
	r := newRoom()
	mgr := &fakeManager{authoritative: authoritative}
	r.SetOid(oid)
	r.SetManager(mgr)
	return r, mgr
}

// recorder captures every callback it receives.
type recorder struct {
	attrs    []*AttributeChangedEvent
	elements []*ElementUpdatedEvent
	added    []*EntryAddedEvent
	updated  []*EntryUpdatedEvent
	removed  []*EntryRemovedEvent
	oidAdds  []*ObjectAddedEvent
	oidRems  []*ObjectRemovedEvent
	messages []*MessageEvent
	deaths   int
	all      []Event

	// seen records attribute values read back during the callback.
	seen []any
	read func() any
}

func (r *recorder) AttributeChanged(ev *AttributeChangedEvent) {
	r.attrs = append(r.attrs, ev)
	if r.read != nil {
		r.seen = append(r.seen, r.read())
	}
}
func (r *recorder) ElementUpdated(ev *ElementUpdatedEvent) { r.elements = append(r.elements, ev) }
func (r *recorder) EntryAdded(ev *EntryAddedEvent) { r.added = append(r.added, ev) }
func (r *recorder) EntryUpdated(ev *EntryUpdatedEvent) { r.updated = append(r.updated, ev) }
func (r *recorder) EntryRemoved(ev *EntryRemovedEvent) { r.removed = append(r.removed, ev) }
func (r *recorder) ObjectAdded(ev *ObjectAddedEvent) { r.oidAdds = append(r.oidAdds, ev) }
func (r *recorder) ObjectRemoved(ev *ObjectRemovedEvent) { r.oidRems = append(r.oidRems, ev) }
func (r *recorder) MessageReceived(ev *MessageEvent) { r.messages = append(r.messages, ev) }
func (r *recorder) ObjectDestroyed(*ObjectDestroyedEvent) { r.deaths++ }
func (r *recorder) EventReceived(ev Event) { r.all = append(r.all, ev) }

// panicker panics on every attribute change.
type panicker struct{}

func (*panicker) AttributeChanged(*AttributeChangedEvent) { panic("boom") }

// relaySub is a proxy subscriber that records relayed events.
type relaySub struct {
	events []Event
}

func (s *relaySub) ObjectAvailable(DObject) {}
func (s *relaySub) RequestFailed(int, error) {}
func (s *relaySub) EventReceived(ev Event) { s.events = append(s.events, ev) }

// plainSub is a subscriber without relay capability.
type plainSub struct{ name string }

func (s *plainSub) ObjectAvailable(DObject) {}
func (s *plainSub) RequestFailed(int, error) {}
