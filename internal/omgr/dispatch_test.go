package omgr

import (
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dobj/internal/dobj"
	"github.com/roach88/dobj/internal/testutil"
)

func TestDispatch_AppliesEagerlyAndNotifiesOnce(t *testing.T) {
	m := New()
	l := newLobby()
	m.RegisterObject(l)
	log := &changeLog{}
	l.AddListener(log)

	l.ChangeAttribute("name", "main")
	assert.Equal(t, "main", l.Name, "authoritative copy applies immediately")
	assert.Empty(t, log.changes, "listeners hear about it on dispatch")

	drain(t, m)
	assert.Equal(t, []string{"name"}, log.changes)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.metrics.Dispatched))
}

func TestDispatch_DeniedEventIsDropped(t *testing.T) {
	m := New(WithAccessController(dobj.ServerOnly))
	l := newLobby()
	oid := m.RegisterObject(l)

	ev := dobj.NewAttributeChangedEvent(oid, "name", "client")
	ev.SetSourceOid(12)
	m.PostEvent(ev)
	m.PostEvent(dobj.NewAttributeChangedEvent(oid, "count", 3))
	drain(t, m)

	assert.Empty(t, l.Name)
	assert.Equal(t, 3, l.Count)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.metrics.Denied))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.metrics.Dispatched))
}

func TestDispatch_MissingTargetIsDropped(t *testing.T) {
	m := New()
	m.PostEvent(dobj.NewAttributeChangedEvent(99, "name", "gone"))
	drain(t, m)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.metrics.Dropped))
}

func TestDispatch_FailureDoesNotStopProcessing(t *testing.T) {
	m := New()
	l := newLobby()
	oid := m.RegisterObject(l)

	m.PostEvent(dobj.NewAttributeChangedEvent(oid, "missing", 1))
	m.PostEvent(dobj.NewAttributeChangedEvent(oid, "count", "not a number"))
	m.PostEvent(dobj.NewAttributeChangedEvent(oid, "count", 4))
	drain(t, m)

	assert.Equal(t, 4, l.Count)
	assert.Equal(t, 2.0, promtest.ToFloat64(m.metrics.Failed))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.metrics.Dispatched))
}

func TestDispatch_PanickingRunnableIsContained(t *testing.T) {
	m := New()
	ran := false
	m.PostRunnable(func() { panic("boom") })
	m.PostRunnable(func() { ran = true })
	drain(t, m)

	assert.True(t, ran)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.metrics.Failed))
}

type chokingListener struct{}

func (chokingListener) AttributeChanged(*dobj.AttributeChangedEvent) {
	panic("listener failure")
}

func TestDispatch_ListenerFailureIsCounted(t *testing.T) {
	m := New()
	l := newLobby()
	m.RegisterObject(l)
	l.AddListener(chokingListener{})
	log := &changeLog{}
	l.AddListener(log)

	l.ChangeAttribute("count", 1)
	drain(t, m)

	assert.Equal(t, []string{"count"}, log.changes, "later listeners are still notified")
	assert.Equal(t, 1.0, promtest.ToFloat64(m.metrics.ListenerFailures))
}

func TestDispatch_CompoundAdmitsMembersIndependently(t *testing.T) {
	m := New()
	l := newLobby()
	oid := m.RegisterObject(l)
	l.SetAccessController(dobj.AccessFuncs{
		Dispatch: func(_ dobj.DObject, ev dobj.Event) bool {
			ac, ok := ev.(*dobj.AttributeChangedEvent)
			return !ok || ac.Name() != "count"
		},
	})

	proxy := &testutil.ProxySubscriber{}
	m.SubscribeToObject(oid, proxy)
	drain(t, m)

	m.PostEvent(dobj.CompoundOf(oid,
		dobj.NewAttributeChangedEvent(oid, "name", "renamed"),
		dobj.NewAttributeChangedEvent(oid, "count", 9),
	))
	drain(t, m)

	assert.Equal(t, "renamed", l.Name)
	assert.Equal(t, 0, l.Count)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.metrics.Denied))

	require.Len(t, proxy.Events, 1)
	compound, ok := proxy.Events[0].(*dobj.CompoundEvent)
	require.True(t, ok)
	require.Len(t, compound.Events(), 1)
	assert.Equal(t, "name", compound.Events()[0].(*dobj.AttributeChangedEvent).Name())
}

func TestDispatch_TransactionReachesProxiesAsOneCompound(t *testing.T) {
	m := New()
	l := newLobby()
	oid := m.RegisterObject(l)
	log := &changeLog{}
	l.AddListener(log)

	proxy := &testutil.ProxySubscriber{}
	m.SubscribeToObject(oid, proxy)
	drain(t, m)

	l.StartTransaction()
	l.ChangeAttribute("name", "tx")
	l.ChangeAttribute("count", 2)
	l.CommitTransaction()
	drain(t, m)

	assert.Equal(t, []string{"name", "count"}, log.changes)
	require.Len(t, proxy.Events, 1)
	assert.Len(t, proxy.Events[0].(*dobj.CompoundEvent).Events(), 2)
}

func TestDispatch_PrivateEventsAreNotProxied(t *testing.T) {
	m := New()
	l := newLobby()
	oid := m.RegisterObject(l)

	proxy := &testutil.ProxySubscriber{}
	m.SubscribeToObject(oid, proxy)
	drain(t, m)

	require.True(t, l.AcquireLock("seat"))
	l.ReleaseLock("seat")
	drain(t, m)

	assert.False(t, l.HoldsLock("seat"))
	assert.Empty(t, proxy.Events)
}

func TestDispatch_PrivateCompoundMembersAreNotProxied(t *testing.T) {
	m := New()
	l := newLobby()
	oid := m.RegisterObject(l)
	heard := &messageLog{}
	l.AddListener(heard)

	proxy := &testutil.ProxySubscriber{}
	m.SubscribeToObject(oid, proxy)
	drain(t, m)

	l.StartTransaction()
	l.ChangeAttribute("name", "tx")
	l.PostServerMessage("secret", 42)
	l.CommitTransaction()
	drain(t, m)

	assert.Equal(t, []string{"secret"}, heard.names, "server listeners still hear the message")
	require.Len(t, proxy.Events, 1)
	members := proxy.Events[0].(*dobj.CompoundEvent).Events()
	require.Len(t, members, 1)
	assert.Equal(t, "name", members[0].(*dobj.AttributeChangedEvent).Name())

	// A compound with nothing public left is not relayed at all.
	l.StartTransaction()
	l.PostServerMessage("secret", 43)
	l.CommitTransaction()
	drain(t, m)

	assert.Len(t, proxy.Events, 1)
	assert.Equal(t, []string{"secret", "secret"}, heard.names)
}

type messageLog struct {
	names []string
}

func (l *messageLog) MessageReceived(ev *dobj.MessageEvent) {
	l.names = append(l.names, ev.Name())
}

func TestObjectAdded_TracksReferences(t *testing.T) {
	m := New()
	hall, room := newLobby(), newLobby()
	m.RegisterObject(hall)
	roomOid := m.RegisterObject(room)
	log := &changeLog{}
	hall.AddListener(log)

	hall.AddToOidList("rooms", roomOid)
	drain(t, m)

	assert.Equal(t, []int{roomOid}, log.added)
	assert.Equal(t, 1, m.References(roomOid))

	hall.RemoveFromOidList("rooms", roomOid)
	drain(t, m)
	assert.Equal(t, 0, m.References(roomOid))
}

func TestObjectAdded_UnknownOidIsRejected(t *testing.T) {
	m := New()
	hall := newLobby()
	m.RegisterObject(hall)
	log := &changeLog{}
	hall.AddListener(log)

	hall.AddToOidList("rooms", 77)
	drain(t, m)

	assert.False(t, hall.Rooms.Contains(77), "rejected add is undone on the authoritative copy")
	assert.Empty(t, log.added)
	assert.Equal(t, 0, m.References(77))
}

func TestObjectDestroyed_ClearsReferencesToIt(t *testing.T) {
	m := New()
	hall, room := newLobby(), newLobby()
	m.RegisterObject(hall)
	roomOid := m.RegisterObject(room)

	hall.AddToOidList("rooms", roomOid)
	drain(t, m)

	log := &changeLog{}
	hall.AddListener(log)

	room.Destroy()
	drain(t, m)

	assert.Nil(t, m.Object(roomOid))
	assert.False(t, room.IsActive())
	assert.False(t, hall.Rooms.Contains(roomOid))
	assert.Equal(t, []int{roomOid}, log.removed)
	assert.Equal(t, 0, m.References(roomOid))
}

func TestObjectDestroyed_ForgetsOutgoingReferences(t *testing.T) {
	m := New()
	hall, room := newLobby(), newLobby()
	hallOid := m.RegisterObject(hall)
	roomOid := m.RegisterObject(room)

	hall.AddToOidList("rooms", roomOid)
	drain(t, m)
	require.Equal(t, 1, m.References(roomOid))

	m.DestroyObject(hallOid)
	drain(t, m)

	assert.Nil(t, m.Object(hallOid))
	assert.Equal(t, 0, m.References(roomOid))
}

func TestObjectDestroyed_NotifiesDeathListeners(t *testing.T) {
	m := New()
	l := newLobby()
	oid := m.RegisterObject(l)

	died := &deathListener{}
	l.AddListener(died)

	l.Destroy()
	drain(t, m)

	assert.Equal(t, 1, died.count)
	assert.Nil(t, m.Object(oid))

	// Events for the destroyed object are dropped.
	m.PostEvent(dobj.NewAttributeChangedEvent(oid, "count", 1))
	drain(t, m)
	assert.Equal(t, 0, l.Count)
}

func TestObjectDestroyed_PanickingDeathListenerIsCounted(t *testing.T) {
	m := New()
	l := newLobby()
	oid := m.RegisterObject(l)
	l.AddListener(panickingDeathListener{})
	died := &deathListener{}
	l.AddListener(died)

	l.Destroy()
	drain(t, m)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.metrics.ListenerFailures))
	assert.Equal(t, 1, died.count, "later death listeners are still notified")
	assert.Nil(t, m.Object(oid))
	assert.False(t, l.IsActive())
}

type panickingDeathListener struct{}

func (panickingDeathListener) ObjectDestroyed(*dobj.ObjectDestroyedEvent) {
	panic("boom")
}

type deathListener struct {
	count int
}

func (d *deathListener) ObjectDestroyed(*dobj.ObjectDestroyedEvent) {
	d.count++
}
