package dobj

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotify_ListenerPanicIsIsolated(t *testing.T) {
	r, mgr := managedRoom(1, false)
	first := &recorder{}
	last := &recorder{}
	r.AddListener(first)
	r.AddListener(&panicker{})
	r.AddListener(last)

	ev := NewAttributeChangedEvent(1, "score", 3)
	assert.NotPanics(t, func() { r.NotifyListeners(ev) })

	assert.Len(t, first.attrs, 1)
	assert.Len(t, last.attrs, 1, "listeners after a failing one are still notified")
	assert.Equal(t, 1, mgr.failures)
}

func TestNotify_RegistrationOrder(t *testing.T) {
	r, _ := managedRoom(1, false)
	var order []int
	for i := range 3 {
		r.AddListener(&orderedListener{id: i, order: &order})
	}

	r.NotifyListeners(NewMessageEvent(1, "go"))
	assert.Equal(t, []int{0, 1, 2}, order)
}

type orderedListener struct {
	id    int
	order *[]int
}

func (l *orderedListener) EventReceived(Event) { *l.order = append(*l.order, l.id) }

func TestNotify_RepeatListenerRefused(t *testing.T) {
	r, _ := managedRoom(1, false)
	rec := &recorder{}

	r.AddListener(rec)
	r.AddListener(rec)
	assert.Equal(t, 1, r.ListenerCount())

	r.NotifyListeners(NewMessageEvent(1, "once"))
	assert.Len(t, rec.messages, 1)
}

func TestNotify_StrengthUpdate(t *testing.T) {
	r, _ := managedRoom(1, false)
	rec := &recorder{}

	AddWeakListener(r, rec)
	r.AddListener(rec)
	assert.Equal(t, 1, r.ListenerCount())
	assert.False(t, r.listeners[0].isWeak(), "re-adding strongly upgrades the registration")

	AddWeakListener(r, rec)
	assert.True(t, r.listeners[0].isWeak())
	runtime.KeepAlive(rec)
}

func TestNotify_RemoveListener(t *testing.T) {
	r, _ := managedRoom(1, false)
	a, b := &recorder{}, &recorder{}
	r.AddListener(a)
	r.AddListener(b)

	r.RemoveListener(a)
	r.NotifyListeners(NewMessageEvent(1, "m"))

	assert.Empty(t, a.messages)
	assert.Len(t, b.messages, 1)
	assert.Equal(t, 1, r.ListenerCount())
}

func TestNotify_RemoveDuringNotification(t *testing.T) {
	r, _ := managedRoom(1, false)
	b := &recorder{}
	a := &removingListener{obj: &r.Object, target: b}
	r.AddListener(a)
	r.AddListener(b)

	r.NotifyListeners(NewMessageEvent(1, "m"))

	assert.Empty(t, b.messages, "a listener removed mid-notification is skipped")
	assert.Equal(t, 1, r.ListenerCount())
	assert.Len(t, r.listeners, 1, "empty slots are compacted after notification")
}

type removingListener struct {
	obj    *Object
	target any
}

func (l *removingListener) EventReceived(Event) { l.obj.RemoveListener(l.target) }

func TestNotify_WeakListenerPruned(t *testing.T) {
	r, _ := managedRoom(1, false)
	keep := &recorder{}
	r.AddListener(keep)

	func() {
		gone := &recorder{}
		AddWeakListener(r, gone)
	}()
	require.Len(t, r.listeners, 2)

	for range 5 {
		runtime.GC()
	}

	assert.NotPanics(t, func() { r.NotifyListeners(NewMessageEvent(1, "m")) })
	assert.Len(t, r.listeners, 1, "collected weak listener is removed from the registry")
	assert.Len(t, keep.messages, 1)
}

func TestNotify_NonComparableListenerPanics(t *testing.T) {
	r, _ := managedRoom(1, false)
	assert.Panics(t, func() { r.AddListener(funcListener(func() {})) })
}

type funcListener func()

func (funcListener) EventReceived(Event) {}

func TestNotify_ProxiesSkipPrivateEvents(t *testing.T) {
	r, _ := managedRoom(1, false)
	relay := &relaySub{}
	r.AddSubscriber(relay)
	r.AddSubscriber(&plainSub{name: "viewer"})

	r.NotifyProxies(NewMessageEvent(1, "public"))
	r.NotifyProxies(NewServerMessageEvent(1, "secret"))
	r.NotifyProxies(NewReleaseLockEvent(1, "x"))

	require.Len(t, relay.events, 1)
	assert.Equal(t, "public", relay.events[0].(*MessageEvent).Name())
}

func TestNotify_ServerMessageReachesMessageListeners(t *testing.T) {
	r, _ := managedRoom(1, false)
	rec := &recorder{}
	r.AddListener(rec)

	r.NotifyListeners(NewServerMessageEvent(1, "tick", 5))

	require.Len(t, rec.messages, 1)
	assert.Equal(t, []any{5}, rec.messages[0].Args())
	assert.Equal(t, KindServerMessage, rec.all[0].Kind())
}

func TestNotify_MessageListenerSeesServerOnly(t *testing.T) {
	r, _ := managedRoom(1, false)
	rec := &recorder{}
	r.AddListener(rec)

	r.NotifyListeners(NewServerMessageEvent(1, "tick"))
	r.NotifyListeners(NewMessageEvent(1, "chat"))

	require.Len(t, rec.messages, 2)
	assert.True(t, rec.messages[0].ServerOnly())
	assert.False(t, rec.messages[1].ServerOnly())
}

func TestSubscribers_LastRemovalTellsManager(t *testing.T) {
	r, mgr := managedRoom(1, false)
	a, b := &plainSub{name: "a"}, &plainSub{name: "b"}
	r.AddSubscriber(a)
	r.AddSubscriber(b)
	r.SetDestroyOnLastSubscriberRemoved(true)

	r.RemoveSubscriber(a)
	assert.Nil(t, mgr.lastRemoved)

	r.RemoveSubscriber(b)
	assert.Same(t, &r.Object, mgr.lastRemoved)
	assert.True(t, mgr.deathWish)
	assert.Equal(t, 0, r.SubscriberCount())
}

func TestSubscribers_DuplicatePanics(t *testing.T) {
	r, _ := managedRoom(1, false)
	sub := &plainSub{}
	r.AddSubscriber(sub)

	defer func() {
		err, _ := recover().(error)
		assert.True(t, IsStructuralError(err, ErrCodeDuplicateSubscriber))
	}()
	r.AddSubscriber(sub)
}

func TestAccess_ControllerConsulted(t *testing.T) {
	r, _ := managedRoom(1, false)
	assert.True(t, r.CheckDispatchPermission(NewMessageEvent(1, "m")), "no controller allows everything")

	r.SetAccessController(ServerOnly)
	ev := NewMessageEvent(1, "m")
	assert.True(t, r.CheckDispatchPermission(ev))
	ev.SetSourceOid(99)
	assert.False(t, r.CheckDispatchPermission(ev))
	assert.True(t, r.CheckSubscribePermission(&plainSub{}))

	r.SetAccessController(AccessFuncs{
		Subscribe: func(obj DObject, _ Subscriber) bool { return obj.Base().Oid() != 1 },
	})
	assert.False(t, r.CheckSubscribePermission(&plainSub{}))
}
