package dobj

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
)

// AddListener registers l strongly. l may implement any of the listener
// capabilities and must be comparable. Adding a listener that is already
// registered strongly is refused; adding one registered weakly makes it
// strong.
func (o *Object) AddListener(l any) {
	mustBeComparable(l, "listener")
	o.addListener(l, strongRef(l))
}

// AddWeakListener registers l without keeping it reachable. Once l is
// garbage collected it is pruned on the next notification.
func AddWeakListener[T any](obj DObject, l *T) {
	obj.Base().addListener(l, weakRef(l))
}

func (o *Object) addListener(l any, ref listenerRef) {
	idx := o.listenerIndex(l)
	if idx < 0 {
		o.listeners = append(o.listeners, ref)
		return
	}
	if o.listeners[idx].isWeak() == ref.isWeak() {
		slog.Warn("refusing repeat listener registration",
			"dobj", o.Which(),
			"listener", fmt.Sprintf("%T", l))
		return
	}
	slog.Warn("updating listener strength",
		"dobj", o.Which(),
		"listener", fmt.Sprintf("%T", l),
		"weak", ref.isWeak())
	o.listeners[idx] = ref
}

// RemoveListener unregisters l, however it was held.
func (o *Object) RemoveListener(l any) {
	if idx := o.listenerIndex(l); idx >= 0 {
		o.listeners[idx] = listenerRef{}
		o.pruned = true
		o.compactListeners()
	}
}

// ListenerCount returns the number of live registered listeners.
func (o *Object) ListenerCount() int {
	n := 0
	for _, ref := range o.listeners {
		if !ref.empty() && ref.resolve() != nil {
			n++
		}
	}
	return n
}

func (o *Object) listenerIndex(l any) int {
	if l == nil || !reflect.TypeOf(l).Comparable() {
		return -1
	}
	for i, ref := range o.listeners {
		if !ref.empty() && ref.resolve() == l {
			return i
		}
	}
	return -1
}

// compactListeners drops empty slots unless a notification is iterating the
// registry.
func (o *Object) compactListeners() {
	if o.notifying > 0 || !o.pruned {
		return
	}
	o.listeners = slices.DeleteFunc(o.listeners, listenerRef.empty)
	o.pruned = false
}

// NotifyListeners delivers ev to every registered listener in registration
// order. Collected weak listeners are pruned. A listener that panics is
// logged and skipped. Listeners added during notification are not notified
// of ev.
func (o *Object) NotifyListeners(ev Event) {
	if !o.IsActive() && ev.Kind() != KindObjectDestroyed {
		slog.Debug("notifying listeners of inactive object",
			"dobj", o.Which(),
			"event", ev.String())
	}

	o.notifying++
	defer func() {
		o.notifying--
		o.compactListeners()
	}()

	n := len(o.listeners)
	for i := 0; i < n; i++ {
		ref := o.listeners[i]
		if ref.empty() {
			continue
		}
		l := ref.resolve()
		if l == nil {
			o.listeners[i] = listenerRef{}
			o.pruned = true
			continue
		}
		o.notifyOne(ev, l)
	}
}

// ListenerFailureObserver is implemented by managers that want to hear
// about listeners that panic during notification.
type ListenerFailureObserver interface {
	ListenerFailed(obj *Object, ev Event, cause any)
}

func (o *Object) notifyOne(ev Event, l any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("listener choked during notification",
				"dobj", o.Which(),
				"listener", fmt.Sprintf("%T", l),
				"event", ev.String(),
				"panic", r)
			if obs, ok := o.mgr.(ListenerFailureObserver); ok {
				obs.ListenerFailed(o, ev, r)
			}
		}
	}()
	notifyListener(ev, l)
	if el, ok := l.(EventListener); ok {
		el.EventReceived(ev)
	}
}

// NotifyProxies relays ev to every subscriber that is a ProxySubscriber,
// unless ev is private.
func (o *Object) NotifyProxies(ev Event) {
	if ev.IsPrivate() {
		return
	}
	for _, sub := range slices.Clone(o.subscribers) {
		ps, ok := sub.(ProxySubscriber)
		if !ok {
			continue
		}
		o.relay(ps, ev)
	}
}

func (o *Object) relay(ps ProxySubscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("proxy choked during relay",
				"dobj", o.Which(),
				"proxy", fmt.Sprintf("%T", ps),
				"event", ev.String(),
				"panic", r)
		}
	}()
	ps.EventReceived(ev)
}

// AddSubscriber registers sub as holding a copy of the object. Only the
// manager calls this. Registering the same subscriber twice panics.
func (o *Object) AddSubscriber(sub Subscriber) {
	mustBeComparable(sub, "subscriber")
	if o.HasSubscriber(sub) {
		panic(&StructuralError{
			Code:    ErrCodeDuplicateSubscriber,
			Message: fmt.Sprintf("subscriber %T is already registered", sub),
			Oid:     o.oid,
		})
	}
	o.subscribers = append(o.subscribers, sub)
}

// RemoveSubscriber unregisters sub. When the last subscriber goes the
// manager is told, along with whether the object wants to be destroyed.
func (o *Object) RemoveSubscriber(sub Subscriber) {
	idx := o.subscriberIndex(sub)
	if idx < 0 {
		return
	}
	o.subscribers = slices.Delete(o.subscribers, idx, idx+1)
	if len(o.subscribers) == 0 && o.mgr != nil {
		o.mgr.RemovedLastSubscriber(o, o.deathWish)
	}
}

// HasSubscriber reports whether sub is registered.
func (o *Object) HasSubscriber(sub Subscriber) bool {
	return o.subscriberIndex(sub) >= 0
}

// SubscriberCount returns the number of registered subscribers.
func (o *Object) SubscriberCount() int {
	return len(o.subscribers)
}

// SetDestroyOnLastSubscriberRemoved asks the manager to destroy the object
// once its last subscriber is removed.
func (o *Object) SetDestroyOnLastSubscriberRemoved(deathWish bool) {
	o.deathWish = deathWish
}

func (o *Object) subscriberIndex(sub Subscriber) int {
	if sub == nil || !reflect.TypeOf(sub).Comparable() {
		return -1
	}
	return slices.IndexFunc(o.subscribers, func(s Subscriber) bool { return s == sub })
}

func mustBeComparable(v any, what string) {
	if v == nil || !reflect.TypeOf(v).Comparable() {
		panic(&StructuralError{
			Code:    ErrCodeNotComparable,
			Message: fmt.Sprintf("%s of type %T cannot be compared for identity", what, v),
		})
	}
}
