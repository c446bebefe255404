package dobj

import "weak"

// Listeners implement any subset of the capability interfaces below. An
// event is delivered to the capability matching its kind and, separately, to
// EventListener.

// AttributeChangeListener is notified of attribute changes. Batched changes
// arrive as one call per attribute.
type AttributeChangeListener interface {
	AttributeChanged(ev *AttributeChangedEvent)
}

// ElementUpdateListener is notified when an element of an array attribute
// is replaced.
type ElementUpdateListener interface {
	ElementUpdated(ev *ElementUpdatedEvent)
}

// SetListener is notified of changes to DSet attributes.
type SetListener interface {
	EntryAdded(ev *EntryAddedEvent)
	EntryUpdated(ev *EntryUpdatedEvent)
	EntryRemoved(ev *EntryRemovedEvent)
}

// OidListListener is notified of changes to OidList attributes.
type OidListListener interface {
	ObjectAdded(ev *ObjectAddedEvent)
	ObjectRemoved(ev *ObjectRemovedEvent)
}

// MessageListener receives messages, including server-only ones, which
// report ServerOnly.
type MessageListener interface {
	MessageReceived(ev *MessageEvent)
}

// ObjectDeathListener is notified when the object is destroyed.
type ObjectDeathListener interface {
	ObjectDestroyed(ev *ObjectDestroyedEvent)
}

// EventListener receives every event dispatched on the object.
type EventListener interface {
	EventReceived(ev Event)
}

// notifyListener delivers ev to the capability of l that it targets, if any.
func notifyListener(ev Event, l any) {
	switch e := ev.(type) {
	case *AttributeChangedEvent:
		if al, ok := l.(AttributeChangeListener); ok {
			al.AttributeChanged(e)
		}
	case *AttributesChangedEvent:
		if al, ok := l.(AttributeChangeListener); ok {
			olds := e.OldValues()
			for i, name := range e.names {
				single := &AttributeChangedEvent{eventHeader: e.eventHeader, name: name, value: e.values[i]}
				if olds != nil {
					single.oldValue = Captured(olds[i])
				}
				al.AttributeChanged(single)
			}
		}
	case *ElementUpdatedEvent:
		if el, ok := l.(ElementUpdateListener); ok {
			el.ElementUpdated(e)
		}
	case *EntryAddedEvent:
		if sl, ok := l.(SetListener); ok {
			sl.EntryAdded(e)
		}
	case *EntryUpdatedEvent:
		if sl, ok := l.(SetListener); ok {
			sl.EntryUpdated(e)
		}
	case *EntryRemovedEvent:
		if sl, ok := l.(SetListener); ok {
			sl.EntryRemoved(e)
		}
	case *ObjectAddedEvent:
		if ol, ok := l.(OidListListener); ok {
			ol.ObjectAdded(e)
		}
	case *ObjectRemovedEvent:
		if ol, ok := l.(OidListListener); ok {
			ol.ObjectRemoved(e)
		}
	case *MessageEvent:
		if ml, ok := l.(MessageListener); ok {
			ml.MessageReceived(e)
		}
	case *ServerMessageEvent:
		if ml, ok := l.(MessageListener); ok {
			ml.MessageReceived(&e.MessageEvent)
		}
	case *ObjectDestroyedEvent:
		if dl, ok := l.(ObjectDeathListener); ok {
			dl.ObjectDestroyed(e)
		}
	case *ReleaseLockEvent, *CompoundEvent,
		*InvocationRequestEvent, *InvocationResponseEvent, *InvocationNotificationEvent:
		// Only EventListener sees these.
	}
}

// listenerRef holds a listener strongly or weakly. The zero value is an
// empty registry slot.
type listenerRef struct {
	strong any

	// weak resolves a weakly held listener, returning nil once collected.
	weak func() any
}

func (r listenerRef) empty() bool {
	return r.strong == nil && r.weak == nil
}

func (r listenerRef) isWeak() bool {
	return r.weak != nil
}

func (r listenerRef) resolve() any {
	if r.weak != nil {
		return r.weak()
	}
	return r.strong
}

func strongRef(l any) listenerRef {
	return listenerRef{strong: l}
}

func weakRef[T any](l *T) listenerRef {
	wp := weak.Make(l)
	return listenerRef{
		weak: func() any {
			if p := wp.Value(); p != nil {
				return p
			}
			return nil
		},
	}
}
