package dobj

import (
	"log/slog"

	"github.com/roach88/dobj/internal/transport"
)

// The mutators below follow one rule: on the authoritative copy the change
// is applied immediately and the event records the prior state, so the
// dispatcher's later ApplyToObject is a no-op there. The event is posted in
// every case.

// ChangeAttribute sets the named attribute to value. It panics if the name is
// unknown or the value has the wrong type.
func (o *Object) ChangeAttribute(name string, value any, opts ...EventOption) {
	acc := o.mustAccessor(name)
	ev := NewAttributeChangedEvent(o.oid, name, value)
	applyOptions(ev, opts)
	if o.IsAuthoritative() {
		self := o.target()
		old := acc.Get(self)
		if err := acc.Set(self, snapshot(acc, value)); err != nil {
			panic(withOid(err, o.oid))
		}
		ev.oldValue = Captured(old)
	}
	o.PostEvent(ev)
}

// ChangeAttributes sets several attributes in one event.
func (o *Object) ChangeAttributes(names []string, values []any, opts ...EventOption) {
	ev := NewAttributesChangedEvent(o.oid, names, values)
	accs := make([]Accessor, len(names))
	for i, name := range names {
		accs[i] = o.mustAccessor(name)
	}
	applyOptions(ev, opts)
	if o.IsAuthoritative() {
		self := o.target()
		olds := make([]any, len(names))
		for i, acc := range accs {
			olds[i] = acc.Get(self)
			if err := acc.Set(self, snapshot(acc, values[i])); err != nil {
				panic(withOid(err, o.oid))
			}
		}
		ev.oldValues = Captured(olds)
	}
	o.PostEvent(ev)
}

// UpdateElement replaces element index of the named array attribute.
func (o *Object) UpdateElement(name string, index int, value any, opts ...EventOption) {
	acc := o.mustAccessor(name)
	if acc.SetElement == nil {
		panic(&StructuralError{
			Code:    ErrCodeFieldType,
			Message: "element update on a field that is not an array",
			Oid:     o.oid,
			Field:   name,
		})
	}
	ev := NewElementUpdatedEvent(o.oid, name, index, value)
	applyOptions(ev, opts)
	if o.IsAuthoritative() {
		old, err := acc.SetElement(o.target(), index, value)
		if err != nil {
			panic(withOid(err, o.oid))
		}
		ev.oldValue = Captured(old)
	}
	o.PostEvent(ev)
}

// AddToSet adds entry to the named set attribute.
func (o *Object) AddToSet(name string, entry any, opts ...EventOption) {
	set := o.mustEntrySet(name)
	ev := NewEntryAddedEvent(o.oid, name, entry)
	applyOptions(ev, opts)
	if o.IsAuthoritative() {
		added, err := set.addEntry(entry)
		if err != nil {
			panic(withField(err, o.oid, name))
		}
		ev.applied, ev.added = true, added
	}
	o.PostEvent(ev)
}

// UpdateSet replaces the entry sharing entry's key in the named set
// attribute.
func (o *Object) UpdateSet(name string, entry any, opts ...EventOption) {
	set := o.mustEntrySet(name)
	ev := NewEntryUpdatedEvent(o.oid, name, entry)
	applyOptions(ev, opts)
	if o.IsAuthoritative() {
		old, found, err := set.updateEntry(entry)
		if err != nil {
			panic(withField(err, o.oid, name))
		}
		if !found {
			slog.Warn("set update had no old entry", "dobj", o.Which(), "field", name)
		}
		ev.oldEntry = Captured(old)
	}
	o.PostEvent(ev)
}

// RemoveFromSet removes the entry with key from the named set attribute.
func (o *Object) RemoveFromSet(name string, key any, opts ...EventOption) {
	set := o.mustEntrySet(name)
	ev := NewEntryRemovedEvent(o.oid, name, key)
	applyOptions(ev, opts)
	if o.IsAuthoritative() {
		old, found, err := set.removeEntry(key)
		if err != nil {
			panic(withField(err, o.oid, name))
		}
		if !found {
			slog.Warn("set removal had no matching entry", "dobj", o.Which(), "field", name)
		}
		ev.oldEntry = Captured(old)
	}
	o.PostEvent(ev)
}

// AddToOidList adds oid to the named list attribute.
func (o *Object) AddToOidList(name string, oid int, opts ...EventOption) {
	list := o.mustOidList(name)
	ev := NewObjectAddedEvent(o.oid, name, oid)
	applyOptions(ev, opts)
	if o.IsAuthoritative() {
		list.Add(oid)
		ev.applied = true
	}
	o.PostEvent(ev)
}

// RemoveFromOidList removes oid from the named list attribute.
func (o *Object) RemoveFromOidList(name string, oid int, opts ...EventOption) {
	list := o.mustOidList(name)
	ev := NewObjectRemovedEvent(o.oid, name, oid)
	applyOptions(ev, opts)
	if o.IsAuthoritative() {
		list.Remove(oid)
		ev.applied = true
	}
	o.PostEvent(ev)
}

// PostMessage sends a named message to every listener of every copy.
func (o *Object) PostMessage(name string, args ...any) {
	o.PostEvent(NewMessageEvent(o.oid, name, args...))
}

// PostMessageVia sends a message using the given transport.
func (o *Object) PostMessageVia(t transport.Transport, name string, args ...any) {
	ev := NewMessageEvent(o.oid, name, args...)
	ev.SetTransport(t)
	o.PostEvent(ev)
}

// PostServerMessage sends a message that is delivered only on the server.
func (o *Object) PostServerMessage(name string, args ...any) {
	o.PostEvent(NewServerMessageEvent(o.oid, name, args...))
}

func (o *Object) mustEntrySet(name string) entrySet {
	set, err := o.entrySet(name)
	if err != nil {
		panic(err)
	}
	return set
}

func (o *Object) mustOidList(name string) *OidList {
	list, err := o.oidList(name)
	if err != nil {
		panic(err)
	}
	return list
}
