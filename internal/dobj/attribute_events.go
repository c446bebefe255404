package dobj

import (
	"fmt"
	"reflect"
)

// AttributeChangedEvent replaces the value of one attribute.
type AttributeChangedEvent struct {
	eventHeader
	name     string
	value    any
	oldValue Prior[any]
}

// NewAttributeChangedEvent returns an event setting name to value on the
// object with the given oid.
func NewAttributeChangedEvent(targetOid int, name string, value any) *AttributeChangedEvent {
	return &AttributeChangedEvent{eventHeader: newHeader(targetOid), name: name, value: value}
}

func (e *AttributeChangedEvent) Kind() Kind { return KindAttributeChanged }

// Name returns the attribute being changed.
func (e *AttributeChangedEvent) Name() string { return e.name }

// Value returns the new value.
func (e *AttributeChangedEvent) Value() any { return e.value }

// OldValue returns the value the attribute held before the change. It is
// nil until the event has been applied.
func (e *AttributeChangedEvent) OldValue() any { return e.oldValue.Value() }

// IntValue returns the new value as an int. It panics if the value is not
// an integer.
func (e *AttributeChangedEvent) IntValue() int {
	rv := reflect.ValueOf(e.value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint())
	}
	panic(fmt.Sprintf("attribute %s holds %T, not an integer", e.name, e.value))
}

// StringValue returns the new value as a string. It panics if the value is
// not a string.
func (e *AttributeChangedEvent) StringValue() string {
	return e.value.(string)
}

// BoolValue returns the new value as a bool. It panics if the value is not
// a bool.
func (e *AttributeChangedEvent) BoolValue() bool {
	return e.value.(bool)
}

func (e *AttributeChangedEvent) AlreadyApplied() bool { return e.oldValue.IsCaptured() }

func (e *AttributeChangedEvent) ApplyToObject(target *Object) (bool, error) {
	if e.oldValue.IsCaptured() {
		return true, nil
	}
	acc, err := target.accessor(e.name)
	if err != nil {
		return false, err
	}
	self := target.target()
	old := acc.Get(self)
	if err := acc.Set(self, snapshot(acc, e.value)); err != nil {
		return false, withOid(err, target.oid)
	}
	e.oldValue = Captured(old)
	return true, nil
}

func (e *AttributeChangedEvent) String() string {
	return describe(&e.eventHeader, "CHANGE", "name", e.name, "value", e.value)
}

// AttributesChangedEvent replaces several attributes at once.
type AttributesChangedEvent struct {
	eventHeader
	names     []string
	values    []any
	oldValues Prior[[]any]
}

// NewAttributesChangedEvent returns an event setting names[i] to values[i]
// for each i. It panics if the slices differ in length.
func NewAttributesChangedEvent(targetOid int, names []string, values []any) *AttributesChangedEvent {
	if len(names) != len(values) {
		panic(fmt.Sprintf("attributes changed: %d names but %d values", len(names), len(values)))
	}
	return &AttributesChangedEvent{eventHeader: newHeader(targetOid), names: names, values: values}
}

func (e *AttributesChangedEvent) Kind() Kind { return KindAttributesChanged }

// Names returns the attributes being changed.
func (e *AttributesChangedEvent) Names() []string { return e.names }

// Values returns the new values, parallel to Names.
func (e *AttributesChangedEvent) Values() []any { return e.values }

// OldValues returns the prior values, parallel to Names, or nil until applied.
func (e *AttributesChangedEvent) OldValues() []any { return e.oldValues.Value() }

// Value returns the new value for name.
func (e *AttributesChangedEvent) Value(name string) (any, bool) {
	for i, n := range e.names {
		if n == name {
			return e.values[i], true
		}
	}
	return nil, false
}

func (e *AttributesChangedEvent) AlreadyApplied() bool { return e.oldValues.IsCaptured() }

func (e *AttributesChangedEvent) ApplyToObject(target *Object) (bool, error) {
	if e.oldValues.IsCaptured() {
		return true, nil
	}
	accs := make([]Accessor, len(e.names))
	for i, name := range e.names {
		acc, err := target.accessor(name)
		if err != nil {
			return false, err
		}
		accs[i] = acc
	}
	self := target.target()
	olds := make([]any, len(e.names))
	for i, acc := range accs {
		olds[i] = acc.Get(self)
		if err := acc.Set(self, snapshot(acc, e.values[i])); err != nil {
			return false, withOid(err, target.oid)
		}
	}
	e.oldValues = Captured(olds)
	return true, nil
}

func (e *AttributesChangedEvent) String() string {
	return describe(&e.eventHeader, "CHANGES", "names", e.names, "values", e.values)
}

// ElementUpdatedEvent replaces one element of an array attribute.
type ElementUpdatedEvent struct {
	eventHeader
	name     string
	index    int
	value    any
	oldValue Prior[any]
}

// NewElementUpdatedEvent returns an event setting element index of the array
// attribute name to value.
func NewElementUpdatedEvent(targetOid int, name string, index int, value any) *ElementUpdatedEvent {
	return &ElementUpdatedEvent{eventHeader: newHeader(targetOid), name: name, index: index, value: value}
}

func (e *ElementUpdatedEvent) Kind() Kind { return KindElementUpdated }

// Name returns the array attribute being updated.
func (e *ElementUpdatedEvent) Name() string { return e.name }

// Index returns the position of the updated element.
func (e *ElementUpdatedEvent) Index() int { return e.index }

// Value returns the new element.
func (e *ElementUpdatedEvent) Value() any { return e.value }

// OldValue returns the element that was replaced, or nil until applied.
func (e *ElementUpdatedEvent) OldValue() any { return e.oldValue.Value() }

func (e *ElementUpdatedEvent) AlreadyApplied() bool { return e.oldValue.IsCaptured() }

func (e *ElementUpdatedEvent) ApplyToObject(target *Object) (bool, error) {
	if e.oldValue.IsCaptured() {
		return true, nil
	}
	acc, err := target.accessor(e.name)
	if err != nil {
		return false, err
	}
	if acc.SetElement == nil {
		return false, &StructuralError{
			Code:    ErrCodeFieldType,
			Message: "element update on a field that is not an array",
			Oid:     target.oid,
			Field:   e.name,
		}
	}
	old, err := acc.SetElement(target.target(), e.index, e.value)
	if err != nil {
		return false, withOid(err, target.oid)
	}
	e.oldValue = Captured(old)
	return true, nil
}

func (e *ElementUpdatedEvent) String() string {
	return describe(&e.eventHeader, "UPDATE", "name", e.name, "index", e.index, "value", e.value)
}

func snapshot(acc Accessor, value any) any {
	if value == nil || acc.Snapshot == nil {
		return value
	}
	return acc.Snapshot(value)
}

// withOid fills in the object id on a structural error raised below the
// object layer.
func withOid(err error, oid int) error {
	if se, ok := err.(*StructuralError); ok && se.Oid == 0 {
		se.Oid = oid
	}
	return err
}
