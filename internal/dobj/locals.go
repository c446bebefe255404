package dobj

import (
	"fmt"
	"reflect"
	"slices"
)

// Local attributes are server-side values attached to an object and never
// distributed. They are keyed by type: a value is found by any interface or
// type it satisfies, so a key and any type assignable to it cannot both be
// set.

type localAttr struct {
	key   reflect.Type
	value any
}

// SetLocal attaches attr under key type T. It panics if a value already
// present satisfies T, or if attr satisfies the key of a value already
// present. A nil attr clears the key.
func SetLocal[T any](obj DObject, attr T) {
	o := obj.Base()
	if any(attr) == nil {
		ClearLocal[T](obj)
		return
	}
	key := reflect.TypeFor[T]()
	attrType := reflect.TypeOf(attr)
	for _, l := range o.locals {
		if reflect.TypeOf(l.value).AssignableTo(key) || attrType.AssignableTo(l.key) {
			panic(&StructuralError{
				Code: ErrCodeLocalConflict,
				Message: fmt.Sprintf("local attribute %s conflicts with existing %s (%T)",
					key, l.key, l.value),
				Oid: o.oid,
			})
		}
	}
	o.locals = append(o.locals, localAttr{key: key, value: attr})
}

// GetLocal returns the local attribute satisfying T.
func GetLocal[T any](obj DObject) (T, bool) {
	for _, l := range obj.Base().locals {
		if v, ok := l.value.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// ClearLocal removes the local attribute satisfying T, if any.
func ClearLocal[T any](obj DObject) {
	o := obj.Base()
	idx := slices.IndexFunc(o.locals, func(l localAttr) bool {
		_, ok := l.value.(T)
		return ok
	})
	if idx >= 0 {
		o.locals = slices.Delete(o.locals, idx, idx+1)
	}
}

// Locals returns every local attribute value.
func (o *Object) Locals() []any {
	out := make([]any, len(o.locals))
	for i, l := range o.locals {
		out[i] = l.value
	}
	return out
}
