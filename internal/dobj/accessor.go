package dobj

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Accessor reads and writes one named attribute of an object. An object's
// accessors form a table, sorted by name, that is built once per class and
// shared by every instance.
//
// Get and Set are required. The remaining hooks are optional and describe
// the attribute's shape to events and codecs.
type Accessor struct {
	Name string

	Get func(obj any) any
	Set func(obj any, value any) error

	// Snapshot copies a mutable value so that later changes by the sender do
	// not leak into the object.
	Snapshot func(value any) any

	// SetElement replaces one element of an array attribute and returns the
	// element it replaced.
	SetElement func(obj any, index int, value any) (any, error)

	// Decode parses an encoded attribute value.
	Decode func(data []byte) (any, error)

	// DecodeElement parses an encoded array element or set entry.
	DecodeElement func(data []byte) (any, error)

	// DecodeKey parses an encoded set key.
	DecodeKey func(data []byte) (any, error)
}

// AccessorSource is implemented by object types that expose attributes.
// CreateAccessors is called once per class.
type AccessorSource interface {
	CreateAccessors() []Accessor
}

// ClassKeyer is implemented by object types whose class is not determined by
// their Go type, such as objects built from a runtime schema.
type ClassKeyer interface {
	ClassKey() string
}

type accessorTable struct {
	className string
	accessors []Accessor
}

var accessorTables sync.Map

func tableFor(self any) *accessorTable {
	var key any
	var className string
	if ck, ok := self.(ClassKeyer); ok {
		key = "class:" + ck.ClassKey()
		className = ck.ClassKey()
	} else {
		t := reflect.TypeOf(self)
		key = t
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		className = t.Name()
	}
	if cached, ok := accessorTables.Load(key); ok {
		return cached.(*accessorTable)
	}

	table := &accessorTable{className: className}
	if src, ok := self.(AccessorSource); ok {
		table.accessors = slices.Clone(src.CreateAccessors())
		slices.SortFunc(table.accessors, func(a, b Accessor) int {
			return strings.Compare(a.Name, b.Name)
		})
	}
	actual, _ := accessorTables.LoadOrStore(key, table)
	return actual.(*accessorTable)
}

func (t *accessorTable) lookup(name string) (Accessor, bool) {
	idx, found := slices.BinarySearchFunc(t.accessors, name, func(a Accessor, n string) int {
		return cmp.Compare(a.Name, n)
	})
	if !found {
		return Accessor{}, false
	}
	return t.accessors[idx], true
}

// FieldAccessor exposes a plain value field. V should not be a slice, map or
// pointer to mutable state; use SliceAccessor, SetAccessor or
// OidListAccessor for those.
func FieldAccessor[O any, V any](name string, field func(O) *V) Accessor {
	return Accessor{
		Name: name,
		Get: func(obj any) any {
			return *field(obj.(O))
		},
		Set: func(obj any, value any) error {
			v, err := convertValue[V](name, value)
			if err != nil {
				return err
			}
			*field(obj.(O)) = v
			return nil
		},
		Decode: decodeJSON[V],
	}
}

// SliceAccessor exposes an array field whose elements may be updated
// individually.
func SliceAccessor[O any, E any](name string, field func(O) *[]E) Accessor {
	return Accessor{
		Name: name,
		Get: func(obj any) any {
			return *field(obj.(O))
		},
		Set: func(obj any, value any) error {
			v, err := convertValue[[]E](name, value)
			if err != nil {
				return err
			}
			*field(obj.(O)) = v
			return nil
		},
		Snapshot: func(value any) any {
			if v, ok := value.([]E); ok {
				return slices.Clone(v)
			}
			return value
		},
		SetElement: func(obj any, index int, value any) (any, error) {
			elems := *field(obj.(O))
			if index < 0 || index >= len(elems) {
				return nil, &StructuralError{
					Code:    ErrCodeIndexRange,
					Message: fmt.Sprintf("index %d out of range [0, %d)", index, len(elems)),
					Field:   name,
				}
			}
			v, err := convertValue[E](name, value)
			if err != nil {
				return nil, err
			}
			old := elems[index]
			elems[index] = v
			return old, nil
		},
		Decode:        decodeJSON[[]E],
		DecodeElement: decodeJSON[E],
	}
}

// SetAccessor exposes a DSet field.
func SetAccessor[O any, K cmp.Ordered, E Entry[K]](name string, field func(O) **DSet[K, E]) Accessor {
	return Accessor{
		Name: name,
		Get: func(obj any) any {
			if s := *field(obj.(O)); s != nil {
				return s
			}
			return nil
		},
		Set: func(obj any, value any) error {
			if value == nil {
				*field(obj.(O)) = nil
				return nil
			}
			s, ok := value.(*DSet[K, E])
			if !ok {
				return fieldTypeError[*DSet[K, E]](name, value)
			}
			*field(obj.(O)) = s
			return nil
		},
		Snapshot: func(value any) any {
			if s, ok := value.(*DSet[K, E]); ok && s != nil {
				return s.Clone()
			}
			return value
		},
		Decode: func(data []byte) (any, error) {
			s := &DSet[K, E]{}
			if err := json.Unmarshal(data, s); err != nil {
				return nil, err
			}
			return s, nil
		},
		DecodeElement: decodeJSON[E],
		DecodeKey:     decodeJSON[K],
	}
}

// OidListAccessor exposes an OidList field.
func OidListAccessor[O any](name string, field func(O) **OidList) Accessor {
	return Accessor{
		Name: name,
		Get: func(obj any) any {
			if l := *field(obj.(O)); l != nil {
				return l
			}
			return nil
		},
		Set: func(obj any, value any) error {
			if value == nil {
				*field(obj.(O)) = nil
				return nil
			}
			l, ok := value.(*OidList)
			if !ok {
				return fieldTypeError[*OidList](name, value)
			}
			*field(obj.(O)) = l
			return nil
		},
		Snapshot: func(value any) any {
			if l, ok := value.(*OidList); ok && l != nil {
				return l.Clone()
			}
			return value
		},
		Decode: func(data []byte) (any, error) {
			l := &OidList{}
			if err := json.Unmarshal(data, l); err != nil {
				return nil, err
			}
			return l, nil
		},
	}
}

func decodeJSON[V any](data []byte) (any, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// convertValue coerces value to V. Nil becomes the zero value; numeric
// values convert between numeric kinds when V holds them exactly. A float
// must be integral to become an integer, and no value may overflow V.
func convertValue[V any](name string, value any) (V, error) {
	var zero V
	if value == nil {
		return zero, nil
	}
	if v, ok := value.(V); ok {
		return v, nil
	}
	want := reflect.TypeFor[V]()
	rv := reflect.ValueOf(value)
	if isNumeric(rv.Kind()) && isNumeric(want.Kind()) && fitsNumeric(rv, want) {
		return rv.Convert(want).Interface().(V), nil
	}
	return zero, fieldTypeError[V](name, value)
}

// fitsNumeric reports whether the numeric value rv converts to want without
// truncation or overflow.
func fitsNumeric(rv reflect.Value, want reflect.Type) bool {
	dst := reflect.New(want).Elem()
	switch {
	case rv.CanInt():
		x := rv.Int()
		switch {
		case dst.CanInt():
			return !dst.OverflowInt(x)
		case dst.CanUint():
			return x >= 0 && !dst.OverflowUint(uint64(x))
		}
		return !dst.OverflowFloat(float64(x))
	case rv.CanUint():
		x := rv.Uint()
		switch {
		case dst.CanInt():
			return x <= math.MaxInt64 && !dst.OverflowInt(int64(x))
		case dst.CanUint():
			return !dst.OverflowUint(x)
		}
		return !dst.OverflowFloat(float64(x))
	}
	f := rv.Float()
	if dst.CanFloat() {
		return !dst.OverflowFloat(f)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return false
	}
	if dst.CanInt() {
		return f >= math.MinInt64 && f < math.MaxInt64 && !dst.OverflowInt(int64(f))
	}
	return f >= 0 && f < math.MaxUint64 && !dst.OverflowUint(uint64(f))
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func fieldTypeError[V any](name string, value any) error {
	return &StructuralError{
		Code:    ErrCodeFieldType,
		Message: fmt.Sprintf("value has type %T, want %s", value, reflect.TypeFor[V]()),
		Field:   name,
	}
}
