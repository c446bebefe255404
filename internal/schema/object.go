package schema

import (
	"fmt"

	"github.com/roach88/dobj/internal/dobj"
)

// Record is an entry of a set field, keyed by ID.
type Record struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data,omitempty"`
}

func (r *Record) Key() string { return r.ID }

func (r *Record) String() string {
	return fmt.Sprintf("%s%v", r.ID, r.Data)
}

// RecordSet is the value type of set fields.
type RecordSet = dobj.DSet[string, *Record]

// Object is a distributed object whose attributes are declared by a Class.
// Each attribute is stored in its own typed slot so the accessors can hand
// out stable pointers.
type Object struct {
	dobj.Object
	class *Class
	slots map[string]any
}

// NewObject creates an unregistered object of class c with zero values:
// empty strings, zero ints, arrays of the declared size, empty sets and
// lists.
func (c *Class) NewObject() *Object {
	o := &Object{class: c, slots: make(map[string]any, len(c.Fields))}
	for _, f := range c.Fields {
		switch f.Kind {
		case KindString:
			o.slots[f.Name] = new(string)
		case KindInt:
			o.slots[f.Name] = new(int64)
		case KindBool:
			o.slots[f.Name] = new(bool)
		case KindInts:
			s := make([]int64, f.Size)
			o.slots[f.Name] = &s
		case KindStrings:
			s := make([]string, f.Size)
			o.slots[f.Name] = &s
		case KindOidList:
			l := dobj.NewOidList(0)
			o.slots[f.Name] = &l
		case KindSet:
			s := dobj.NewDSet[string, *Record]()
			o.slots[f.Name] = &s
		}
	}
	o.Init(o)
	return o
}

// Class returns the object's class.
func (o *Object) Class() *Class {
	return o.class
}

// ClassKey keys the accessor table by class name rather than Go type.
func (o *Object) ClassKey() string {
	return o.class.Name
}

func (o *Object) CreateAccessors() []dobj.Accessor {
	accs := make([]dobj.Accessor, 0, len(o.class.Fields))
	for _, f := range o.class.Fields {
		switch f.Kind {
		case KindString:
			accs = append(accs, dobj.FieldAccessor(f.Name, slot[string](f.Name)))
		case KindInt:
			accs = append(accs, dobj.FieldAccessor(f.Name, slot[int64](f.Name)))
		case KindBool:
			accs = append(accs, dobj.FieldAccessor(f.Name, slot[bool](f.Name)))
		case KindInts:
			accs = append(accs, dobj.SliceAccessor(f.Name, slot[[]int64](f.Name)))
		case KindStrings:
			accs = append(accs, dobj.SliceAccessor(f.Name, slot[[]string](f.Name)))
		case KindOidList:
			accs = append(accs, dobj.OidListAccessor(f.Name, slot[*dobj.OidList](f.Name)))
		case KindSet:
			accs = append(accs, dobj.SetAccessor(f.Name, slot[*RecordSet](f.Name)))
		}
	}
	return accs
}

func slot[V any](name string) func(*Object) *V {
	return func(o *Object) *V {
		return o.slots[name].(*V)
	}
}

// Get returns the value of the named attribute, or nil if the class does not
// declare it.
func (o *Object) Get(name string) any {
	if _, ok := o.class.Field(name); !ok {
		return nil
	}
	return o.Attribute(name)
}

// Set returns the named set attribute, or nil if it is not a set.
func (o *Object) Set(name string) *RecordSet {
	if f, ok := o.class.Field(name); !ok || f.Kind != KindSet {
		return nil
	}
	return *o.slots[name].(**RecordSet)
}

// OidList returns the named oid list attribute, or nil if it is not one.
func (o *Object) OidList(name string) *dobj.OidList {
	if f, ok := o.class.Field(name); !ok || f.Kind != KindOidList {
		return nil
	}
	return *o.slots[name].(**dobj.OidList)
}
