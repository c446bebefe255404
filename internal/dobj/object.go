package dobj

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// DObject is implemented by every distributed object. Concrete types embed
// Object and call Init with themselves.
type DObject interface {
	Base() *Object
}

// Object is the base of every distributed object. It holds identity,
// registries and transaction state; attributes live in the embedding type
// and are reached through its accessor table.
//
// A zero Object is usable as an object without attributes.
type Object struct {
	oid  int
	self any

	table *accessorTable

	mgr        Manager
	controller AccessController

	locks       []string
	subscribers []Subscriber
	deathWish   bool

	listeners []listenerRef
	notifying int
	pruned    bool

	tevent     *CompoundEvent
	tcount     int
	tcancelled bool

	locals []localAttr
}

// Init binds the object to the value embedding it, whose accessor table
// describes the attributes. It must be called before the object is
// registered with a manager.
func (o *Object) Init(self DObject) {
	o.self = self
	o.table = tableFor(self)
}

// Base returns o.
func (o *Object) Base() *Object {
	return o
}

// Oid returns the object id, or 0 if the object has never been registered.
func (o *Object) Oid() int {
	return o.oid
}

// SetOid assigns the object id. Only the manager calls this.
func (o *Object) SetOid(oid int) {
	o.oid = oid
}

// Manager returns the object's manager, or nil if it has none.
func (o *Object) Manager() Manager {
	return o.mgr
}

// SetManager attaches the object to a manager, or detaches it when mgr is
// nil. Only the manager calls this.
func (o *Object) SetManager(mgr Manager) {
	o.mgr = mgr
}

// IsActive reports whether the object is managed. Destroyed objects are
// inactive.
func (o *Object) IsActive() bool {
	return o.mgr != nil
}

// IsAuthoritative reports whether this copy is the source of truth.
func (o *Object) IsAuthoritative() bool {
	return o.mgr != nil && o.mgr.IsManager(o)
}

// ClassName returns the name of the object's class.
func (o *Object) ClassName() string {
	return o.accessors().className
}

// Which returns a short identifier for logging: the class name and oid.
func (o *Object) Which() string {
	return fmt.Sprintf("%s:%d", o.accessors().className, o.oid)
}

func (o *Object) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s oid=%d", o.accessors().className, o.oid)
	self := o.target()
	for _, acc := range o.accessors().accessors {
		fmt.Fprintf(&b, ", %s=%v", acc.Name, acc.Get(self))
	}
	b.WriteString("]")
	return b.String()
}

// target is the value the accessors operate on.
func (o *Object) target() any {
	if o.self == nil {
		return o
	}
	return o.self
}

// dobject is the value handed to access controllers and subscribers.
func (o *Object) dobject() DObject {
	if d, ok := o.self.(DObject); ok {
		return d
	}
	return o
}

func (o *Object) accessors() *accessorTable {
	if o.table == nil {
		o.table = tableFor(o.target())
	}
	return o.table
}

// accessor looks up name, reporting a structural error if it is unknown.
func (o *Object) accessor(name string) (Accessor, error) {
	acc, ok := o.accessors().lookup(name)
	if !ok {
		return Accessor{}, &StructuralError{
			Code:    ErrCodeUnknownAttribute,
			Message: fmt.Sprintf("no such field %s.%s", o.accessors().className, name),
			Oid:     o.oid,
			Field:   name,
		}
	}
	return acc, nil
}

func (o *Object) mustAccessor(name string) Accessor {
	acc, err := o.accessor(name)
	if err != nil {
		panic(err)
	}
	return acc
}

// Accessor returns the accessor for the named attribute.
func (o *Object) Accessor(name string) (Accessor, bool) {
	return o.accessors().lookup(name)
}

// AttributeNames returns the attribute names in sorted order.
func (o *Object) AttributeNames() []string {
	accs := o.accessors().accessors
	names := make([]string, len(accs))
	for i, acc := range accs {
		names[i] = acc.Name
	}
	return names
}

// Attribute returns the current value of the named attribute. It panics if
// the name is unknown.
func (o *Object) Attribute(name string) any {
	return o.mustAccessor(name).Get(o.target())
}

// SetAttribute stores value directly, without generating an event. It is
// meant for initializing fresh copies such as decoded snapshots; every other
// change must go through an event.
func (o *Object) SetAttribute(name string, value any) error {
	acc, err := o.accessor(name)
	if err != nil {
		return err
	}
	return withOid(acc.Set(o.target(), value), o.oid)
}

func (o *Object) entrySet(name string) (entrySet, error) {
	acc, err := o.accessor(name)
	if err != nil {
		return nil, err
	}
	set, ok := acc.Get(o.target()).(entrySet)
	if !ok {
		return nil, &StructuralError{
			Code:    ErrCodeFieldType,
			Message: "field is not a distributed set",
			Oid:     o.oid,
			Field:   name,
		}
	}
	return set, nil
}

func (o *Object) oidList(name string) (*OidList, error) {
	acc, err := o.accessor(name)
	if err != nil {
		return nil, err
	}
	list, ok := acc.Get(o.target()).(*OidList)
	if !ok {
		return nil, &StructuralError{
			Code:    ErrCodeFieldType,
			Message: "field is not an oid list",
			Oid:     o.oid,
			Field:   name,
		}
	}
	return list, nil
}

// SetAccessController installs the controller consulted for subscription
// and dispatch. A nil controller allows everything.
func (o *Object) SetAccessController(c AccessController) {
	o.controller = c
}

// AccessController returns the installed controller, if any.
func (o *Object) AccessController() AccessController {
	return o.controller
}

// CheckSubscribePermission reports whether sub may subscribe.
func (o *Object) CheckSubscribePermission(sub Subscriber) bool {
	return o.controller == nil || o.controller.AllowSubscribe(o.dobject(), sub)
}

// CheckDispatchPermission reports whether ev may be applied.
func (o *Object) CheckDispatchPermission(ev Event) bool {
	return o.controller == nil || o.controller.AllowDispatch(o.dobject(), ev)
}

// AcquireLock adds name to the object's locks and reports whether it was
// not already held. Locks are advisory.
func (o *Object) AcquireLock(name string) bool {
	if slices.Contains(o.locks, name) {
		return false
	}
	o.locks = append(o.locks, name)
	return true
}

// ReleaseLock posts an event that clears the lock once every event posted
// before it has been applied.
func (o *Object) ReleaseLock(name string) {
	o.PostEvent(NewReleaseLockEvent(o.oid, name))
}

// HoldsLock reports whether name is currently locked.
func (o *Object) HoldsLock(name string) bool {
	return slices.Contains(o.locks, name)
}

func (o *Object) clearLock(name string) {
	idx := slices.Index(o.locks, name)
	if idx < 0 {
		slog.Info("unable to clear non-existent lock",
			"dobj", o.Which(),
			"lock", name)
		return
	}
	o.locks = slices.Delete(o.locks, idx, idx+1)
}

// Destroy requests that the object be destroyed. The manager removes it
// once the destroy event is dispatched.
func (o *Object) Destroy() {
	if o.oid == 0 {
		slog.Warn("denying request to destroy an unregistered object", "dobj", o.Which())
		return
	}
	o.PostEvent(NewObjectDestroyedEvent(o.oid))
}

// PostEvent routes ev to the open transaction if there is one and to the
// manager otherwise. Events for unmanaged objects are dropped.
func (o *Object) PostEvent(ev Event) {
	switch {
	case o.tevent != nil:
		o.tevent.PostEvent(ev)
	case o.mgr != nil:
		o.mgr.PostEvent(ev)
	default:
		slog.Info("dropping event for unmanaged object",
			"dobj", o.Which(),
			"event", ev.String())
	}
}
