package dobj

// ObjectAddedEvent appends an oid to an OidList attribute.
type ObjectAddedEvent struct {
	eventHeader
	name    string
	oid     int
	applied bool
}

// NewObjectAddedEvent returns an event adding oid to the list attribute name.
func NewObjectAddedEvent(targetOid int, name string, oid int) *ObjectAddedEvent {
	return &ObjectAddedEvent{eventHeader: newHeader(targetOid), name: name, oid: oid}
}

func (e *ObjectAddedEvent) Kind() Kind { return KindObjectAdded }

// Name returns the list attribute.
func (e *ObjectAddedEvent) Name() string { return e.name }

// Oid returns the id being added.
func (e *ObjectAddedEvent) Oid() int { return e.oid }

func (e *ObjectAddedEvent) AlreadyApplied() bool { return e.applied }

func (e *ObjectAddedEvent) ApplyToObject(target *Object) (bool, error) {
	if !e.applied {
		list, err := target.oidList(e.name)
		if err != nil {
			return false, err
		}
		list.Add(e.oid)
		e.applied = true
	}
	return true, nil
}

func (e *ObjectAddedEvent) String() string {
	return describe(&e.eventHeader, "OBJADD", "name", e.name, "oid", e.oid)
}

// ObjectRemovedEvent removes an oid from an OidList attribute.
type ObjectRemovedEvent struct {
	eventHeader
	name    string
	oid     int
	applied bool
}

// NewObjectRemovedEvent returns an event removing oid from the list
// attribute name.
func NewObjectRemovedEvent(targetOid int, name string, oid int) *ObjectRemovedEvent {
	return &ObjectRemovedEvent{eventHeader: newHeader(targetOid), name: name, oid: oid}
}

func (e *ObjectRemovedEvent) Kind() Kind { return KindObjectRemoved }

// Name returns the list attribute.
func (e *ObjectRemovedEvent) Name() string { return e.name }

// Oid returns the id being removed.
func (e *ObjectRemovedEvent) Oid() int { return e.oid }

func (e *ObjectRemovedEvent) AlreadyApplied() bool { return e.applied }

func (e *ObjectRemovedEvent) ApplyToObject(target *Object) (bool, error) {
	if !e.applied {
		list, err := target.oidList(e.name)
		if err != nil {
			return false, err
		}
		list.Remove(e.oid)
		e.applied = true
	}
	return true, nil
}

func (e *ObjectRemovedEvent) String() string {
	return describe(&e.eventHeader, "OBJREM", "name", e.name, "oid", e.oid)
}
