package dobj

import "log/slog"

// EntryAddedEvent inserts an entry into a DSet attribute.
type EntryAddedEvent struct {
	eventHeader
	name    string
	entry   any
	applied bool
	added   bool
}

// NewEntryAddedEvent returns an event adding entry to the set attribute name.
func NewEntryAddedEvent(targetOid int, name string, entry any) *EntryAddedEvent {
	return &EntryAddedEvent{eventHeader: newHeader(targetOid), name: name, entry: entry}
}

func (e *EntryAddedEvent) Kind() Kind { return KindEntryAdded }

// Name returns the set attribute.
func (e *EntryAddedEvent) Name() string { return e.name }

// Entry returns the entry being added.
func (e *EntryAddedEvent) Entry() any { return e.entry }

func (e *EntryAddedEvent) AlreadyApplied() bool { return e.applied }

func (e *EntryAddedEvent) ApplyToObject(target *Object) (bool, error) {
	if e.applied {
		return e.added, nil
	}
	set, err := target.entrySet(e.name)
	if err != nil {
		return false, err
	}
	added, err := set.addEntry(e.entry)
	if err != nil {
		return false, withField(err, target.oid, e.name)
	}
	e.applied, e.added = true, added
	return added, nil
}

func (e *EntryAddedEvent) String() string {
	return describe(&e.eventHeader, "ELADD", "name", e.name, "entry", e.entry)
}

// EntryUpdatedEvent replaces the entry sharing a key with the new entry.
type EntryUpdatedEvent struct {
	eventHeader
	name     string
	entry    any
	oldEntry Prior[any]
}

// NewEntryUpdatedEvent returns an event replacing the entry with entry's key
// in the set attribute name.
func NewEntryUpdatedEvent(targetOid int, name string, entry any) *EntryUpdatedEvent {
	return &EntryUpdatedEvent{eventHeader: newHeader(targetOid), name: name, entry: entry}
}

func (e *EntryUpdatedEvent) Kind() Kind { return KindEntryUpdated }

// Name returns the set attribute.
func (e *EntryUpdatedEvent) Name() string { return e.name }

// Entry returns the replacement entry.
func (e *EntryUpdatedEvent) Entry() any { return e.entry }

// OldEntry returns the entry that was replaced. It is nil until applied and
// stays nil if the set held no entry with the key.
func (e *EntryUpdatedEvent) OldEntry() any { return e.oldEntry.Value() }

func (e *EntryUpdatedEvent) AlreadyApplied() bool { return e.oldEntry.IsCaptured() }

func (e *EntryUpdatedEvent) ApplyToObject(target *Object) (bool, error) {
	if e.oldEntry.IsCaptured() {
		return e.oldEntry.Value() != nil, nil
	}
	set, err := target.entrySet(e.name)
	if err != nil {
		return false, err
	}
	old, found, err := set.updateEntry(e.entry)
	if err != nil {
		return false, withField(err, target.oid, e.name)
	}
	e.oldEntry = Captured(old)
	if !found {
		slog.Warn("set update had no old entry",
			"dobj", target.Which(),
			"field", e.name,
			"entry", e.entry)
		return false, nil
	}
	return true, nil
}

func (e *EntryUpdatedEvent) String() string {
	return describe(&e.eventHeader, "ELUPD", "name", e.name, "entry", e.entry)
}

// EntryRemovedEvent deletes the entry with a key from a DSet attribute.
type EntryRemovedEvent struct {
	eventHeader
	name     string
	key      any
	oldEntry Prior[any]
}

// NewEntryRemovedEvent returns an event removing the entry with key from the
// set attribute name.
func NewEntryRemovedEvent(targetOid int, name string, key any) *EntryRemovedEvent {
	return &EntryRemovedEvent{eventHeader: newHeader(targetOid), name: name, key: key}
}

func (e *EntryRemovedEvent) Kind() Kind { return KindEntryRemoved }

// Name returns the set attribute.
func (e *EntryRemovedEvent) Name() string { return e.name }

// Key returns the key of the entry being removed.
func (e *EntryRemovedEvent) Key() any { return e.key }

// OldEntry returns the entry that was removed. It is nil until applied and
// stays nil if the set held no entry with the key.
func (e *EntryRemovedEvent) OldEntry() any { return e.oldEntry.Value() }

func (e *EntryRemovedEvent) AlreadyApplied() bool { return e.oldEntry.IsCaptured() }

func (e *EntryRemovedEvent) ApplyToObject(target *Object) (bool, error) {
	if e.oldEntry.IsCaptured() {
		return e.oldEntry.Value() != nil, nil
	}
	set, err := target.entrySet(e.name)
	if err != nil {
		return false, err
	}
	old, found, err := set.removeEntry(e.key)
	if err != nil {
		return false, withField(err, target.oid, e.name)
	}
	e.oldEntry = Captured(old)
	if !found {
		slog.Warn("set removal had no matching entry",
			"dobj", target.Which(),
			"field", e.name,
			"key", e.key)
		return false, nil
	}
	return true, nil
}

func (e *EntryRemovedEvent) String() string {
	return describe(&e.eventHeader, "ELREM", "name", e.name, "key", e.key)
}

func withField(err error, oid int, field string) error {
	if se, ok := err.(*StructuralError); ok && se.Field == "" {
		se.Field = field
	}
	return withOid(err, oid)
}
