package dobj

import (
	"fmt"
	"strings"

	"github.com/roach88/dobj/internal/transport"
)

// CompoundEvent collects events posted during a transaction and forwards
// them to the manager as a single unit.
//
// Member events keep their own target and source oids; setting either on the
// compound propagates to every member.
type CompoundEvent struct {
	eventHeader
	events []Event
	target *Object
	mgr    Manager
}

// NewCompoundEvent starts collecting events for target. It panics if mgr is nil.
func NewCompoundEvent(target *Object, mgr Manager) *CompoundEvent {
	if mgr == nil {
		panic(&StructuralError{
			Code:    ErrCodeNoManager,
			Message: "cannot start a transaction on an object with no manager",
			Oid:     target.oid,
		})
	}
	return &CompoundEvent{eventHeader: newHeader(target.oid), target: target, mgr: mgr}
}

// CompoundOf returns a compound holding events, as reconstructed by a
// decoder. It cannot be committed.
func CompoundOf(targetOid int, events ...Event) *CompoundEvent {
	return &CompoundEvent{eventHeader: newHeader(targetOid), events: events}
}

func (e *CompoundEvent) Kind() Kind { return KindCompound }

// PostEvent appends ev to the transaction.
func (e *CompoundEvent) PostEvent(ev Event) {
	e.events = append(e.events, ev)
}

// Events returns the collected events in posting order.
func (e *CompoundEvent) Events() []Event {
	return e.events
}

// Commit ends the transaction and forwards the collected events. Nothing is
// forwarded for an empty transaction, and a single event is forwarded on its
// own.
func (e *CompoundEvent) Commit() {
	e.clearTarget()
	switch len(e.events) {
	case 0:
	case 1:
		e.mgr.PostEvent(e.events[0])
	default:
		t := e.events[0].Transport()
		for _, ev := range e.events[1:] {
			t = t.Combine(ev.Transport())
		}
		e.transport = t
		e.mgr.PostEvent(e)
	}
}

// Cancel ends the transaction and discards the collected events.
func (e *CompoundEvent) Cancel() {
	e.clearTarget()
	e.events = nil
}

func (e *CompoundEvent) clearTarget() {
	if e.target != nil {
		e.target.clearTransaction()
		e.target = nil
	}
}

func (e *CompoundEvent) SetTargetOid(oid int) {
	e.targetOid = oid
	for _, ev := range e.events {
		ev.SetTargetOid(oid)
	}
}

func (e *CompoundEvent) SetSourceOid(oid int) {
	e.sourceOid = oid
	for _, ev := range e.events {
		ev.SetSourceOid(oid)
	}
}

func (e *CompoundEvent) SetTransport(t transport.Transport) {
	e.transport = t
	for _, ev := range e.events {
		ev.SetTransport(t)
	}
}

// ApplyToObject does nothing; the member events carry the changes.
func (e *CompoundEvent) ApplyToObject(*Object) (bool, error) {
	return false, nil
}

func (e *CompoundEvent) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "COMPOUND:targetOid=%d", e.targetOid)
	for i, ev := range e.events {
		fmt.Fprintf(&b, "\n  %d: %s", i, ev)
	}
	return b.String()
}
