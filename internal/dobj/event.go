package dobj

import (
	"fmt"
	"strings"

	"github.com/roach88/dobj/internal/transport"
)

// Kind identifies the concrete type of an Event. Kinds are stable and are
// used as discriminators on the wire.
type Kind string

const (
	KindAttributeChanged       Kind = "attribute_changed"
	KindAttributesChanged      Kind = "attributes_changed"
	KindElementUpdated         Kind = "element_updated"
	KindEntryAdded             Kind = "entry_added"
	KindEntryUpdated           Kind = "entry_updated"
	KindEntryRemoved           Kind = "entry_removed"
	KindObjectAdded            Kind = "object_added"
	KindObjectRemoved          Kind = "object_removed"
	KindMessage                Kind = "message"
	KindServerMessage          Kind = "server_message"
	KindObjectDestroyed        Kind = "object_destroyed"
	KindInvocationRequest      Kind = "invocation_request"
	KindInvocationResponse     Kind = "invocation_response"
	KindInvocationNotification Kind = "invocation_notification"
	KindReleaseLock            Kind = "release_lock"
	KindCompound               Kind = "compound"
)

// Event is a single mutation of, or notification about, a distributed
// object. The set of implementations is closed to this package.
type Event interface {
	Kind() Kind

	// TargetOid is the object the event applies to.
	TargetOid() int
	SetTargetOid(oid int)

	// SourceOid identifies the originating client, or 0 for server-generated
	// events. It is set by the transport layer.
	SourceOid() int
	SetSourceOid(oid int)

	Transport() transport.Transport
	SetTransport(t transport.Transport)

	// AlreadyApplied reports whether the change has been applied to the
	// authoritative copy and its prior state captured.
	AlreadyApplied() bool

	// ApplyToObject applies the change to target and reports whether
	// listeners should be notified. Calling it again after AlreadyApplied
	// becomes true does not change target.
	ApplyToObject(target *Object) (bool, error)

	// IsPrivate reports whether the event must not leave the server.
	IsPrivate() bool

	String() string

	header() *eventHeader
}

// EventOption adjusts an event built by one of the Object mutators.
type EventOption func(Event)

// WithTransport requests a delivery transport for the event.
func WithTransport(t transport.Transport) EventOption {
	return func(ev Event) {
		ev.SetTransport(t)
	}
}

// WithSourceOid marks the event as originating from the given client.
func WithSourceOid(oid int) EventOption {
	return func(ev Event) {
		ev.SetSourceOid(oid)
	}
}

type eventHeader struct {
	targetOid int
	sourceOid int
	transport transport.Transport
}

func newHeader(targetOid int) eventHeader {
	return eventHeader{targetOid: targetOid, transport: transport.Default}
}

func (h *eventHeader) TargetOid() int { return h.targetOid }
func (h *eventHeader) SetTargetOid(oid int) { h.targetOid = oid }
func (h *eventHeader) SourceOid() int { return h.sourceOid }
func (h *eventHeader) SetSourceOid(oid int) { h.sourceOid = oid }
func (h *eventHeader) Transport() transport.Transport { return h.transport }
func (h *eventHeader) SetTransport(t transport.Transport) { h.transport = t }
func (h *eventHeader) AlreadyApplied() bool { return false }
func (h *eventHeader) IsPrivate() bool { return false }
func (h *eventHeader) header() *eventHeader { return h }
func (h *eventHeader) ApplyToObject(*Object) (bool, error) { return true, nil }

func describe(h *eventHeader, code string, fields ...any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:targetOid=%d", code, h.targetOid)
	if h.sourceOid != 0 {
		fmt.Fprintf(&b, ", sourceOid=%d", h.sourceOid)
	}
	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(&b, ", %v=%v", fields[i], fields[i+1])
	}
	return b.String()
}

func applyOptions(ev Event, opts []EventOption) {
	for _, opt := range opts {
		opt(ev)
	}
}
