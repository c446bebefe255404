package codec

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/dobj/internal/dobj"
	"github.com/roach88/dobj/internal/transport"
)

// Envelope is the wire form of one event. Fields irrelevant to the event's
// kind are omitted.
type Envelope struct {
	Kind      dobj.Kind           `json:"kind"`
	Target    int                 `json:"target"`
	Source    int                 `json:"source,omitempty"`
	Transport transport.Transport `json:"transport"`

	Name   string            `json:"name,omitempty"`
	Names  []string          `json:"names,omitempty"`
	Index  int               `json:"index,omitempty"`
	Oid    int               `json:"oid,omitempty"`
	Value  json.RawMessage   `json:"value,omitempty"`
	Values []json.RawMessage `json:"values,omitempty"`
	Entry  json.RawMessage   `json:"entry,omitempty"`
	Key    json.RawMessage   `json:"key,omitempty"`

	// Code is the invocation service code, request id or receiver id.
	Code   int               `json:"code,omitempty"`
	Method int               `json:"method,omitempty"`
	Args   []json.RawMessage `json:"args,omitempty"`

	Events []Envelope `json:"events,omitempty"`
}

// Resolver finds the local copy of the object an event targets. It returns
// nil when the object is unknown, in which case values decode to the
// argument value model.
type Resolver func(oid int) *dobj.Object

// Encode returns the JSON wire form of ev.
func Encode(ev dobj.Event) ([]byte, error) {
	env, err := ToEnvelope(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// ToEnvelope converts ev to its envelope.
func ToEnvelope(ev dobj.Event) (Envelope, error) {
	env := Envelope{
		Kind:      ev.Kind(),
		Target:    ev.TargetOid(),
		Source:    ev.SourceOid(),
		Transport: ev.Transport(),
	}

	var err error
	switch e := ev.(type) {
	case *dobj.AttributeChangedEvent:
		env.Name = e.Name()
		env.Value, err = raw(e.Value())
	case *dobj.AttributesChangedEvent:
		env.Names = e.Names()
		env.Values, err = raws(e.Values())
	case *dobj.ElementUpdatedEvent:
		env.Name, env.Index = e.Name(), e.Index()
		env.Value, err = raw(e.Value())
	case *dobj.EntryAddedEvent:
		env.Name = e.Name()
		env.Entry, err = raw(e.Entry())
	case *dobj.EntryUpdatedEvent:
		env.Name = e.Name()
		env.Entry, err = raw(e.Entry())
	case *dobj.EntryRemovedEvent:
		env.Name = e.Name()
		env.Key, err = raw(e.Key())
	case *dobj.ObjectAddedEvent:
		env.Name, env.Oid = e.Name(), e.Oid()
	case *dobj.ObjectRemovedEvent:
		env.Name, env.Oid = e.Name(), e.Oid()
	case *dobj.ServerMessageEvent:
		env.Name = e.Name()
		env.Args, err = raws(e.Args())
	case *dobj.MessageEvent:
		env.Name = e.Name()
		env.Args, err = raws(e.Args())
	case *dobj.ObjectDestroyedEvent:
	case *dobj.ReleaseLockEvent:
		env.Name = e.Name()
	case *dobj.InvocationRequestEvent:
		env.Code, env.Method = e.InvCode(), e.MethodID()
		env.Args, err = raws(e.Args())
	case *dobj.InvocationResponseEvent:
		env.Code, env.Method = e.RequestID(), e.MethodID()
		env.Args, err = raws(e.Args())
	case *dobj.InvocationNotificationEvent:
		env.Code, env.Method = e.ReceiverID(), e.MethodID()
		env.Args, err = raws(e.Args())
	case *dobj.CompoundEvent:
		for i, member := range e.Events() {
			sub, merr := ToEnvelope(member)
			if merr != nil {
				return Envelope{}, fmt.Errorf("compound member %d: %w", i, merr)
			}
			env.Events = append(env.Events, sub)
		}
	default:
		return Envelope{}, fmt.Errorf("unsupported event type %T", ev)
	}
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", ev.Kind(), err)
	}
	return env, nil
}

// Decode parses the wire form of an event.
func Decode(data []byte, resolve Resolver) (dobj.Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return FromEnvelope(env, resolve)
}

// FromEnvelope reconstructs the event an envelope describes. The result is
// always pending: AlreadyApplied reports false.
func FromEnvelope(env Envelope, resolve Resolver) (dobj.Event, error) {
	ev, err := fromEnvelope(env, resolve)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Kind, err)
	}
	ev.SetSourceOid(env.Source)
	ev.SetTransport(env.Transport)
	return ev, nil
}

func fromEnvelope(env Envelope, resolve Resolver) (dobj.Event, error) {
	var target *dobj.Object
	if resolve != nil {
		target = resolve(env.Target)
	}
	d := typedDecoder{target: target, name: env.Name}

	switch env.Kind {
	case dobj.KindAttributeChanged:
		v, err := d.value(env.Value)
		if err != nil {
			return nil, err
		}
		return dobj.NewAttributeChangedEvent(env.Target, env.Name, v), nil

	case dobj.KindAttributesChanged:
		if len(env.Names) != len(env.Values) {
			return nil, fmt.Errorf("%d names but %d values", len(env.Names), len(env.Values))
		}
		values := make([]any, len(env.Values))
		for i, rv := range env.Values {
			v, err := typedDecoder{target: target, name: env.Names[i]}.value(rv)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		return dobj.NewAttributesChangedEvent(env.Target, env.Names, values), nil

	case dobj.KindElementUpdated:
		v, err := d.element(env.Value)
		if err != nil {
			return nil, err
		}
		return dobj.NewElementUpdatedEvent(env.Target, env.Name, env.Index, v), nil

	case dobj.KindEntryAdded:
		v, err := d.element(env.Entry)
		if err != nil {
			return nil, err
		}
		return dobj.NewEntryAddedEvent(env.Target, env.Name, v), nil

	case dobj.KindEntryUpdated:
		v, err := d.element(env.Entry)
		if err != nil {
			return nil, err
		}
		return dobj.NewEntryUpdatedEvent(env.Target, env.Name, v), nil

	case dobj.KindEntryRemoved:
		k, err := d.key(env.Key)
		if err != nil {
			return nil, err
		}
		return dobj.NewEntryRemovedEvent(env.Target, env.Name, k), nil

	case dobj.KindObjectAdded:
		return dobj.NewObjectAddedEvent(env.Target, env.Name, env.Oid), nil

	case dobj.KindObjectRemoved:
		return dobj.NewObjectRemovedEvent(env.Target, env.Name, env.Oid), nil

	case dobj.KindMessage, dobj.KindServerMessage:
		args, err := decodeArgs(env.Args)
		if err != nil {
			return nil, err
		}
		if env.Kind == dobj.KindServerMessage {
			return dobj.NewServerMessageEvent(env.Target, env.Name, args...), nil
		}
		return dobj.NewMessageEvent(env.Target, env.Name, args...), nil

	case dobj.KindObjectDestroyed:
		return dobj.NewObjectDestroyedEvent(env.Target), nil

	case dobj.KindReleaseLock:
		return dobj.NewReleaseLockEvent(env.Target, env.Name), nil

	case dobj.KindInvocationRequest, dobj.KindInvocationResponse, dobj.KindInvocationNotification:
		args, err := decodeArgs(env.Args)
		if err != nil {
			return nil, err
		}
		switch env.Kind {
		case dobj.KindInvocationRequest:
			return dobj.NewInvocationRequestEvent(env.Target, env.Code, env.Method, args...), nil
		case dobj.KindInvocationResponse:
			return dobj.NewInvocationResponseEvent(env.Target, env.Code, env.Method, args...), nil
		default:
			return dobj.NewInvocationNotificationEvent(env.Target, env.Code, env.Method, args...), nil
		}

	case dobj.KindCompound:
		members := make([]dobj.Event, len(env.Events))
		for i, sub := range env.Events {
			ev, err := FromEnvelope(sub, resolve)
			if err != nil {
				return nil, fmt.Errorf("member %d: %w", i, err)
			}
			members[i] = ev
		}
		return dobj.CompoundOf(env.Target, members...), nil

	default:
		return nil, fmt.Errorf("unknown event kind %q", env.Kind)
	}
}

// typedDecoder decodes values through the accessor of one attribute, falling
// back to the argument value model when the attribute is unknown.
type typedDecoder struct {
	target *dobj.Object
	name   string
}

func (d typedDecoder) accessor() (dobj.Accessor, bool) {
	if d.target == nil {
		return dobj.Accessor{}, false
	}
	return d.target.Accessor(d.name)
}

func (d typedDecoder) value(data json.RawMessage) (any, error) {
	if isNull(data) {
		return nil, nil
	}
	if acc, ok := d.accessor(); ok && acc.Decode != nil {
		return acc.Decode(data)
	}
	return DecodeValue(data)
}

func (d typedDecoder) element(data json.RawMessage) (any, error) {
	if isNull(data) {
		return nil, nil
	}
	if acc, ok := d.accessor(); ok && acc.DecodeElement != nil {
		return acc.DecodeElement(data)
	}
	return DecodeValue(data)
}

func (d typedDecoder) key(data json.RawMessage) (any, error) {
	if isNull(data) {
		return nil, nil
	}
	if acc, ok := d.accessor(); ok && acc.DecodeKey != nil {
		return acc.DecodeKey(data)
	}
	return DecodeValue(data)
}

func isNull(data json.RawMessage) bool {
	return len(data) == 0 || string(data) == "null"
}

func raw(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func raws(vs []any) ([]json.RawMessage, error) {
	if len(vs) == 0 {
		return nil, nil
	}
	out := make([]json.RawMessage, len(vs))
	for i, v := range vs {
		data, err := raw(v)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = data
	}
	return out, nil
}

func decodeArgs(args []json.RawMessage) ([]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]any, len(args))
	for i, a := range args {
		v, err := DecodeValue(a)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
