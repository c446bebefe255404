// Package transport describes the delivery characteristics requested for an event.
//
// A Transport is only a hint: the object core never interprets it beyond
// combining hints when several events are batched into one compound event.
// The network layer decides what to do with it.
package transport

import "fmt"

// Type enumerates the reliability/ordering combinations.
type Type uint8

const (
	// UnreliableUnordered may drop or reorder messages.
	UnreliableUnordered Type = iota
	// UnreliableOrdered may drop messages but never reorders them within a channel.
	UnreliableOrdered
	// ReliableUnordered delivers every message in any order.
	ReliableUnordered
	// ReliableOrdered delivers every message in order within a channel.
	ReliableOrdered
)

// IsReliable reports whether messages of this type are guaranteed to arrive.
func (t Type) IsReliable() bool {
	return t == ReliableUnordered || t == ReliableOrdered
}

// IsOrdered reports whether messages of this type arrive in send order.
func (t Type) IsOrdered() bool {
	return t == UnreliableOrdered || t == ReliableOrdered
}

// Combine returns the weakest type satisfying the guarantees of both t and other.
func (t Type) Combine(other Type) Type {
	return typeOf(t.IsReliable() || other.IsReliable(), t.IsOrdered() || other.IsOrdered())
}

func (t Type) String() string {
	switch t {
	case UnreliableUnordered:
		return "UNRELIABLE_UNORDERED"
	case UnreliableOrdered:
		return "UNRELIABLE_ORDERED"
	case ReliableUnordered:
		return "RELIABLE_UNORDERED"
	case ReliableOrdered:
		return "RELIABLE_ORDERED"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

func typeOf(reliable, ordered bool) Type {
	switch {
	case reliable && ordered:
		return ReliableOrdered
	case reliable:
		return ReliableUnordered
	case ordered:
		return UnreliableOrdered
	default:
		return UnreliableUnordered
	}
}

// Transport pairs a delivery type with a channel. Channels define independent
// streams for ordered delivery; unordered transports always use channel 0.
//
// Transport is a small comparable value; the zero value is UnreliableUnordered
// on channel 0, so callers wanting the usual behaviour should use Default.
type Transport struct {
	Type    Type `json:"type"`
	Channel int  `json:"channel,omitempty"`
}

// Default is reliable, ordered delivery on the default channel.
var Default = Transport{Type: ReliableOrdered}

// New returns a transport of the given type on the given channel. The channel
// is dropped for unordered types.
func New(t Type, channel int) Transport {
	if !t.IsOrdered() {
		channel = 0
	}
	return Transport{Type: t, Channel: channel}
}

// IsReliable reports whether the transport guarantees delivery.
func (t Transport) IsReliable() bool { return t.Type.IsReliable() }

// IsOrdered reports whether the transport guarantees ordering.
func (t Transport) IsOrdered() bool { return t.Type.IsOrdered() }

// Combine returns a transport that satisfies the requirements of both t and
// other. Differing channels fall back to the default channel.
func (t Transport) Combine(other Transport) Transport {
	channel := 0
	if t.Channel == other.Channel {
		channel = t.Channel
	}
	return New(t.Type.Combine(other.Type), channel)
}

func (t Transport) String() string {
	return fmt.Sprintf("[type=%s, channel=%d]", t.Type, t.Channel)
}
