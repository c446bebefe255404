// Package dobj implements the distributed object model: replicated objects
// whose every mutation is a discrete, serializable event.
//
// ARCHITECTURE:
//
// Objects and events:
// An Object owns a set of named attributes, exposed through a per-type table
// of Accessors. Attributes change only through events. A mutator such as
// ChangeAttribute builds the matching event and hands it to the object's
// Manager, which delivers it to ApplyToObject on every copy of the object and
// then notifies listeners and proxy subscribers.
//
// Eager versus lazy application:
// On the authoritative copy a mutator applies its change immediately and
// records the prior state on the event. AlreadyApplied then reports true and
// the later, dispatcher-driven ApplyToObject is a no-op. Every other copy
// applies the event lazily when it is delivered. Either way the event is
// forwarded so that all copies observe the same stream.
//
// Event variants:
// The set of events is closed. Each concrete type encodes exactly one kind of
// mutation (see Kind). Listener dispatch is a single type switch over the
// variants in listener.go.
//
// Transactions:
// StartTransaction collects subsequent events in a CompoundEvent. The
// outermost CommitTransaction forwards them as one unit; a cancel at any
// nesting depth discards them all.
//
// Locks:
// AcquireLock is immediate; ReleaseLock posts a ReleaseLockEvent, so a lock is
// not cleared until every event posted before the release has been applied.
//
// CONCURRENCY:
//
// Nothing in this package locks. Each copy of an object is mutated by exactly
// one delivery goroutine. Iterating a DSet while it is modified panics with
// ErrConcurrentModification. The accessor table cache is the only shared
// state and is safe for concurrent use.
package dobj
