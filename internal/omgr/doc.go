// Package omgr implements a distributed object manager: the dispatcher that
// owns a set of objects, orders every change made to them, and delivers the
// results to listeners and subscribers.
//
// Single-Writer Event Loop:
// Events, subscription requests and runnable units share one FIFO queue and
// are processed one at a time by Run (or Drain, in tests and tools). Every
// object registered with a Manager must only be touched from that
// goroutine. PostEvent, PostRunnable and the subscription calls are safe
// from any goroutine.
//
// Event Processing Flow:
//  1. Events targeting a proxy are rewritten to the originating oid and
//     forwarded to the originating manager.
//  2. The target is resolved and the access controller consulted.
//  3. Bookkeeping runs for destroy and oid list events.
//  4. The event is applied; listeners are notified if it reports a change.
//  5. The event is journaled and handed to proxy subscribers.
//
// A failing event or unit is logged and processing continues.
//
// Compound events are admitted member by member. Denied members are dropped;
// the rest are dispatched in order and proxies receive one compound carrying
// the dispatched members.
//
// Replication:
// A Relay subscribes to an object on an authoritative manager, seeds a
// proxy copy registered with a replica manager, and forwards every event in
// wire form. Events the replica posts for its proxy are forwarded back to
// the authoritative manager.
package omgr
