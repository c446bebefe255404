// Package harness runs replication scenarios against real object managers.
//
// A scenario registers objects of CUE-declared classes with an authoritative
// manager, mirrors each of them onto a number of replica managers through
// relays, applies a list of mutations to either copy and checks the
// outcome. Every dispatched event is journaled to an in-memory SQLite
// journal; the journal is the scenario's trace.
//
// # Scenario Format
//
//	name: room_basics
//	description: "What this scenario validates"
//	classes: ../classes.cue
//	replicas: 1
//	objects:
//	  - name: hall
//	    class: Room
//	    init: { name: hall, seats: [0, 0, 0, 0] }
//	steps:
//	  - { object: hall, op: change, name: score, value: 3 }
//	  - { object: hall, via: 1, op: update, name: seats, index: 2, value: 9 }
//	  - object: hall
//	    op: transaction
//	    steps:
//	      - { op: change, name: name, value: main hall }
//	      - { op: remove, name: occupants, key: p1 }
//	assertions:
//	  - type: converged
//	  - { type: attribute, object: hall, replica: 1, name: score, value: 3 }
//
// Steps with via: n act on the proxy held by replica n; its changes are
// forwarded to the authoritative manager like any client change.
//
// # Assertion Types
//
//   - converged: every proxy has the same digest as its authoritative copy
//   - attribute: a scalar or array attribute has the given value
//   - contains: a set holds a key or an oid list holds an object
//   - destroyed: the object is no longer registered
//   - event_count: the journal holds a number of events of a kind
//   - notified: listeners of one copy heard a number of events
//   - replay_matches: replaying the journal rebuilds the object
//
// # Deterministic Testing
//
// Managers are drained on the calling goroutine after each step and batch
// ids are sequential, so a scenario always produces the same trace. Traces
// name objects instead of showing oids and are compared against golden
// files in canonical JSON.
package harness
