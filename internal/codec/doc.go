// Package codec converts distributed object events and object snapshots to
// and from their wire form.
//
// Events travel as JSON envelopes discriminated by dobj.Kind. Attribute
// values, set entries and set keys are encoded with encoding/json and decoded
// through the target object's accessor table, so they come back with their
// declared Go types. Prior-state captured on the authoritative copy is never
// encoded: a decoded event is always pending and applies lazily.
//
// Message and invocation arguments have no declared types. They decode to the
// argument value model: string, int64, float64, bool, []any, map[string]any
// and nil.
//
// Canonical JSON (RFC 8785 with NFC-normalized strings) is used for object
// digests, which let replicas be compared for convergence.
package codec
