package harness

import (
	"encoding/json"

	"github.com/roach88/dobj/internal/dobj"
)

// TraceEvent is one journaled event as it appears in a trace. Oids are
// replaced by the scenario's object names so traces stay readable and do
// not depend on oid allocation.
type TraceEvent struct {
	Seq    int64     `json:"seq"`
	Object string    `json:"object"`
	Kind   dobj.Kind `json:"kind"`
	Batch  string    `json:"batch,omitempty"`
	Name   string    `json:"name,omitempty"`
	Index  int       `json:"index,omitempty"`

	// Value is the new value, entry, removed key or message arguments. Oid
	// list events carry the name of the referenced object.
	Value json.RawMessage `json:"value,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step ran and every assertion held.
	Pass bool `json:"pass"`

	// Trace holds the journaled events in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step failures and failed assertions.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State maps each object name to the attributes of its authoritative
	// copy at the end of the run.
	State map[string]map[string]json.RawMessage `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]map[string]json.RawMessage),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
