package testutil

import (
	"fmt"
	"sync"
)

// SequentialBatchIDs generates numbered batch ids: "batch-1", "batch-2", ...
//
// Unlike omgr.FixedGenerator it never runs out, so scenarios of any length
// produce byte-identical journals.
//
// Thread-safety: Generate is safe for concurrent use.
type SequentialBatchIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialBatchIDs creates a generator numbering ids after prefix. An
// empty prefix defaults to "batch".
func NewSequentialBatchIDs(prefix string) *SequentialBatchIDs {
	if prefix == "" {
		prefix = "batch"
	}
	return &SequentialBatchIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialBatchIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
