package testutil

import "github.com/roach88/dobj/internal/dobj"

// Recorder is a listener that keeps every event it is notified of.
type Recorder struct {
	Events []dobj.Event
}

// EventReceived implements dobj.EventListener.
func (r *Recorder) EventReceived(ev dobj.Event) {
	r.Events = append(r.Events, ev)
}

// Kinds returns the kinds of the recorded events in order.
func (r *Recorder) Kinds() []dobj.Kind {
	kinds := make([]dobj.Kind, len(r.Events))
	for i, ev := range r.Events {
		kinds[i] = ev.Kind()
	}
	return kinds
}

// Count returns how many recorded events have kind k.
func (r *Recorder) Count(k dobj.Kind) int {
	n := 0
	for _, ev := range r.Events {
		if ev.Kind() == k {
			n++
		}
	}
	return n
}

// Reset forgets the recorded events.
func (r *Recorder) Reset() {
	r.Events = nil
}
