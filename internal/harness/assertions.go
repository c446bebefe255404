package harness

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/dobj/internal/codec"
	"github.com/roach88/dobj/internal/dobj"
	"github.com/roach88/dobj/internal/schema"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s %s\n", event.Seq, event.Object, event.Kind, event.Name, event.Value)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against the harness state and
// returns one message per failed assertion.
func EvaluateAssertions(h *Harness, assertions []Assertion) []string {
	var errors []string
	for i, a := range assertions {
		if err := h.evaluate(a); err != nil {
			errors = append(errors, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errors
}

func (h *Harness) evaluate(a Assertion) error {
	switch a.Type {
	case AssertConverged:
		return h.assertConverged()
	case AssertAttribute:
		return h.assertAttribute(a)
	case AssertContains:
		return h.assertContains(a)
	case AssertDestroyed:
		return h.assertDestroyed(a)
	case AssertEventCount:
		return h.assertEventCount(a)
	case AssertNotified:
		return h.assertNotified(a)
	case AssertReplay:
		return h.assertReplay(a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertConverged compares every live proxy with its authoritative copy and
// checks that destroyed objects left no proxies behind.
func (h *Harness) assertConverged() error {
	for name, e := range h.objects {
		live := h.origin.Object(e.oid) != nil
		want, err := codec.ObjectDigest(e.obj)
		if err != nil {
			return err
		}

		for i, relay := range e.relays {
			if e.closed[i] {
				continue
			}
			proxy := relay.Proxy()
			registered := h.replicas[i].Object(proxy.Base().Oid()) != nil

			if !live {
				if registered {
					return &AssertionError{
						Type:     AssertConverged,
						Expected: fmt.Sprintf("no proxy of destroyed %s on replica %d", name, i+1),
						Actual:   "proxy still registered",
					}
				}
				continue
			}

			got, err := codec.ObjectDigest(proxy)
			if err != nil {
				return err
			}
			if got != want {
				return &AssertionError{
					Type:     AssertConverged,
					Expected: fmt.Sprintf("%s on replica %d has digest %s", name, i+1, want),
					Actual:   got,
					Trace:    h.result.Trace,
				}
			}
		}
	}
	return nil
}

func (h *Harness) assertAttribute(a Assertion) error {
	e := h.objects[a.Object]
	obj, err := h.copyOf(e, a.Replica)
	if err != nil {
		return err
	}

	want, err := e.class.Coerce(a.Name, a.Value)
	if err != nil {
		return err
	}
	got := obj.Get(a.Name)
	if !reflect.DeepEqual(want, got) {
		return &AssertionError{
			Type:     AssertAttribute,
			Expected: fmt.Sprintf("%s.%s = %v", a.Object, a.Name, want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

func (h *Harness) assertContains(a Assertion) error {
	e := h.objects[a.Object]
	obj, err := h.copyOf(e, a.Replica)
	if err != nil {
		return err
	}

	f, ok := e.class.Field(a.Name)
	if !ok {
		return fmt.Errorf("%s has no field %q", e.class.Name, a.Name)
	}

	var found bool
	var what string
	switch f.Kind {
	case schema.KindSet:
		found = obj.Set(a.Name).ContainsKey(a.Key)
		what = fmt.Sprintf("key %q", a.Key)
	case schema.KindOidList:
		oid := a.Oid
		if a.Target != "" {
			oid = h.objects[a.Target].oid
		}
		found = obj.OidList(a.Name).Contains(oid)
		what = h.objectName(oid)
	default:
		return fmt.Errorf("%s.%s is neither a set nor an oid list", e.class.Name, a.Name)
	}

	if found == a.Absent {
		expected, actual := "contains", "absent"
		if a.Absent {
			expected, actual = actual, expected
		}
		return &AssertionError{
			Type:     AssertContains,
			Expected: fmt.Sprintf("%s.%s %s %s", a.Object, a.Name, expected, what),
			Actual:   actual,
		}
	}
	return nil
}

func (h *Harness) assertDestroyed(a Assertion) error {
	e := h.objects[a.Object]
	if h.origin.Object(e.oid) != nil {
		return &AssertionError{
			Type:     AssertDestroyed,
			Expected: fmt.Sprintf("%s destroyed", a.Object),
			Actual:   "still registered",
		}
	}
	return nil
}

func (h *Harness) assertEventCount(a Assertion) error {
	count := 0
	for _, event := range h.result.Trace {
		if string(event.Kind) == a.Kind && (a.Object == "" || event.Object == a.Object) {
			count++
		}
	}
	if count != a.Count {
		scope := "journal"
		if a.Object != "" {
			scope = a.Object
		}
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s events in %s", a.Count, a.Kind, scope),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    h.result.Trace,
		}
	}
	return nil
}

func (h *Harness) assertNotified(a Assertion) error {
	rec := h.objects[a.Object].heard[a.Replica]
	count := len(rec.Events)
	if a.Kind != "" {
		count = rec.Count(dobj.Kind(a.Kind))
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertNotified,
			Expected: fmt.Sprintf("%d %s notifications on %s copy %d", a.Count, a.Kind, a.Object, a.Replica),
			Actual:   fmt.Sprintf("%d %v", count, rec.Kinds()),
		}
	}
	return nil
}

// assertReplay rebuilds the object from the journal and compares it with
// the authoritative copy.
func (h *Harness) assertReplay(a Assertion) error {
	e := h.objects[a.Object]
	fresh := e.class.NewObject()
	res, err := h.journal.Replay(h.ctx, e.oid, fresh)
	if err != nil {
		return err
	}
	if res.Failures > 0 {
		return fmt.Errorf("replay of %s: %d events failed", a.Object, res.Failures)
	}

	want, err := codec.ObjectDigest(e.obj)
	if err != nil {
		return err
	}
	got, err := codec.ObjectDigest(fresh)
	if err != nil {
		return err
	}
	if got != want {
		return &AssertionError{
			Type:     AssertReplay,
			Expected: fmt.Sprintf("replayed %s has digest %s", a.Object, want),
			Actual:   got,
			Trace:    h.result.Trace,
		}
	}
	return nil
}
