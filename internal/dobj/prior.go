package dobj

// Prior holds the state a field had before an event was applied. The zero
// value means the state has not been captured yet, which is distinct from a
// captured nil or zero value.
type Prior[T any] struct {
	value    T
	captured bool
}

// Captured returns a Prior holding v.
func Captured[T any](v T) Prior[T] {
	return Prior[T]{value: v, captured: true}
}

// Get returns the captured value and whether one was captured.
func (p Prior[T]) Get() (T, bool) {
	return p.value, p.captured
}

// IsCaptured reports whether a value has been captured.
func (p Prior[T]) IsCaptured() bool {
	return p.captured
}

// Value returns the captured value, or the zero value if none was captured.
func (p Prior[T]) Value() T {
	return p.value
}
