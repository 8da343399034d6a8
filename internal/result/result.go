// Package result makes the degrade-to-empty contracts of the polling sources
// explicit. A source never returns a bare error to the poll cycle; it returns a
// Result saying whether it produced a value, had nothing, or absorbed a failure.
package result

// Kind classifies a Result.
type Kind int

const (
	// KindOK means a value was produced.
	KindOK Kind = iota
	// KindEmpty means the upstream had nothing to return.
	KindEmpty
	// KindDegraded means a failure was absorbed; Err holds the cause.
	KindDegraded
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindEmpty:
		return "empty"
	case KindDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Result is the outcome of a call that degrades instead of failing.
type Result[T any] struct {
	value T
	kind  Kind
	err   error
}

// OK wraps a produced value.
func OK[T any](v T) Result[T] {
	return Result[T]{value: v, kind: KindOK}
}

// Empty reports that there was nothing to return.
func Empty[T any]() Result[T] {
	return Result[T]{kind: KindEmpty}
}

// Degraded reports an absorbed failure.
func Degraded[T any](err error) Result[T] {
	return Result[T]{kind: KindDegraded, err: err}
}

// Kind returns the classification.
func (r Result[T]) Kind() Kind { return r.kind }

// IsOK reports whether a value was produced.
func (r Result[T]) IsOK() bool { return r.kind == KindOK }

// Value returns the value and whether it is present.
func (r Result[T]) Value() (T, bool) { return r.value, r.kind == KindOK }

// OrZero returns the value, or the zero value of T unless the result is OK.
func (r Result[T]) OrZero() T {
	if r.kind != KindOK {
		var zero T
		return zero
	}
	return r.value
}

// Err returns the absorbed failure of a degraded result, nil otherwise.
func (r Result[T]) Err() error { return r.err }
