package domain

// OutcomeKind distinguishes full success, degraded success and failure.
type OutcomeKind int

const (
	OutcomeOk OutcomeKind = iota
	OutcomeDegraded
	OutcomeErr
)

// String returns the lowercase name used in logs and metric labels.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOk:
		return "ok"
	case OutcomeDegraded:
		return "degraded"
	default:
		return "error"
	}
}

// Outcome carries a value together with how it was obtained. A degraded
// outcome still holds a usable value produced by a fallback path; Reason says why.
type Outcome[T any] struct {
	Value  T
	Kind   OutcomeKind
	Reason string
}

// Ok wraps a value produced on the normal path.
func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v, Kind: OutcomeOk}
}

// DegradedOk wraps a fallback value with the reason the normal path was abandoned.
func DegradedOk[T any](v T, reason string) Outcome[T] {
	return Outcome[T]{Value: v, Kind: OutcomeDegraded, Reason: reason}
}

// Err reports a failure with no usable value.
func Err[T any](reason string) Outcome[T] {
	return Outcome[T]{Kind: OutcomeErr, Reason: reason}
}

// IsOk reports whether the outcome carries a value (normal or degraded).
func (o Outcome[T]) IsOk() bool {
	return o.Kind != OutcomeErr
}
