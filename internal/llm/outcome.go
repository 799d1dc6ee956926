package llm

// Outcome carries a collaborator result together with whether a default was substituted.
// A degraded outcome is still usable; Reason explains what failed.
type Outcome[T any] struct {
	Value    T
	Degraded bool
	Reason   string
}

// OK wraps a successful collaborator result
func OK[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Degraded wraps a substituted default
func Degraded[T any](v T, reason string) Outcome[T] {
	return Outcome[T]{Value: v, Degraded: true, Reason: reason}
}
