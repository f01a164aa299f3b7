package poll

import "time"

// Status is the tag of a State.
type Status string

const (
	StatusLoading   Status = "loading"
	StatusReady     Status = "ready"
	StatusEmpty     Status = "empty"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// State is what a view shows for one polled resource. Data is meaningful
// only when Status is StatusReady; Reason only when it is StatusFailed.
type State[T any] struct {
	Status    Status    `json:"status"`
	Data      T         `json:"data"`
	Reason    string    `json:"reason,omitempty"`
	Seq       uint64    `json:"seq"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Loading is the state before the first response of a handle arrives.
func Loading[T any](now time.Time) State[T] {
	return State[T]{Status: StatusLoading, UpdatedAt: now}
}

// Ready carries data produced by invocation seq.
func Ready[T any](data T, seq uint64, now time.Time) State[T] {
	return State[T]{Status: StatusReady, Data: data, Seq: seq, UpdatedAt: now}
}

// Empty is a valid answer with nothing to show.
func Empty[T any](seq uint64, now time.Time) State[T] {
	return State[T]{Status: StatusEmpty, Seq: seq, UpdatedAt: now}
}

// Failed records a displayable reason. The schedule keeps running.
func Failed[T any](reason string, seq uint64, now time.Time) State[T] {
	return State[T]{Status: StatusFailed, Reason: reason, Seq: seq, UpdatedAt: now}
}

// Cancelled is terminal; it is entered only through Stop.
func Cancelled[T any](prev State[T], now time.Time) State[T] {
	return State[T]{Status: StatusCancelled, Seq: prev.Seq, UpdatedAt: now}
}

// Settled reports whether at least one response has been applied.
func (s State[T]) Settled() bool {
	return s.Status == StatusReady || s.Status == StatusEmpty || s.Status == StatusFailed
}
