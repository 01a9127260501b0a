// Package outcome provides an explicit success/failure result type used at
// service boundaries in place of nil returns for expected failure modes.
//
// An Outcome carries exactly one Error on failure, never an aggregate. The
// constructors are the only way to build one, so a success paired with an
// error (or a failure without one) cannot be expressed. Reading the payload
// of a failed outcome is a programming-contract violation and panics; it is
// deliberately not part of the domain error taxonomy.
package outcome

import "fmt"

// Error identifies a failure reason as an immutable (code, description)
// pair. The zero value None denotes absence of failure. Errors compare by
// value.
type Error struct {
	code        string
	description string
}

// None is the distinguished Error denoting "no failure".
var None = Error{}

// NewError builds an Error from a non-empty code and a description.
// An empty code would be indistinguishable from None, so it panics.
func NewError(code, description string) Error {
	if code == "" {
		panic("outcome: error code must not be empty")
	}

	return Error{code: code, description: description}
}

// Code returns the machine-readable failure code, e.g. "User.InvalidCredentials".
func (e Error) Code() string {
	return e.code
}

// Description returns the human-readable failure description.
func (e Error) Description() string {
	return e.description
}

// IsNone reports whether the error denotes absence of failure.
func (e Error) IsNone() bool {
	return e == None
}

func (e Error) String() string {
	if e.IsNone() {
		return "<none>"
	}

	return e.code + ": " + e.description
}

// Outcome represents the result of an operation that has no payload.
// The zero value is a valid success.
type Outcome struct {
	failure Error
	failed  bool
}

// Success returns a successful Outcome.
func Success() Outcome {
	return Outcome{}
}

// Failure returns a failed Outcome carrying the given error.
// Passing None is a programming error and panics.
func Failure(failure Error) Outcome {
	if failure.IsNone() {
		panic("outcome: Failure requires a non-None error")
	}

	return Outcome{failure: failure, failed: true}
}

// IsSuccess reports whether the operation succeeded.
func (o Outcome) IsSuccess() bool {
	return !o.failed
}

// IsFailure reports whether the operation failed.
func (o Outcome) IsFailure() bool {
	return o.failed
}

// Err returns the failure Error, or None when the outcome is a success.
func (o Outcome) Err() Error {
	return o.failure
}

// Of represents the result of an operation that yields a payload on
// success. It is a tagged union with exactly two states, Ok(value) and
// Err(error); the payload is only reachable in the Ok state.
type Of[T any] struct {
	value   T
	failure Error
	failed  bool
}

// Ok returns a successful outcome wrapping the given payload.
func Ok[T any](value T) Of[T] {
	return Of[T]{value: value}
}

// Err returns a failed outcome carrying the given error.
// Passing None is a programming error and panics.
func Err[T any](failure Error) Of[T] {
	if failure.IsNone() {
		panic("outcome: Err requires a non-None error")
	}

	return Of[T]{failure: failure, failed: true}
}

// IsSuccess reports whether the operation succeeded.
func (o Of[T]) IsSuccess() bool {
	return !o.failed
}

// IsFailure reports whether the operation failed.
func (o Of[T]) IsFailure() bool {
	return o.failed
}

// Err returns the failure Error, or None when the outcome is a success.
func (o Of[T]) Err() Error {
	return o.failure
}

// Value returns the payload of a successful outcome. Calling Value on a
// failed outcome is an illegal access and panics; use Get when the state is
// not already known.
func (o Of[T]) Value() T {
	if o.failed {
		panic(fmt.Sprintf("outcome: value read on failed outcome (%s)", o.failure.code))
	}

	return o.value
}

// Get returns the payload and whether the outcome is a success.
func (o Of[T]) Get() (T, bool) {
	return o.value, !o.failed
}

// Plain strips the payload, returning the equivalent Outcome.
func (o Of[T]) Plain() Outcome {
	return Outcome{failure: o.failure, failed: o.failed}
}
