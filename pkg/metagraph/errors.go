package metagraph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph construction and lookup.
var (
	// ErrInvalidKey indicates a nil or non-comparable node or edge key.
	ErrInvalidKey = errors.New("invalid key")

	// ErrDuplicateKey indicates two nodes or two edges share a key.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrDanglingReference indicates an edge endpoint that names no node.
	ErrDanglingReference = errors.New("dangling reference")

	// ErrKeyNotFound indicates a lookup by key found nothing.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidSpec indicates a raw specification with the wrong shape.
	ErrInvalidSpec = errors.New("invalid specification")
)

// Sentinel errors for dataflow evaluation.
var (
	// ErrUnresolvedInput indicates an input namespace absent from the instance.
	ErrUnresolvedInput = errors.New("unresolved input")

	// ErrComputationDefect indicates a calc function returned no value.
	ErrComputationDefect = errors.New("computation produced no value")

	// ErrInvalidCalc indicates a dataflow node whose value is not a calc function.
	ErrInvalidCalc = errors.New("invalid calc function")

	// ErrStackLimitExceeded indicates the dependency chain exceeded the configured depth.
	ErrStackLimitExceeded = errors.New("stack limit exceeded")
)

// ErrUnknownMember indicates a call to a member the kind does not define.
// It wraps ErrKeyNotFound.
var ErrUnknownMember = fmt.Errorf("unknown member: %w", ErrKeyNotFound)

// ErrCycleDetected indicates a graph that cannot be ordered, either in
// topological sort or while resolving dataflow dependencies.
var ErrCycleDetected = errors.New("cycle detected")

// KeyError attaches the offending key to a graph error.
type KeyError struct {
	// Kind is what the key names: "node", "edge", "kind" or "member".
	Kind string
	// Key is the offending key.
	Key any
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *KeyError) Error() string {
	return fmt.Sprintf("%s %v: %v", e.Kind, e.Key, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *KeyError) Unwrap() error {
	return e.Err
}

// CalcError wraps a failure while evaluating a dataflow node.
type CalcError struct {
	// ID is the dataflow node whose evaluation failed.
	ID any
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CalcError) Error() string {
	return fmt.Sprintf("calc %v: %v", e.ID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CalcError) Unwrap() error {
	return e.Err
}

// BehaviorError wraps a failure while invoking a compiled member.
type BehaviorError struct {
	// Kind is the pattern kind the member belongs to.
	Kind string
	// Member is the member name.
	Member string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *BehaviorError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Kind, e.Member, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *BehaviorError) Unwrap() error {
	return e.Err
}

// CycleError reports the nodes a topological sort could not place.
type CycleError struct {
	// GraphID identifies the graph that was sorted.
	GraphID string
	// Remaining holds the keys of unplaced nodes in declaration order.
	Remaining []any
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %d nodes could not be ordered %v", len(e.Remaining), e.Remaining)
}

// Unwrap returns ErrCycleDetected for errors.Is support.
func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}
