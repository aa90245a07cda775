package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	// ErrEntityNotFound covers both a missing entity and an entity owned by
	// a different tenant; callers cannot distinguish the two.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrUnauthenticated means no actor identity could be resolved from the
	// presented credential.
	ErrUnauthenticated = errors.New("invalid or missing credential")

	// ErrStaleState signals that a transition lost a race: the entity's state
	// changed between read and write. The caller re-reads and re-validates.
	ErrStaleState = errors.New("entity state changed concurrently")
)

// ForbiddenError is returned when an actor's role does not permit the
// requested operation. Denials are surfaced, never retried.
type ForbiddenError struct {
	ActorID string
	Role    Role
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("actor %q with role %q is not permitted to perform this operation", e.ActorID, e.Role)
}

// CodeConflictError is returned when an internal code is already in use
// within the tenant.
type CodeConflictError struct {
	Code string
}

func (e *CodeConflictError) Error() string {
	return fmt.Sprintf("code %q is already in use", e.Code)
}

// UnknownEntityTypeError is returned when no lifecycle graph is declared for
// the requested entity type.
type UnknownEntityTypeError struct {
	Type EntityType
}

func (e *UnknownEntityTypeError) Error() string {
	return fmt.Sprintf("unknown entity type %q", e.Type)
}

// InvalidStateError is returned when a requested state is not a node of the
// entity type's graph.
type InvalidStateError struct {
	Type  EntityType
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("state %q is not declared for entity type %q", e.State, e.Type)
}

// IllegalTransitionError is returned when the requested state is declared but
// not reachable from the current state.
type IllegalTransitionError struct {
	Type EntityType
	From State
	To   State
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s is not allowed for entity type %q", e.From, e.To, e.Type)
}
