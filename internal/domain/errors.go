package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrNoTermination      = errors.New("no termination in progress")
)

// ValidationError is returned for malformed input, before any mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CapacityExceededError is returned when a room cannot accept another
// assignment.
type CapacityExceededError struct {
	RoomID    string
	Capacity  int
	Occupancy int
	Status    RoomStatus
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("room %q cannot accept another assignment (status %s, %d/%d occupied)",
		e.RoomID, e.Status, e.Occupancy, e.Capacity)
}

// CapacityReductionError is returned when a room edit would shrink capacity
// below the current occupancy.
type CapacityReductionError struct {
	RoomID    string
	Requested int
	Occupancy int
}

func (e *CapacityReductionError) Error() string {
	return fmt.Sprintf("room %q capacity cannot be reduced to %d with %d occupants",
		e.RoomID, e.Requested, e.Occupancy)
}

// DuplicateAssignmentError is returned when an entity already holds an
// active assignment.
type DuplicateAssignmentError struct {
	EntityID string
}

func (e *DuplicateAssignmentError) Error() string {
	return fmt.Sprintf("entity %q already has an active assignment", e.EntityID)
}

// RoomOccupiedError is returned when deleting a room that still has
// occupants.
type RoomOccupiedError struct {
	RoomID    string
	Occupancy int
}

func (e *RoomOccupiedError) Error() string {
	return fmt.Sprintf("room %q still has %d occupants", e.RoomID, e.Occupancy)
}

// GateError is returned when the wizard may not advance past an incomplete
// required step. It is a user-correctable condition, not a system fault.
type GateError struct {
	Step   Step
	Reason string
}

func (e *GateError) Error() string {
	return fmt.Sprintf("cannot advance past %q: %s", e.Step, e.Reason)
}

// NavigationError is returned when a wizard event is not valid from the
// current step.
type NavigationError struct {
	Event   StepEvent
	Current Step
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("event %q is not valid from step %q", e.Event, e.Current)
}

// CommitError wraps a failure of the atomic termination commit. The store
// guarantees no partial state was applied.
type CommitError struct {
	AssignmentID string
	Err          error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("termination of assignment %q not completed, no changes made: %v", e.AssignmentID, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
