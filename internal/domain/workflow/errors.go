package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a workflow instance does not exist
	ErrNotFound = errors.New("workflow instance not found")

	// ErrUnknownProcessType is returned when no graph is registered for a process type
	ErrUnknownProcessType = errors.New("unknown process type")

	// ErrConflict is returned when a transition was computed against a stale
	// instance; the caller must reload and re-decide
	ErrConflict = errors.New("workflow instance modified concurrently")
)

// AlreadyTerminalError is returned when an advance is attempted on an
// instance that has already reached a terminal stage.
type AlreadyTerminalError struct {
	InstanceID string
	Stage      Stage
	Status     Status
}

func (e *AlreadyTerminalError) Error() string {
	return fmt.Sprintf("instance %s is %s at stage %s, no further transitions accepted",
		e.InstanceID, e.Status, e.Stage)
}

// IllegalTransitionError is returned when the target stage is not reachable
// from the current stage in the process's transition graph.
type IllegalTransitionError struct {
	ProcessType ProcessType
	From        Stage
	To          Stage
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s for process %s", e.From, e.To, e.ProcessType)
}

// WrongStageError is returned by a stage action handler when the instance is
// not at the stage the handler drives. Actual lets the caller resynchronize.
type WrongStageError struct {
	Expected Stage
	Actual   Stage
}

func (e *WrongStageError) Error() string {
	return fmt.Sprintf("operation requires stage %s but instance is at %s", e.Expected, e.Actual)
}

// MissingFieldsError reports every absent required field, not just the first.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// InvalidValueError is returned for an unrecognized enumerated value.
type InvalidValueError struct {
	Field   string
	Value   string
	Allowed []string
}

func (e *InvalidValueError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("invalid value %q for field %s", e.Value, e.Field)
	}
	return fmt.Sprintf("invalid value %q for field %s (allowed: %s)",
		e.Value, e.Field, strings.Join(e.Allowed, ", "))
}

// InsufficientAuthorityError is returned when an actor's spending ceiling is
// below the value the approval covers.
type InsufficientAuthorityError struct {
	ActorID  string
	Role     string
	Required float64
	Ceiling  float64
}

func (e *InsufficientAuthorityError) Error() string {
	return fmt.Sprintf("actor %s (role %s) may approve up to %.2f but %.2f is required (deficit %.2f)",
		e.ActorID, e.Role, e.Ceiling, e.Required, e.Deficit())
}

// Deficit returns the amount by which the required value exceeds the ceiling.
func (e *InsufficientAuthorityError) Deficit() float64 {
	return e.Required - e.Ceiling
}
