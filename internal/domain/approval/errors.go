package approval

import (
	"errors"
	"fmt"
)

var (
	ErrFlowNotFound = errors.New("approval flow not found")

	// ErrNotPendingApprover covers "wrong person", "already decided", and
	// "level not yet reached": the actor has no actionable step on the flow.
	ErrNotPendingApprover = errors.New("actor is not a pending approver on this flow")

	// ErrRoleNotAllowed means the actor's role may not create flows.
	ErrRoleNotAllowed = errors.New("role is not allowed to create approval flows")

	// ErrFlowTerminal means the flow already reached approved or rejected and
	// permits no further step mutations.
	ErrFlowTerminal = errors.New("approval flow is already in a terminal state")

	// ErrVersionConflict is returned by stores when a conditional update finds
	// the flow modified since it was read. The service retries a bounded number
	// of times before surfacing it.
	ErrVersionConflict = errors.New("approval flow was modified concurrently")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return ValidationError{Field: field, Reason: reason}
}
