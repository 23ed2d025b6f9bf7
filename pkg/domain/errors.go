package domain

import (
	"errors"
	"fmt"
)

// ErrInstanceNotFound is returned when an instance ID has no checkpoint.
var ErrInstanceNotFound = errors.New("instance not found")

// ErrInvalidState is returned when a snapshot breaks a structural invariant.
var ErrInvalidState = errors.New("invalid state")

// ErrInvalidTicket is returned when an inbound ticket cannot be identified.
var ErrInvalidTicket = errors.New("invalid ticket")

// DecisionFormatError reports a Decision Maker response that could not be
// turned into a structured decision.
type DecisionFormatError struct {
	Kind   DecisionKind
	Reason string
	Raw    string
	Err    error
}

func (e *DecisionFormatError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecisionFormatError) Unwrap() error { return e.Err }

// UnknownActionError is returned when an action name is not in the registry.
type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action: %s", e.Action)
}

// WorkflowLimitExceededError is returned when a run exceeds the configured
// number of node transitions.
type WorkflowLimitExceededError struct {
	InstanceID string
	Limit      int
}

func (e *WorkflowLimitExceededError) Error() string {
	return fmt.Sprintf("workflow limit exceeded: instance %s did not terminate within %d transitions", e.InstanceID, e.Limit)
}

// CheckpointError wraps a Checkpoint Store failure. It is fatal for the run.
type CheckpointError struct {
	InstanceID string
	Op         string
	Err        error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s for %s: %v", e.Op, e.InstanceID, e.Err)
}

func (e *CheckpointError) Unwrap() error { return e.Err }
