package domain

import (
	"reflect"
	"slices"
)

// StateDiff represents the changes one node made to an instance.
// It is attached to checkpoint events and logged at debug level.
type StateDiff struct {
	// InstanceID is always present to identify the target.
	InstanceID string `json:"instance_id"`

	PendingNode   *string          `json:"pending_node,omitempty"`
	Status        *ExecutionStatus `json:"status,omitempty"`
	FlowName      *string          `json:"flow_name,omitempty"`
	CurrentAction *string          `json:"current_action,omitempty"`
	ActionsList   []string         `json:"actions_list,omitempty"`
	ErrorOccurred *bool            `json:"error_occurred,omitempty"`

	// Variables contains only changed or added keys.
	Variables map[string]any `json:"variables,omitempty"`

	// Appended holds the execution log entries added by the step.
	Appended []StepRecord `json:"appended,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState.
// It returns nil when nothing changed.
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}
	if oldState == nil {
		oldState = &State{}
	}

	diff := &StateDiff{InstanceID: newState.InstanceID}

	if oldState.PendingNode != newState.PendingNode {
		diff.PendingNode = &newState.PendingNode
	}
	if oldState.Status != newState.Status {
		diff.Status = &newState.Status
	}
	if oldState.FlowName != newState.FlowName {
		diff.FlowName = &newState.FlowName
	}
	if oldState.CurrentAction != newState.CurrentAction {
		diff.CurrentAction = &newState.CurrentAction
	}
	if !slices.Equal(oldState.ActionsList, newState.ActionsList) {
		diff.ActionsList = newState.ActionsList
	}
	if oldState.ErrorOccurred != newState.ErrorOccurred {
		diff.ErrorOccurred = &newState.ErrorOccurred
	}

	diff.Variables = diffVariables(oldState.AdditionalVariables, newState.AdditionalVariables)

	if len(newState.ExecutionLog) > len(oldState.ExecutionLog) {
		diff.Appended = newState.ExecutionLog[len(oldState.ExecutionLog):]
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffVariables(old, new map[string]any) map[string]any {
	delta := make(map[string]any)
	for k, newVal := range new {
		oldVal, exists := old[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}
	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.PendingNode == nil &&
		d.Status == nil &&
		d.FlowName == nil &&
		d.CurrentAction == nil &&
		d.ActionsList == nil &&
		d.ErrorOccurred == nil &&
		len(d.Variables) == 0 &&
		len(d.Appended) == 0
}
