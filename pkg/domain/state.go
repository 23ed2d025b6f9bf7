package domain

import (
	"fmt"
	"time"
)

// ExecutionStatus defines the lifecycle phase of a workflow instance.
type ExecutionStatus string

const (
	StatusActive     ExecutionStatus = "active"     // Nodes still pending
	StatusTerminated ExecutionStatus = "terminated" // END reached, snapshot is read-only
)

// StepRecord is one entry of the append-only execution log.
type StepRecord struct {
	Action      string        `json:"action"`
	Result      *ActionResult `json:"result,omitempty"`
	Error       bool          `json:"error,omitempty"`
	Description string        `json:"description,omitempty"`
}

// Equal reports whether two records carry the same content.
func (r StepRecord) Equal(other StepRecord) bool {
	if r.Action != other.Action || r.Error != other.Error || r.Description != other.Description {
		return false
	}
	if r.Result == nil || other.Result == nil {
		return r.Result == other.Result
	}
	return *r.Result == *other.Result
}

// State is the per-ticket record of an in-flight workflow.
//
// Everything the engine and the nodes reason about is typed. Only
// AdditionalVariables (and Ticket.Fields) hold decision-maker defined data.
type State struct {
	InstanceID string `json:"instance_id"`
	Ticket     Ticket `json:"ticket_payload"`

	FlowName            string         `json:"flow_name"`
	ActionsList         []string       `json:"actions_list"`
	CurrentAction       string         `json:"current_action"`
	ActionIndex         int            `json:"action_index"`
	AdditionalVariables map[string]any `json:"additional_variables"`
	ExecutionLog        []StepRecord   `json:"execution_log"`

	WorknoteContent string `json:"worknote_content"`

	ErrorOccurred     bool   `json:"error_occurred"`
	ErrorMessage      string `json:"error_message"`
	ReassignmentGroup string `json:"reassignment_group"`

	NextAction bool   `json:"next_action"`
	NextStep   string `json:"next_step"`

	// PendingNode is the node the engine runs next. Empty once terminated.
	PendingNode string          `json:"pending_node"`
	Status      ExecutionStatus `json:"status"`
	Transitions int             `json:"transitions"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewState creates a fresh instance for a ticket, positioned at the supervisor.
func NewState(instanceID string, ticket Ticket) *State {
	return &State{
		InstanceID:          instanceID,
		Ticket:              ticket,
		ActionsList:         []string{},
		ActionIndex:         -1,
		AdditionalVariables: make(map[string]any),
		ExecutionLog:        []StepRecord{},
		PendingNode:         NodeSupervisor,
		Status:              StatusActive,
	}
}

// InstanceIDFor derives the checkpoint key of a ticket.
func InstanceIDFor(ticket Ticket) string {
	return InstancePrefix + ticket.Number
}

// Terminated reports whether the instance reached END.
func (s *State) Terminated() bool {
	return s.Status == StatusTerminated
}

// SetError fills the error channel. The three fields are always set together.
func (s *State) SetError(message, group string) {
	s.ErrorOccurred = true
	s.ErrorMessage = message
	s.ReassignmentGroup = group
}

// MergeVariables shallow-merges vars into AdditionalVariables, last write wins.
func (s *State) MergeVariables(vars map[string]any) {
	if s.AdditionalVariables == nil {
		s.AdditionalVariables = make(map[string]any, len(vars))
	}
	for k, v := range vars {
		s.AdditionalVariables[k] = cloneValue(v)
	}
}

// AppendLog adds a record to the execution log.
func (s *State) AppendLog(record StepRecord) {
	s.ExecutionLog = append(s.ExecutionLog, record)
}

// IndexOf returns the position of action in ActionsList, or -1.
func (s *State) IndexOf(action string) int {
	if action == "" {
		return -1
	}
	for i, a := range s.ActionsList {
		if a == action {
			return i
		}
	}
	return -1
}

// Validate checks the structural invariants of a snapshot.
func (s *State) Validate() error {
	if s.InstanceID == "" {
		return fmt.Errorf("%w: empty instance id", ErrInvalidState)
	}
	if s.ActionIndex != -1 {
		if s.ActionIndex < 0 || s.ActionIndex >= len(s.ActionsList) {
			return fmt.Errorf("%w: action_index %d out of range for %d actions", ErrInvalidState, s.ActionIndex, len(s.ActionsList))
		}
		if s.ActionsList[s.ActionIndex] != s.CurrentAction {
			return fmt.Errorf("%w: actions_list[%d] is %q, current_action is %q",
				ErrInvalidState, s.ActionIndex, s.ActionsList[s.ActionIndex], s.CurrentAction)
		}
	}
	if s.ErrorOccurred && s.ReassignmentGroup == "" {
		return fmt.Errorf("%w: error_occurred without reassignment_group", ErrInvalidState)
	}
	return nil
}

// Extends reports whether s was produced from prev without rewriting history:
// the execution log of s starts with every entry of prev, and no variable of
// prev was removed.
func (s *State) Extends(prev *State) error {
	if len(s.ExecutionLog) < len(prev.ExecutionLog) {
		return fmt.Errorf("%w: execution log shrank from %d to %d entries", ErrInvalidState, len(prev.ExecutionLog), len(s.ExecutionLog))
	}
	for i, rec := range prev.ExecutionLog {
		if !rec.Equal(s.ExecutionLog[i]) {
			return fmt.Errorf("%w: execution log entry %d was rewritten", ErrInvalidState, i)
		}
	}
	for k := range prev.AdditionalVariables {
		if _, ok := s.AdditionalVariables[k]; !ok {
			return fmt.Errorf("%w: additional variable %q was dropped", ErrInvalidState, k)
		}
	}
	return nil
}

// Clone returns a deep copy. Nodes always work on a clone so the snapshot the
// engine holds stays untouched until it is replaced.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Ticket = s.Ticket.Clone()
	out.ActionsList = append([]string{}, s.ActionsList...)
	out.AdditionalVariables = cloneMap(s.AdditionalVariables)
	out.ExecutionLog = make([]StepRecord, len(s.ExecutionLog))
	for i, rec := range s.ExecutionLog {
		out.ExecutionLog[i] = rec
		if rec.Result != nil {
			res := *rec.Result
			out.ExecutionLog[i].Result = &res
		}
	}
	return &out
}

// Variables returns a deep copy of the additional variables.
func (s *State) Variables() map[string]any {
	return cloneMap(s.AdditionalVariables)
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return make(map[string]any)
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string{}, val...)
	default:
		return v
	}
}
