package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter  EventType = "node_enter"
	EventNodeLeave  EventType = "node_leave"
	EventAction     EventType = "action"
	EventCheckpoint EventType = "checkpoint"
	EventTerminal   EventType = "terminal"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"type"`
	InstanceID string    `json:"instance_id"`
	RunID      string    `json:"run_id"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	Node     string        `json:"node"`
	Next     string        `json:"next,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// ActionEvent is emitted after the Action Runner returned.
type ActionEvent struct {
	EventBase
	Flow     string        `json:"flow"`
	Action   string        `json:"action"`
	Result   ActionResult  `json:"result"`
	Duration time.Duration `json:"duration"`
}

// CheckpointEvent is emitted after a snapshot was persisted.
type CheckpointEvent struct {
	EventBase
	Node string     `json:"node"`
	Diff *StateDiff `json:"diff,omitempty"`
}

// TerminalEvent is emitted once an instance reaches END.
type TerminalEvent struct {
	EventBase
	Flow      string `json:"flow"`
	Escalated bool   `json:"escalated"`
	Steps     int    `json:"steps"`
}

// LifecycleHooks defines callbacks for engine observability.
// Every field is optional.
type LifecycleHooks struct {
	OnNodeEnter  func(context.Context, *NodeEvent)
	OnNodeLeave  func(context.Context, *NodeEvent)
	OnAction     func(context.Context, *ActionEvent)
	OnCheckpoint func(context.Context, *CheckpointEvent)
	OnTerminal   func(context.Context, *TerminalEvent)
}

// Merge chains two hook sets; h runs before other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter:  chain(h.OnNodeEnter, other.OnNodeEnter),
		OnNodeLeave:  chain(h.OnNodeLeave, other.OnNodeLeave),
		OnAction:     chain(h.OnAction, other.OnAction),
		OnCheckpoint: chain(h.OnCheckpoint, other.OnCheckpoint),
		OnTerminal:   chain(h.OnTerminal, other.OnTerminal),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
