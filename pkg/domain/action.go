package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category groups actions that share an execution node.
type Category string

const (
	CategoryDirectory     Category = "ad_agent"   // directory-service actions
	CategoryCollaboration Category = "m365_agent" // collaboration-suite actions
)

// Categories lists every node category the engine knows about.
func Categories() []Category {
	return []Category{CategoryDirectory, CategoryCollaboration}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// ActionStatus is the outcome reported by the Action Runner.
type ActionStatus string

const (
	ActionSuccess ActionStatus = "Success"
	ActionError   ActionStatus = "Error"
)

// ActionResult is the normalized response of one action invocation.
// Field names follow the runner wire format.
type ActionResult struct {
	Status        ActionStatus `json:"Status"`
	OutputMessage string       `json:"OutputMessage"`
	ErrorMessage  string       `json:"ErrorMessage"`
}

// Failed reports whether the action must be treated as an error.
func (r ActionResult) Failed() bool {
	return r.Status != ActionSuccess
}

// FailedResult builds an Error result.
func FailedResult(format string, args ...any) ActionResult {
	return ActionResult{Status: ActionError, ErrorMessage: fmt.Sprintf(format, args...)}
}

// ParseActionResult normalizes raw runner output.
//
// Empty output counts as success. Output that is not a JSON object becomes an
// Error result carrying the raw text. Status values are matched
// case-insensitively; anything other than Success or Error is reported as an
// Error so an unexpected runner reply never advances the workflow.
func ParseActionResult(script string, raw []byte) ActionResult {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return ActionResult{
			Status:        ActionSuccess,
			OutputMessage: fmt.Sprintf("%s executed successfully with no output.", script),
		}
	}

	var wire struct {
		Status        string `json:"Status"`
		OutputMessage string `json:"OutputMessage"`
		ErrorMessage  string `json:"ErrorMessage"`
	}
	if err := json.Unmarshal([]byte(trimmed), &wire); err != nil {
		return FailedResult("Failed to parse script output: %s", trimmed)
	}

	res := ActionResult{OutputMessage: wire.OutputMessage, ErrorMessage: wire.ErrorMessage}
	switch {
	case strings.EqualFold(wire.Status, string(ActionSuccess)):
		res.Status = ActionSuccess
	case strings.EqualFold(wire.Status, string(ActionError)):
		res.Status = ActionError
	default:
		res.Status = ActionError
		if res.ErrorMessage == "" {
			res.ErrorMessage = fmt.Sprintf("unrecognized status %q in script output: %s", wire.Status, trimmed)
		}
	}
	return res
}

// ActionInvocation is everything the Action Runner receives for one call.
type ActionInvocation struct {
	InstanceID     string
	Action         string
	Script         string
	Variables      map[string]any
	Ticket         Ticket
	IdempotencyKey string
}
