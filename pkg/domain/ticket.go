package domain

import (
	"fmt"
	"strings"
)

// TicketState is the lifecycle marker written back to the ticketing system.
type TicketState string

const (
	TicketStateResolved TicketState = "resolved"
)

// Ticket describes the originating service ticket.
type Ticket struct {
	Number           string `json:"number"`
	SysID            string `json:"sys_id,omitempty"`
	ShortDescription string `json:"short_description"`
	Description      string `json:"description,omitempty"`
	AssignmentGroup  string `json:"assignment_group,omitempty"`
	State            string `json:"state,omitempty"`
	Caller           string `json:"caller,omitempty"`

	// Fields keeps every other attribute of the ticketing record.
	Fields map[string]any `json:"fields,omitempty"`
}

// ID returns the identifier used against the Ticket Store.
func (t Ticket) ID() string {
	if t.SysID != "" {
		return t.SysID
	}
	return t.Number
}

// Clone returns a deep copy of the ticket.
func (t Ticket) Clone() Ticket {
	out := t
	if t.Fields != nil {
		out.Fields = cloneMap(t.Fields)
	}
	return out
}

// TicketFromRecord maps a raw ticketing-system record onto a Ticket.
// Reference attributes ({"value": ..., "display_value": ...}) are flattened
// to their display value when present.
func TicketFromRecord(record map[string]any) (Ticket, error) {
	t := Ticket{Fields: make(map[string]any)}
	for k, v := range record {
		switch k {
		case "number":
			t.Number = flatten(v)
		case "sys_id":
			t.SysID = flatten(v)
		case "short_description":
			t.ShortDescription = flatten(v)
		case "description":
			t.Description = flatten(v)
		case "assignment_group":
			t.AssignmentGroup = flatten(v)
		case "state":
			t.State = flatten(v)
		case "caller_id", "caller", "requested_for":
			if t.Caller == "" {
				t.Caller = flatten(v)
			}
			t.Fields[k] = cloneValue(v)
		default:
			t.Fields[k] = cloneValue(v)
		}
	}
	if strings.TrimSpace(t.Number) == "" {
		return Ticket{}, fmt.Errorf("%w: ticket record has no number", ErrInvalidTicket)
	}
	if len(t.Fields) == 0 {
		t.Fields = nil
	}
	return t, nil
}

func flatten(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any:
		for _, key := range []string{"display_value", "value", "name"} {
			if s, ok := val[key].(string); ok && s != "" {
				return s
			}
		}
		return ""
	default:
		return fmt.Sprint(val)
	}
}
