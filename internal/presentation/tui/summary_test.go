package tui

import (
	"bytes"
	"testing"

	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestSummary_Render(t *testing.T) {
	state := domain.NewState("task_SCTASK1", domain.Ticket{Number: "SCTASK1"})
	state.FlowName = "ADUserCreation"
	state.AppendLog(domain.StepRecord{Action: "parse_variables", Result: &domain.ActionResult{Status: domain.ActionSuccess, OutputMessage: "parsed\nusername"}})
	state.AppendLog(domain.StepRecord{Action: "create_ad_user", Error: true, Result: &domain.ActionResult{Status: domain.ActionError, ErrorMessage: "duplicate name"}})
	state.SetError("duplicate name", "IT Support")
	state.Status = domain.StatusTerminated
	state.Transitions = 5

	var buf bytes.Buffer
	NewSummary(termenv.Ascii).Render(&buf, state)
	out := buf.String()

	assert.Contains(t, out, "task_SCTASK1  ESCALATED  flow=ADUserCreation  transitions=5")
	assert.Contains(t, out, "error: duplicate name (reassigned to IT Support)")
	assert.Contains(t, out, "parsed username")
	assert.Contains(t, out, "✘ create_ad_user")
	assert.NotContains(t, out, "pending:")
}

func TestSummary_Running(t *testing.T) {
	state := domain.NewState("task_2", domain.Ticket{Number: "2"})

	var buf bytes.Buffer
	NewSummary(termenv.Ascii).Render(&buf, state)

	assert.Contains(t, buf.String(), "RUNNING  flow=-")
	assert.Contains(t, buf.String(), "pending: supervisor")
}
