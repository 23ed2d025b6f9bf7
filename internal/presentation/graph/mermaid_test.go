package graph_test

import (
	"strings"
	"testing"

	"github.com/mahi1722/ticketflow/internal/presentation/graph"
	"github.com/mahi1722/ticketflow/internal/runtime"
	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/stretchr/testify/assert"
)

var (
	testNodes = []string{"supervisor", "ad_agent", "m365_agent", "END"}
	testEdges = []runtime.Edge{
		{From: "supervisor", To: "ad_agent"},
		{From: "supervisor", To: "m365_agent"},
		{From: "supervisor", To: "END"},
		{From: "ad_agent", To: "supervisor"},
		{From: "m365_agent", To: "supervisor"},
	}
)

func TestGenerateMermaid(t *testing.T) {
	out := graph.GenerateMermaid(testNodes, testEdges, nil)

	for _, want := range []string{
		"graph TD\n",
		`supervisor{{"supervisor"}}`,
		`END(("END"))`,
		`ad_agent[["ad_agent"]]`,
		`supervisor -- "next_step = m365_agent" --> m365_agent`,
		`supervisor -- "resolve / escalate" --> END`,
		"ad_agent -.-> supervisor",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "classDef")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	state := domain.NewState("task_1", domain.Ticket{Number: "1"})
	state.AppendLog(domain.StepRecord{Action: "parse_variables"})
	state.PendingNode = "supervisor"

	out := graph.GenerateMermaid(testNodes, testEdges, graph.OverlayFor(state, "ad_agent"))
	assert.Contains(t, out, "class supervisor visited;")
	assert.Contains(t, out, "class ad_agent visited;")
	assert.Contains(t, out, "class supervisor current;")
	assert.Equal(t, 1, strings.Count(out, "class supervisor visited;"))

	state.Status = domain.StatusTerminated
	state.PendingNode = ""
	out = graph.GenerateMermaid(testNodes, testEdges, graph.OverlayFor(state, "ad_agent"))
	assert.Contains(t, out, "class END current;")
}

func TestOverlayFor_NoFlowYet(t *testing.T) {
	state := domain.NewState("task_1", domain.Ticket{Number: "1"})
	o := graph.OverlayFor(state, "")
	assert.Equal(t, []string{"supervisor"}, o.VisitedNodes)
	assert.Equal(t, "supervisor", o.CurrentNode)
}
