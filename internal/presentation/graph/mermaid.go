package graph

import (
	"fmt"
	"strings"

	"github.com/mahi1722/ticketflow/internal/runtime"
	"github.com/mahi1722/ticketflow/pkg/domain"
)

// Overlay contains instance data to visualize on the graph.
type Overlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFor derives the overlay of a snapshot. category is the node that
// runs the snapshot's flow, empty when no flow was selected.
func OverlayFor(state *domain.State, category string) *Overlay {
	o := &Overlay{VisitedNodes: []string{domain.NodeSupervisor}}
	if category != "" && hasActionRecords(state) {
		o.VisitedNodes = append(o.VisitedNodes, category)
	}
	if state.Terminated() {
		o.VisitedNodes = append(o.VisitedNodes, domain.NodeEnd)
		o.CurrentNode = domain.NodeEnd
		return o
	}
	o.CurrentNode = state.PendingNode
	return o
}

func hasActionRecords(state *domain.State) bool {
	for _, rec := range state.ExecutionLog {
		if rec.Action != domain.NodeSupervisor {
			return true
		}
	}
	return false
}

// GenerateMermaid produces a Mermaid flowchart of the workflow graph.
// Shapes:
// - supervisor: {{Hexagon}}
// - END: ((Circle))
// - category nodes: [[Subroutine]]
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(nodes []string, edges []runtime.Edge, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range nodes {
		safeID := sanitizeMermaidID(node)
		opener, closer := "[[", "]]"
		switch node {
		case domain.NodeSupervisor:
			opener, closer = "{{", "}}"
		case domain.NodeEnd:
			opener, closer = "((", "))"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, node, closer))
	}

	for _, e := range edges {
		from, to := sanitizeMermaidID(e.From), sanitizeMermaidID(e.To)
		switch {
		case e.To == domain.NodeEnd:
			sb.WriteString(fmt.Sprintf("    %s -- \"resolve / escalate\" --> %s\n", from, to))
		case e.From == domain.NodeSupervisor:
			sb.WriteString(fmt.Sprintf("    %s -- \"next_step = %s\" --> %s\n", from, e.To, to))
		default:
			// Back-edges to the supervisor after one action.
			sb.WriteString(fmt.Sprintf("    %s -.-> %s\n", from, to))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !seen[safeID] && safeID != "" {
				seen[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}
		if overlay.CurrentNode != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode)))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_")
	return r.Replace(id)
}
