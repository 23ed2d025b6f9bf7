package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/muesli/termenv"
)

// Summary renders a snapshot as a short human-readable report.
type Summary struct {
	profile termenv.Profile
}

// NewSummary creates a Summary. Use termenv.Ascii to disable colors.
func NewSummary(profile termenv.Profile) *Summary {
	return &Summary{profile: profile}
}

func (s *Summary) paint(text, color string) termenv.Style {
	return termenv.String(text).Foreground(s.profile.Color(color))
}

// Render writes the report for state to w.
func (s *Summary) Render(w io.Writer, state *domain.State) {
	status := s.paint("RUNNING", "#fbbf24")
	switch {
	case state.Terminated() && state.ErrorOccurred:
		status = s.paint("ESCALATED", "#f87171")
	case state.Terminated():
		status = s.paint("RESOLVED", "#34d399")
	}

	flow := state.FlowName
	if flow == "" {
		flow = "-"
	}
	fmt.Fprintf(w, "%s  %s  flow=%s  transitions=%d\n",
		termenv.String(state.InstanceID).Bold(), status, flow, state.Transitions)

	if state.ErrorOccurred {
		fmt.Fprintf(w, "  error: %s (reassigned to %s)\n", state.ErrorMessage, state.ReassignmentGroup)
	}
	if !state.Terminated() && state.PendingNode != "" {
		fmt.Fprintf(w, "  pending: %s\n", state.PendingNode)
	}

	for i, rec := range state.ExecutionLog {
		mark := s.paint("✔", "#34d399")
		detail := rec.Description
		if rec.Result != nil {
			detail = rec.Result.OutputMessage
		}
		if rec.Error {
			mark = s.paint("✘", "#f87171")
			if rec.Result != nil {
				detail = rec.Result.ErrorMessage
			}
		}
		fmt.Fprintf(w, "  %2d %s %-28s %s\n", i+1, mark, rec.Action, oneLine(detail))
	}
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 80 {
		return s[:77] + "..."
	}
	return s
}
