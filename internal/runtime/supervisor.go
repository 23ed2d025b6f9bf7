package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mahi1722/ticketflow/pkg/catalogue"
	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/mahi1722/ticketflow/pkg/ports"
)

// supervisor is the routing node. Every pass ends in exactly one of:
// routing to a category node, escalation, or resolution.
type supervisor struct {
	decisions Decider
	tickets   ports.TicketStore
	catalogue *catalogue.Catalogue
	group     string
	logger    *slog.Logger
}

func (s *supervisor) run(ctx context.Context, state *domain.State) (*domain.State, error) {
	logger := s.logger.With("instance_id", state.InstanceID, "node", domain.NodeSupervisor)

	s.flushWorknote(ctx, logger, state)

	if state.ErrorOccurred {
		s.escalate(ctx, logger, state)
		return state, nil
	}

	if state.FlowName != "" && !state.NextAction {
		s.resolve(ctx, logger, state)
		return state, nil
	}

	if state.FlowName == "" {
		if err := s.selectWorkflow(ctx, logger, state); err != nil {
			return nil, err
		}
		return state, nil
	}

	category, ok := s.catalogue.CategoryOf(state.FlowName)
	if !ok || !category.Valid() {
		s.fail(ctx, logger, state, fmt.Sprintf("unsupported workflow: %s", state.FlowName))
		return state, nil
	}
	state.NextStep = string(category)
	return state, nil
}

// selectWorkflow asks for a flow and routes to its category. Decision
// failures escalate in the same pass; they are never retried.
func (s *supervisor) selectWorkflow(ctx context.Context, logger *slog.Logger, state *domain.State) error {
	decision, err := s.decisions.ChooseWorkflow(ctx, state.Ticket)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var formatErr *domain.DecisionFormatError
		if errors.As(err, &formatErr) {
			s.fail(ctx, logger, state, "Failed to parse model response: "+err.Error())
		} else {
			s.fail(ctx, logger, state, "Workflow selection failed: "+err.Error())
		}
		return nil
	}

	category, ok := s.catalogue.CategoryOf(decision.FlowName)
	if !ok || !category.Valid() {
		s.fail(ctx, logger, state, fmt.Sprintf("unsupported workflow: %s", decision.FlowName))
		return nil
	}

	state.FlowName = decision.FlowName
	state.ActionsList = append([]string{}, decision.ActionsList...)
	state.CurrentAction = state.ActionsList[0]
	state.ActionIndex = 0
	state.MergeVariables(decision.AdditionalVariables)
	state.NextAction = true
	state.NextStep = string(category)

	logger.Info("workflow selected", "flow", state.FlowName, "actions", state.ActionsList, "next", state.NextStep)
	return nil
}

// fail records a supervisor-side error and escalates immediately.
func (s *supervisor) fail(ctx context.Context, logger *slog.Logger, state *domain.State, message string) {
	state.SetError(message, s.group)
	state.WorknoteContent = message
	s.flushWorknote(ctx, logger, state)
	s.escalate(ctx, logger, state)
}

func (s *supervisor) escalate(ctx context.Context, logger *slog.Logger, state *domain.State) {
	group := state.ReassignmentGroup
	if group == "" {
		group = s.group
		state.ReassignmentGroup = group
	}
	state.Ticket.AssignmentGroup = group

	if err := s.tickets.Reassign(ctx, state.Ticket.ID(), group); err != nil {
		logger.Warn("failed to reassign ticket", "group", group, "error", err)
	}
	logger.Info("escalating", "flow", state.FlowName, "group", group, "reason", state.ErrorMessage)
	state.NextStep = domain.NodeEnd
}

func (s *supervisor) resolve(ctx context.Context, logger *slog.Logger, state *domain.State) {
	if err := s.tickets.SetState(ctx, state.Ticket.ID(), domain.TicketStateResolved); err != nil {
		logger.Warn("failed to resolve ticket", "error", err)
	}
	state.AppendLog(domain.StepRecord{Action: domain.NodeSupervisor, Description: domain.CompletionDescription})
	logger.Info("workflow resolved", "flow", state.FlowName)
	state.NextStep = domain.NodeEnd
}

func (s *supervisor) flushWorknote(ctx context.Context, logger *slog.Logger, state *domain.State) {
	if state.WorknoteContent == "" {
		return
	}
	if err := s.tickets.PostWorkNote(ctx, state.Ticket.ID(), state.WorknoteContent); err != nil {
		logger.Warn("failed to post work note", "error", err)
	}
	state.WorknoteContent = ""
}
