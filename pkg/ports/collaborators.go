package ports

import (
	"context"

	"github.com/mahi1722/ticketflow/pkg/domain"
)

// DecisionMaker answers a decision request with unstructured text.
// Parsing and validation of the answer are the caller's job.
type DecisionMaker interface {
	Decide(ctx context.Context, req domain.DecisionRequest) (string, error)
}

// ActionRunner executes one action. A returned error means the runner could
// not be reached at all; script failures are reported through the result.
type ActionRunner interface {
	Run(ctx context.Context, inv domain.ActionInvocation) (domain.ActionResult, error)
}

// TicketStore writes progress back to the ticketing system.
type TicketStore interface {
	PostWorkNote(ctx context.Context, ticketID, text string) error
	SetState(ctx context.Context, ticketID string, state domain.TicketState) error
	Reassign(ctx context.Context, ticketID, group string) error
}
