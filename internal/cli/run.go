package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mahi1722/ticketflow"
	"github.com/mahi1722/ticketflow/internal/presentation/tui"
	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/muesli/termenv"
)

// ReadTicket loads a ticket from a JSON file holding either a bare record
// or a table API envelope ({"result": [record, ...]}).
func ReadTicket(path string) (domain.Ticket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("failed to read ticket: %w", err)
	}
	return ParseTicket(data)
}

// ParseTicket decodes a ticket record or envelope.
func ParseTicket(data []byte) (domain.Ticket, error) {
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.Ticket{}, fmt.Errorf("%w: %v", domain.ErrInvalidTicket, err)
	}
	if result, ok := record["result"]; ok {
		list, ok := result.([]any)
		if !ok || len(list) == 0 {
			return domain.Ticket{}, fmt.Errorf("%w: result must contain at least one record", domain.ErrInvalidTicket)
		}
		first, ok := list[0].(map[string]any)
		if !ok {
			return domain.Ticket{}, fmt.Errorf("%w: result[0] is not an object", domain.ErrInvalidTicket)
		}
		record = first
	}
	return domain.TicketFromRecord(record)
}

// RunTicket handles one ticket and reports the final snapshot to w, as JSON
// or as a colored summary.
func RunTicket(ctx context.Context, svc *ticketflow.Service, ticket domain.Ticket, w io.Writer, asJSON bool) error {
	state, err := svc.Handle(ctx, ticket)
	if state != nil {
		if asJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(state); encErr != nil {
				return encErr
			}
		} else {
			tui.NewSummary(termenv.NewOutput(w).Profile).Render(w, state)
		}
	}
	if err != nil {
		return fmt.Errorf("ticket %s: %w", ticket.Number, err)
	}
	return nil
}
