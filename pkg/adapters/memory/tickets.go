package memory

import (
	"context"
	"sync"

	"github.com/mahi1722/ticketflow/pkg/domain"
)

// TicketStore records ticket updates in memory. It backs dry runs and tests.
type TicketStore struct {
	mu     sync.Mutex
	notes  map[string][]string
	states map[string]domain.TicketState
	groups map[string]string
}

// NewTicketStore creates an empty TicketStore.
func NewTicketStore() *TicketStore {
	return &TicketStore{
		notes:  make(map[string][]string),
		states: make(map[string]domain.TicketState),
		groups: make(map[string]string),
	}
}

func (t *TicketStore) PostWorkNote(ctx context.Context, ticketID, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notes[ticketID] = append(t.notes[ticketID], text)
	return nil
}

func (t *TicketStore) SetState(ctx context.Context, ticketID string, state domain.TicketState) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[ticketID] = state
	return nil
}

func (t *TicketStore) Reassign(ctx context.Context, ticketID, group string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.groups[ticketID] = group
	return nil
}

// Notes returns the work notes posted to a ticket, oldest first.
func (t *TicketStore) Notes(ticketID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.notes[ticketID]...)
}

// State returns the last state written to a ticket.
func (t *TicketStore) State(ticketID string) (domain.TicketState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[ticketID]
	return s, ok
}

// Group returns the group a ticket was reassigned to.
func (t *TicketStore) Group(ticketID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.groups[ticketID]
	return g, ok
}
