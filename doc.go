/*
Package ticketflow automates IT service tickets with a checkpointed workflow graph.

A ticket enters at the supervisor node. The supervisor asks a Decision Maker
(usually a language model) which catalogued workflow fits the ticket and routes
to the category node that owns it. The category node runs exactly one action per
visit through an Action Runner, then hands control back to the supervisor, which
either routes again, resolves the ticket, or escalates it to a reassignment group.

# Durable Execution

Every node execution is followed by a checkpoint keyed by the ticket's instance ID
("task_" + ticket number). A crashed or cancelled run resumes at the pending node of
its last checkpoint, and a terminated instance is never executed again. Checkpoints
can live in memory, on disk, in Redis, PostgreSQL or SQLite, optionally compressed,
encrypted and PII-masked.

# Usage

	svc, err := ticketflow.New(ticketflow.Dependencies{
		Store:         memory.NewStore(),
		DecisionMaker: llm.New(os.Getenv("LLM_API_KEY")),
		Runner:        process.NewRunner(process.DefaultConfig()),
		Tickets:       servicenow.New("https://example.service-now.com", servicenow.WithBasicAuth(user, pass)),
	})
	if err != nil {
		log.Fatal(err)
	}

	state, err := svc.Handle(ctx, ticket)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(state.Status, state.ErrorOccurred)

The cmd/ticketflow binary wires the same Service behind an HTTP API and a CLI.
*/
package ticketflow
