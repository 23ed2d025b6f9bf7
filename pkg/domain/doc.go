/*
Package domain contains the core domain models of the ticket automation engine.

It defines the per-ticket workflow state, the decisions exchanged with the
Decision Maker, the normalized Action Runner result and the typed errors the
engine reports. This package is kept pure and free of I/O.

# Key Entities

  - State: the checkpointed snapshot of one workflow instance.
  - Ticket: the originating service ticket.
  - WorkflowDecision / ActionDecision: structured Decision Maker answers.
  - ActionResult: the normalized outcome of a single action.
  - StepRecord: one entry of the append-only execution log.
*/
package domain
