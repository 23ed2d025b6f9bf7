/*
Package ports defines the driven ports (interfaces) of the ticket automation engine.

These interfaces decouple the workflow core from its collaborators, allowing
the engine to work with various storage backends, decision makers, script
runners and ticketing systems.

# Key Interfaces

  - CheckpointStore: persists and loads instance State.
  - DecisionMaker: answers workflow and next-action questions with raw text.
  - ActionRunner: executes one named action and reports its outcome.
  - TicketStore: writes work notes and status back to the ticketing system.
  - DistributedLocker: coordinates instance access across replicas.
*/
package ports
