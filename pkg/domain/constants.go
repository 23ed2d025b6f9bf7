package domain

// Node names of the workflow graph. Category nodes use their Category value.
const (
	NodeSupervisor = "supervisor"
	NodeEnd        = "END"
)

const (
	// InstancePrefix is prepended to a ticket number to form its instance ID.
	InstancePrefix = "task_"

	// DefaultReassignmentGroup receives escalated tickets unless configured otherwise.
	DefaultReassignmentGroup = "IT Support"

	// CompletionDescription is logged by the supervisor when a workflow resolves.
	CompletionDescription = "Process complete."
)
