package domain

// DecisionKind selects which question is put to the Decision Maker.
type DecisionKind string

const (
	DecisionWorkflow   DecisionKind = "choose_workflow"
	DecisionNextAction DecisionKind = "choose_next_action"
)

// WorkflowSummary describes a catalogue entry offered to the Decision Maker.
type WorkflowSummary struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Actions     []string `yaml:"actions" json:"actions"`
}

// ActionSummary describes a registered action offered to the Decision Maker.
type ActionSummary struct {
	Name        string `yaml:"name" json:"name"`
	Script      string `yaml:"script" json:"script"`
	Description string `yaml:"description" json:"description"`
}

// DecisionRequest carries the context for one decision.
// Snapshot is set for DecisionNextAction only.
type DecisionRequest struct {
	Kind      DecisionKind
	Ticket    Ticket
	Workflows []WorkflowSummary
	Actions   []ActionSummary
	Snapshot  *State
}

// WorkflowDecision is the structured answer to DecisionWorkflow.
type WorkflowDecision struct {
	FlowName            string         `mapstructure:"flow_name" json:"flow_name"`
	ActionsList         []string       `mapstructure:"actions_list" json:"actions_list"`
	AdditionalVariables map[string]any `mapstructure:"additional_variables" json:"additional_variables"`
}

// ActionDecision is the structured answer to DecisionNextAction.
// An empty NextAction means the workflow is complete.
type ActionDecision struct {
	NextAction          string         `mapstructure:"next_action" json:"next_action"`
	UpdatedActionsList  []string       `mapstructure:"updated_actions_list" json:"updated_actions_list"`
	AdditionalVariables map[string]any `mapstructure:"additional_variables" json:"additional_variables"`
	WorknoteContent     string         `mapstructure:"worknote_content" json:"worknote_content"`
}
