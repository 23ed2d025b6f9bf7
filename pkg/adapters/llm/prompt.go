package llm

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/mahi1722/ticketflow/pkg/domain"
	"gopkg.in/yaml.v3"
)

const systemPrompt = "You automate IT service tickets. Answer with a single JSON object and nothing else."

var workflowPrompt = template.Must(template.New("workflow").Funcs(template.FuncMap{"join": strings.Join}).Parse(`You are a supervisor for service ticket automation.
Analyze the ticket and select the best workflow.

### Ticket
- Number: {{.Ticket.Number}}
- Description: {{.Ticket.ShortDescription}}
{{- if .Ticket.Description}}
- Details: {{.Ticket.Description}}
{{- end}}

### Workflows
{{- range .Workflows}}
- {{.Name}}: {{.Description}} (default actions: {{join .Actions ", "}})
{{- end}}

### Instructions
1. Match the description to a workflow.
2. Extract variables (for example the username).
3. Return JSON with:
   - flow_name: workflow name
   - actions_list: tool order
   - additional_variables: extracted variables

### Example
Ticket: "Create AD user jdoe"
{"flow_name": "ADUserCreation", "actions_list": ["parse_variables", "check_ad_user_existence", "create_ad_user", "update_ticket"], "additional_variables": {"username": "jdoe"}}
`))

var actionPrompt = template.Must(template.New("action").Parse(`You are an agent executing tools for a service ticket.

### Current state
` + "```yaml" + `
{{.State}}` + "```" + `

### Tools
` + "```yaml" + `
{{.Tools}}` + "```" + `

### Instructions
1. The current action is about to be executed with the tool configured above.
2. Adjust the remaining actions based on the results so far.
3. Return JSON with:
   - next_action: next tool, or "" when the workflow is done
   - updated_actions_list: revised tool list (must contain next_action)
   - additional_variables: new or updated variables
   - worknote_content: work note for the ticket

### Example
{"next_action": "create_ad_user", "updated_actions_list": ["create_ad_user", "update_ticket"], "additional_variables": {"user_exists": false}, "worknote_content": "User does not exist."}
`))

// stateView is the slice of a snapshot shown to the model.
type stateView struct {
	Flow          string              `yaml:"flow"`
	Ticket        string              `yaml:"ticket"`
	Description   string              `yaml:"description"`
	Actions       []string            `yaml:"actions"`
	CurrentAction string              `yaml:"current_action"`
	Index         int                 `yaml:"index"`
	Variables     map[string]any      `yaml:"variables"`
	Log           []domain.StepRecord `yaml:"log"`
}

// renderPrompt builds the user message for a decision request.
func renderPrompt(req domain.DecisionRequest) (string, error) {
	var buf bytes.Buffer
	switch req.Kind {
	case domain.DecisionWorkflow:
		if err := workflowPrompt.Execute(&buf, req); err != nil {
			return "", err
		}
	case domain.DecisionNextAction:
		if req.Snapshot == nil {
			return "", fmt.Errorf("%s request without a snapshot", req.Kind)
		}
		s := req.Snapshot
		state, err := yaml.Marshal(stateView{
			Flow:          s.FlowName,
			Ticket:        s.Ticket.Number,
			Description:   s.Ticket.ShortDescription,
			Actions:       s.ActionsList,
			CurrentAction: s.CurrentAction,
			Index:         s.ActionIndex,
			Variables:     s.AdditionalVariables,
			Log:           s.ExecutionLog,
		})
		if err != nil {
			return "", err
		}
		tools, err := yaml.Marshal(req.Actions)
		if err != nil {
			return "", err
		}
		err = actionPrompt.Execute(&buf, map[string]string{"State": string(state), "Tools": string(tools)})
		if err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unknown decision kind %q", req.Kind)
	}
	return buf.String(), nil
}
