package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mahi1722/ticketflow/pkg/adapters/memory"
	"github.com/mahi1722/ticketflow/pkg/domain"
	"gopkg.in/yaml.v3"
)

// LoadDecisionScript reads canned decisions for offline runs:
//
//	choose_workflow:
//	  - {flow_name: ADUserCreation, actions_list: [parse_variables, update_ticket]}
//	choose_next_action:
//	  - {next_action: update_ticket, updated_actions_list: [parse_variables, update_ticket]}
//	  - '{"next_action": "", "updated_actions_list": []}'
//
// Mappings are sent as JSON; strings are sent verbatim so malformed model
// output can be rehearsed too.
func LoadDecisionScript(path string) (*memory.DecisionMaker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read decision script: %w", err)
	}

	var script map[domain.DecisionKind][]any
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("failed to parse decision script %s: %w", path, err)
	}

	maker := memory.NewDecisionMaker()
	for kind, entries := range script {
		if kind != domain.DecisionWorkflow && kind != domain.DecisionNextAction {
			return nil, fmt.Errorf("decision script %s: unknown decision kind %q", path, kind)
		}
		for i, entry := range entries {
			if raw, ok := entry.(string); ok {
				maker.Queue(kind, raw)
				continue
			}
			b, err := json.Marshal(entry)
			if err != nil {
				return nil, fmt.Errorf("decision script %s: %s[%d]: %w", path, kind, i, err)
			}
			maker.Queue(kind, string(b))
		}
	}
	return maker, nil
}
