// Package registry holds the closed set of actions a workflow may execute.
package registry

import (
	"fmt"
	"sort"

	"github.com/mahi1722/ticketflow/pkg/domain"
)

// Action names shipped with the default catalogue.
const (
	ActionParseVariables       = "parse_variables"
	ActionCheckADUserExistence = "check_ad_user_existence"
	ActionCreateADUser         = "create_ad_user"
	ActionUpdateTicket         = "update_ticket"
	ActionCheckM365License     = "check_m365_license"
	ActionAssignM365License    = "assign_m365_license"
)

// Action binds an action name to the script the Action Runner executes.
type Action struct {
	Name        string
	Script      string
	Description string
}

// Registry maps action names to Actions. It is built once and never
// modified, so lookups need no locking.
type Registry struct {
	actions map[string]Action
	names   []string
}

// New builds a registry. Names must be unique and every action needs a script.
func New(actions ...Action) (*Registry, error) {
	r := &Registry{actions: make(map[string]Action, len(actions))}
	for _, a := range actions {
		if a.Name == "" {
			return nil, fmt.Errorf("action with script %q has no name", a.Script)
		}
		if a.Script == "" {
			return nil, fmt.Errorf("action %q has no script", a.Name)
		}
		if _, dup := r.actions[a.Name]; dup {
			return nil, fmt.Errorf("action %q registered twice", a.Name)
		}
		r.actions[a.Name] = a
		r.names = append(r.names, a.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Lookup resolves an action by name.
// Unknown names yield a *domain.UnknownActionError.
func (r *Registry) Lookup(name string) (Action, error) {
	a, ok := r.actions[name]
	if !ok {
		return Action{}, &domain.UnknownActionError{Action: name}
	}
	return a, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.actions[name]
	return ok
}

// Names returns every registered action name in lexical order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Summaries describes the registry for the Decision Maker.
func (r *Registry) Summaries() []domain.ActionSummary {
	out := make([]domain.ActionSummary, 0, len(r.names))
	for _, name := range r.names {
		a := r.actions[name]
		out = append(out, domain.ActionSummary{Name: a.Name, Script: a.Script, Description: a.Description})
	}
	return out
}
