// Package decision turns Decision Maker responses into structured decisions.
//
// The Decision Maker is free text by nature. Everything that comes back is
// normalized (code fences and JSONC comments stripped), decoded into an
// object, checked for required keys, and only then typed. A response that
// fails any of those steps is a *domain.DecisionFormatError.
package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mahi1722/ticketflow/internal/logging"
	"github.com/mahi1722/ticketflow/pkg/catalogue"
	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/mahi1722/ticketflow/pkg/ports"
	"github.com/mahi1722/ticketflow/pkg/registry"
	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/jsonc"
)

var (
	workflowKeys = []string{"flow_name", "actions_list", "additional_variables"}
	actionKeys   = []string{"next_action", "updated_actions_list", "additional_variables", "worknote_content"}
)

// Adapter asks the Decision Maker the two questions the workflow needs.
type Adapter struct {
	maker     ports.DecisionMaker
	catalogue *catalogue.Catalogue
	registry  *registry.Registry
	logger    *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used for rejected responses.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// New creates an Adapter.
func New(maker ports.DecisionMaker, cat *catalogue.Catalogue, reg *registry.Registry, opts ...Option) (*Adapter, error) {
	if maker == nil {
		return nil, errors.New("decision: maker is required")
	}
	if cat == nil || reg == nil {
		return nil, errors.New("decision: catalogue and registry are required")
	}
	a := &Adapter{
		maker:     maker,
		catalogue: cat,
		registry:  reg,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// ChooseWorkflow selects a flow for a ticket that has none yet.
func (a *Adapter) ChooseWorkflow(ctx context.Context, ticket domain.Ticket) (domain.WorkflowDecision, error) {
	req := domain.DecisionRequest{
		Kind:      domain.DecisionWorkflow,
		Ticket:    ticket.Clone(),
		Workflows: a.catalogue.Summaries(),
		Actions:   a.registry.Summaries(),
	}

	var out domain.WorkflowDecision
	if err := a.decide(ctx, req, workflowKeys, &out); err != nil {
		return domain.WorkflowDecision{}, err
	}
	if out.FlowName == "" {
		return domain.WorkflowDecision{}, a.reject(req.Kind, "flow_name is empty", "", nil)
	}
	if len(out.ActionsList) == 0 {
		return domain.WorkflowDecision{}, a.reject(req.Kind, "actions_list is empty", "", nil)
	}
	if out.AdditionalVariables == nil {
		out.AdditionalVariables = map[string]any{}
	}
	return out, nil
}

// ChooseNextAction decides which action follows the one about to run.
// The state is not modified.
func (a *Adapter) ChooseNextAction(ctx context.Context, state *domain.State) (domain.ActionDecision, error) {
	req := domain.DecisionRequest{
		Kind:     domain.DecisionNextAction,
		Ticket:   state.Ticket.Clone(),
		Actions:  a.registry.Summaries(),
		Snapshot: state.Clone(),
	}
	if wf, ok := a.catalogue.Workflows[state.FlowName]; ok {
		req.Workflows = []domain.WorkflowSummary{{Name: wf.Name, Description: wf.Description, Actions: wf.Actions}}
	}

	var out domain.ActionDecision
	if err := a.decide(ctx, req, actionKeys, &out); err != nil {
		return domain.ActionDecision{}, err
	}
	if out.UpdatedActionsList == nil {
		out.UpdatedActionsList = []string{}
	}
	if out.AdditionalVariables == nil {
		out.AdditionalVariables = map[string]any{}
	}
	if out.NextAction != "" && !contains(out.UpdatedActionsList, out.NextAction) {
		reason := fmt.Sprintf("next_action %q is not in updated_actions_list", out.NextAction)
		return domain.ActionDecision{}, a.reject(req.Kind, reason, "", nil)
	}
	return out, nil
}

func (a *Adapter) decide(ctx context.Context, req domain.DecisionRequest, required []string, out any) error {
	raw, err := a.maker.Decide(ctx, req)
	if err != nil {
		return fmt.Errorf("decision maker: %w", err)
	}

	obj, err := parseObject(raw)
	if err != nil {
		return a.reject(req.Kind, "response is not a JSON object", raw, err)
	}

	var missing []string
	for _, key := range required {
		if _, ok := obj[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return a.reject(req.Kind, "missing keys: "+strings.Join(missing, ", "), raw, nil)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(obj); err != nil {
		return a.reject(req.Kind, "unexpected field types", raw, err)
	}
	return nil
}

func (a *Adapter) reject(kind domain.DecisionKind, reason, raw string, cause error) error {
	a.logger.Warn("decision rejected", "kind", kind, "reason", reason, "error", cause)
	return &domain.DecisionFormatError{Kind: kind, Reason: reason, Raw: raw, Err: cause}
}

// parseObject extracts the JSON object from a free-text response. The
// whole text is tried first so that fences quoted inside string values
// survive; fence extraction is the fallback.
func parseObject(raw string) (map[string]any, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, errors.New("empty response")
	}

	obj, err := decodeObject(text)
	if err != nil {
		fenced := stripFences(text)
		if fenced == text {
			return nil, err
		}
		if obj, err = decodeObject(fenced); err != nil {
			return nil, err
		}
	}
	if obj == nil {
		return nil, errors.New("response is null")
	}
	return obj, nil
}

func decodeObject(text string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal(jsonc.ToJSON([]byte(text)), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// stripFences returns the body of the first Markdown code fence, or s
// unchanged when there is none.
func stripFences(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	body := s[start+3:]
	// Drop the info string ("json", "jsonc", ...).
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = strings.TrimLeft(body, "abcdefghijklmnopqrstuvwxyz")
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
