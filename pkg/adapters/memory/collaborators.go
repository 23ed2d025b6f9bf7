package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mahi1722/ticketflow/pkg/domain"
)

// DecisionMaker replays canned responses, one queue per decision kind.
// It backs dry runs and tests.
type DecisionMaker struct {
	mu        sync.Mutex
	responses map[domain.DecisionKind][]string
	requests  []domain.DecisionRequest
	Err       error
}

// NewDecisionMaker creates a DecisionMaker with empty queues.
func NewDecisionMaker() *DecisionMaker {
	return &DecisionMaker{responses: make(map[domain.DecisionKind][]string)}
}

// Queue appends responses for kind.
func (d *DecisionMaker) Queue(kind domain.DecisionKind, responses ...string) *DecisionMaker {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.responses[kind] = append(d.responses[kind], responses...)
	return d
}

func (d *DecisionMaker) Decide(ctx context.Context, req domain.DecisionRequest) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	if d.Err != nil {
		return "", d.Err
	}
	queue := d.responses[req.Kind]
	if len(queue) == 0 {
		return "", fmt.Errorf("no scripted response left for %s", req.Kind)
	}
	d.responses[req.Kind] = queue[1:]
	return queue[0], nil
}

// Requests returns every request received so far.
func (d *DecisionMaker) Requests() []domain.DecisionRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.DecisionRequest(nil), d.requests...)
}

// ActionRunner returns preset results per action. Actions without a preset
// succeed with a generic message.
type ActionRunner struct {
	mu          sync.Mutex
	results     map[string]domain.ActionResult
	invocations []domain.ActionInvocation
	Err         error
}

// NewActionRunner creates an ActionRunner with no presets.
func NewActionRunner() *ActionRunner {
	return &ActionRunner{results: make(map[string]domain.ActionResult)}
}

// SetResult presets the result returned for action.
func (r *ActionRunner) SetResult(action string, res domain.ActionResult) *ActionRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[action] = res
	return r
}

func (r *ActionRunner) Run(ctx context.Context, inv domain.ActionInvocation) (domain.ActionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invocations = append(r.invocations, inv)
	if r.Err != nil {
		return domain.ActionResult{}, r.Err
	}
	if res, ok := r.results[inv.Action]; ok {
		return res, nil
	}
	return domain.ActionResult{Status: domain.ActionSuccess, OutputMessage: inv.Script + " completed"}, nil
}

// Invocations returns every invocation received so far.
func (r *ActionRunner) Invocations() []domain.ActionInvocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ActionInvocation(nil), r.invocations...)
}
