package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mahi1722/ticketflow/internal/logging"
	"github.com/mahi1722/ticketflow/pkg/catalogue"
	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/mahi1722/ticketflow/pkg/ports"
	"github.com/mahi1722/ticketflow/pkg/registry"
)

// DefaultRecursionLimit is the number of node executions a single Run may
// perform before it fails with a *domain.WorkflowLimitExceededError.
const DefaultRecursionLimit = 100

// NodeFunc executes one node. It receives a private copy of the current
// snapshot and returns the snapshot the engine should persist.
type NodeFunc func(ctx context.Context, state *domain.State) (*domain.State, error)

// Decider is the decision surface the nodes depend on.
type Decider interface {
	ChooseWorkflow(ctx context.Context, ticket domain.Ticket) (domain.WorkflowDecision, error)
	ChooseNextAction(ctx context.Context, state *domain.State) (domain.ActionDecision, error)
}

// Dependencies are the collaborators an Engine is built from.
type Dependencies struct {
	Store     ports.CheckpointStore
	Decisions Decider
	Runner    ports.ActionRunner
	Tickets   ports.TicketStore
	Catalogue *catalogue.Catalogue
	Registry  *registry.Registry
}

func (d Dependencies) validate() error {
	var missing []string
	if d.Store == nil {
		missing = append(missing, "Store")
	}
	if d.Decisions == nil {
		missing = append(missing, "Decisions")
	}
	if d.Runner == nil {
		missing = append(missing, "Runner")
	}
	if d.Tickets == nil {
		missing = append(missing, "Tickets")
	}
	if d.Catalogue == nil {
		missing = append(missing, "Catalogue")
	}
	if d.Registry == nil {
		missing = append(missing, "Registry")
	}
	if len(missing) > 0 {
		return fmt.Errorf("runtime: missing dependencies: %v", missing)
	}
	return nil
}

// Engine drives a ticket through the supervisor and category nodes,
// checkpointing after every node.
type Engine struct {
	nodes   map[string]NodeFunc
	store   ports.CheckpointStore
	archive ports.CheckpointStore
	limit   int
	group   string
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecursionLimit bounds the node executions of one Run. Values below 1
// keep the default.
func WithRecursionLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHooks registers lifecycle callbacks. Repeated calls chain.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithArchive stores a copy of every terminated snapshot in archive.
func WithArchive(archive ports.CheckpointStore) Option {
	return func(e *Engine) {
		e.archive = archive
	}
}

// WithReassignmentGroup overrides the group escalations are sent to.
func WithReassignmentGroup(group string) Option {
	return func(e *Engine) {
		if group != "" {
			e.group = group
		}
	}
}

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine wires the supervisor and one node per action category.
func NewEngine(deps Dependencies, opts ...Option) (*Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		store:  deps.Store,
		limit:  DefaultRecursionLimit,
		group:  domain.DefaultReassignmentGroup,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	sup := &supervisor{
		decisions: deps.Decisions,
		tickets:   deps.Tickets,
		catalogue: deps.Catalogue,
		group:     e.group,
		logger:    e.logger,
	}
	e.nodes = map[string]NodeFunc{domain.NodeSupervisor: sup.run}
	for _, cat := range domain.Categories() {
		ex := &executor{
			category:  cat,
			decisions: deps.Decisions,
			runner:    deps.Runner,
			registry:  deps.Registry,
			group:     e.group,
			logger:    e.logger,
			onAction:  e.emitAction,
		}
		e.nodes[string(cat)] = ex.run
	}
	return e, nil
}

// Edge is a possible transition between two nodes.
type Edge struct {
	From string
	To   string
}

// Topology lists the nodes and edges of the workflow graph in a stable order.
func (e *Engine) Topology() ([]string, []Edge) {
	var categories []string
	for name := range e.nodes {
		if name != domain.NodeSupervisor {
			categories = append(categories, name)
		}
	}
	sort.Strings(categories)

	nodes := append([]string{domain.NodeSupervisor}, categories...)
	nodes = append(nodes, domain.NodeEnd)

	var edges []Edge
	for _, c := range categories {
		edges = append(edges, Edge{From: domain.NodeSupervisor, To: c})
	}
	edges = append(edges, Edge{From: domain.NodeSupervisor, To: domain.NodeEnd})
	for _, c := range categories {
		edges = append(edges, Edge{From: c, To: domain.NodeSupervisor})
	}
	return nodes, edges
}

// Run executes the workflow for instanceID until it terminates.
//
// An existing checkpoint always wins over initial: the instance resumes at
// its pending node, and a terminated instance is returned unchanged.
// Otherwise initial becomes the first checkpoint. The returned state is the
// last persisted snapshot, also when an error is returned.
func (e *Engine) Run(ctx context.Context, initial *domain.State, instanceID string) (*domain.State, error) {
	runID := uuid.NewString()
	ctx = withRun(ctx, instanceID, runID)
	logger := e.logger.With("instance_id", instanceID, "run_id", runID)

	state, err := e.resume(ctx, initial, instanceID)
	if err != nil {
		return nil, err
	}
	if state.Terminated() {
		logger.Debug("instance already terminated")
		return state, nil
	}

	for steps := 0; ; steps++ {
		if err := ctx.Err(); err != nil {
			logger.Info("run interrupted", "node", state.PendingNode)
			return state, err
		}
		if steps >= e.limit {
			return state, &domain.WorkflowLimitExceededError{InstanceID: instanceID, Limit: e.limit}
		}

		next, err := e.step(ctx, logger, state)
		if err != nil {
			return state, err
		}
		state = next

		if state.Terminated() {
			e.finish(ctx, logger, state)
			return state, nil
		}
	}
}

func (e *Engine) resume(ctx context.Context, initial *domain.State, instanceID string) (*domain.State, error) {
	if instanceID == "" {
		return nil, fmt.Errorf("%w: empty instance id", domain.ErrInvalidState)
	}

	state, err := e.store.Load(ctx, instanceID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, domain.ErrInstanceNotFound) {
		return nil, &domain.CheckpointError{InstanceID: instanceID, Op: "load", Err: err}
	}
	if initial == nil {
		return nil, fmt.Errorf("instance %s: %w", instanceID, domain.ErrInstanceNotFound)
	}

	state = initial.Clone()
	state.InstanceID = instanceID
	state.Status = domain.StatusActive
	if state.PendingNode == "" {
		state.PendingNode = domain.NodeSupervisor
	}
	if err := state.Validate(); err != nil {
		return nil, err
	}
	state.UpdatedAt = e.now()

	if err := e.save(ctx, state); err != nil {
		return nil, err
	}
	e.logger.Info("instance created", "instance_id", instanceID, "ticket", state.Ticket.Number)
	return state, nil
}

func (e *Engine) step(ctx context.Context, logger *slog.Logger, state *domain.State) (*domain.State, error) {
	node := state.PendingNode
	fn, ok := e.nodes[node]
	if !ok {
		return nil, fmt.Errorf("no node registered for pending step %q", node)
	}

	e.emitNode(ctx, domain.EventNodeEnter, node, "", 0)
	start := time.Now()

	next, err := fn(ctx, state.Clone())
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", node, err)
	}
	if next == nil {
		return nil, fmt.Errorf("node %s returned no state", node)
	}
	if next.InstanceID != state.InstanceID {
		return nil, fmt.Errorf("node %s changed instance id to %q", node, next.InstanceID)
	}
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("node %s: %w", node, err)
	}
	if err := next.Extends(state); err != nil {
		return nil, fmt.Errorf("node %s: %w", node, err)
	}

	if err := e.route(node, next); err != nil {
		return nil, err
	}
	next.Transitions = state.Transitions + 1
	next.UpdatedAt = e.now()

	if err := e.save(ctx, next); err != nil {
		return nil, err
	}

	logger.Debug("node completed", "node", node, "next", next.PendingNode, "transitions", next.Transitions)
	e.emitNode(ctx, domain.EventNodeLeave, node, next.PendingNode, time.Since(start))
	if e.hooks.OnCheckpoint != nil {
		e.hooks.OnCheckpoint(ctx, &domain.CheckpointEvent{
			EventBase: e.base(ctx, domain.EventCheckpoint),
			Node:      node,
			Diff:      domain.Diff(state, next),
		})
	}
	return next, nil
}

// route sets PendingNode and Status from the node that just ran.
func (e *Engine) route(node string, next *domain.State) error {
	if node != domain.NodeSupervisor {
		next.PendingNode = domain.NodeSupervisor
		return nil
	}

	switch target := next.NextStep; {
	case target == domain.NodeEnd:
		next.PendingNode = ""
		next.Status = domain.StatusTerminated
	case target == domain.NodeSupervisor:
		return fmt.Errorf("supervisor routed to itself")
	default:
		if _, ok := e.nodes[target]; !ok {
			return fmt.Errorf("supervisor routed to unknown node %q", target)
		}
		next.PendingNode = target
	}
	return nil
}

// save persists a snapshot. A node that completed is committed even when
// the run is being cancelled.
func (e *Engine) save(ctx context.Context, state *domain.State) error {
	if err := e.store.Save(context.WithoutCancel(ctx), state.InstanceID, state); err != nil {
		return &domain.CheckpointError{InstanceID: state.InstanceID, Op: "save", Err: err}
	}
	return nil
}

func (e *Engine) finish(ctx context.Context, logger *slog.Logger, state *domain.State) {
	logger.Info("instance terminated",
		"flow", state.FlowName,
		"escalated", state.ErrorOccurred,
		"steps", len(state.ExecutionLog),
	)

	if e.archive != nil {
		if err := e.archive.Save(context.WithoutCancel(ctx), state.InstanceID, state); err != nil {
			logger.Warn("failed to archive terminated instance", "error", err)
		}
	}

	if e.hooks.OnTerminal != nil {
		e.hooks.OnTerminal(ctx, &domain.TerminalEvent{
			EventBase: e.base(ctx, domain.EventTerminal),
			Flow:      state.FlowName,
			Escalated: state.ErrorOccurred,
			Steps:     len(state.ExecutionLog),
		})
	}
}

type runKey struct{}

type runInfo struct {
	instanceID string
	runID      string
}

func withRun(ctx context.Context, instanceID, runID string) context.Context {
	return context.WithValue(ctx, runKey{}, runInfo{instanceID: instanceID, runID: runID})
}

func (e *Engine) base(ctx context.Context, typ domain.EventType) domain.EventBase {
	info, _ := ctx.Value(runKey{}).(runInfo)
	return domain.EventBase{
		Timestamp:  time.Now(),
		Type:       typ,
		InstanceID: info.instanceID,
		RunID:      info.runID,
	}
}

func (e *Engine) emitNode(ctx context.Context, typ domain.EventType, node, next string, d time.Duration) {
	hook := e.hooks.OnNodeEnter
	if typ == domain.EventNodeLeave {
		hook = e.hooks.OnNodeLeave
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.NodeEvent{EventBase: e.base(ctx, typ), Node: node, Next: next, Duration: d})
}

func (e *Engine) emitAction(ctx context.Context, evt *domain.ActionEvent) {
	if e.hooks.OnAction == nil {
		return
	}
	evt.EventBase = e.base(ctx, domain.EventAction)
	e.hooks.OnAction(ctx, evt)
}
