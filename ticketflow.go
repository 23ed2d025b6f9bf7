package ticketflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mahi1722/ticketflow/internal/decision"
	"github.com/mahi1722/ticketflow/internal/logging"
	"github.com/mahi1722/ticketflow/internal/presentation/graph"
	"github.com/mahi1722/ticketflow/internal/runtime"
	"github.com/mahi1722/ticketflow/pkg/catalogue"
	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/mahi1722/ticketflow/pkg/ports"
	"github.com/mahi1722/ticketflow/pkg/session"
)

// Dependencies are the external collaborators of a Service.
type Dependencies struct {
	// Store persists one checkpoint per instance. Required.
	Store ports.CheckpointStore
	// DecisionMaker answers workflow and next-action prompts. Required.
	DecisionMaker ports.DecisionMaker
	// Runner executes action scripts. Required.
	Runner ports.ActionRunner
	// Tickets receives work notes, resolutions and reassignments. Required.
	Tickets ports.TicketStore
	// Catalogue lists the workflows and tools. Nil uses catalogue.Default().
	Catalogue *catalogue.Catalogue
}

// Service is the high-level entry point of ticketflow.
// It serializes runs per instance and drives them through the graph engine.
type Service struct {
	engine    *runtime.Engine
	sessions  *session.Manager
	catalogue *catalogue.Catalogue
	logger    *slog.Logger
}

type config struct {
	logger     *slog.Logger
	hooks      domain.LifecycleHooks
	engineOpts []runtime.Option
	lockOpts   []session.Option
}

// Option configures a Service.
type Option func(*config)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. Calling it several
// times merges the hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *config) {
		c.hooks = c.hooks.Merge(hooks)
	}
}

// WithRecursionLimit bounds the node executions of one run.
func WithRecursionLimit(n int) Option {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, runtime.WithRecursionLimit(n))
	}
}

// WithArchive copies terminated instances to archive.
func WithArchive(archive ports.CheckpointStore) Option {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, runtime.WithArchive(archive))
	}
}

// WithReassignmentGroup sets the group escalated tickets are handed to.
func WithReassignmentGroup(group string) Option {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, runtime.WithReassignmentGroup(group))
	}
}

// WithClock overrides the checkpoint timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, runtime.WithClock(now))
	}
}

// WithDistributedLocker serializes instances across processes.
func WithDistributedLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(c *config) {
		c.lockOpts = append(c.lockOpts, session.WithLocker(locker), session.WithLockTTL(ttl))
	}
}

// New wires a Service from its collaborators.
func New(deps Dependencies, opts ...Option) (*Service, error) {
	c := &config{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}

	cat := deps.Catalogue
	if cat == nil {
		cat = catalogue.Default()
	}
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("ticketflow: %w", err)
	}
	reg, err := cat.Registry()
	if err != nil {
		return nil, fmt.Errorf("ticketflow: %w", err)
	}
	if deps.DecisionMaker == nil {
		return nil, fmt.Errorf("ticketflow: missing dependencies: [DecisionMaker]")
	}
	decisions, err := decision.New(deps.DecisionMaker, cat, reg, decision.WithLogger(c.logger))
	if err != nil {
		return nil, fmt.Errorf("ticketflow: %w", err)
	}

	engineOpts := append([]runtime.Option{
		runtime.WithLogger(c.logger),
		runtime.WithHooks(c.hooks),
	}, c.engineOpts...)

	engine, err := runtime.NewEngine(runtime.Dependencies{
		Store:     deps.Store,
		Decisions: decisions,
		Runner:    deps.Runner,
		Tickets:   deps.Tickets,
		Catalogue: cat,
		Registry:  reg,
	}, engineOpts...)
	if err != nil {
		return nil, err
	}

	lockOpts := append([]session.Option{session.WithLogger(c.logger)}, c.lockOpts...)
	return &Service{
		engine:    engine,
		sessions:  session.NewManager(deps.Store, lockOpts...),
		catalogue: cat,
		logger:    c.logger,
	}, nil
}

// Handle runs the workflow of ticket to completion. A ticket that already
// has a checkpoint resumes where it stopped; a terminated one is returned
// as is.
func (s *Service) Handle(ctx context.Context, ticket domain.Ticket) (*domain.State, error) {
	if ticket.Number == "" {
		return nil, fmt.Errorf("%w: ticket has no number", domain.ErrInvalidTicket)
	}
	instanceID := domain.InstanceIDFor(ticket)
	return s.run(ctx, domain.NewState(instanceID, ticket), instanceID)
}

// Resume continues an existing instance. It fails with
// domain.ErrInstanceNotFound when nothing was checkpointed.
func (s *Service) Resume(ctx context.Context, instanceID string) (*domain.State, error) {
	return s.run(ctx, nil, instanceID)
}

func (s *Service) run(ctx context.Context, initial *domain.State, instanceID string) (*domain.State, error) {
	var state *domain.State
	err := s.sessions.WithLock(ctx, instanceID, func(ctx context.Context) error {
		var err error
		state, err = s.engine.Run(ctx, initial, instanceID)
		return err
	})
	return state, err
}

// Inspect returns the last checkpoint of an instance. It does not wait
// for an in-flight run.
func (s *Service) Inspect(ctx context.Context, instanceID string) (*domain.State, error) {
	return s.sessions.Store().Load(ctx, instanceID)
}

// Instances lists the checkpointed instance IDs.
func (s *Service) Instances(ctx context.Context) ([]string, error) {
	return s.sessions.List(ctx)
}

// Delete removes the checkpoint of an instance, waiting for an in-flight
// run of the same instance to finish.
func (s *Service) Delete(ctx context.Context, instanceID string) error {
	if _, err := s.sessions.Store().Load(ctx, instanceID); err != nil {
		return err
	}
	return s.sessions.Delete(ctx, instanceID)
}

// Graph renders the workflow graph as Mermaid. A non-empty instanceID
// highlights the path that instance has taken.
func (s *Service) Graph(ctx context.Context, instanceID string) (string, error) {
	nodes, edges := s.engine.Topology()
	if instanceID == "" {
		return graph.GenerateMermaid(nodes, edges, nil), nil
	}

	state, err := s.Inspect(ctx, instanceID)
	if err != nil {
		return "", err
	}
	category, _ := s.catalogue.CategoryOf(state.FlowName)
	return graph.GenerateMermaid(nodes, edges, graph.OverlayFor(state, string(category))), nil
}

// Catalogue returns the workflow catalogue in use.
func (s *Service) Catalogue() *catalogue.Catalogue {
	return s.catalogue
}
