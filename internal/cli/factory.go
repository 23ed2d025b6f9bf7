// Package cli wires configuration into a running ticketflow Service and
// implements the command bodies of cmd/ticketflow.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mahi1722/ticketflow"
	"github.com/mahi1722/ticketflow/internal/adapters/file"
	"github.com/mahi1722/ticketflow/internal/config"
	"github.com/mahi1722/ticketflow/internal/logging"
	"github.com/mahi1722/ticketflow/pkg/adapters/llm"
	"github.com/mahi1722/ticketflow/pkg/adapters/memory"
	"github.com/mahi1722/ticketflow/pkg/adapters/postgres"
	"github.com/mahi1722/ticketflow/pkg/adapters/process"
	"github.com/mahi1722/ticketflow/pkg/adapters/redis"
	"github.com/mahi1722/ticketflow/pkg/adapters/servicenow"
	"github.com/mahi1722/ticketflow/pkg/adapters/sqlite"
	"github.com/mahi1722/ticketflow/pkg/catalogue"
	"github.com/mahi1722/ticketflow/pkg/codec"
	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/mahi1722/ticketflow/pkg/observability"
	"github.com/mahi1722/ticketflow/pkg/persistence/middleware"
	"github.com/mahi1722/ticketflow/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// BuildOptions selects the collaborators of a Runtime.
type BuildOptions struct {
	// DryRun replaces the Action Runner and the Ticket Store with in-memory fakes.
	DryRun bool
	// DecisionScript replays canned decisions from a YAML file instead of
	// calling the model.
	DecisionScript string
}

// Runtime is a fully wired Service plus the resources it owns.
type Runtime struct {
	Service *ticketflow.Service
	Store   ports.CheckpointStore
	Tickets ports.TicketStore
	Metrics *prometheus.Registry
	Logger  *slog.Logger
	Config  *config.Config
	closers []func() error
	closed  bool
}

// NewLogger builds the application logger from cfg.
func NewLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.ParseLevel(cfg.Logger.Level), cfg.Logger.Format)
}

// Build wires a Runtime from cfg. Callers must Close it.
func Build(ctx context.Context, cfg *config.Config, opts BuildOptions) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rt := &Runtime{
		Logger:  NewLogger(cfg),
		Config:  cfg,
		Metrics: prometheus.NewRegistry(),
	}
	if err := rt.build(ctx, opts); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) build(ctx context.Context, opts BuildOptions) error {
	cfg := rt.Config

	cat, err := LoadCatalogue(cfg.Engine.CataloguePath)
	if err != nil {
		return err
	}

	store, locker, err := rt.openStore(ctx)
	if err != nil {
		return err
	}
	rt.Store = store

	maker, err := rt.decisionMaker(opts)
	if err != nil {
		return err
	}
	runner, tickets, err := rt.effectors(opts)
	if err != nil {
		return err
	}
	rt.Tickets = tickets

	rt.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(rt.Metrics)

	svcOpts := []ticketflow.Option{
		ticketflow.WithLogger(rt.Logger),
		ticketflow.WithRecursionLimit(cfg.Engine.RecursionLimit),
		ticketflow.WithReassignmentGroup(cfg.Engine.ReassignmentGroup),
		ticketflow.WithLifecycleHooks(metrics.Hooks()),
		ticketflow.WithLifecycleHooks(observability.AuditHooks(rt.Logger)),
	}
	if locker != nil {
		svcOpts = append(svcOpts, ticketflow.WithDistributedLocker(locker, time.Duration(cfg.Redis.LockTTLSeconds)*time.Second))
	}
	archive, err := openArchive(cfg.Store)
	if err != nil {
		return err
	}
	if archive != nil {
		svcOpts = append(svcOpts, ticketflow.WithArchive(archive))
	}

	rt.Service, err = ticketflow.New(ticketflow.Dependencies{
		Store:         store,
		DecisionMaker: maker,
		Runner:        runner,
		Tickets:       tickets,
		Catalogue:     cat,
	}, svcOpts...)
	return err
}

// LoadCatalogue reads the catalogue at path, or the built-in one when path is empty.
func LoadCatalogue(path string) (*catalogue.Catalogue, error) {
	if path == "" {
		return catalogue.Default(), nil
	}
	return catalogue.Load(path)
}

// openStore opens the checkpoint backend and wraps it with the configured
// middlewares. The locker is non-nil only for Redis with locking enabled.
func (rt *Runtime) openStore(ctx context.Context) (ports.CheckpointStore, ports.DistributedLocker, error) {
	cfg := rt.Config
	c, err := codec.ByName(cfg.Store.Codec)
	if err != nil {
		return nil, nil, err
	}

	var (
		store  ports.CheckpointStore
		locker ports.DistributedLocker
	)
	switch cfg.Store.Backend {
	case "memory":
		store = memory.NewStore()
	case "file":
		store = file.New(cfg.Store.Dir, file.WithCodec(c))
	case "redis":
		rs := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(time.Duration(cfg.Redis.TTLSeconds)*time.Second),
			redis.WithCodec(c),
		)
		rt.closers = append(rt.closers, rs.Close)
		if cfg.Redis.Locking {
			locker = redis.NewLocker(rs.Client(), cfg.Redis.Prefix)
		}
		store = rs
	case "postgres":
		pool, err := postgres.Connect(ctx, postgres.PoolConfig{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleSec) * time.Second,
			MaxConnLifetime: time.Duration(cfg.Postgres.ConnMaxLifeSec) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		rt.closers = append(rt.closers, func() error { pool.Close(); return nil })
		ps := postgres.New(pool, postgres.WithCodec(c), postgres.WithLogger(rt.Logger))
		if cfg.Postgres.RunMigrations {
			if err := ps.Migrate(ctx); err != nil {
				return nil, nil, err
			}
		}
		store = ps
	case "sqlite":
		ss, err := sqlite.Open(cfg.Store.SQLitePath, sqlite.WithCodec(c), sqlite.WithLogger(rt.Logger))
		if err != nil {
			return nil, nil, err
		}
		rt.closers = append(rt.closers, ss.Close)
		store = ss
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	var mws []middleware.Middleware
	if cfg.Store.Compress {
		compress, err := middleware.NewCompressionMiddleware()
		if err != nil {
			return nil, nil, err
		}
		mws = append(mws, compress)
	}
	if cfg.Store.EncryptionKey != "" {
		active, fallback, err := cfg.Store.Keys()
		if err != nil {
			return nil, nil, err
		}
		encrypt, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
		if err != nil {
			return nil, nil, err
		}
		mws = append(mws, encrypt)
	}
	return middleware.Chain(store, mws...), locker, nil
}

// openArchive returns a PII-masking file store for terminated instances,
// or nil when archiving is disabled.
func openArchive(cfg config.StoreConfig) (ports.CheckpointStore, error) {
	if cfg.ArchiveDir == "" {
		return nil, nil
	}
	patterns := cfg.PIIPatterns
	if len(patterns) == 0 {
		patterns = middleware.DefaultPIIPatterns
	}
	mask, err := middleware.NewPIIMiddleware(patterns)
	if err != nil {
		return nil, err
	}
	return middleware.Chain(file.New(cfg.ArchiveDir), mask), nil
}

func (rt *Runtime) decisionMaker(opts BuildOptions) (ports.DecisionMaker, error) {
	if opts.DecisionScript != "" {
		return LoadDecisionScript(opts.DecisionScript)
	}
	cfg := rt.Config.LLM
	if cfg.APIKey == "" {
		return nil, errors.New("no decision maker: set LLM_API_KEY or pass a decision script")
	}
	return llm.New(cfg.APIKey,
		llm.WithBaseURL(cfg.BaseURL),
		llm.WithModel(cfg.Model),
		llm.WithTemperature(cfg.Temperature),
		llm.WithJSONMode(cfg.JSONMode),
		llm.WithLogger(rt.Logger),
	), nil
}

// effectors returns the collaborators with side effects outside ticketflow.
func (rt *Runtime) effectors(opts BuildOptions) (ports.ActionRunner, ports.TicketStore, error) {
	if opts.DryRun {
		return memory.NewActionRunner(), memory.NewTicketStore(), nil
	}

	runnerCfg, err := process.LoadConfig(rt.Config.Runner.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	runner := process.NewRunner(runnerCfg, process.WithLogger(rt.Logger))

	sn := rt.Config.ServiceNow
	if sn.BaseURL == "" {
		return nil, nil, errors.New("no ticket store: set SERVICENOW_URL or use --dry-run")
	}
	tickets := servicenow.New(sn.BaseURL,
		servicenow.WithTable(sn.Table),
		servicenow.WithBasicAuth(sn.Username, sn.Password),
		servicenow.WithStateValue(domain.TicketStateResolved, sn.ResolvedState),
		servicenow.WithLogger(rt.Logger),
	)
	return runner, tickets, nil
}

// Close releases the backends opened by Build, in reverse order.
func (rt *Runtime) Close() error {
	if rt.closed {
		return nil
	}
	rt.closed = true
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	return errors.Join(errs...)
}

// OpenInspector wires a Service over the configured store for commands that
// read or delete instances but never run workflows. Its decision maker has
// no scripted answers, so Handle fails cleanly if it is ever called.
func OpenInspector(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{Logger: NewLogger(cfg), Config: cfg}
	if err := rt.inspector(ctx); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) inspector(ctx context.Context) error {
	cat, err := LoadCatalogue(rt.Config.Engine.CataloguePath)
	if err != nil {
		return err
	}
	store, _, err := rt.openStore(ctx)
	if err != nil {
		return err
	}
	rt.Store = store
	rt.Tickets = memory.NewTicketStore()
	rt.Service, err = ticketflow.New(ticketflow.Dependencies{
		Store:         store,
		DecisionMaker: memory.NewDecisionMaker(),
		Runner:        memory.NewActionRunner(),
		Tickets:       rt.Tickets,
		Catalogue:     cat,
	}, ticketflow.WithLogger(rt.Logger))
	return err
}
