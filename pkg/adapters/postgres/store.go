// Package postgres stores workflow checkpoints in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mahi1722/ticketflow/internal/logging"
	"github.com/mahi1722/ticketflow/pkg/codec"
	"github.com/mahi1722/ticketflow/pkg/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS workflow_checkpoints (
	instance_id TEXT PRIMARY KEY,
	status      TEXT        NOT NULL,
	state       BYTEA       NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PoolConfig tunes the connection pool. Zero values keep pgx defaults.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
	MaxConnLifetime time.Duration
}

// Connect opens and pings a pgx pool.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres: DSN is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// Store implements ports.CheckpointStore on a workflow_checkpoints table.
type Store struct {
	pool   *pgxpool.Pool
	codec  codec.Codec
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithCodec selects the encoding of the state column. JSON is the default.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) {
		s.codec = c
	}
}

// WithLogger configures a logger for the Store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store on an open pool. Call Migrate before first use.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, codec: codec.JSON, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates the checkpoint table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: apply schema: %w", err)
	}
	s.logger.Info("checkpoint schema ready")
	return nil
}

// Save upserts the snapshot.
func (s *Store) Save(ctx context.Context, instanceID string, state *domain.State) error {
	data, err := s.codec.Marshal(state)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO workflow_checkpoints (instance_id, status, state, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (instance_id)
		DO UPDATE SET status = EXCLUDED.status, state = EXCLUDED.state, updated_at = now()`

	if _, err := s.pool.Exec(ctx, query, instanceID, string(state.Status), data); err != nil {
		return fmt.Errorf("postgres: save %s: %w", instanceID, err)
	}
	return nil
}

// Load retrieves the snapshot.
func (s *Store) Load(ctx context.Context, instanceID string) (*domain.State, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM workflow_checkpoints WHERE instance_id = $1`, instanceID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInstanceNotFound
		}
		return nil, fmt.Errorf("postgres: load %s: %w", instanceID, err)
	}
	return s.codec.Unmarshal(data)
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, instanceID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM workflow_checkpoints WHERE instance_id = $1`, instanceID); err != nil {
		return fmt.Errorf("postgres: delete %s: %w", instanceID, err)
	}
	return nil
}

// List returns every stored instance ID.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT instance_id FROM workflow_checkpoints ORDER BY instance_id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	return ids, nil
}
