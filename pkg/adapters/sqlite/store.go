// Package sqlite stores workflow checkpoints in a local SQLite database.
// It is the default backend for single-node deployments.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/mahi1722/ticketflow/internal/logging"
	"github.com/mahi1722/ticketflow/pkg/codec"
	"github.com/mahi1722/ticketflow/pkg/domain"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	instance_id TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	state       BLOB NOT NULL,
	updated_at  INTEGER NOT NULL
);`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=FULL",
	"PRAGMA busy_timeout=5000",
}

// Store implements ports.CheckpointStore on top of a sqlitex pool.
type Store struct {
	pool   *sqlitex.Pool
	codec  codec.Codec
	logger *slog.Logger
	path   string
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

// Open creates the database at path if needed and prepares the schema on
// every pooled connection. The caller must Close the store.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	s := &Store{codec: codec.JSON, logger: logging.NewNop(), path: path}
	for _, opt := range opts {
		opt(s)
	}

	poolSize := runtime.NumCPU()
	if poolSize < 4 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening %s: %w", path, err)
	}
	s.pool = pool
	s.logger.Info("checkpoint database opened", "path", path, "pool_size", poolSize)
	return s, nil
}

func prepareConnection(conn *sqlite.Conn) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return nil
}

// Save upserts the snapshot.
func (s *Store) Save(ctx context.Context, instanceID string, state *domain.State) error {
	data, err := s.codec.Marshal(state)
	if err != nil {
		return err
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite: save %s: %w", instanceID, err)
	}
	defer s.pool.Put(conn)

	const query = `
		INSERT INTO checkpoints (instance_id, status, state, updated_at)
		VALUES (?, ?, ?, unixepoch())
		ON CONFLICT (instance_id)
		DO UPDATE SET status = excluded.status, state = excluded.state, updated_at = excluded.updated_at`

	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{instanceID, string(state.Status), data},
	})
	if err != nil {
		return fmt.Errorf("sqlite: save %s: %w", instanceID, err)
	}
	return nil
}

// Load retrieves the snapshot.
func (s *Store) Load(ctx context.Context, instanceID string) (*domain.State, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load %s: %w", instanceID, err)
	}
	defer s.pool.Put(conn)

	var data []byte
	found := false
	err = sqlitex.Execute(conn, `SELECT state FROM checkpoints WHERE instance_id = ?`, &sqlitex.ExecOptions{
		Args: []any{instanceID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			data = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, data)
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: load %s: %w", instanceID, err)
	}
	if !found {
		return nil, domain.ErrInstanceNotFound
	}
	return s.codec.Unmarshal(data)
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, instanceID string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite: delete %s: %w", instanceID, err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM checkpoints WHERE instance_id = ?`, &sqlitex.ExecOptions{
		Args: []any{instanceID},
	})
	if err != nil {
		return fmt.Errorf("sqlite: delete %s: %w", instanceID, err)
	}
	return nil
}

// List returns every stored instance ID in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	defer s.pool.Put(conn)

	ids := []string{}
	err = sqlitex.Execute(conn, `SELECT instance_id FROM checkpoints ORDER BY instance_id`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			ids = append(ids, stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	return ids, nil
}

// Close closes every pooled connection.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("sqlite: closing %s: %w", s.path, err)
	}
	s.logger.Info("checkpoint database closed", "path", s.path)
	return nil
}
