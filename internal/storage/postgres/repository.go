package postgres

import (
	"context"
	"fmt"

	"github.com/Togather-Foundation/datastudy/internal/domain/records"
	"github.com/Togather-Foundation/datastudy/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ storage.Repository = (*Repository)(nil)

// Repository implements storage.Repository with a PostgreSQL backend.
// The zero tx means every operation acquires its own connection from the pool.
type Repository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

// NewRepository creates a new PostgreSQL-backed repository
func NewRepository(pool *pgxpool.Pool) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	return &Repository{pool: pool}, nil
}

// Pool exposes the underlying pool for health checks and metrics.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

func (r *Repository) Records() records.Repository {
	return &RecordRepository{db: r}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// MigrationState reports the schema version recorded by golang-migrate.
func (r *Repository) MigrationState(ctx context.Context) (version int64, dirty bool, err error) {
	err = r.pool.QueryRow(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if err != nil {
		return 0, false, fmt.Errorf("query schema_migrations: %w", err)
	}
	return version, dirty, nil
}

// WithTx runs fn inside a single transaction. Nested calls reuse the outer transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, storage.Repository) error) error {
	return r.withTx(ctx, func(ctx context.Context, tx *Repository) error {
		return fn(ctx, tx)
	})
}

// withTx commits when fn succeeds and rolls back on every other exit path. Record
// mutations go through here too, so a store operation and its enclosing WithTx
// share one transaction.
func (r *Repository) withTx(ctx context.Context, fn func(context.Context, *Repository) error) error {
	if r.tx != nil {
		return fn(ctx, r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &Repository{pool: r.pool, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}
