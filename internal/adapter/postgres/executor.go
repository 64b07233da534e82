package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Executor runs statements against the pool inside a read-only transaction.
// The transaction access mode is a server-side backstop behind the query
// gate: even a statement that slips past the lexical checks cannot mutate.
type Executor struct {
	pool           *pgxpool.Pool
	commandTimeout time.Duration
}

func NewExecutor(pool *pgxpool.Pool, commandTimeout time.Duration) *Executor {
	return &Executor{
		pool:           pool,
		commandTimeout: commandTimeout,
	}
}

// Execute runs sql with params bound positionally ($1, $2, ...). The command
// timeout applies both as a context deadline (so a stuck call releases its
// pool connection) and as a transaction-local statement_timeout (so
// PostgreSQL cancels server-side even if the context is cancelled first).
func (e *Executor) Execute(ctx context.Context, sql string, params []any) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, e.commandTimeout)
	defer cancel()

	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// SET LOCAL scopes to this transaction only — no global side effects.
	timeoutMS := e.commandTimeout.Milliseconds()
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%d'", timeoutMS)); err != nil {
		return nil, fmt.Errorf("setting statement timeout: %w", err)
	}

	rows, err := tx.Query(ctx, sql, params...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	results, err := rowsToMaps(rows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return results, nil
}
