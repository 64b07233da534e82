package port

import "context"

// QueryExecutor runs a SQL statement with positional parameters and returns
// the result rows as maps keyed by column name. Parameter binding happens in
// the adapter; SQL text is never interpolated.
type QueryExecutor interface {
	Execute(ctx context.Context, sql string, params []any) ([]map[string]any, error)
}

// QueryGate decides whether a SQL statement is allowed to execute.
type QueryGate interface {
	Check(sql string) error
}
