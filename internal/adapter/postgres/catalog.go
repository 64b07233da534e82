package postgres

import (
	"context"
	"fmt"

	"pgsieve/internal/core/domain"
	"pgsieve/internal/core/port"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Catalog reads table metadata from information_schema.
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

func (c *Catalog) ListTables(ctx context.Context) ([]string, error) {
	rows, err := c.pool.Query(ctx, queryListTables)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// DescribeTable returns the table's columns in ordinal position order.
// A table with no catalog rows does not exist: that is domain.ErrNotFound,
// distinct from an execution failure.
func (c *Catalog) DescribeTable(ctx context.Context, tableName string) ([]port.ColumnDescriptor, error) {
	rows, err := c.pool.Query(ctx, queryDescribeTable, tableName)
	if err != nil {
		return nil, fmt.Errorf("describing table %q: %w", tableName, err)
	}
	defer rows.Close()

	var cols []port.ColumnDescriptor
	for rows.Next() {
		var col port.ColumnDescriptor
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable, &col.Default, &col.MaxLength); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating columns: %w", err)
	}

	if len(cols) == 0 {
		return nil, fmt.Errorf("table %q %w", tableName, domain.ErrNotFound)
	}
	return cols, nil
}

// FullSchema returns every public table mapped to its ordered column list.
func (c *Catalog) FullSchema(ctx context.Context) (map[string][]port.SchemaColumn, error) {
	rows, err := c.pool.Query(ctx, queryFullSchema)
	if err != nil {
		return nil, fmt.Errorf("fetching schema: %w", err)
	}
	defer rows.Close()

	schema := make(map[string][]port.SchemaColumn)
	for rows.Next() {
		var table string
		var col port.SchemaColumn
		if err := rows.Scan(&table, &col.Column, &col.Type, &col.Nullable, &col.Default); err != nil {
			return nil, fmt.Errorf("scanning schema row: %w", err)
		}
		schema[table] = append(schema[table], col)
	}
	return schema, rows.Err()
}
