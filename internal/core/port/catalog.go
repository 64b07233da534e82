package port

import "context"

// ColumnDescriptor mirrors one row of information_schema.columns for a
// table, in catalog ordinal position order. Nullable catalog fields stay
// pointers so absent values serialize as JSON null.
type ColumnDescriptor struct {
	Name       string  `json:"column_name"`
	DataType   string  `json:"data_type"`
	IsNullable string  `json:"is_nullable"`
	Default    *string `json:"column_default"`
	MaxLength  *int    `json:"character_maximum_length"`
}

// SchemaColumn is the compact per-column shape used by the full-schema view.
type SchemaColumn struct {
	Column   string  `json:"column"`
	Type     string  `json:"type"`
	Nullable string  `json:"nullable"`
	Default  *string `json:"default"`
}

// Catalog reads table metadata from the database catalog. Implementations
// must preserve ordinal position order for columns.
type Catalog interface {
	ListTables(ctx context.Context) ([]string, error)
	DescribeTable(ctx context.Context, tableName string) ([]ColumnDescriptor, error)
	FullSchema(ctx context.Context) (map[string][]SchemaColumn, error)
}
