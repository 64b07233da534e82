package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pgsieve/internal/core/domain"
	"pgsieve/internal/core/port"
	"pgsieve/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server metadata
const serverName = "pgsieve"

// Tool descriptions
const (
	descRunQuery = "Execute a read-only SQL query against the PostgreSQL database. " +
		"Only SELECT statements are allowed; mutating statements are rejected before execution. " +
		"Supports positional parameters ($1, $2, ...) via the params argument. " +
		"Returns {success, data, row_count} on success or {success: false, error} on failure."

	descRunQuerySQL    = "SQL query to execute (SELECT statements only)"
	descRunQueryParams = "Optional ordered list of parameters bound to $1, $2, ..."

	descDescribeTable = "Get the schema of a specific table: column names, data types, nullability, " +
		"defaults, and maximum character lengths, in column order. " +
		"Use this before writing queries against an unfamiliar table."

	descDescribeTableParam = "Name of the table to describe"

	descListTables = "List all tables in the public schema of the current database."

	descFullSchema = "Get the complete public schema as a JSON object mapping each table name " +
		"to its ordered list of columns ({column, type, nullable, default})."

	descExplainQuery = "Show the PostgreSQL execution plan for a SELECT query. " +
		"Supports ANALYZE to include actual execution statistics (the query WILL be executed)."

	descExplainQuerySQL = "The SELECT query to explain (without the EXPLAIN keyword)"
)

// Structured response envelopes. Every tool outcome, including failures, is
// an in-band JSON payload with a success flag.
type queryResult struct {
	Success  bool             `json:"success"`
	Data     []map[string]any `json:"data"`
	RowCount int              `json:"row_count"`
}

type errorResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type tableSchemaResult struct {
	Success   bool                    `json:"success"`
	TableName string                  `json:"table_name"`
	Columns   []port.ColumnDescriptor `json:"columns"`
}

type tableListResult struct {
	Success bool     `json:"success"`
	Tables  []string `json:"tables"`
	Count   int      `json:"count"`
}

func RegisterTools(s *server.MCPServer, catalog *service.CatalogService, query *service.QueryService) {
	s.AddTool(
		mcp.NewTool("run_query",
			mcp.WithDescription(descRunQuery),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description(descRunQuerySQL),
			),
			mcp.WithArray("params",
				mcp.Description(descRunQueryParams),
			),
		),
		runQueryHandler(query),
	)

	s.AddTool(
		mcp.NewTool("describe_table",
			mcp.WithDescription(descDescribeTable),
			mcp.WithString("table_name",
				mcp.Required(),
				mcp.Description(descDescribeTableParam),
			),
		),
		describeTableHandler(catalog),
	)

	s.AddTool(
		mcp.NewTool("list_tables",
			mcp.WithDescription(descListTables),
		),
		listTablesHandler(catalog),
	)

	s.AddTool(
		mcp.NewTool("full_schema",
			mcp.WithDescription(descFullSchema),
		),
		fullSchemaHandler(catalog),
	)

	s.AddTool(
		mcp.NewTool("explain_query",
			mcp.WithDescription(descExplainQuery),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description(descExplainQuerySQL),
			),
			mcp.WithBoolean("analyze",
				mcp.Description("Include actual execution statistics (executes the query). Defaults to false."),
			),
		),
		explainQueryHandler(query),
	)
}

// resultJSON marshals v into a text tool result.
func resultJSON(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// errorJSON builds the in-band {success: false, error} payload.
func errorJSON(msg string) *mcp.CallToolResult {
	return resultJSON(errorResult{Success: false, Error: msg})
}

// gateReason maps gate sentinel errors to the caller-facing denial reason.
func gateReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotSelect):
		return "Only SELECT queries are allowed"
	case errors.Is(err, domain.ErrUnsafeKeyword):
		return "Query contains a disallowed keyword"
	default:
		return err.Error()
	}
}

func isGateError(err error) bool {
	return errors.Is(err, domain.ErrNotSelect) || errors.Is(err, domain.ErrUnsafeKeyword)
}

func runQueryHandler(query *service.QueryService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok || sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		var params []any
		if raw, present := request.GetArguments()["params"]; present && raw != nil {
			params, ok = raw.([]any)
			if !ok {
				return mcp.NewToolResultError("params must be an array"), nil
			}
		}

		ctx = service.WithToolName(ctx, "run_query")
		results, err := query.Execute(ctx, sql, params)
		if err != nil {
			if isGateError(err) {
				return errorJSON(gateReason(err)), nil
			}
			return errorJSON(err.Error()), nil
		}

		if results == nil {
			results = []map[string]any{}
		}
		return resultJSON(queryResult{
			Success:  true,
			Data:     results,
			RowCount: len(results),
		}), nil
	}
}

func describeTableHandler(catalog *service.CatalogService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tableName, ok := request.GetArguments()["table_name"].(string)
		if !ok || tableName == "" {
			return mcp.NewToolResultError("table_name is required"), nil
		}

		columns, err := catalog.DescribeTable(ctx, tableName)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return errorJSON(fmt.Sprintf("Table '%s' not found", tableName)), nil
			}
			return errorJSON(err.Error()), nil
		}

		return resultJSON(tableSchemaResult{
			Success:   true,
			TableName: tableName,
			Columns:   columns,
		}), nil
	}
}

func listTablesHandler(catalog *service.CatalogService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables, err := catalog.ListTables(ctx)
		if err != nil {
			return errorJSON(err.Error()), nil
		}

		if tables == nil {
			tables = []string{}
		}
		return resultJSON(tableListResult{
			Success: true,
			Tables:  tables,
			Count:   len(tables),
		}), nil
	}
}

func fullSchemaHandler(catalog *service.CatalogService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		schema, err := catalog.FullSchema(ctx)
		if err != nil {
			return errorJSON(err.Error()), nil
		}
		return resultJSON(schema), nil
	}
}

func explainQueryHandler(query *service.QueryService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok || sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		analyze, _ := request.GetArguments()["analyze"].(bool)

		ctx = service.WithToolName(ctx, "explain_query")
		results, err := query.Explain(ctx, sql, analyze)
		if err != nil {
			if isGateError(err) {
				return errorJSON(gateReason(err)), nil
			}
			return errorJSON(err.Error()), nil
		}

		if results == nil {
			results = []map[string]any{}
		}
		return resultJSON(queryResult{
			Success:  true,
			Data:     results,
			RowCount: len(results),
		}), nil
	}
}
