package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"pgsieve/internal/core/domain"
	"pgsieve/internal/core/port"
	"pgsieve/internal/core/service"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock Catalog ---

type mockCatalog struct {
	tables  []string
	columns []port.ColumnDescriptor
	schema  map[string][]port.SchemaColumn
	err     error
}

func (m *mockCatalog) ListTables(_ context.Context) ([]string, error) {
	return m.tables, m.err
}

func (m *mockCatalog) DescribeTable(_ context.Context, tableName string) ([]port.ColumnDescriptor, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.columns == nil {
		return nil, fmt.Errorf("table %q %w", tableName, domain.ErrNotFound)
	}
	return m.columns, nil
}

func (m *mockCatalog) FullSchema(_ context.Context) (map[string][]port.SchemaColumn, error) {
	return m.schema, m.err
}

// --- mock QueryExecutor ---

type mockExecutor struct {
	result  []map[string]any
	err     error
	called  bool
	lastSQL string
}

func (m *mockExecutor) Execute(_ context.Context, sql string, _ []any) ([]map[string]any, error) {
	m.called = true
	m.lastSQL = sql
	return m.result, m.err
}

// --- helpers ---

func callTool(t *testing.T, s *server.MCPServer, toolName string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	session := server.NewInProcessSession("test", nil)
	require.NoError(t, s.RegisterSession(ctx, session))
	sessionCtx := s.WithContext(ctx, session)

	// Initialize session.
	initBytes, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": "init", "method": "initialize",
		"params": map[string]any{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]any{"name": "test", "version": "1.0"},
		},
	})
	s.HandleMessage(sessionCtx, initBytes)

	// Call tool.
	reqBytes, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": "call-1", "method": "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": args,
		},
	})
	resp := s.HandleMessage(sessionCtx, reqBytes)
	respBytes, _ := json.Marshal(resp)

	var rpc struct {
		Result *mcp.CallToolResult       `json:"result"`
		Error  *struct{ Message string } `json:"error,omitempty"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &rpc))
	require.Nil(t, rpc.Error, "unexpected RPC error: %v", rpc.Error)
	require.NotNil(t, rpc.Result)
	return rpc.Result
}

func toolText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return ""
	}
	return tc.Text
}

func setupServer(catalog *mockCatalog, executor *mockExecutor) *server.MCPServer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	querySvc := service.NewQueryService(domain.NewQueryGate(), executor, nil, logger, nil, nil)
	catalogSvc := service.NewCatalogService(catalog)

	return NewServer("test", catalogSvc, querySvc, logger, nil, nil)
}

// --- run_query ---

func TestRunQuery_Success(t *testing.T) {
	executor := &mockExecutor{
		result: []map[string]any{
			{"id": float64(1), "name": "alice"},
			{"id": float64(2), "name": "bob"},
		},
	}
	s := setupServer(&mockCatalog{}, executor)

	result := callTool(t, s, "run_query", map[string]any{"sql": "SELECT * FROM users"})
	require.False(t, result.IsError)

	var payload struct {
		Success  bool             `json:"success"`
		Data     []map[string]any `json:"data"`
		RowCount int              `json:"row_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &payload))
	assert.True(t, payload.Success)
	assert.Equal(t, 2, payload.RowCount)
	require.Len(t, payload.Data, 2)
	assert.Equal(t, "alice", payload.Data[0]["name"])
}

func TestRunQuery_EmptyResult(t *testing.T) {
	executor := &mockExecutor{}
	s := setupServer(&mockCatalog{}, executor)

	result := callTool(t, s, "run_query", map[string]any{"sql": "SELECT * FROM users WHERE false"})
	require.False(t, result.IsError)

	text := toolText(result)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &payload))
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, float64(0), payload["row_count"])
	assert.NotNil(t, payload["data"], "data must be an empty array, not null")
}

func TestRunQuery_DeniedDrop(t *testing.T) {
	executor := &mockExecutor{}
	s := setupServer(&mockCatalog{}, executor)

	result := callTool(t, s, "run_query", map[string]any{"sql": "DROP TABLE users"})

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &payload))
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, "Only SELECT queries are allowed", payload["error"])
	_, hasRowCount := payload["row_count"]
	assert.False(t, hasRowCount, "row_count must be absent on denial")
	assert.False(t, executor.called, "executor must not be contacted on denial")
}

func TestRunQuery_DeniedCompound(t *testing.T) {
	executor := &mockExecutor{}
	s := setupServer(&mockCatalog{}, executor)

	result := callTool(t, s, "run_query", map[string]any{"sql": "SELECT 1; DELETE FROM users"})

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &payload))
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, "Query contains a disallowed keyword", payload["error"])
	assert.False(t, executor.called)
}

func TestRunQuery_ExecutionFailure(t *testing.T) {
	executor := &mockExecutor{
		err: &pgconn.PgError{Severity: "ERROR", Code: "42703", Message: `column "nope" does not exist`},
	}
	s := setupServer(&mockCatalog{}, executor)

	result := callTool(t, s, "run_query", map[string]any{"sql": "SELECT nope FROM users"})

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &payload))
	assert.Equal(t, false, payload["success"])
	assert.Contains(t, payload["error"], "does not exist")
}

func TestRunQuery_MissingSQL(t *testing.T) {
	s := setupServer(&mockCatalog{}, &mockExecutor{})

	result := callTool(t, s, "run_query", map[string]any{})
	assert.True(t, result.IsError)
}

func TestRunQuery_BadParamsShape(t *testing.T) {
	s := setupServer(&mockCatalog{}, &mockExecutor{})

	result := callTool(t, s, "run_query", map[string]any{
		"sql":    "SELECT 1",
		"params": "not-an-array",
	})
	assert.True(t, result.IsError)
}

// --- describe_table ---

func TestDescribeTable_Success(t *testing.T) {
	def := "nextval('users_id_seq')"
	maxLen := 255
	catalog := &mockCatalog{
		columns: []port.ColumnDescriptor{
			{Name: "id", DataType: "integer", IsNullable: "NO", Default: &def},
			{Name: "name", DataType: "character varying", IsNullable: "YES", MaxLength: &maxLen},
		},
	}
	s := setupServer(catalog, &mockExecutor{})

	result := callTool(t, s, "describe_table", map[string]any{"table_name": "users"})
	require.False(t, result.IsError)

	var payload struct {
		Success   bool             `json:"success"`
		TableName string           `json:"table_name"`
		Columns   []map[string]any `json:"columns"`
	}
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &payload))
	assert.True(t, payload.Success)
	assert.Equal(t, "users", payload.TableName)
	require.Len(t, payload.Columns, 2)
	// Ordinal order preserved.
	assert.Equal(t, "id", payload.Columns[0]["column_name"])
	assert.Equal(t, "name", payload.Columns[1]["column_name"])
	assert.Equal(t, float64(255), payload.Columns[1]["character_maximum_length"])
	assert.Nil(t, payload.Columns[0]["character_maximum_length"])
}

func TestDescribeTable_NotFound(t *testing.T) {
	s := setupServer(&mockCatalog{}, &mockExecutor{})

	result := callTool(t, s, "describe_table", map[string]any{"table_name": "ghosts"})

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &payload))
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, "Table 'ghosts' not found", payload["error"])
}

func TestDescribeTable_MissingName(t *testing.T) {
	s := setupServer(&mockCatalog{}, &mockExecutor{})

	result := callTool(t, s, "describe_table", map[string]any{})
	assert.True(t, result.IsError)
}

// --- list_tables ---

func TestListTables_Success(t *testing.T) {
	catalog := &mockCatalog{tables: []string{"categories", "products", "users"}}
	s := setupServer(catalog, &mockExecutor{})

	result := callTool(t, s, "list_tables", map[string]any{})
	require.False(t, result.IsError)

	var payload struct {
		Success bool     `json:"success"`
		Tables  []string `json:"tables"`
		Count   int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &payload))
	assert.True(t, payload.Success)
	assert.Equal(t, 3, payload.Count)
	assert.Equal(t, []string{"categories", "products", "users"}, payload.Tables)
}

func TestListTables_Failure(t *testing.T) {
	catalog := &mockCatalog{err: fmt.Errorf("connection refused")}
	s := setupServer(catalog, &mockExecutor{})

	result := callTool(t, s, "list_tables", map[string]any{})

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &payload))
	assert.Equal(t, false, payload["success"])
	assert.Contains(t, payload["error"], "connection refused")
}

// --- full_schema ---

func TestFullSchema_Success(t *testing.T) {
	catalog := &mockCatalog{
		schema: map[string][]port.SchemaColumn{
			"users": {
				{Column: "id", Type: "integer", Nullable: "NO"},
				{Column: "name", Type: "text", Nullable: "YES"},
			},
		},
	}
	s := setupServer(catalog, &mockExecutor{})

	result := callTool(t, s, "full_schema", map[string]any{})
	require.False(t, result.IsError)

	var payload map[string][]map[string]any
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &payload))
	require.Contains(t, payload, "users")
	require.Len(t, payload["users"], 2)
	assert.Equal(t, "id", payload["users"][0]["column"])
	assert.Equal(t, "name", payload["users"][1]["column"])
}

// --- explain_query ---

func TestExplainQuery_Success(t *testing.T) {
	executor := &mockExecutor{
		result: []map[string]any{{"QUERY PLAN": "Seq Scan on users"}},
	}
	s := setupServer(&mockCatalog{}, executor)

	result := callTool(t, s, "explain_query", map[string]any{"sql": "SELECT * FROM users"})
	require.False(t, result.IsError)
	assert.Equal(t, "EXPLAIN SELECT * FROM users", executor.lastSQL)
}

func TestExplainQuery_DeniedMutation(t *testing.T) {
	executor := &mockExecutor{}
	s := setupServer(&mockCatalog{}, executor)

	result := callTool(t, s, "explain_query", map[string]any{"sql": "UPDATE users SET a = 1"})

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &payload))
	assert.Equal(t, false, payload["success"])
	assert.False(t, executor.called)
}
