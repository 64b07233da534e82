package mcp

import (
	"log/slog"

	"pgsieve/internal/core/port"
	"pgsieve/internal/core/service"

	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"
)

// NewServer creates an MCPServer with tools, the schema resource, and
// logging hooks.
func NewServer(version string, catalog *service.CatalogService, query *service.QueryService, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithResourceCapabilities(false, false),
		server.WithHooks(ToolCallHooks(logger, tracer, inst)),
	)

	RegisterTools(s, catalog, query)
	RegisterResources(s, catalog)

	return s
}
