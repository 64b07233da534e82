package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"pgsieve/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const schemaResourceURI = "postgres://schema"

// RegisterResources exposes the full database schema as a readable resource,
// sharing the catalog service with the full_schema tool.
func RegisterResources(s *server.MCPServer, catalog *service.CatalogService) {
	s.AddResource(
		mcp.NewResource(schemaResourceURI, "Database Schema",
			mcp.WithResourceDescription("Complete public schema: every table with its ordered columns"),
			mcp.WithMIMEType("application/json"),
		),
		schemaResourceHandler(catalog),
	)
}

func schemaResourceHandler(catalog *service.CatalogService) server.ResourceHandlerFunc {
	return func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		schema, err := catalog.FullSchema(ctx)
		if err != nil {
			return nil, fmt.Errorf("retrieving schema: %w", err)
		}

		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling schema: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      schemaResourceURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	}
}
