package service

import (
	"context"

	"pgsieve/internal/core/port"
)

// CatalogService exposes catalog metadata reads. The tools behind it only
// touch information_schema, so no gating applies.
type CatalogService struct {
	catalog port.Catalog
}

func NewCatalogService(catalog port.Catalog) *CatalogService {
	return &CatalogService{catalog: catalog}
}

func (s *CatalogService) ListTables(ctx context.Context) ([]string, error) {
	return s.catalog.ListTables(ctx)
}

func (s *CatalogService) DescribeTable(ctx context.Context, tableName string) ([]port.ColumnDescriptor, error) {
	return s.catalog.DescribeTable(ctx, tableName)
}

func (s *CatalogService) FullSchema(ctx context.Context) (map[string][]port.SchemaColumn, error) {
	return s.catalog.FullSchema(ctx)
}
