package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pgsieve/internal/core/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type toolNameKey struct{}

// WithToolName returns a context carrying the MCP tool name for audit logging.
func WithToolName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, toolNameKey{}, name)
}

func toolNameFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(toolNameKey{}).(string); ok {
		return v
	}
	return ""
}

// QueryService orchestrates the query gate (domain) and execution
// (infrastructure). The gate runs first: a denied statement is never sent to
// the executor and its parameters are never bound.
type QueryService struct {
	gate     port.QueryGate
	executor port.QueryExecutor
	auditor  port.QueryAuditor
	logger   *slog.Logger
	tracer   trace.Tracer
	inst     port.Instrumentation
}

func NewQueryService(gate port.QueryGate, executor port.QueryExecutor, auditor port.QueryAuditor, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *QueryService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	if auditor == nil {
		auditor = port.NoopAuditor{}
	}
	return &QueryService{
		gate:     gate,
		executor: executor,
		auditor:  auditor,
		logger:   logger,
		tracer:   tracer,
		inst:     inst,
	}
}

// Execute checks the SQL against the gate and, if allowed, delegates to the
// executor with the parameters bound positionally.
func (s *QueryService) Execute(ctx context.Context, sql string, params []any) ([]map[string]any, error) {
	ctx, span := s.tracer.Start(ctx, "QueryService.Execute",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation.name", "query"),
			attribute.String("db.statement", sql),
		),
	)
	defer span.End()

	if err := s.gate.Check(sql); err != nil {
		s.logger.WarnContext(ctx, "query rejected by gate",
			slog.String("db.operation.name", "query"),
			slog.String("db.statement", sql),
			slog.String("error.type", "gate_denied"),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementQueryErrors(ctx)
		return nil, fmt.Errorf("gate: %w", err)
	}

	start := time.Now()
	results, err := s.executor.Execute(ctx, sql, params)
	durationMS := time.Since(start).Milliseconds()

	s.inst.RecordQueryDuration(ctx, float64(durationMS))

	s.auditor.Record(ctx, port.AuditEntry{
		Tool:         toolNameFromCtx(ctx),
		SQL:          sql,
		ParamCount:   len(params),
		RowsReturned: len(results),
		DurationMS:   durationMS,
		Err:          err,
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementQueryErrors(ctx)
		return nil, err
	}

	s.inst.IncrementQueryCount(ctx)
	span.SetAttributes(attribute.Int("db.response.rows", len(results)))

	return results, nil
}

// Explain gate-checks the bare SELECT and runs it under a trusted EXPLAIN
// prefix. The prefix is added after the gate decision, so gate semantics are
// identical to Execute.
func (s *QueryService) Explain(ctx context.Context, sql string, analyze bool) ([]map[string]any, error) {
	if err := s.gate.Check(sql); err != nil {
		s.logger.WarnContext(ctx, "explain rejected by gate",
			slog.String("db.statement", sql),
			slog.String("error.type", "gate_denied"),
		)
		s.inst.IncrementQueryErrors(ctx)
		return nil, fmt.Errorf("gate: %w", err)
	}

	prefix := "EXPLAIN "
	if analyze {
		prefix = "EXPLAIN ANALYZE "
	}

	start := time.Now()
	results, err := s.executor.Execute(ctx, prefix+sql, nil)
	durationMS := time.Since(start).Milliseconds()

	s.auditor.Record(ctx, port.AuditEntry{
		Tool:         toolNameFromCtx(ctx),
		SQL:          prefix + sql,
		RowsReturned: len(results),
		DurationMS:   durationMS,
		Err:          err,
	})

	if err != nil {
		s.inst.IncrementQueryErrors(ctx)
		return nil, err
	}
	s.inst.IncrementQueryCount(ctx)
	return results, nil
}
