package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pgsieve/internal/adapter/mcp"
	"pgsieve/internal/adapter/postgres"
	"pgsieve/internal/audit"
	"pgsieve/internal/config"
	"pgsieve/internal/core/domain"
	"pgsieve/internal/core/port"
	"pgsieve/internal/core/service"
	"pgsieve/internal/telemetry"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

// rootFlags collects flag storage; pointers go into config.Overrides only
// for flags the user actually set.
type rootFlags struct {
	databaseURL    string
	host           string
	port           int
	user           string
	password       string
	database       string
	poolMinConns   int32
	poolMaxConns   int32
	commandTimeout time.Duration
	logLevel       string
	configFile     string
	auditLog       string
	otelEnabled    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "pgsieve",
		Short:         "Read-only PostgreSQL MCP server",
		Long:          "pgsieve serves read-only SQL query and schema inspection tools over MCP stdio,\nguarding every query behind a lexical keyword gate.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(buildOverrides(cmd, flags))
		},
	}

	cmd.Flags().StringVar(&flags.databaseURL, "database-url", "", "connection string (overrides the discrete connection flags)")
	cmd.Flags().StringVar(&flags.host, "host", "", "database host (default: localhost)")
	cmd.Flags().IntVar(&flags.port, "port", 0, "database port (default: 5432)")
	cmd.Flags().StringVar(&flags.user, "user", "", "database user (default: postgres)")
	cmd.Flags().StringVar(&flags.password, "password", "", "database password (default: postgres)")
	cmd.Flags().StringVar(&flags.database, "database", "", "database name (default: postgres)")
	cmd.Flags().Int32Var(&flags.poolMinConns, "pool-min-conns", 0, "minimum pool connections (default: 1)")
	cmd.Flags().Int32Var(&flags.poolMaxConns, "pool-max-conns", 0, "maximum pool connections (default: 10)")
	cmd.Flags().DurationVar(&flags.commandTimeout, "command-timeout", 0, "per-query execution timeout (default: 60s)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error (default: info)")
	cmd.Flags().StringVar(&flags.configFile, "config", "", "path to YAML config file")
	cmd.Flags().StringVar(&flags.auditLog, "audit-log", "", "path to NDJSON audit log file")
	cmd.Flags().BoolVar(&flags.otelEnabled, "otel", false, "enable OpenTelemetry tracing and metrics")

	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pgsieve version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pgsieve %s\n", version)
		},
	}
}

func buildOverrides(cmd *cobra.Command, flags *rootFlags) config.Overrides {
	o := config.Overrides{
		OTelEnabled: flags.otelEnabled,
		AuditLog:    flags.auditLog,
	}
	if cmd.Flags().Changed("database-url") {
		o.DatabaseURL = &flags.databaseURL
	}
	if cmd.Flags().Changed("host") {
		o.Host = &flags.host
	}
	if cmd.Flags().Changed("port") {
		o.Port = &flags.port
	}
	if cmd.Flags().Changed("user") {
		o.User = &flags.user
	}
	if cmd.Flags().Changed("password") {
		o.Password = &flags.password
	}
	if cmd.Flags().Changed("database") {
		o.Database = &flags.database
	}
	if cmd.Flags().Changed("pool-min-conns") {
		o.PoolMinConns = &flags.poolMinConns
	}
	if cmd.Flags().Changed("pool-max-conns") {
		o.PoolMaxConns = &flags.poolMaxConns
	}
	if cmd.Flags().Changed("command-timeout") {
		o.CommandTimeout = &flags.commandTimeout
	}
	if cmd.Flags().Changed("log-level") {
		o.LogLevel = &flags.logLevel
	}
	if cmd.Flags().Changed("config") {
		o.ConfigFile = &flags.configFile
	}
	return o
}

func run(overrides config.Overrides) error {
	cfg, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr — stdout is reserved for the MCP stdio transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	logger.Info("starting pgsieve",
		slog.String("version", version),
		slog.String("log_level", cfg.LogLevel.String()),
		slog.String("db.name", cfg.Database),
		slog.Int("pool_min_conns", int(cfg.PoolMinConns)),
		slog.Int("pool_max_conns", int(cfg.PoolMaxConns)),
		slog.String("command_timeout", cfg.CommandTimeout.String()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Observability (optional).
	tracer := telemetry.NoopTracer()
	var inst port.Instrumentation = port.NoopInstrumentation{}
	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, "pgsieve", version)
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
			}
		}()
		tracer = otel.Tracer("pgsieve")
		inst = telemetry.NewInstruments()
		logger.Info("telemetry enabled")
	}

	pool, err := postgres.NewPool(ctx, cfg.DSN(), cfg.PoolMinConns, cfg.PoolMaxConns)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	logger.Info("database pool connected", slog.String("db.system", "postgresql"))

	// Audit (optional).
	var auditor port.QueryAuditor = port.NoopAuditor{}
	if cfg.AuditLog != "" {
		fa, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer func() { _ = fa.Close() }()
		auditor = fa
		logger.Info("audit log enabled", slog.String("file", cfg.AuditLog))
	}

	// Adapters
	executor := postgres.NewExecutor(pool, cfg.CommandTimeout)
	catalog := postgres.NewCatalog(pool)

	// Domain
	gate := domain.NewQueryGate()

	// Services
	catalogSvc := service.NewCatalogService(catalog)
	querySvc := service.NewQueryService(gate, executor, auditor, logger, tracer, inst)

	// MCP server with tool handlers.
	mcpServer := mcp.NewServer(version, catalogSvc, querySvc, logger, tracer, inst)

	// Run MCP over stdio (stdin/stdout).
	stdioServer := mcpserver.NewStdioServer(mcpServer)

	logger.Info("serving MCP over stdio")
	if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil {
		return fmt.Errorf("stdio server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
