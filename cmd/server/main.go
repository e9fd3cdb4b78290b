package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/jmwangi/schoolflow/internal/application/process"
	appwf "github.com/jmwangi/schoolflow/internal/application/workflow"
	"github.com/jmwangi/schoolflow/internal/config"
	"github.com/jmwangi/schoolflow/internal/infrastructure/persistence/repository"
	"github.com/jmwangi/schoolflow/internal/infrastructure/persistence/sqlite"
	httpserver "github.com/jmwangi/schoolflow/internal/interfaces/http"
	"github.com/jmwangi/schoolflow/pkg/database"
	"github.com/jmwangi/schoolflow/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	// Local overrides from .env, ignored when absent
	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting school workflow service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Persistence
	txManager := sqlite.NewDB(db.DB, logger)
	instanceRepo := repository.NewInstanceRepository(db.DB, logger)
	historyRepo := repository.NewHistoryRepository(db.DB, logger)
	inventoryRepo := repository.NewInventoryRepository(db.DB, logger)
	roleRepo := repository.NewRoleRepository(db.DB, logger)
	actionLog := repository.NewActionLogRepository(db.DB, logger)

	// Workflow engine with every process graph registered. Graph validation
	// runs here, so a malformed graph fails startup rather than a request.
	registry := appwf.NewRegistry()
	process.RegisterAll(registry)
	engine := appwf.NewEngine(registry, instanceRepo, historyRepo, txManager, logger)

	services := httpserver.Services{
		Disposal:     process.NewDisposalService(engine, inventoryRepo, roleRepo, txManager, logger),
		Procurement:  process.NewProcurementService(engine, inventoryRepo, roleRepo, txManager, logger),
		Transfer:     process.NewTransferService(engine, inventoryRepo, txManager, logger),
		Audit:        process.NewAuditService(engine, inventoryRepo, txManager, cfg.Workflow.VarianceThreshold, logger),
		TermSchedule: process.NewTermScheduleService(engine, logger),
		Timetable:    process.NewTimetableService(engine, logger),
	}

	httpLogger := &zapLoggerAdapter{logger: logger}
	handlers := httpserver.NewHandlers(engine, actionLog, httpserver.PageConfig{
		Default: cfg.Workflow.DefaultPageSize,
		Max:     cfg.Workflow.MaxPageSize,
	}, httpLogger)

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, services, httpLogger)

	// Serve until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

// zapLoggerAdapter adapts zap.Logger to the http server's Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
