package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aozorakai/taxflow/internal/approval"
	"github.com/aozorakai/taxflow/internal/cleanup"
	"github.com/aozorakai/taxflow/internal/compliance"
	"github.com/aozorakai/taxflow/internal/config"
	"github.com/aozorakai/taxflow/internal/escalation"
	httpiface "github.com/aozorakai/taxflow/internal/interfaces/http"
	"github.com/aozorakai/taxflow/internal/notification"
	"github.com/aozorakai/taxflow/internal/repository"
	"github.com/aozorakai/taxflow/internal/worker"
	"github.com/aozorakai/taxflow/internal/workflow"
	"github.com/aozorakai/taxflow/pkg/database"
	"github.com/aozorakai/taxflow/pkg/utils"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env if present, before viper reads the environment
	_ = gotenv.Load()

	configPath := os.Getenv("TAXFLOW_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
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

	logger.Info("Starting tax workflow orchestration service",
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
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	definitionRepo := repository.NewDefinitionRepository(db.DB, logger)
	triggerRepo := repository.NewTriggerRepository(db.DB, logger)
	instanceRepo := repository.NewInstanceRepository(db.DB, logger)
	approvalRepo := repository.NewApprovalRepository(db.DB, logger)
	filingRepo := repository.NewFilingRepository(db.DB, logger)
	alertRepo := repository.NewAlertRepository(db.DB, logger)
	conversationRepo := repository.NewConversationRepository(db.DB, logger)
	notificationRepo := repository.NewNotificationRepository(db.DB, logger)

	// Notification outbox with the logging delivery channel
	dispatcher := notification.NewDispatcher(notificationRepo,
		notification.NewLogChannel(logger), logger)

	// Core services
	engine := workflow.NewEngine(db, definitionRepo, instanceRepo, logger)
	evaluator := workflow.NewEvaluator(triggerRepo, engine, cfg.Jobs.ScheduleWindow, logger)

	resolver := approval.NewChainResolver(
		cfg.Approval.ManagerThreshold, cfg.Approval.DirectorThreshold)
	approvalService := approval.NewService(approvalRepo, resolver, dispatcher, logger)

	calculator := compliance.NewCalculator(
		cfg.Compliance.PenaltyMonthlyRate, cfg.Compliance.MaxPenaltyRate)
	monitor := compliance.NewMonitor(filingRepo, alertRepo, calculator, dispatcher,
		cfg.Compliance.AlertThresholdDays, logger)

	escalator := escalation.NewEscalator(conversationRepo, escalation.NewRouter(),
		escalation.Thresholds{
			Urgent: cfg.Escalation.UrgentAfter,
			High:   cfg.Escalation.HighAfter,
			Medium: cfg.Escalation.MediumAfter,
			Low:    cfg.Escalation.LowAfter,
		}, dispatcher, logger)

	archiver := cleanup.NewArchiver(instanceRepo, approvalRepo, conversationRepo,
		filingRepo, cfg.Jobs.RetentionWindow, logger)

	// Background jobs
	manager := worker.NewManager(logger)
	runners := []*worker.Runner{
		worker.NewRunner(evaluator, cfg.Jobs.TriggerEvaluatorInterval, logger),
		worker.NewRunner(monitor, cfg.Jobs.ComplianceMonitorInterval, logger),
		worker.NewRunner(escalator, cfg.Jobs.EscalationInterval, logger),
		worker.NewRunner(archiver, cfg.Jobs.CleanupInterval, logger),
	}
	for _, r := range runners {
		manager.Register(r)
	}

	// HTTP surface
	handlers := httpiface.NewHandlers(engine, evaluator, approvalService, escalator,
		instanceRepo, filingRepo, conversationRepo, logger)
	for _, r := range runners {
		handlers.RegisterJob(r)
	}
	server := httpiface.NewServer(httpiface.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start background workers", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	cancel()
	manager.StopAll()

	logger.Info("Server exited")
}
