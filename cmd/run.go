package cmd

import (
	"context"
	"fmt"
	"time"

	"economy/bot"
	"economy/config"
	"economy/database"
	"economy/events"
	"economy/infrastructure"
	"economy/models"
	"economy/observability"
	"economy/repository"
	"economy/repository/memory"
	"economy/service"

	log "github.com/sirupsen/logrus"
)

// openStorage builds the unit of work factory for the configured driver.
// The returned close function releases the backing store.
func openStorage(ctx context.Context, cfg *config.Config, eventBus *events.Bus) (service.UnitOfWorkFactory, func(), error) {
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		log.Warn("Using in-memory storage, balances are lost on restart")
		store := memory.NewStore(memory.WithItems(models.DefaultCatalog()))
		return memory.NewUnitOfWorkFactory(store, eventBus), func() {}, nil

	case config.StorageDriverPostgres:
		log.Info("Connecting to database...")
		db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info("Database connection established successfully")

		if err := database.RunMigrationsWithURL(cfg.GetDatabaseURL()); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		if err := repository.SeedCatalog(ctx, db, models.DefaultCatalog()); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to seed item catalog: %w", err)
		}

		return repository.NewUnitOfWorkFactory(db, eventBus), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver: %s", cfg.StorageDriver)
	}
}

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Info("Starting economy bot...")

	// Load configuration
	cfg := config.Get()

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, keeping default")
	}

	// Initialize event bus
	eventBus := events.NewBus()

	uowFactory, closeStorage, err := openStorage(ctx, cfg, eventBus)
	if err != nil {
		return err
	}
	defer closeStorage()

	// Initialize metrics
	metrics := observability.NewMetricsProvider(cfg)
	if err := metrics.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	observability.RegisterEventHandlers(eventBus, metrics)

	// Forward events to NATS when configured
	var natsClient *infrastructure.NATSClient
	if cfg.NATSServers != "" {
		natsClient = infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		if err := natsClient.EnsureStream(infrastructure.EventStreamName, infrastructure.AllSubjects()); err != nil {
			natsClient.Close()
			return fmt.Errorf("failed to ensure event stream: %w", err)
		}
		forwarder := infrastructure.NewEventForwarder(natsClient, cfg.OTelServiceName, metrics.RecordNATSMessagePublished)
		forwarder.Register(eventBus)
	} else {
		log.Info("NATS_SERVERS not set, event forwarding disabled")
	}

	// Initialize services
	log.Info("Initializing services...")
	ledger := service.NewLedgerService(uowFactory, cfg)
	sessions := service.NewSessionStore(service.NewBetValidator(ledger), eventBus, cfg.BettingWindow)
	settlement := service.NewSettlementCoordinator(uowFactory, ledger, sessions, service.NewPayoutCalculator(nil))
	exchange := service.NewExchangeService(uowFactory, ledger)

	sweeper := service.NewSessionSweeper(sessions, settlement, cfg.SweepInterval)
	stopSweeper := sweeper.Start(ctx)
	log.Info("Services initialized successfully")

	// Initialize Discord bot
	log.Info("Initializing Discord bot...")
	botConfig := bot.Config{
		Token:        cfg.DiscordToken,
		GuildID:      cfg.DiscordGuildID,
		AdminUserIDs: cfg.AdminUserIDs,
	}
	discordBot, err := bot.New(botConfig, bot.Services{
		Ledger:     ledger,
		Sessions:   sessions,
		Settlement: settlement,
		Exchange:   exchange,
	}, eventBus)
	if err != nil {
		stopSweeper()
		return fmt.Errorf("failed to initialize Discord bot: %w", err)
	}
	log.Info("Discord bot initialized successfully")

	// Wait for context cancellation
	log.Infof("Bot is running in %s mode...", cfg.Environment)
	<-ctx.Done()

	// Cleanup resources
	log.Info("Shutting down bot...")

	if err := discordBot.Close(); err != nil {
		log.Errorf("Error closing Discord bot: %v", err)
	}

	stopSweeper()

	// Settle whatever expired while shutting down so no bet is left hanging
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if settled := sweeper.Sweep(shutdownCtx); settled > 0 {
		log.WithField("sessions", settled).Info("Settled expired sessions during shutdown")
	}
	if remaining := sessions.Count(); remaining > 0 {
		log.WithField("sessions", remaining).Warn("Open sessions discarded at shutdown")
	}

	if natsClient != nil {
		if err := natsClient.Close(); err != nil {
			log.Errorf("Error closing NATS connection: %v", err)
		}
	}

	if err := metrics.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Error shutting down metrics: %v", err)
	}

	log.Info("Shutdown completed")
	return nil
}
