package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"payment-reconciliation/internal/config"
	"payment-reconciliation/internal/database"
	"payment-reconciliation/internal/discrepancy"
	"payment-reconciliation/internal/feed"
	"payment-reconciliation/internal/handlers"
	"payment-reconciliation/internal/locker"
	"payment-reconciliation/internal/matching"
	"payment-reconciliation/internal/models"
	"payment-reconciliation/internal/reconciliation"
	"payment-reconciliation/internal/repositories"
)

func main() {
	migrateCmd := flag.String("migrate", "", "Migration command (up/down/version)")
	steps := flag.Int("steps", 0, "Number of migration steps (0 means all)")
	flag.Parse()

	logger := newLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Error loading config: %v", err)
	}
	if cfg.Environment == "development" {
		logger.SetLevel(logrus.DebugLevel)
	}

	if *migrateCmd != "" {
		handleMigration(cfg, logger, *migrateCmd, *steps)
		return
	}

	db, err := database.NewConnection(cfg, logger)
	if err != nil {
		logger.Fatalf("Error connecting to database: %v", err)
	}
	defer db.Close()

	runRepo := repositories.NewRunRepository(db)
	discRepo := repositories.NewDiscrepancyRepository(db)
	txFeed := feed.NewMySQLFeed(db)

	var runLocker locker.RunLocker
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		runLocker = locker.NewRedisLocker(rdb)
	} else {
		runLocker = locker.NewKeyedLocker()
	}

	matcher := matching.NewMatchEngine(matching.Config{
		ToleranceAmount:         cfg.Reconciliation.ToleranceAmount,
		TimeWindow:              cfg.Reconciliation.TimeWindow,
		AutoMatchScoreThreshold: cfg.Reconciliation.AutoMatchScoreThreshold,
	})
	classifier := discrepancy.NewClassifier(cfg.Reconciliation.HighPriorityAmountThreshold)
	service := reconciliation.NewService(txFeed, matcher, classifier, runRepo, discRepo, runLocker, logger)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      handlers.SetupRouter(runRepo, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Infof("Operational server is running on %s", cfg.ServerAddress)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runScheduler(rootCtx, cfg, service, logger)

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server shutdown failed: %v", err)
	}
	logger.Info("Worker exited gracefully")
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	logger.SetOutput(os.Stdout)
	return logger
}

// runScheduler reconciles each configured gateway once per interval over the
// period since the previous tick. Blocks until the context is done.
func runScheduler(ctx context.Context, cfg *config.Config, service *reconciliation.Service, logger *logrus.Logger) {
	if len(cfg.Worker.Gateways) == 0 {
		logger.Warn("No gateways configured; scheduler idle")
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(cfg.Worker.RunInterval)
	defer ticker.Stop()

	periodStart := time.Now().UTC().Add(-cfg.Worker.RunInterval)
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			periodEnd := tick.UTC()
			keys := make([]models.RunKey, 0, len(cfg.Worker.Gateways))
			for _, gateway := range cfg.Worker.Gateways {
				keys = append(keys, models.RunKey{
					Gateway:     gateway,
					PeriodStart: periodStart,
					PeriodEnd:   periodEnd,
				})
			}

			runCtx, cancel := context.WithTimeout(ctx, cfg.Worker.RunTimeout)
			outcomes := service.RunAll(runCtx, keys, cfg.Worker.InitiatedBy)
			cancel()

			for _, outcome := range outcomes {
				if outcome.Err != nil {
					logger.WithFields(logrus.Fields{
						"gateway": outcome.Key.Gateway,
					}).Errorf("reconciliation run failed: %v", outcome.Err)
				}
			}
			periodStart = periodEnd
		}
	}
}

func handleMigration(cfg *config.Config, logger *logrus.Logger, command string, steps int) {
	db, err := database.NewConnection(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to ensure database exists: %v", err)
	}
	db.Close()

	m, err := migrate.New(
		fmt.Sprintf("file://%s", cfg.Migration.Dir),
		cfg.GetMigrationDBURL(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "no change") {
			logger.Info("No migration changes to apply")
			return
		}
		logger.Fatalf("Failed to initialize migrate: %v", err)
	}
	defer m.Close()

	switch command {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case "version":
		version, dirty, verErr := m.Version()
		if verErr != nil {
			if verErr == migrate.ErrNilVersion {
				logger.Info("No migrations have been applied yet")
				return
			}
			logger.Fatalf("Failed to get version: %v", verErr)
		}
		logger.Infof("Current migration version: %d (dirty: %v)", version, dirty)
		return
	default:
		logger.Fatalf("Invalid migration command: %s", command)
	}

	if err != nil {
		if err == migrate.ErrNoChange {
			logger.Info("No migration changes to apply")
			return
		}
		logger.Fatalf("Migration failed: %v", err)
	}

	logger.Info("Migration completed successfully")
}
