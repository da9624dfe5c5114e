// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/javajoker/eshop-backend/internal/config"
	"github.com/javajoker/eshop-backend/internal/database"
	"github.com/javajoker/eshop-backend/internal/handlers"
	"github.com/javajoker/eshop-backend/internal/i18n"
	"github.com/javajoker/eshop-backend/internal/repository"
	"github.com/javajoker/eshop-backend/internal/router"
	"github.com/javajoker/eshop-backend/internal/services"
	"github.com/javajoker/eshop-backend/internal/telemetry"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logrus.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "eshop",
		Short:         "eshop backend API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newCreateAdminCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Driver != "postgres" {
				return fmt.Errorf("migrate requires the postgres driver, got %q", cfg.Database.Driver)
			}

			db, err := database.Initialize(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer database.Close(db)

			return database.RunMigrations(db)
		},
	}
}

func newCreateAdminCommand() *cobra.Command {
	var req services.CreateAdminRequest

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator or promote an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, db, err := openStore(cfg)
			if err != nil {
				return err
			}
			if db != nil {
				defer database.Close(db)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			admin, err := services.NewUserService(store).CreateAdmin(ctx, &req)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "administrator %s (%s) ready\n", admin.Email, admin.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "Administrator email")
	cmd.Flags().StringVar(&req.Password, "password", "", "Administrator password")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "Admin", "First name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "Last name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	if cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(logrus.DebugLevel)
}

// openStore returns the configured datastore. db is nil for the memory driver.
func openStore(cfg *config.Config) (repository.Store, *gorm.DB, error) {
	if cfg.Database.Driver == "memory" {
		logrus.Warn("Using the in-memory datastore, data is lost on exit")
		return repository.NewMemoryStore(), nil, nil
	}

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return repository.NewGormStore(db), db, nil
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Initialize i18n
	if err := i18n.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize i18n: %w", err)
	}

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logrus.WithError(err).Warn("Failed to flush traces")
		}
	}()

	store, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	checks := map[string]handlers.HealthCheck{}
	if db != nil {
		defer database.Close(db)

		// Run database migrations
		if err := database.RunMigrations(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}

	var ledger services.EventLedger = services.NoopEventLedger{}
	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			logrus.WithError(err).Warn("Redis unreachable, webhook dedupe falls back to the database")
		}
		ledger = services.NewRedisEventLedger(client, cfg.Redis.EventTTL)
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	storage, err := services.NewStorageService(cfg)
	if err != nil {
		return err
	}

	if cfg.Payment.StripeSecretKey == "" {
		logrus.Warn("STRIPE_PRIVATE_KEY is not set, checkout requests will fail")
	}

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := router.Initialize(ctx, router.Dependencies{
		Store:        store,
		Gateway:      services.NewStripeGateway(cfg.Payment),
		Ledger:       ledger,
		Mailer:       services.NewNotificationService(cfg),
		Storage:      storage,
		HealthChecks: checks,
	}, cfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      telemetry.Handler(r, cfg.Telemetry.ServiceName),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}
	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logrus.Info("Server exited")
	return nil
}
