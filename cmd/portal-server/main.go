package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ayushcare/portal/internal/config"
	"github.com/ayushcare/portal/internal/domain/assistant"
	"github.com/ayushcare/portal/internal/domain/clinical"
	"github.com/ayushcare/portal/internal/domain/identity"
	"github.com/ayushcare/portal/internal/domain/scheduling"
	"github.com/ayushcare/portal/internal/platform/db"
	"github.com/ayushcare/portal/internal/platform/filestore"
	"github.com/ayushcare/portal/internal/platform/genai"
	"github.com/ayushcare/portal/internal/platform/middleware"
	"github.com/ayushcare/portal/internal/platform/session"
)

const requestTimeout = 60 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:   "portal-server",
		Short: "AyushCare patient and doctor portal API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the portal API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				state, applied := "pending", "-"
				if s.Applied {
					state = "applied"
				}
				if s.AppliedAt != nil {
					applied = s.AppliedAt.Format(time.RFC3339)
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, state, applied)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Session store: Redis when configured, in-process memory otherwise.
	var store session.Store
	if cfg.RedisURL != "" {
		redisStore, err := session.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisStore.Close()
		store = redisStore
		logger.Info().Msg("connected to redis session store")
	} else {
		store = session.NewMemoryStore()
		logger.Warn().Msg("REDIS_URL not set, using in-memory session store")
	}

	secret := cfg.SessionSecret
	if secret == "" {
		// Validate() guarantees this only happens in development.
		secret = "dev-session-secret-not-for-production"
		logger.Warn().Msg("SESSION_SECRET not set, using development fallback")
	}
	sessions := session.NewManager([]byte(secret), cfg.SessionTTL, cfg.IsProduction(), store)

	files, err := filestore.NewDiskStore(cfg.UploadDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize file store")
	}

	ai := genai.New(genai.Config{
		APIKey:  cfg.GenAIAPIKey,
		BaseURL: cfg.GenAIBaseURL,
		Model:   cfg.GenAIModel,
		Timeout: cfg.GenAITimeout,
	})

	// Services
	identitySvc := identity.NewService(
		identity.NewPatientRepoPG(pool),
		identity.NewDoctorRepoPG(pool),
		func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.WithTx(ctx, pool, fn)
		},
	)
	clinicalSvc := clinical.NewService(
		clinical.NewRecordRepoPG(pool),
		clinical.NewConditionRepoPG(pool),
	)
	schedulingSvc := scheduling.NewService(scheduling.NewAppointmentRepoPG(pool))
	assistantSvc := assistant.NewService(
		assistant.NewSessionRepoPG(pool),
		assistant.NewMessageRepoPG(pool),
		ai,
		identitySvc,
		clinicalSvc,
		schedulingSvc,
	)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.RequestTimeout(requestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{"Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	e.Use(sessions.Middleware())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	api := e.Group("/api")
	identity.NewHandler(identitySvc, sessions, files, logger).RegisterRoutes(api)
	clinical.NewHandler(clinicalSvc, files).RegisterRoutes(api)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(api)
	assistant.NewHandler(assistantSvc, sessions, logger).RegisterRoutes(api)

	// Start and wait for shutdown signal.
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped cleanly")
	return nil
}
