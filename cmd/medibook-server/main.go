package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medibook/medibook/internal/config"
	"github.com/medibook/medibook/internal/domain/availability"
	"github.com/medibook/medibook/internal/domain/directory"
	"github.com/medibook/medibook/internal/domain/identity"
	"github.com/medibook/medibook/internal/domain/scheduling"
	"github.com/medibook/medibook/internal/domain/wizard"
	"github.com/medibook/medibook/internal/platform/auth"
	"github.com/medibook/medibook/internal/platform/cache"
	"github.com/medibook/medibook/internal/platform/db"
	"github.com/medibook/medibook/internal/platform/metrics"
	"github.com/medibook/medibook/internal/platform/middleware"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "medibook-server",
		Short: "Doctor appointment booking API server",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the booking API server",
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

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printMigrationStatus(cmd.OutOrStdout(), statuses)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(fn func(ctx context.Context, m *db.Migrator) error) error {
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
	return fn(ctx, db.NewMigrator(pool, db.Migrations()))
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func corsConfig(origins []string) echomw.CORSConfig {
	return echomw.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}
}

// sessionStore keeps booking sessions in Redis when one is configured so they
// survive restarts and are shared between replicas.
func sessionStore(client *redis.Client, ttl time.Duration) wizard.Store {
	if client == nil {
		return wizard.NewMemoryStore(ttl)
	}
	return wizard.NewRedisStore(client, ttl)
}

func directoryRepo(next directory.Repository, client *redis.Client, ttl time.Duration, logger zerolog.Logger) directory.Repository {
	if client == nil || ttl <= 0 {
		return next
	}
	return directory.NewCachedRepository(next, client, ttl, logger)
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	if cfg.RateLimitRPS <= 0 || cfg.RateLimitBurst <= 0 {
		return middleware.DefaultRateLimitConfig()
	}
	return middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
}

func runServer() error {
	// Logger
	logger := newLogger(os.Getenv("ENV"), os.Stdout)

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid facility timezone")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Redis is optional
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		logger.Info().Msg("connected to redis")
	} else {
		logger.Warn().Msg("REDIS_URL not set; booking sessions are kept in memory")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(corsConfig(cfg.CORSOrigins)))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		jwtCfg := auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}
		if cfg.AuthSigningKey != "" {
			jwtCfg.SigningKey = []byte(cfg.AuthSigningKey)
		}
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	m := metrics.NewSchedulingMetrics(prometheus.DefaultRegisterer)

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitConfig(cfg)))

	// Availability
	availSvc := availability.NewService(availability.NewWindowRepoPG(pool), availability.NewBlackoutRepoPG(pool), logger)
	availability.NewHandler(availSvc, loc).RegisterRoutes(apiV1)

	// Directory
	dirRepo := directoryRepo(directory.NewRepoPG(pool), rdb, cfg.DirectoryCacheTTL, logger)
	directory.NewHandler(dirRepo).RegisterRoutes(apiV1)

	// Scheduling
	patientRepo := identity.NewPatientRepoPG(pool)
	apptRepo := scheduling.NewAppointmentRepoPG(pool)
	resolver := scheduling.NewResolver(availSvc, apptRepo, m, loc, logger)
	committer := scheduling.NewCommitter(
		db.NewTxRunner(pool), scheduling.NewAdvisorySlotLocker(), availSvc,
		patientRepo, apptRepo, m, loc, logger,
	)
	schedSvc := scheduling.NewService(apptRepo, patientRepo, logger)
	scheduling.NewHandler(schedSvc, resolver, committer).RegisterRoutes(apiV1)

	// Booking wizard
	profiles := identity.NewProvider(patientRepo, cfg.ProfileRetryAttempts, logger)
	bookingWizard := wizard.New(
		sessionStore(rdb, cfg.WizardSessionTTL), dirRepo, resolver, committer, profiles, m, logger,
	)
	wizard.NewHandler(bookingWizard).RegisterRoutes(apiV1)

	// Start server
	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("timezone", loc.String()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
