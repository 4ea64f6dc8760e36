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

	"github.com/clinfeed/clinfeed/internal/config"
	"github.com/clinfeed/clinfeed/internal/domain/appointment"
	"github.com/clinfeed/clinfeed/internal/domain/contact"
	"github.com/clinfeed/clinfeed/internal/domain/patient"
	"github.com/clinfeed/clinfeed/internal/domain/practitioner"
	"github.com/clinfeed/clinfeed/internal/domain/privatemessage"
	"github.com/clinfeed/clinfeed/internal/platform/db"
	"github.com/clinfeed/clinfeed/internal/platform/middleware"
	"github.com/clinfeed/clinfeed/internal/platform/record"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "feed-server",
		Short: "Clinical data feed API server",
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
		Short: "Start the feed API server",
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
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, db.PoolConfig{
				DatabaseURL: cfg.DatabaseURL,
				MaxConns:    cfg.DBMaxConns,
				MinConns:    cfg.DBMinConns,
			})
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s).\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory")
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
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, db.PoolConfig{
				DatabaseURL: cfg.DatabaseURL,
				MaxConns:    cfg.DBMaxConns,
				MinConns:    cfg.DBMinConns,
			})
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// entityTypes resolves every declared entity against the live schema.
// Declaration order matters: association targets must be set up before
// the types that point at them.
type entityTypes struct {
	address        *record.Type
	contact        *record.Type
	credential     *record.Type
	practitioner   *record.Type
	patient        *record.Type
	appointment    *record.Type
	attachment     *record.Type
	privateMessage *record.Type
}

func setupTypes(ctx context.Context, pool record.Querier, schema string, logger zerolog.Logger, maxRetries int) (*entityTypes, error) {
	catalog, err := record.LoadCatalog(ctx, pool, schema)
	if err != nil {
		return nil, fmt.Errorf("load schema catalog: %w", err)
	}

	ts := &entityTypes{}
	ts.address = contact.NewAddressType()
	ts.contact = contact.NewContactType(ts.address)
	ts.credential = practitioner.NewCredentialType()
	ts.practitioner = practitioner.NewType(ts.contact, ts.credential)
	ts.patient = patient.NewType(ts.contact, ts.practitioner)
	ts.appointment = appointment.NewType(ts.patient, ts.practitioner)
	ts.attachment = privatemessage.NewAttachmentType()
	ts.privateMessage = privatemessage.NewType(ts.patient, ts.practitioner, ts.attachment)

	opts := record.Options{
		Catalog:          catalog,
		Logger:           logger,
		MaxUpdateRetries: maxRetries,
	}
	err = record.SetupAll(opts,
		ts.address,
		ts.contact,
		ts.credential,
		ts.practitioner,
		ts.patient,
		ts.appointment,
		ts.attachment,
		ts.privateMessage,
	)
	if err != nil {
		return nil, err
	}
	return ts, nil
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	types, err := setupTypes(ctx, pool, cfg.DBSchema, logger, cfg.UpdateRetryLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("entity setup failed")
	}
	logger.Info().Msg("entity types resolved against schema")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Feed-Alias"},
	}))

	e.GET("/health", db.HealthHandler(pool))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.BearerAuth(cfg.JWTSecret))
	apiV1.Use(db.FeedAliasMiddleware(cfg.DefaultFeedAlias))

	patientSvc := patient.NewService(types.patient, pool, logger)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)

	practitionerSvc := practitioner.NewService(types.practitioner, pool, logger)
	practitioner.NewHandler(practitionerSvc).RegisterRoutes(apiV1)

	appointmentSvc := appointment.NewService(types.appointment, pool, logger)
	appointment.NewHandler(appointmentSvc).RegisterRoutes(apiV1)

	messageSvc := privatemessage.NewService(types.privateMessage, pool, logger)
	privatemessage.NewHandler(messageSvc).RegisterRoutes(apiV1)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
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
