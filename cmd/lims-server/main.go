package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medlab/lims/internal/config"
	"github.com/medlab/lims/internal/domain/catalog"
	"github.com/medlab/lims/internal/domain/dashboard"
	"github.com/medlab/lims/internal/domain/numbering"
	"github.com/medlab/lims/internal/domain/order"
	"github.com/medlab/lims/internal/domain/patient"
	"github.com/medlab/lims/internal/domain/report"
	"github.com/medlab/lims/internal/domain/result"
	"github.com/medlab/lims/internal/domain/sample"
	"github.com/medlab/lims/internal/domain/settings"
	"github.com/medlab/lims/internal/domain/user"
	"github.com/medlab/lims/internal/platform/auth"
	"github.com/medlab/lims/internal/platform/db"
	"github.com/medlab/lims/internal/platform/metrics"
	"github.com/medlab/lims/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lims-server",
		Short: "Laboratory information system API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importCatalogCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the LIMS API server",
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
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func importCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-catalog",
		Short: "Import the test catalog from a master Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			if file == "" {
				return fmt.Errorf("--file is required")
			}

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

			importer := catalog.NewImporter(catalog.NewRepoPG(pool), pool)
			summary, err := importer.Import(ctx, file)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			fmt.Printf("Imported %d parameters, %d tests, %d test parameters, %d reference ranges (%d rows skipped).\n",
				summary.Parameters, summary.Tests, summary.TestParameters, summary.ReferenceRanges, summary.Skipped)
			return nil
		},
	}
	cmd.Flags().String("file", "", "Path to the master .xlsx workbook")
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the initial admin account, permissions and workflow settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("admin-user")
			password, _ := cmd.Flags().GetString("admin-password")
			if password == "" {
				return fmt.Errorf("--admin-password is required")
			}

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

			settingsSvc := settings.NewService(
				settings.NewWorkflowRepoPG(pool), settings.NewPermissionRepoPG(pool))

			// Load creates the workflow row with defaults if missing.
			if _, err := settingsSvc.Workflow(ctx); err != nil {
				return fmt.Errorf("seed workflow settings: %w", err)
			}
			for _, rp := range settings.DefaultPermissions() {
				if err := settingsSvc.UpsertPermission(ctx, rp); err != nil {
					return fmt.Errorf("seed permissions for %s: %w", rp.Role, err)
				}
			}

			tokenTTL := time.Duration(cfg.TokenTTLMinutes) * time.Minute
			userSvc := user.NewService(user.NewRepoPG(pool), []byte(cfg.JWTSecret), tokenTTL)
			admin := &user.User{Username: username, FullName: "Administrator", Role: auth.RoleAdmin}
			if err := userSvc.Create(ctx, admin, password); err != nil {
				return fmt.Errorf("seed admin user: %w", err)
			}

			fmt.Printf("Seeded admin user %q, default permissions and workflow settings.\n", admin.Username)
			return nil
		},
	}
	cmd.Flags().String("admin-user", "admin", "Username for the initial administrator")
	cmd.Flags().String("admin-password", "", "Password for the initial administrator")
	return cmd
}

// orderAdapter lets the sample and result services call back into the order
// service, which is constructed after them.
type orderAdapter struct {
	orders *order.Service
}

func (a *orderAdapter) SetItemStatus(ctx context.Context, itemID uuid.UUID, status string) error {
	return a.orders.SetItemStatus(ctx, itemID, status)
}

func (a *orderAdapter) PatientForItem(ctx context.Context, itemID uuid.UUID) (string, int, error) {
	return a.orders.PatientForItem(ctx, itemID)
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

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	m := metrics.New()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(requestMetrics(m))

	// Platform endpoints stay outside the authenticated API group.
	e.GET("/health", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Services, repos first. The order service depends on the sample and
	// result services, which in turn report item progress back through
	// the adapter bound after order construction.
	numberingSvc := numbering.NewService(
		numbering.NewTerminalRepoPG(pool), numbering.NewCounterRepoPG(pool))
	numberingSvc.SetMetrics(m)

	settingsSvc := settings.NewService(
		settings.NewWorkflowRepoPG(pool), settings.NewPermissionRepoPG(pool))

	catalogSvc := catalog.NewService(catalog.NewRepoPG(pool))
	patientSvc := patient.NewService(patient.NewRepoPG(pool), numberingSvc, pool, cfg.MRNPrefix)

	adapter := &orderAdapter{}
	sampleSvc := sample.NewService(
		sample.NewRepoPG(pool), numberingSvc, settingsSvc, adapter, cfg.SamplePrefix)
	resultSvc := result.NewService(
		result.NewRepoPG(pool), settingsSvc, settingsSvc, catalogSvc, adapter, adapter)
	orderSvc := order.NewService(
		order.NewRepoPG(pool), numberingSvc, settingsSvc, catalogSvc,
		sampleSvc, resultSvc, pool, cfg.OrderPrefix)
	adapter.orders = orderSvc

	reportSvc := report.NewService(report.NewRepoPG(pool), orderSvc, patientSvc, resultSvc)
	dashboardSvc := dashboard.NewService(dashboard.NewRepoPG(pool))

	tokenTTL := time.Duration(cfg.TokenTTLMinutes) * time.Minute
	userSvc := user.NewService(user.NewRepoPG(pool), []byte(cfg.JWTSecret), tokenTTL)

	userHandler := user.NewHandler(userSvc)
	userHandler.RegisterAuthRoutes(e)

	api := e.Group("/api/v1")
	if cfg.IsDev() {
		api.Use(auth.DevAuthMiddleware())
	} else {
		api.Use(auth.JWTMiddleware([]byte(cfg.JWTSecret)))
	}

	numbering.NewHandler(numberingSvc).RegisterRoutes(api)
	settings.NewHandler(settingsSvc).RegisterRoutes(api)
	catalog.NewHandler(catalogSvc).RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	order.NewHandler(orderSvc).RegisterRoutes(api)
	sample.NewHandler(sampleSvc).RegisterRoutes(api)
	result.NewHandler(resultSvc).RegisterRoutes(api)
	report.NewHandler(reportSvc).RegisterRoutes(api)
	dashboard.NewHandler(dashboardSvc).RegisterRoutes(api)
	userHandler.RegisterRoutes(api)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
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

func requestMetrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			m.IncrementRequest(c.Request().Method, c.Path(), strconv.Itoa(status))
			return err
		}
	}
}
