package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/audit"
	"github.com/ekaya-inc/recipe-costing/pkg/auth"
	"github.com/ekaya-inc/recipe-costing/pkg/cache"
	"github.com/ekaya-inc/recipe-costing/pkg/config"
	"github.com/ekaya-inc/recipe-costing/pkg/database"
	"github.com/ekaya-inc/recipe-costing/pkg/handlers"
	"github.com/ekaya-inc/recipe-costing/pkg/logging"
	"github.com/ekaya-inc/recipe-costing/pkg/middleware"
	"github.com/ekaya-inc/recipe-costing/pkg/repositories"
	"github.com/ekaya-inc/recipe-costing/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	migrationTimeout = 2 * time.Minute
	shutdownTimeout  = 15 * time.Second
)

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.String("error", logging.SanitizeError(err)))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.URL())),
		zap.Bool("redis", cfg.Redis.Host != ""),
		zap.String("version", cfg.Version))

	if err := migrate(cfg, logger); err != nil {
		return err
	}

	db, err := database.ConnectWithRetry(ctx, &database.Config{
		URL:             cfg.Database.URL(),
		MaxConnections:  cfg.Database.MaxConnections,
		ApplicationName: "recipe-costing",
	}, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	// A nil *cache.DashboardCache is a disabled cache.
	var dashboardCache *cache.DashboardCache
	if cfg.Redis.Host != "" {
		client, err := database.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, dashboard cache disabled", zap.Error(err))
		} else {
			defer func() { _ = client.Close() }()
			dashboardCache = cache.NewDashboardCache(client, cfg.Redis.DashboardTTL, logger)
		}
	}

	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
		Audience:           cfg.Auth.Audience,
	})
	if err != nil {
		return fmt.Errorf("init JWKS client: %w", err)
	}
	defer jwksClient.Close()

	var sessions *auth.SessionStore
	if cfg.Auth.SessionSecret != "" {
		sessions = auth.NewSessionStore(cfg.Auth.SessionSecret, auth.DeriveCookieSettings(cfg.BaseURL, cfg.CookieDomain))
	}
	authMiddleware := auth.NewMiddleware(auth.NewAuthService(jwksClient, sessions, logger), logger)
	tenantMiddleware := handlers.TenantMiddleware(database.WithTenantContext(db, logger))

	categoryRepo := repositories.NewCategoryRepository()
	recipeCategoryRepo := repositories.NewRecipeCategoryRepository()
	supplierRepo := repositories.NewSupplierRepository()
	ingredientRepo := repositories.NewIngredientRepository()
	movementRepo := repositories.NewPriceMovementRepository()
	recipeRepo := repositories.NewRecipeRepository()
	dashboardRepo := repositories.NewDashboardRepository()

	ingredientService := services.NewIngredientService(ingredientRepo, movementRepo, database.RunInTx, dashboardCache, logger)
	movementService := services.NewPriceMovementService(ingredientRepo, movementRepo, database.RunInTx, dashboardCache, logger)
	recipeService := services.NewRecipeService(recipeRepo, ingredientRepo, recipeCategoryRepo, database.RunInTx, dashboardCache, logger)
	catalogService := services.NewCatalogService(categoryRepo, recipeCategoryRepo, supplierRepo, logger)
	dashboardService := services.NewDashboardService(dashboardRepo, dashboardCache, logger)

	auditor := audit.NewAuditor(logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewAuthHandler(sessions, auditor, cfg, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewIngredientHandler(ingredientService, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewPriceMovementHandler(movementService, auditor, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewRecipeHandler(recipeService, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewCatalogHandler(catalogService, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewDashboardHandler(dashboardService, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewReportHandler(
		services.NewReportSource(recipeService, ingredientService, movementService), auditor, logger,
	).RegisterRoutes(mux, authMiddleware, tenantMiddleware)

	var handler http.Handler = mux
	handler = middleware.RequestLogger(logger)(handler)
	handler = middleware.Recoverer(logger)(handler)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting recipe-costing",
			zap.String("addr", srv.Addr),
			zap.Bool("tls", cfg.TLSCertPath != ""),
			zap.String("version", cfg.Version))

		var err error
		if cfg.TLSCertPath != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// migrate applies pending migrations over a short-lived database/sql handle,
// which is what the migration driver needs.
func migrate(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.MigrationURL(migrationTimeout))
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
