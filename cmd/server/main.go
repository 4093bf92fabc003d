package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mvanbree/palette/internal/app"
	"github.com/mvanbree/palette/internal/config"
	"github.com/mvanbree/palette/internal/domain"
	"github.com/mvanbree/palette/internal/http/handler"
	"github.com/mvanbree/palette/internal/http/middleware"
	"github.com/mvanbree/palette/internal/http/router"
	"github.com/mvanbree/palette/internal/observability"
	"github.com/mvanbree/palette/internal/repository"
	"github.com/mvanbree/palette/internal/security"
	"github.com/mvanbree/palette/internal/service"
)

func main() {
	root := &cobra.Command{Use: "palette-server", Short: "Gallery manager API"}
	root.AddCommand(newServeCommand(), newCleanupCommand())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCommand() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadEnvFile(envFile); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "optional env file for local development")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, loggerProvider, err := observability.InitLogging(ctx, cfg)
	if err != nil {
		return err
	}
	runtime, err := observability.InitRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	runtime.LoggerProvider = loggerProvider

	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(
		&domain.User{}, &domain.LocalCredential{}, &domain.TokenFamily{},
		&domain.Painter{}, &domain.Painting{}, &domain.Technique{},
		&domain.Folder{}, &domain.File{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	users := repository.NewUserRepository(db)
	families := repository.NewFamilyRepository(db)
	gallery := repository.NewGalleryRepository(db)
	archive := repository.NewArchiveRepository(db)

	jwtMgr := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret, cfg.JWTRefreshSecret)
	verifier := service.NewCredentialVerifier(users)
	tokens := service.NewTokenService(jwtMgr, families, users, cfg.AccessTTL, cfg.RefreshTTL)
	sessions := service.NewSessionService(jwtMgr, families)

	var guard service.AuthAbuseGuard = service.NewNoopAuthAbuseGuard()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		guard = service.NewRedisAuthAbuseGuard(client, "auth_abuse", service.AuthAbusePolicy{})
		defer client.Close()
	}

	registry := service.NewStrategyRegistry(verifier, guard, jwtMgr, users, families, tokens)
	gate := middleware.NewGate(registry, cfg.CookieSecure, cfg.LoginRedirectPath)

	h := router.NewRouter(router.Dependencies{
		AuthHandler:      handler.NewAuthHandler(tokens, sessions, users, cfg.AccessTTL, cfg.RefreshTTL, cfg.CookieSecure),
		GalleryHandler:   handler.NewGalleryHandler(gallery),
		ArchiveHandler:   handler.NewArchiveHandler(archive),
		Gate:             gate,
		APIRateLimitRPM:  cfg.APIRateLimitRPM,
		AuthRateLimitRPM: cfg.AuthRateLimitRPM,
		RequestTimeout:   cfg.RequestTimeout,
		EnableOTelHTTP:   cfg.OTELTracesEnabled,
	})
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	a := app.New(cfg, logger, server, runtime)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Run(gctx) })
	g.Go(func() error { return sweepExpiredFamilies(gctx, logger, families, cfg.FamilySweepEvery) })
	return g.Wait()
}

// sweepExpiredFamilies periodically drops family rows whose refresh TTL has
// lapsed. Validity never depends on it; expired families already fail the
// existence check.
func sweepExpiredFamilies(ctx context.Context, logger *slog.Logger, families repository.FamilyRepository, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := families.CleanupExpired()
			if err != nil {
				logger.Warn("family sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("family sweep", "deleted", n)
			}
		}
	}
}

func newCleanupCommand() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired token families and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := config.LoadEnvFile(envFile); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			n, err := repository.NewFamilyRepository(db).CleanupExpired()
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d expired token families\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "optional env file for local development")
	return cmd
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}
	if strings.HasPrefix(cfg.DatabaseURL, "file:") || strings.HasSuffix(cfg.DatabaseURL, ".db") {
		return gorm.Open(sqlite.Open(cfg.DatabaseURL), gormCfg)
	}
	return gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
}
