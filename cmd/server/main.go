package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/product-catalog/internal/config"
	"github.com/iliyamo/product-catalog/internal/database"
	"github.com/iliyamo/product-catalog/internal/handler"
	"github.com/iliyamo/product-catalog/internal/logger"
	"github.com/iliyamo/product-catalog/internal/metrics"
	"github.com/iliyamo/product-catalog/internal/middleware"
	"github.com/iliyamo/product-catalog/internal/queue"
	"github.com/iliyamo/product-catalog/internal/repository"
	"github.com/iliyamo/product-catalog/internal/router"
	"github.com/iliyamo/product-catalog/internal/service"
	"github.com/iliyamo/product-catalog/internal/storage"
	"github.com/iliyamo/product-catalog/internal/utils"
)

func main() {
	cfg := config.Load() // Load environment config
	storeCfg := config.LoadStorageConfig()

	lg, err := logger.New(logger.Config{Level: cfg.LogLevel, DevMode: cfg.LogDev})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, storeCfg, lg); err != nil {
		lg.Error("server stopped", zap.Error(err))
		lg.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, storeCfg config.StorageConfig, lg *logger.Logger) error {
	metrics.Register(prometheus.DefaultRegisterer)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()

	schemaCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = database.EnsureSchema(schemaCtx, db)
	cancel()
	if err != nil {
		return err
	}

	// Redis is optional: revocation, caching and rate limiting degrade to no-ops.
	rdb, err := config.NewRedisClient()
	if err != nil {
		lg.Warn("redis unavailable; cache, rate limit and token revocation disabled", zap.Error(err))
		rdb = nil
	} else {
		defer rdb.Close()
	}

	objects, err := storage.New(ctx, storeCfg)
	if err != nil {
		return err
	}
	if s3, ok := objects.(*storage.S3); ok {
		if err := s3.EnsureBucket(ctx); err != nil {
			return err
		}
	}

	issuer := utils.NewIssuer(
		cfg.JWTSecret,
		time.Duration(cfg.AccessTTLMin)*time.Minute,
		time.Duration(cfg.RefreshTTLDays)*24*time.Hour,
	)
	auth := service.NewAuthService(repository.NewUserRepo(db), issuer, repository.NewTokenRepo(rdb), cfg.BcryptCost, lg)
	products := service.NewProductService(
		repository.NewProductRepo(db),
		objects,
		service.NewRabbitPublisher(cfg.RabbitMQURL, lg),
		service.ProductOptions{SignedURLTTL: storeCfg.SignedURLTTL, MaxImageSize: storeCfg.MaxImageSize},
		lg,
	)

	cookies := middleware.Cookies{Secure: cfg.CookieSecure, Domain: cfg.CookieDomain}
	e := router.New(router.Deps{
		Auth:          handler.NewAuthHandler(auth, cookies, lg),
		Users:         handler.NewUserHandler(auth, lg),
		Products:      handler.NewProductHandler(products, lg),
		Readiness:     handler.Readiness{DB: db, Redis: rdb},
		Authenticator: auth,
		Cookies:       cookies,
		CORSOrigins:   cfg.CORSOrigins,
		Cache:         config.LoadCacheConfig(),
		RateLimit:     config.LoadRateLimitConfig(),
		Redis:         rdb,
		Log:           lg,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port // Address string with port
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		consumer := queue.NewOrphanConsumer(cfg.RabbitMQURL, objects, queue.RetryConfig{}, lg)
		if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		lg.Info("shutting down")
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
