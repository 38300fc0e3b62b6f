package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/food-box-reservation/internal/config"
	"github.com/iliyamo/food-box-reservation/internal/database"
	"github.com/iliyamo/food-box-reservation/internal/handler"
	"github.com/iliyamo/food-box-reservation/internal/logger"
	"github.com/iliyamo/food-box-reservation/internal/middleware"
	"github.com/iliyamo/food-box-reservation/internal/model"
	"github.com/iliyamo/food-box-reservation/internal/queue"
	"github.com/iliyamo/food-box-reservation/internal/repository"
	"github.com/iliyamo/food-box-reservation/internal/router"
	"github.com/iliyamo/food-box-reservation/internal/service"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine outside development

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("database ready", zap.String("driver", cfg.DBDriver))

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		log.Warn("redis unavailable: cache and rate limit disabled")
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()

	boxes := repository.NewBoxRepo(db)
	reservations := repository.NewReservationRepo(db)
	contents := repository.NewContentRepo(db)
	shops := repository.NewShopRepo(db)
	items := repository.NewItemRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	if err := bootstrapAdmin(ctx, cfg, users, log); err != nil {
		return err
	}

	opts := []service.Option{service.WithLogger(log.Named("engine"))}
	if pub := service.NewRabbitPublisher(cfg.RabbitURL, log.Named("publisher")); pub != nil {
		opts = append(opts, service.WithPublisher(pub))
	}
	engine := service.NewEngine(db, boxes, reservations, contents, opts...)

	invalidate := func(ctx context.Context) {
		if err := middleware.InvalidateCache(context.WithoutCancel(ctx), rdb, cacheCfg); err != nil {
			log.Warn("cache invalidation failed", zap.Error(err))
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log.Named("http")))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, reservations), cfg.JWTSecret)
	router.RegisterPublic(e, handler.NewPublicHandler(shops, boxes, items), middleware.NewRedisCache(cacheCfg, rdb, log.Named("cache")))
	router.RegisterCustomer(e, handler.NewCustomerHandler(engine, reservations, boxes, invalidate), cfg.JWTSecret,
		middleware.NewTokenBucket(rlCfg, rdb, log.Named("ratelimit")))
	boxAdmin := handler.NewBoxAdminHandler(shops, boxes, engine, invalidate)
	router.RegisterOwner(e, boxAdmin, cfg.JWTSecret)
	router.RegisterAdmin(e, handler.NewAdminHandler(cfg, shops, items, users, invalidate), boxAdmin, cfg.JWTSecret)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	if cfg.RabbitURL != "" {
		g.Go(func() error {
			err := queue.StartReservationConsumer(gctx, cfg.RabbitURL, cfg.AuditLogPath, log.Named("consumer"))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		log.Info("RABBITMQ_URL not set: reservation events disabled")
	}
	return g.Wait()
}

// bootstrapAdmin creates the configured admin account on first start.
func bootstrapAdmin(ctx context.Context, cfg config.Config, users *repository.UserRepo, log *zap.Logger) error {
	if cfg.AdminUsername == "" {
		return nil
	}
	err := users.Create(ctx, cfg.AdminUsername, cfg.AdminPassword, model.RoleAdmin, nil, cfg.ScryptN)
	switch {
	case errors.Is(err, repository.ErrUsernameExists):
		return nil
	case err != nil:
		return err
	}
	log.Info("admin account created", zap.String("username", cfg.AdminUsername))
	return nil
}
