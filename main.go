package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BatmanBruc/vip-orders-bot/internal/config"
	"github.com/BatmanBruc/vip-orders-bot/internal/handlers"
	"github.com/BatmanBruc/vip-orders-bot/internal/health"
	"github.com/BatmanBruc/vip-orders-bot/internal/middleware"
	"github.com/BatmanBruc/vip-orders-bot/internal/notify"
	"github.com/BatmanBruc/vip-orders-bot/internal/orders"
	"github.com/BatmanBruc/vip-orders-bot/internal/scheduler"
	"github.com/BatmanBruc/vip-orders-bot/internal/stats"
	"github.com/BatmanBruc/vip-orders-bot/store"
	"github.com/BatmanBruc/vip-orders-bot/types"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("config.env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	orderStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer orderStore.Close()
	logger.Info("store ready", zap.String("driver", cfg.Store.Driver))

	httpClient := &http.Client{
		Timeout: cfg.PollTimeout + 30*time.Second,
	}
	b, err := bot.New(
		cfg.BotToken,
		bot.WithHTTPClient(cfg.PollTimeout, httpClient),
	)
	if err != nil {
		logger.Fatal("failed to create bot", zap.Error(err))
	}

	dispatcher := notify.NewDispatcher(notify.NewTelegramSender(b), notify.Config{
		Workers:   cfg.Notify.Workers,
		QueueSize: cfg.Notify.Queue,
		Timeout:   cfg.Notify.Timeout,
	}, logger)
	dispatcher.Start()
	defer dispatcher.Stop()

	engine := orders.NewEngine(orderStore, dispatcher, orders.Config{
		OperatorID:     cfg.AdminID,
		VIPLink:        cfg.VIPLink,
		SupportContact: cfg.SupportContact,
		MaxAttempts:    cfg.Store.Retries,
	}, logger)

	sweeper := scheduler.NewScheduler(orderStore, dispatcher, scheduler.Config{
		Hour:        cfg.Sweep.Hour,
		Minute:      cfg.Sweep.Minute,
		RunOnStart:  cfg.Sweep.OnStart,
		MaxAttempts: cfg.Store.Retries,
	}, logger)
	sweeper.Start()
	defer sweeper.Stop()

	if cfg.HTTPAddr != "" {
		srv := health.NewServer(cfg.HTTPAddr, orderStore, logger)
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("http listener stopped", zap.Error(err))
			}
		}()
	}

	h := handlers.NewHandlers(engine, stats.NewReporter(orderStore, logger), logger)
	middlewares := middleware.NewMiddlewares(logger)
	handlerChain := middlewares.RecoverMiddleware(
		middlewares.AnalyzeMessageMiddleware(
			h.MainHandler,
		),
	)

	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.Message != nil
	}, handlerChain)

	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, handlerChain)

	logger.Info("bot started", zap.Int64("operator_id", cfg.AdminID))
	b.Start(ctx)
	logger.Info("bot stopped")
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func openStore(ctx context.Context, cfg config.Config) (types.OrderStore, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	case config.DriverPostgres:
		return store.NewPostgresStore(ctx, cfg.Postgres.ConnString())
	case config.DriverRedis:
		rdb, err := store.NewRedisClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			return nil, err
		}
		return store.NewRedisOrderStore(rdb), nil
	default:
		return store.NewSQLiteStore(ctx, cfg.Store.SQLitePath)
	}
}
