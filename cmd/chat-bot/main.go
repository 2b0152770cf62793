package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"twitch-chat-bot/commands"
	"twitch-chat-bot/config"
	"twitch-chat-bot/dispatch"
	"twitch-chat-bot/logging"
	"twitch-chat-bot/model"
	"twitch-chat-bot/service"
	"twitch-chat-bot/storage"
	"twitch-chat-bot/telemetry"
	"twitch-chat-bot/transport"
	"twitch-chat-bot/twitch"
)

func main() {
	// .env нужен только для локального запуска
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("chat bot stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}

	logger.Info("shutting down...")
}

func run(cfg config.Config, logger *zap.Logger) error {
	registry, err := commands.Load(cfg.Commands.File)
	if err != nil {
		return err
	}
	logger.Info("validated and parsed commands", zap.Int("count", registry.Len()), zap.String("file", cfg.Commands.File))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	telemetry.Init()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := telemetry.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	var observer service.Observer
	if cfg.Postgres.Enabled() {
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN())
		if err != nil {
			return fmt.Errorf("pgxpool.New: %w", err)
		}
		defer pool.Close()

		if err := storage.EnsureSchema(ctx, pool); err != nil {
			return err
		}

		batcher := storage.NewBatcher(ctx, pool, storage.BatchConfig{
			MaxBatch:      cfg.Batch.MaxBatch,
			FlushEvery:    cfg.Batch.FlushEvery,
			ChanBuffer:    cfg.Batch.ChanBuffer,
			StatsLogEvery: cfg.Batch.StatsLogEvery,
			FlushTimeout:  cfg.Batch.FlushTimeout,
		}, logger)
		defer func() { <-batcher.Done() }()

		saveNotice := func(ctx context.Context, notice model.Notice, timeout time.Duration) error {
			return storage.SaveNotice(ctx, pool, notice, timeout)
		}
		handler := service.NewArchiveHandler(batcher, saveNotice, cfg.Batch.FlushTimeout, cfg.Batch.ChanBuffer, logger)
		go handler.Run(ctx)
		defer func() { <-handler.Done() }()
		// батчер и запись notice дописывают хвост только после отмены контекста
		defer cancel()
		observer = twitch.NewArchiver(handler)
		logger.Info("chat archive enabled", zap.String("host", cfg.Postgres.Host), zap.String("db", cfg.Postgres.DB))
	}

	relay := transport.NewRelay(transport.Config{
		Addr:    cfg.Twitch.Addr,
		Nick:    cfg.Twitch.Username,
		Token:   cfg.Twitch.OAuthToken,
		Channel: cfg.Twitch.Channel,
	}, nil, logger)

	engine := dispatch.NewEngine(registry, logger)
	srv := service.New(relay, engine, observer, logger)

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("service run failed: %w", err)
	}
	return nil
}
