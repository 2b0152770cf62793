package storage

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"twitch-chat-bot/model"
	"twitch-chat-bot/telemetry"
)

// BatchConfig задаёт параметры батчинга для вставки сообщений.
type BatchConfig struct {
	MaxBatch      int
	FlushEvery    time.Duration
	ChanBuffer    int
	StatsLogEvery time.Duration
	FlushTimeout  time.Duration
}

// Batcher асинхронно пишет сообщения чата в архив через pgx.Batch.
type Batcher struct {
	input   chan model.ChatMessage
	config  BatchConfig
	sender  batchSender
	logger  *zap.Logger
	dropped atomic.Uint64
	done    chan struct{}
}

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const insertChatMessage = `
insert into chat_archive (
  message_id, channel, user_id, username, display_name, text, badges, emotes, color,
  is_mod, bits, bot_command, sent_at
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
on conflict (message_id) do nothing;`

// NewBatcher создаёт батчер и запускает фоновые флаши.
func NewBatcher(ctx context.Context, pool *pgxpool.Pool, cfg BatchConfig, logger *zap.Logger) *Batcher {
	return newBatcher(ctx, pool, cfg, logger)
}

// Enqueue пытается добавить сообщение в очередь; при переполнении возвращает false.
func (b *Batcher) Enqueue(msg model.ChatMessage) bool {
	select {
	case b.input <- msg:
		return true
	default:
		telemetry.IncArchiveDropped()
		dropped := b.dropped.Add(1)
		if dropped%100 == 0 {
			b.logger.Warn("archive queue is full", zap.Uint64("dropped_total", dropped))
		}
		return false
	}
}

// Dropped возвращает число сообщений, отброшенных из-за переполнения.
func (b *Batcher) Dropped() uint64 {
	return b.dropped.Load()
}

// Done закрывается, когда фоновая горутина сделала последний флаш после отмены контекста.
func (b *Batcher) Done() <-chan struct{} {
	return b.done
}

func (b *Batcher) run(ctx context.Context) {
	defer close(b.done)

	flushTicker := time.NewTicker(b.config.FlushEvery)
	statsTicker := time.NewTicker(b.config.StatsLogEvery)
	defer flushTicker.Stop()
	defer statsTicker.Stop()

	var (
		batch            = &pgx.Batch{}
		pending          = 0
		totalInserted    uint64
		intervalInserted uint64
	)

	flush := func() {
		if pending == 0 {
			return
		}

		dbCtx, cancel := context.WithTimeout(context.Background(), b.config.FlushTimeout)
		defer cancel()

		br := b.sender.SendBatch(dbCtx, batch)
		if err := br.Close(); err != nil {
			b.logger.Error("archive flush failed", zap.Int("rows", pending), zap.Error(err))
		}

		totalInserted += uint64(pending)
		intervalInserted += uint64(pending)

		batch = &pgx.Batch{}
		pending = 0
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			b.logger.Info("archive batcher stopped", zap.Uint64("rows_total", totalInserted))
			return
		case <-flushTicker.C:
			flush()
		case <-statsTicker.C:
			b.logger.Info("archive batcher stats",
				zap.Uint64("rows", intervalInserted),
				zap.Duration("interval", b.config.StatsLogEvery),
				zap.Uint64("rows_total", totalInserted))
			intervalInserted = 0
		case msg := <-b.input:
			badgesJSON, _ := json.Marshal(msg.Badges)
			emotesJSON, _ := json.Marshal(msg.Emotes)
			batch.Queue(insertChatMessage,
				ptr(msg.ID), ptr(msg.Channel), ptr(msg.UserID), ptr(msg.Username), ptr(msg.DisplayName), ptr(msg.Text),
				badgesJSON, emotesJSON, ptr(msg.Color), ptr(msg.IsMod), ptr(msg.Bits), nullIfEmpty(msg.BotCommand), msg.SentAt.UTC(),
			)
			pending++
			if pending >= b.config.MaxBatch {
				flush()
			}
		}
	}
}

func ptr[T any](v T) *T { return &v }

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func newBatcher(ctx context.Context, sender batchSender, cfg BatchConfig, logger *zap.Logger) *Batcher {
	b := &Batcher{
		input:  make(chan model.ChatMessage, cfg.ChanBuffer),
		config: cfg,
		sender: sender,
		logger: logger,
		done:   make(chan struct{}),
	}

	go b.run(ctx)

	return b
}
