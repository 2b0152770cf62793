package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"twitch-chat-bot/model"
	"twitch-chat-bot/telemetry"
)

// ChatQueue принимает сообщения чата для пакетной записи.
type ChatQueue interface {
	Enqueue(model.ChatMessage) bool
}

// NoticeSaver сохраняет notice-событие.
type NoticeSaver func(ctx context.Context, notice model.Notice, timeout time.Duration) error

// ArchiveHandler реализует twitch.Handler и перенаправляет события в хранилище.
// Ни один метод Handle* не ждёт базу: чаты уходят в батчер, notice — в собственную очередь.
type ArchiveHandler struct {
	chats        ChatQueue
	saveNotice   NoticeSaver
	flushTimeout time.Duration
	logger       *zap.Logger

	notices chan model.Notice
	done    chan struct{}
}

// NewArchiveHandler собирает ArchiveHandler; noticeBuffer задаёт ёмкость очереди notice.
// Запись notice начинается после вызова Run.
func NewArchiveHandler(chats ChatQueue, saveNotice NoticeSaver, flushTimeout time.Duration, noticeBuffer int, logger *zap.Logger) *ArchiveHandler {
	if noticeBuffer <= 0 {
		noticeBuffer = 1
	}
	return &ArchiveHandler{
		chats:        chats,
		saveNotice:   saveNotice,
		flushTimeout: flushTimeout,
		logger:       logger,
		notices:      make(chan model.Notice, noticeBuffer),
		done:         make(chan struct{}),
	}
}

// HandleChat помещает сообщения чата в очередь батчера.
func (h *ArchiveHandler) HandleChat(_ context.Context, msg model.ChatMessage) {
	if ok := h.chats.Enqueue(msg); !ok {
		h.logger.Debug("archive: chat message dropped", zap.String("channel", msg.Channel), zap.String("id", msg.ID))
	}
}

// HandleNotice ставит notice в очередь записи; при переполнении событие отбрасывается.
func (h *ArchiveHandler) HandleNotice(_ context.Context, notice model.Notice) {
	select {
	case h.notices <- notice:
	default:
		telemetry.IncArchiveDropped()
		h.logger.Warn("archive: notice dropped", zap.String("channel", notice.Channel), zap.String("msg_id", notice.ID))
	}
}

// Run записывает notice до отмены ctx, затем дописывает то, что осталось в очереди.
func (h *ArchiveHandler) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case notice := <-h.notices:
			h.save(ctx, notice)
		case <-ctx.Done():
			h.drain()
			return
		}
	}
}

// Done закрывается, когда Run завершил работу.
func (h *ArchiveHandler) Done() <-chan struct{} {
	return h.done
}

func (h *ArchiveHandler) drain() {
	for {
		select {
		case notice := <-h.notices:
			h.save(context.Background(), notice)
		default:
			return
		}
	}
}

func (h *ArchiveHandler) save(ctx context.Context, notice model.Notice) {
	if err := h.saveNotice(ctx, notice, h.flushTimeout); err != nil {
		h.logger.Error("archive: save notice failed",
			zap.String("channel", notice.Channel),
			zap.String("msg_id", notice.ID),
			zap.Error(err))
	}
}
