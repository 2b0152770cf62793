// Package telemetry регистрирует метрики Prometheus бота и отдаёт их по HTTP.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Результаты обработки команды бота.
const (
	ResultHandled      = "handled"
	ResultNotFound     = "not_found"
	ResultCooldown     = "cooldown"
	ResultInvalidScope = "invalid_scope"
)

var (
	once sync.Once

	// LinesReceived считает непустые строки, прочитанные из сокета.
	LinesReceived prometheus.Counter
	// RepliesSent считает строки, записанные в сокет после рукопожатия.
	RepliesSent prometheus.Counter
	// CommandsDispatch считает исходы обработки команд по метке result.
	CommandsDispatch *prometheus.CounterVec
	// ArchiveDropped считает сообщения и notice, не попавшие в архив из-за переполненной очереди.
	ArchiveDropped prometheus.Counter
)

// Init регистрирует метрики (идемпотентно).
func Init() {
	once.Do(func() {
		LinesReceived = promauto.NewCounter(prometheus.CounterOpts{Name: "chatbot_lines_received_total", Help: "Number of raw IRC lines read from the server"})
		RepliesSent = promauto.NewCounter(prometheus.CounterOpts{Name: "chatbot_replies_sent_total", Help: "Number of lines written to the server after the handshake"})
		CommandsDispatch = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chatbot_commands_total", Help: "Bot command dispatch outcomes"}, []string{"result"})
		ArchiveDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "chatbot_archive_dropped_total", Help: "Chat messages and notices dropped because an archive queue was full"})
	})
}

// IncLines учитывает прочитанную строку.
func IncLines() {
	if LinesReceived != nil {
		LinesReceived.Inc()
	}
}

// IncReplies учитывает отправленную строку.
func IncReplies() {
	if RepliesSent != nil {
		RepliesSent.Inc()
	}
}

// IncDispatch учитывает исход обработки команды бота.
func IncDispatch(result string) {
	if CommandsDispatch != nil {
		CommandsDispatch.WithLabelValues(result).Inc()
	}
}

// IncArchiveDropped учитывает сообщение, не попавшее в архив.
func IncArchiveDropped() {
	if ArchiveDropped != nil {
		ArchiveDropped.Inc()
	}
}

// Serve отдаёт /metrics на addr до отмены контекста.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
