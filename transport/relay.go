// Package transport держит TLS-соединение с IRC-сервером Twitch: отправляет рукопожатие,
// читает строки в очередь входящих и пишет ответы из очереди исходящих.
// Переподключения нет: потеря соединения завершает сессию.
package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"twitch-chat-bot/telemetry"
)

// TagsCapability — расширение протокола, запрашиваемое при подключении.
const TagsCapability = "twitch.tv/tags"

// ErrClosed возвращается, когда сервер закрыл соединение.
var ErrClosed = errors.New("connection closed by server")

// Dialer открывает сетевое соединение. *tls.Dialer удовлетворяет интерфейсу.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// Config — параметры подключения к чату.
type Config struct {
	Addr    string
	Nick    string
	Token   string
	Channel string
}

// Relay перекачивает строки между сокетом и очередями.
type Relay struct {
	cfg      Config
	dialer   Dialer
	logger   *zap.Logger
	inbound  *Queue[string]
	outbound *Queue[string]
}

// NewRelay создаёт Relay. Если dialer равен nil, используется TLS с именем сервера из адреса.
func NewRelay(cfg Config, dialer Dialer, logger *zap.Logger) *Relay {
	if dialer == nil {
		host, _, err := net.SplitHostPort(cfg.Addr)
		if err != nil {
			host = cfg.Addr
		}
		dialer = &tls.Dialer{Config: &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}}
	}

	return &Relay{
		cfg:      cfg,
		dialer:   dialer,
		logger:   logger,
		inbound:  NewQueue[string](),
		outbound: NewQueue[string](),
	}
}

// Lines возвращает очередь входящих строк. Она закрывается по завершении сессии.
func (r *Relay) Lines() *Queue[string] {
	return r.inbound
}

// Send ставит строку в очередь на отправку; перевод строки добавляется при записи.
func (r *Relay) Send(line string) bool {
	return r.outbound.Push(line)
}

// Run подключается, отправляет рукопожатие и крутит насосы до ошибки чтения/записи или отмены ctx.
func (r *Relay) Run(ctx context.Context) error {
	defer r.inbound.Close()

	logger := r.logger.With(zap.String("session", uuid.NewString()), zap.String("addr", r.cfg.Addr))

	conn, err := r.dialer.DialContext(ctx, "tcp", r.cfg.Addr)
	if err != nil {
		return fmt.Errorf("relay: dial %s: %w", r.cfg.Addr, err)
	}
	defer conn.Close()

	if err := writeHandshake(conn, r.cfg); err != nil {
		return fmt.Errorf("relay: handshake: %w", err)
	}
	logger.Info("connected to chat server", zap.String("channel", r.cfg.Channel))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return conn.Close()
	})

	g.Go(func() error {
		err := r.readLoop(conn)
		logger.Info("inbound pump stopped", zap.Error(err))
		return err
	})

	g.Go(func() error {
		err := r.writeLoop(gctx, conn)
		logger.Info("outbound pump stopped", zap.Error(err))
		return err
	})

	err = g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func writeHandshake(w io.Writer, cfg Config) error {
	lines := []string{
		"PASS " + cfg.Token,
		"NICK " + cfg.Nick,
		"JOIN #" + strings.TrimPrefix(cfg.Channel, "#"),
		"CAP REQ :" + TagsCapability,
	}
	for _, line := range lines {
		if err := writeLine(w, line); err != nil {
			return err
		}
	}
	return nil
}

func (r *Relay) readLoop(conn io.Reader) error {
	reader := bufio.NewReader(conn)
	for {
		raw, err := reader.ReadString('\n')
		if line := strings.TrimRight(raw, " \t\r\n"); line != "" {
			telemetry.IncLines()
			r.inbound.Push(line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrClosed
			}
			return fmt.Errorf("relay: read: %w", err)
		}
	}
}

func (r *Relay) writeLoop(ctx context.Context, conn io.Writer) error {
	for {
		line, ok, err := r.outbound.Pop(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := writeLine(conn, line); err != nil {
			return fmt.Errorf("relay: write: %w", err)
		}
		telemetry.IncReplies()
	}
}

func writeLine(w io.Writer, line string) error {
	_, err := io.WriteString(w, line+"\r\n")
	return err
}
