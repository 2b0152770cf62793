package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"twitch-chat-bot/dispatch"
	"twitch-chat-bot/ircmsg"
	"twitch-chat-bot/transport"
)

// Relay — транспорт, из которого читаются строки и в который пишутся ответы.
type Relay interface {
	Run(ctx context.Context) error
	Lines() *transport.Queue[string]
	Send(line string) bool
}

// Observer получает каждую входящую строку, например для архива.
type Observer interface {
	Observe(ctx context.Context, line string)
}

// Service связывает транспорт, парсер строк и движок команд.
type Service struct {
	relay    Relay
	engine   *dispatch.Engine
	observer Observer
	logger   *zap.Logger
}

// New создаёт Service. observer может быть nil.
func New(relay Relay, engine *dispatch.Engine, observer Observer, logger *zap.Logger) *Service {
	return &Service{relay: relay, engine: engine, observer: observer, logger: logger}
}

// Run запускает транспорт и цикл обработки строк и блокируется до конца сессии или отмены контекста.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.relay.Run(gctx)
	})

	g.Go(func() error {
		return s.loop(gctx)
	})

	return g.Wait()
}

func (s *Service) loop(ctx context.Context) error {
	lines := s.relay.Lines()
	for {
		line, ok, err := lines.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if !ok {
			return nil
		}

		if s.observer != nil {
			s.observer.Observe(ctx, line)
		}

		if reply, ok := s.Handle(line); ok {
			s.relay.Send(reply)
		}
	}
}

// Handle разбирает строку и возвращает ответ для сервера, если он нужен.
func (s *Service) Handle(line string) (string, bool) {
	msg := ircmsg.Parse(line)
	if msg.Command == nil {
		return "", false
	}

	switch msg.Command.Verb {
	case "PRIVMSG":
		return s.handlePrivmsg(msg)
	case "PING":
		s.logger.Debug("ping", zap.String("payload", msg.Parameters))
		if !msg.HasParameters {
			return "", false
		}
		return "PONG " + msg.Parameters, true
	default:
		s.logger.Debug("unhandled",
			zap.String("verb", msg.Command.Verb),
			zap.String("params", msg.Parameters))
		return "", false
	}
}

func (s *Service) handlePrivmsg(msg ircmsg.Message) (string, bool) {
	cmd := msg.Command
	if cmd.BotCommand == nil || cmd.Channel == "" {
		return "", false
	}

	displayName, ok := msg.Tags.String("display-name")
	if !ok {
		s.logger.Error("no display-name tag on bot command", zap.String("command", cmd.BotCommand.Token))
		return "", false
	}

	reply, ok := s.engine.Dispatch(*cmd.BotCommand, displayName, cmd.Channel)
	if !ok {
		return "", false
	}
	return reply.String(), true
}
