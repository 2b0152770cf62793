// Package dispatch превращает команды бота из чата в ответы: ищет команду в реестре,
// применяет кулдаун и подставляет параметры в шаблон ответа.
package dispatch

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"twitch-chat-bot/commands"
	"twitch-chat-bot/ircmsg"
	"twitch-chat-bot/telemetry"
)

// Reply — ответ бота в канал.
type Reply struct {
	Channel string
	Text    string
}

// String форматирует ответ как строку PRIVMSG.
func (r Reply) String() string {
	return fmt.Sprintf("PRIVMSG %s :%s", r.Channel, r.Text)
}

// Engine обрабатывает команды бота. Безопасен для конкурентного использования.
type Engine struct {
	registry  *commands.Registry
	cooldowns *Cooldowns
	logger    *zap.Logger
	now       func() time.Time
}

// Option настраивает Engine.
type Option func(*Engine)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine создаёт Engine поверх реестра команд с пустой таблицей кулдаунов.
func NewEngine(registry *commands.Registry, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		registry:  registry,
		cooldowns: NewCooldowns(),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cooldowns возвращает таблицу кулдаунов движка.
func (e *Engine) Cooldowns() *Cooldowns {
	return e.cooldowns
}

// Dispatch обрабатывает команду бота от displayName в channel.
// Возвращает false, если команда не найдена, на кулдауне или настроена неверно.
func (e *Engine) Dispatch(cmd ircmsg.BotCommand, displayName, channel string) (Reply, bool) {
	def, ok := e.registry.Lookup(cmd.Token)
	if !ok {
		e.logger.Warn("command not found", zap.String("command", cmd.Token))
		telemetry.IncDispatch(telemetry.ResultNotFound)
		return Reply{}, false
	}

	response := strings.ReplaceAll(def.Response, commands.Token(commands.SenderPlaceholder), displayName)

	key, ok := scopeKey(def.Scope, displayName)
	if !ok {
		e.logger.Error("invalid cooldown scope",
			zap.String("command", cmd.Token),
			zap.String("scope", string(def.Scope)))
		telemetry.IncDispatch(telemetry.ResultInvalidScope)
		return Reply{}, false
	}

	if !e.cooldowns.Allow(cmd.Token, key, def.CooldownSeconds, e.now().Unix()) {
		e.logger.Info("command is under cooldown",
			zap.String("command", cmd.Token),
			zap.String("scope", string(def.Scope)),
			zap.String("user", displayName))
		telemetry.IncDispatch(telemetry.ResultCooldown)
		return Reply{}, false
	}

	response = substitute(response, def.Name, cmd.Params)

	e.logger.Info("handled command",
		zap.String("command", cmd.Token),
		zap.String("params", cmd.Params),
		zap.String("user", displayName))
	telemetry.IncDispatch(telemetry.ResultHandled)

	return Reply{Channel: channel, Text: response}, true
}

func scopeKey(scope commands.Scope, displayName string) (string, bool) {
	switch scope {
	case commands.ScopeUser:
		return displayName, true
	case commands.ScopeGlobal:
		return GlobalKey, true
	default:
		return "", false
	}
}

// substitute подставляет параметры по позиции плейсхолдеров в имени команды.
// Лишние плейсхолдеры остаются в тексте как есть.
func substitute(response, name, params string) string {
	args := strings.Fields(params)
	if len(args) == 0 {
		return response
	}

	var pairs []string
	for i, placeholder := range commands.Positional(name) {
		if i >= len(args) {
			break
		}
		pairs = append(pairs, commands.Token(placeholder), args[i])
	}
	if len(pairs) == 0 {
		return response
	}
	return strings.NewReplacer(pairs...).Replace(response)
}
