// Package twitch переводит сырые строки чата в модели архива с помощью go-twitch-irc.
package twitch

import (
	"context"
	"strconv"
	"strings"
	"time"

	twitchirc "github.com/gempir/go-twitch-irc/v4"

	"twitch-chat-bot/ircmsg"
	"twitch-chat-bot/model"
)

// Handler принимает Twitch-события, преобразованные в доменные модели.
type Handler interface {
	HandleChat(context.Context, model.ChatMessage)
	HandleNotice(context.Context, model.Notice)
}

// Archiver разбирает строки PRIVMSG и NOTICE и передаёт их в Handler.
type Archiver struct {
	handler Handler
	now     func() time.Time
}

// NewArchiver создаёт Archiver поверх handler.
func NewArchiver(handler Handler) *Archiver {
	return &Archiver{handler: handler, now: time.Now}
}

// Observe обрабатывает одну сырую строку; прочие типы сообщений игнорируются.
func (a *Archiver) Observe(ctx context.Context, line string) {
	switch msg := twitchirc.ParseMessage(line).(type) {
	case *twitchirc.PrivateMessage:
		a.handler.HandleChat(ctx, a.toChatMessage(msg))
	case *twitchirc.NoticeMessage:
		a.handler.HandleNotice(ctx, a.toNotice(msg))
	}
}

func (a *Archiver) toChatMessage(m *twitchirc.PrivateMessage) model.ChatMessage {
	badges := make(map[string]int, len(m.User.Badges))
	for k, v := range m.User.Badges {
		badges[k] = v
	}

	emotes := make([]string, 0, len(m.Emotes))
	for _, e := range m.Emotes {
		emotes = append(emotes, e.Name)
	}

	sentAt := m.Time
	if sentAt.IsZero() {
		sentAt = a.now().UTC()
	}

	var botCommand string
	if bc, ok := ircmsg.ParseBotCommand(m.Message); ok {
		botCommand = bc.Token
	}

	return model.ChatMessage{
		ID:          m.ID,
		Channel:     normalizeChannel(m.Channel),
		UserID:      m.User.ID,
		Username:    m.User.Name,
		DisplayName: m.User.DisplayName,
		Text:        m.Message,
		Badges:      badges,
		Emotes:      emotes,
		Color:       m.User.Color,
		IsMod:       m.User.Badges["moderator"] > 0 || m.User.Badges["broadcaster"] > 0,
		Bits:        m.Bits,
		BotCommand:  botCommand,
		SentAt:      sentAt,
	}
}

func (a *Archiver) toNotice(msg *twitchirc.NoticeMessage) model.Notice {
	return model.Notice{
		Channel:  normalizeChannel(msg.Channel),
		ID:       msg.MsgID,
		Message:  msg.Message,
		Tags:     msg.Tags,
		NoticeAt: a.noticeTimestamp(msg.Tags),
	}
}

func (a *Archiver) noticeTimestamp(tags map[string]string) time.Time {
	if ts := tags["tmi-sent-ts"]; ts != "" {
		if ms, err := strconv.ParseInt(ts, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC()
		}
	}

	return a.now().UTC()
}

func normalizeChannel(ch string) string {
	return strings.TrimPrefix(strings.TrimSpace(ch), "#")
}
