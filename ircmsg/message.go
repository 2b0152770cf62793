// Package ircmsg разбирает строки Twitch IRC (с расширением twitch.tv/tags) в структуры.
// Разбор никогда не падает: отсутствующие или битые части оставляют соответствующие поля пустыми.
package ircmsg

import "strings"

// Message — разобранная строка протокола.
type Message struct {
	Tags          Tags
	Source        *Source
	Command       *Command
	Parameters    string
	HasParameters bool
}

// Source — префикс отправителя `:nick!user@host`.
type Source struct {
	Nick string
	Host string
}

// Command — распознанная команда протокола.
type Command struct {
	Verb       string
	Channel    string
	CapAck     *bool
	BotCommand *BotCommand
}

// BotCommand — команда бота из текста сообщения, например "!hello Bob".
type BotCommand struct {
	Token  string
	Params string
}

// Parse разбирает одну строку без завершающего перевода строки.
func Parse(line string) Message {
	var msg Message
	rest := line

	if strings.HasPrefix(rest, "@") {
		if end := strings.IndexByte(rest, ' '); end >= 0 {
			msg.Tags = parseTags(rest[1:end])
			rest = rest[end+1:]
		}
	}

	if strings.HasPrefix(rest, ":") {
		if end := strings.IndexByte(rest, ' '); end >= 0 {
			msg.Source = parseSource(rest[1:end])
			rest = rest[end+1:]
		}
	}

	rawCommand := rest
	if colon := strings.IndexByte(rest, ':'); colon >= 0 {
		rawCommand = rest[:colon]
		msg.Parameters = rest[colon+1:]
		msg.HasParameters = true
	}

	msg.Command = parseCommand(strings.TrimSpace(rawCommand))

	if msg.HasParameters && msg.Command != nil {
		if bc, ok := ParseBotCommand(msg.Parameters); ok {
			msg.Command.BotCommand = &bc
		}
	}

	return msg
}

// ParseBotCommand выделяет команду бота из параметров, начинающихся с '!'.
// Параметры команды склеиваются обратно через одиночные пробелы.
func ParseBotCommand(params string) (BotCommand, bool) {
	if !strings.HasPrefix(params, "!") {
		return BotCommand{}, false
	}
	parts := strings.Fields(params[1:])
	if len(parts) == 0 {
		return BotCommand{}, false
	}
	return BotCommand{
		Token:  parts[0],
		Params: strings.Join(parts[1:], " "),
	}, true
}

func parseSource(raw string) *Source {
	parts := strings.Split(raw, "!")
	if len(parts) == 2 {
		return &Source{Nick: parts[0], Host: parts[1]}
	}
	return &Source{Host: parts[0]}
}

func parseCommand(raw string) *Command {
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		return nil
	}

	verb := parts[0]
	switch verb {
	case "JOIN", "PART", "NOTICE", "CLEARCHAT", "HOSTTARGET", "PRIVMSG", "USERSTATE", "ROOMSTATE", "001":
		return &Command{Verb: verb, Channel: at(parts, 1)}
	case "PING", "GLOBALUSERSTATE", "RECONNECT":
		return &Command{Verb: verb}
	case "CAP":
		ack := at(parts, 2) == "ACK"
		return &Command{Verb: verb, CapAck: &ack}
	}

	// Остальное, включая 002-004, 353, 366, 372, 375, 376 и 421, не интересно боту.
	return nil
}

func at(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}
