// Package model содержит модели архива чата.
package model

import "time"

// ChatMessage — сообщение чата в том виде, в каком оно попадает в архив.
type ChatMessage struct {
	ID          string
	Channel     string
	UserID      string
	Username    string
	DisplayName string
	Text        string
	Badges      map[string]int
	Emotes      []string
	Color       string
	IsMod       bool
	Bits        int
	// BotCommand — токен команды бота, если сообщение начинается с '!'.
	BotCommand string
	SentAt     time.Time
}

// Notice описывает notice-событие, полученное от Twitch.
type Notice struct {
	Channel  string
	ID       string
	Message  string
	Tags     map[string]string
	NoticeAt time.Time
}
