// Package notify holds outbound notification collaborators.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramConfig holds bot credentials and the broadcast target chat.
type TelegramConfig struct {
	Token  string
	ChatID int64
}

// TelegramBroadcaster relays maintenance notices to a Telegram chat.
type TelegramBroadcaster struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramBroadcaster(cfg TelegramConfig) (*TelegramBroadcaster, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	return &TelegramBroadcaster{bot: bot, chatID: cfg.ChatID}, nil
}

// Broadcast sends msg to the configured chat.
func (b *TelegramBroadcaster) Broadcast(msg string) error {
	if _, err := b.bot.Send(tgbotapi.NewMessage(b.chatID, msg)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// NoopBroadcaster is wired when no bot token is configured.
type NoopBroadcaster struct{}

func (NoopBroadcaster) Broadcast(string) error { return nil }
