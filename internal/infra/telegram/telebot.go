package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"pulse/internal/domain/notification"
)

var _ notification.Sender = (*BotSender)(nil)

// BotSender delivers notifications through the Telegram Bot API. Recipients
// are addressed by the chat id stored on their user row.
type BotSender struct {
	bot *tele.Bot
}

// NewBotSender creates a sender for the given bot token.
func NewBotSender(token string) (*BotSender, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram bot token is empty")
	}
	// No poller: this bot only sends, it never consumes updates.
	bot, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	return &BotSender{bot: bot}, nil
}

// Channel returns the telegram channel identifier.
func (s *BotSender) Channel() notification.Channel {
	return notification.ChannelTelegram
}

// Send delivers the notification to the contact's Telegram chat.
func (s *BotSender) Send(ctx context.Context, contact *notification.Contact, n *notification.Notification) error {
	recipient := &tele.User{ID: contact.TelegramChatID}
	text := fmt.Sprintf("<b>%s</b>\n\n%s", n.Title, n.Body)
	if _, err := s.bot.Send(recipient, text, tele.ModeHTML); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}
