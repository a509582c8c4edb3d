package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/akrambak/aegis-planner/internal/approval"
)

// telegramSender is the slice of the bot API the notifier needs.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier delivers approval requests and failure alerts to a
// Telegram chat.
type TelegramNotifier struct {
	bot    telegramSender
	chatID int64
}

// NewTelegramNotifier authenticates the bot token and targets the given
// chat.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth failed: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// NotifyApproval sends the ticket summary to the reviewer chat.
func (n *TelegramNotifier) NotifyApproval(_ context.Context, ticket approval.Ticket) error {
	text := fmt.Sprintf(
		"Task approval required\nTicket: %s\nRisk: %s\nTask: %s\nReason: %s",
		ticket.ID, ticket.RiskTier, ticket.TaskText, ticket.Reason,
	)
	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		return fmt.Errorf("send telegram approval: %w", err)
	}
	return nil
}

// NotifyFailure sends a failure alert to the chat.
func (n *TelegramNotifier) NotifyFailure(_ context.Context, alert FailureAlert) error {
	text := fmt.Sprintf(
		"Task failure alert\nTask: %s\nError: %s\nRun: %s\nNode: %s",
		alert.Task, alert.Error, alert.RunID, alert.Node,
	)
	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		return fmt.Errorf("send telegram alert: %w", err)
	}
	return nil
}
