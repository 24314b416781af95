// Package notify delivers out-of-band alerts for events the user would
// otherwise miss while disconnected.
package notify

import (
	"fmt"
	"log"
	"strconv"

	"talkio/backend/internal/models"
	"talkio/backend/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramService sends missed-call alerts to users who linked a Telegram
// account. It is strictly one-way; failures are logged and swallowed.
type TelegramService struct {
	bot   *tgbotapi.BotAPI
	store storage.Storage
}

func NewTelegramService(token string, store storage.Storage) (*TelegramService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.Printf("Telegram notifier authorized as %s", bot.Self.UserName)
	return &TelegramService{bot: bot, store: store}, nil
}

// NotifyMissedCall tells the receiver about a call that rang out while they
// were offline. Users without a linked Telegram account are skipped.
func (t *TelegramService) NotifyMissedCall(call *models.Call) {
	user, err := t.store.GetUserByID(call.ReceiverID)
	if err != nil || user == nil || user.TelegramID == "" {
		return
	}

	chatID, err := strconv.ParseInt(user.TelegramID, 10, 64)
	if err != nil {
		log.Printf("WARNING: User %s has malformed telegram id %q", user.ID, user.TelegramID)
		return
	}

	text := fmt.Sprintf("Missed %s call", call.CallType)
	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("WARNING: Failed to send missed-call alert to user %s: %v", user.ID, err)
	}
}
