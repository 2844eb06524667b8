package bot

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// sendMessage sends any chattable, swallowing delivery errors with a log
// line. A nil API (tests) is a no-op.
func (b *Bot) sendMessage(c tgbotapi.Chattable) {
	if b.api == nil {
		return // For testing
	}
	if _, err := b.api.Send(c); err != nil {
		b.logger.Warn("Failed to send message", zap.Error(err))
	}
}

// send sends plain text to a chat.
func (b *Bot) send(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

// sendWithMarkup sends text with an inline keyboard.
func (b *Bot) sendWithMarkup(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	b.sendMessage(msg)
}

// editWithMarkup rewrites a message in place, the way inline menus
// navigate.
func (b *Bot) editWithMarkup(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, kb)
	b.sendMessage(edit)
}

// answerCallback acknowledges a callback query, optionally with an alert.
func (b *Bot) answerCallback(queryID, text string, alert bool) {
	if b.api == nil {
		return // For testing
	}
	callback := tgbotapi.NewCallback(queryID, text)
	callback.ShowAlert = alert
	if _, err := b.api.Request(callback); err != nil {
		b.logger.Warn("Failed to answer callback query", zap.Error(err))
	}
}

// Conversation state helpers. Webhook mode handles updates on separate
// goroutines, so the map is mutex-guarded.

func (b *Bot) getState(userID int64) (*ConversationState, bool) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	s, ok := b.states[userID]
	return s, ok
}

func (b *Bot) setState(userID int64, s *ConversationState) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	b.states[userID] = s
}

func (b *Bot) clearState(userID int64) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	delete(b.states, userID)
}

// parseID parses a decimal Telegram identity, tolerating a leading @-less
// numeric string with whitespace.
func parseID(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// callbackSuffixID extracts the trailing id of callback data like
// "buy_42".
func callbackSuffixID(data, prefix string) (int64, bool) {
	id, err := parseID(strings.TrimPrefix(data, prefix))
	if err != nil {
		return 0, false
	}
	return id, true
}
