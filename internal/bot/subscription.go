package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"shopbot/internal/models"
)

// The shop, raffle and review surfaces require membership in every
// required channel. Non-subscribers get the channel list with a re-check
// button instead.

// isSubscribed reports whether the user is a member of every required
// channel. With no required channels everyone passes.
func (b *Bot) isSubscribed(userID int64) bool {
	b.st.Lock()
	channels := append([]models.Channel(nil), b.st.RequiredChannels...)
	b.st.Unlock()

	for _, ch := range channels {
		if !b.isChannelMember(ch.ChannelID, userID) {
			return false
		}
	}
	return true
}

// isChannelMember checks one channel's membership. Lookup failures count
// as subscribed so a Telegram outage never locks users out.
func (b *Bot) isChannelMember(channelID, userID int64) bool {
	if b.checkMember != nil {
		return b.checkMember(channelID, userID)
	}
	if b.api == nil {
		return true // For testing
	}

	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: channelID, UserID: userID},
	})
	if err != nil {
		b.logger.Warn("Failed to check channel membership",
			zap.Int64("channel_id", channelID),
			zap.Int64("user_id", userID),
			zap.Error(err))
		return true
	}
	switch member.Status {
	case "creator", "administrator", "member":
		return true
	}
	return false
}

// gateSubscription passes subscribed callers through; everyone else gets
// the subscription prompt and false.
func (b *Bot) gateSubscription(query *tgbotapi.CallbackQuery) bool {
	if b.isSubscribed(query.From.ID) {
		return true
	}
	b.answerCallback(query.ID, "Subscribe to the required channels first.", true)
	b.sendSubscriptionPrompt(query.Message.Chat.ID)
	return false
}

// sendSubscriptionPrompt sends the required-channel list with invite
// links and a re-check button.
func (b *Bot) sendSubscriptionPrompt(chatID int64) {
	b.st.Lock()
	channels := append([]models.Channel(nil), b.st.RequiredChannels...)
	b.st.Unlock()

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, ch := range channels {
		if ch.InviteLink == "" {
			continue
		}
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonURL("📺 "+ch.Title, ch.InviteLink),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("✅ I subscribed", "check_sub"),
	})
	b.sendWithMarkup(chatID,
		"📢 To use the bot, subscribe to our channels first:",
		tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// handleCheckSubscription re-checks after the user claims to have
// subscribed.
func (b *Bot) handleCheckSubscription(query *tgbotapi.CallbackQuery) {
	if !b.isSubscribed(query.From.ID) {
		b.answerCallback(query.ID, "You are not subscribed to every channel yet.", true)
		return
	}
	b.answerCallback(query.ID, "Thank you for subscribing!", false)
	b.sendWithMarkup(query.Message.Chat.ID, "🏠 Main menu", b.mainMenuKeyboard(query.From.ID))
}
