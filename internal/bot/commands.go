package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleStart registers the user and shows the main menu
func (b *Bot) handleStart(message *tgbotapi.Message) {
	userID := message.From.ID
	b.st.EnsureUser(userID, message.From.UserName, fullName(message.From))

	if !b.isSubscribed(userID) {
		b.sendSubscriptionPrompt(message.Chat.ID)
		return
	}

	text := fmt.Sprintf("Welcome, %s! 👋\n\nBrowse the shop, enter raffles, open a support ticket or leave a review — all from the menu below.",
		fullName(message.From))
	b.sendWithMarkup(message.Chat.ID, text, b.mainMenuKeyboard(userID))
}

// handleAdminCommand opens the admin panel for privileged users
func (b *Bot) handleAdminCommand(message *tgbotapi.Message) {
	level := b.st.AdminLevel(message.From.ID)
	if level == 0 {
		b.send(message.Chat.ID, "Access denied.")
		return
	}
	b.sendWithMarkup(message.Chat.ID, "⚙️ Admin panel\nPick a section:", b.adminPanelKeyboard(level))
}

// fullName renders a Telegram user's display name.
func fullName(u *tgbotapi.User) string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}
