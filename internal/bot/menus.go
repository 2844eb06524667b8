package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"shopbot/internal/models"
)

// mainMenuKeyboard builds the start menu. Admins get an extra row.
func (b *Bot) mainMenuKeyboard(userID int64) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("🛒 Shop", "shop"),
			tgbotapi.NewInlineKeyboardButtonData("💰 Balance", "balance"),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("🎲 Raffles", "raffles"),
			tgbotapi.NewInlineKeyboardButtonData("🆘 Support", "support"),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("⭐ Reviews", "reviews"),
			tgbotapi.NewInlineKeyboardButtonData("📣 Autoposting", "autoposting"),
		},
	}
	if b.st.AdminLevel(userID) > 0 {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Admin panel", "admin_panel"),
		})
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// adminPanelKeyboard builds the admin panel for the given privilege level.
func (b *Bot) adminPanelKeyboard(level int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	// Level 1: support
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("🎫 Tickets", "admin_tickets"),
	})

	// Level 2: moderation
	if level >= models.LevelModerator {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("📣 Autopost queue", "admin_autoposts"),
			tgbotapi.NewInlineKeyboardButtonData("⭐ Reviews", "admin_reviews"),
		})
	}

	// Level 3: full administration
	if level >= models.LevelAdmin {
		rows = append(rows,
			[]tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData("📦 Products", "admin_products"),
				tgbotapi.NewInlineKeyboardButtonData("🎲 Raffles", "admin_raffles"),
			},
			[]tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData("💰 Edit balance", "admin_balance"),
				tgbotapi.NewInlineKeyboardButtonData("👮 Admins", "admin_admins"),
			},
			[]tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData("📺 Required channels", "admin_channels"),
				tgbotapi.NewInlineKeyboardButtonData("📡 Autopost channels", "admin_autopost_channels"),
			},
		)
	}

	rows = append(rows, backRow("main"))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// backRow is the trailing back-navigation row of the inline menus.
func backRow(target string) []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", target),
	)
}
