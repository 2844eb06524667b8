package bot

import (
	"context"
	"fmt"
	"sort"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"shopbot/internal/models"
	"shopbot/internal/raffle"
)

// showMainMenu rewrites the message back into the main menu
func (b *Bot) showMainMenu(query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "", false)
	b.editWithMarkup(query.Message.Chat.ID, query.Message.MessageID,
		"🏠 Main menu", b.mainMenuKeyboard(query.From.ID))
}

// showShop lists the catalog with one button per product
func (b *Bot) showShop(query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "", false)

	b.st.Lock()
	ids := make([]int64, 0, len(b.st.Products))
	for id := range b.st.Products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, id := range ids {
		p := b.st.Products[id]
		label := fmt.Sprintf("%s — %d₽", p.Name, p.PriceRub)
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("product_%d", id)),
		})
	}
	b.st.Unlock()

	text := "🛒 Shop\n\nPick a product:"
	if len(rows) == 0 {
		text = "🛒 The shop is empty for now. Check back soon!"
	}
	rows = append(rows, backRow("main"))
	b.editWithMarkup(query.Message.Chat.ID, query.Message.MessageID, text,
		tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// showProduct renders one product card with a buy button
func (b *Bot) showProduct(query *tgbotapi.CallbackQuery) {
	id, ok := callbackSuffixID(query.Data, "product_")
	if !ok {
		b.answerCallback(query.ID, "Bad product id", true)
		return
	}

	b.st.Lock()
	p, found := b.st.Products[id]
	var card string
	if found {
		card = fmt.Sprintf("📦 %s\n\nPrice: %d₽ (%d⭐)", p.Name, p.PriceRub, p.PriceStars)
	}
	b.st.Unlock()

	if !found {
		b.answerCallback(query.ID, "Product no longer exists", true)
		return
	}
	b.answerCallback(query.ID, "", false)

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💳 Buy", fmt.Sprintf("buy_%d", id)),
		),
		backRow("shop"),
	)
	b.editWithMarkup(query.Message.Chat.ID, query.Message.MessageID, card, kb)
}

// handleBuy debits the balance and delivers the product content. The
// whole check-debit-record sequence runs under one state lock so two
// concurrent purchases cannot double-spend the same balance.
func (b *Bot) handleBuy(ctx context.Context, query *tgbotapi.CallbackQuery) {
	userID := query.From.ID
	id, ok := callbackSuffixID(query.Data, "buy_")
	if !ok {
		b.answerCallback(query.ID, "Bad product id", true)
		return
	}

	var (
		content string
		name    string
		price   int64
		outcome string
	)
	b.st.Lock()
	p, found := b.st.Products[id]
	u := b.st.Users[userID]
	switch {
	case !found:
		outcome = "Product no longer exists"
	case u == nil:
		outcome = "Use /start first"
	case u.Balance < p.PriceRub:
		outcome = fmt.Sprintf("Not enough balance: need %d₽, you have %d₽", p.PriceRub, u.Balance)
	default:
		u.Balance -= p.PriceRub
		u.Purchases = append(u.Purchases, id)
		content = p.Content
		name = p.Name
		price = p.PriceRub
	}
	b.st.Unlock()

	if outcome != "" {
		b.answerCallback(query.ID, outcome, true)
		return
	}

	b.answerCallback(query.ID, "Purchase complete!", false)
	b.send(query.Message.Chat.ID, fmt.Sprintf("✅ You bought %s for %d₽.\n\n%s", name, price, content))
	b.logger.Info("Product purchased",
		zap.Int64("user_id", userID),
		zap.Int64("product_id", id),
		zap.Int64("price", price))
}

// showBalance shows the caller's balance with a top-up button
func (b *Bot) showBalance(query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "", false)

	u := b.st.EnsureUser(query.From.ID, query.From.UserName, fullName(query.From))
	b.st.Lock()
	balance := u.Balance
	purchases := len(u.Purchases)
	b.st.Unlock()

	text := fmt.Sprintf("💰 Balance: %d₽\n🛍 Purchases: %d", balance, purchases)
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Top up", "topup"),
		),
		backRow("main"),
	)
	b.editWithMarkup(query.Message.Chat.ID, query.Message.MessageID, text, kb)
}

// handleTopup forwards a top-up request to the admins
func (b *Bot) handleTopup(ctx context.Context, query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "Request sent!", false)
	b.send(query.Message.Chat.ID,
		"💳 Top-up request sent. An operator will contact you to confirm the payment and credit your balance.")
	b.notifyAdminsAtLeast(ctx, models.LevelSupport,
		fmt.Sprintf("💰 Top-up request from %s (@%s, id %d)",
			fullName(query.From), query.From.UserName, query.From.ID))
}

// showRaffles lists open raffles with join buttons
func (b *Bot) showRaffles(query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "", false)

	open := b.engine.Open()
	ids := make([]int64, 0, len(open))
	for id := range open {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	text := "🎲 Active raffles\n\n"
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, id := range ids {
		r := open[id]
		text += fmt.Sprintf("#%d — %d prize(s), %d participant(s), ends %s\n",
			id, r.PrizeCount, len(r.Participants), r.EndsAt.Format("02.01.2006 15:04"))
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🎯 Join raffle #%d", id),
				fmt.Sprintf("join_raffle_%d", id)),
		})
	}
	if len(ids) == 0 {
		text = "🎲 No active raffles right now.\nNew ones soon! 🌟"
	}
	rows = append(rows, backRow("main"))
	b.editWithMarkup(query.Message.Chat.ID, query.Message.MessageID, text,
		tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// handleJoinRaffle enters the caller into a raffle
func (b *Bot) handleJoinRaffle(query *tgbotapi.CallbackQuery) {
	id, ok := callbackSuffixID(query.Data, "join_raffle_")
	if !ok {
		b.answerCallback(query.ID, "Bad raffle id", true)
		return
	}

	status, err := b.engine.Join(id, query.From.ID)
	if err != nil {
		b.answerCallback(query.ID, "This raffle no longer exists.", true)
		return
	}
	switch status {
	case raffle.StatusJoined:
		b.answerCallback(query.ID, "🎉 You're in! Good luck!", false)
	case raffle.StatusAlreadyJoined:
		b.answerCallback(query.ID, "ℹ️ You're already in!", false)
	case raffle.StatusAlreadyFinished:
		b.answerCallback(query.ID, "This raffle has already finished.", false)
	}
}

// showReviews renders the most recent reviews
func (b *Bot) showReviews(query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "", false)

	b.st.Lock()
	reviews := append([]models.Review(nil), b.st.Reviews...)
	b.st.Unlock()

	text := "⭐ Reviews\n\n"
	if len(reviews) == 0 {
		text += "No reviews yet. Be the first!"
	} else {
		start := len(reviews) - 5
		if start < 0 {
			start = 0
		}
		for _, r := range reviews[start:] {
			text += fmt.Sprintf("%s — %d/5 (%s)\n%s\n\n",
				r.Username, r.Rating, r.Date.Format("02.01.2006"), r.Text)
		}
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✍️ Leave a review", "leave_review"),
		),
		backRow("main"),
	)
	b.editWithMarkup(query.Message.Chat.ID, query.Message.MessageID, text, kb)
}

// showAutopostChannels lists partner channels a post can be bought in
func (b *Bot) showAutopostChannels(query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "", false)

	b.st.Lock()
	channels := append([]models.Channel(nil), b.st.AutopostChannels...)
	b.st.Unlock()

	text := "📣 Autoposting\n\nPick a channel for your post:"
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, ch := range channels {
		cost := ch.Cost
		if cost == 0 {
			cost = b.autopostCost
		}
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s — %d₽", ch.Title, cost),
				fmt.Sprintf("autopost_ch_%d", ch.ChannelID)),
		})
	}
	if len(channels) == 0 {
		text = "📣 No partner channels available yet."
	}
	rows = append(rows, backRow("main"))
	b.editWithMarkup(query.Message.Chat.ID, query.Message.MessageID, text,
		tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// raffleEndsIn renders time remaining for admin listings.
func raffleEndsIn(r *models.Raffle, now time.Time) string {
	if r.Finished {
		return "finished"
	}
	d := r.EndsAt.Sub(now).Round(time.Minute)
	if d < 0 {
		return "due"
	}
	return d.String()
}
