package bot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"shopbot/internal/models"
)

// requireLevel answers the callback with an alert and returns false when
// the caller lacks the given privilege level.
func (b *Bot) requireLevel(query *tgbotapi.CallbackQuery, level int) bool {
	if b.st.AdminLevel(query.From.ID) < level {
		b.answerCallback(query.ID, "🚫 Access denied!", true)
		return false
	}
	return true
}

// handleAdminCallback routes the admin panel callbacks
func (b *Bot) handleAdminCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	data := query.Data

	switch {
	case data == "admin_panel":
		if !b.requireLevel(query, models.LevelSupport) {
			return
		}
		b.answerCallback(query.ID, "", false)
		b.editWithMarkup(query.Message.Chat.ID, query.Message.MessageID,
			"⚙️ Admin panel\nPick a section:", b.adminPanelKeyboard(b.st.AdminLevel(query.From.ID)))

	case data == "admin_tickets":
		if !b.requireLevel(query, models.LevelSupport) {
			return
		}
		b.showTickets(query)
	case strings.HasPrefix(data, "ticket_"):
		if !b.requireLevel(query, models.LevelSupport) {
			return
		}
		b.showTicket(query)
	case strings.HasPrefix(data, "reply_ticket_"):
		if !b.requireLevel(query, models.LevelSupport) {
			return
		}
		b.startTicketReplyConversation(query)
	case strings.HasPrefix(data, "close_ticket_"):
		if !b.requireLevel(query, models.LevelSupport) {
			return
		}
		b.handleCloseTicket(ctx, query)

	case data == "admin_autoposts":
		if !b.requireLevel(query, models.LevelModerator) {
			return
		}
		b.showPendingAutoposts(query)
	case strings.HasPrefix(data, "autopost_approve_"):
		if !b.requireLevel(query, models.LevelModerator) {
			return
		}
		b.handleAutopostApprove(ctx, query)
	case strings.HasPrefix(data, "autopost_reject_"):
		if !b.requireLevel(query, models.LevelModerator) {
			return
		}
		b.handleAutopostReject(ctx, query)

	case data == "admin_reviews":
		if !b.requireLevel(query, models.LevelModerator) {
			return
		}
		b.showAdminReviews(query)
	case strings.HasPrefix(data, "del_review_"):
		if !b.requireLevel(query, models.LevelModerator) {
			return
		}
		b.handleDeleteReview(query)

	case data == "admin_products":
		if !b.requireLevel(query, models.LevelAdmin) {
			return
		}
		b.showAdminProducts(query)
	case data == "create_product":
		if !b.requireLevel(query, models.LevelAdmin) {
			return
		}
		b.startCreateProductConversation(query)
	case strings.HasPrefix(data, "del_product_"):
		if !b.requireLevel(query, models.LevelAdmin) {
			return
		}
		b.handleDeleteProduct(query)

	case data == "admin_raffles":
		if !b.requireLevel(query, models.LevelAdmin) {
			return
		}
		b.showAdminRaffles(query)
	case data == "create_raffle":
		if !b.requireLevel(query, models.LevelAdmin) {
			return
		}
		b.startCreateRaffleConversation(query)

	case data == "admin_balance":
		if !b.requireLevel(query, models.LevelAdmin) {
			return
		}
		b.startEditBalanceConversation(query)

	case data == "admin_admins":
		if !b.requireLevel(query, models.LevelAdmin) {
			return
		}
		b.showAdmins(query)
	case data == "add_admin":
		if !b.requireLevel(query, models.LevelAdmin) {
			return
		}
		b.startAddAdminConversation(query)
	case strings.HasPrefix(data, "del_admin_"):
		if !b.requireLevel(query, models.LevelAdmin) {
			return
		}
		b.handleDeleteAdmin(query)

	case data == "admin_channels":
		if !b.requireLevel(query, models.LevelAdmin) {
			return
		}
		b.showRequiredChannels(query)
	case data == "add_required_channel":
		if !b.requireLevel(query, models.LevelAdmin) {
			return
		}
		b.startAddChannelConversation(query, "add_required_channel")
	case strings.HasPrefix(data, "del_required_"):
		if !b.requireLevel(query, models.LevelAdmin) {
			return
		}
		b.handleDeleteRequiredChannel(query)

	case data == "admin_autopost_channels":
		if !b.requireLevel(query, models.LevelAdmin) {
			return
		}
		b.showAutopostChannelAdmin(query)
	case data == "add_autopost_channel":
		if !b.requireLevel(query, models.LevelAdmin) {
			return
		}
		b.startAddChannelConversation(query, "add_autopost_channel")
	case strings.HasPrefix(data, "del_autopost_"):
		if !b.requireLevel(query, models.LevelAdmin) {
			return
		}
		b.handleDeleteAutopostChannel(query)

	default:
		b.answerCallback(query.ID, "", false)
	}
}

// showTickets lists open support tickets
func (b *Bot) showTickets(query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "", false)

	b.st.Lock()
	ids := make([]int64, 0, len(b.st.Tickets))
	for id, t := range b.st.Tickets {
		if t.Open {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, id := range ids {
		t := b.st.Tickets[id]
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("#%d — %s", id, t.Name),
				fmt.Sprintf("ticket_%d", id)),
		})
	}
	b.st.Unlock()

	text := "🎫 Open tickets:"
	if len(rows) == 0 {
		text = "🎫 No open tickets."
	}
	rows = append(rows, backRow("admin_panel"))
	b.editWithMarkup(query.Message.Chat.ID, query.Message.MessageID, text,
		tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// showTicket renders one ticket's message log
func (b *Bot) showTicket(query *tgbotapi.CallbackQuery) {
	id, ok := callbackSuffixID(query.Data, "ticket_")
	if !ok {
		b.answerCallback(query.ID, "Bad ticket id", true)
		return
	}

	b.st.Lock()
	t, found := b.st.Tickets[id]
	var text string
	if found {
		text = fmt.Sprintf("🎫 Ticket #%d from %s (@%s)\n\n", id, t.Name, t.Username)
		for _, m := range t.Messages {
			text += fmt.Sprintf("[%s] %s: %s\n", m.At.Format("02.01 15:04"), m.From, m.Text)
		}
	}
	b.st.Unlock()

	if !found {
		b.answerCallback(query.ID, "Ticket not found", true)
		return
	}
	b.answerCallback(query.ID, "", false)

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✍️ Reply", fmt.Sprintf("reply_ticket_%d", id)),
			tgbotapi.NewInlineKeyboardButtonData("✅ Close", fmt.Sprintf("close_ticket_%d", id)),
		),
		backRow("admin_tickets"),
	)
	b.editWithMarkup(query.Message.Chat.ID, query.Message.MessageID, text, kb)
}

// handleCloseTicket closes a ticket and tells its owner
func (b *Bot) handleCloseTicket(ctx context.Context, query *tgbotapi.CallbackQuery) {
	id, ok := callbackSuffixID(query.Data, "close_ticket_")
	if !ok {
		b.answerCallback(query.ID, "Bad ticket id", true)
		return
	}

	b.st.Lock()
	t, found := b.st.Tickets[id]
	var ownerID int64
	if found && t.Open {
		t.Open = false
		ownerID = t.UserID
	}
	b.st.Unlock()

	if !found {
		b.answerCallback(query.ID, "Ticket not found", true)
		return
	}
	b.answerCallback(query.ID, "Ticket closed", false)
	if ownerID != 0 {
		if err := b.NotifyUser(ctx, ownerID, fmt.Sprintf("🎫 Your ticket #%d has been closed.", id)); err != nil {
			b.logger.Warn("Failed to notify ticket owner", zap.Int64("ticket_id", id), zap.Error(err))
		}
	}
}

// showPendingAutoposts lists autoposts awaiting moderation
func (b *Bot) showPendingAutoposts(query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "", false)

	b.st.Lock()
	ids := make([]int64, 0, len(b.st.Autoposts))
	for id := range b.st.Autoposts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	text := "📣 Pending autoposts:\n\n"
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, id := range ids {
		p := b.st.Autoposts[id]
		text += fmt.Sprintf("#%d from id %d → channel %d:\n%s\n\n", id, p.UserID, p.ChannelID, p.Text)
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ Approve #%d", id), fmt.Sprintf("autopost_approve_%d", id)),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("❌ Reject #%d", id), fmt.Sprintf("autopost_reject_%d", id)),
		})
	}
	b.st.Unlock()

	if len(ids) == 0 {
		text = "📣 No pending autoposts."
	}
	rows = append(rows, backRow("admin_panel"))
	b.editWithMarkup(query.Message.Chat.ID, query.Message.MessageID, text,
		tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// handleAutopostApprove publishes a pending autopost to its channel
func (b *Bot) handleAutopostApprove(ctx context.Context, query *tgbotapi.CallbackQuery) {
	id, ok := callbackSuffixID(query.Data, "autopost_approve_")
	if !ok {
		b.answerCallback(query.ID, "Bad post id", true)
		return
	}

	b.st.Lock()
	p, found := b.st.Autoposts[id]
	if found {
		delete(b.st.Autoposts, id)
	}
	b.st.Unlock()

	if !found {
		b.answerCallback(query.ID, "Post already handled", false)
		return
	}

	b.send(p.ChannelID, p.Text)
	b.answerCallback(query.ID, "Post published", false)
	if err := b.NotifyUser(ctx, p.UserID, fmt.Sprintf("📣 Your autopost #%d was approved and published!", id)); err != nil {
		b.logger.Warn("Failed to notify autopost author", zap.Int64("post_id", id), zap.Error(err))
	}
}

// handleAutopostReject refunds and drops a pending autopost
func (b *Bot) handleAutopostReject(ctx context.Context, query *tgbotapi.CallbackQuery) {
	id, ok := callbackSuffixID(query.Data, "autopost_reject_")
	if !ok {
		b.answerCallback(query.ID, "Bad post id", true)
		return
	}

	b.st.Lock()
	p, found := b.st.Autoposts[id]
	if found {
		delete(b.st.Autoposts, id)
		if u := b.st.Users[p.UserID]; u != nil {
			u.Balance += p.Cost
		}
	}
	b.st.Unlock()

	if !found {
		b.answerCallback(query.ID, "Post already handled", false)
		return
	}
	b.answerCallback(query.ID, "Post rejected, cost refunded", false)
	if err := b.NotifyUser(ctx, p.UserID, fmt.Sprintf("📣 Your autopost #%d was rejected. %d₽ refunded.", id, p.Cost)); err != nil {
		b.logger.Warn("Failed to notify autopost author", zap.Int64("post_id", id), zap.Error(err))
	}
}

// showAdminReviews lists reviews with delete buttons
func (b *Bot) showAdminReviews(query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "", false)

	b.st.Lock()
	reviews := append([]models.Review(nil), b.st.Reviews...)
	b.st.Unlock()

	text := "⭐ Reviews (moderation):\n\n"
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, r := range reviews {
		text += fmt.Sprintf("%d. %s — %d/5: %s\n", i+1, r.Username, r.Rating, r.Text)
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🗑 Delete review %d", i+1),
				fmt.Sprintf("del_review_%d", i)),
		})
	}
	if len(reviews) == 0 {
		text = "⭐ No reviews."
	}
	rows = append(rows, backRow("admin_panel"))
	b.editWithMarkup(query.Message.Chat.ID, query.Message.MessageID, text,
		tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// handleDeleteReview removes a review by list index
func (b *Bot) handleDeleteReview(query *tgbotapi.CallbackQuery) {
	idx, err := strconv.Atoi(strings.TrimPrefix(query.Data, "del_review_"))
	if err != nil {
		b.answerCallback(query.ID, "Bad review index", true)
		return
	}

	b.st.Lock()
	deleted := false
	if idx >= 0 && idx < len(b.st.Reviews) {
		b.st.Reviews = append(b.st.Reviews[:idx], b.st.Reviews[idx+1:]...)
		deleted = true
	}
	b.st.Unlock()

	if deleted {
		b.answerCallback(query.ID, "Review deleted", false)
	} else {
		b.answerCallback(query.ID, "Review already deleted", false)
	}
}

// showAdminProducts lists products with create/delete controls
func (b *Bot) showAdminProducts(query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "", false)

	b.st.Lock()
	ids := make([]int64, 0, len(b.st.Products))
	for id := range b.st.Products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	text := "📦 Products:\n\n"
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, id := range ids {
		p := b.st.Products[id]
		text += fmt.Sprintf("#%d %s — %d₽\n", id, p.Name, p.PriceRub)
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🗑 Delete #%d", id),
				fmt.Sprintf("del_product_%d", id)),
		})
	}
	b.st.Unlock()

	if len(ids) == 0 {
		text = "📦 No products."
	}
	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("➕ Create product", "create_product"),
		},
		backRow("admin_panel"),
	)
	b.editWithMarkup(query.Message.Chat.ID, query.Message.MessageID, text,
		tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// handleDeleteProduct removes a product
func (b *Bot) handleDeleteProduct(query *tgbotapi.CallbackQuery) {
	id, ok := callbackSuffixID(query.Data, "del_product_")
	if !ok {
		b.answerCallback(query.ID, "Bad product id", true)
		return
	}

	b.st.Lock()
	_, found := b.st.Products[id]
	delete(b.st.Products, id)
	b.st.Unlock()

	if found {
		b.answerCallback(query.ID, "Product deleted", false)
	} else {
		b.answerCallback(query.ID, "Product already deleted", false)
	}
}

// showAdminRaffles lists every raffle, finished ones included
func (b *Bot) showAdminRaffles(query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "", false)

	now := time.Now()
	b.st.Lock()
	ids := make([]int64, 0, len(b.st.Raffles))
	for id := range b.st.Raffles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	text := "🎲 Raffles:\n\n"
	for _, id := range ids {
		r := b.st.Raffles[id]
		text += fmt.Sprintf("#%d — %d prize(s), %d participant(s), %s\n",
			id, r.PrizeCount, len(r.Participants), raffleEndsIn(r, now))
	}
	b.st.Unlock()

	if len(ids) == 0 {
		text = "🎲 No raffles yet."
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Create raffle", "create_raffle"),
		),
		backRow("admin_panel"),
	)
	b.editWithMarkup(query.Message.Chat.ID, query.Message.MessageID, text, kb)
}

// showAdmins lists admins with remove buttons
func (b *Bot) showAdmins(query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "", false)

	b.st.Lock()
	ids := make([]int64, 0, len(b.st.Admins))
	for id := range b.st.Admins {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	text := "👮 Admins:\n\n"
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, id := range ids {
		text += fmt.Sprintf("id %d — level %d\n", id, b.st.Admins[id])
		if id != query.From.ID {
			rows = append(rows, []tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf("🗑 Remove %d", id),
					fmt.Sprintf("del_admin_%d", id)),
			})
		}
	}
	b.st.Unlock()

	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("➕ Add admin", "add_admin"),
		},
		backRow("admin_panel"),
	)
	b.editWithMarkup(query.Message.Chat.ID, query.Message.MessageID, text,
		tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// handleDeleteAdmin removes an admin role. The caller cannot remove
// themselves, so the admin set never empties.
func (b *Bot) handleDeleteAdmin(query *tgbotapi.CallbackQuery) {
	id, ok := callbackSuffixID(query.Data, "del_admin_")
	if !ok {
		b.answerCallback(query.ID, "Bad admin id", true)
		return
	}
	if id == query.From.ID {
		b.answerCallback(query.ID, "You cannot remove yourself.", true)
		return
	}

	b.st.Lock()
	_, found := b.st.Admins[id]
	delete(b.st.Admins, id)
	b.st.Unlock()

	if found {
		b.answerCallback(query.ID, "Admin removed", false)
	} else {
		b.answerCallback(query.ID, "Not an admin", false)
	}
}

// showRequiredChannels lists mandatory-subscription channels
func (b *Bot) showRequiredChannels(query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "", false)

	b.st.Lock()
	channels := append([]models.Channel(nil), b.st.RequiredChannels...)
	b.st.Unlock()

	text := "📺 Required channels:\n\n"
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, ch := range channels {
		text += fmt.Sprintf("%s (id %d)\n", ch.Title, ch.ChannelID)
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🗑 Remove %s", ch.Title),
				fmt.Sprintf("del_required_%d", ch.ChannelID)),
		})
	}
	if len(channels) == 0 {
		text = "📺 No required channels."
	}
	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("➕ Add channel", "add_required_channel"),
		},
		backRow("admin_panel"),
	)
	b.editWithMarkup(query.Message.Chat.ID, query.Message.MessageID, text,
		tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// handleDeleteRequiredChannel removes a required channel by channel id
func (b *Bot) handleDeleteRequiredChannel(query *tgbotapi.CallbackQuery) {
	id, ok := callbackSuffixID(query.Data, "del_required_")
	if !ok {
		b.answerCallback(query.ID, "Bad channel id", true)
		return
	}

	b.st.Lock()
	found := false
	for i, ch := range b.st.RequiredChannels {
		if ch.ChannelID == id {
			b.st.RequiredChannels = append(b.st.RequiredChannels[:i], b.st.RequiredChannels[i+1:]...)
			found = true
			break
		}
	}
	b.st.Unlock()

	if found {
		b.answerCallback(query.ID, "Channel removed", false)
	} else {
		b.answerCallback(query.ID, "Channel already removed", false)
	}
}

// showAutopostChannelAdmin lists autopost target channels
func (b *Bot) showAutopostChannelAdmin(query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "", false)

	b.st.Lock()
	channels := append([]models.Channel(nil), b.st.AutopostChannels...)
	b.st.Unlock()

	text := "📡 Autopost channels:\n\n"
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, ch := range channels {
		text += fmt.Sprintf("%s (id %d, cost %d₽)\n", ch.Title, ch.ChannelID, ch.Cost)
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🗑 Remove %s", ch.Title),
				fmt.Sprintf("del_autopost_%d", ch.ChannelID)),
		})
	}
	if len(channels) == 0 {
		text = "📡 No autopost channels."
	}
	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("➕ Add channel", "add_autopost_channel"),
		},
		backRow("admin_panel"),
	)
	b.editWithMarkup(query.Message.Chat.ID, query.Message.MessageID, text,
		tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// handleDeleteAutopostChannel removes an autopost channel by channel id
func (b *Bot) handleDeleteAutopostChannel(query *tgbotapi.CallbackQuery) {
	id, ok := callbackSuffixID(query.Data, "del_autopost_")
	if !ok {
		b.answerCallback(query.ID, "Bad channel id", true)
		return
	}

	b.st.Lock()
	found := false
	for i, ch := range b.st.AutopostChannels {
		if ch.ChannelID == id {
			b.st.AutopostChannels = append(b.st.AutopostChannels[:i], b.st.AutopostChannels[i+1:]...)
			found = true
			break
		}
	}
	b.st.Unlock()

	if found {
		b.answerCallback(query.ID, "Channel removed", false)
	} else {
		b.answerCallback(query.ID, "Channel already removed", false)
	}
}
