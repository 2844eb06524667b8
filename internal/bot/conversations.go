package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"shopbot/internal/models"
	"shopbot/internal/state"
)

// handleConversation processes multi-step conversations
func (b *Bot) handleConversation(ctx context.Context, message *tgbotapi.Message, st *ConversationState) {
	userID := message.From.ID

	switch st.Command {
	case "ticket":
		b.handleTicketConversation(ctx, message, st)
	case "ticket_reply":
		b.handleTicketReplyConversation(ctx, message, st)
	case "review":
		b.handleReviewConversation(ctx, message, st)
	case "create_raffle":
		b.handleCreateRaffleConversation(ctx, message, st)
	case "create_product":
		b.handleCreateProductConversation(ctx, message, st)
	case "edit_balance":
		b.handleEditBalanceConversation(ctx, message, st)
	case "add_admin":
		b.handleAddAdminConversation(ctx, message, st)
	case "add_required_channel", "add_autopost_channel":
		b.handleAddChannelConversation(ctx, message, st)
	case "autopost":
		b.handleAutopostConversation(ctx, message, st)
	}

	// Clean up completed conversations
	if st.Step == -1 {
		b.clearState(userID)
	}
}

// --- support tickets ---

// startTicketConversation begins the support ticket wizard
func (b *Bot) startTicketConversation(query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "", false)
	b.setState(query.From.ID, &ConversationState{
		Command: "ticket",
		Step:    1,
		Data:    make(map[string]interface{}),
	})
	b.send(query.Message.Chat.ID, "🆘 Describe your problem in one message:")
}

func (b *Bot) handleTicketConversation(ctx context.Context, message *tgbotapi.Message, st *ConversationState) {
	switch st.Step {
	case 1: // Waiting for the problem description
		userID := message.From.ID
		id := b.st.NextID(state.CounterTicket)

		b.st.Lock()
		b.st.Tickets[id] = &models.Ticket{
			ID:       id,
			UserID:   userID,
			Username: message.From.UserName,
			Name:     fullName(message.From),
			Messages: []models.TicketMessage{{From: "user", Text: message.Text, At: time.Now()}},
			Open:     true,
		}
		if u := b.st.Users[userID]; u != nil {
			u.Tickets = append(u.Tickets, id)
		}
		b.st.Unlock()

		b.send(message.Chat.ID, fmt.Sprintf("🎫 Ticket #%d created. Support will reply here.", id))
		b.notifyAdminsAtLeast(ctx, models.LevelSupport,
			fmt.Sprintf("🎫 New ticket #%d from %s:\n%s", id, fullName(message.From), message.Text))
		b.logger.Info("Ticket created", zap.Int64("ticket_id", id), zap.Int64("user_id", userID))

		st.Step = -1
	}
}

// startTicketReplyConversation begins a support reply to one ticket
func (b *Bot) startTicketReplyConversation(query *tgbotapi.CallbackQuery) {
	id, ok := callbackSuffixID(query.Data, "reply_ticket_")
	if !ok {
		b.answerCallback(query.ID, "Bad ticket id", true)
		return
	}
	b.answerCallback(query.ID, "", false)
	b.setState(query.From.ID, &ConversationState{
		Command: "ticket_reply",
		Step:    1,
		Data:    map[string]interface{}{"ticket_id": id},
	})
	b.send(query.Message.Chat.ID, fmt.Sprintf("✍️ Your reply to ticket #%d:", id))
}

func (b *Bot) handleTicketReplyConversation(ctx context.Context, message *tgbotapi.Message, st *ConversationState) {
	switch st.Step {
	case 1: // Waiting for the reply text
		id, _ := st.Data["ticket_id"].(int64)

		b.st.Lock()
		t, found := b.st.Tickets[id]
		var ownerID int64
		if found {
			t.Messages = append(t.Messages, models.TicketMessage{From: "support", Text: message.Text, At: time.Now()})
			ownerID = t.UserID
		}
		b.st.Unlock()

		if !found {
			b.send(message.Chat.ID, "Ticket no longer exists.")
		} else {
			b.send(message.Chat.ID, "Reply sent.")
			if err := b.NotifyUser(ctx, ownerID, fmt.Sprintf("🎫 Support replied to ticket #%d:\n%s", id, message.Text)); err != nil {
				b.logger.Warn("Failed to deliver ticket reply", zap.Int64("ticket_id", id), zap.Error(err))
			}
		}
		st.Step = -1
	}
}

// --- reviews ---

// startReviewConversation begins the review wizard
func (b *Bot) startReviewConversation(query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "", false)
	b.setState(query.From.ID, &ConversationState{
		Command: "review",
		Step:    1,
		Data:    make(map[string]interface{}),
	})
	b.send(query.Message.Chat.ID, "⭐ Rate us from 1 to 5:")
}

func (b *Bot) handleReviewConversation(ctx context.Context, message *tgbotapi.Message, st *ConversationState) {
	switch st.Step {
	case 1: // Waiting for the rating
		rating, err := strconv.Atoi(strings.TrimSpace(message.Text))
		if err != nil || rating < 1 || rating > 5 {
			b.send(message.Chat.ID, "Please send a number from 1 to 5.")
			return
		}
		st.Data["rating"] = rating
		st.Step = 2
		b.send(message.Chat.ID, "✍️ Now write a few words:")

	case 2: // Waiting for the review text
		rating, _ := st.Data["rating"].(int)
		username := message.From.UserName
		if username == "" {
			username = "Anonymous"
		}

		b.st.Lock()
		b.st.Reviews = append(b.st.Reviews, models.Review{
			UserID:   message.From.ID,
			Username: username,
			Rating:   rating,
			Text:     strings.TrimSpace(message.Text),
			Date:     time.Now(),
		})
		b.st.Unlock()

		b.send(message.Chat.ID, "🙏 Thank you for your review! 🌟")
		st.Step = -1
	}
}

// --- raffles ---

// startCreateRaffleConversation begins the raffle creation wizard
func (b *Bot) startCreateRaffleConversation(query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "", false)
	b.setState(query.From.ID, &ConversationState{
		Command: "create_raffle",
		Step:    1,
		Data:    make(map[string]interface{}),
	})
	b.send(query.Message.Chat.ID, "🎲 How many prizes?")
}

func (b *Bot) handleCreateRaffleConversation(ctx context.Context, message *tgbotapi.Message, st *ConversationState) {
	switch st.Step {
	case 1: // Waiting for the prize count
		prizes, err := strconv.Atoi(strings.TrimSpace(message.Text))
		if err != nil || prizes <= 0 {
			b.send(message.Chat.ID, "Send a number greater than 0!")
			return
		}
		st.Data["prize_count"] = prizes
		st.Step = 2
		b.send(message.Chat.ID, "⏳ How many hours should it run? (e.g. 24)")

	case 2: // Waiting for the duration in hours
		hours, err := strconv.Atoi(strings.TrimSpace(message.Text))
		if err != nil || hours <= 0 {
			b.send(message.Chat.ID, "Send a number greater than 0!")
			return
		}
		prizes, _ := st.Data["prize_count"].(int)

		id, err := b.engine.Create(prizes, time.Duration(hours)*time.Hour)
		if err != nil {
			b.send(message.Chat.ID, fmt.Sprintf("Failed to create raffle: %v", err))
		} else {
			b.send(message.Chat.ID,
				fmt.Sprintf("🎲 Raffle #%d created!\nPrizes: %d\nDuration: %d h.", id, prizes, hours))
		}
		st.Step = -1
	}
}

// --- products ---

// startCreateProductConversation begins the product creation wizard
func (b *Bot) startCreateProductConversation(query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "", false)
	b.setState(query.From.ID, &ConversationState{
		Command: "create_product",
		Step:    1,
		Data:    make(map[string]interface{}),
	})
	b.send(query.Message.Chat.ID, "📦 Product name:")
}

func (b *Bot) handleCreateProductConversation(ctx context.Context, message *tgbotapi.Message, st *ConversationState) {
	switch st.Step {
	case 1: // Waiting for the name
		st.Data["name"] = strings.TrimSpace(message.Text)
		st.Step = 2
		b.send(message.Chat.ID, "💰 Price in rubles:")

	case 2: // Waiting for the ruble price
		price, err := strconv.ParseInt(strings.TrimSpace(message.Text), 10, 64)
		if err != nil || price <= 0 {
			b.send(message.Chat.ID, "Send a positive number!")
			return
		}
		st.Data["price_rub"] = price
		st.Step = 3
		b.send(message.Chat.ID, "⭐ Price in stars (0 if not sold for stars):")

	case 3: // Waiting for the stars price
		stars, err := strconv.ParseInt(strings.TrimSpace(message.Text), 10, 64)
		if err != nil || stars < 0 {
			b.send(message.Chat.ID, "Send a non-negative number!")
			return
		}
		st.Data["price_stars"] = stars
		st.Step = 4
		b.send(message.Chat.ID, "📄 Content delivered after purchase (text, key, link...):")

	case 4: // Waiting for the content
		name, _ := st.Data["name"].(string)
		priceRub, _ := st.Data["price_rub"].(int64)
		priceStars, _ := st.Data["price_stars"].(int64)

		id := b.st.NextID(state.CounterProduct)
		b.st.Lock()
		b.st.Products[id] = &models.Product{
			Name:        name,
			PriceRub:    priceRub,
			PriceStars:  priceStars,
			ContentType: "text",
			Content:     message.Text,
		}
		b.st.Unlock()

		b.send(message.Chat.ID, fmt.Sprintf("📦 Product #%d created!", id))
		b.logger.Info("Product created", zap.Int64("product_id", id), zap.String("name", name))
		st.Step = -1
	}
}

// --- balances ---

// startEditBalanceConversation begins the balance edit wizard
func (b *Bot) startEditBalanceConversation(query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "", false)
	b.setState(query.From.ID, &ConversationState{
		Command: "edit_balance",
		Step:    1,
		Data:    make(map[string]interface{}),
	})
	b.send(query.Message.Chat.ID, "💰 User id:")
}

func (b *Bot) handleEditBalanceConversation(ctx context.Context, message *tgbotapi.Message, st *ConversationState) {
	switch st.Step {
	case 1: // Waiting for the user id
		id, err := parseID(message.Text)
		if err != nil {
			b.send(message.Chat.ID, "Send a numeric user id.")
			return
		}
		st.Data["user_id"] = id
		st.Step = 2
		b.send(message.Chat.ID, "New balance value:")

	case 2: // Waiting for the new balance
		balance, err := strconv.ParseInt(strings.TrimSpace(message.Text), 10, 64)
		if err != nil || balance < 0 {
			b.send(message.Chat.ID, "Send a non-negative number!")
			return
		}
		userID, _ := st.Data["user_id"].(int64)

		b.st.Lock()
		u, found := b.st.Users[userID]
		if found {
			u.Balance = balance
		}
		b.st.Unlock()

		if !found {
			b.send(message.Chat.ID, "Unknown user: they must /start the bot first.")
		} else {
			b.send(message.Chat.ID, fmt.Sprintf("Balance of %d set to %d₽.", userID, balance))
			if err := b.NotifyUser(ctx, userID, fmt.Sprintf("💰 Your balance is now %d₽.", balance)); err != nil {
				b.logger.Warn("Failed to notify user about balance change",
					zap.Int64("user_id", userID), zap.Error(err))
			}
			b.logger.Info("Balance edited",
				zap.Int64("user_id", userID),
				zap.Int64("balance", balance),
				zap.Int64("by", message.From.ID))
		}
		st.Step = -1
	}
}

// --- admin roles ---

// startAddAdminConversation begins the add-admin wizard
func (b *Bot) startAddAdminConversation(query *tgbotapi.CallbackQuery) {
	b.answerCallback(query.ID, "", false)
	b.setState(query.From.ID, &ConversationState{
		Command: "add_admin",
		Step:    1,
		Data:    make(map[string]interface{}),
	})
	b.send(query.Message.Chat.ID, "👮 User id of the new admin:")
}

func (b *Bot) handleAddAdminConversation(ctx context.Context, message *tgbotapi.Message, st *ConversationState) {
	switch st.Step {
	case 1: // Waiting for the user id
		id, err := parseID(message.Text)
		if err != nil {
			b.send(message.Chat.ID, "Send a numeric user id.")
			return
		}
		st.Data["user_id"] = id
		st.Step = 2
		b.send(message.Chat.ID, "Level: 1 — support, 2 — moderator, 3 — admin:")

	case 2: // Waiting for the level
		level, err := strconv.Atoi(strings.TrimSpace(message.Text))
		if err != nil || level < models.LevelSupport || level > models.LevelAdmin {
			b.send(message.Chat.ID, "Send 1, 2 or 3.")
			return
		}
		userID, _ := st.Data["user_id"].(int64)

		b.st.Lock()
		b.st.Admins[userID] = level
		b.st.Unlock()

		b.send(message.Chat.ID, fmt.Sprintf("👮 User %d is now admin level %d.", userID, level))
		if err := b.NotifyUser(ctx, userID, fmt.Sprintf("👮 You are now an admin (level %d).", level)); err != nil {
			b.logger.Warn("Failed to notify new admin", zap.Int64("user_id", userID), zap.Error(err))
		}
		st.Step = -1
	}
}

// --- channels ---

// startAddChannelConversation begins adding a required or autopost
// channel; cmd selects which list the result lands in.
func (b *Bot) startAddChannelConversation(query *tgbotapi.CallbackQuery, cmd string) {
	b.answerCallback(query.ID, "", false)
	b.setState(query.From.ID, &ConversationState{
		Command: cmd,
		Step:    1,
		Data:    make(map[string]interface{}),
	})
	if cmd == "add_autopost_channel" {
		b.send(query.Message.Chat.ID, "📡 Send: <channel_id> <post_cost> <title>")
	} else {
		b.send(query.Message.Chat.ID, "📺 Send: <channel_id> <title>")
	}
}

func (b *Bot) handleAddChannelConversation(ctx context.Context, message *tgbotapi.Message, st *ConversationState) {
	switch st.Step {
	case 1: // Waiting for the channel description line
		autopost := st.Command == "add_autopost_channel"
		minParts := 2
		if autopost {
			minParts = 3
		}
		parts := strings.Fields(message.Text)
		if len(parts) < minParts {
			b.send(message.Chat.ID, "Wrong format, try again.")
			return
		}

		chID, err := parseID(parts[0])
		if err != nil {
			b.send(message.Chat.ID, "Channel id must be numeric.")
			return
		}

		ch := models.Channel{ChannelID: chID}
		if autopost {
			cost, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil || cost < 0 {
				b.send(message.Chat.ID, "Cost must be a non-negative number.")
				return
			}
			ch.Cost = cost
			ch.Title = strings.Join(parts[2:], " ")
		} else {
			ch.Title = strings.Join(parts[1:], " ")
		}

		b.st.Lock()
		if autopost {
			b.st.AutopostChannels = append(b.st.AutopostChannels, ch)
		} else {
			b.st.RequiredChannels = append(b.st.RequiredChannels, ch)
		}
		b.st.Unlock()

		b.send(message.Chat.ID, fmt.Sprintf("Channel %s added.", ch.Title))
		st.Step = -1
	}
}

// --- autoposting ---

// startAutopostConversation begins a paid autopost request for the
// channel picked from the menu
func (b *Bot) startAutopostConversation(query *tgbotapi.CallbackQuery) {
	chID, ok := callbackSuffixID(query.Data, "autopost_ch_")
	if !ok {
		b.answerCallback(query.ID, "Bad channel id", true)
		return
	}

	b.st.Lock()
	var cost int64 = -1
	for _, ch := range b.st.AutopostChannels {
		if ch.ChannelID == chID {
			cost = ch.Cost
			break
		}
	}
	b.st.Unlock()

	if cost < 0 {
		b.answerCallback(query.ID, "Channel no longer available", true)
		return
	}
	if cost == 0 {
		cost = b.autopostCost
	}

	b.answerCallback(query.ID, "", false)
	b.setState(query.From.ID, &ConversationState{
		Command: "autopost",
		Step:    1,
		Data:    map[string]interface{}{"channel_id": chID, "cost": cost},
	})
	b.send(query.Message.Chat.ID,
		fmt.Sprintf("📣 Posting costs %d₽ (charged now, refunded if rejected).\nSend your post text:", cost))
}

func (b *Bot) handleAutopostConversation(ctx context.Context, message *tgbotapi.Message, st *ConversationState) {
	switch st.Step {
	case 1: // Waiting for the post text
		chID, _ := st.Data["channel_id"].(int64)
		cost, _ := st.Data["cost"].(int64)
		userID := message.From.ID

		// Id is allocated before the debit; a failed debit skips the id,
		// which the counter contract allows.
		id := b.st.NextID(state.CounterAutopost)

		b.st.Lock()
		u := b.st.Users[userID]
		charged := u != nil && u.Balance >= cost
		if charged {
			u.Balance -= cost
			b.st.Autoposts[id] = &models.AutopostRequest{
				UserID:    userID,
				ChannelID: chID,
				Text:      message.Text,
				Cost:      cost,
				CreatedAt: time.Now(),
			}
		}
		b.st.Unlock()

		if !charged {
			b.send(message.Chat.ID, fmt.Sprintf("Not enough balance: posting costs %d₽.", cost))
		} else {
			b.send(message.Chat.ID, "📣 Your post was sent to moderation! You'll get a notification.")
			b.notifyAdminsAtLeast(ctx, models.LevelModerator,
				fmt.Sprintf("📣 New autopost #%d from %s (channel %d):\n%s",
					id, fullName(message.From), chID, message.Text))
		}
		st.Step = -1
	}
}
