package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// handleMessage processes a single message
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleMessage", zap.Any("panic", r))
			b.send(message.Chat.ID, "An error occurred while processing your request. Please try again.")
		}
	}()

	userID := message.From.ID
	ctx := context.Background()

	// Group moderation commands never interact with conversations
	if !message.Chat.IsPrivate() {
		if message.IsCommand() {
			b.handleGroupCommand(ctx, message)
		}
		return
	}

	// Check if user is in a conversation
	if state, ok := b.getState(userID); ok {
		if state.Step == -1 {
			b.clearState(userID)
		} else if message.IsCommand() {
			// Allow any command to interrupt/cancel an ongoing conversation
			b.clearState(userID)
		} else {
			// Not a command, continue the conversation
			b.handleConversation(ctx, message, state)
			return
		}
	}

	// Handle commands
	if message.IsCommand() {
		switch message.Command() {
		case "start":
			b.handleStart(message)
		case "menu":
			b.sendWithMarkup(message.Chat.ID, "Main menu", b.mainMenuKeyboard(userID))
		case "admin":
			b.handleAdminCommand(message)
		case "ban":
			b.handleBotBan(message)
		case "unban":
			b.handleBotUnban(message)
		default:
			b.send(message.Chat.ID, "Unknown command. Use /start to open the menu.")
		}
	}
}

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	// Recover from panics
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleCallbackQuery", zap.Any("panic", r))
		}
	}()

	ctx := context.Background()
	data := query.Data

	// The shop, raffle and review sections sit behind the subscription
	// gate; balance, support and admin surfaces stay reachable.
	switch {
	case data == "main":
		b.showMainMenu(query)
	case data == "check_sub":
		b.handleCheckSubscription(query)
	case data == "shop":
		if b.gateSubscription(query) {
			b.showShop(query)
		}
	case strings.HasPrefix(data, "product_"):
		if b.gateSubscription(query) {
			b.showProduct(query)
		}
	case strings.HasPrefix(data, "buy_"):
		if b.gateSubscription(query) {
			b.handleBuy(ctx, query)
		}
	case data == "balance":
		b.showBalance(query)
	case data == "topup":
		b.handleTopup(ctx, query)
	case data == "raffles":
		if b.gateSubscription(query) {
			b.showRaffles(query)
		}
	case strings.HasPrefix(data, "join_raffle_"):
		if b.gateSubscription(query) {
			b.handleJoinRaffle(query)
		}
	case data == "support":
		b.startTicketConversation(query)
	case data == "reviews":
		if b.gateSubscription(query) {
			b.showReviews(query)
		}
	case data == "leave_review":
		if b.gateSubscription(query) {
			b.startReviewConversation(query)
		}
	case data == "autoposting":
		b.showAutopostChannels(query)
	case strings.HasPrefix(data, "autopost_ch_"):
		b.startAutopostConversation(query)
	default:
		b.handleAdminCallback(ctx, query)
	}
}
