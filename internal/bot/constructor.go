package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"shopbot/internal/raffle"
	"shopbot/internal/state"
)

// NewBot creates a new Telegram bot
func NewBot(token string, st *state.State, autopostCost int64, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))

	return &Bot{
		api:          api,
		st:           st,
		logger:       logger,
		autopostCost: autopostCost,
		states:       make(map[int64]*ConversationState),
	}, nil
}

// SetRaffleEngine wires the raffle engine in. The engine is constructed
// after the bot because the bot is its Notifier.
func (b *Bot) SetRaffleEngine(engine *raffle.Engine) {
	b.engine = engine
}

// GetAPI returns the bot API for testing
func (b *Bot) GetAPI() *tgbotapi.BotAPI {
	return b.api
}
