package bot

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"shopbot/internal/raffle"
	"shopbot/internal/state"
)

// Bot represents the Telegram bot wrapper
type Bot struct {
	api          *tgbotapi.BotAPI
	st           *state.State
	engine       *raffle.Engine
	logger       *zap.Logger
	autopostCost int64

	// checkMember overrides the Telegram membership lookup. Tests inject
	// it; nil means ask the API.
	checkMember func(channelID, userID int64) bool

	statesMu sync.Mutex
	states   map[int64]*ConversationState
}

// ConversationState tracks the state of multi-step commands
type ConversationState struct {
	Command string
	Step    int
	Data    map[string]interface{}
}
