package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// The bot is the raffle engine's Notifier.

// NotifyUser delivers a text notification to one user.
func (b *Bot) NotifyUser(ctx context.Context, userID int64, text string) error {
	if b.api == nil {
		return nil // For testing
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(userID, text)); err != nil {
		return fmt.Errorf("failed to notify user %d: %w", userID, err)
	}
	return nil
}

// NotifyAdmins delivers a text notification to every admin. Delivery is
// best-effort per recipient; one unreachable admin never blocks the rest.
func (b *Bot) NotifyAdmins(ctx context.Context, text string) error {
	for _, id := range b.st.AdminIDs() {
		if err := b.NotifyUser(ctx, id, text); err != nil {
			b.logger.Warn("Failed to notify admin", zap.Int64("admin_id", id), zap.Error(err))
		}
	}
	return nil
}

// notifyAdminsAtLeast sends to every admin of the given level or higher,
// best-effort.
func (b *Bot) notifyAdminsAtLeast(ctx context.Context, level int, text string) {
	for _, id := range b.st.AdminIDsAtLeast(level) {
		if err := b.NotifyUser(ctx, id, text); err != nil {
			b.logger.Warn("Failed to notify admin", zap.Int64("admin_id", id), zap.Error(err))
		}
	}
}
