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
)

// handleBotBan bans a user from the bot: /ban <user_id> [hours] [reason]
func (b *Bot) handleBotBan(message *tgbotapi.Message) {
	if b.st.AdminLevel(message.From.ID) < models.LevelModerator {
		b.send(message.Chat.ID, "Access denied.")
		return
	}

	args := strings.Fields(message.CommandArguments())
	if len(args) == 0 {
		b.send(message.Chat.ID, "Usage: /ban <user_id> [hours] [reason]")
		return
	}
	userID, err := parseID(args[0])
	if err != nil {
		b.send(message.Chat.ID, "User id must be numeric.")
		return
	}

	var until *time.Time
	reason := "Banned by staff"
	rest := args[1:]
	if len(rest) > 0 {
		if hours, err := strconv.Atoi(rest[0]); err == nil && hours > 0 {
			t := time.Now().Add(time.Duration(hours) * time.Hour)
			until = &t
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		reason = strings.Join(rest, " ")
	}

	b.st.Lock()
	b.st.Banned[userID] = &models.Ban{Reason: reason, Until: until}
	b.st.Unlock()

	scope := "permanently"
	if until != nil {
		scope = "until " + until.Format("02.01.2006 15:04")
	}
	b.send(message.Chat.ID, fmt.Sprintf("🚫 User %d banned %s.", userID, scope))
	b.logger.Info("User banned",
		zap.Int64("user_id", userID),
		zap.Int64("by", message.From.ID),
		zap.String("reason", reason))
}

// handleBotUnban lifts a bot-wide ban: /unban <user_id>
func (b *Bot) handleBotUnban(message *tgbotapi.Message) {
	if b.st.AdminLevel(message.From.ID) < models.LevelModerator {
		b.send(message.Chat.ID, "Access denied.")
		return
	}

	userID, err := parseID(message.CommandArguments())
	if err != nil {
		b.send(message.Chat.ID, "Usage: /unban <user_id>")
		return
	}

	b.st.Lock()
	_, found := b.st.Banned[userID]
	delete(b.st.Banned, userID)
	b.st.Unlock()

	if found {
		b.send(message.Chat.ID, fmt.Sprintf("User %d unbanned.", userID))
	} else {
		b.send(message.Chat.ID, fmt.Sprintf("User %d was not banned.", userID))
	}
}

// handleGroupCommand routes moderation commands inside group chats.
// They target the user of the replied-to message.
func (b *Bot) handleGroupCommand(ctx context.Context, message *tgbotapi.Message) {
	if b.st.AdminLevel(message.From.ID) < models.LevelModerator {
		return
	}

	switch message.Command() {
	case "mute":
		b.handleGroupMute(message)
	case "warn":
		b.handleGroupWarn(ctx, message)
	case "ban":
		b.handleGroupBan(message)
	case "unban":
		b.handleGroupUnban(message)
	}
}

// targetOfReply extracts the user a moderation command applies to.
func targetOfReply(message *tgbotapi.Message) (int64, bool) {
	if message.ReplyToMessage == nil || message.ReplyToMessage.From == nil {
		return 0, false
	}
	return message.ReplyToMessage.From.ID, true
}

// handleGroupMute mutes the replied-to user: /mute [hours] [reason]
func (b *Bot) handleGroupMute(message *tgbotapi.Message) {
	userID, ok := targetOfReply(message)
	if !ok {
		b.send(message.Chat.ID, "Reply to a message with /mute [hours] [reason]")
		return
	}

	args := strings.Fields(message.CommandArguments())
	var until *time.Time
	hours := 0
	reason := ""
	if len(args) > 0 {
		if h, err := strconv.Atoi(args[0]); err == nil && h > 0 {
			hours = h
			t := time.Now().Add(time.Duration(h) * time.Hour)
			until = &t
			args = args[1:]
		}
	}
	if len(args) > 0 {
		reason = strings.Join(args, " ")
	}

	b.st.GroupMute(message.Chat.ID, userID, models.Mute{Until: until, Reason: reason})

	if b.api != nil {
		restrict := tgbotapi.RestrictChatMemberConfig{
			ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: message.Chat.ID, UserID: userID},
			Permissions:      &tgbotapi.ChatPermissions{CanSendMessages: false},
		}
		if until != nil {
			restrict.UntilDate = until.Unix()
		}
		if _, err := b.api.Request(restrict); err != nil {
			b.logger.Warn("Failed to restrict chat member", zap.Int64("user_id", userID), zap.Error(err))
		}
	}

	scope := "forever"
	if hours > 0 {
		scope = fmt.Sprintf("for %d h.", hours)
	}
	b.send(message.Chat.ID, fmt.Sprintf("User muted %s", scope))
}

// handleGroupWarn warns the replied-to user; three warns ban them
func (b *Bot) handleGroupWarn(ctx context.Context, message *tgbotapi.Message) {
	userID, ok := targetOfReply(message)
	if !ok {
		b.send(message.Chat.ID, "Reply to a message with /warn [reason]")
		return
	}
	reason := strings.TrimSpace(message.CommandArguments())
	if reason == "" {
		reason = "rule violation"
	}

	warns, banned := b.st.GroupWarn(message.Chat.ID, userID)
	if banned {
		b.kickChatMember(message.Chat.ID, userID)
		b.send(message.Chat.ID, "User banned after three warnings.")
		return
	}
	b.send(message.Chat.ID, fmt.Sprintf("User warned (%d/3)\nReason: %s", warns, reason))
}

// handleGroupBan bans the replied-to user from the group
func (b *Bot) handleGroupBan(message *tgbotapi.Message) {
	userID, ok := targetOfReply(message)
	if !ok {
		b.send(message.Chat.ID, "Reply to a message with /ban [reason]")
		return
	}
	reason := strings.TrimSpace(message.CommandArguments())
	if reason == "" {
		reason = "banned by staff"
	}

	b.st.GroupBan(message.Chat.ID, userID, reason)
	b.kickChatMember(message.Chat.ID, userID)
	b.send(message.Chat.ID, "User banned in this group.")
}

// handleGroupUnban lifts a group ban: /unban <user_id>
func (b *Bot) handleGroupUnban(message *tgbotapi.Message) {
	userID, err := parseID(message.CommandArguments())
	if err != nil {
		b.send(message.Chat.ID, "Usage: /unban <user_id>")
		return
	}

	if b.st.GroupUnban(message.Chat.ID, userID) {
		if b.api != nil {
			unban := tgbotapi.UnbanChatMemberConfig{
				ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: message.Chat.ID, UserID: userID},
			}
			if _, err := b.api.Request(unban); err != nil {
				b.logger.Warn("Failed to unban chat member", zap.Int64("user_id", userID), zap.Error(err))
			}
		}
		b.send(message.Chat.ID, fmt.Sprintf("User %d unbanned in this group.", userID))
	} else {
		b.send(message.Chat.ID, fmt.Sprintf("User %d was not banned here.", userID))
	}
}

// kickChatMember bans a user in a group chat, best-effort.
func (b *Bot) kickChatMember(chatID, userID int64) {
	if b.api == nil {
		return // For testing
	}
	kick := tgbotapi.KickChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
	}
	if _, err := b.api.Request(kick); err != nil {
		b.logger.Warn("Failed to ban chat member", zap.Int64("user_id", userID), zap.Error(err))
	}
}
