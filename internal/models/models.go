package models

import "time"

// Admin privilege levels. Level 0 means "not an admin".
const (
	LevelSupport   = 1
	LevelModerator = 2
	LevelAdmin     = 3
)

// User represents a registered bot user. The JSON tags define the blob
// layout in the users collection.
type User struct {
	Balance   int64   `json:"balance"`
	Stars     int64   `json:"stars"`
	Purchases []int64 `json:"purchases"`
	Username  string  `json:"username"`
	Name      string  `json:"name"`
	Tickets   []int64 `json:"tickets"`
}

// Product represents an item in the shop catalog.
type Product struct {
	Name        string `json:"name"`
	PriceRub    int64  `json:"price_rub"`
	PriceStars  int64  `json:"price_stars"`
	Photo       string `json:"photo"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

// TicketMessage is one entry in a support ticket's message log.
type TicketMessage struct {
	From string    `json:"from"` // "user" or "support"
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Ticket represents a support ticket.
type Ticket struct {
	ID       int64           `json:"id"`
	UserID   int64           `json:"user_id"`
	Username string          `json:"username"`
	Name     string          `json:"name"`
	Messages []TicketMessage `json:"messages"`
	Open     bool            `json:"open"`
}

// Raffle represents a prize raffle.
//
// Participants holds each user at most once, in join order. Winners is
// empty until the raffle finishes and is set exactly once.
type Raffle struct {
	PrizeCount   int       `json:"prize_count"`
	EndsAt       time.Time `json:"ends_at"`
	Participants []int64   `json:"participants"`
	Finished     bool      `json:"finished"`
	Winners      []int64   `json:"winners,omitempty"`
}

// Review is a user review. Reviews form an ordered list, not a keyed map.
type Review struct {
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	Rating   int       `json:"rating"`
	Text     string    `json:"text"`
	Date     time.Time `json:"date"`
}

// Ban records a bot-wide ban. Until == nil means permanent.
type Ban struct {
	Reason string     `json:"reason"`
	Until  *time.Time `json:"until"`
}

// Mute records a group mute. Until == nil means permanent.
type Mute struct {
	Until  *time.Time `json:"until"`
	Reason string     `json:"reason"`
}

// GroupSettings holds per-group moderation state.
type GroupSettings struct {
	Rules string         `json:"rules"`
	Warns map[int64]int  `json:"warns"`
	Bans  map[int64]Ban  `json:"bans"`
	Mutes map[int64]Mute `json:"mutes"`
}

// Channel describes a Telegram channel the bot works with: either a
// required-subscription channel or an autopost target. Cost applies to
// autopost channels only.
type Channel struct {
	ChannelID  int64  `json:"channel_id"`
	Title      string `json:"title"`
	InviteLink string `json:"invite_link,omitempty"`
	Cost       int64  `json:"cost,omitempty"`
}

// AutopostRequest is a paid post awaiting moderation.
type AutopostRequest struct {
	UserID    int64     `json:"user_id"`
	ChannelID int64     `json:"channel_id"`
	Text      string    `json:"text"`
	Cost      int64     `json:"cost"`
	CreatedAt time.Time `json:"created_at"`
}
