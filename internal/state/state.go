// Package state owns every mutable collection of the bot. All handlers
// and periodic jobs share one State instance; every read-modify-write
// happens under its lock, so there is no window for two money movements
// on the same account to interleave.
package state

import (
	"sync"
	"time"

	"shopbot/internal/models"
)

// Counter names.
const (
	CounterProduct  = "product"
	CounterTicket   = "ticket"
	CounterRaffle   = "raffle"
	CounterAutopost = "autopost"
)

// CounterNames lists every known counter in flush order.
var CounterNames = []string{CounterProduct, CounterTicket, CounterRaffle, CounterAutopost}

// State is the in-memory mirror of every durable collection.
//
// The exported fields are manipulated directly by the snapshot store and
// by handlers holding the lock via Lock/Unlock. Convenience methods below
// cover the mutations that must be atomic.
type State struct {
	mu sync.Mutex

	Users            map[int64]*models.User
	Products         map[int64]*models.Product
	Tickets          map[int64]*models.Ticket
	Raffles          map[int64]*models.Raffle
	Reviews          []models.Review
	RequiredChannels []models.Channel
	Banned           map[int64]*models.Ban
	Groups           map[int64]*models.GroupSettings
	AutopostChannels []models.Channel
	Autoposts        map[int64]*models.AutopostRequest
	Admins           map[int64]int

	Counters map[string]int64
}

// New returns an empty State with every counter starting at 1.
func New() *State {
	s := &State{}
	s.Reset()
	return s
}

// Reset reinitializes every collection to empty. Callers must not hold
// the lock.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Users = make(map[int64]*models.User)
	s.Products = make(map[int64]*models.Product)
	s.Tickets = make(map[int64]*models.Ticket)
	s.Raffles = make(map[int64]*models.Raffle)
	s.Reviews = nil
	s.RequiredChannels = nil
	s.Banned = make(map[int64]*models.Ban)
	s.Groups = make(map[int64]*models.GroupSettings)
	s.AutopostChannels = nil
	s.Autoposts = make(map[int64]*models.AutopostRequest)
	s.Admins = make(map[int64]int)

	s.Counters = make(map[string]int64)
	for _, name := range CounterNames {
		s.Counters[name] = 1
	}
}

// Lock takes the state lock. Use for multi-collection mutations that
// have no dedicated method.
func (s *State) Lock() { s.mu.Lock() }

// Unlock releases the state lock.
func (s *State) Unlock() { s.mu.Unlock() }

// NextID returns the next id from the named counter and advances it.
// Ids start at 1. A crash before the next flush may skip ids but never
// reuses one, because the counter is persisted on the same cadence as
// the records that consume it.
func (s *State) NextID(counter string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.Counters[counter]
	if id == 0 {
		id = 1
	}
	s.Counters[counter] = id + 1
	return id
}

// EnsureUser returns the user record for id, creating it on first
// contact. Username and name refresh on every call.
func (s *State) EnsureUser(id int64, username, name string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.Users[id]
	if !ok {
		u = &models.User{}
		s.Users[id] = u
	}
	u.Username = username
	u.Name = name
	return u
}

// Spend atomically debits amount from the user's balance. It returns the
// new balance and false (untouched) if the user is unknown or the
// balance is insufficient.
func (s *State) Spend(userID, amount int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.Users[userID]
	if !ok || amount < 0 || u.Balance < amount {
		return 0, false
	}
	u.Balance -= amount
	return u.Balance, true
}

// Credit atomically adds amount to the user's balance, creating the user
// record if needed, and returns the new balance.
func (s *State) Credit(userID, amount int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.Users[userID]
	if !ok {
		u = &models.User{}
		s.Users[userID] = u
	}
	u.Balance += amount
	return u.Balance
}

// AdminLevel returns the privilege level of the user, 0 for non-admins.
func (s *State) AdminLevel(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Admins[userID]
}

// AdminIDs returns the ids of every admin.
func (s *State) AdminIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.Admins))
	for id := range s.Admins {
		ids = append(ids, id)
	}
	return ids
}

// AdminIDsAtLeast returns the ids of every admin with the given level or
// higher.
func (s *State) AdminIDsAtLeast(level int) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for id, lvl := range s.Admins {
		if lvl >= level {
			ids = append(ids, id)
		}
	}
	return ids
}

// IsBanned reports whether the user is currently banned, clearing the
// record when a temporary ban has expired.
func (s *State) IsBanned(userID int64, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ban, ok := s.Banned[userID]
	if !ok {
		return false
	}
	if ban.Until != nil && ban.Until.Before(now) {
		delete(s.Banned, userID)
		return false
	}
	return true
}

// ensureGroupLocked returns the group's settings, creating them on first
// touch and repairing nil maps: a group loaded from a malformed durable
// row is an empty record whose maps were never allocated. Callers must
// hold the lock.
func (s *State) ensureGroupLocked(chatID int64) *models.GroupSettings {
	g, ok := s.Groups[chatID]
	if !ok {
		g = &models.GroupSettings{}
		s.Groups[chatID] = g
	}
	if g.Warns == nil {
		g.Warns = make(map[int64]int)
	}
	if g.Bans == nil {
		g.Bans = make(map[int64]models.Ban)
	}
	if g.Mutes == nil {
		g.Mutes = make(map[int64]models.Mute)
	}
	return g
}

// EnsureGroup returns the settings for a group chat, creating them on
// first touch.
func (s *State) EnsureGroup(chatID int64) *models.GroupSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureGroupLocked(chatID)
}

// GroupMute records a mute in the group.
func (s *State) GroupMute(chatID, userID int64, m models.Mute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureGroupLocked(chatID).Mutes[userID] = m
}

// GroupWarn increments the user's warning count. The third warning
// converts into a group ban and resets the count; the second return
// value reports that escalation.
func (s *State) GroupWarn(chatID, userID int64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.ensureGroupLocked(chatID)
	g.Warns[userID]++
	warns := g.Warns[userID]
	if warns >= 3 {
		g.Bans[userID] = models.Ban{Reason: "three warnings"}
		delete(g.Warns, userID)
		return warns, true
	}
	return warns, false
}

// GroupBan records a group ban.
func (s *State) GroupBan(chatID, userID int64, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureGroupLocked(chatID).Bans[userID] = models.Ban{Reason: reason}
}

// GroupUnban lifts a group ban, reporting whether one existed.
func (s *State) GroupUnban(chatID, userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.ensureGroupLocked(chatID)
	_, found := g.Bans[userID]
	delete(g.Bans, userID)
	return found
}
