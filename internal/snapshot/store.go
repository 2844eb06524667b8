// Package snapshot persists the whole application state as periodic full
// snapshots: every collection is loaded once at startup and rewritten to
// the backend on a fixed cadence. Durable state may lag memory by up to
// one interval; a crash inside that window loses the intervening
// mutations, which is the accepted durability contract of this bot.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shopbot/internal/models"
	"shopbot/internal/state"
	"shopbot/internal/storage"
)

// Collection names, matching the original table layout.
const (
	CollectionUsers            = "users"
	CollectionProducts         = "products"
	CollectionTickets          = "tickets"
	CollectionRaffles          = "raffles"
	CollectionReviews          = "reviews"
	CollectionRequiredChannels = "channels_required"
	CollectionBannedUsers      = "banned_users"
	CollectionGroups           = "group_data"
	CollectionAutopostChannels = "autopost_channels"
	CollectionAutoposts        = "pending_autoposts"
	CollectionAdmins           = "admins"
)

// Store binds the in-memory state to the durable backend.
type Store struct {
	backend storage.Backend
	st      *state.State
	ownerID int64
	logger  *zap.Logger
}

// New creates a snapshot store. ownerID is the fallback administrator
// seeded whenever the admins collection comes up empty.
func New(backend storage.Backend, st *state.State, ownerID int64, logger *zap.Logger) *Store {
	return &Store{
		backend: backend,
		st:      st,
		ownerID: ownerID,
		logger:  logger,
	}
}

// LoadAll replaces the in-memory state with the durable contents of every
// collection and counter. Backend errors abort the load; individual
// malformed records do not (they load as empty). If the admins collection
// is empty afterwards, the owner is seeded and persisted immediately so
// the bot never runs without an administrator.
func (s *Store) LoadAll(ctx context.Context) error {
	lg := s.logger

	usersRows, err := s.backend.LoadRows(ctx, CollectionUsers)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", CollectionUsers, err)
	}
	productRows, err := s.backend.LoadRows(ctx, CollectionProducts)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", CollectionProducts, err)
	}
	ticketRows, err := s.backend.LoadRows(ctx, CollectionTickets)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", CollectionTickets, err)
	}
	raffleRows, err := s.backend.LoadRows(ctx, CollectionRaffles)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", CollectionRaffles, err)
	}
	reviewRows, err := s.backend.LoadRows(ctx, CollectionReviews)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", CollectionReviews, err)
	}
	requiredRows, err := s.backend.LoadRows(ctx, CollectionRequiredChannels)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", CollectionRequiredChannels, err)
	}
	bannedRows, err := s.backend.LoadRows(ctx, CollectionBannedUsers)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", CollectionBannedUsers, err)
	}
	groupRows, err := s.backend.LoadRows(ctx, CollectionGroups)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", CollectionGroups, err)
	}
	autopostChannelRows, err := s.backend.LoadRows(ctx, CollectionAutopostChannels)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", CollectionAutopostChannels, err)
	}
	autopostRows, err := s.backend.LoadRows(ctx, CollectionAutoposts)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", CollectionAutoposts, err)
	}
	adminRows, err := s.backend.LoadRows(ctx, CollectionAdmins)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", CollectionAdmins, err)
	}

	counters := make(map[string]int64, len(state.CounterNames))
	for _, name := range state.CounterNames {
		v, err := s.backend.LoadCounter(ctx, name, 1)
		if err != nil {
			return fmt.Errorf("failed to load counter %s: %w", name, err)
		}
		counters[name] = v
	}

	s.st.Lock()
	s.st.Users = decodePtrMap[int64, models.User](CollectionUsers, usersRows, parseInt64Key, lg)
	s.st.Products = decodePtrMap[int64, models.Product](CollectionProducts, productRows, parseInt64Key, lg)
	s.st.Tickets = decodePtrMap[int64, models.Ticket](CollectionTickets, ticketRows, parseInt64Key, lg)
	s.st.Raffles = decodePtrMap[int64, models.Raffle](CollectionRaffles, raffleRows, parseInt64Key, lg)
	s.st.Reviews = decodeList[models.Review](CollectionReviews, reviewRows, lg)
	s.st.RequiredChannels = decodeList[models.Channel](CollectionRequiredChannels, requiredRows, lg)
	s.st.Banned = decodePtrMap[int64, models.Ban](CollectionBannedUsers, bannedRows, parseInt64Key, lg)
	s.st.Groups = decodePtrMap[int64, models.GroupSettings](CollectionGroups, groupRows, parseInt64Key, lg)
	s.st.AutopostChannels = decodeList[models.Channel](CollectionAutopostChannels, autopostChannelRows, lg)
	s.st.Autoposts = decodePtrMap[int64, models.AutopostRequest](CollectionAutoposts, autopostRows, parseInt64Key, lg)
	s.st.Admins = decodeMap[int64, int](CollectionAdmins, adminRows, parseInt64Key, lg)
	s.st.Counters = counters
	needSeed := len(s.st.Admins) == 0 && s.ownerID != 0
	if needSeed {
		s.st.Admins[s.ownerID] = models.LevelAdmin
	}
	adminsSnapshot := encodeMap(CollectionAdmins, s.st.Admins, formatInt64Key, lg)
	s.st.Unlock()

	if needSeed {
		s.logger.Info("Admins collection empty, seeding owner",
			zap.Int64("owner_id", s.ownerID))
		if err := s.backend.UpsertRows(ctx, CollectionAdmins, adminsSnapshot); err != nil {
			return fmt.Errorf("failed to persist seeded owner admin: %w", err)
		}
	}

	return nil
}

// Bootstrap resets the state to empty, seeds the owner admin and flushes.
// It is the fallback when LoadAll fails against a fresh or broken database.
func (s *Store) Bootstrap(ctx context.Context) error {
	s.st.Reset()
	if s.ownerID != 0 {
		s.st.Lock()
		s.st.Admins[s.ownerID] = models.LevelAdmin
		s.st.Unlock()
	}
	return s.FlushAll(ctx)
}

// encoded is one collection's serialized snapshot plus how to write it.
type encoded struct {
	collection string
	rows       []storage.Row
	list       bool
}

// FlushAll rewrites every collection and counter. The entire state is
// serialized under the lock before the first durable write, so a flush
// never stores a torn value. A failure on one collection is logged and
// the remaining collections still flush; the next cycle rewrites
// everything anyway, so a transient outage self-heals.
func (s *Store) FlushAll(ctx context.Context) error {
	lg := s.logger

	s.st.Lock()
	snapshots := []encoded{
		{CollectionUsers, encodePtrMap(CollectionUsers, s.st.Users, formatInt64Key, lg), false},
		{CollectionProducts, encodePtrMap(CollectionProducts, s.st.Products, formatInt64Key, lg), false},
		{CollectionTickets, encodePtrMap(CollectionTickets, s.st.Tickets, formatInt64Key, lg), false},
		{CollectionRaffles, encodePtrMap(CollectionRaffles, s.st.Raffles, formatInt64Key, lg), false},
		{CollectionReviews, encodeList(CollectionReviews, s.st.Reviews, lg), true},
		{CollectionRequiredChannels, encodeList(CollectionRequiredChannels, s.st.RequiredChannels, lg), true},
		{CollectionBannedUsers, encodePtrMap(CollectionBannedUsers, s.st.Banned, formatInt64Key, lg), false},
		{CollectionGroups, encodePtrMap(CollectionGroups, s.st.Groups, formatInt64Key, lg), false},
		{CollectionAutopostChannels, encodeList(CollectionAutopostChannels, s.st.AutopostChannels, lg), true},
		{CollectionAutoposts, encodePtrMap(CollectionAutoposts, s.st.Autoposts, formatInt64Key, lg), false},
		{CollectionAdmins, encodeMap(CollectionAdmins, s.st.Admins, formatInt64Key, lg), false},
	}
	counters := make(map[string]int64, len(s.st.Counters))
	for name, v := range s.st.Counters {
		counters[name] = v
	}
	s.st.Unlock()

	var errs []error
	for _, snap := range snapshots {
		var err error
		if snap.list {
			err = s.backend.ReplaceRows(ctx, snap.collection, snap.rows)
		} else {
			err = s.backend.UpsertRows(ctx, snap.collection, snap.rows)
		}
		if err != nil {
			lg.Error("Failed to flush collection, will retry next cycle",
				zap.String("collection", snap.collection),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	for _, name := range state.CounterNames {
		if err := s.backend.SaveCounter(ctx, name, counters[name]); err != nil {
			lg.Error("Failed to flush counter, will retry next cycle",
				zap.String("counter", name),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run flushes on the given interval until ctx is canceled, then performs
// one final flush. Flush errors never stop the loop.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.FlushAll(ctx); err != nil {
				s.logger.Error("Periodic flush failed", zap.Error(err))
			}
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			if err := s.FlushAll(finalCtx); err != nil {
				s.logger.Error("Final flush failed", zap.Error(err))
			}
			cancel()
			return
		}
	}
}
