// Package raffle implements the raffle lifecycle: creation, joining and
// time-triggered resolution with a uniform draw without replacement.
package raffle

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"shopbot/internal/models"
	"shopbot/internal/state"
)

// ErrNotFound is returned when a raffle id is unknown.
var ErrNotFound = errors.New("raffle not found")

// JoinStatus is the outcome of a join attempt. Everything but a bad id is
// an informational outcome, not an error.
type JoinStatus int

const (
	StatusJoined JoinStatus = iota
	StatusAlreadyJoined
	StatusAlreadyFinished
)

// Notifier delivers raffle notifications. Implementations are expected to
// be best-effort: the engine logs and moves on when delivery fails.
type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, text string) error
	NotifyAdmins(ctx context.Context, text string) error
}

// Engine owns the raffle lifecycle against the shared state.
type Engine struct {
	st       *state.State
	notifier Notifier
	logger   *zap.Logger
	rng      *rand.Rand
	now      func() time.Time
}

// New creates an engine. rng may be nil, in which case a time-seeded
// source is used; tests inject a fixed seed.
func New(st *state.State, notifier Notifier, logger *zap.Logger, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		st:       st,
		notifier: notifier,
		logger:   logger,
		rng:      rng,
		now:      time.Now,
	}
}

// SetClock overrides the engine's time source. Intended for tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Create allocates the next raffle id and stores a new open raffle
// ending after the given duration.
func (e *Engine) Create(prizeCount int, duration time.Duration) (int64, error) {
	if prizeCount <= 0 {
		return 0, fmt.Errorf("prize count must be positive, got %d", prizeCount)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", duration)
	}

	id := e.st.NextID(state.CounterRaffle)
	r := &models.Raffle{
		PrizeCount: prizeCount,
		EndsAt:     e.now().Add(duration),
	}

	e.st.Lock()
	e.st.Raffles[id] = r
	e.st.Unlock()

	e.logger.Info("Raffle created",
		zap.Int64("raffle_id", id),
		zap.Int("prize_count", prizeCount),
		zap.Time("ends_at", r.EndsAt))
	return id, nil
}

// Join adds the user to the raffle's participants. Joining twice is a
// no-op, as is joining a finished raffle.
func (e *Engine) Join(raffleID, userID int64) (JoinStatus, error) {
	e.st.Lock()
	defer e.st.Unlock()

	r, ok := e.st.Raffles[raffleID]
	if !ok {
		return 0, ErrNotFound
	}
	if r.Finished {
		return StatusAlreadyFinished, nil
	}
	for _, p := range r.Participants {
		if p == userID {
			return StatusAlreadyJoined, nil
		}
	}
	r.Participants = append(r.Participants, userID)
	return StatusJoined, nil
}

// Open returns the ids of every unfinished raffle together with the
// raffles themselves, for rendering. The returned records must be read
// only.
func (e *Engine) Open() map[int64]*models.Raffle {
	e.st.Lock()
	defer e.st.Unlock()

	open := make(map[int64]*models.Raffle)
	for id, r := range e.st.Raffles {
		if !r.Finished {
			open[id] = r
		}
	}
	return open
}

// PollDue finishes every open raffle whose end time has passed. Lateness
// by any margin is fine; each raffle finishes exactly once.
func (e *Engine) PollDue(ctx context.Context, now time.Time) {
	e.st.Lock()
	var due []int64
	for id, r := range e.st.Raffles {
		if !r.Finished && !r.EndsAt.After(now) {
			due = append(due, id)
		}
	}
	e.st.Unlock()

	for _, id := range due {
		if err := e.Finish(ctx, id); err != nil {
			e.logger.Error("Failed to finish raffle", zap.Int64("raffle_id", id), zap.Error(err))
		}
	}
}

// Finish draws winners and marks the raffle finished. Calling it on an
// already finished raffle is a no-op, so winners are only ever set once
// and notifications only ever go out once.
//
// Draw rule: with participants P and prize count k, everyone wins when
// |P| <= k; otherwise exactly k distinct winners are drawn uniformly
// without replacement.
func (e *Engine) Finish(ctx context.Context, raffleID int64) error {
	e.st.Lock()
	r, ok := e.st.Raffles[raffleID]
	if !ok {
		e.st.Unlock()
		return ErrNotFound
	}
	if r.Finished {
		e.st.Unlock()
		return nil
	}

	participants := append([]int64(nil), r.Participants...)
	var winners []int64
	if len(participants) <= r.PrizeCount {
		winners = append([]int64(nil), participants...)
	} else {
		pool := append([]int64(nil), participants...)
		for i := 0; i < r.PrizeCount; i++ {
			pick := e.rng.Intn(len(pool))
			winners = append(winners, pool[pick])
			pool[pick] = pool[len(pool)-1]
			pool = pool[:len(pool)-1]
		}
	}
	r.Winners = winners
	r.Finished = true
	prizeCount := r.PrizeCount

	names := make(map[int64]string, len(winners))
	for _, w := range winners {
		if u := e.st.Users[w]; u != nil && u.Name != "" {
			names[w] = u.Name
		} else {
			names[w] = fmt.Sprintf("ID%d", w)
		}
	}
	e.st.Unlock()

	e.logger.Info("Raffle finished",
		zap.Int64("raffle_id", raffleID),
		zap.Int("participants", len(participants)),
		zap.Int("winners", len(winners)))

	// Notifications are best-effort: one failed recipient never blocks
	// the rest and never rolls back the raffle.
	summary := fmt.Sprintf("Raffle #%d has finished!\n\nPrizes: %d\nParticipants: %d\n\n",
		raffleID, prizeCount, len(participants))
	if len(winners) > 0 {
		summary += "Winners:\n"
		for _, w := range winners {
			summary += fmt.Sprintf("• %s\n", names[w])
		}
	} else {
		summary += "No winners this time."
	}

	for _, w := range winners {
		text := fmt.Sprintf("Congratulations! You won raffle #%d!", raffleID)
		if err := e.notifier.NotifyUser(ctx, w, text); err != nil {
			e.logger.Warn("Failed to notify winner",
				zap.Int64("raffle_id", raffleID),
				zap.Int64("user_id", w),
				zap.Error(err))
		}
	}
	for _, p := range participants {
		if err := e.notifier.NotifyUser(ctx, p, summary); err != nil {
			e.logger.Warn("Failed to notify participant",
				zap.Int64("raffle_id", raffleID),
				zap.Int64("user_id", p),
				zap.Error(err))
		}
	}
	adminText := fmt.Sprintf("Raffle #%d finished with %d winner(s).", raffleID, len(winners))
	if err := e.notifier.NotifyAdmins(ctx, adminText); err != nil {
		e.logger.Warn("Failed to notify admins",
			zap.Int64("raffle_id", raffleID),
			zap.Error(err))
	}
	return nil
}

// Run polls for due raffles on the given interval until ctx is canceled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.PollDue(ctx, e.now())
		case <-ctx.Done():
			return
		}
	}
}
