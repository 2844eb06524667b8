package raffle

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopbot/internal/state"
)

// recorder is a Notifier that captures every delivery and can be told to
// fail for specific recipients.
type recorder struct {
	mu        sync.Mutex
	userMsgs  map[int64][]string
	adminMsgs []string
	failFor   map[int64]error
}

func newRecorder() *recorder {
	return &recorder{
		userMsgs: make(map[int64][]string),
		failFor:  make(map[int64]error),
	}
}

func (r *recorder) NotifyUser(ctx context.Context, userID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failFor[userID]; err != nil {
		return err
	}
	r.userMsgs[userID] = append(r.userMsgs[userID], text)
	return nil
}

func (r *recorder) NotifyAdmins(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adminMsgs = append(r.adminMsgs, text)
	return nil
}

func (r *recorder) countFor(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.userMsgs[userID])
}

func newTestEngine(t *testing.T, seed int64) (*Engine, *state.State, *recorder) {
	t.Helper()
	st := state.New()
	rec := newRecorder()
	e := New(st, rec, zap.NewNop(), rand.New(rand.NewSource(seed)))
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e.SetClock(func() time.Time { return base })
	return e, st, rec
}

var testBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestCreateValidation(t *testing.T) {
	testCases := []struct {
		name       string
		prizeCount int
		duration   time.Duration
		wantErr    bool
	}{
		{name: "valid", prizeCount: 1, duration: time.Hour, wantErr: false},
		{name: "zero prizes", prizeCount: 0, duration: time.Hour, wantErr: true},
		{name: "negative prizes", prizeCount: -3, duration: time.Hour, wantErr: true},
		{name: "zero duration", prizeCount: 1, duration: 0, wantErr: true},
		{name: "negative duration", prizeCount: 1, duration: -time.Minute, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e, st, _ := newTestEngine(t, 1)
			id, err := e.Create(tc.prizeCount, tc.duration)
			if tc.wantErr {
				assert.Error(t, err)
				st.Lock()
				assert.Empty(t, st.Raffles, "no raffle must be stored on validation failure")
				st.Unlock()
			} else {
				require.NoError(t, err)
				assert.Equal(t, int64(1), id, "ids start at 1")
				st.Lock()
				r := st.Raffles[id]
				st.Unlock()
				require.NotNil(t, r)
				assert.False(t, r.Finished)
				assert.Empty(t, r.Participants)
				assert.Equal(t, testBase.Add(time.Hour), r.EndsAt)
			}
		})
	}
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	e, _, _ := newTestEngine(t, 1)

	id1, err := e.Create(1, time.Hour)
	require.NoError(t, err)
	id2, err := e.Create(1, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)
}

func TestJoin(t *testing.T) {
	e, st, _ := newTestEngine(t, 1)
	id, err := e.Create(2, time.Hour)
	require.NoError(t, err)

	_, err = e.Join(999, 100)
	assert.ErrorIs(t, err, ErrNotFound)

	status, err := e.Join(id, 100)
	require.NoError(t, err)
	assert.Equal(t, StatusJoined, status)

	// Joining twice leaves participants unchanged in length
	status, err = e.Join(id, 100)
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyJoined, status)

	st.Lock()
	assert.Equal(t, []int64{100}, st.Raffles[id].Participants)
	st.Unlock()

	status, err = e.Join(id, 200)
	require.NoError(t, err)
	assert.Equal(t, StatusJoined, status)

	// Finished raffles report an informational no-op
	require.NoError(t, e.Finish(context.Background(), id))
	status, err = e.Join(id, 300)
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyFinished, status)

	st.Lock()
	assert.Len(t, st.Raffles[id].Participants, 2)
	st.Unlock()
}

func TestFinishEveryoneWinsWhenFewParticipants(t *testing.T) {
	// create(prize_count=2, 1h); A joins twice, B joins; poll at +2h
	e, st, rec := newTestEngine(t, 1)
	id, err := e.Create(2, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	userA, userB := int64(100), int64(200)
	for _, u := range []int64{userA, userA, userB} {
		_, err := e.Join(id, u)
		require.NoError(t, err)
	}

	e.PollDue(context.Background(), testBase.Add(2*time.Hour))

	st.Lock()
	r := st.Raffles[id]
	st.Unlock()
	assert.True(t, r.Finished)
	assert.ElementsMatch(t, []int64{userA, userB}, r.Winners)

	// Each participant got a winner note plus the summary
	assert.Equal(t, 2, rec.countFor(userA))
	assert.Equal(t, 2, rec.countFor(userB))
}

func TestFinishDrawsWithoutReplacement(t *testing.T) {
	e, st, _ := newTestEngine(t, 7)
	id, err := e.Create(3, time.Hour)
	require.NoError(t, err)

	participants := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	for _, u := range participants {
		_, err := e.Join(id, u)
		require.NoError(t, err)
	}

	require.NoError(t, e.Finish(context.Background(), id))

	st.Lock()
	winners := st.Raffles[id].Winners
	st.Unlock()

	assert.Len(t, winners, 3)
	seen := make(map[int64]bool)
	for _, w := range winners {
		assert.False(t, seen[w], "winner %d drawn twice", w)
		seen[w] = true
		assert.Contains(t, participants, w)
	}
}

func TestFinishIdempotent(t *testing.T) {
	e, st, rec := newTestEngine(t, 3)
	id, err := e.Create(1, time.Hour)
	require.NoError(t, err)
	for _, u := range []int64{1, 2, 3} {
		_, err := e.Join(id, u)
		require.NoError(t, err)
	}

	require.NoError(t, e.Finish(context.Background(), id))

	st.Lock()
	winners := append([]int64(nil), st.Raffles[id].Winners...)
	st.Unlock()
	counts := []int{rec.countFor(1), rec.countFor(2), rec.countFor(3)}
	admins := len(rec.adminMsgs)

	// Second finish: no change, no duplicate notifications
	require.NoError(t, e.Finish(context.Background(), id))

	st.Lock()
	assert.Equal(t, winners, st.Raffles[id].Winners)
	assert.True(t, st.Raffles[id].Finished)
	st.Unlock()
	assert.Equal(t, counts, []int{rec.countFor(1), rec.countFor(2), rec.countFor(3)})
	assert.Equal(t, admins, len(rec.adminMsgs))
}

func TestFinishUnknownRaffle(t *testing.T) {
	e, _, _ := newTestEngine(t, 1)
	assert.ErrorIs(t, e.Finish(context.Background(), 42), ErrNotFound)
}

func TestPollDueBoundaries(t *testing.T) {
	e, st, _ := newTestEngine(t, 1)
	id1, err := e.Create(1, time.Hour)
	require.NoError(t, err)
	id2, err := e.Create(1, 48*time.Hour)
	require.NoError(t, err)

	// Before any end time: nothing finishes
	e.PollDue(context.Background(), testBase.Add(time.Minute))
	st.Lock()
	assert.False(t, st.Raffles[id1].Finished)
	assert.False(t, st.Raffles[id2].Finished)
	st.Unlock()

	// Far in the future: everything finishes, exactly once each
	e.PollDue(context.Background(), testBase.Add(1000*time.Hour))
	st.Lock()
	assert.True(t, st.Raffles[id1].Finished)
	assert.True(t, st.Raffles[id2].Finished)
	st.Unlock()
}

func TestPollDueExactEndTime(t *testing.T) {
	e, st, _ := newTestEngine(t, 1)
	id, err := e.Create(1, time.Hour)
	require.NoError(t, err)

	// ends_at <= now finishes, including exact equality
	e.PollDue(context.Background(), testBase.Add(time.Hour))
	st.Lock()
	assert.True(t, st.Raffles[id].Finished)
	st.Unlock()
}

func TestNotificationFailureDoesNotBlockOthers(t *testing.T) {
	e, st, rec := newTestEngine(t, 5)
	rec.failFor[2] = assert.AnError

	id, err := e.Create(5, time.Hour)
	require.NoError(t, err)
	for _, u := range []int64{1, 2, 3} {
		_, err := e.Join(id, u)
		require.NoError(t, err)
	}

	require.NoError(t, e.Finish(context.Background(), id))

	st.Lock()
	assert.True(t, st.Raffles[id].Finished, "delivery failure must not roll back state")
	st.Unlock()
	assert.Equal(t, 2, rec.countFor(1), "everyone wins: winner note + summary")
	assert.Equal(t, 0, rec.countFor(2))
	assert.Equal(t, 2, rec.countFor(3))
	assert.Len(t, rec.adminMsgs, 1)
}

func TestDrawApproximatelyUniform(t *testing.T) {
	// One prize, three participants, many seeded runs: every participant
	// should win roughly a third of the time.
	const runs = 3000
	wins := make(map[int64]int)

	st := state.New()
	rec := newRecorder()
	e := New(st, rec, zap.NewNop(), rand.New(rand.NewSource(99)))
	e.SetClock(func() time.Time { return testBase })

	for i := 0; i < runs; i++ {
		id, err := e.Create(1, time.Hour)
		require.NoError(t, err)
		for _, u := range []int64{1, 2, 3} {
			_, err := e.Join(id, u)
			require.NoError(t, err)
		}
		require.NoError(t, e.Finish(context.Background(), id))

		st.Lock()
		winners := st.Raffles[id].Winners
		st.Unlock()
		require.Len(t, winners, 1)
		wins[winners[0]]++
	}

	for _, u := range []int64{1, 2, 3} {
		frac := float64(wins[u]) / runs
		assert.InDelta(t, 1.0/3, frac, 0.05, "user %d won %d of %d", u, wins[u], runs)
	}
}

func TestOpenListsOnlyUnfinished(t *testing.T) {
	e, _, _ := newTestEngine(t, 1)
	id1, err := e.Create(1, time.Hour)
	require.NoError(t, err)
	id2, err := e.Create(1, 2*time.Hour)
	require.NoError(t, err)

	require.NoError(t, e.Finish(context.Background(), id1))

	open := e.Open()
	assert.NotContains(t, open, id1)
	assert.Contains(t, open, id2)
}
