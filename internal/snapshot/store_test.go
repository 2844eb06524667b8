package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopbot/internal/models"
	"shopbot/internal/state"
	"shopbot/internal/storage/stubs"
)

const testOwnerID int64 = 777

func newTestStore(t *testing.T) (*Store, *state.State, *stubs.MockDB) {
	t.Helper()
	mock := stubs.NewMockDB()
	st := state.New()
	return New(mock, st, testOwnerID, zap.NewNop()), st, mock
}

func TestFlushLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, st, mock := newTestStore(t)

	endsAt := time.Date(2025, 7, 1, 18, 0, 0, 0, time.UTC)
	reviewDate := time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)
	banUntil := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

	st.Lock()
	st.Users[100] = &models.User{
		Balance:   250,
		Stars:     10,
		Purchases: []int64{1, 2},
		Username:  "alice",
		Name:      "Alice",
		Tickets:   []int64{1},
	}
	st.Users[200] = &models.User{Balance: 0, Username: "bob", Name: "Bob"}
	st.Products[1] = &models.Product{
		Name: "VPN key", PriceRub: 100, PriceStars: 50,
		ContentType: "text", Content: "secret-key",
	}
	st.Tickets[1] = &models.Ticket{
		ID: 1, UserID: 100, Username: "alice", Name: "Alice", Open: true,
		Messages: []models.TicketMessage{{From: "user", Text: "help", At: reviewDate}},
	}
	st.Raffles[1] = &models.Raffle{
		PrizeCount: 2, EndsAt: endsAt, Participants: []int64{100, 200},
	}
	st.Reviews = []models.Review{
		{UserID: 100, Username: "alice", Rating: 5, Text: "great", Date: reviewDate},
		{UserID: 200, Username: "bob", Rating: 3, Text: "ok", Date: reviewDate},
	}
	st.RequiredChannels = []models.Channel{
		{ChannelID: -1001, Title: "News", InviteLink: "https://t.me/+abc"},
	}
	st.Banned[300] = &models.Ban{Reason: "spam", Until: &banUntil}
	st.Groups[-2000] = &models.GroupSettings{
		Rules: "be nice",
		Warns: map[int64]int{300: 2},
		Bans:  map[int64]models.Ban{},
		Mutes: map[int64]models.Mute{},
	}
	st.AutopostChannels = []models.Channel{
		{ChannelID: -1002, Title: "Ads", Cost: 75},
	}
	st.Autoposts[1] = &models.AutopostRequest{
		UserID: 100, ChannelID: -1002, Text: "buy now", Cost: 75, CreatedAt: reviewDate,
	}
	st.Admins[testOwnerID] = models.LevelAdmin
	st.Admins[100] = models.LevelSupport
	st.Counters[state.CounterTicket] = 2
	st.Counters[state.CounterRaffle] = 2
	st.Counters[state.CounterProduct] = 2
	st.Counters[state.CounterAutopost] = 2
	st.Unlock()

	require.NoError(t, store.FlushAll(ctx))

	// Load into a completely fresh state over the same backend
	st2 := state.New()
	store2 := New(mock, st2, testOwnerID, zap.NewNop())
	require.NoError(t, store2.LoadAll(ctx))

	st.Lock()
	st2.Lock()
	assert.Equal(t, st.Users, st2.Users)
	assert.Equal(t, st.Products, st2.Products)
	assert.Equal(t, st.Tickets, st2.Tickets)
	assert.Equal(t, st.Raffles, st2.Raffles)
	assert.Equal(t, st.Reviews, st2.Reviews)
	assert.Equal(t, st.RequiredChannels, st2.RequiredChannels)
	assert.Equal(t, st.Banned, st2.Banned)
	assert.Equal(t, st.Groups, st2.Groups)
	assert.Equal(t, st.AutopostChannels, st2.AutopostChannels)
	assert.Equal(t, st.Autoposts, st2.Autoposts)
	assert.Equal(t, st.Admins, st2.Admins)
	assert.Equal(t, st.Counters, st2.Counters)
	st2.Unlock()
	st.Unlock()
}

func TestFlushLoadEmptyState(t *testing.T) {
	ctx := context.Background()
	store, _, mock := newTestStore(t)

	require.NoError(t, store.FlushAll(ctx))

	st2 := state.New()
	store2 := New(mock, st2, testOwnerID, zap.NewNop())
	require.NoError(t, store2.LoadAll(ctx))

	st2.Lock()
	defer st2.Unlock()
	assert.Empty(t, st2.Users)
	assert.Empty(t, st2.Reviews)
	// Empty admins collection triggers owner seeding
	assert.Equal(t, map[int64]int{testOwnerID: models.LevelAdmin}, st2.Admins)
	for _, name := range state.CounterNames {
		assert.Equal(t, int64(1), st2.Counters[name])
	}
}

func TestLoadAllMalformedRowLeniency(t *testing.T) {
	ctx := context.Background()
	store, st, mock := newTestStore(t)

	mock.SeedRow(CollectionUsers, "100", []byte(`{"balance":50,"username":"alice","name":"Alice"}`))
	mock.SeedRow(CollectionUsers, "200", []byte(`{not json at all`))
	mock.SeedRow(CollectionUsers, "not-a-number", []byte(`{}`))
	mock.SeedRow(CollectionReviews, "0", []byte(`garbage`))
	mock.SeedRow(CollectionReviews, "1", []byte(`{"user_id":1,"rating":4,"text":"fine"}`))

	require.NoError(t, store.LoadAll(ctx))

	st.Lock()
	defer st.Unlock()

	// Valid row intact
	require.Contains(t, st.Users, int64(100))
	assert.Equal(t, int64(50), st.Users[100].Balance)

	// Malformed row loads as an empty record, not nil, and does not
	// abort the load
	require.Contains(t, st.Users, int64(200))
	assert.Equal(t, &models.User{}, st.Users[200])

	// Unparseable key is dropped
	assert.Len(t, st.Users, 2)

	// List rows keep their positions, malformed ones as zero values
	require.Len(t, st.Reviews, 2)
	assert.Equal(t, models.Review{}, st.Reviews[0])
	assert.Equal(t, 4, st.Reviews[1].Rating)
}

func TestLoadAllSeedsOwnerWhenNoAdmins(t *testing.T) {
	ctx := context.Background()
	store, st, mock := newTestStore(t)

	require.NoError(t, store.LoadAll(ctx))

	st.Lock()
	assert.Equal(t, models.LevelAdmin, st.Admins[testOwnerID])
	st.Unlock()

	// The seed is persisted immediately, not deferred to the next flush
	rows, err := mock.LoadRows(ctx, CollectionAdmins)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "777", rows[0].Key)
	assert.Equal(t, "3", string(rows[0].Data))
}

func TestLoadAllKeepsExistingAdmins(t *testing.T) {
	ctx := context.Background()
	store, st, mock := newTestStore(t)

	mock.SeedRow(CollectionAdmins, "100", []byte("1"))

	require.NoError(t, store.LoadAll(ctx))

	st.Lock()
	defer st.Unlock()
	assert.Equal(t, map[int64]int{100: models.LevelSupport}, st.Admins)
	assert.NotContains(t, st.Admins, testOwnerID, "owner is only seeded into an empty collection")
}

func TestLoadAllBackendFailure(t *testing.T) {
	ctx := context.Background()
	store, _, mock := newTestStore(t)

	mock.FailWith(assert.AnError)
	assert.Error(t, store.LoadAll(ctx))
}

func TestBootstrapAfterFailedLoad(t *testing.T) {
	ctx := context.Background()
	store, st, mock := newTestStore(t)

	mock.FailWith(assert.AnError)
	require.Error(t, store.LoadAll(ctx))
	mock.FailWith(nil)

	require.NoError(t, store.Bootstrap(ctx))

	st.Lock()
	assert.Equal(t, models.LevelAdmin, st.Admins[testOwnerID])
	assert.Empty(t, st.Users)
	st.Unlock()

	rows, err := mock.LoadRows(ctx, CollectionAdmins)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFlushErrorRetriesNextCycle(t *testing.T) {
	ctx := context.Background()
	store, st, mock := newTestStore(t)

	st.Lock()
	st.Users[100] = &models.User{Balance: 10, Name: "Alice"}
	st.Unlock()

	mock.FailWith(assert.AnError)
	assert.Error(t, store.FlushAll(ctx))
	mock.FailWith(nil)

	// Next cycle rewrites everything, healing the missed flush
	require.NoError(t, store.FlushAll(ctx))

	st2 := state.New()
	store2 := New(mock, st2, testOwnerID, zap.NewNop())
	require.NoError(t, store2.LoadAll(ctx))

	st2.Lock()
	defer st2.Unlock()
	require.Contains(t, st2.Users, int64(100))
	assert.Equal(t, int64(10), st2.Users[100].Balance)
}

func TestFlushListShrinksDurableCopy(t *testing.T) {
	ctx := context.Background()
	store, st, mock := newTestStore(t)

	st.Lock()
	st.Reviews = []models.Review{
		{UserID: 1, Rating: 5}, {UserID: 2, Rating: 4}, {UserID: 3, Rating: 1},
	}
	st.Unlock()
	require.NoError(t, store.FlushAll(ctx))

	// Drop the middle review and flush again: the durable copy must be a
	// full replace, never a merge with prior rows
	st.Lock()
	st.Reviews = []models.Review{{UserID: 1, Rating: 5}, {UserID: 3, Rating: 1}}
	st.Unlock()
	require.NoError(t, store.FlushAll(ctx))

	rows, err := mock.LoadRows(ctx, CollectionReviews)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	st2 := state.New()
	store2 := New(mock, st2, testOwnerID, zap.NewNop())
	require.NoError(t, store2.LoadAll(ctx))
	st2.Lock()
	defer st2.Unlock()
	assert.Equal(t, []int64{1, 3}, []int64{st2.Reviews[0].UserID, st2.Reviews[1].UserID})
}

func TestFlushMapOverwritesChangedRecords(t *testing.T) {
	ctx := context.Background()
	store, st, mock := newTestStore(t)

	st.Lock()
	st.Users[100] = &models.User{Balance: 10, Name: "Alice"}
	st.Unlock()
	require.NoError(t, store.FlushAll(ctx))

	st.Lock()
	st.Users[100].Balance = 99
	st.Unlock()
	require.NoError(t, store.FlushAll(ctx))

	st2 := state.New()
	store2 := New(mock, st2, testOwnerID, zap.NewNop())
	require.NoError(t, store2.LoadAll(ctx))
	st2.Lock()
	defer st2.Unlock()
	assert.Equal(t, int64(99), st2.Users[100].Balance)
}

func TestCountersSurviveRestart(t *testing.T) {
	ctx := context.Background()
	store, st, mock := newTestStore(t)

	// Consume a few ids, then flush; the skipped-never-reused contract
	// means a restart picks up past the highest issued id
	st.NextID(state.CounterTicket)
	st.NextID(state.CounterTicket)
	st.NextID(state.CounterTicket)
	require.NoError(t, store.FlushAll(ctx))

	st2 := state.New()
	store2 := New(mock, st2, testOwnerID, zap.NewNop())
	require.NoError(t, store2.LoadAll(ctx))

	assert.Equal(t, int64(4), st2.NextID(state.CounterTicket))
	assert.Equal(t, int64(1), st2.NextID(state.CounterRaffle))
}

func TestRunFinalFlushOnShutdown(t *testing.T) {
	store, st, mock := newTestStore(t)

	st.Lock()
	st.Users[100] = &models.User{Balance: 42, Name: "Alice"}
	st.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	rows, err := mock.LoadRows(context.Background(), CollectionUsers)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "shutdown must trigger one final flush")
}
