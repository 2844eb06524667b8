package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"shopbot/internal/models"
)

func TestNextIDMonotonic(t *testing.T) {
	s := New()

	assert.Equal(t, int64(1), s.NextID(CounterRaffle))
	assert.Equal(t, int64(2), s.NextID(CounterRaffle))
	assert.Equal(t, int64(3), s.NextID(CounterRaffle))

	// Counters are independent
	assert.Equal(t, int64(1), s.NextID(CounterTicket))
}

func TestNextIDZeroCounter(t *testing.T) {
	s := New()
	s.Lock()
	s.Counters["raffle"] = 0 // e.g. loaded from a blank row
	s.Unlock()

	assert.Equal(t, int64(1), s.NextID(CounterRaffle))
	assert.Equal(t, int64(2), s.NextID(CounterRaffle))
}

func TestEnsureUserRefreshesIdentity(t *testing.T) {
	s := New()

	u := s.EnsureUser(42, "old_name", "Old Name")
	u2 := s.EnsureUser(42, "new_name", "New Name")

	assert.Same(t, u, u2)
	assert.Equal(t, "new_name", u2.Username)
	assert.Equal(t, "New Name", u2.Name)
}

func TestSpend(t *testing.T) {
	s := New()
	s.EnsureUser(1, "u", "U")
	s.Credit(1, 100)

	balance, ok := s.Spend(1, 40)
	assert.True(t, ok)
	assert.Equal(t, int64(60), balance)

	_, ok = s.Spend(1, 61)
	assert.False(t, ok, "overspend must be rejected")

	_, ok = s.Spend(999, 1)
	assert.False(t, ok, "unknown user must be rejected")
}

func TestSpendNoDoubleSpend(t *testing.T) {
	s := New()
	s.EnsureUser(1, "u", "U")
	s.Credit(1, 100)

	// Two concurrent spends of the full balance: exactly one may win.
	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.Spend(1, 100)
		}(i)
	}
	wg.Wait()

	assert.NotEqual(t, results[0], results[1], "exactly one spend must succeed")

	s.Lock()
	assert.Equal(t, int64(0), s.Users[1].Balance)
	s.Unlock()
}

func TestIsBanned(t *testing.T) {
	s := New()
	now := time.Now()

	assert.False(t, s.IsBanned(1, now))

	s.Lock()
	s.Banned[1] = &models.Ban{Reason: "spam"}
	expired := now.Add(-time.Hour)
	s.Banned[2] = &models.Ban{Reason: "spam", Until: &expired}
	active := now.Add(time.Hour)
	s.Banned[3] = &models.Ban{Reason: "spam", Until: &active}
	s.Unlock()

	assert.True(t, s.IsBanned(1, now), "permanent ban")
	assert.False(t, s.IsBanned(2, now), "expired ban clears")
	assert.True(t, s.IsBanned(3, now), "active timed ban")

	s.Lock()
	_, stillThere := s.Banned[2]
	s.Unlock()
	assert.False(t, stillThere, "expired ban record removed")
}

func TestEnsureGroup(t *testing.T) {
	s := New()

	g := s.EnsureGroup(-100)
	assert.NotNil(t, g.Warns)
	assert.NotNil(t, g.Bans)
	assert.NotNil(t, g.Mutes)

	assert.Same(t, g, s.EnsureGroup(-100))
}

func TestEnsureGroupRepairsNilMaps(t *testing.T) {
	s := New()

	// A group loaded from a malformed durable row is an empty record
	// whose maps were never allocated
	s.Lock()
	s.Groups[-100] = &models.GroupSettings{}
	s.Unlock()

	g := s.EnsureGroup(-100)
	assert.NotNil(t, g.Warns)
	assert.NotNil(t, g.Bans)
	assert.NotNil(t, g.Mutes)

	g.Warns[42]++
	assert.Equal(t, 1, g.Warns[42])
}

func TestGroupWarnEscalatesOnThird(t *testing.T) {
	s := New()

	warns, banned := s.GroupWarn(-100, 42)
	assert.Equal(t, 1, warns)
	assert.False(t, banned)

	warns, banned = s.GroupWarn(-100, 42)
	assert.Equal(t, 2, warns)
	assert.False(t, banned)

	warns, banned = s.GroupWarn(-100, 42)
	assert.Equal(t, 3, warns)
	assert.True(t, banned)

	s.Lock()
	g := s.Groups[-100]
	assert.NotContains(t, g.Warns, int64(42))
	assert.Contains(t, g.Bans, int64(42))
	s.Unlock()

	// The count restarts after a ban
	warns, banned = s.GroupWarn(-100, 42)
	assert.Equal(t, 1, warns)
	assert.False(t, banned)
}

func TestGroupWarnOnCorruptRecordKeepsLockUsable(t *testing.T) {
	s := New()

	s.Lock()
	s.Groups[-100] = &models.GroupSettings{} // nil maps, as decoded leniently
	s.Unlock()

	warns, banned := s.GroupWarn(-100, 42)
	assert.Equal(t, 1, warns)
	assert.False(t, banned)

	// The lock must still be acquirable afterwards
	s.Lock()
	s.Unlock()
}

func TestGroupBanAndUnban(t *testing.T) {
	s := New()

	s.GroupBan(-100, 42, "spam")
	s.Lock()
	assert.Equal(t, "spam", s.Groups[-100].Bans[42].Reason)
	s.Unlock()

	assert.True(t, s.GroupUnban(-100, 42))
	assert.False(t, s.GroupUnban(-100, 42))
}

func TestGroupMuteOnCorruptRecord(t *testing.T) {
	s := New()

	s.Lock()
	s.Groups[-100] = &models.GroupSettings{}
	s.Unlock()

	s.GroupMute(-100, 42, models.Mute{Reason: "flood"})

	s.Lock()
	defer s.Unlock()
	assert.Equal(t, "flood", s.Groups[-100].Mutes[42].Reason)
}

func TestResetStartsCountersAtOne(t *testing.T) {
	s := New()
	s.NextID(CounterProduct)
	s.NextID(CounterProduct)

	s.Reset()
	assert.Equal(t, int64(1), s.NextID(CounterProduct))
}
