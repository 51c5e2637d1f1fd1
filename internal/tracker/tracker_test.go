package tracker

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicewatch/internal/database"
	"voicewatch/internal/models"
)

// testClock lets a test advance the tracker's wall clock manually.
type testClock struct {
	current time.Time
}

func (c *testClock) Now() time.Time { return c.current }

func (c *testClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestTracker(t *testing.T) (*Tracker, *database.Repository, *testClock) {
	t.Helper()
	db, err := database.New(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := database.NewRepository(db)
	tr := New(repo, slog.Default(), time.UTC, 10)
	clock := &testClock{current: time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)}
	tr.now = clock.Now
	return tr, repo, clock
}

func TestStartSessionIdempotent(t *testing.T) {
	tr, repo, clock := newTestTracker(t)

	require.NoError(t, tr.StartSession("g1", "u1", "chanA"))
	first, err := repo.GetSession("g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, first)

	clock.Advance(30 * time.Second)
	require.NoError(t, tr.StartSession("g1", "u1", "chanB"))

	count, err := repo.CountSessions()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	second, err := repo.GetSession("g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "chanA", second.ChannelID, "duplicate start must not replace the session")
	assert.True(t, second.StartedAt.Equal(first.StartedAt), "duplicate start must keep the original started_at")
}

func TestEndSessionCreditsAllBuckets(t *testing.T) {
	tr, repo, clock := newTestTracker(t)

	require.NoError(t, tr.StartSession("g1", "u1", "chanA"))
	clock.Advance(90 * time.Second)
	require.NoError(t, tr.EndSession("g1", "u1"))

	for _, bucket := range models.Buckets {
		pos, err := repo.UserPosition("g1", "u1", bucket)
		require.NoError(t, err)
		require.NotNil(t, pos, "bucket %s should have a row", bucket)
		assert.Equal(t, int64(90), pos.Seconds, "bucket %s", bucket)
	}

	count, err := repo.CountSessions()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestEndSessionWithoutSessionIsNoop(t *testing.T) {
	tr, repo, _ := newTestTracker(t)

	require.NoError(t, tr.EndSession("g1", "nobody"))
	pos, err := repo.UserPosition("g1", "nobody", models.BucketAlltime)
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestNoNegativeCredit(t *testing.T) {
	tr, repo, clock := newTestTracker(t)

	require.NoError(t, tr.StartSession("g1", "u1", "chanA"))
	// Clock goes backward: elapsed must be treated as nothing to credit.
	clock.Advance(-5 * time.Minute)

	require.NoError(t, tr.SyncActiveSessions(""))
	pos, err := repo.UserPosition("g1", "u1", models.BucketAlltime)
	require.NoError(t, err)
	assert.Nil(t, pos, "flush must not credit negative elapsed time")

	require.NoError(t, tr.EndSession("g1", "u1"))
	pos, err = repo.UserPosition("g1", "u1", models.BucketAlltime)
	require.NoError(t, err)
	assert.Nil(t, pos, "close must not credit negative elapsed time")

	count, err := repo.CountSessions()
	require.NoError(t, err)
	assert.Equal(t, 0, count, "close still removes the session")
}

func TestConservationAcrossChannelMove(t *testing.T) {
	tr, repo, clock := newTestTracker(t)

	require.NoError(t, tr.StartSession("g1", "u1", "chanA"))
	clock.Advance(120 * time.Second)
	require.NoError(t, tr.EndSession("g1", "u1"))
	require.NoError(t, tr.StartSession("g1", "u1", "chanB"))

	for _, bucket := range models.Buckets {
		pos, err := repo.UserPosition("g1", "u1", bucket)
		require.NoError(t, err)
		require.NotNil(t, pos)
		assert.Equal(t, int64(120), pos.Seconds, "bucket %s", bucket)
	}

	count, err := repo.CountSessions()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	session, err := repo.GetSession("g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "chanB", session.ChannelID)
	assert.True(t, session.StartedAt.Equal(clock.Now()), "moved session starts a fresh clock")
}

func TestFlushCreditsWithoutClosing(t *testing.T) {
	tr, repo, clock := newTestTracker(t)

	require.NoError(t, tr.StartSession("g1", "u1", "chanA"))
	clock.Advance(60 * time.Second)
	require.NoError(t, tr.SyncActiveSessions(""))

	pos, err := repo.UserPosition("g1", "u1", models.BucketWeekly)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(60), pos.Seconds)

	session, err := repo.GetSession("g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, session, "flush must not close the session")
	assert.True(t, session.StartedAt.Equal(clock.Now()), "flush advances started_at to now")

	// A close right after the flush credits only the remainder.
	clock.Advance(30 * time.Second)
	require.NoError(t, tr.EndSession("g1", "u1"))
	pos, err = repo.UserPosition("g1", "u1", models.BucketWeekly)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(90), pos.Seconds)
}

func TestFlushScopedToGuild(t *testing.T) {
	tr, repo, clock := newTestTracker(t)

	require.NoError(t, tr.StartSession("g1", "u1", "chanA"))
	require.NoError(t, tr.StartSession("g2", "u1", "chanB"))
	clock.Advance(45 * time.Second)

	require.NoError(t, tr.SyncActiveSessions("g1"))

	pos, err := repo.UserPosition("g1", "u1", models.BucketAlltime)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(45), pos.Seconds)

	pos, err = repo.UserPosition("g2", "u1", models.BucketAlltime)
	require.NoError(t, err)
	assert.Nil(t, pos, "other guilds are untouched by a scoped flush")
}

func TestLeaderboardOrdering(t *testing.T) {
	tr, repo, clock := newTestTracker(t)

	seed := map[string]int64{"u1": 50, "u2": 500, "u3": 10, "u4": 300}
	for userID, seconds := range seed {
		require.NoError(t, repo.AddSeconds("g1", userID, seconds, clock.Now()))
	}

	entries, err := tr.FetchLeaderboard("g1", models.BucketWeekly)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	got := make([]int64, 0, len(entries))
	for _, e := range entries {
		got = append(got, e.Seconds)
	}
	assert.Equal(t, []int64{500, 300, 50, 10}, got)
}

func TestLeaderboardLimit(t *testing.T) {
	tr, repo, clock := newTestTracker(t)
	tr.leaderboardLimit = 2

	for i, userID := range []string{"u1", "u2", "u3"} {
		require.NoError(t, repo.AddSeconds("g1", userID, int64(100*(i+1)), clock.Now()))
	}

	entries, err := tr.FetchLeaderboard("g1", models.BucketAlltime)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestUserPositionRank(t *testing.T) {
	tr, repo, clock := newTestTracker(t)

	seed := map[string]int64{"u1": 500, "u2": 300, "u3": 50, "u4": 10}
	for userID, seconds := range seed {
		require.NoError(t, repo.AddSeconds("g1", userID, seconds, clock.Now()))
	}

	pos, err := tr.FetchUserPosition("g1", "u2", models.BucketMonthly)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(300), pos.Seconds)
	assert.Equal(t, 2, pos.Rank)

	pos, err = tr.FetchUserPosition("g1", "u4", models.BucketMonthly)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, 4, pos.Rank)

	pos, err = tr.FetchUserPosition("g1", "stranger", models.BucketMonthly)
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestReconcileMovedUser(t *testing.T) {
	tr, repo, clock := newTestTracker(t)

	// Session persisted 600s ago in channel A; user is now live in B.
	require.NoError(t, repo.InsertSessionIfAbsent("1", "7", "chanA", clock.Now().Add(-600*time.Second)))

	live := models.PresenceSnapshot{
		{GuildID: "1", UserID: "7"}: "chanB",
	}
	require.NoError(t, tr.ReconcileActiveSessions(live))

	for _, bucket := range models.Buckets {
		pos, err := repo.UserPosition("1", "7", bucket)
		require.NoError(t, err)
		require.NotNil(t, pos)
		assert.Equal(t, int64(600), pos.Seconds, "bucket %s", bucket)
	}

	count, err := repo.CountSessions()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	session, err := repo.GetSession("1", "7")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "chanB", session.ChannelID)
	assert.True(t, session.StartedAt.Equal(clock.Now()))
}

func TestReconcileDepartedAndJoinedUsers(t *testing.T) {
	tr, repo, clock := newTestTracker(t)

	// u1 was recorded but has left; u2 is live with no record.
	require.NoError(t, repo.InsertSessionIfAbsent("g1", "u1", "chanA", clock.Now().Add(-300*time.Second)))

	live := models.PresenceSnapshot{
		{GuildID: "g1", UserID: "u2"}: "chanA",
	}
	require.NoError(t, tr.ReconcileActiveSessions(live))

	pos, err := repo.UserPosition("g1", "u1", models.BucketAlltime)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(300), pos.Seconds)

	gone, err := repo.GetSession("g1", "u1")
	require.NoError(t, err)
	assert.Nil(t, gone)

	joined, err := repo.GetSession("g1", "u2")
	require.NoError(t, err)
	require.NotNil(t, joined)
	assert.Equal(t, "chanA", joined.ChannelID)
}

func TestReconcileMatchingSessionUntouched(t *testing.T) {
	tr, repo, clock := newTestTracker(t)

	startedAt := clock.Now().Add(-120 * time.Second)
	require.NoError(t, repo.InsertSessionIfAbsent("g1", "u1", "chanA", startedAt))

	live := models.PresenceSnapshot{
		{GuildID: "g1", UserID: "u1"}: "chanA",
	}
	require.NoError(t, tr.ReconcileActiveSessions(live))

	session, err := repo.GetSession("g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, session.StartedAt.Equal(startedAt.UTC()), "matching session keeps its clock")

	pos, err := repo.UserPosition("g1", "u1", models.BucketAlltime)
	require.NoError(t, err)
	assert.Nil(t, pos, "matching session credits nothing during reconciliation")
}

func TestClearGuildStats(t *testing.T) {
	tr, repo, clock := newTestTracker(t)

	require.NoError(t, repo.AddSeconds("g1", "u1", 100, clock.Now()))
	require.NoError(t, repo.AddSeconds("g2", "u1", 100, clock.Now()))
	require.NoError(t, tr.StartSession("g1", "u1", "chanA"))

	require.NoError(t, tr.ClearGuildStats("g1"))

	pos, err := repo.UserPosition("g1", "u1", models.BucketAlltime)
	require.NoError(t, err)
	assert.Nil(t, pos)

	session, err := repo.GetSession("g1", "u1")
	require.NoError(t, err)
	assert.Nil(t, session)

	pos, err = repo.UserPosition("g2", "u1", models.BucketAlltime)
	require.NoError(t, err)
	require.NotNil(t, pos, "other guilds are untouched")
}

func TestWeeklyResetIdempotent(t *testing.T) {
	tr, repo, clock := newTestTracker(t)

	// 2025-06-09 is a Monday.
	clock.current = time.Date(2025, 6, 9, 0, 5, 0, 0, time.UTC)
	require.NoError(t, repo.AddSeconds("g1", "u1", 100, clock.Now()))

	require.NoError(t, tr.HandlePeriodicResets())

	pos, err := repo.UserPosition("g1", "u1", models.BucketWeekly)
	require.NoError(t, err)
	assert.Nil(t, pos, "weekly bucket is cleared on Monday")

	pos, err = repo.UserPosition("g1", "u1", models.BucketAlltime)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(100), pos.Seconds, "alltime is never reset")

	label, err := repo.GetMetadata("weekly_reset")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-09", label)

	// Second call on the same Monday: time accrued since the first reset
	// survives because the label marks the period as already handled.
	require.NoError(t, repo.AddSeconds("g1", "u1", 50, clock.Now()))
	clock.Advance(time.Hour)
	require.NoError(t, tr.HandlePeriodicResets())

	pos, err = repo.UserPosition("g1", "u1", models.BucketWeekly)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(50), pos.Seconds)
}

func TestMonthlyAndYearlyResets(t *testing.T) {
	tr, repo, clock := newTestTracker(t)

	// 2026-01-01 is both a month and a year boundary (and a Thursday, so
	// the weekly bucket is untouched).
	clock.current = time.Date(2026, 1, 1, 0, 2, 0, 0, time.UTC)
	require.NoError(t, repo.AddSeconds("g1", "u1", 100, clock.Now()))

	require.NoError(t, tr.HandlePeriodicResets())

	for _, bucket := range []models.Bucket{models.BucketMonthly, models.BucketYearly} {
		pos, err := repo.UserPosition("g1", "u1", bucket)
		require.NoError(t, err)
		assert.Nil(t, pos, "bucket %s is cleared at the boundary", bucket)
	}
	for _, bucket := range []models.Bucket{models.BucketWeekly, models.BucketAlltime} {
		pos, err := repo.UserPosition("g1", "u1", bucket)
		require.NoError(t, err)
		require.NotNil(t, pos, "bucket %s survives", bucket)
	}

	monthLabel, err := repo.GetMetadata("monthly_reset")
	require.NoError(t, err)
	assert.Equal(t, "2026-01", monthLabel)
	yearLabel, err := repo.GetMetadata("yearly_reset")
	require.NoError(t, err)
	assert.Equal(t, "2026", yearLabel)
}

func TestPeriodicResetFlushesFirst(t *testing.T) {
	tr, repo, clock := newTestTracker(t)

	// Open session accrues 10 minutes before the Monday reset check runs:
	// the flush credits it, then the weekly reset wipes the bucket, so the
	// session's clock must have been advanced to avoid re-crediting later.
	clock.current = time.Date(2025, 6, 9, 0, 10, 0, 0, time.UTC)
	require.NoError(t, repo.InsertSessionIfAbsent("g1", "u1", "chanA", clock.Now().Add(-10*time.Minute)))

	require.NoError(t, tr.HandlePeriodicResets())

	pos, err := repo.UserPosition("g1", "u1", models.BucketAlltime)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(600), pos.Seconds)

	session, err := repo.GetSession("g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, session.StartedAt.Equal(clock.Now()))
}
