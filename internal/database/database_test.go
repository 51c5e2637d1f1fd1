package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicewatch/internal/models"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := New(DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(db)
}

func TestRebind(t *testing.T) {
	sqliteDB := &DB{driver: DriverSQLite}
	pgDB := &DB{driver: DriverPostgres}

	query := `INSERT INTO t (a, b, c) VALUES (?, ?, ?)`
	assert.Equal(t, query, sqliteDB.rebind(query))
	assert.Equal(t, `INSERT INTO t (a, b, c) VALUES ($1, $2, $3)`, pgDB.rebind(query))
	assert.Equal(t, `SELECT 1`, pgDB.rebind(`SELECT 1`))
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New("mysql", "dsn")
	assert.Error(t, err)
}

func TestAddSecondsAccumulates(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()

	require.NoError(t, repo.AddSeconds("g1", "u1", 40, now))
	require.NoError(t, repo.AddSeconds("g1", "u1", 2, now.Add(time.Minute)))

	for _, bucket := range models.Buckets {
		pos, err := repo.UserPosition("g1", "u1", bucket)
		require.NoError(t, err)
		require.NotNil(t, pos)
		assert.Equal(t, int64(42), pos.Seconds, "bucket %s", bucket)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	startedAt := time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)

	require.NoError(t, repo.InsertSessionIfAbsent("g1", "u1", "chanA", startedAt))

	session, err := repo.GetSession("g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "chanA", session.ChannelID)
	assert.True(t, session.StartedAt.Equal(startedAt))

	require.NoError(t, repo.UpdateSessionStart("g1", "u1", startedAt.Add(time.Hour)))
	session, err = repo.GetSession("g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, session.StartedAt.Equal(startedAt.Add(time.Hour)))

	require.NoError(t, repo.DeleteSession("g1", "u1"))
	session, err = repo.GetSession("g1", "u1")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestListSessionsScope(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()

	require.NoError(t, repo.InsertSessionIfAbsent("g1", "u1", "a", now))
	require.NoError(t, repo.InsertSessionIfAbsent("g1", "u2", "a", now))
	require.NoError(t, repo.InsertSessionIfAbsent("g2", "u3", "b", now))

	all, err := repo.ListSessions("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	scoped, err := repo.ListSessions("g1")
	require.NoError(t, err)
	assert.Len(t, scoped, 2)
}

func TestMetadataRoundTrip(t *testing.T) {
	repo := newTestRepo(t)

	value, err := repo.GetMetadata("weekly_reset")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, repo.SetMetadata("weekly_reset", "2025-06-09"))
	require.NoError(t, repo.SetMetadata("weekly_reset", "2025-06-16"))

	value, err = repo.GetMetadata("weekly_reset")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-16", value)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()

	err := repo.WithTx(func(tx *Repository) error {
		if err := tx.AddSeconds("g1", "u1", 100, now); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	pos, err := repo.UserPosition("g1", "u1", models.BucketAlltime)
	require.NoError(t, err)
	assert.Nil(t, pos, "rolled-back writes must not be visible")
}

func TestResetBucketOnlyTouchesOneBucket(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()
	require.NoError(t, repo.AddSeconds("g1", "u1", 100, now))

	require.NoError(t, repo.ResetBucket(models.BucketWeekly))

	pos, err := repo.UserPosition("g1", "u1", models.BucketWeekly)
	require.NoError(t, err)
	assert.Nil(t, pos)

	pos, err = repo.UserPosition("g1", "u1", models.BucketMonthly)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(100), pos.Seconds)
}
