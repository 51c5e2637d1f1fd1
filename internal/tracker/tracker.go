// Package tracker implements the voice-session accounting engine: session
// lifecycle, periodic flushing, startup reconciliation, leaderboard reads,
// and calendar-boundary bucket resets.
package tracker

import (
	"log/slog"
	"sync"
	"time"

	"voicewatch/internal/database"
	"voicewatch/internal/models"
)

// Metadata keys remembering the last calendar label each reset ran for.
const (
	weeklyResetKey  = "weekly_reset"
	monthlyResetKey = "monthly_reset"
	yearlyResetKey  = "yearly_reset"
)

// Tracker owns all writes to the voice-time store. Every operation holds one
// mutex for its full read/write sequence, so two operations can never
// interleave and double-credit the same elapsed interval.
type Tracker struct {
	repo             *database.Repository
	logger           *slog.Logger
	timezone         *time.Location
	leaderboardLimit int

	mu  sync.Mutex
	now func() time.Time
}

// New creates a tracker over the given repository. The timezone drives the
// weekly/monthly/yearly reset boundaries.
func New(repo *database.Repository, logger *slog.Logger, timezone *time.Location, leaderboardLimit int) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if timezone == nil {
		timezone = time.UTC
	}
	return &Tracker{
		repo:             repo,
		logger:           logger,
		timezone:         timezone,
		leaderboardLimit: leaderboardLimit,
		now:              time.Now,
	}
}

// StartSession opens a session for (guild, user) in channelID. Starting a
// session that already exists is a silent no-op and keeps the original
// started_at.
func (t *Tracker) StartSession(guildID, userID, channelID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.repo.InsertSessionIfAbsent(guildID, userID, channelID, t.now().UTC())
}

// EndSession closes the session for (guild, user), crediting any positive
// elapsed time to all four buckets and deleting the session row in one
// transaction. A missing session is a no-op.
func (t *Tracker) EndSession(guildID, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now().UTC()
	return t.repo.WithTx(func(tx *database.Repository) error {
		session, err := tx.GetSession(guildID, userID)
		if err != nil {
			return err
		}
		if session == nil {
			return nil
		}
		return finalizeSession(tx, session, now)
	})
}

// finalizeSession credits elapsed time (when positive) and removes the
// session. Clock skew making elapsed non-positive credits nothing.
func finalizeSession(tx *database.Repository, session *models.ActiveSession, endedAt time.Time) error {
	elapsed := int64(endedAt.Sub(session.StartedAt).Seconds())
	if elapsed > 0 {
		if err := tx.AddSeconds(session.GuildID, session.UserID, elapsed, endedAt); err != nil {
			return err
		}
	}
	return tx.DeleteSession(session.GuildID, session.UserID)
}

// SyncActiveSessions flushes in-progress time into the accumulated totals
// without closing any session: each session with positive elapsed time has
// that amount credited and its started_at advanced to now. An empty guildID
// flushes every guild.
func (t *Tracker) SyncActiveSessions(guildID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now().UTC()
	return t.repo.WithTx(func(tx *database.Repository) error {
		sessions, err := tx.ListSessions(guildID)
		if err != nil {
			return err
		}
		for _, session := range sessions {
			elapsed := int64(now.Sub(session.StartedAt).Seconds())
			if elapsed <= 0 {
				continue
			}
			if err := tx.AddSeconds(session.GuildID, session.UserID, elapsed, now); err != nil {
				return err
			}
			if err := tx.UpdateSessionStart(session.GuildID, session.UserID, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReconcileActiveSessions corrects persisted session state against live
// presence at startup. Every persisted session whose live channel differs
// (or is gone) is finalized at now, and a fresh session is started wherever
// the user is actually live. Live users with no persisted session get one.
// Each transition is at most one close plus one start, so elapsed time is
// neither lost nor double-counted.
func (t *Tracker) ReconcileActiveSessions(live models.PresenceSnapshot) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now().UTC()

	sessions, err := t.repo.ListSessions("")
	if err != nil {
		return err
	}

	recorded := make(map[models.SessionKey]models.ActiveSession, len(sessions))
	for _, session := range sessions {
		recorded[models.SessionKey{GuildID: session.GuildID, UserID: session.UserID}] = session
	}

	var finalize []models.ActiveSession
	var start []models.ActiveSession
	for key, session := range recorded {
		liveChannel, ok := live[key]
		if ok && liveChannel == session.ChannelID {
			continue
		}
		finalize = append(finalize, session)
		if ok {
			start = append(start, models.ActiveSession{
				GuildID:   key.GuildID,
				UserID:    key.UserID,
				ChannelID: liveChannel,
			})
		}
	}
	for key, liveChannel := range live {
		if _, ok := recorded[key]; !ok {
			start = append(start, models.ActiveSession{
				GuildID:   key.GuildID,
				UserID:    key.UserID,
				ChannelID: liveChannel,
			})
		}
	}

	if len(finalize) == 0 && len(start) == 0 {
		return nil
	}

	err = t.repo.WithTx(func(tx *database.Repository) error {
		for _, session := range finalize {
			if err := finalizeSession(tx, &session, now); err != nil {
				return err
			}
		}
		for _, session := range start {
			if err := tx.InsertSessionIfAbsent(session.GuildID, session.UserID, session.ChannelID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	t.logger.Info("reconciled active sessions",
		"closed", len(finalize), "started", len(start), "live", len(live))
	return nil
}

// FetchLeaderboard returns the top rows for (guild, bucket) ordered by
// seconds descending, limited to the configured leaderboard size.
func (t *Tracker) FetchLeaderboard(guildID string, bucket models.Bucket) ([]models.LeaderboardEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.repo.Leaderboard(guildID, bucket, t.leaderboardLimit)
}

// FetchUserPosition returns the user's seconds and rank within
// (guild, bucket), or nil when the user has no row.
func (t *Tracker) FetchUserPosition(guildID, userID string, bucket models.Bucket) (*models.UserPosition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.repo.UserPosition(guildID, userID, bucket)
}

// ClearGuildStats irreversibly deletes every accumulated total and active
// session for a guild.
func (t *Tracker) ClearGuildStats(guildID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.repo.WithTx(func(tx *database.Repository) error {
		return tx.ClearGuild(guildID)
	})
}

// HandlePeriodicResets flushes all sessions so in-progress time is credited
// to the closing period, then runs each calendar reset check. The checks are
// idempotent per calendar period: each is gated by a persisted label, so the
// method is safe to invoke every minute indefinitely.
func (t *Tracker) HandlePeriodicResets() error {
	if err := t.SyncActiveSessions(""); err != nil {
		return err
	}
	nowLocal := t.now().In(t.timezone)
	if err := t.handleWeeklyReset(nowLocal); err != nil {
		return err
	}
	if err := t.handleMonthlyReset(nowLocal); err != nil {
		return err
	}
	return t.handleYearlyReset(nowLocal)
}

func (t *Tracker) handleWeeklyReset(nowLocal time.Time) error {
	if nowLocal.Weekday() != time.Monday {
		return nil
	}
	return t.resetBucket(models.BucketWeekly, weeklyResetKey, nowLocal.Format("2006-01-02"))
}

func (t *Tracker) handleMonthlyReset(nowLocal time.Time) error {
	if nowLocal.Day() != 1 {
		return nil
	}
	return t.resetBucket(models.BucketMonthly, monthlyResetKey, nowLocal.Format("2006-01"))
}

func (t *Tracker) handleYearlyReset(nowLocal time.Time) error {
	if nowLocal.Month() != time.January || nowLocal.Day() != 1 {
		return nil
	}
	return t.resetBucket(models.BucketYearly, yearlyResetKey, nowLocal.Format("2006"))
}

// resetBucket deletes a bucket across all guilds and records the period
// label, in one transaction, unless the label shows this period already ran.
func (t *Tracker) resetBucket(bucket models.Bucket, key, label string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	lastReset, err := t.repo.GetMetadata(key)
	if err != nil {
		return err
	}
	if lastReset == label {
		return nil
	}

	err = t.repo.WithTx(func(tx *database.Repository) error {
		if err := tx.ResetBucket(bucket); err != nil {
			return err
		}
		return tx.SetMetadata(key, label)
	})
	if err != nil {
		return err
	}

	t.logger.Info("bucket reset", "bucket", bucket, "label", label)
	return nil
}
