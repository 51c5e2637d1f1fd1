package database

import (
	"database/sql"
	"fmt"
	"time"

	"voicewatch/internal/models"
)

// timeLayout is how timestamps are stored in TEXT columns for both drivers.
const timeLayout = time.RFC3339Nano

// Queryer is the subset of database/sql shared by *sql.DB and *sql.Tx.
type Queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Repository handles voice_time, active_sessions, and metadata operations.
// A Repository is bound either to the connection or, via WithTx, to one
// transaction.
type Repository struct {
	db *DB
	q  Queryer
}

// NewRepository creates a repository bound to the database connection.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db, q: db.conn}
}

// WithTx runs fn with a repository bound to a single transaction, committing
// on success and rolling back on error.
func (r *Repository) WithTx(fn func(tx *Repository) error) error {
	tx, err := r.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&Repository{db: r.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AddSeconds adds seconds to every bucket's row for (guild, user) via an
// additive upsert. Rows are created lazily on first contribution.
func (r *Repository) AddSeconds(guildID, userID string, seconds int64, at time.Time) error {
	query := r.db.rebind(`
		INSERT INTO voice_time (guild_id, user_id, bucket, seconds, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (guild_id, user_id, bucket)
		DO UPDATE SET seconds = voice_time.seconds + excluded.seconds,
		              updated_at = excluded.updated_at`)
	ts := at.UTC().Format(timeLayout)
	for _, bucket := range models.Buckets {
		if _, err := r.q.Exec(query, guildID, userID, string(bucket), seconds, ts); err != nil {
			return fmt.Errorf("failed to add voice seconds: %w", err)
		}
	}
	return nil
}

// InsertSessionIfAbsent opens a session unless one already exists for
// (guild, user). A duplicate start is a silent no-op.
func (r *Repository) InsertSessionIfAbsent(guildID, userID, channelID string, startedAt time.Time) error {
	query := r.db.rebind(`
		INSERT INTO active_sessions (guild_id, user_id, channel_id, started_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (guild_id, user_id) DO NOTHING`)
	_, err := r.q.Exec(query, guildID, userID, channelID, startedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession returns the active session for (guild, user), or nil when none
// exists.
func (r *Repository) GetSession(guildID, userID string) (*models.ActiveSession, error) {
	query := r.db.rebind(`
		SELECT channel_id, started_at FROM active_sessions
		WHERE guild_id = ? AND user_id = ?`)
	var channelID, startedAt string
	err := r.q.QueryRow(query, guildID, userID).Scan(&channelID, &startedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	started, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse session start: %w", err)
	}
	return &models.ActiveSession{
		GuildID:   guildID,
		UserID:    userID,
		ChannelID: channelID,
		StartedAt: started,
	}, nil
}

// ListSessions returns all active sessions, optionally scoped to one guild
// (empty guildID means all guilds).
func (r *Repository) ListSessions(guildID string) ([]models.ActiveSession, error) {
	query := `SELECT guild_id, user_id, channel_id, started_at FROM active_sessions`
	var args []any
	if guildID != "" {
		query += ` WHERE guild_id = ?`
		args = append(args, guildID)
	}

	rows, err := r.q.Query(r.db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ActiveSession
	for rows.Next() {
		var s models.ActiveSession
		var startedAt string
		if err := rows.Scan(&s.GuildID, &s.UserID, &s.ChannelID, &startedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		s.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse session start: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// UpdateSessionStart advances a session's started_at to the given instant.
func (r *Repository) UpdateSessionStart(guildID, userID string, startedAt time.Time) error {
	query := r.db.rebind(`
		UPDATE active_sessions SET started_at = ?
		WHERE guild_id = ? AND user_id = ?`)
	if _, err := r.q.Exec(query, startedAt.UTC().Format(timeLayout), guildID, userID); err != nil {
		return fmt.Errorf("failed to update session start: %w", err)
	}
	return nil
}

// DeleteSession removes the active session for (guild, user).
func (r *Repository) DeleteSession(guildID, userID string) error {
	query := r.db.rebind(`DELETE FROM active_sessions WHERE guild_id = ? AND user_id = ?`)
	if _, err := r.q.Exec(query, guildID, userID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CountSessions returns the number of active sessions across all guilds.
func (r *Repository) CountSessions() (int, error) {
	var count int
	err := r.q.QueryRow(`SELECT COUNT(*) FROM active_sessions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// Leaderboard returns the top rows for (guild, bucket) ordered by seconds
// descending. Ties keep storage order.
func (r *Repository) Leaderboard(guildID string, bucket models.Bucket, limit int) ([]models.LeaderboardEntry, error) {
	query := r.db.rebind(`
		SELECT user_id, seconds FROM voice_time
		WHERE guild_id = ? AND bucket = ?
		ORDER BY seconds DESC
		LIMIT ?`)
	rows, err := r.q.Query(query, guildID, string(bucket), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Seconds); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UserPosition returns the user's seconds and 1-based rank within
// (guild, bucket). Rank counts rows with strictly greater seconds. Returns
// nil when the user has no row.
func (r *Repository) UserPosition(guildID, userID string, bucket models.Bucket) (*models.UserPosition, error) {
	query := r.db.rebind(`
		SELECT seconds,
		       (
		           SELECT COUNT(*) + 1
		           FROM voice_time vt2
		           WHERE vt2.guild_id = voice_time.guild_id
		             AND vt2.bucket = voice_time.bucket
		             AND vt2.seconds > voice_time.seconds
		       ) AS rank
		FROM voice_time
		WHERE guild_id = ? AND user_id = ? AND bucket = ?`)
	var pos models.UserPosition
	err := r.q.QueryRow(query, guildID, userID, string(bucket)).Scan(&pos.Seconds, &pos.Rank)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user position: %w", err)
	}
	return &pos, nil
}

// ClearGuild deletes every voice_time and active_sessions row for a guild.
func (r *Repository) ClearGuild(guildID string) error {
	if _, err := r.q.Exec(r.db.rebind(`DELETE FROM voice_time WHERE guild_id = ?`), guildID); err != nil {
		return fmt.Errorf("failed to clear voice time: %w", err)
	}
	if _, err := r.q.Exec(r.db.rebind(`DELETE FROM active_sessions WHERE guild_id = ?`), guildID); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	return nil
}

// ResetBucket deletes every row for one bucket across all guilds.
func (r *Repository) ResetBucket(bucket models.Bucket) error {
	if _, err := r.q.Exec(r.db.rebind(`DELETE FROM voice_time WHERE bucket = ?`), string(bucket)); err != nil {
		return fmt.Errorf("failed to reset bucket %s: %w", bucket, err)
	}
	return nil
}

// GetMetadata returns the value stored under key, or "" when absent.
func (r *Repository) GetMetadata(key string) (string, error) {
	var value string
	err := r.q.QueryRow(r.db.rebind(`SELECT value FROM metadata WHERE key = ?`), key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata %s: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores value under key, replacing any previous value.
func (r *Repository) SetMetadata(key, value string) error {
	query := r.db.rebind(`
		INSERT INTO metadata (key, value)
		VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`)
	if _, err := r.q.Exec(query, key, value); err != nil {
		return fmt.Errorf("failed to set metadata %s: %w", key, err)
	}
	return nil
}
