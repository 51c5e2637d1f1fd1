package models

import "time"

// Bucket is one of the four accumulation windows voice time is credited to.
type Bucket string

const (
	BucketWeekly  Bucket = "weekly"
	BucketMonthly Bucket = "monthly"
	BucketYearly  Bucket = "yearly"
	BucketAlltime Bucket = "alltime"
)

// Buckets lists every bucket in the order durations are applied.
var Buckets = []Bucket{BucketWeekly, BucketMonthly, BucketYearly, BucketAlltime}

// Valid reports whether b is one of the four known buckets.
func (b Bucket) Valid() bool {
	switch b {
	case BucketWeekly, BucketMonthly, BucketYearly, BucketAlltime:
		return true
	}
	return false
}

// VoiceTimeRow is one accumulated-seconds counter in the voice_time table.
type VoiceTimeRow struct {
	GuildID   string
	UserID    string
	Bucket    Bucket
	Seconds   int64
	UpdatedAt time.Time
}

// ActiveSession is an open, not-yet-credited interval of voice presence.
// StartedAt reflects the point time was last accounted up to, not
// necessarily when the user joined.
type ActiveSession struct {
	GuildID   string
	UserID    string
	ChannelID string
	StartedAt time.Time
}

// SessionKey identifies a session by (guild, user).
type SessionKey struct {
	GuildID string
	UserID  string
}

// PresenceSnapshot maps every live (guild, user) to the voice or stage
// channel they currently occupy. Bots are excluded before it is built.
type PresenceSnapshot map[SessionKey]string

// LeaderboardEntry is one row of a bucket leaderboard.
type LeaderboardEntry struct {
	UserID  string
	Seconds int64
}

// UserPosition is a single user's standing within a (guild, bucket).
type UserPosition struct {
	Seconds int64
	Rank    int
}
