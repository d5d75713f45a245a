// Package persistence implements the playlist/ratings/play-stats store: a
// thin SQLite-backed side store the Session Engine writes to best-effort.
// Neither a read nor a write here may ever block audio delivery; every
// failure is logged and swallowed rather than surfaced to a caller that
// cannot act on it.
package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"
)

const schema = `
CREATE TABLE IF NOT EXISTS playlists (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	owner TEXT,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS playlist_items (
	playlist_id TEXT NOT NULL REFERENCES playlists(id),
	track_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (playlist_id, position)
);

CREATE TABLE IF NOT EXISTS ratings (
	track_id TEXT NOT NULL,
	client_id TEXT NOT NULL,
	score INTEGER NOT NULL,
	rated_at DATETIME NOT NULL,
	PRIMARY KEY (track_id, client_id)
);

CREATE TABLE IF NOT EXISTS play_stats (
	track_id TEXT PRIMARY KEY,
	play_count INTEGER NOT NULL DEFAULT 0,
	last_played_at DATETIME,
	skip_count INTEGER NOT NULL DEFAULT 0
);
`

// Store is the playlist/ratings/play-stats side store. A nil *Store is
// valid and every method on it is a no-op, so wiring it is optional:
// callers that run without a configured persistence DSN simply pass nil.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore wraps db, applying the schema if it is not already present.
func NewStore(db *sql.DB, logger zerolog.Logger) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &Store{db: db, logger: logger.With().Str("component", "persistence").Logger()}, nil
}

// RecordPlayed increments track's play count and refreshes its
// last-played timestamp. It runs in its own goroutine so the engine's
// onTrackCommitted callback never waits on disk I/O; failures are logged
// only.
func (s *Store) RecordPlayed(trackID string) {
	if s == nil {
		return
	}
	go func() {
		_, err := s.db.Exec(`
			INSERT INTO play_stats (track_id, play_count, last_played_at, skip_count)
			VALUES (?, 1, ?, 0)
			ON CONFLICT(track_id) DO UPDATE SET
				play_count = play_count + 1,
				last_played_at = excluded.last_played_at
		`, trackID, time.Now())
		if err != nil {
			s.logger.Warn().Err(err).Str("track", trackID).Msg("failed to record play stat")
		}
	}()
}

// RecordSkipped increments track's skip count without touching play_count,
// for a track forced off before its natural end.
func (s *Store) RecordSkipped(trackID string) {
	if s == nil {
		return
	}
	go func() {
		_, err := s.db.Exec(`
			INSERT INTO play_stats (track_id, play_count, skip_count)
			VALUES (?, 0, 1)
			ON CONFLICT(track_id) DO UPDATE SET skip_count = skip_count + 1
		`, trackID)
		if err != nil {
			s.logger.Warn().Err(err).Str("track", trackID).Msg("failed to record skip stat")
		}
	}()
}

// RecordRating upserts a client's rating for a track. This backs the
// thin, out-of-core rate endpoint; unlike RecordPlayed it runs
// synchronously since a rating call is explicit user action, not an
// audio-path side effect.
func (s *Store) RecordRating(trackID, clientID string, score int) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(`
		INSERT INTO ratings (track_id, client_id, score, rated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(track_id, client_id) DO UPDATE SET score = excluded.score, rated_at = excluded.rated_at
	`, trackID, clientID, score, time.Now())
	return err
}

// Ping reports whether the underlying database connection is reachable,
// for a health.PersistenceChecker wired in by the caller.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}
