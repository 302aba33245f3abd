package store

import (
	"context"
	"fmt"
)

// schema mirrors the persisted model: events are insert-once, location
// details are keyed one-to-one by event id, posts are the dispatch record.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id           TEXT PRIMARY KEY,
		magnitude    DOUBLE PRECISION,
		event_ts     TIMESTAMPTZ NOT NULL,
		ingested_ts  TIMESTAMPTZ NOT NULL,
		longitude    DOUBLE PRECISION NOT NULL,
		latitude     DOUBLE PRECISION NOT NULL,
		depth        DOUBLE PRECISION,
		place        TEXT,
		title        TEXT,
		status       TEXT,
		type         TEXT,
		tsunami      BOOLEAN NOT NULL DEFAULT FALSE,
		felt         INTEGER,
		cdi          DOUBLE PRECISION,
		mmi          DOUBLE PRECISION,
		tz           INTEGER,
		detail       TEXT,
		date         DATE NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_event_ts ON events (event_ts)`,
	`CREATE INDEX IF NOT EXISTS idx_events_magnitude ON events (magnitude)`,
	`CREATE TABLE IF NOT EXISTS location_details (
		event_id     TEXT PRIMARY KEY REFERENCES events(id),
		continent    TEXT,
		country      TEXT,
		subdivision  TEXT,
		city         TEXT,
		category     TEXT,
		display_name TEXT,
		bounding_box TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id        TEXT PRIMARY KEY,
		text      TEXT NOT NULL,
		event_id  TEXT REFERENCES events(id),
		post_kind TEXT NOT NULL,
		upload_ts TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_event_kind ON posts (event_id, post_kind)`,
}

// InitSchema creates the tables if they do not exist.
func InitSchema(ctx context.Context, db Database) error {
	if !db.IsConfigured() {
		return nil
	}
	for _, stmt := range schema {
		if err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
