package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/quakewatch/quakewatch/internal/models"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db Database
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(db Database) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventColumns = `id, magnitude, event_ts, ingested_ts, longitude, latitude, depth,
	place, title, status, type, tsunami, felt, cdi, mmi, tz, detail, date`

// ExistingEventIDs returns the subset of ids that already have an events row.
func (s *PostgresStore) ExistingEventIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(ids) == 0 {
		return existing, nil
	}

	rowsInterface, err := s.db.Query(ctx, `SELECT id FROM events WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query existing ids: %w", err)
	}

	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		return nil, fmt.Errorf("invalid rows type")
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		existing[id] = struct{}{}
	}

	return existing, rows.Err()
}

// InsertEvents inserts events in a single transaction; any failure rolls
// back the whole batch.
func (s *PostgresStore) InsertEvents(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert events: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO NOTHING
	`

	for _, e := range events {
		_, err := tx.Exec(ctx, query,
			e.ID, e.Magnitude, e.EventTime, e.IngestedAt, e.Longitude, e.Latitude, e.Depth,
			e.Place, e.Title, e.Status, e.Type, e.Tsunami, e.Felt, e.CDI, e.MMI, e.TZ,
			e.Detail, e.Date,
		)
		if err != nil {
			return fmt.Errorf("insert event %s: %w", e.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// QueryEvents retrieves events based on query parameters
func (s *PostgresStore) QueryEvents(ctx context.Context, q models.EventQuery) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE 1=1`

	var args []interface{}
	argIndex := 1

	if !q.Since.IsZero() {
		query += fmt.Sprintf(" AND event_ts >= $%d", argIndex)
		args = append(args, q.Since)
		argIndex++
	}
	if !q.Until.IsZero() {
		query += fmt.Sprintf(" AND event_ts <= $%d", argIndex)
		args = append(args, q.Until)
		argIndex++
	}
	if q.MinMagnitude > 0 {
		query += fmt.Sprintf(" AND magnitude >= $%d", argIndex)
		args = append(args, q.MinMagnitude)
		argIndex++
	}
	if q.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argIndex)
		args = append(args, q.Type)
		argIndex++
	}

	query += " ORDER BY event_ts DESC"

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, q.Limit)
	}

	return s.queryEvents(ctx, query, args...)
}

// EventsMissingLocation selects events in the range with no location_details
// join; the left-join-on-absence is the duplicate-enrichment guard.
func (s *PostgresStore) EventsMissingLocation(ctx context.Context, since, until time.Time) ([]models.Event, error) {
	query := `
		SELECT ` + prefixColumns("e", eventColumns) + `
		FROM events e
		LEFT JOIN location_details ld ON ld.event_id = e.id
		WHERE ld.event_id IS NULL
		  AND e.event_ts >= $1
		  AND e.event_ts <= $2
		ORDER BY e.event_ts
	`
	return s.queryEvents(ctx, query, since, until)
}

// InsertLocationDetail inserts one enrichment row. ON CONFLICT DO NOTHING
// keeps the at-most-one invariant even if two passes race.
func (s *PostgresStore) InsertLocationDetail(ctx context.Context, d models.LocationDetail) error {
	query := `
		INSERT INTO location_details (
			event_id, continent, country, subdivision, city, category, display_name, bounding_box
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING
	`
	err := s.db.Exec(ctx, query,
		d.EventID, d.Continent, d.Country, d.Subdivision, d.City,
		d.Category, d.DisplayName, d.BoundingBox,
	)
	if err != nil {
		return fmt.Errorf("insert location detail %s: %w", d.EventID, err)
	}
	return nil
}

// EligibleEvents returns fresh, above-threshold events with no event-kind
// post; the join-on-absence against posts is the sole anti-duplicate state.
func (s *PostgresStore) EligibleEvents(ctx context.Context, threshold float64, freshness time.Duration) ([]models.Event, error) {
	query := `
		SELECT ` + prefixColumns("e", eventColumns) + `
		FROM events e
		LEFT JOIN posts p ON p.event_id = e.id AND p.post_kind = 'event'
		WHERE p.id IS NULL
		  AND e.magnitude > $1
		  AND e.event_ts > $2
		ORDER BY e.event_ts DESC
	`
	cutoff := time.Now().UTC().Add(-freshness)
	return s.queryEvents(ctx, query, threshold, cutoff)
}

// InsertPosts inserts post records in one transaction.
func (s *PostgresStore) InsertPosts(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert posts: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO posts (id, text, event_id, post_kind, upload_ts)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, p := range posts {
		if _, err := tx.Exec(ctx, query, p.ID, p.Text, p.EventID, p.Kind, p.UploadedAt); err != nil {
			return fmt.Errorf("insert post %s: %w", p.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// RecentPosts returns the newest posts first.
func (s *PostgresStore) RecentPosts(ctx context.Context, limit int) ([]models.Post, error) {
	if limit <= 0 {
		limit = 50
	}
	rowsInterface, err := s.db.Query(ctx, `
		SELECT id, text, event_id, post_kind, upload_ts
		FROM posts
		ORDER BY upload_ts DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}

	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		return nil, fmt.Errorf("invalid rows type")
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.Text, &p.EventID, &p.Kind, &p.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}

	return posts, rows.Err()
}

// RegionalActivity aggregates comparable historical events inside a
// coordinate box around the epicenter.
func (s *PostgresStore) RegionalActivity(ctx context.Context, q models.RegionalQuery) (models.RegionalActivity, error) {
	var activity models.RegionalActivity

	const boxFilter = `
		WHERE magnitude >= $1
		  AND event_ts >= $2
		  AND latitude BETWEEN $3 AND $4
		  AND longitude BETWEEN $5 AND $6
		  AND id <> $7
	`
	args := []any{
		q.MinMagnitude, q.Since,
		q.Latitude - q.RadiusDegrees, q.Latitude + q.RadiusDegrees,
		q.Longitude - q.RadiusDegrees, q.Longitude + q.RadiusDegrees,
		q.ExcludeID,
	}

	rowInterface := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM events`+boxFilter, args...)
	row, ok := rowInterface.(pgx.Row)
	if !ok {
		return activity, fmt.Errorf("invalid row type")
	}
	if err := row.Scan(&activity.Count); err != nil {
		return activity, fmt.Errorf("scan regional activity: %w", err)
	}
	if activity.Count == 0 {
		return activity, nil
	}

	rowInterface = s.db.QueryRow(ctx,
		`SELECT event_ts, magnitude FROM events`+boxFilter+` ORDER BY event_ts DESC LIMIT 1`, args...)
	row, ok = rowInterface.(pgx.Row)
	if !ok {
		return activity, fmt.Errorf("invalid row type")
	}
	if err := row.Scan(&activity.LastEventTime, &activity.LastEventMag); err != nil {
		return activity, fmt.Errorf("scan latest regional event: %w", err)
	}

	return activity, nil
}

// Health checks the database connection
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}

func (s *PostgresStore) queryEvents(ctx context.Context, query string, args ...any) ([]models.Event, error) {
	rowsInterface, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		return nil, fmt.Errorf("invalid rows type")
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		err := rows.Scan(
			&e.ID, &e.Magnitude, &e.EventTime, &e.IngestedAt, &e.Longitude, &e.Latitude, &e.Depth,
			&e.Place, &e.Title, &e.Status, &e.Type, &e.Tsunami, &e.Felt, &e.CDI, &e.MMI, &e.TZ,
			&e.Detail, &e.Date,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
