package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/quakewatch/quakewatch/internal/models"
)

// Store defines the persistence interface for the pipeline. Engines are
// stateless between invocations; everything durable lives behind this.
type Store interface {
	// ExistingEventIDs reports which of the candidate ids already exist,
	// as a single batched lookup.
	ExistingEventIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
	// InsertEvents bulk-inserts events; a failure rolls back the batch.
	InsertEvents(ctx context.Context, events []models.Event) error
	QueryEvents(ctx context.Context, q models.EventQuery) ([]models.Event, error)

	// EventsMissingLocation selects events in the range that have no
	// location_details row. Absence of the row is the enrichment guard.
	EventsMissingLocation(ctx context.Context, since, until time.Time) ([]models.Event, error)
	InsertLocationDetail(ctx context.Context, detail models.LocationDetail) error

	// EligibleEvents returns events above the magnitude threshold, within
	// the freshness window, with no event-kind post yet.
	EligibleEvents(ctx context.Context, threshold float64, freshness time.Duration) ([]models.Event, error)
	InsertPosts(ctx context.Context, posts []models.Post) error
	RecentPosts(ctx context.Context, limit int) ([]models.Post, error)

	// RegionalActivity aggregates historical activity near an epicenter
	// for the context reply.
	RegionalActivity(ctx context.Context, q models.RegionalQuery) (models.RegionalActivity, error)

	Health(ctx context.Context) error
}

// Database interface for dependency injection
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (interface{}, error)
	QueryRow(ctx context.Context, sql string, args ...any) interface{}
	Begin(ctx context.Context) (pgx.Tx, error)
	Health(ctx context.Context) error
	IsConfigured() bool
}

// New creates a new store instance
func New(db Database) Store {
	if db.IsConfigured() {
		return NewPostgresStore(db)
	}
	// Fallback to in-memory store if no database
	return NewInMemoryStore()
}
