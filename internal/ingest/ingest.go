package ingest

import (
	"context"
	"fmt"
	"time"

	qerrors "github.com/quakewatch/quakewatch/internal/errors"
	"github.com/quakewatch/quakewatch/internal/feed"
	"github.com/quakewatch/quakewatch/internal/logger"
	"github.com/quakewatch/quakewatch/internal/metrics"
	"github.com/quakewatch/quakewatch/internal/models"
	"github.com/quakewatch/quakewatch/internal/store"
)

// Fetcher is the slice of the feed client the engine needs.
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]feed.Feature, error)
}

// Engine deduplicates and transforms raw feed features into Event rows.
type Engine struct {
	fetcher Fetcher
	store   store.Store
}

// New creates an ingestion engine.
func New(fetcher Fetcher, st store.Store) *Engine {
	return &Engine{fetcher: fetcher, store: st}
}

// Summary reports what one upload run did. PerDay counts inserted events
// by event date, since a single feed window commonly spans multiple days.
type Summary struct {
	Fetched  int
	Existing int
	Inserted int
	Skipped  int
	PerDay   map[string]int
}

// Upload fetches one feed URL, inserts the not-yet-seen events, and
// returns a run summary. Calling it twice with the same payload inserts
// each external id at most once: dedup is a single batched existence
// check against the store.
func (e *Engine) Upload(ctx context.Context, feedURL string) (Summary, error) {
	start := time.Now()
	summary := Summary{PerDay: make(map[string]int)}

	features, err := e.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		metrics.RecordIngest("feed", "fetch_error", 0)
		return summary, fmt.Errorf("fetch feed: %w", err)
	}
	summary.Fetched = len(features)

	ids := make([]string, 0, len(features))
	for _, f := range features {
		ids = append(ids, f.ID)
	}

	// An empty store is a valid state: no existing ids means every
	// candidate is new.
	existing, err := e.store.ExistingEventIDs(ctx, ids)
	if err != nil {
		metrics.RecordIngest("feed", "store_error", 0)
		return summary, qerrors.StoreError{Operation: "existing ids", Err: err}
	}
	summary.Existing = len(existing)

	now := time.Now().UTC()
	events := make([]models.Event, 0, len(features)-len(existing))
	for _, f := range features {
		if _, ok := existing[f.ID]; ok {
			continue
		}
		event, err := transform(f, now)
		if err != nil {
			// One malformed record must not drop the rest of the batch.
			logger.Warn("Skipping malformed feed record", "id", f.ID, "error", err)
			summary.Skipped++
			continue
		}
		events = append(events, event)
	}

	if len(events) == 0 {
		logger.Info("No new records found", "fetched", summary.Fetched, "existing", summary.Existing)
		metrics.RecordIngest("feed", "success", 0)
		return summary, nil
	}

	if err := e.store.InsertEvents(ctx, events); err != nil {
		metrics.RecordIngest("feed", "insert_error", 0)
		return summary, qerrors.StoreError{Operation: "insert events", Err: err}
	}

	summary.Inserted = len(events)
	for _, ev := range events {
		summary.PerDay[ev.Date.Format("2006-01-02")]++
	}

	metrics.RecordIngest("feed", "success", summary.Inserted)
	metrics.RecordPipelineRun("ingest", time.Since(start))
	logger.Info("Ingestion run completed",
		"fetched", summary.Fetched,
		"existing", summary.Existing,
		"inserted", summary.Inserted,
		"skipped", summary.Skipped,
		"per_day", summary.PerDay,
	)

	return summary, nil
}

// transform maps one raw feature into an Event: epoch-milliseconds to
// UTC, coordinate unpacking, absent optionals left nil.
func transform(f feed.Feature, ingestedAt time.Time) (models.Event, error) {
	if f.ID == "" {
		return models.Event{}, fmt.Errorf("feature has no id")
	}
	if len(f.Geometry.Coordinates) < 2 {
		return models.Event{}, fmt.Errorf("feature %s has no coordinates", f.ID)
	}

	eventTime := time.UnixMilli(f.Properties.Time).UTC()

	event := models.Event{
		ID:         f.ID,
		Magnitude:  f.Properties.Mag,
		EventTime:  eventTime,
		IngestedAt: ingestedAt,
		Longitude:  f.Geometry.Coordinates[0],
		Latitude:   f.Geometry.Coordinates[1],
		Place:      f.Properties.Place,
		Title:      f.Properties.Title,
		Status:     f.Properties.Status,
		Type:       f.Properties.Type,
		Tsunami:    f.Properties.Tsunami != 0,
		Felt:       f.Properties.Felt,
		CDI:        f.Properties.CDI,
		MMI:        f.Properties.MMI,
		TZ:         f.Properties.TZ,
		Detail:     f.Properties.Detail,
		Date:       eventTime.Truncate(24 * time.Hour),
	}

	if len(f.Geometry.Coordinates) >= 3 {
		depth := f.Geometry.Coordinates[2]
		event.Depth = &depth
	}

	return event, nil
}
