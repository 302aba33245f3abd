package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/quakewatch/quakewatch/config"
	"github.com/quakewatch/quakewatch/internal/geocode"
	"github.com/quakewatch/quakewatch/internal/logger"
	"github.com/quakewatch/quakewatch/internal/metrics"
	"github.com/quakewatch/quakewatch/internal/models"
	"github.com/quakewatch/quakewatch/internal/store"
	"golang.org/x/sync/semaphore"
)

// Engine attaches reverse-geocoded location detail to events that are
// missing it. A failed lookup is a skip, not an error: the event stays
// un-enriched and is re-selected on the next pass, so the retry
// mechanism is the recurrence of the job itself.
type Engine struct {
	store    store.Store
	geocoder geocode.Client
	cfg      config.EnrichConfig
	sem      *semaphore.Weighted
}

// New creates an enrichment engine.
func New(st store.Store, geocoder geocode.Client, cfg config.EnrichConfig) *Engine {
	workers := cfg.WorkerCount
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		store:    st,
		geocoder: geocoder,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(workers)),
	}
}

// Result tallies one enrichment pass.
type Result struct {
	Candidates int
	Enriched   int
	Skipped    int
}

// Enrich processes every event in [since, until] that has no location
// detail yet. Large batches fan out through a bounded worker pool; small
// live-mode batches run sequentially to avoid bursting the geocoding
// quota. Both modes converge to the same persisted state.
func (e *Engine) Enrich(ctx context.Context, since, until time.Time) (Result, error) {
	start := time.Now()

	events, err := e.store.EventsMissingLocation(ctx, since, until)
	if err != nil {
		return Result{}, err
	}

	result := Result{Candidates: len(events)}
	if len(events) == 0 {
		logger.Debug("No events pending enrichment",
			"since", since.Format("2006-01-02"),
			"until", until.Format("2006-01-02"),
		)
		return result, nil
	}

	if len(events) <= e.cfg.SequentialThreshold {
		for _, ev := range events {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			if e.enrichOne(ctx, ev) {
				result.Enriched++
			} else {
				result.Skipped++
			}
		}
	} else {
		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for _, ev := range events {
			if err := e.sem.Acquire(ctx, 1); err != nil {
				break
			}
			wg.Add(1)
			ev := ev
			go func() {
				defer wg.Done()
				defer e.sem.Release(1)

				ok := e.enrichOne(ctx, ev)

				mu.Lock()
				if ok {
					result.Enriched++
				} else {
					result.Skipped++
				}
				mu.Unlock()
			}()
		}
		wg.Wait()
	}

	metrics.RecordPipelineRun("enrich", time.Since(start))
	logger.Info("Enrichment run completed",
		"candidates", result.Candidates,
		"enriched", result.Enriched,
		"skipped", result.Skipped,
	)
	return result, nil
}

// enrichOne looks up and persists one event's location. Returns false on
// any failure; no placeholder row is written.
func (e *Engine) enrichOne(ctx context.Context, ev models.Event) bool {
	placement, err := e.geocoder.ReverseGeocode(ctx, ev.Latitude, ev.Longitude)
	if err != nil || placement == nil {
		metrics.RecordEnrichment("skipped")
		logger.Debug("Reverse geocode failed, leaving event un-enriched",
			"event_id", ev.ID,
			"error", err,
		)
		return false
	}

	detail := models.LocationDetail{
		EventID:     ev.ID,
		Continent:   placement.Continent,
		Country:     placement.Country,
		Subdivision: placement.Subdivision,
		City:        placement.City,
		Category:    placement.Category,
		DisplayName: placement.DisplayName,
		BoundingBox: placement.BoundingBox,
	}

	if err := e.store.InsertLocationDetail(ctx, detail); err != nil {
		metrics.RecordEnrichment("store_error")
		logger.Warn("Failed to persist location detail", "event_id", ev.ID, "error", err)
		return false
	}

	metrics.RecordEnrichment("success")
	return true
}
