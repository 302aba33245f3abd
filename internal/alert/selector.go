package alert

import (
	"context"
	"time"

	"github.com/quakewatch/quakewatch/internal/logger"
	"github.com/quakewatch/quakewatch/internal/models"
	"github.com/quakewatch/quakewatch/internal/store"
)

// Selector finds events worth alerting on. The predicate is recomputed
// fresh on every call; there is no queue state. The left join on
// event-kind posts is the only anti-duplicate mechanism.
type Selector struct {
	store store.Store
}

// NewSelector creates an alert selector.
func NewSelector(st store.Store) *Selector {
	return &Selector{store: st}
}

// Eligible returns events with magnitude above threshold, newer than the
// freshness window, and no event-kind post yet. Ordering is not
// significant; callers process every match.
func (s *Selector) Eligible(ctx context.Context, threshold float64, freshness time.Duration) ([]models.Event, error) {
	events, err := s.store.EligibleEvents(ctx, threshold, freshness)
	if err != nil {
		return nil, err
	}

	logger.Debug("Alert selection completed",
		"threshold", threshold,
		"freshness", freshness.String(),
		"eligible", len(events),
	)
	return events, nil
}
