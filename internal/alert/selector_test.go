package alert

import (
	"context"
	"testing"
	"time"

	"github.com/quakewatch/quakewatch/internal/logger"
	"github.com/quakewatch/quakewatch/internal/models"
	"github.com/quakewatch/quakewatch/internal/store"
)

func mag(v float64) *float64 { return &v }

func TestSelector_Eligible(t *testing.T) {
	logger.Init("error", "text")

	st := store.NewInMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	events := []models.Event{
		{ID: "big-fresh", Magnitude: mag(6.0), EventTime: now.Add(-15 * time.Minute)},
		{ID: "small-fresh", Magnitude: mag(2.1), EventTime: now.Add(-15 * time.Minute)},
		{ID: "big-stale", Magnitude: mag(6.0), EventTime: now.Add(-26 * time.Hour)},
		{ID: "no-magnitude", EventTime: now.Add(-15 * time.Minute)},
	}
	if err := st.InsertEvents(ctx, events); err != nil {
		t.Fatalf("Failed to setup test data: %v", err)
	}

	selector := NewSelector(st)
	eligible, err := selector.Eligible(ctx, 4.5, 2*time.Hour)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(eligible) != 1 {
		t.Fatalf("Expected 1 eligible event, got %d", len(eligible))
	}
	if eligible[0].ID != "big-fresh" {
		t.Errorf("Expected big-fresh, got %s", eligible[0].ID)
	}
}

func TestSelector_Eligible_PostedEventExcluded(t *testing.T) {
	logger.Init("error", "text")

	st := store.NewInMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := st.InsertEvents(ctx, []models.Event{
		{ID: "ev-1", Magnitude: mag(6.0), EventTime: now.Add(-10 * time.Minute)},
	}); err != nil {
		t.Fatalf("Failed to setup test data: %v", err)
	}

	selector := NewSelector(st)

	first, err := selector.Eligible(ctx, 4.5, 2*time.Hour)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("Expected 1 eligible event before posting, got %d", len(first))
	}

	// Recording the event post removes it from future selections.
	id := "ev-1"
	err = st.InsertPosts(ctx, []models.Post{{
		ID:         "post-1",
		Text:       "alert",
		EventID:    &id,
		Kind:       models.PostKindEvent,
		UploadedAt: now,
	}})
	if err != nil {
		t.Fatalf("Failed to insert post: %v", err)
	}

	second, err := selector.Eligible(ctx, 4.5, 2*time.Hour)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(second) != 0 {
		t.Errorf("Expected 0 eligible events after posting, got %d", len(second))
	}
}
