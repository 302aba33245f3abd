package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quakewatch/quakewatch/internal/models"
)

// InMemoryStore implements Store using in-memory storage. It backs tests
// and DATABASE_URL-less runs.
type InMemoryStore struct {
	mu        sync.RWMutex
	events    map[string]models.Event
	locations map[string]models.LocationDetail
	posts     []models.Post
}

// NewInMemoryStore creates a new in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events:    make(map[string]models.Event),
		locations: make(map[string]models.LocationDetail),
	}
}

// ExistingEventIDs reports which of the candidate ids are stored.
func (s *InMemoryStore) ExistingEventIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	existing := make(map[string]struct{})
	for _, id := range ids {
		if _, ok := s.events[id]; ok {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

// InsertEvents stores events; existing ids are left untouched (insert-once).
func (s *InMemoryStore) InsertEvents(ctx context.Context, events []models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if _, ok := s.events[e.ID]; ok {
			continue
		}
		s.events[e.ID] = e
	}
	return nil
}

// QueryEvents retrieves events matching the query, newest first.
func (s *InMemoryStore) QueryEvents(ctx context.Context, q models.EventQuery) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Event
	for _, e := range s.events {
		if q.Matches(e) {
			result = append(result, e)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].EventTime.After(result[j].EventTime)
	})

	if q.Limit > 0 && q.Limit < len(result) {
		result = result[:q.Limit]
	}

	return result, nil
}

// EventsMissingLocation returns events in the range without a location record.
func (s *InMemoryStore) EventsMissingLocation(ctx context.Context, since, until time.Time) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Event
	for _, e := range s.events {
		if e.EventTime.Before(since) || e.EventTime.After(until) {
			continue
		}
		if _, ok := s.locations[e.ID]; ok {
			continue
		}
		result = append(result, e)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].EventTime.Before(result[j].EventTime)
	})

	return result, nil
}

// InsertLocationDetail stores one enrichment record; a second insert for
// the same event id is a no-op, matching ON CONFLICT DO NOTHING.
func (s *InMemoryStore) InsertLocationDetail(ctx context.Context, d models.LocationDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.locations[d.EventID]; ok {
		return nil
	}
	s.locations[d.EventID] = d
	return nil
}

// EligibleEvents returns fresh events above the threshold that have no
// event-kind post yet.
func (s *InMemoryStore) EligibleEvents(ctx context.Context, threshold float64, freshness time.Duration) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-freshness)
	posted := make(map[string]struct{})
	for _, p := range s.posts {
		if p.Kind == models.PostKindEvent && p.EventID != nil {
			posted[*p.EventID] = struct{}{}
		}
	}

	var result []models.Event
	for _, e := range s.events {
		if e.Magnitude == nil || *e.Magnitude <= threshold {
			continue
		}
		if !e.EventTime.After(cutoff) {
			continue
		}
		if _, ok := posted[e.ID]; ok {
			continue
		}
		result = append(result, e)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].EventTime.After(result[j].EventTime)
	})

	return result, nil
}

// InsertPosts appends post records.
func (s *InMemoryStore) InsertPosts(ctx context.Context, posts []models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.posts = append(s.posts, posts...)
	return nil
}

// RecentPosts returns the newest posts first.
func (s *InMemoryStore) RecentPosts(ctx context.Context, limit int) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Post, len(s.posts))
	copy(result, s.posts)

	sort.Slice(result, func(i, j int) bool {
		return result[i].UploadedAt.After(result[j].UploadedAt)
	})

	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}

	return result, nil
}

// RegionalActivity aggregates comparable events inside the coordinate box.
func (s *InMemoryStore) RegionalActivity(ctx context.Context, q models.RegionalQuery) (models.RegionalActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var activity models.RegionalActivity
	for _, e := range s.events {
		if e.ID == q.ExcludeID {
			continue
		}
		if e.Magnitude == nil || *e.Magnitude < q.MinMagnitude {
			continue
		}
		if e.EventTime.Before(q.Since) {
			continue
		}
		if e.Latitude < q.Latitude-q.RadiusDegrees || e.Latitude > q.Latitude+q.RadiusDegrees {
			continue
		}
		if e.Longitude < q.Longitude-q.RadiusDegrees || e.Longitude > q.Longitude+q.RadiusDegrees {
			continue
		}

		activity.Count++
		if activity.LastEventTime == nil || e.EventTime.After(*activity.LastEventTime) {
			t := e.EventTime
			activity.LastEventTime = &t
			activity.LastEventMag = e.Magnitude
		}
	}

	return activity, nil
}

// Health always returns nil for in-memory store
func (s *InMemoryStore) Health(ctx context.Context) error {
	return nil
}
