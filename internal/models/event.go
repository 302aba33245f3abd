package models

import "time"

// PostKind identifies what a posts row represents.
type PostKind string

const (
	PostKindEvent         PostKind = "event"
	PostKindFact          PostKind = "fact"
	PostKindContext       PostKind = "context"
	PostKindDailySummary  PostKind = "daily_summary"
	PostKindWeeklySummary PostKind = "weekly_summary"
)

// Valid reports whether the kind is one of the known post kinds.
func (k PostKind) Valid() bool {
	switch k {
	case PostKindEvent, PostKindFact, PostKindContext, PostKindDailySummary, PostKindWeeklySummary:
		return true
	}
	return false
}

// Event represents a single seismic occurrence as reported by the feed.
// Rows are insert-once: the ingestion engine creates them on first
// observation of a feed id and nothing in the pipeline mutates them after.
type Event struct {
	ID         string     `json:"id" db:"id"`
	Magnitude  *float64   `json:"magnitude" db:"magnitude"`
	EventTime  time.Time  `json:"event_ts" db:"event_ts"`
	IngestedAt time.Time  `json:"ingested_ts" db:"ingested_ts"`
	Longitude  float64    `json:"longitude" db:"longitude"`
	Latitude   float64    `json:"latitude" db:"latitude"`
	Depth      *float64   `json:"depth" db:"depth"`
	Place      string     `json:"place" db:"place"`
	Title      string     `json:"title" db:"title"`
	Status     string     `json:"status" db:"status"`
	Type       string     `json:"type" db:"type"`
	Tsunami    bool       `json:"tsunami" db:"tsunami"`
	Felt       *int       `json:"felt" db:"felt"`
	CDI        *float64   `json:"cdi" db:"cdi"`
	MMI        *float64   `json:"mmi" db:"mmi"`
	TZ         *int       `json:"tz" db:"tz"`
	Detail     string     `json:"detail" db:"detail"`
	Date       time.Time  `json:"date" db:"date"`
}

// Mag returns the magnitude or 0 when the feed omitted it.
func (e Event) Mag() float64 {
	if e.Magnitude == nil {
		return 0
	}
	return *e.Magnitude
}

// LocationDetail is the zero-or-one reverse-geocoded enrichment record
// attached to an event. Absence of a row is what marks an event as
// pending enrichment.
type LocationDetail struct {
	EventID     string `json:"event_id" db:"event_id"`
	Continent   string `json:"continent" db:"continent"`
	Country     string `json:"country" db:"country"`
	Subdivision string `json:"subdivision" db:"subdivision"`
	City        string `json:"city" db:"city"`
	Category    string `json:"category" db:"category"`
	DisplayName string `json:"display_name" db:"display_name"`
	BoundingBox string `json:"bounding_box" db:"bounding_box"`
}

// Post is one alert actually dispatched to the outside world. The
// event-kind row per event id is the anti-duplicate record consulted by
// the alert selector.
type Post struct {
	ID         string    `json:"id" db:"id"`
	Text       string    `json:"text" db:"text"`
	EventID    *string   `json:"event_id" db:"event_id"`
	Kind       PostKind  `json:"post_kind" db:"post_kind"`
	UploadedAt time.Time `json:"upload_ts" db:"upload_ts"`
}

// EventQuery filters events by time range and magnitude floor.
type EventQuery struct {
	Since        time.Time `json:"since"`
	Until        time.Time `json:"until"`
	MinMagnitude float64   `json:"min_magnitude"`
	Type         string    `json:"type"`
	Limit        int       `json:"limit"`
}

// Matches checks if an event satisfies the query criteria.
func (q EventQuery) Matches(e Event) bool {
	if !q.Since.IsZero() && e.EventTime.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && e.EventTime.After(q.Until) {
		return false
	}
	if q.MinMagnitude > 0 && e.Mag() < q.MinMagnitude {
		return false
	}
	if q.Type != "" && e.Type != q.Type {
		return false
	}
	return true
}
