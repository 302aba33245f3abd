package models

import "time"

// RegionalQuery describes the neighborhood search backing a context reply:
// comparable-magnitude events within a coordinate box around an epicenter,
// over a historical lookback window.
type RegionalQuery struct {
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	RadiusDegrees float64   `json:"radius_degrees"`
	MinMagnitude  float64   `json:"min_magnitude"`
	Since         time.Time `json:"since"`
	ExcludeID     string    `json:"exclude_id"`
}

// RegionalActivity summarizes the historical activity near an epicenter.
type RegionalActivity struct {
	Count         int        `json:"count"`
	LastEventTime *time.Time `json:"last_event_time"`
	LastEventMag  *float64   `json:"last_event_mag"`
}

// PeriodSummary aggregates a date range for the summary posts.
type PeriodSummary struct {
	Total         int `json:"total"`
	AboveFive     int `json:"above_five"`
}
