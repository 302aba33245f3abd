package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/quakewatch/quakewatch/config"
	qerrors "github.com/quakewatch/quakewatch/internal/errors"
)

// Known feed periods for the summary endpoint.
var validPeriods = map[string]struct{}{
	"hour":  {},
	"day":   {},
	"week":  {},
	"month": {},
}

// Client fetches and parses the USGS earthquake feed. It holds no
// business logic; it only turns a URL into raw feature records.
type Client struct {
	cfg  config.FeedConfig
	http *retryablehttp.Client
}

// NewClient creates a feed client with retrying HTTP transport.
func NewClient(cfg config.FeedConfig) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil

	return &Client{cfg: cfg, http: rc}
}

// PeriodURL returns the summary feed URL for a named period
// (hour, day, week, month).
func (c *Client) PeriodURL(period string) (string, error) {
	if _, ok := validPeriods[period]; !ok {
		return "", qerrors.ValidationError{Field: "period", Message: fmt.Sprintf("unknown period %q", period)}
	}
	return fmt.Sprintf(c.cfg.PeriodURLTemplate, period), nil
}

// RangeURL returns the query URL for an explicit [start, end) window.
func (c *Client) RangeURL(start, end time.Time) string {
	v := url.Values{}
	v.Set("starttime", start.UTC().Format("2006-01-02 15:04:05"))
	v.Set("endtime", end.UTC().Format("2006-01-02 15:04:05"))
	return c.cfg.RangeURL + "?" + v.Encode()
}

// EventPageURL returns the human-facing detail page for an event id.
func (c *Client) EventPageURL(id string) string {
	return fmt.Sprintf(c.cfg.EventPageURL, id)
}

// DetailQueryURL returns the machine-readable detail endpoint for an
// event id (shakemap products live here).
func (c *Client) DetailQueryURL(id string) string {
	return fmt.Sprintf(c.cfg.DetailQueryURL, id)
}

// Fetch retrieves and decodes one feed URL. An unreachable or unparsable
// feed is a caller-visible error, never an empty result.
func (c *Client) Fetch(ctx context.Context, feedURL string) ([]Feature, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}
	req.Header.Set("User-Agent", "quakewatch/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", qerrors.ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d from feed", qerrors.ErrFeedUnavailable, resp.StatusCode)
	}

	var payload Response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	return payload.Features, nil
}

// Response is the GeoJSON feed envelope.
type Response struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is one raw seismic event record from the feed.
type Feature struct {
	ID         string     `json:"id"`
	Properties Properties `json:"properties"`
	Geometry   Geometry   `json:"geometry"`
}

// Properties is the feed's attribute bag. Times are epoch milliseconds.
type Properties struct {
	Mag     *float64 `json:"mag"`
	Place   string   `json:"place"`
	Time    int64    `json:"time"`
	Updated int64    `json:"updated"`
	TZ      *int     `json:"tz"`
	Felt    *int     `json:"felt"`
	CDI     *float64 `json:"cdi"`
	MMI     *float64 `json:"mmi"`
	Alert   string   `json:"alert"`
	Status  string   `json:"status"`
	Tsunami int      `json:"tsunami"`
	Type    string   `json:"type"`
	Title   string   `json:"title"`
	Detail  string   `json:"detail"`
}

// Geometry carries [longitude, latitude, depth].
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}
