package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/quakewatch/quakewatch/config"
	"golang.org/x/time/rate"
)

// Placement is the provider-agnostic reverse-geocode result.
type Placement struct {
	Continent   string
	Country     string
	Subdivision string
	City        string
	Category    string
	DisplayName string
	BoundingBox string
}

// Client resolves coordinates to a place descriptor.
type Client interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (*Placement, error)
}

// HTTPClient talks to a Nominatim-style reverse geocoding endpoint. A
// shared limiter paces requests so concurrent enrichment workers stay
// inside the provider quota.
type HTTPClient struct {
	cfg     config.GeocodeConfig
	http    *retryablehttp.Client
	limiter *rate.Limiter
}

// NewHTTPClient creates a reverse-geocode client.
func NewHTTPClient(cfg config.GeocodeConfig) *HTTPClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	return &HTTPClient{
		cfg:     cfg,
		http:    rc,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// response mirrors the provider payload. A populated Error field is a
// failed lookup even on HTTP 200.
type response struct {
	Error       string   `json:"error"`
	Category    string   `json:"category"`
	DisplayName string   `json:"display_name"`
	BoundingBox []string `json:"boundingbox"`
	Address     struct {
		Continent string `json:"continent"`
		Country   string `json:"country"`
		State     string `json:"state"`
		Region    string `json:"region"`
		County    string `json:"county"`
		City      string `json:"city"`
		Town      string `json:"town"`
		Village   string `json:"village"`
	} `json:"address"`
}

// ReverseGeocode resolves one coordinate pair.
func (c *HTTPClient) ReverseGeocode(ctx context.Context, lat, lon float64) (*Placement, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	v := url.Values{}
	v.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	v.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	v.Set("format", "jsonv2")
	if c.cfg.APIKey != "" {
		v.Set("api_key", c.cfg.APIKey)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/reverse?"+v.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create geocode request: %w", err)
	}
	req.Header.Set("User-Agent", "quakewatch/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reverse geocode: HTTP %d", resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("parse geocode response: %w", err)
	}

	if body.Error != "" {
		return nil, fmt.Errorf("reverse geocode: %s", body.Error)
	}

	subdivision := body.Address.State
	if subdivision == "" {
		subdivision = body.Address.Region
	}

	city := body.Address.City
	if city == "" {
		city = body.Address.Town
	}
	if city == "" {
		city = body.Address.Village
	}
	if city == "" {
		city = body.Address.County
	}

	return &Placement{
		Continent:   body.Address.Continent,
		Country:     body.Address.Country,
		Subdivision: subdivision,
		City:        city,
		Category:    body.Category,
		DisplayName: body.DisplayName,
		BoundingBox: strings.Join(body.BoundingBox, ","),
	}, nil
}
