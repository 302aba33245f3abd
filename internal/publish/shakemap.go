package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/quakewatch/quakewatch/config"
	qerrors "github.com/quakewatch/quakewatch/internal/errors"
)

// shakemapContentKey is the product content holding the peak ground
// acceleration image.
const shakemapContentKey = "download/pga.jpg"

// ShakemapClient fetches the shakemap image attached to an event's
// detail record. Most events have no shakemap product; callers treat an
// error as "no media".
type ShakemapClient struct {
	cfg  config.FeedConfig
	http *retryablehttp.Client
}

// NewShakemapClient creates a shakemap fetcher against the detail query
// endpoint.
func NewShakemapClient(cfg config.FeedConfig) *ShakemapClient {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = nil
	return &ShakemapClient{cfg: cfg, http: client}
}

type detailResponse struct {
	Properties struct {
		Products struct {
			Shakemap []struct {
				Contents map[string]struct {
					URL string `json:"url"`
				} `json:"contents"`
			} `json:"shakemap"`
		} `json:"products"`
	} `json:"properties"`
}

// FetchShakemap resolves the pga.jpg URL from the event detail record
// and downloads the image bytes.
func (c *ShakemapClient) FetchShakemap(ctx context.Context, eventID string) ([]byte, error) {
	url, err := c.imageURL(ctx, eventID)
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create shakemap request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch shakemap image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shakemap image returned status %d: %w", resp.StatusCode, qerrors.ErrNotFound)
	}
	return io.ReadAll(resp.Body)
}

func (c *ShakemapClient) imageURL(ctx context.Context, eventID string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(c.cfg.DetailQueryURL, eventID), nil)
	if err != nil {
		return "", fmt.Errorf("create detail request: %w", err)
	}
	req.Header.Set("User-Agent", "quakewatch/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch event detail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("event detail returned status %d: %w", resp.StatusCode, qerrors.ErrFeedUnavailable)
	}

	var detail detailResponse
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return "", fmt.Errorf("decode event detail: %w", err)
	}

	for _, sm := range detail.Properties.Products.Shakemap {
		if content, ok := sm.Contents[shakemapContentKey]; ok && content.URL != "" {
			return content.URL, nil
		}
	}
	return "", fmt.Errorf("event %s has no shakemap image: %w", eventID, qerrors.ErrNotFound)
}
