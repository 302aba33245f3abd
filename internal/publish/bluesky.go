package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/quakewatch/quakewatch/config"
	qerrors "github.com/quakewatch/quakewatch/internal/errors"
)

// BlueskyPoster posts via the AT Protocol XRPC endpoints. It is a
// secondary platform: it never threads, so it implements only Poster.
type BlueskyPoster struct {
	cfg  config.BlueskyConfig
	http *retryablehttp.Client

	mu        sync.Mutex
	accessJwt string
	did       string
}

// NewBlueskyPoster creates a Bluesky poster. Returns ErrNotConfigured
// when credentials are missing. The session is established lazily on
// first use.
func NewBlueskyPoster(cfg config.BlueskyConfig) (*BlueskyPoster, error) {
	if cfg.Handle == "" || cfg.Password == "" {
		return nil, fmt.Errorf("bluesky credentials: %w", qerrors.ErrNotConfigured)
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 15 * time.Second
	client.Logger = nil
	return &BlueskyPoster{cfg: cfg, http: client}, nil
}

func (b *BlueskyPoster) Name() string { return "bluesky" }

// Post creates an app.bsky.feed.post record. mediaHandle, when present,
// is the JSON-encoded blob ref from UploadMedia.
func (b *BlueskyPoster) Post(ctx context.Context, text, mediaHandle string) (string, error) {
	if err := b.ensureSession(ctx); err != nil {
		return "", err
	}

	record := map[string]any{
		"$type":     "app.bsky.feed.post",
		"text":      text,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
	}
	if mediaHandle != "" {
		var blob json.RawMessage
		if err := json.Unmarshal([]byte(mediaHandle), &blob); err == nil {
			record["embed"] = map[string]any{
				"$type": "app.bsky.embed.images",
				"images": []map[string]any{
					{"alt": "Shakemap of peak ground acceleration", "image": blob},
				},
			}
		}
	}

	payload := map[string]any{
		"repo":       b.did,
		"collection": "app.bsky.feed.post",
		"record":     record,
	}

	var result struct {
		URI string `json:"uri"`
	}
	if err := b.xrpc(ctx, "com.atproto.repo.createRecord", "application/json", mustJSON(payload), &result); err != nil {
		return "", err
	}
	if result.URI == "" {
		return "", qerrors.PublishError{Platform: b.Name(), Stage: "post", Err: fmt.Errorf("response missing record uri")}
	}
	return result.URI, nil
}

// UploadMedia uploads image bytes as a blob and returns the blob ref as
// JSON, for embedding in a subsequent Post.
func (b *BlueskyPoster) UploadMedia(ctx context.Context, media []byte) (string, error) {
	if err := b.ensureSession(ctx); err != nil {
		return "", err
	}

	var result struct {
		Blob json.RawMessage `json:"blob"`
	}
	if err := b.xrpc(ctx, "com.atproto.repo.uploadBlob", "image/jpeg", media, &result); err != nil {
		return "", err
	}
	if len(result.Blob) == 0 {
		return "", qerrors.PublishError{Platform: b.Name(), Stage: "media_upload", Err: fmt.Errorf("response missing blob ref")}
	}
	return string(result.Blob), nil
}

// ensureSession logs in once and caches the access token. Bluesky
// sessions outlive any single pipeline run, so there is no refresh path;
// an expired token surfaces as a post failure and the next run
// re-authenticates.
func (b *BlueskyPoster) ensureSession(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.accessJwt != "" {
		return nil
	}

	payload := map[string]string{
		"identifier": b.cfg.Handle,
		"password":   b.cfg.Password,
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost,
		b.cfg.Host+"/xrpc/com.atproto.server.createSession", bytes.NewReader(mustJSON(payload)))
	if err != nil {
		return fmt.Errorf("create session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return qerrors.PublishError{Platform: b.Name(), Stage: "login", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return qerrors.PublishError{
			Platform: b.Name(),
			Stage:    "login",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
		}
	}

	var session struct {
		AccessJwt string `json:"accessJwt"`
		DID       string `json:"did"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return fmt.Errorf("decode session response: %w", err)
	}
	if session.AccessJwt == "" || session.DID == "" {
		return qerrors.PublishError{Platform: b.Name(), Stage: "login", Err: fmt.Errorf("incomplete session response")}
	}
	b.accessJwt = session.AccessJwt
	b.did = session.DID
	return nil
}

func (b *BlueskyPoster) xrpc(ctx context.Context, method, contentType string, body []byte, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost,
		b.cfg.Host+"/xrpc/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+b.accessJwt)
	req.Header.Set("Content-Type", contentType)

	resp, err := b.http.Do(req)
	if err != nil {
		return qerrors.PublishError{Platform: b.Name(), Stage: method, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return rateLimitFromHeaders(b.Name(), resp.Header)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return qerrors.PublishError{
			Platform: b.Name(),
			Stage:    method,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
		}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
