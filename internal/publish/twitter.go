package publish

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/quakewatch/quakewatch/config"
	qerrors "github.com/quakewatch/quakewatch/internal/errors"
)

// TwitterPoster posts via the Twitter v2 API. It is the reply-capable
// primary platform, so it also carries the context thread.
type TwitterPoster struct {
	cfg  config.TwitterConfig
	http *retryablehttp.Client
}

// NewTwitterPoster creates a Twitter poster. Returns ErrNotConfigured
// when no credentials are present so callers can skip the platform.
func NewTwitterPoster(cfg config.TwitterConfig) (*TwitterPoster, error) {
	if cfg.BearerToken == "" {
		return nil, fmt.Errorf("twitter bearer token: %w", qerrors.ErrNotConfigured)
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 15 * time.Second
	client.Logger = nil
	// Rate-limited responses are handled by the caller, not retried.
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return &TwitterPoster{cfg: cfg, http: client}, nil
}

func (t *TwitterPoster) Name() string { return "twitter" }

type tweetRequest struct {
	Text  string      `json:"text"`
	Reply *tweetReply `json:"reply,omitempty"`
	Media *tweetMedia `json:"media,omitempty"`
}

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Post creates a tweet, optionally attaching previously uploaded media.
func (t *TwitterPoster) Post(ctx context.Context, text, mediaHandle string) (string, error) {
	req := tweetRequest{Text: text}
	if mediaHandle != "" {
		req.Media = &tweetMedia{MediaIDs: []string{mediaHandle}}
	}
	return t.createTweet(ctx, req)
}

// Reply creates a tweet threaded under parentID.
func (t *TwitterPoster) Reply(ctx context.Context, text, parentID string) (string, error) {
	return t.createTweet(ctx, tweetRequest{
		Text:  text,
		Reply: &tweetReply{InReplyToTweetID: parentID},
	})
}

func (t *TwitterPoster) createTweet(ctx context.Context, tweet tweetRequest) (string, error) {
	body, err := json.Marshal(tweet)
	if err != nil {
		return "", fmt.Errorf("marshal tweet: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, t.cfg.APIURL+"/tweets", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create tweet request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.BearerToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", qerrors.PublishError{Platform: t.Name(), Stage: "post", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", rateLimitFromHeaders(t.Name(), resp.Header)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", qerrors.PublishError{
			Platform: t.Name(),
			Stage:    "post",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
		}
	}

	var result tweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode tweet response: %w", err)
	}
	if result.Data.ID == "" {
		return "", qerrors.PublishError{Platform: t.Name(), Stage: "post", Err: fmt.Errorf("response missing tweet id")}
	}
	return result.Data.ID, nil
}

// UploadMedia uploads image bytes through the v1.1 media endpoint and
// returns the media id string.
func (t *TwitterPoster) UploadMedia(ctx context.Context, media []byte) (string, error) {
	form := url.Values{}
	form.Set("media_data", base64.StdEncoding.EncodeToString(media))

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, t.cfg.MediaUploadURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create media request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.BearerToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", qerrors.PublishError{Platform: t.Name(), Stage: "media_upload", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", rateLimitFromHeaders(t.Name(), resp.Header)
	}
	if resp.StatusCode != http.StatusOK {
		return "", qerrors.PublishError{
			Platform: t.Name(),
			Stage:    "media_upload",
			Err:      fmt.Errorf("status %d", resp.StatusCode),
		}
	}

	var result struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode media response: %w", err)
	}
	return result.MediaIDString, nil
}

// rateLimitFromHeaders builds a RateLimitError from rate-limit response
// headers. Twitter uses x-rate-limit-*, Bluesky ratelimit-*; missing
// headers leave zero values.
func rateLimitFromHeaders(platform string, h http.Header) qerrors.RateLimitError {
	rle := qerrors.RateLimitError{Platform: platform}
	if v := headerValue(h, "x-rate-limit-remaining", "ratelimit-remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			rle.Remaining = n
		}
	}
	if v := headerValue(h, "x-rate-limit-reset", "ratelimit-reset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			rle.ResetAt = time.Unix(n, 0).UTC()
		}
	}
	return rle
}

func headerValue(h http.Header, names ...string) string {
	for _, name := range names {
		if v := h.Get(name); v != "" {
			return v
		}
	}
	return ""
}
