package publish

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/quakewatch/quakewatch/config"
	qerrors "github.com/quakewatch/quakewatch/internal/errors"
	"github.com/quakewatch/quakewatch/internal/logger"
	"github.com/quakewatch/quakewatch/internal/metrics"
	"github.com/quakewatch/quakewatch/internal/models"
	"github.com/quakewatch/quakewatch/internal/store"
)

// TextGenerator produces the context reply text from a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Imagery fetches shakemap media for an event. Implementations return
// an error when no media exists; the publisher degrades to text-only.
type Imagery interface {
	FetchShakemap(ctx context.Context, eventID string) ([]byte, error)
}

// Quota gates outbound posts per platform.
type Quota interface {
	CheckPost(ctx context.Context, platform string) (allowed bool, resetSec int, err error)
}

// Publisher pushes alerts to every configured platform. Platforms are
// isolated: a failure on one never blocks another, and the alert is
// recorded as posted as long as at least one platform accepted it. An
// event with zero successful platforms stays unposted and is re-selected
// on the next eligibility pass.
type Publisher struct {
	posters   []Poster
	store     store.Store
	formatter *Formatter
	textgen   TextGenerator
	imagery   Imagery
	quota     Quota
	cfg       config.PublishConfig

	now func() time.Time
}

// New creates a publisher. textgen, imagery, and quota may be nil; the
// corresponding stage is skipped.
func New(st store.Store, posters []Poster, formatter *Formatter, textgen TextGenerator, imagery Imagery, quota Quota, cfg config.PublishConfig) *Publisher {
	return &Publisher{
		posters:   posters,
		store:     st,
		formatter: formatter,
		textgen:   textgen,
		imagery:   imagery,
		quota:     quota,
		cfg:       cfg,
		now:       time.Now,
	}
}

// EventResult records the outcome of publishing one event.
type EventResult struct {
	EventID string
	// PlatformIDs maps platform name to the platform post id for each
	// platform that accepted the alert.
	PlatformIDs map[string]string
	Posted      bool
	// ContextPosted is true when a threaded context reply went out.
	ContextPosted bool
}

// PublishEvents publishes each event independently. Per-event failures
// are logged, never propagated; the returned slice always has one entry
// per input event.
func (p *Publisher) PublishEvents(ctx context.Context, events []models.Event) []EventResult {
	start := time.Now()
	results := make([]EventResult, 0, len(events))
	for _, ev := range events {
		if ctx.Err() != nil {
			break
		}
		results = append(results, p.publishOne(ctx, ev))
	}
	metrics.RecordPipelineRun("publish", time.Since(start))
	return results
}

func (p *Publisher) publishOne(ctx context.Context, ev models.Event) EventResult {
	result := EventResult{EventID: ev.ID, PlatformIDs: make(map[string]string)}

	text := p.formatter.FormatEvent(ev, p.now().UTC())

	// Shakemap media is best-effort: many events never produce one, and
	// a missing image must not delay the alert.
	var media []byte
	if p.imagery != nil {
		img, err := p.imagery.FetchShakemap(ctx, ev.ID)
		if err != nil {
			logger.Debug("No shakemap media for event", "event_id", ev.ID, "error", err)
		} else {
			media = img
		}
	}

	for _, poster := range p.posters {
		id, ok := p.postTo(ctx, poster, text, media)
		if ok {
			result.PlatformIDs[poster.Name()] = id
		}
	}

	if len(result.PlatformIDs) == 0 {
		logger.Warn("No platform accepted alert, leaving event unposted", "event_id", ev.ID)
		return result
	}
	result.Posted = true

	posts := []models.Post{{
		ID:         uuid.New().String(),
		Text:       text,
		EventID:    &ev.ID,
		Kind:       models.PostKindEvent,
		UploadedAt: p.now().UTC(),
	}}

	if ev.Mag() >= p.cfg.SignificantThreshold {
		if contextText, ok := p.postContext(ctx, ev, result.PlatformIDs); ok {
			result.ContextPosted = true
			posts = append(posts, models.Post{
				ID:         uuid.New().String(),
				Text:       contextText,
				EventID:    &ev.ID,
				Kind:       models.PostKindContext,
				UploadedAt: p.now().UTC(),
			})
		}
	}

	if err := p.store.InsertPosts(ctx, posts); err != nil {
		// The alert is already live; failing to record it means the next
		// eligibility pass may re-select this event.
		logger.Error("Failed to record published posts", "event_id", ev.ID, "error", err)
	}

	logger.Info("Event alert published",
		"event_id", ev.ID,
		"magnitude", ev.Mag(),
		"platforms", len(result.PlatformIDs),
		"context", result.ContextPosted,
	)
	return result
}

// postTo runs the quota check, media upload, and post for one platform.
// Every failure path returns ok=false and leaves the other platforms
// untouched.
func (p *Publisher) postTo(ctx context.Context, poster Poster, text string, media []byte) (string, bool) {
	platform := poster.Name()

	if p.quota != nil {
		allowed, resetSec, err := p.quota.CheckPost(ctx, platform)
		if err != nil {
			// Quota accounting is advisory; a broken Redis must not
			// silence alerts.
			logger.Warn("Quota check failed, posting anyway", "platform", platform, "error", err)
		} else if !allowed {
			logger.Warn("Posting quota exhausted, skipping platform",
				"platform", platform,
				"reset_in_seconds", resetSec,
			)
			metrics.RecordPost(platform, "quota_skipped")
			return "", false
		}
	}

	mediaHandle := ""
	if len(media) > 0 {
		handle, err := poster.UploadMedia(ctx, media)
		if err != nil {
			logger.Warn("Media upload failed, posting text-only", "platform", platform, "error", err)
		} else {
			mediaHandle = handle
		}
	}

	id, err := poster.Post(ctx, text, mediaHandle)
	if err != nil {
		var rle qerrors.RateLimitError
		if errors.As(err, &rle) {
			logger.Warn("Platform rate limited",
				"platform", platform,
				"remaining", rle.Remaining,
				"reset_at", rle.ResetAt.UTC().Format(time.RFC3339),
			)
			metrics.RecordPost(platform, "rate_limited")
		} else {
			logger.Error("Post failed", "platform", platform, "error", err)
			metrics.RecordPost(platform, "error")
		}
		return "", false
	}

	metrics.RecordPost(platform, "success")
	return id, true
}

// postContext threads a generated historical-context reply under the
// primary alert. It requires a reply-capable platform whose primary post
// succeeded, a text generator, and regional stats; missing any of those
// quietly skips the reply.
func (p *Publisher) postContext(ctx context.Context, ev models.Event, platformIDs map[string]string) (string, bool) {
	if p.textgen == nil {
		return "", false
	}

	var (
		replier  ReplyPoster
		parentID string
	)
	for _, poster := range p.posters {
		rp, ok := poster.(ReplyPoster)
		if !ok {
			continue
		}
		id, posted := platformIDs[poster.Name()]
		if !posted {
			logger.Debug("Skipping context reply, primary post absent", "platform", poster.Name())
			continue
		}
		replier = rp
		parentID = id
		break
	}
	if replier == nil {
		return "", false
	}

	lookback := p.cfg.ContextLookbackYears
	activity, err := p.store.RegionalActivity(ctx, models.RegionalQuery{
		Latitude:      ev.Latitude,
		Longitude:     ev.Longitude,
		RadiusDegrees: p.cfg.ContextRadiusDegrees,
		MinMagnitude:  ev.Mag() - 1.0,
		Since:         p.now().UTC().AddDate(-lookback, 0, 0),
		ExcludeID:     ev.ID,
	})
	if err != nil {
		logger.Warn("Regional activity lookup failed, skipping context reply", "event_id", ev.ID, "error", err)
		return "", false
	}

	prompt := p.formatter.ContextPrompt(ev, activity, lookback)
	text, err := p.textgen.Generate(ctx, prompt)
	if err != nil || text == "" {
		logger.Warn("Context text generation failed", "event_id", ev.ID, "error", err)
		return "", false
	}

	if _, err := replier.Reply(ctx, text, parentID); err != nil {
		logger.Warn("Context reply failed", "platform", replier.Name(), "error", err)
		metrics.RecordPost(replier.Name(), "context_error")
		return "", false
	}

	metrics.RecordPost(replier.Name(), "context_success")
	return text, true
}

// PostText publishes standalone text (facts, summaries) to every
// platform and records it when at least one accepted. eventID may be nil
// for posts not tied to an event.
func (p *Publisher) PostText(ctx context.Context, text string, kind models.PostKind, eventID *string) (bool, error) {
	if !kind.Valid() {
		return false, qerrors.ValidationError{Field: "kind", Message: "unknown post kind"}
	}

	succeeded := 0
	for _, poster := range p.posters {
		if _, ok := p.postTo(ctx, poster, text, nil); ok {
			succeeded++
		}
	}
	if succeeded == 0 {
		return false, nil
	}

	post := models.Post{
		ID:         uuid.New().String(),
		Text:       text,
		EventID:    eventID,
		Kind:       kind,
		UploadedAt: p.now().UTC(),
	}
	if err := p.store.InsertPosts(ctx, []models.Post{post}); err != nil {
		return true, err
	}
	return true, nil
}
