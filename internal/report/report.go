package report

import (
	"context"
	"fmt"
	"time"

	qerrors "github.com/quakewatch/quakewatch/internal/errors"
	"github.com/quakewatch/quakewatch/internal/logger"
	"github.com/quakewatch/quakewatch/internal/models"
	"github.com/quakewatch/quakewatch/internal/store"
	"github.com/quakewatch/quakewatch/internal/textgen"
)

const factPrompt = "Share one surprising, verifiable fact about earthquakes or seismology " +
	"in under 250 characters. No hashtags, no emoji."

// notableMagnitude is the floor counted separately in period summaries.
const notableMagnitude = 5.0

// TextPublisher is the slice of the publisher the reporter needs.
type TextPublisher interface {
	PostText(ctx context.Context, text string, kind models.PostKind, eventID *string) (bool, error)
}

// SummaryFormatter renders period summary text.
type SummaryFormatter interface {
	FormatSummary(period string, s models.PeriodSummary) string
}

// Reporter produces scheduled non-alert posts: period summaries from
// stored events and generated fun facts.
type Reporter struct {
	store     store.Store
	publisher TextPublisher
	formatter SummaryFormatter
	textgen   textgen.Generator

	now func() time.Time
}

// New creates a reporter. textgen may be nil, which disables fun facts.
func New(st store.Store, pub TextPublisher, formatter SummaryFormatter, gen textgen.Generator) *Reporter {
	return &Reporter{
		store:     st,
		publisher: pub,
		formatter: formatter,
		textgen:   gen,
		now:       time.Now,
	}
}

// periodSpan returns the lookback window and recorded kind for a period.
// Monthly summaries reuse the weekly kind; the set of recorded kinds is
// closed.
func periodSpan(period string) (time.Duration, models.PostKind, error) {
	switch period {
	case "day":
		return 24 * time.Hour, models.PostKindDailySummary, nil
	case "week":
		return 7 * 24 * time.Hour, models.PostKindWeeklySummary, nil
	case "month":
		return 30 * 24 * time.Hour, models.PostKindWeeklySummary, nil
	}
	return 0, "", qerrors.ValidationError{Field: "period", Message: fmt.Sprintf("unknown period %q", period)}
}

// Summary counts stored events over the period and posts the result.
// period is one of day, week, month.
func (r *Reporter) Summary(ctx context.Context, period string) error {
	span, kind, err := periodSpan(period)
	if err != nil {
		return err
	}

	now := r.now().UTC()
	events, err := r.store.QueryEvents(ctx, models.EventQuery{
		Since: now.Add(-span),
		Until: now,
	})
	if err != nil {
		return fmt.Errorf("query events for %s summary: %w", period, err)
	}

	summary := models.PeriodSummary{Total: len(events)}
	for _, ev := range events {
		if ev.Mag() >= notableMagnitude {
			summary.AboveFive++
		}
	}

	text := r.formatter.FormatSummary(period, summary)
	posted, err := r.publisher.PostText(ctx, text, kind, nil)
	if err != nil {
		return err
	}
	if !posted {
		return fmt.Errorf("%s summary: %w", period, qerrors.ErrServiceUnavailable)
	}

	logger.Info("Period summary posted",
		"period", period,
		"total", summary.Total,
		"above_five", summary.AboveFive,
	)
	return nil
}

// FunFact posts one generated earthquake fact.
func (r *Reporter) FunFact(ctx context.Context) error {
	if r.textgen == nil {
		return fmt.Errorf("fun facts: %w", qerrors.ErrNotConfigured)
	}

	text, err := r.textgen.Generate(ctx, factPrompt)
	if err != nil {
		return fmt.Errorf("generate fact: %w", err)
	}

	posted, err := r.publisher.PostText(ctx, text, models.PostKindFact, nil)
	if err != nil {
		return err
	}
	if !posted {
		return fmt.Errorf("fact post: %w", qerrors.ErrServiceUnavailable)
	}

	logger.Info("Fun fact posted", "length", len(text))
	return nil
}
