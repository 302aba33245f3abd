package backfill

import (
	"context"
	"time"

	qerrors "github.com/quakewatch/quakewatch/internal/errors"
	"github.com/quakewatch/quakewatch/internal/ingest"
	"github.com/quakewatch/quakewatch/internal/logger"
)

// Window is one contiguous slice of a backfill range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Windows splits [start, end] into consecutive windows of intervalDays,
// the last one clipped to end. Pure: same inputs, same output. Windows
// are contiguous and cover the range exactly once.
func Windows(start, end time.Time, intervalDays int) ([]Window, error) {
	if !start.Before(end) {
		return nil, qerrors.ValidationError{Field: "start", Message: "start must be before end"}
	}
	if intervalDays <= 0 {
		return nil, qerrors.ValidationError{Field: "intervalDays", Message: "interval must be positive"}
	}

	interval := time.Duration(intervalDays) * 24 * time.Hour

	var windows []Window
	for cur := start; cur.Before(end); {
		next := cur.Add(interval)
		if next.After(end) {
			next = end
		}
		windows = append(windows, Window{Start: cur, End: next})
		cur = next
	}

	return windows, nil
}

// RangeURLer builds a feed URL for an explicit date window.
type RangeURLer interface {
	RangeURL(start, end time.Time) string
}

// Uploader runs one ingestion pass for a feed URL.
type Uploader interface {
	Upload(ctx context.Context, feedURL string) (ingest.Summary, error)
}

// Runner drives the ingestion engine once per window, sequentially. A
// failed window is logged and skipped; completed windows stay committed,
// so a partial backfill is resumable by re-running a narrower range.
type Runner struct {
	urls   RangeURLer
	engine Uploader
}

// NewRunner creates a backfill runner.
func NewRunner(urls RangeURLer, engine Uploader) *Runner {
	return &Runner{urls: urls, engine: engine}
}

// Result tallies a whole backfill run.
type Result struct {
	Windows  int
	Failed   int
	Inserted int
}

// Run backfills the range in intervalDays windows.
func (r *Runner) Run(ctx context.Context, start, end time.Time, intervalDays int) (Result, error) {
	windows, err := Windows(start, end, intervalDays)
	if err != nil {
		return Result{}, err
	}

	result := Result{Windows: len(windows)}
	for i, w := range windows {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		logger.Info("Backfill window started",
			"window", i+1,
			"windows", len(windows),
			"start", w.Start.Format("2006-01-02"),
			"end", w.End.Format("2006-01-02"),
		)

		summary, err := r.engine.Upload(ctx, r.urls.RangeURL(w.Start, w.End))
		if err != nil {
			result.Failed++
			logger.Error("Backfill window failed",
				"start", w.Start.Format("2006-01-02"),
				"end", w.End.Format("2006-01-02"),
				"error", err,
			)
			continue
		}
		result.Inserted += summary.Inserted
	}

	logger.Info("Backfill completed",
		"windows", result.Windows,
		"failed", result.Failed,
		"inserted", result.Inserted,
	)
	return result, nil
}
