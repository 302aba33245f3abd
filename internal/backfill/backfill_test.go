package backfill

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/quakewatch/quakewatch/internal/ingest"
	"github.com/quakewatch/quakewatch/internal/logger"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWindows(t *testing.T) {
	tests := []struct {
		name         string
		start        time.Time
		end          time.Time
		intervalDays int
		expected     []Window
	}{
		{
			name:         "Range splits with clipped tail",
			start:        day(2024, 1, 1),
			end:          day(2024, 1, 20),
			intervalDays: 7,
			expected: []Window{
				{Start: day(2024, 1, 1), End: day(2024, 1, 8)},
				{Start: day(2024, 1, 8), End: day(2024, 1, 15)},
				{Start: day(2024, 1, 15), End: day(2024, 1, 20)},
			},
		},
		{
			name:         "Range shorter than interval",
			start:        day(2024, 3, 1),
			end:          day(2024, 3, 3),
			intervalDays: 30,
			expected: []Window{
				{Start: day(2024, 3, 1), End: day(2024, 3, 3)},
			},
		},
		{
			name:         "Exact multiple of interval",
			start:        day(2024, 1, 1),
			end:          day(2024, 1, 15),
			intervalDays: 7,
			expected: []Window{
				{Start: day(2024, 1, 1), End: day(2024, 1, 8)},
				{Start: day(2024, 1, 8), End: day(2024, 1, 15)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			windows, err := Windows(tt.start, tt.end, tt.intervalDays)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}

			if len(windows) != len(tt.expected) {
				t.Fatalf("Expected %d windows, got %d", len(tt.expected), len(windows))
			}
			for i, w := range windows {
				if !w.Start.Equal(tt.expected[i].Start) || !w.End.Equal(tt.expected[i].End) {
					t.Errorf("Window %d: expected %v-%v, got %v-%v",
						i, tt.expected[i].Start, tt.expected[i].End, w.Start, w.End)
				}
			}

			// Windows must be contiguous and cover the range exactly.
			if !windows[0].Start.Equal(tt.start) {
				t.Errorf("Expected first window to start at %v, got %v", tt.start, windows[0].Start)
			}
			if !windows[len(windows)-1].End.Equal(tt.end) {
				t.Errorf("Expected last window to end at %v, got %v", tt.end, windows[len(windows)-1].End)
			}
			for i := 1; i < len(windows); i++ {
				if !windows[i].Start.Equal(windows[i-1].End) {
					t.Errorf("Gap between window %d and %d", i-1, i)
				}
			}
		})
	}
}

func TestWindows_Validation(t *testing.T) {
	tests := []struct {
		name         string
		start        time.Time
		end          time.Time
		intervalDays int
	}{
		{"Start after end", day(2024, 2, 1), day(2024, 1, 1), 7},
		{"Start equals end", day(2024, 1, 1), day(2024, 1, 1), 7},
		{"Zero interval", day(2024, 1, 1), day(2024, 1, 10), 0},
		{"Negative interval", day(2024, 1, 1), day(2024, 1, 10), -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Windows(tt.start, tt.end, tt.intervalDays); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

// MockURLer for testing
type MockURLer struct{}

func (m *MockURLer) RangeURL(start, end time.Time) string {
	return fmt.Sprintf("http://example.com/query?start=%s&end=%s",
		start.Format("2006-01-02"), end.Format("2006-01-02"))
}

// MockUploader for testing
type MockUploader struct {
	calls    []string
	inserted int
	failOn   string
}

func (m *MockUploader) Upload(ctx context.Context, feedURL string) (ingest.Summary, error) {
	m.calls = append(m.calls, feedURL)
	if m.failOn != "" && feedURL == m.failOn {
		return ingest.Summary{}, errors.New("window failed")
	}
	return ingest.Summary{Inserted: m.inserted}, nil
}

func TestRunner_Run(t *testing.T) {
	logger.Init("error", "text")

	urls := &MockURLer{}
	uploader := &MockUploader{inserted: 5}
	runner := NewRunner(urls, uploader)

	result, err := runner.Run(context.Background(), day(2024, 1, 1), day(2024, 1, 20), 7)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.Windows != 3 {
		t.Errorf("Expected 3 windows, got %d", result.Windows)
	}
	if result.Failed != 0 {
		t.Errorf("Expected 0 failures, got %d", result.Failed)
	}
	if result.Inserted != 15 {
		t.Errorf("Expected 15 inserted, got %d", result.Inserted)
	}
	if len(uploader.calls) != 3 {
		t.Errorf("Expected 3 uploads, got %d", len(uploader.calls))
	}
}

func TestRunner_Run_FailedWindowContinues(t *testing.T) {
	logger.Init("error", "text")

	urls := &MockURLer{}
	uploader := &MockUploader{
		inserted: 2,
		failOn:   urls.RangeURL(day(2024, 1, 8), day(2024, 1, 15)),
	}
	runner := NewRunner(urls, uploader)

	result, err := runner.Run(context.Background(), day(2024, 1, 1), day(2024, 1, 20), 7)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.Failed != 1 {
		t.Errorf("Expected 1 failed window, got %d", result.Failed)
	}
	// Later windows still ran after the failure.
	if len(uploader.calls) != 3 {
		t.Errorf("Expected 3 uploads despite failure, got %d", len(uploader.calls))
	}
	if result.Inserted != 4 {
		t.Errorf("Expected 4 inserted from the 2 good windows, got %d", result.Inserted)
	}
}

func TestRunner_Run_InvalidRange(t *testing.T) {
	runner := NewRunner(&MockURLer{}, &MockUploader{})

	if _, err := runner.Run(context.Background(), day(2024, 2, 1), day(2024, 1, 1), 7); err == nil {
		t.Error("Expected validation error, got nil")
	}
}

func TestRunner_Run_ContextCancelled(t *testing.T) {
	logger.Init("error", "text")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	uploader := &MockUploader{}
	runner := NewRunner(&MockURLer{}, uploader)

	_, err := runner.Run(ctx, day(2024, 1, 1), day(2024, 1, 20), 7)
	if err == nil {
		t.Error("Expected context error, got nil")
	}
	if len(uploader.calls) != 0 {
		t.Errorf("Expected no uploads after cancellation, got %d", len(uploader.calls))
	}
}
