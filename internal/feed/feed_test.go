package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quakewatch/quakewatch/config"
)

func testConfig(baseURL string) config.FeedConfig {
	return config.FeedConfig{
		PeriodURLTemplate: baseURL + "/summary/all_%s.geojson",
		RangeURL:          baseURL + "/query.geojson",
		EventPageURL:      baseURL + "/eventpage/%s",
		DetailQueryURL:    baseURL + "/detail/%s",
		Timeout:           5 * time.Second,
		RetryMax:          0,
	}
}

func TestClient_PeriodURL(t *testing.T) {
	client := NewClient(testConfig("http://example.com"))

	tests := []struct {
		period   string
		expected string
		wantErr  bool
	}{
		{"hour", "http://example.com/summary/all_hour.geojson", false},
		{"day", "http://example.com/summary/all_day.geojson", false},
		{"week", "http://example.com/summary/all_week.geojson", false},
		{"month", "http://example.com/summary/all_month.geojson", false},
		{"year", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			url, err := client.PeriodURL(tt.period)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for period %q, got nil", tt.period)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if url != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, url)
			}
		})
	}
}

func TestClient_RangeURL(t *testing.T) {
	client := NewClient(testConfig("http://example.com"))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 8, 12, 30, 0, 0, time.UTC)

	url := client.RangeURL(start, end)

	if !strings.HasPrefix(url, "http://example.com/query.geojson?") {
		t.Errorf("Unexpected URL prefix: %s", url)
	}
	if !strings.Contains(url, "starttime=2024-01-01+00%3A00%3A00") {
		t.Errorf("Expected encoded starttime in URL, got %s", url)
	}
	if !strings.Contains(url, "endtime=2024-01-08+12%3A30%3A00") {
		t.Errorf("Expected encoded endtime in URL, got %s", url)
	}
}

func TestClient_EventPageURL(t *testing.T) {
	client := NewClient(testConfig("http://example.com"))

	if got := client.EventPageURL("us7000abcd"); got != "http://example.com/eventpage/us7000abcd" {
		t.Errorf("Unexpected event page URL: %s", got)
	}
}

const sampleFeed = `{
	"type": "FeatureCollection",
	"features": [
		{
			"id": "us7000abcd",
			"properties": {
				"mag": 5.2,
				"place": "42 km SW of Somewhere",
				"time": 1717243845000,
				"updated": 1717244000000,
				"felt": 31,
				"tsunami": 0,
				"status": "reviewed",
				"type": "earthquake",
				"title": "M 5.2 - 42 km SW of Somewhere"
			},
			"geometry": {"type": "Point", "coordinates": [-118.2, 35.1, 8.4]}
		},
		{
			"id": "us7000efgh",
			"properties": {
				"mag": null,
				"place": "Elsewhere",
				"time": 1717240000000,
				"tsunami": 1,
				"type": "earthquake",
				"title": "M ? - Elsewhere"
			},
			"geometry": {"type": "Point", "coordinates": [140.1, 36.5]}
		}
	]
}`

func TestClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "quakewatch/") {
			t.Errorf("Expected quakewatch user agent, got %q", ua)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	features, err := client.Fetch(context.Background(), server.URL+"/feed")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(features) != 2 {
		t.Fatalf("Expected 2 features, got %d", len(features))
	}

	first := features[0]
	if first.ID != "us7000abcd" {
		t.Errorf("Expected id us7000abcd, got %s", first.ID)
	}
	if first.Properties.Mag == nil || *first.Properties.Mag != 5.2 {
		t.Errorf("Expected magnitude 5.2, got %v", first.Properties.Mag)
	}
	if first.Properties.Felt == nil || *first.Properties.Felt != 31 {
		t.Errorf("Expected felt 31, got %v", first.Properties.Felt)
	}
	if len(first.Geometry.Coordinates) != 3 {
		t.Errorf("Expected 3 coordinates, got %d", len(first.Geometry.Coordinates))
	}

	second := features[1]
	if second.Properties.Mag != nil {
		t.Errorf("Expected null magnitude to decode as nil, got %v", second.Properties.Mag)
	}
	if second.Properties.Tsunami != 1 {
		t.Errorf("Expected tsunami 1, got %d", second.Properties.Tsunami)
	}
}

func TestClient_Fetch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	if _, err := client.Fetch(context.Background(), server.URL+"/feed"); err == nil {
		t.Error("Expected error for non-200 response, got nil")
	}
}

func TestClient_Fetch_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	if _, err := client.Fetch(context.Background(), server.URL+"/feed"); err == nil {
		t.Error("Expected error for malformed body, got nil")
	}
}
