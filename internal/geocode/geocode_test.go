package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quakewatch/quakewatch/config"
)

func testConfig(baseURL string) config.GeocodeConfig {
	return config.GeocodeConfig{
		BaseURL:           baseURL,
		Timeout:           5 * time.Second,
		RequestsPerSecond: 100,
	}
}

func TestHTTPClient_ReverseGeocode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("lat") != "35.5" || r.URL.Query().Get("lon") != "-118.25" {
			t.Errorf("Unexpected coordinates in query: %s", r.URL.RawQuery)
		}
		if r.URL.Query().Get("format") != "jsonv2" {
			t.Errorf("Expected jsonv2 format, got %s", r.URL.Query().Get("format"))
		}
		w.Write([]byte(`{
			"category": "place",
			"display_name": "Ridgecrest, Kern County, California, United States",
			"boundingbox": ["35.4", "35.6", "-118.3", "-118.2"],
			"address": {
				"continent": "North America",
				"country": "United States",
				"state": "California",
				"city": "Ridgecrest"
			}
		}`))
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL))
	placement, err := client.ReverseGeocode(context.Background(), 35.5, -118.25)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if placement.Country != "United States" {
		t.Errorf("Expected country United States, got %s", placement.Country)
	}
	if placement.Subdivision != "California" {
		t.Errorf("Expected subdivision California, got %s", placement.Subdivision)
	}
	if placement.City != "Ridgecrest" {
		t.Errorf("Expected city Ridgecrest, got %s", placement.City)
	}
	if placement.BoundingBox != "35.4,35.6,-118.3,-118.2" {
		t.Errorf("Unexpected bounding box %s", placement.BoundingBox)
	}
}

func TestHTTPClient_ReverseGeocode_Fallbacks(t *testing.T) {
	tests := []struct {
		name    string
		address string
		city    string
		subdiv  string
	}{
		{
			name:    "Town stands in for city",
			address: `{"country": "Japan", "region": "Tohoku", "town": "Ishinomaki"}`,
			city:    "Ishinomaki",
			subdiv:  "Tohoku",
		},
		{
			name:    "Village stands in for city",
			address: `{"country": "Chile", "village": "Putre"}`,
			city:    "Putre",
		},
		{
			name:    "County as last resort",
			address: `{"country": "United States", "state": "Alaska", "county": "Kenai Peninsula"}`,
			city:    "Kenai Peninsula",
			subdiv:  "Alaska",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"address": ` + tt.address + `}`))
			}))
			defer server.Close()

			client := NewHTTPClient(testConfig(server.URL))
			placement, err := client.ReverseGeocode(context.Background(), 0, 0)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if placement.City != tt.city {
				t.Errorf("Expected city %q, got %q", tt.city, placement.City)
			}
			if placement.Subdivision != tt.subdiv {
				t.Errorf("Expected subdivision %q, got %q", tt.subdiv, placement.Subdivision)
			}
		})
	}
}

func TestHTTPClient_ReverseGeocode_ProviderError(t *testing.T) {
	// Open-ocean coordinates come back HTTP 200 with an error field.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "Unable to geocode"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL))
	if _, err := client.ReverseGeocode(context.Background(), 0, -140); err == nil {
		t.Error("Expected error for unresolvable coordinates, got nil")
	}
}

func TestHTTPClient_ReverseGeocode_APIKey(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("api_key")
		w.Write([]byte(`{"address": {"country": "Mexico"}}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.APIKey = "secret"
	client := NewHTTPClient(cfg)

	if _, err := client.ReverseGeocode(context.Background(), 19.4, -99.1); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if gotKey != "secret" {
		t.Errorf("Expected api_key forwarded, got %q", gotKey)
	}
}
