package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quakewatch/quakewatch/config"
	qerrors "github.com/quakewatch/quakewatch/internal/errors"
)

func shakemapConfig(baseURL string) config.FeedConfig {
	return config.FeedConfig{
		DetailQueryURL: baseURL + "/detail/%s",
		Timeout:        5 * time.Second,
		RetryMax:       0,
	}
}

func TestShakemapClient_FetchShakemap(t *testing.T) {
	imageBytes := []byte("jpeg-bytes")

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/detail/us7000abcd":
			fmt.Fprintf(w, `{
				"properties": {
					"products": {
						"shakemap": [{
							"contents": {
								"download/intensity.jpg": {"url": "%s/images/intensity.jpg"},
								"download/pga.jpg": {"url": "%s/images/pga.jpg"}
							}
						}]
					}
				}
			}`, server.URL, server.URL)
		case "/images/pga.jpg":
			w.Write(imageBytes)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewShakemapClient(shakemapConfig(server.URL))
	got, err := client.FetchShakemap(context.Background(), "us7000abcd")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(got) != string(imageBytes) {
		t.Errorf("Expected image bytes, got %q", got)
	}
}

func TestShakemapClient_FetchShakemap_NoProduct(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"properties": {"products": {}}}`))
	}))
	defer server.Close()

	client := NewShakemapClient(shakemapConfig(server.URL))
	_, err := client.FetchShakemap(context.Background(), "us7000abcd")
	if err == nil {
		t.Fatal("Expected error for event without shakemap, got nil")
	}
	if !errors.Is(err, qerrors.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestShakemapClient_FetchShakemap_DetailUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := shakemapConfig(server.URL)
	client := NewShakemapClient(cfg)
	if _, err := client.FetchShakemap(context.Background(), "us7000abcd"); err == nil {
		t.Error("Expected error for failing detail endpoint, got nil")
	}
}
