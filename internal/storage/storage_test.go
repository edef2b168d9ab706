package storage_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/vitrina/vitrina/internal/storage"
)

func newTestStorage(t *testing.T, cfg storage.Config) *storage.Storage {
	t.Helper()
	s, err := storage.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("expected no error creating storage client, got: %v", err)
	}
	return s
}

func TestNewRequiresEndpointAndBucket(t *testing.T) {
	for _, cfg := range []storage.Config{
		{},
		{Endpoint: "http://localhost:9000"},
		{Bucket: "media"},
	} {
		if _, err := storage.New(context.Background(), cfg); !errors.Is(err, storage.ErrNotConfigured) {
			t.Errorf("config %+v: expected ErrNotConfigured, got %v", cfg, err)
		}
	}
}

func TestGenerateDownloadURL(t *testing.T) {
	s := newTestStorage(t, storage.Config{
		Endpoint:  "http://localhost:9000",
		Bucket:    "media",
		AccessKey: "test",
		SecretKey: "test",
	})

	raw, err := s.GenerateDownloadURL(context.Background(), "videos/v1.mp4", 2*time.Hour)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse presigned url: %v", err)
	}
	if u.Host != "localhost:9000" {
		t.Errorf("expected internal endpoint host, got %s", u.Host)
	}
	if u.Path != "/media/videos/v1.mp4" {
		t.Errorf("expected path-style key, got %s", u.Path)
	}
	if u.Query().Get("X-Amz-Expires") != "7200" {
		t.Errorf("expected 7200s expiry, got %q", u.Query().Get("X-Amz-Expires"))
	}
	if u.Query().Get("X-Amz-Signature") == "" {
		t.Error("expected a signature")
	}
}

func TestGenerateDownloadURLUsesPublicEndpoint(t *testing.T) {
	s := newTestStorage(t, storage.Config{
		Endpoint:       "http://minio:9000",
		PublicEndpoint: "https://media.example.com",
		Bucket:         "media",
		AccessKey:      "test",
		SecretKey:      "test",
	})

	raw, err := s.GenerateDownloadURL(context.Background(), "thumbs/v1.jpg", time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasPrefix(raw, "https://media.example.com/media/thumbs/v1.jpg?") {
		t.Errorf("expected public endpoint url, got %s", raw)
	}
}

func TestGenerateDownloadURLNilStorage(t *testing.T) {
	var s *storage.Storage
	if _, err := s.GenerateDownloadURL(context.Background(), "k", time.Minute); !errors.Is(err, storage.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}
