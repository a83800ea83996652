package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"quizforge-backend/internal/models"
)

func TestDownloader_Success(t *testing.T) {
	payload := []byte("fake audio bytes for the download test")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out.m4a")
	d := NewDownloader(5 * time.Second)

	var lastDownloaded, lastTotal int64
	err := d.Download(context.Background(), &models.StreamCandidate{URL: srv.URL}, dest, func(downloaded, total int64) {
		lastDownloaded, lastTotal = downloaded, total
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if string(data) != string(payload) {
		t.Error("downloaded content does not match source")
	}
	if lastDownloaded != int64(len(payload)) {
		t.Errorf("expected final progress %d, got %d", len(payload), lastDownloaded)
	}
	if lastTotal != int64(len(payload)) {
		t.Errorf("expected total bytes %d, got %d", len(payload), lastTotal)
	}
}

func TestDownloader_TimeoutRemovesPartialFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("partial"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		time.Sleep(2 * time.Second)
		w.Write([]byte("rest"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out.m4a")
	d := NewDownloader(200 * time.Millisecond)

	err := d.Download(context.Background(), &models.StreamCandidate{URL: srv.URL}, dest, nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTimeout(err) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("partial file should have been removed after timeout")
	}
}

func TestDownloader_EmptyStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out.m4a")
	d := NewDownloader(time.Second)

	if err := d.Download(context.Background(), &models.StreamCandidate{URL: srv.URL}, dest, nil); err == nil {
		t.Fatal("expected error for zero-byte stream")
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("empty output file should have been removed")
	}
}

func TestDownloader_NoURL(t *testing.T) {
	d := NewDownloader(time.Second)

	if err := d.Download(context.Background(), &models.StreamCandidate{}, "unused", nil); err == nil {
		t.Fatal("expected error for candidate without URL")
	}
	if err := d.Download(context.Background(), nil, "unused", nil); err == nil {
		t.Fatal("expected error for nil candidate")
	}
}

func TestDownloader_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out.m4a")
	d := NewDownloader(time.Second)

	if err := d.Download(context.Background(), &models.StreamCandidate{URL: srv.URL}, dest, nil); err == nil {
		t.Fatal("expected error for 403 stream response")
	}
}
