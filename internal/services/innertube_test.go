package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInnertubeStrategy_Resolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("X-YouTube-Client-Name"); got != "3" {
			t.Errorf("expected android client-name header, got %q", got)
		}

		var payload struct {
			VideoID string `json:"videoId"`
			Context struct {
				Client map[string]interface{} `json:"client"`
			} `json:"context"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		if payload.VideoID != "abc123def45" {
			t.Errorf("expected videoId in payload, got %q", payload.VideoID)
		}
		if payload.Context.Client["clientName"] != "ANDROID" {
			t.Errorf("expected ANDROID client context, got %v", payload.Context.Client["clientName"])
		}
		if _, ok := payload.Context.Client["androidSdkVersion"]; !ok {
			t.Error("expected androidSdkVersion in client context")
		}

		w.Write([]byte(testPlayerJSON))
	}))
	defer srv.Close()

	s := &innertubeStrategy{
		httpClient: srv.Client(),
		profile:    innertubeProfiles[0],
		playerURL:  srv.URL,
	}

	candidate, err := s.Resolve(context.Background(), "abc123def45")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.URL != "https://cdn/a" {
		t.Errorf("expected audio URL from player response, got %q", candidate.URL)
	}
}

func TestInnertubeStrategy_PlayerAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := &innertubeStrategy{
		httpClient: srv.Client(),
		profile:    innertubeProfiles[1],
		playerURL:  srv.URL,
	}

	if _, err := s.Resolve(context.Background(), "abc123def45"); err == nil {
		t.Fatal("expected error for 403 player response")
	}
}

func TestInnertubeProfiles_Coverage(t *testing.T) {
	names := map[string]bool{}
	for _, p := range innertubeProfiles {
		names[p.clientName] = true
		if p.clientVersion == "" {
			t.Errorf("profile %s missing client version", p.name)
		}
		if p.userAgent == "" {
			t.Errorf("profile %s missing user agent", p.name)
		}
	}
	for _, want := range []string{"ANDROID", "TVHTML5", "WEB_EMBEDDED_PLAYER"} {
		if !names[want] {
			t.Errorf("missing device profile %s", want)
		}
	}
}
