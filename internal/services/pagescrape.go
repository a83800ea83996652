package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"quizforge-backend/internal/models"
)

// pageScrapeStrategy fetches a watch/mobile/embed page and digs the player
// JSON out of the HTML. Several known embedding patterns are tried in order,
// ending with a brute-force brace scan around "streamingData".
type pageScrapeStrategy struct {
	name       string
	pageURL    string // fmt pattern with one %s for the video ID
	userAgent  string
	httpClient *http.Client
}

func (s *pageScrapeStrategy) Name() string { return s.name }

func (s *pageScrapeStrategy) Resolve(ctx context.Context, videoID string) (*models.StreamCandidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(s.pageURL, videoID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}

	playerJSON, err := extractPlayerJSON(string(body))
	if err != nil {
		return nil, err
	}

	return candidateFromPlayerResponse(playerJSON, videoID)
}

var playerJSONMarkers = []*regexp.Regexp{
	regexp.MustCompile(`var\s+ytInitialPlayerResponse\s*=\s*`),
	regexp.MustCompile(`window\["ytInitialPlayerResponse"\]\s*=\s*`),
	regexp.MustCompile(`"playerResponse"\s*:\s*`),
}

// extractPlayerJSON locates the embedded player object inside page HTML.
// Known assignment patterns are tried first; if none yield an object with
// streaming data, the brute-force scan takes over.
func extractPlayerJSON(html string) ([]byte, error) {
	for _, marker := range playerJSONMarkers {
		loc := marker.FindStringIndex(html)
		if loc == nil {
			continue
		}
		obj, ok := scanJSONObject(html, loc[1])
		if ok && strings.Contains(obj, "streamingData") {
			return []byte(obj), nil
		}
	}

	// Brute force: brace-scan backwards from each "streamingData" mention.
	rest := html
	offset := 0
	for i := 0; i < 5; i++ {
		idx := strings.Index(rest, `"streamingData"`)
		if idx < 0 {
			break
		}
		abs := offset + idx

		windowStart := abs - 2000
		if windowStart < 0 {
			windowStart = 0
		}
		if open := strings.LastIndex(html[windowStart:abs], "{"); open >= 0 {
			if obj, ok := scanJSONObject(html, windowStart+open); ok && strings.Contains(obj, "streamingData") {
				return []byte(obj), nil
			}
		}

		offset = abs + len(`"streamingData"`)
		rest = html[offset:]
	}

	return nil, fmt.Errorf("no player data found in page HTML")
}

// scanJSONObject brace-counts a JSON object starting at or after pos,
// respecting string literals and escapes.
func scanJSONObject(s string, pos int) (string, bool) {
	start := strings.IndexByte(s[pos:], '{')
	if start < 0 {
		return "", false
	}
	start += pos

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
