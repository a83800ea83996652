package services

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	ytapi "github.com/hightemp/youtube-transcript-api-go/api"
	"github.com/redis/go-redis/v9"

	"quizforge-backend/internal/models"
)

const transcriptCacheTTL = 24 * time.Hour

// YouTubeService fetches transcripts and metadata. Transcript lookup order:
// redis cache, transcript microservice (when configured), caption API,
// timedtext page scrape.
type YouTubeService struct {
	httpClient    *http.Client
	transcriptAPI *ytapi.YouTubeTranscriptApi
	serviceURL    string
	redis         *redis.Client
}

func NewYouTubeService(transcriptServiceURL string, redisClient *redis.Client) *YouTubeService {
	return &YouTubeService{
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		transcriptAPI: ytapi.NewYouTubeTranscriptApi(),
		serviceURL:    strings.TrimSuffix(transcriptServiceURL, "/"),
		redis:         redisClient,
	}
}

var youtubeIDRegex = regexp.MustCompile(`(?:youtube\.com/(?:watch\?v=|embed/|shorts/)|youtu\.be/)([\w-]{11})`)

// ExtractVideoID pulls the 11-character video ID out of the supported URL
// shapes (watch, embed, shorts, youtu.be). A bare ID passes through.
func ExtractVideoID(videoURL string) (string, error) {
	if m := youtubeIDRegex.FindStringSubmatch(videoURL); len(m) > 1 {
		return m[1], nil
	}
	if regexp.MustCompile(`^[\w-]{11}$`).MatchString(videoURL) {
		return videoURL, nil
	}
	return "", fmt.Errorf("invalid YouTube URL: %s", videoURL)
}

// GetTranscript resolves the transcript for a video, caching successes.
func (s *YouTubeService) GetTranscript(ctx context.Context, videoID string) (string, error) {
	cacheKey := "transcript:" + videoID
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			return cached, nil
		}
	}

	transcript, err := s.fetchTranscript(ctx, videoID)
	if err != nil {
		return "", err
	}

	if s.redis != nil {
		s.redis.Set(ctx, cacheKey, transcript, transcriptCacheTTL)
	}
	return transcript, nil
}

func (s *YouTubeService) fetchTranscript(ctx context.Context, videoID string) (string, error) {
	if s.serviceURL != "" {
		transcript, err := s.getTranscriptViaService(ctx, videoID)
		if err == nil {
			return transcript, nil
		}
		log.Printf("youtube: transcript service failed for %s, falling back to captions: %v", videoID, err)
	}

	transcript, err := s.transcriptAPI.GetTranscript(videoID, []string{"en", "en-US", "en-GB"})
	if err != nil {
		// Fallback: request any available language
		transcript, err = s.transcriptAPI.GetTranscript(videoID, nil)
		if err != nil {
			legacyTranscript, legacyErr := s.getTranscriptViaTimedText(ctx, videoID)
			if legacyErr == nil {
				return legacyTranscript, nil
			}
			return "", fmt.Errorf("no subtitles available via transcript API (%v) and timedtext fallback failed (%v)", err, legacyErr)
		}
	}

	if len(transcript.Entries) == 0 {
		return "", fmt.Errorf("subtitle track is empty")
	}

	var fullText strings.Builder
	for _, entry := range transcript.Entries {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		fullText.WriteString(text)
		fullText.WriteString(" ")
	}

	cleaned := strings.TrimSpace(fullText.String())
	if cleaned == "" {
		return "", fmt.Errorf("subtitle text resolved to empty content")
	}

	return cleaned, nil
}

func (s *YouTubeService) getTranscriptViaService(ctx context.Context, videoID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.serviceURL+"/api/transcript/"+videoID, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcript service returned status %d", resp.StatusCode)
	}

	var out struct {
		Transcript string `json:"transcript"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode transcript service response: %w", err)
	}
	if strings.TrimSpace(out.Transcript) == "" {
		return "", fmt.Errorf("transcript service returned empty transcript")
	}
	return out.Transcript, nil
}

type timedTextXML struct {
	XMLName xml.Name  `xml:"transcript"`
	Texts   []textXML `xml:"text"`
}

type textXML struct {
	Start string `xml:"start,attr"`
	Dur   string `xml:"dur,attr"`
	Text  string `xml:",chardata"`
}

func (s *YouTubeService) getTranscriptViaTimedText(ctx context.Context, videoID string) (string, error) {
	pageURL := fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	req.Header.Set("User-Agent", desktopUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch YouTube page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read YouTube page: %w", err)
	}

	captionURL, err := extractCaptionURL(string(body))
	if err != nil {
		return "", err
	}

	captionReq, _ := http.NewRequestWithContext(ctx, http.MethodGet, captionURL, nil)
	captionResp, err := s.httpClient.Do(captionReq)
	if err != nil {
		return "", fmt.Errorf("failed to fetch captions: %w", err)
	}
	defer captionResp.Body.Close()

	captionBody, err := io.ReadAll(captionResp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read captions: %w", err)
	}

	transcript, err := parseCaptionsXML(captionBody)
	if err != nil {
		return "", fmt.Errorf("failed to parse captions XML: %w", err)
	}

	return transcript, nil
}

func extractCaptionURL(pageHTML string) (string, error) {
	re := regexp.MustCompile(`"captionTracks"\s*:\s*\[(.*?)\],\s*"`)
	matches := re.FindStringSubmatch(pageHTML)
	if len(matches) < 2 {
		re2 := regexp.MustCompile(`"playerCaptionsTracklistRenderer"\s*:\s*\{(?:.*?,)?\s*"captionTracks"\s*:\s*\[(.*?)\],\s*"`)
		matches = re2.FindStringSubmatch(pageHTML)
		if len(matches) < 2 {
			return "", fmt.Errorf("no captions available for this video")
		}
	}

	tracksJSON := matches[1]
	reURL := regexp.MustCompile(`"baseUrl"\s*:\s*"(.*?)"`)
	urlMatches := reURL.FindStringSubmatch(tracksJSON)
	if len(urlMatches) < 2 {
		return "", fmt.Errorf("caption track found but baseUrl missing")
	}

	// The page embeds the URL JSON-escaped.
	u := urlMatches[1]
	u = strings.ReplaceAll(u, "\\u0026", "&")
	u = strings.ReplaceAll(u, `\/`, "/")

	return u, nil
}

func parseCaptionsXML(data []byte) (string, error) {
	var tt timedTextXML
	if err := xml.Unmarshal(data, &tt); err != nil {
		return "", err
	}

	var parts []string
	for _, t := range tt.Texts {
		text := html.UnescapeString(t.Text)
		text = strings.TrimSpace(text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("captions XML empty")
	}

	return strings.Join(parts, " "), nil
}

// GetVideoMetadata fetches title/channel/thumbnail via the oEmbed endpoint.
func (s *YouTubeService) GetVideoMetadata(ctx context.Context, videoID string) (*models.VideoReference, string, string, error) {
	oembedURL := "https://www.youtube.com/oembed?url=https://www.youtube.com/watch?v=" + videoID + "&format=json"
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, oembedURL, nil)

	var oembed struct {
		Title        string `json:"title"`
		AuthorName   string `json:"author_name"`
		ThumbnailURL string `json:"thumbnail_url"`
	}

	resp, err := s.httpClient.Do(req)
	if err == nil && resp.StatusCode == http.StatusOK {
		defer resp.Body.Close()
		json.NewDecoder(resp.Body).Decode(&oembed)
	} else if resp != nil {
		resp.Body.Close()
	}

	if oembed.Title == "" {
		oembed.Title = "YouTube Video"
	}
	if oembed.ThumbnailURL == "" {
		oembed.ThumbnailURL = "https://img.youtube.com/vi/" + videoID + "/maxresdefault.jpg"
	}

	ref := &models.VideoReference{
		VideoID:   videoID,
		SourceURL: "https://www.youtube.com/watch?v=" + videoID,
	}
	return ref, oembed.Title, oembed.ThumbnailURL, nil
}
