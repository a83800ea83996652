package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	urlpkg "net/url"
	"os"
	"strings"
	"time"

	yt "github.com/kkdai/youtube/v2"

	"quizforge-backend/internal/config"
	"quizforge-backend/internal/models"
)

// ExtractionStrategy is one self-contained way of resolving a playable
// audio stream for a video ID. Strategies are tried strictly in order; each
// failure advances the chain.
type ExtractionStrategy interface {
	Name() string
	Resolve(ctx context.Context, videoID string) (*models.StreamCandidate, error)
}

type Extractor struct {
	strategies []ExtractionStrategy
	timeout    time.Duration
}

// NewExtractor builds the strategy chain from static configuration: direct
// client, cookie-authenticated client, one proxy-routed client per proxy
// URL, the innertube device profiles, then raw page scraping.
func NewExtractor(cfg *config.Config) *Extractor {
	var strategies []ExtractionStrategy

	strategies = append(strategies, &clientStrategy{
		name:   "direct client",
		client: &yt.Client{},
	})

	if cfg.CookieFile != "" {
		cookieHeader, err := loadCookieHeader(cfg.CookieFile)
		if err != nil {
			log.Printf("extraction: cookie file %s unusable, skipping cookie strategy: %v", cfg.CookieFile, err)
		} else {
			strategies = append(strategies, &clientStrategy{
				name: "cookie client",
				client: &yt.Client{HTTPClient: &http.Client{
					Transport: &headerTransport{headers: map[string]string{"Cookie": cookieHeader}},
				}},
			})
		}
	}

	for _, proxyURL := range cfg.ProxyURLs {
		parsed, err := urlpkg.Parse(proxyURL)
		if err != nil {
			log.Printf("extraction: invalid proxy URL %q, skipping: %v", proxyURL, err)
			continue
		}
		strategies = append(strategies, &clientStrategy{
			name: "proxy client " + parsed.Host,
			client: &yt.Client{HTTPClient: &http.Client{
				Transport: &http.Transport{Proxy: http.ProxyURL(parsed)},
			}},
		})
	}

	httpClient := &http.Client{}
	for _, profile := range innertubeProfiles {
		strategies = append(strategies, &innertubeStrategy{
			httpClient: httpClient,
			profile:    profile,
		})
	}

	strategies = append(strategies,
		&pageScrapeStrategy{
			name:       "watch page scrape",
			pageURL:    "https://www.youtube.com/watch?v=%s",
			userAgent:  desktopUserAgent,
			httpClient: httpClient,
		},
		&pageScrapeStrategy{
			name:       "mobile page scrape",
			pageURL:    "https://m.youtube.com/watch?v=%s",
			userAgent:  mobileUserAgent,
			httpClient: httpClient,
		},
		&pageScrapeStrategy{
			name:       "embed page scrape",
			pageURL:    "https://www.youtube.com/embed/%s",
			userAgent:  desktopUserAgent,
			httpClient: httpClient,
		},
	)

	return &Extractor{
		strategies: strategies,
		timeout:    cfg.ExtractionTimeout,
	}
}

// NewExtractorWithStrategies is used by tests and callers that assemble
// their own chain.
func NewExtractorWithStrategies(timeout time.Duration, strategies ...ExtractionStrategy) *Extractor {
	return &Extractor{strategies: strategies, timeout: timeout}
}

// ResolveAudioStream tries each strategy in order and returns the first
// usable candidate. Only exhaustion of the whole chain is an error; the
// aggregated message names every individual failure.
func (e *Extractor) ResolveAudioStream(ctx context.Context, videoID string) (*models.StreamCandidate, error) {
	var attempts []StrategyError

	for _, s := range e.strategies {
		if ctx.Err() != nil {
			return nil, &TimeoutError{Stage: "extraction", Err: ctx.Err()}
		}

		sctx, cancel := context.WithTimeout(ctx, e.timeout)
		candidate, err := s.Resolve(sctx, videoID)
		cancel()

		if err != nil {
			log.Printf("extraction: %s failed for %s: %v", s.Name(), videoID, err)
			attempts = append(attempts, StrategyError{Strategy: s.Name(), Err: err})
			continue
		}
		if candidate == nil || candidate.URL == "" {
			attempts = append(attempts, StrategyError{Strategy: s.Name(), Err: fmt.Errorf("empty stream URL")})
			continue
		}

		log.Printf("extraction: %s resolved %s (%s, %d bps)", s.Name(), videoID, candidate.MimeType, candidate.Bitrate)
		return candidate, nil
	}

	return nil, &ExhaustedError{Attempts: attempts}
}

// clientStrategy resolves through the youtube client library. The direct,
// cookie-authenticated, and proxy-routed chain entries are all this type
// with different HTTP clients underneath.
type clientStrategy struct {
	name   string
	client *yt.Client
}

func (s *clientStrategy) Name() string { return s.name }

func (s *clientStrategy) Resolve(ctx context.Context, videoID string) (*models.StreamCandidate, error) {
	video, err := s.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video metadata: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil, fmt.Errorf("no audio formats available")
	}

	converted := make([]streamFormat, len(formats))
	for i, f := range formats {
		converted[i] = streamFormat{
			URL:          f.URL,
			MimeType:     f.MimeType,
			Bitrate:      f.Bitrate,
			AudioQuality: f.AudioQuality,
			Width:        f.Width,
			Height:       f.Height,
		}
	}

	candidate, err := pickBestFormat(converted, video.Title, videoID)
	if err != nil {
		return nil, err
	}

	// Ciphered streams carry no direct URL; resolve it through the client.
	if candidate.URL == "" {
		for i := range formats {
			if formats[i].MimeType == candidate.MimeType && formats[i].Bitrate == candidate.Bitrate {
				streamURL, err := s.client.GetStreamURLContext(ctx, video, &formats[i])
				if err != nil {
					return nil, fmt.Errorf("failed to resolve stream URL: %w", err)
				}
				candidate.URL = streamURL
				break
			}
		}
	}

	return candidate, nil
}

// pickBestFormat applies the selection policy: audio-only formats win,
// highest bitrate first; otherwise mixed formats carrying audio, smallest
// video dimensions (or highest bitrate when audio quality is comparable).
func pickBestFormat(formats []streamFormat, title, videoID string) (*models.StreamCandidate, error) {
	if len(formats) == 0 {
		return nil, fmt.Errorf("no formats found in player data")
	}
	if title == "" {
		title = "youtube_" + videoID
	}

	var audioOnly []streamFormat
	for _, f := range formats {
		if strings.HasPrefix(f.MimeType, "audio") {
			audioOnly = append(audioOnly, f)
		}
	}

	if len(audioOnly) > 0 {
		best := audioOnly[0]
		for _, f := range audioOnly[1:] {
			if f.Bitrate > best.Bitrate {
				best = f
			}
		}
		return best.toCandidate(title), nil
	}

	var mixed []streamFormat
	for _, f := range formats {
		if f.AudioQuality != "" || !strings.Contains(f.MimeType, "video only") {
			mixed = append(mixed, f)
		}
	}
	if len(mixed) == 0 {
		return nil, fmt.Errorf("no audio formats found")
	}

	best := mixed[0]
	for _, f := range mixed[1:] {
		if f.AudioQuality != "" && best.AudioQuality != "" {
			if f.Bitrate > best.Bitrate {
				best = f
			}
		} else if f.Width < best.Width {
			best = f
		}
	}
	return best.toCandidate(title), nil
}

type streamFormat struct {
	URL          string `json:"url"`
	MimeType     string `json:"mimeType"`
	Bitrate      int    `json:"bitrate"`
	AudioQuality string `json:"audioQuality"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

func (f streamFormat) toCandidate(title string) *models.StreamCandidate {
	return &models.StreamCandidate{
		URL:          f.URL,
		Title:        title,
		MimeType:     f.MimeType,
		Bitrate:      f.Bitrate,
		AudioQuality: f.AudioQuality,
		Width:        f.Width,
		Height:       f.Height,
	}
}

// playerResponse is the slice of YouTube's player payload both the
// innertube and page-scrape strategies consume.
type playerResponse struct {
	StreamingData struct {
		Formats         []streamFormat `json:"formats"`
		AdaptiveFormats []streamFormat `json:"adaptiveFormats"`
	} `json:"streamingData"`
	VideoDetails struct {
		Title string `json:"title"`
	} `json:"videoDetails"`
}

func (p *playerResponse) allFormats() []streamFormat {
	// Fresh slice: appending to AdaptiveFormats directly could write into
	// its backing array.
	combined := make([]streamFormat, 0, len(p.StreamingData.AdaptiveFormats)+len(p.StreamingData.Formats))
	combined = append(combined, p.StreamingData.AdaptiveFormats...)
	return append(combined, p.StreamingData.Formats...)
}

func candidateFromPlayerResponse(data []byte, videoID string) (*models.StreamCandidate, error) {
	var pr playerResponse
	if err := json.Unmarshal(data, &pr); err != nil {
		return nil, fmt.Errorf("failed to parse player response: %w", err)
	}
	return pickBestFormat(pr.allFormats(), pr.VideoDetails.Title, videoID)
}

// headerTransport injects static headers (session cookies) into every
// outgoing request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		clone.Header.Set(k, v)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

// loadCookieHeader reads a JSON cookie export ([{"name":..,"value":..}])
// and renders it as a Cookie header value.
func loadCookieHeader(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var cookies []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &cookies); err != nil {
		return "", fmt.Errorf("failed to parse cookie file: %w", err)
	}
	if len(cookies) == 0 {
		return "", fmt.Errorf("cookie file is empty")
	}

	pairs := make([]string, len(cookies))
	for i, c := range cookies {
		pairs[i] = c.Name + "=" + c.Value
	}
	return strings.Join(pairs, "; "), nil
}

const (
	desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	mobileUserAgent  = "Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/604.1"
)
