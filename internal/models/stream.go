package models

// VideoReference is a parsed video identifier plus the URL it came from.
// Immutable once parsed; lives for one request.
type VideoReference struct {
	VideoID   string
	SourceURL string
}

// StreamCandidate is the playable URL plus format metadata chosen from the
// available formats by the extraction chain. Consumed once by the downloader.
type StreamCandidate struct {
	URL          string
	Title        string
	MimeType     string
	Bitrate      int
	AudioQuality string
	Width        int
	Height       int
}

// IsAudioOnly reports whether the candidate's mime type indicates a pure
// audio stream.
func (c *StreamCandidate) IsAudioOnly() bool {
	return len(c.MimeType) >= 5 && c.MimeType[:5] == "audio"
}
