package models

type TranscriptWord struct {
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
	Speaker    *string `json:"speaker"`
}

type TranscriptUtterance struct {
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
	Speaker    string  `json:"speaker"`
}

// TranscriptResult is the payload of a completed speech-to-text job.
type TranscriptResult struct {
	Text       string                `json:"text"`
	Confidence float64               `json:"confidence,omitempty"`
	Words      []TranscriptWord      `json:"words,omitempty"`
	Utterances []TranscriptUtterance `json:"utterances,omitempty"`
}
