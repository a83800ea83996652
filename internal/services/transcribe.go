package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"quizforge-backend/internal/models"
)

const assemblyAIBaseURL = "https://api.assemblyai.com/v2"

// TranscribeService drives AssemblyAI: upload the media bytes, create a
// transcript job, poll until a terminal status.
type TranscribeService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	pollWait   time.Duration
	maxWait    time.Duration
}

func NewTranscribeService(apiKey string, pollWait, maxWait time.Duration) *TranscribeService {
	return &TranscribeService{
		apiKey:     apiKey,
		baseURL:    assemblyAIBaseURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		pollWait:   pollWait,
		maxWait:    maxWait,
	}
}

// Configured reports whether an API key is present.
func (s *TranscribeService) Configured() bool {
	return s.apiKey != ""
}

type transcriptStatus struct {
	ID         string                       `json:"id"`
	Status     string                       `json:"status"`
	Text       string                       `json:"text"`
	Confidence float64                      `json:"confidence"`
	Words      []models.TranscriptWord      `json:"words"`
	Utterances []models.TranscriptUtterance `json:"utterances"`
	Error      string                       `json:"error"`
}

// Transcribe uploads the file at path and polls the job until completion.
// Polling is bounded by the configured max wait; exceeding it is a
// TimeoutError, not an endless loop. The caller owns the file.
func (s *TranscribeService) Transcribe(ctx context.Context, path string) (*models.TranscriptResult, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("AssemblyAI API key is not configured")
	}

	media, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read media file: %w", err)
	}
	log.Printf("transcribe: uploading %s (%d bytes)", path, len(media))

	uploadURL, err := s.upload(ctx, media)
	if err != nil {
		return nil, err
	}

	jobID, err := s.createJob(ctx, uploadURL)
	if err != nil {
		return nil, err
	}
	log.Printf("transcribe: job %s started", jobID)

	deadline := time.Now().Add(s.maxWait)
	for {
		status, err := s.getStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case "completed":
			return &models.TranscriptResult{
				Text:       status.Text,
				Confidence: status.Confidence,
				Words:      status.Words,
				Utterances: status.Utterances,
			}, nil
		case "error", "failed":
			msg := status.Error
			if msg == "" {
				msg = "unknown error"
			}
			return nil, fmt.Errorf("transcription failed: %s", msg)
		}

		// 5s while actively processing, 10s while queued.
		wait := s.pollWait
		if status.Status != "processing" {
			wait = 2 * s.pollWait
		}

		if time.Now().Add(wait).After(deadline) {
			return nil, &TimeoutError{Stage: "transcription", Err: fmt.Errorf("job %s still %s after %v", jobID, status.Status, s.maxWait)}
		}

		select {
		case <-ctx.Done():
			return nil, &TimeoutError{Stage: "transcription", Err: ctx.Err()}
		case <-time.After(wait):
		}
	}
}

func (s *TranscribeService) upload(ctx context.Context, media []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/upload", bytes.NewReader(media))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", s.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload returned status %d: %s", resp.StatusCode, body)
	}

	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if out.UploadURL == "" {
		return "", fmt.Errorf("upload response missing upload_url")
	}
	return out.UploadURL, nil
}

func (s *TranscribeService) createJob(ctx context.Context, audioURL string) (string, error) {
	payload, _ := json.Marshal(map[string]interface{}{
		"audio_url":      audioURL,
		"punctuate":      true,
		"format_text":    true,
		"dual_channel":   false,
		"speaker_labels": true,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to create transcript job: %w", err)
	}
	defer resp.Body.Close()

	var out transcriptStatus
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode transcript response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("transcript response missing job ID")
	}
	return out.ID, nil
}

func (s *TranscribeService) getStatus(ctx context.Context, jobID string) (*transcriptStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/transcript/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status check failed: %w", err)
	}
	defer resp.Body.Close()

	var status transcriptStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &status, nil
}
