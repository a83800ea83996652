package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const ocrSpaceURL = "https://api.ocr.space/parse/image"

// OCRService sends documents to OCR.space and concatenates the per-page
// results.
type OCRService struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

func NewOCRService(apiKey string) *OCRService {
	return &OCRService{
		apiKey:   apiKey,
		endpoint: ocrSpaceURL,
		// OCR on large scanned documents is slow.
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

type ocrResponse struct {
	IsErroredOnProcessing bool
	ErrorMessage          json.RawMessage
	ParsedResults         []struct {
		ParsedText string
	}
}

// ProcessFile runs the file at path through OCR and returns the combined
// text of all pages.
func (s *OCRService) ProcessFile(ctx context.Context, path string) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("OCR API key is not configured")
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for OCR: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("failed to buffer file for OCR: %w", err)
	}

	fields := map[string]string{
		"apikey":            s.apiKey,
		"language":          "eng",
		"scale":             "true",
		"detectOrientation": "true",
		"OCREngine":         "2",
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return "", err
		}
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("OCR returned status %d: %s", resp.StatusCode, raw)
	}

	var parsed ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode OCR response: %w", err)
	}

	if parsed.IsErroredOnProcessing {
		return "", fmt.Errorf("OCR processing error: %s", string(parsed.ErrorMessage))
	}

	var b strings.Builder
	for _, result := range parsed.ParsedResults {
		b.WriteString(result.ParsedText)
		b.WriteString("\n")
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("OCR returned no text")
	}
	return text, nil
}
