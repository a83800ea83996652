package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"quizforge-backend/internal/models"
)

type GeminiService struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	rateChan chan struct{} // Token bucket
}

func NewGeminiService(apiKey string, concurrentReqs int) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-3-flash-preview")
	model.SetTemperature(0.3)
	model.SetTopP(0.95)

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:   client,
		model:    model,
		rateChan: rateChan,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// GenerateAssessment turns source material into a question set. Model output
// that cannot be parsed as a JSON question array is returned as a raw-text
// assessment rather than an error.
func (s *GeminiService) GenerateAssessment(ctx context.Context, content string, numQuestions int, difficulty, questionType string) (*models.Assessment, error) {
	if err := s.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer s.releaseRate()

	prompt := buildAssessmentPrompt(content, numQuestions, difficulty, questionType)

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Printf("gemini: candidate %d stopped early: %s", i, cand.FinishReason)
		}
	}

	rawText := extractText(resp)
	if strings.TrimSpace(rawText) == "" {
		return nil, fmt.Errorf("Gemini returned empty response")
	}

	return parseAssessment(rawText, questionType), nil
}

// BotResponse answers a free-form chat question. Failures degrade to a
// canned apology so the chat surface never errors on model hiccups.
func (s *GeminiService) BotResponse(ctx context.Context, message string) string {
	const fallback = "Sorry, I'm having trouble answering right now. Please try again in a moment."

	if err := s.acquireRate(ctx); err != nil {
		log.Printf("gemini: rate slot unavailable for bot response: %v", err)
		return fallback
	}
	defer s.releaseRate()

	prompt := "You are a helpful study assistant. Answer the following question clearly and concisely:\n\n" + message

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		log.Printf("gemini: bot response error: %v", err)
		return fallback
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return fallback
	}
	return text
}

// TranscribeAudio uses Gemini File API to transcribe uploaded audio bytes.
// Used as a fallback when no dedicated transcription provider is configured.
func (s *GeminiService) TranscribeAudio(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	if len(audio) == 0 {
		return "", fmt.Errorf("audio payload is empty")
	}

	file, err := s.client.UploadFile(ctx, "", bytes.NewReader(audio), &genai.UploadFileOptions{
		DisplayName: "media-audio",
		MIMEType:    mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload audio to Gemini: %w", err)
	}

	// Ensure remote file is cleaned up
	defer s.client.DeleteFile(context.Background(), file.Name)

	// Wait until file is active
	for i := 0; i < 20; i++ {
		current, getErr := s.client.GetFile(ctx, file.Name)
		if getErr != nil {
			return "", fmt.Errorf("failed to get uploaded file status: %w", getErr)
		}

		if current.State == genai.FileStateActive {
			file = current
			break
		}
		if current.State == genai.FileStateFailed {
			return "", fmt.Errorf("Gemini failed to process uploaded audio file")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	if file.State != genai.FileStateActive {
		return "", fmt.Errorf("audio file did not become active in time")
	}

	prompt := "Transcribe the provided audio verbatim. Return plain text only, without markdown, headers, or explanations."

	resp, err := s.model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.FileData{MIMEType: mimeType, URI: file.URI},
	)
	if err != nil {
		return "", fmt.Errorf("Gemini transcription error: %w", err)
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return "", fmt.Errorf("Gemini returned empty transcription")
	}

	return text, nil
}

// Helper functions

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

// stripCodeFences removes a leading/trailing markdown code fence if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// parseAssessment attempts to read a JSON question array out of the model
// output. It tries the whole text first, then salvages the outermost
// [...] span. A syntactically valid array IS the assessment, however sparse
// its entries; only text with no parseable array anywhere becomes a raw-text
// assessment.
func parseAssessment(rawText, questionType string) *models.Assessment {
	cleaned := stripCodeFences(rawText)

	var questions []models.Question
	err := json.Unmarshal([]byte(cleaned), &questions)
	if err != nil {
		// Try to extract JSON array embedded in prose
		start := strings.Index(cleaned, "[")
		end := strings.LastIndex(cleaned, "]")
		if start >= 0 && end > start {
			err = json.Unmarshal([]byte(cleaned[start:end+1]), &questions)
		}
	}
	if err != nil {
		log.Printf("gemini: could not parse question array, returning raw response (%d chars)", len(rawText))
		return &models.Assessment{RawResponse: rawText}
	}

	return &models.Assessment{Questions: normalizeQuestions(questions, questionType)}
}

// normalizeQuestions applies the default type and repairs true/false option
// lists. It never drops entries: what parsed is what the client gets.
func normalizeQuestions(questions []models.Question, questionType string) []models.Question {
	out := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		if q.Type == "" {
			q.Type = questionType
		}
		if strings.EqualFold(q.Type, "true_false") && len(q.Options) != 2 {
			q.Options = []string{"True", "False"}
		}
		out = append(out, q)
	}
	return out
}

func buildAssessmentPrompt(content string, numQuestions int, difficulty, questionType string) string {
	var b strings.Builder

	// Layer 1 — Role
	b.WriteString("You are an expert educational assessor. Generate quiz questions based on the following content.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON array. No preamble, no markdown, no backticks.\n\n")

	// Layer 2 — Count and type
	b.WriteString(fmt.Sprintf("Generate exactly %d questions.\n", numQuestions))
	switch strings.ToUpper(questionType) {
	case "MCQ":
		b.WriteString("Question type: multiple choice with exactly 4 options each.\n")
	case "TRUE_FALSE":
		b.WriteString(`Question type: true/false with exactly 2 options ["True", "False"].` + "\n")
	case "SHORT_ANSWER":
		b.WriteString("Question type: short answer. Omit the options field; the answer must be a short phrase.\n")
	default:
		b.WriteString(fmt.Sprintf("Question type: %s.\n", questionType))
	}

	// Layer 3 — Difficulty
	b.WriteString(fmt.Sprintf("Difficulty: %s\n", difficulty))
	switch difficulty {
	case "easy":
		b.WriteString("Easy = direct recall from text.\n")
	case "medium":
		b.WriteString("Medium = application of concepts.\n")
	case "hard":
		b.WriteString("Hard = analysis, synthesis, or inference beyond what is explicitly stated.\n")
	}

	b.WriteString(`
JSON schema per question:
{"question": "string", "type": "string", "options": ["string"], "answer": "string", "explanation": "string"}

The answer field must match one of the options verbatim for multiple choice.
`)

	// Layer 4 — Content
	b.WriteString("\n---CONTENT---\n")
	b.WriteString(content)
	b.WriteString("\n---END---\n")

	return b.String()
}
