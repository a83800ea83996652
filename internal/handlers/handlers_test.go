package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"quizforge-backend/internal/models"
	"quizforge-backend/internal/services"
)

// ─── Assessment Handler Tests ───

func newAssessmentHandler(t *testing.T) *AssessmentHandler {
	t.Helper()
	// Validation failures must be rejected before any service is touched,
	// so nil dependencies are safe here.
	return NewAssessmentHandler(nil, nil, nil, nil, nil, nil, nil, t.TempDir())
}

func TestAssessmentResponse_EchoesRequestedQuestionCount(t *testing.T) {
	req := models.YouTubeAssessmentRequest{NumberOfQuestions: 3, Difficulty: "medium", Type: "MCQ"}

	// Raw-text fallback carries no parsed questions at all.
	resp := assessmentResponse("abc123def45", req, &models.Assessment{RawResponse: "not json"})
	if resp.Metadata.QuestionCount != 3 {
		t.Errorf("raw fallback: expected requested count 3, got %d", resp.Metadata.QuestionCount)
	}

	// Model under-delivering must not shrink the echoed count either.
	resp = assessmentResponse("", req, &models.Assessment{Questions: []models.Question{{Question: "Q1"}}})
	if resp.Metadata.QuestionCount != 3 {
		t.Errorf("under-delivery: expected requested count 3, got %d", resp.Metadata.QuestionCount)
	}

	body, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(body), `"questionCount":3`) {
		t.Errorf("expected questionCount 3 in body, got %s", body)
	}
}

func TestFromYouTube_InvalidBody(t *testing.T) {
	h := newAssessmentHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessment/youtube", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()

	h.FromYouTube(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	assertFailureEnvelope(t, rr)
}

func TestFromYouTube_MissingURL(t *testing.T) {
	h := newAssessmentHandler(t)

	body, _ := json.Marshal(map[string]interface{}{"numberOfQuestions": 5})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessment/youtube", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.FromYouTube(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestFromYouTube_InvalidURL(t *testing.T) {
	h := newAssessmentHandler(t)

	body, _ := json.Marshal(map[string]string{"videoUrl": "https://vimeo.com/99"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessment/youtube", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.FromYouTube(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-YouTube URL, got %d", rr.Code)
	}
}

func multipartBody(t *testing.T, field, filename, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename)}
	hdr["Content-Type"] = []string{contentType}
	part, err := w.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(content))
	w.Close()

	return &buf, w.FormDataContentType()
}

func TestFromVideo_MissingFile(t *testing.T) {
	h := newAssessmentHandler(t)

	body, contentType := multipartBody(t, "wrongfield", "clip.mp4", "video/mp4", "bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessment/video-assessment", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()

	h.FromVideo(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing video field, got %d", rr.Code)
	}
}

func TestFromVideo_UnsupportedMime(t *testing.T) {
	h := newAssessmentHandler(t)

	body, contentType := multipartBody(t, "video", "clip.mkv", "video/x-matroska", "bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessment/video-assessment", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()

	h.FromVideo(rr, req)

	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415 for mkv upload, got %d", rr.Code)
	}
}

func TestFromMedia_MissingFile(t *testing.T) {
	h := newAssessmentHandler(t)

	body, contentType := multipartBody(t, "unrelated", "a.mp3", "audio/mpeg", "bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessment/media", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()

	h.FromMedia(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when no media field matches, got %d", rr.Code)
	}
}

func TestStatus_AlwaysCompleted(t *testing.T) {
	h := newAssessmentHandler(t)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("jobId", "job-42")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessment/status/job-42", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()

	h.Status(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "completed" {
		t.Errorf("expected completed status, got %v", resp["status"])
	}
	if resp["jobId"] != "job-42" {
		t.Errorf("expected jobId echoed, got %v", resp["jobId"])
	}
}

func TestUploadHelp(t *testing.T) {
	h := newAssessmentHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessment/upload-help", nil)
	rr := httptest.NewRecorder()

	h.UploadHelp(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "video-assessment") {
		t.Error("expected endpoint documentation in response")
	}
}

// ─── Document Handler Tests ───

func TestProcessPDF_UnsupportedType(t *testing.T) {
	h := NewDocumentHandler(nil, t.TempDir())

	body, contentType := multipartBody(t, "document", "image.png", "image/png", "bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessment/document", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()

	h.ProcessPDF(rr, req)

	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415 for png upload, got %d", rr.Code)
	}
}

func TestProcessPDF_MissingFile(t *testing.T) {
	h := NewDocumentHandler(nil, t.TempDir())

	body, contentType := multipartBody(t, "nothing", "a.pdf", "application/pdf", "bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessment/document", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()

	h.ProcessPDF(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing document field, got %d", rr.Code)
	}
}

// ─── Chatbot Handler Tests ───

func TestBotResponse_MissingMessage(t *testing.T) {
	h := NewChatbotHandler(nil, nil, nil, nil, nil, t.TempDir())

	body, _ := json.Marshal(map[string]string{"message": "  "})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chatbot/bot-response", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.BotResponse(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank message, got %d", rr.Code)
	}
}

func TestYTToAudio_InvalidURL(t *testing.T) {
	h := NewChatbotHandler(nil, nil, nil, nil, nil, t.TempDir())

	body, _ := json.Marshal(map[string]string{"videoUrl": "not-a-url"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chatbot/yt-to-audio", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.YTToAudio(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid URL, got %d", rr.Code)
	}
}

// ─── Error Mapping ───

func TestWriteServiceError_Taxonomy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"email": "bad"}}, http.StatusBadRequest},
		{"conflict", &services.ConflictError{Message: "taken"}, http.StatusConflict},
		{"unauthorized", &services.UnauthorizedError{Message: "nope"}, http.StatusUnauthorized},
		{"timeout", &services.TimeoutError{Stage: "transcription"}, http.StatusGatewayTimeout},
		{"exhausted", &services.ExhaustedError{Attempts: []services.StrategyError{{Strategy: "direct client", Err: fmt.Errorf("403")}}}, http.StatusInternalServerError},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Request-ID", "req-1")
			rr := httptest.NewRecorder()

			writeServiceError(rr, req, "operation failed", tc.err)

			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
			assertFailureEnvelope(t, rr)
		})
	}
}

func assertFailureEnvelope(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()

	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if resp.Success {
		t.Error("expected success=false in failure envelope")
	}
	if resp.Message == "" {
		t.Error("expected non-empty message in failure envelope")
	}
}
