package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"quizforge-backend/internal/middleware"
	"quizforge-backend/internal/models"
	"quizforge-backend/internal/services"
)

const (
	maxVideoUploadBytes = 100 << 20
	maxMediaUploadBytes = 100 << 20
	minTranscriptChars  = 50
)

var allowedVideoMimes = map[string]bool{
	"video/mp4":       true,
	"video/mpeg":      true,
	"video/quicktime": true,
	"video/x-msvideo": true,
}

type AssessmentHandler struct {
	youtube    *services.YouTubeService
	extractor  *services.Extractor
	downloader *services.Downloader
	transcribe *services.TranscribeService
	gemini     *services.GeminiService
	media      *services.MediaService
	progress   *services.ProgressPublisher
	tempDir    string
}

func NewAssessmentHandler(
	youtube *services.YouTubeService,
	extractor *services.Extractor,
	downloader *services.Downloader,
	transcribe *services.TranscribeService,
	gemini *services.GeminiService,
	media *services.MediaService,
	progress *services.ProgressPublisher,
	tempDir string,
) *AssessmentHandler {
	return &AssessmentHandler{
		youtube:    youtube,
		extractor:  extractor,
		downloader: downloader,
		transcribe: transcribe,
		gemini:     gemini,
		media:      media,
		progress:   progress,
		tempDir:    tempDir,
	}
}

// FromYouTube generates an assessment from a YouTube URL. Captions are the
// cheap path; when none exist the audio pipeline takes over: extraction
// chain, download, transcription.
func (h *AssessmentHandler) FromYouTube(w http.ResponseWriter, r *http.Request) {
	var req models.YouTubeAssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, failResp("Invalid request body", err, r))
		return
	}
	req.ApplyDefaults()

	if strings.TrimSpace(req.VideoURL) == "" {
		writeJSON(w, http.StatusBadRequest, failResp("videoUrl is required", nil, r))
		return
	}

	videoID, err := services.ExtractVideoID(req.VideoURL)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, failResp("Invalid YouTube URL", err, r))
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	_, title, _, _ := h.youtube.GetVideoMetadata(ctx, videoID)
	h.progress.Stage(ctx, userID, "fetching_transcript", title)

	transcript, err := h.youtube.GetTranscript(ctx, videoID)
	if err != nil {
		log.Printf("assessment: no captions for %s, switching to audio pipeline: %v", videoID, err)
		transcript, err = h.transcribeFromStream(ctx, userID, videoID)
		if err != nil {
			writeServiceError(w, r, "Failed to obtain a transcript for this video", err)
			return
		}
	}

	if len(strings.TrimSpace(transcript)) < minTranscriptChars {
		writeJSON(w, http.StatusBadRequest, failResp("Transcript is too short to generate an assessment", nil, r))
		return
	}

	h.progress.Stage(ctx, userID, "generating_assessment", "")

	assessment, err := h.gemini.GenerateAssessment(ctx, transcript, req.NumberOfQuestions, req.Difficulty, req.Type)
	if err != nil {
		writeServiceError(w, r, "Failed to generate assessment", err)
		return
	}

	writeJSON(w, http.StatusOK, assessmentResponse(videoID, req, assessment))
}

// assessmentResponse builds the success envelope. Metadata echoes what the
// client asked for, not what the model delivered: the question count stays
// the requested one even when the model under-delivers or the assessment is
// a raw-text fallback.
func assessmentResponse(videoID string, req models.YouTubeAssessmentRequest, assessment *models.Assessment) models.AssessmentResponse {
	return models.AssessmentResponse{
		Success:    true,
		VideoID:    videoID,
		Assessment: *assessment,
		Metadata: models.AssessmentMetadata{
			Type:          req.Type,
			Difficulty:    req.Difficulty,
			QuestionCount: req.NumberOfQuestions,
		},
	}
}

// transcribeFromStream runs the full audio pipeline for a video with no
// usable captions.
func (h *AssessmentHandler) transcribeFromStream(ctx context.Context, userID uuid.UUID, videoID string) (string, error) {
	h.progress.Stage(ctx, userID, "resolving_stream", videoID)

	candidate, err := h.extractor.ResolveAudioStream(ctx, videoID)
	if err != nil {
		return "", err
	}
	if !candidate.IsAudioOnly() {
		log.Printf("assessment: no audio-only stream for %s, transcribing mixed format %s", videoID, candidate.MimeType)
	}

	audioPath := filepath.Join(h.tempDir, uuid.New().String()+".m4a")
	err = h.downloader.Download(ctx, candidate, audioPath, func(downloaded, total int64) {
		h.progress.Download(ctx, userID, downloaded, total)
	})
	if err != nil {
		return "", err
	}
	defer os.Remove(audioPath)

	h.progress.Stage(ctx, userID, "transcribing", "")

	return h.transcribeFile(ctx, audioPath, candidate.MimeType)
}

// transcribeFile transcribes local audio, preferring AssemblyAI and falling
// back to Gemini file transcription when no key is configured.
func (h *AssessmentHandler) transcribeFile(ctx context.Context, path, mimeType string) (string, error) {
	if h.transcribe.Configured() {
		result, err := h.transcribe.Transcribe(ctx, path)
		if err != nil {
			return "", err
		}
		return result.Text, nil
	}

	audio, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read audio file: %w", err)
	}
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(path))
	}
	if mimeType == "" {
		mimeType = "audio/mpeg"
	}
	// Gemini only needs the container type, not codec parameters.
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return h.gemini.TranscribeAudio(ctx, audio, mimeType)
}

// FromMedia generates an assessment from an uploaded audio or video file.
// The field name is flexible to match the various client builds in the wild.
func (h *AssessmentHandler) FromMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMediaUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, failResp("Uploaded file exceeds the 100MB limit", err, r))
		return
	}

	file, header, err := firstUpload(r, "media", "file", "audio", "video", "audioFile", "videoFile")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, failResp("No media file uploaded", err, r))
		return
	}
	defer file.Close()

	mediaPath, err := saveUpload(file, header, h.tempDir)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, failResp("Failed to store uploaded file", err, r))
		return
	}
	defer os.Remove(mediaPath)

	h.generateFromUpload(w, r, mediaPath, header.Header.Get("Content-Type"), false)
}

// FromVideo generates an assessment from an uploaded video. The audio track
// is extracted with ffmpeg before transcription.
func (h *AssessmentHandler) FromVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxVideoUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, failResp("Uploaded video exceeds the 100MB limit", err, r))
		return
	}

	file, header, err := firstUpload(r, "video")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, failResp("No video file uploaded (field name must be \"video\")", err, r))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !allowedVideoMimes[contentType] {
		writeJSON(w, http.StatusUnsupportedMediaType, failResp("Unsupported video format. Use mp4, mpeg, mov, or avi.", nil, r))
		return
	}

	videoPath, err := saveUpload(file, header, h.tempDir)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, failResp("Failed to store uploaded file", err, r))
		return
	}
	defer os.Remove(videoPath)

	h.generateFromUpload(w, r, videoPath, contentType, true)
}

// generateFromUpload runs the shared transcribe-then-generate tail for
// uploaded files. convertVideo pulls the audio track out first.
func (h *AssessmentHandler) generateFromUpload(w http.ResponseWriter, r *http.Request, path, contentType string, convertVideo bool) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	req := models.YouTubeAssessmentRequest{
		NumberOfQuestions: formInt(r, "numberOfQuestions"),
		Difficulty:        r.FormValue("difficulty"),
		Type:              r.FormValue("type"),
	}
	req.ApplyDefaults()

	audioPath := path
	if convertVideo {
		h.progress.Stage(ctx, userID, "extracting_audio", "")
		converted, err := h.media.ConvertVideoToAudio(ctx, path)
		if err != nil {
			writeServiceError(w, r, "Failed to extract audio from video", err)
			return
		}
		defer os.Remove(converted)
		audioPath = converted
		contentType = "audio/mpeg"
	}

	h.progress.Stage(ctx, userID, "transcribing", "")

	transcript, err := h.transcribeFile(ctx, audioPath, contentType)
	if err != nil {
		writeServiceError(w, r, "Failed to transcribe media", err)
		return
	}

	if len(strings.TrimSpace(transcript)) < minTranscriptChars {
		writeJSON(w, http.StatusBadRequest, failResp("Transcript is too short to generate an assessment", nil, r))
		return
	}

	h.progress.Stage(ctx, userID, "generating_assessment", "")

	assessment, err := h.gemini.GenerateAssessment(ctx, transcript, req.NumberOfQuestions, req.Difficulty, req.Type)
	if err != nil {
		writeServiceError(w, r, "Failed to generate assessment", err)
		return
	}

	writeJSON(w, http.StatusOK, assessmentResponse("", req, assessment))
}

// Status reports job state. Processing is synchronous today, so anything a
// client asks about has already finished.
func (h *AssessmentHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"jobId":   jobID,
		"status":  "completed",
		"message": "Assessments are processed synchronously; this job has finished.",
	})
}

// UploadHelp documents the upload endpoints for client developers.
func (h *AssessmentHandler) UploadHelp(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"endpoints": map[string]interface{}{
			"POST /api/v1/assessment/youtube": map[string]string{
				"body": `{"videoUrl": "...", "numberOfQuestions": 5, "difficulty": "medium", "type": "MCQ"}`,
			},
			"POST /api/v1/assessment/media": map[string]interface{}{
				"contentType": "multipart/form-data",
				"fields":      []string{"media", "file", "audio", "video", "audioFile", "videoFile"},
				"maxSize":     "100MB",
			},
			"POST /api/v1/assessment/video-assessment": map[string]interface{}{
				"contentType": "multipart/form-data",
				"field":       "video",
				"formats":     []string{"video/mp4", "video/mpeg", "video/quicktime", "video/x-msvideo"},
				"maxSize":     "100MB",
			},
			"POST /api/v1/assessment/document": map[string]interface{}{
				"contentType": "multipart/form-data",
				"fields":      []string{"document", "file"},
				"maxSize":     "10MB",
				"options":     map[string]string{"useOcr": "force OCR instead of direct extraction"},
			},
		},
	})
}

func formInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.FormValue(key))
	return n
}
