package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"quizforge-backend/internal/middleware"
	"quizforge-backend/internal/services"
)

type ChatbotHandler struct {
	youtube    *services.YouTubeService
	extractor  *services.Extractor
	downloader *services.Downloader
	gemini     *services.GeminiService
	progress   *services.ProgressPublisher
	tempDir    string
}

func NewChatbotHandler(
	youtube *services.YouTubeService,
	extractor *services.Extractor,
	downloader *services.Downloader,
	gemini *services.GeminiService,
	progress *services.ProgressPublisher,
	tempDir string,
) *ChatbotHandler {
	return &ChatbotHandler{
		youtube:    youtube,
		extractor:  extractor,
		downloader: downloader,
		gemini:     gemini,
		progress:   progress,
		tempDir:    tempDir,
	}
}

// YTToAudio downloads a video's audio track and streams it back with range
// support so audio players can seek.
func (h *ChatbotHandler) YTToAudio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VideoURL string `json:"videoUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, failResp("Invalid request body", err, r))
		return
	}

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

	h.progress.Stage(ctx, userID, "resolving_stream", videoID)

	candidate, err := h.extractor.ResolveAudioStream(ctx, videoID)
	if err != nil {
		writeServiceError(w, r, "Failed to extract audio from video", err)
		return
	}

	audioPath := filepath.Join(h.tempDir, uuid.New().String()+".mp3")
	err = h.downloader.Download(ctx, candidate, audioPath, func(downloaded, total int64) {
		h.progress.Download(ctx, userID, downloaded, total)
	})
	if err != nil {
		writeServiceError(w, r, "Failed to download audio", err)
		return
	}
	defer os.Remove(audioPath)

	f, err := os.Open(audioPath)
	if err != nil {
		writeServiceError(w, r, "Failed to open downloaded audio", err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeServiceError(w, r, "Failed to stat downloaded audio", err)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", `attachment; filename="`+videoID+`.mp3"`)
	// ServeContent handles Range requests and 206 responses.
	http.ServeContent(w, r, videoID+".mp3", info.ModTime(), f)
}

// BotResponse answers a free-form chat message.
func (h *ChatbotHandler) BotResponse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, failResp("Invalid request body", err, r))
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, failResp("message is required", nil, r))
		return
	}

	response := h.gemini.BotResponse(r.Context(), req.Message)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"response": response,
	})
}
