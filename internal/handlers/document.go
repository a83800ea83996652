package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"quizforge-backend/internal/models"
	"quizforge-backend/internal/services"
)

const maxDocumentBytes = 10 << 20

type DocumentHandler struct {
	extract *services.FileExtractService
	tempDir string
}

func NewDocumentHandler(extract *services.FileExtractService, tempDir string) *DocumentHandler {
	return &DocumentHandler{extract: extract, tempDir: tempDir}
}

// ProcessPDF extracts text from an uploaded document. The useOcr form flag
// skips direct extraction and goes straight to OCR.
func (h *DocumentHandler) ProcessPDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, failResp("Uploaded document exceeds the 10MB limit", err, r))
		return
	}

	file, header, err := firstUpload(r, "document", "file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, failResp("No document uploaded", err, r))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".pdf", ".txt", ".docx":
	default:
		writeJSON(w, http.StatusUnsupportedMediaType, failResp("Unsupported document type. Use pdf, txt, or docx.", nil, r))
		return
	}

	docPath, err := saveUpload(file, header, h.tempDir)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, failResp("Failed to store uploaded file", err, r))
		return
	}
	defer os.Remove(docPath)

	forceOCR := r.FormValue("useOcr") == "true"

	text, err := h.extract.ExtractText(r.Context(), docPath, forceOCR)
	if err != nil {
		writeServiceError(w, r, "Failed to extract text from document", err)
		return
	}

	writeJSON(w, http.StatusOK, models.DocumentResponse{
		Success: true,
		Text:    text,
		Length:  len(text),
		Message: "Text extracted successfully",
	})
}
