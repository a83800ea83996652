package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"quizforge-backend/internal/models"
	"quizforge-backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func failResp(message string, err error, r *http.Request) models.ErrorResponse {
	resp := models.ErrorResponse{
		Success:   false,
		Message:   message,
		RequestID: r.Header.Get("X-Request-ID"),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		var parts []string
		for field, msg := range ve.Fields {
			parts = append(parts, field+": "+msg)
		}
		writeJSON(w, http.StatusBadRequest, failResp(message, fmt.Errorf("%s", strings.Join(parts, "; ")), r))
		return
	}

	var ce *services.ConflictError
	if errors.As(err, &ce) {
		writeJSON(w, http.StatusConflict, failResp(ce.Message, nil, r))
		return
	}

	var ue *services.UnauthorizedError
	if errors.As(err, &ue) {
		writeJSON(w, http.StatusUnauthorized, failResp(ue.Message, nil, r))
		return
	}

	if services.IsTimeout(err) {
		writeJSON(w, http.StatusGatewayTimeout, failResp(message, err, r))
		return
	}

	writeJSON(w, http.StatusInternalServerError, failResp(message, err, r))
}

// saveUpload copies a multipart file into the temp directory under a
// uuid-prefixed name, preserving the original extension. The caller owns
// the returned path and must remove it.
func saveUpload(file multipart.File, header *multipart.FileHeader, tempDir string) (string, error) {
	ext := filepath.Ext(header.Filename)
	destPath := filepath.Join(tempDir, uuid.New().String()+ext)

	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, file); err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("failed to save uploaded file: %w", err)
	}

	return destPath, nil
}

// firstUpload returns the first populated file field among names.
func firstUpload(r *http.Request, names ...string) (multipart.File, *multipart.FileHeader, error) {
	for _, name := range names {
		file, header, err := r.FormFile(name)
		if err == nil {
			return file, header, nil
		}
	}
	return nil, nil, fmt.Errorf("no file field found (tried %s)", strings.Join(names, ", "))
}
