package handlers

import (
	"encoding/json"
	"net/http"

	"quizforge-backend/internal/middleware"
	"quizforge-backend/internal/models"
	"quizforge-backend/internal/repository"
	"quizforge-backend/internal/services"
)

type AuthHandler struct {
	auth     *services.AuthService
	userRepo *repository.UserRepo
}

func NewAuthHandler(auth *services.AuthService, userRepo *repository.UserRepo) *AuthHandler {
	return &AuthHandler{auth: auth, userRepo: userRepo}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, failResp("Invalid request body", err, r))
		return
	}

	user, tokens, err := h.auth.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, "Registration failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"user":    user,
		"tokens":  tokens,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, failResp("Invalid request body", err, r))
		return
	}

	user, tokens, err := h.auth.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, "Login failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user,
		"tokens":  tokens,
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, failResp("User not found", err, r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}
