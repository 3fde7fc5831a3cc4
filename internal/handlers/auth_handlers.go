package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"chat-backend/internal/auth"
	"chat-backend/internal/models"

	"github.com/rs/zerolog"
)

type AuthHandlers struct {
	authService *auth.Service
	log         zerolog.Logger
}

func NewAuthHandlers(authService *auth.Service, log zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		log:         log.With().Str("component", "auth_handlers").Logger(),
	}
}

func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.authService.Register(r.Context(), &req); err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateUsername):
			writeError(w, http.StatusBadRequest, "Username already exists")
		case errors.Is(err, models.ErrDuplicateEmail):
			writeError(w, http.StatusBadRequest, "Email already exists")
		default:
			h.log.Error().Err(err).Msg("registration failed")
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "User registered successfully",
	})
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		if !errors.Is(err, models.ErrInvalidCredentials) {
			h.log.Error().Err(err).Msg("login failed")
		}
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
