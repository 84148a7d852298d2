// Package handler contains the HTTP layer: request parsing, response
// encoding, and nothing else. All decisions happen in the service layer.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/calsync/calsync/internal/auth"
	"github.com/calsync/calsync/internal/model"
	"github.com/calsync/calsync/internal/service"
)

// AuthHandler serves login and profile endpoints for the dashboard.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, logger: logger}
}

type loginRequest struct {
	Username   string `json:"username"`
	PlatformID string `json:"platform_id"`
}

type loginResponse struct {
	AccessToken string      `json:"access_token"`
	User        *model.User `json:"user"`
	CalendarURL string      `json:"calendar_url"`
}

// HandleLogin signs a user in by platform identity, creating the account on
// first contact.
//
// HTTP: POST /api/auth/login
// BODY: {"username": "alice", "platform_id": "123456789"}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid login JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid JSON body",
		})
		return
	}

	result, err := h.auth.Login(r.Context(), req.Username, req.PlatformID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: result.AccessToken,
		User:        result.User,
		CalendarURL: result.CalendarURL,
	})
}

type meResponse struct {
	User        *model.User `json:"user"`
	CalendarURL string      `json:"calendar_url"`
}

// HandleMe returns the authenticated user's profile and feed URL.
//
// HTTP: GET /api/auth/me (bearer token required)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Authentication required",
		})
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		User:        user,
		CalendarURL: h.auth.CalendarURL(user),
	})
}
