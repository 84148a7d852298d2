package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/calsync/calsync/internal/apperror"
	"github.com/calsync/calsync/internal/model"
	"github.com/calsync/calsync/internal/service"
)

// WatchHandler serves the bot's channel-subscription commands.
type WatchHandler struct {
	watches *service.WatchService
	auth    *service.AuthService
	logger  *slog.Logger
}

// NewWatchHandler creates a WatchHandler. The auth service is only used to
// build calendar feed URLs for the bot's replies.
func NewWatchHandler(watches *service.WatchService, authService *service.AuthService, logger *slog.Logger) *WatchHandler {
	return &WatchHandler{watches: watches, auth: authService, logger: logger}
}

type watchRequest struct {
	CommunityID string `json:"community_id"`
	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name"`
	PlatformID  string `json:"platform_id"`
	Username    string `json:"username"`
}

type watchResponse struct {
	Applied     bool   `json:"applied"`
	CalendarURL string `json:"calendar_url"`
}

// HandleWatch subscribes a user to a channel.
//
// HTTP: POST /api/watch
//
// applied=false in the response means the user was already watching the
// channel; the request itself still succeeds.
func (h *WatchHandler) HandleWatch(w http.ResponseWriter, r *http.Request) {
	var req watchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid watch JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid JSON body",
		})
		return
	}

	result, err := h.watches.Watch(r.Context(), req.CommunityID, req.ChannelID, req.ChannelName, req.PlatformID, req.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, watchResponse{
		Applied:     result.Applied,
		CalendarURL: h.auth.CalendarURL(result.User),
	})
}

type unwatchRequest struct {
	ChannelID  string `json:"channel_id"`
	PlatformID string `json:"platform_id"`
}

// HandleUnwatch removes a channel subscription.
//
// HTTP: POST /api/unwatch
//
// 404 covers both "unknown user" and "was not watching" — the bot renders
// the same reply either way.
func (h *WatchHandler) HandleUnwatch(w http.ResponseWriter, r *http.Request) {
	var req unwatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid unwatch JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid JSON body",
		})
		return
	}

	if err := h.watches.Unwatch(r.Context(), req.ChannelID, req.PlatformID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleWatched reports whether any user watches a channel. The bot calls
// this before forwarding a message, so unwatched channels never reach
// extraction.
//
// HTTP: GET /api/watched
// QUERY: channel_id (required)
func (h *WatchHandler) HandleWatched(w http.ResponseWriter, r *http.Request) {
	channelID := r.URL.Query().Get("channel_id")
	if channelID == "" {
		writeError(w, apperror.ValidationFailed("channel_id", "channel_id is required"))
		return
	}

	watched, err := h.watches.IsChannelWatched(r.Context(), channelID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"watched": watched})
}

type listWatchesResponse struct {
	Channels    []model.WatchedChannel `json:"channels"`
	CalendarURL string                 `json:"calendar_url"`
}

// HandleList returns the channels a user watches.
//
// HTTP: GET /api/watch
// QUERY: platform_id (required), username (used if the account is new)
func (h *WatchHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	platformID := r.URL.Query().Get("platform_id")
	if platformID == "" {
		writeError(w, apperror.ValidationFailed("platform_id", "platform_id is required"))
		return
	}

	user, channels, err := h.watches.ListChannels(r.Context(), platformID, r.URL.Query().Get("username"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listWatchesResponse{
		Channels:    channels,
		CalendarURL: h.auth.CalendarURL(user),
	})
}
