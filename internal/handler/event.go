package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/calsync/calsync/internal/apperror"
	"github.com/calsync/calsync/internal/auth"
	"github.com/calsync/calsync/internal/extract"
	"github.com/calsync/calsync/internal/model"
	"github.com/calsync/calsync/internal/service"
)

// EventHandler serves the event CRUD endpoints used by the dashboard.
type EventHandler struct {
	events *service.EventService
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(events *service.EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{events: events, logger: logger}
}

type listEventsResponse struct {
	Events []model.Event `json:"events"`
}

// HandleList returns events ordered by start time, wrapped in an object so
// the list can grow pagination fields without breaking clients.
//
// HTTP: GET /api/events
// QUERY: platform_id (optional) — restrict to that user's events
func (h *EventHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.List(r.Context(), r.URL.Query().Get("platform_id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listEventsResponse{Events: events})
}

type createEventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	SourceURL   string `json:"source_url"`
	OwnerID     string `json:"owner_id"` // optional, defaults to the authenticated user
}

// HandleCreate adds an event manually from the dashboard. The authenticated
// user becomes the owner unless owner_id names another user. Times are
// RFC 3339; an omitted end time defaults to one hour after the start.
//
// HTTP: POST /api/events (bearer token required)
func (h *EventHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid event JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid JSON body",
		})
		return
	}

	start, err := parseEventTime(req.StartTime, "start_time", true)
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := parseEventTime(req.EndTime, "end_time", false)
	if err != nil {
		writeError(w, err)
		return
	}

	ownerID := userID
	if req.OwnerID != "" {
		ownerID = req.OwnerID
	}

	event, err := h.events.Add(r.Context(), service.AddEventInput{
		OwnerUserID: ownerID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Start:       start,
		End:         end,
		SourceURL:   req.SourceURL,
		Reminders:   extract.DefaultReminderOffsets,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// HandleDelete removes an event.
//
// HTTP: DELETE /api/events/{id} (bearer token required)
func (h *EventHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.events.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// parseEventTime parses an RFC 3339 timestamp from a request field. A zero
// time is returned for an empty optional field.
func parseEventTime(value, field string, required bool) (time.Time, error) {
	if value == "" {
		if required {
			return time.Time{}, apperror.ValidationFailed(field, field+" is required")
		}
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, apperror.ValidationFailed(field, field+" must be an RFC 3339 timestamp")
	}
	return t, nil
}
