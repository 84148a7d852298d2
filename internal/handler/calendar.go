package handler

import (
	"log/slog"
	"net/http"

	"github.com/calsync/calsync/internal/feed"
)

// CalendarHandler serves the iCalendar feed. This is the one endpoint meant
// for third-party clients (Google Calendar, Apple Calendar) rather than our
// own bot or dashboard, so it speaks text/calendar instead of JSON.
type CalendarHandler struct {
	feed   *feed.Generator
	logger *slog.Logger
}

// NewCalendarHandler creates a CalendarHandler.
func NewCalendarHandler(generator *feed.Generator, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{feed: generator, logger: logger}
}

// HandleFeed renders a user's events as an iCalendar document.
//
// HTTP: GET /api/calendar/{token}.ics
//
// The token is the only credential: unguessable, shareable, revocable by
// regenerating. Calendar clients can't send bearer headers, so this is the
// standard private-URL pattern webcal feeds use.
func (h *CalendarHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Calendar token is required",
		})
		return
	}

	data, err := h.feed.Generate(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("failed to write calendar feed", slog.String("error", err.Error()))
	}
}
