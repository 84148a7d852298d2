package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/calsync/calsync/internal/model"
	"github.com/calsync/calsync/internal/service"
)

// IngestHandler is the bot-facing endpoint: one POST per candidate message
// seen in a watched channel.
type IngestHandler struct {
	events *service.EventService
	logger *slog.Logger
}

// NewIngestHandler creates an IngestHandler.
func NewIngestHandler(events *service.EventService, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{events: events, logger: logger}
}

type ingestRequest struct {
	Text             string `json:"text"`
	SourceURL        string `json:"source_url"`
	ChannelID        string `json:"channel_id"`
	CommunityID      string `json:"community_id"`
	AuthorName       string `json:"author_name"`
	AuthorPlatformID string `json:"author_platform_id"`
}

type ingestResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Event   *model.Event `json:"event,omitempty"`
}

// HandleIngest runs a chat message through event extraction.
//
// HTTP: POST /api/ingest
//
// "No event detected" is a 200 with success=false — the bot treats it as a
// normal answer, not a failure. 503 means extraction is not configured.
func (h *IngestHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid ingest JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid JSON body",
		})
		return
	}

	if req.Text == "" && req.SourceURL == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "text or source_url is required",
		})
		return
	}

	result, err := h.events.Ingest(r.Context(), service.IngestInput{
		Text:             req.Text,
		SourceURL:        req.SourceURL,
		ChannelID:        req.ChannelID,
		CommunityID:      req.CommunityID,
		AuthorName:       req.AuthorName,
		AuthorPlatformID: req.AuthorPlatformID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Success: result.Success,
		Message: result.Message,
		Event:   result.Event,
	})
}
