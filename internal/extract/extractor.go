// Package extract turns unstructured chat text (or a linked web page) into
// a structured calendar event by calling an external language model.
//
// The model is asked for a fixed JSON shape and its verdict is validated
// here, at the boundary, before anything downstream sees it. Three outcomes
// are possible:
//
//	(event, nil)  — the text describes an event
//	(nil, nil)    — the model says this is not an event
//	(nil, err)    — the upstream call or parsing failed
//
// Callers treat the last two the same way ("no event detected") but log the
// error case; an extraction failure is never fatal to the ingestion
// pipeline and there is no retry — a dropped message is lost.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/calsync/calsync/internal/model"
)

// DefaultReminderOffsets are attached to every extracted event.
var DefaultReminderOffsets = []model.Reminder{
	{Offset: 14 * 24 * time.Hour, Description: "2 weeks before"},
	{Offset: 24 * time.Hour, Description: "1 day before"},
}

const systemPrompt = `You are an event extraction assistant. The current time is %s.
Decide whether the user's message describes a real calendar event (a meeting,
party, concert, deadline, or similar happening at a specific time).

Respond with a single JSON object and nothing else, using exactly this schema:
{
  "is_event": boolean,
  "title": string,
  "description": string,
  "location": string,
  "start_time": string (ISO-8601, resolve relative dates like "tomorrow" against the current time),
  "end_time": string (ISO-8601, empty string if the message gives no end time)
}
If the message is not about an event, set is_event to false and leave the
other fields empty.`

// ExtractedEvent is the validated result of a successful extraction.
// End is zero when the model gave no end time — the caller is responsible
// for defaulting it (to start + 1 hour), not this package.
type ExtractedEvent struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	SourceURL   string
	Reminders   []model.Reminder
}

// Context carries per-message extraction inputs.
type Context struct {
	SourceURL string
	Now       time.Time
}

// Config configures the Extractor. APIKey is required; the rest default to
// the public OpenAI endpoint.
type Config struct {
	APIKey  string
	BaseURL string // chat-completions base, default https://api.openai.com/v1
	Model   string // default gpt-4o-mini
	Timeout time.Duration
}

// Extractor calls an OpenAI-compatible chat-completions endpoint.
type Extractor struct {
	cfg     Config
	client  *http.Client
	logger  *slog.Logger
	offsets []model.Reminder
}

// New creates an Extractor.
func New(cfg Config, logger *slog.Logger) (*Extractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("extract: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Extractor{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		offsets: DefaultReminderOffsets,
	}, nil
}

// chat-completions wire types — only the fields we read/write.
type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
	Temperature    float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// modelVerdict is the JSON shape the prompt demands from the model.
type modelVerdict struct {
	IsEvent     bool   `json:"is_event"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

// Extract runs the text through the model and validates the verdict.
func (e *Extractor) Extract(ctx context.Context, text string, ec Context) (*ExtractedEvent, error) {
	now := ec.Now
	if now.IsZero() {
		now = time.Now()
	}

	verdict, err := e.complete(ctx, text, now)
	if err != nil {
		return nil, err
	}

	if !verdict.IsEvent {
		return nil, nil
	}

	start, err := parseModelTime(verdict.StartTime)
	if err != nil {
		return nil, fmt.Errorf("extract: model returned unparseable start_time %q: %w", verdict.StartTime, err)
	}
	if verdict.Title == "" {
		return nil, fmt.Errorf("extract: model flagged an event but gave no title")
	}

	ev := &ExtractedEvent{
		Title:       verdict.Title,
		Description: verdict.Description,
		Location:    verdict.Location,
		Start:       start,
		SourceURL:   ec.SourceURL,
		Reminders:   append([]model.Reminder(nil), e.offsets...),
	}

	if verdict.EndTime != "" {
		end, err := parseModelTime(verdict.EndTime)
		if err == nil && end.After(start) {
			ev.End = end
		}
		// Unparseable or inverted end: leave End zero, caller defaults it.
	}

	return ev, nil
}

func (e *Extractor) complete(ctx context.Context, text string, now time.Time) (*modelVerdict, error) {
	reqBody := chatRequest{
		Model: e.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(systemPrompt, now.Format(time.RFC3339))},
			{Role: "user", Content: text},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("extract: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("extract: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extract: completion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("extract: reading completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extract: completion endpoint returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("extract: decoding completion response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("extract: completion response has no choices")
	}

	var verdict modelVerdict
	if err := json.Unmarshal([]byte(cr.Choices[0].Message.Content), &verdict); err != nil {
		return nil, fmt.Errorf("extract: model output is not valid JSON: %w", err)
	}

	return &verdict, nil
}

// parseModelTime accepts the ISO-8601 variants models actually produce.
func parseModelTime(value string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	var lastErr error
	for _, format := range formats {
		t, err := time.Parse(format, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
