// Package gcal pushes newly created events to a Google Calendar.
//
// The sync is strictly best-effort: event creation never fails because the
// external calendar was unreachable. On success the remote event ID is
// backfilled onto the stored event; on failure the error is logged and
// forgotten.
package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/calsync/calsync/internal/model"
)

// Config holds the OAuth2 client credentials and the token file written by
// a prior consent flow.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenFile    string // JSON-serialized oauth2.Token
	CalendarID   string // defaults to "primary"
}

// Client wraps the Google Calendar service.
type Client struct {
	service    *calendar.Service
	calendarID string
	logger     *slog.Logger
}

// New creates a Client from stored credentials. It fails when the token
// file is missing or unreadable — the caller treats that as "backfill
// disabled", not a fatal startup error.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("gcal: client credentials are required")
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{calendar.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}

	token, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("gcal: loading token: %w", err)
	}

	service, err := calendar.NewService(ctx,
		option.WithHTTPClient(oauthCfg.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("gcal: creating calendar service: %w", err)
	}

	return &Client{
		service:    service,
		calendarID: cfg.CalendarID,
		logger:     logger,
	}, nil
}

// Insert creates the event in the remote calendar and returns its ID.
func (c *Client) Insert(ctx context.Context, event *model.Event) (string, error) {
	gev := &calendar.Event{
		Summary:     event.Title,
		Description: event.Description,
		Location:    event.Location,
		Start:       &calendar.EventDateTime{DateTime: event.StartTime.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: event.EndTime.Format(time.RFC3339)},
	}
	if event.SourceURL != "" {
		gev.Source = &calendar.EventSource{Title: event.Title, Url: event.SourceURL}
	}

	created, err := c.service.Events.Insert(c.calendarID, gev).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gcal: inserting event %s: %w", event.ID, err)
	}

	c.logger.Info("event synced to external calendar",
		slog.String("eventID", event.ID),
		slog.String("externalID", created.Id),
	)

	return created.Id, nil
}

// Delete removes the remote copy of an event. NotFound from the remote side
// is ignored — the event may never have synced.
func (c *Client) Delete(ctx context.Context, externalID string) error {
	if externalID == "" {
		return nil
	}
	if err := c.service.Events.Delete(c.calendarID, externalID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gcal: deleting event %s: %w", externalID, err)
	}
	return nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("decoding token file %s: %w", path, err)
	}
	return token, nil
}
