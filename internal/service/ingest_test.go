package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calsync/calsync/internal/apperror"
	"github.com/calsync/calsync/internal/extract"
)

func TestIngestStoresDetectedEvent(t *testing.T) {
	env := newTestEnv(t)
	start := time.Date(2026, 10, 3, 19, 0, 0, 0, time.UTC)
	env.ext.event = &extract.ExtractedEvent{
		Title:    "Oktoberfest meetup",
		Location: "Beer garden",
		Start:    start,
	}

	result, err := env.svc.Ingest(context.Background(), IngestInput{
		Text:      "who's in for the oktoberfest meetup oct 3 7pm at the beer garden?",
		ChannelID: "chan-1",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if !result.Success {
		t.Fatalf("Success = false, message %q", result.Message)
	}
	if result.Event.Title != "Oktoberfest meetup" {
		t.Errorf("Title = %q", result.Event.Title)
	}
	if want := start.Add(time.Hour); !result.Event.EndTime.Equal(want) {
		t.Errorf("EndTime = %v, want defaulted %v", result.Event.EndTime, want)
	}
	if len(env.events.events) != 1 {
		t.Errorf("stored %d events, want 1", len(env.events.events))
	}
}

func TestIngestNoEventDetected(t *testing.T) {
	env := newTestEnv(t)
	env.ext.event = nil // model says "not an event"

	result, err := env.svc.Ingest(context.Background(), IngestInput{
		Text:      "lol same",
		ChannelID: "chan-1",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if result.Success {
		t.Error("Success = true for small talk")
	}
	if len(env.events.events) != 0 {
		t.Errorf("stored %d events, want 0", len(env.events.events))
	}
}

func TestIngestExtractionFailureDegrades(t *testing.T) {
	env := newTestEnv(t)
	env.ext.err = errors.New("upstream 429")

	result, err := env.svc.Ingest(context.Background(), IngestInput{
		Text:      "party friday 8pm",
		ChannelID: "chan-1",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if result.Success {
		t.Error("Success = true despite extraction failure")
	}
	if len(env.events.events) != 0 {
		t.Errorf("stored %d events, want 0", len(env.events.events))
	}
}

func TestIngestWithoutExtractorUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.svc = NewEventService(env.users, env.watches, env.events, nil, nil, testLogger())

	_, err := env.svc.Ingest(context.Background(), IngestInput{Text: "anything"})
	if !errors.Is(err, apperror.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestIngestRoutesURLsThroughURLPath(t *testing.T) {
	env := newTestEnv(t)
	env.ext.event = &extract.ExtractedEvent{
		Title:     "Linked concert",
		Start:     time.Now().Add(48 * time.Hour),
		SourceURL: "https://example.com/show",
	}

	result, err := env.svc.Ingest(context.Background(), IngestInput{
		Text:      "check this out https://example.com/show",
		SourceURL: "https://example.com/show",
		ChannelID: "chan-1",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if env.ext.lastURL != "https://example.com/show" {
		t.Errorf("lastURL = %q, want the message link", env.ext.lastURL)
	}
	if result.Event.SourceURL != "https://example.com/show" {
		t.Errorf("SourceURL = %q", result.Event.SourceURL)
	}
}

func TestIngestOwnerPrefersAuthor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	watcher, _ := env.users.EnsureUser(ctx, "p-watcher", "watcher")
	author, _ := env.users.EnsureUser(ctx, "p-author", "author")
	env.watches.AddWatch(ctx, "g1", "chan-1", "general", watcher.ID)

	env.ext.event = &extract.ExtractedEvent{Title: "Authored", Start: time.Now().Add(time.Hour)}

	result, err := env.svc.Ingest(ctx, IngestInput{
		Text:             "my event",
		ChannelID:        "chan-1",
		AuthorPlatformID: "p-author",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.Event.UserID != author.ID {
		t.Errorf("UserID = %q, want author %q", result.Event.UserID, author.ID)
	}
}

func TestIngestOwnerFallsBackToEarliestWatcher(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first, _ := env.users.EnsureUser(ctx, "p-first", "first")
	second, _ := env.users.EnsureUser(ctx, "p-second", "second")
	env.watches.AddWatch(ctx, "g1", "chan-1", "general", first.ID)
	env.watches.AddWatch(ctx, "g1", "chan-1", "general", second.ID)

	env.ext.event = &extract.ExtractedEvent{Title: "Anonymous tip", Start: time.Now().Add(time.Hour)}

	result, err := env.svc.Ingest(ctx, IngestInput{
		Text:             "event from a stranger",
		ChannelID:        "chan-1",
		AuthorPlatformID: "p-stranger",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.Event.UserID != first.ID {
		t.Errorf("UserID = %q, want earliest watcher %q", result.Event.UserID, first.ID)
	}
}

func TestIngestOwnerOrphanWhenNoWatchers(t *testing.T) {
	env := newTestEnv(t)
	env.ext.event = &extract.ExtractedEvent{Title: "Nobody's event", Start: time.Now().Add(time.Hour)}

	result, err := env.svc.Ingest(context.Background(), IngestInput{
		Text:      "event in an unwatched channel",
		ChannelID: "chan-ghost",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.Event.UserID != "" {
		t.Errorf("UserID = %q, want orphan", result.Event.UserID)
	}
}
