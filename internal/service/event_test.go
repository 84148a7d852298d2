package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calsync/calsync/internal/apperror"
	"github.com/calsync/calsync/internal/model"
)

func TestAddDefaultsEndTime(t *testing.T) {
	env := newTestEnv(t)
	start := time.Date(2026, 9, 12, 18, 0, 0, 0, time.UTC)

	event, err := env.svc.Add(context.Background(), AddEventInput{
		Title: "Team dinner",
		Start: start,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if want := start.Add(time.Hour); !event.EndTime.Equal(want) {
		t.Errorf("EndTime = %v, want %v", event.EndTime, want)
	}
}

func TestAddKeepsExplicitEndTime(t *testing.T) {
	env := newTestEnv(t)
	start := time.Date(2026, 9, 12, 18, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)

	event, err := env.svc.Add(context.Background(), AddEventInput{
		Title: "Conference day",
		Start: start,
		End:   end,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if !event.EndTime.Equal(end) {
		t.Errorf("EndTime = %v, want %v", event.EndTime, end)
	}
}

func TestAddRejectsMissingFields(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Add(context.Background(), AddEventInput{Start: time.Now()})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("missing title: err = %v, want ErrValidation", err)
	}

	_, err = env.svc.Add(context.Background(), AddEventInput{Title: "No start"})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("missing start: err = %v, want ErrValidation", err)
	}
}

func TestAddResolvesOwnerByPlatformID(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.users.EnsureUser(context.Background(), "platform-42", "alice")

	event, err := env.svc.Add(context.Background(), AddEventInput{
		OwnerPlatformID: "platform-42",
		Title:           "Standup",
		Start:           time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if event.UserID != user.ID {
		t.Errorf("UserID = %q, want %q", event.UserID, user.ID)
	}
}

func TestAddStoresOrphanForUnknownOwner(t *testing.T) {
	env := newTestEnv(t)

	event, err := env.svc.Add(context.Background(), AddEventInput{
		OwnerPlatformID: "nobody-knows-this-id",
		Title:           "Mystery meetup",
		Start:           time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if event.UserID != "" {
		t.Errorf("UserID = %q, want orphan (empty)", event.UserID)
	}
}

func TestAddBackfillsExternalCalendarID(t *testing.T) {
	env := newTestEnv(t)

	event, err := env.svc.Add(context.Background(), AddEventInput{
		Title: "Synced event",
		Start: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if event.ExternalCalendarID != "ext-"+event.ID {
		t.Errorf("ExternalCalendarID = %q, want %q", event.ExternalCalendarID, "ext-"+event.ID)
	}
	stored := env.events.events[event.ID]
	if stored.ExternalCalendarID != event.ExternalCalendarID {
		t.Errorf("stored ExternalCalendarID = %q, want %q", stored.ExternalCalendarID, event.ExternalCalendarID)
	}
}

func TestAddSurvivesSyncerFailure(t *testing.T) {
	env := newTestEnv(t)
	env.sync.err = errors.New("calendar API down")

	event, err := env.svc.Add(context.Background(), AddEventInput{
		Title: "Still stored",
		Start: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if event.ExternalCalendarID != "" {
		t.Errorf("ExternalCalendarID = %q, want empty", event.ExternalCalendarID)
	}
	if _, ok := env.events.events[event.ID]; !ok {
		t.Error("event not persisted despite syncer failure")
	}
}

func TestAddAttachesReminders(t *testing.T) {
	env := newTestEnv(t)
	reminders := []model.Reminder{
		{Offset: 14 * 24 * time.Hour, Description: "2 weeks before"},
		{Offset: 24 * time.Hour, Description: "1 day before"},
	}

	event, err := env.svc.Add(context.Background(), AddEventInput{
		Title:     "Concert",
		Start:     time.Now().Add(30 * 24 * time.Hour),
		Reminders: reminders,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if len(event.Reminders) != 2 {
		t.Fatalf("len(Reminders) = %d, want 2", len(event.Reminders))
	}
}

func TestListFiltersByPlatformID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, _ := env.users.EnsureUser(ctx, "p-alice", "alice")
	env.users.EnsureUser(ctx, "p-bob", "bob")

	env.svc.Add(ctx, AddEventInput{OwnerUserID: alice.ID, Title: "Alice's", Start: time.Now().Add(time.Hour)})
	env.svc.Add(ctx, AddEventInput{OwnerPlatformID: "p-bob", Title: "Bob's", Start: time.Now().Add(2 * time.Hour)})

	events, err := env.svc.List(ctx, "p-alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 1 || events[0].Title != "Alice's" {
		t.Errorf("List(p-alice) = %+v, want only Alice's event", events)
	}

	all, err := env.svc.List(ctx, "")
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("len(List all) = %d, want 2", len(all))
	}
}

func TestListUnknownPlatformID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.List(context.Background(), "no-such-user")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	event, err := env.svc.Add(ctx, AddEventInput{Title: "Doomed", Start: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := env.svc.Delete(ctx, event.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := env.svc.Delete(ctx, event.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
	if err := env.svc.Delete(ctx, "  "); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("blank id: err = %v, want ErrValidation", err)
	}
}

func TestDeleteRemovesExternalCopy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	event, err := env.svc.Add(ctx, AddEventInput{Title: "Synced then gone", Start: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if event.ExternalCalendarID == "" {
		t.Fatal("precondition: event was not synced")
	}

	if err := env.svc.Delete(ctx, event.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if len(env.sync.deleted) != 1 || env.sync.deleted[0] != event.ExternalCalendarID {
		t.Errorf("deleted = %v, want [%q]", env.sync.deleted, event.ExternalCalendarID)
	}
}

func TestDeleteSurvivesRemoteFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	event, err := env.svc.Add(ctx, AddEventInput{Title: "Remote flaky", Start: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	env.sync.err = errors.New("calendar API down")
	if err := env.svc.Delete(ctx, event.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := env.events.events[event.ID]; ok {
		t.Error("local row survived despite delete")
	}
}
