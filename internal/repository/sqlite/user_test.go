package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/calsync/calsync/internal/apperror"
	"github.com/calsync/calsync/internal/model"
)

// newTestDB opens an in-memory database that lives for the duration of one
// test. t.Cleanup closes it even when subtests fail.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ensureTestUser(t *testing.T, db *DB, platformID, username string) *model.User {
	t.Helper()
	u, err := db.EnsureUser(context.Background(), platformID, username)
	if err != nil {
		t.Fatalf("EnsureUser(%s) error = %v", platformID, err)
	}
	return u
}

func TestEnsureUser_CreatesAccount(t *testing.T) {
	db := newTestDB(t)

	u := ensureTestUser(t, db, "platform-123", "alice")

	if u.ID == "" {
		t.Error("EnsureUser() did not set internal ID")
	}
	if u.CalendarToken == "" {
		t.Error("EnsureUser() did not issue a calendar token")
	}
	if u.PlatformID != "platform-123" {
		t.Errorf("PlatformID = %q, want %q", u.PlatformID, "platform-123")
	}
	if u.CreatedAt.IsZero() {
		t.Error("EnsureUser() did not set CreatedAt")
	}
}

func TestEnsureUser_Idempotent(t *testing.T) {
	db := newTestDB(t)

	first := ensureTestUser(t, db, "platform-123", "alice")
	second := ensureTestUser(t, db, "platform-123", "alice")

	if second.ID != first.ID {
		t.Errorf("second call returned ID %q, want %q", second.ID, first.ID)
	}
	if second.CalendarToken != first.CalendarToken {
		t.Errorf("calendar token changed between calls: %q != %q",
			second.CalendarToken, first.CalendarToken)
	}
}

func TestEnsureUser_DistinctTokens(t *testing.T) {
	db := newTestDB(t)

	alice := ensureTestUser(t, db, "platform-1", "alice")
	bob := ensureTestUser(t, db, "platform-2", "bob")

	if alice.CalendarToken == bob.CalendarToken {
		t.Error("two users share the same calendar token")
	}
}

func TestGetUserByCalendarToken(t *testing.T) {
	db := newTestDB(t)
	created := ensureTestUser(t, db, "platform-9", "carol")

	found, err := db.GetUserByCalendarToken(context.Background(), created.CalendarToken)
	if err != nil {
		t.Fatalf("GetUserByCalendarToken() error = %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}
}

func TestGetUserByCalendarToken_Unknown(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByCalendarToken(context.Background(), "no-such-token")
	if err == nil {
		t.Fatal("expected an error for an unknown token")
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), "nonexistent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
