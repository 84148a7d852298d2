package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"

	"github.com/calsync/calsync/internal/apperror"
	"github.com/calsync/calsync/internal/model"
	"github.com/calsync/calsync/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// EnsureUser implements the find-or-create flow keyed on the platform ID.
//
// The calendar token is generated exactly once, on first insert. Two racing
// calls for the same platform ID are resolved by the UNIQUE constraint: the
// loser's INSERT is rejected and we re-read the winner's row, so both
// callers observe the same token.
func (db *DB) EnsureUser(ctx context.Context, platformID, username string) (*model.User, error) {
	if u, err := db.GetUserByPlatformID(ctx, platformID); err == nil {
		return u, nil
	} else if !isNotFound(err) {
		return nil, err
	}

	u := &model.User{
		ID:            xid.New().String(),
		PlatformID:    platformID,
		Username:      username,
		CalendarToken: uuid.NewString(),
		CreatedAt:     time.Now(),
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, platform_id, username, calendar_token, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.PlatformID, u.Username, u.CalendarToken, u.CreatedAt,
	)
	if err != nil {
		// Lost a race on UNIQUE(platform_id) — the row exists now.
		if existing, lookupErr := db.GetUserByPlatformID(ctx, platformID); lookupErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("sqlite: inserting user (platformID=%s): %w", platformID, err)
	}

	return u, nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `id = ?`, id, "user", id)
}

// GetUserByPlatformID retrieves a user by their chat-platform ID.
func (db *DB) GetUserByPlatformID(ctx context.Context, platformID string) (*model.User, error) {
	return db.getUser(ctx, `platform_id = ?`, platformID, "user", platformID)
}

// GetUserByCalendarToken retrieves a user by their calendar-access token.
// Token possession is the entire authorization model for the feed, so an
// unknown token is a plain not-found, never a hint about which part of the
// token was wrong.
func (db *DB) GetUserByCalendarToken(ctx context.Context, token string) (*model.User, error) {
	return db.getUser(ctx, `calendar_token = ?`, token, "calendar", token)
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}

func (db *DB) getUser(ctx context.Context, where string, arg any, resource, id string) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, platform_id, username, calendar_token, created_at
		 FROM users WHERE `+where,
		arg,
	).Scan(
		&u.ID,
		&u.PlatformID,
		&u.Username,
		&u.CalendarToken,
		&u.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound(resource, id)
		}
		return nil, fmt.Errorf("sqlite: getting %s %s: %w", resource, id, err)
	}

	return &u, nil
}
