package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/calsync/calsync/internal/apperror"
	"github.com/calsync/calsync/internal/extract"
	"github.com/calsync/calsync/internal/model"
)

// In-memory fakes for the repository interfaces. The service layer doesn't
// know whether it talks to SQLite or these maps — that's the point of the
// interfaces.

type mockUserRepo struct {
	users  map[string]*model.User // by internal ID
	nextID int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) EnsureUser(_ context.Context, platformID, username string) (*model.User, error) {
	for _, u := range m.users {
		if u.PlatformID == platformID {
			copied := *u
			return &copied, nil
		}
	}
	m.nextID++
	u := &model.User{
		ID:            fmt.Sprintf("user-%d", m.nextID),
		PlatformID:    platformID,
		Username:      username,
		CalendarToken: fmt.Sprintf("token-%d", m.nextID),
		CreatedAt:     time.Now(),
	}
	m.users[u.ID] = u
	copied := *u
	return &copied, nil
}

func (m *mockUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (m *mockUserRepo) GetUserByPlatformID(_ context.Context, platformID string) (*model.User, error) {
	for _, u := range m.users {
		if u.PlatformID == platformID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", platformID)
}

func (m *mockUserRepo) GetUserByCalendarToken(_ context.Context, token string) (*model.User, error) {
	for _, u := range m.users {
		if u.CalendarToken == token {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("calendar", token)
}

type watchKey struct{ channelID, userID string }

type mockWatchRepo struct {
	watches map[watchKey]model.WatchedChannel
	nextID  int
}

func newMockWatchRepo() *mockWatchRepo {
	return &mockWatchRepo{watches: make(map[watchKey]model.WatchedChannel)}
}

func (m *mockWatchRepo) AddWatch(_ context.Context, communityID, channelID, channelName, userID string) (bool, error) {
	key := watchKey{channelID, userID}
	if _, exists := m.watches[key]; exists {
		return false, nil
	}
	m.nextID++
	m.watches[key] = model.WatchedChannel{
		ID:          fmt.Sprintf("watch-%d", m.nextID),
		CommunityID: communityID,
		ChannelID:   channelID,
		ChannelName: channelName,
		UserID:      userID,
		CreatedAt:   time.Now(),
	}
	return true, nil
}

func (m *mockWatchRepo) RemoveWatch(_ context.Context, channelID, userID string) error {
	key := watchKey{channelID, userID}
	if _, exists := m.watches[key]; !exists {
		return apperror.NotFound("watch", channelID)
	}
	delete(m.watches, key)
	return nil
}

func (m *mockWatchRepo) ListWatchesForUser(_ context.Context, userID string) ([]model.WatchedChannel, error) {
	result := []model.WatchedChannel{}
	for _, w := range m.watches {
		if w.UserID == userID {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockWatchRepo) ListWatchersForChannel(_ context.Context, channelID string) ([]string, error) {
	watches := []model.WatchedChannel{}
	for _, w := range m.watches {
		if w.ChannelID == channelID {
			watches = append(watches, w)
		}
	}
	// Insertion order, same contract as the SQL implementation.
	sort.Slice(watches, func(i, j int) bool { return watches[i].ID < watches[j].ID })
	ids := []string{}
	for _, w := range watches {
		ids = append(ids, w.UserID)
	}
	return ids, nil
}

func (m *mockWatchRepo) IsChannelWatched(_ context.Context, channelID string) (bool, error) {
	for _, w := range m.watches {
		if w.ChannelID == channelID {
			return true, nil
		}
	}
	return false, nil
}

type mockEventRepo struct {
	events map[string]*model.Event
	nextID int
}

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{events: make(map[string]*model.Event)}
}

func (m *mockEventRepo) CreateEvent(_ context.Context, event *model.Event) error {
	m.nextID++
	event.ID = fmt.Sprintf("event-%d", m.nextID)
	event.CreatedAt = time.Now()
	stored := *event
	m.events[event.ID] = &stored
	return nil
}

func (m *mockEventRepo) GetEvent(_ context.Context, id string) (*model.Event, error) {
	e, ok := m.events[id]
	if !ok {
		return nil, apperror.NotFound("event", id)
	}
	copied := *e
	return &copied, nil
}

func (m *mockEventRepo) ListEvents(_ context.Context, userID string) ([]model.Event, error) {
	result := []model.Event{}
	for _, e := range m.events {
		if userID == "" || e.UserID == userID {
			result = append(result, *e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

func (m *mockEventRepo) DeleteEvent(_ context.Context, id string) error {
	if _, ok := m.events[id]; !ok {
		return apperror.NotFound("event", id)
	}
	delete(m.events, id)
	return nil
}

func (m *mockEventRepo) SetExternalCalendarID(_ context.Context, id, externalID string) error {
	e, ok := m.events[id]
	if !ok {
		return apperror.NotFound("event", id)
	}
	e.ExternalCalendarID = externalID
	return nil
}

// fakeExtractor returns canned outcomes without any HTTP.
type fakeExtractor struct {
	event   *extract.ExtractedEvent
	err     error
	lastURL string
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, _ extract.Context) (*extract.ExtractedEvent, error) {
	return f.event, f.err
}

func (f *fakeExtractor) ExtractFromURL(_ context.Context, url string, _ extract.Context) (*extract.ExtractedEvent, error) {
	f.lastURL = url
	return f.event, f.err
}

// fakeSyncer records inserts and deletes and hands back a fixed external ID.
type fakeSyncer struct {
	inserted []string
	deleted  []string
	err      error
}

func (f *fakeSyncer) Insert(_ context.Context, event *model.Event) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.inserted = append(f.inserted, event.ID)
	return "ext-" + event.ID, nil
}

func (f *fakeSyncer) Delete(_ context.Context, externalID string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, externalID)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testEnv struct {
	users   *mockUserRepo
	watches *mockWatchRepo
	events  *mockEventRepo
	ext     *fakeExtractor
	sync    *fakeSyncer
	svc     *EventService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		users:   newMockUserRepo(),
		watches: newMockWatchRepo(),
		events:  newMockEventRepo(),
		ext:     &fakeExtractor{},
		sync:    &fakeSyncer{},
	}
	env.svc = NewEventService(env.users, env.watches, env.events, env.ext, env.sync, testLogger())
	return env
}
