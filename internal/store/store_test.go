package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatvault/core/internal/bridge"
	"github.com/chatvault/core/internal/models"
	"github.com/chatvault/core/internal/notify"
)

const testDeviceID = "test-device-0001"

func newTestStore(t *testing.T) *Store {
	t.Helper()

	b := bridge.New(bridge.Config{DSN: ":memory:"})
	t.Cleanup(func() { b.Close() })
	require.NoError(t, b.Initialize(context.Background()))

	return New(b, notify.NewBus(0), testDeviceID)
}

func seedUser(t *testing.T, s *Store) *models.User {
	t.Helper()
	user := &models.User{DisplayName: "Alice", Email: "alice@example.com"}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

func seedChat(t *testing.T, s *Store, userID models.UUID) *models.Chat {
	t.Helper()
	chat := &models.Chat{UserID: userID, Title: "Test Chat"}
	require.NoError(t, s.CreateChat(context.Background(), chat))
	return chat
}

// Every mutation must leave exactly one new change-log row behind.
func eventCount(t *testing.T, s *Store) int {
	t.Helper()
	events, err := s.GetUnsyncedEvents(context.Background(), "")
	require.NoError(t, err)
	return len(events)
}

func TestCreateUserAppendsEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s)
	assert.NotEmpty(t, user.ID)
	assert.NotZero(t, user.CreatedAt)

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice@example.com", got.Email)

	events, err := s.GetUnsyncedEvents(ctx, "")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EntityUser, events[0].EntityType)
	assert.Equal(t, models.OperationCreate, events[0].Operation)
	assert.Equal(t, user.ID, events[0].EntityID)
	assert.Equal(t, testDeviceID, events[0].DeviceID)
	assert.False(t, events[0].Synced)
}

func TestGetUserAbsent(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetUser(context.Background(), "no-such-user")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestChatLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s)
	chat := seedChat(t, s, user.ID)
	assert.Equal(t, models.StatusActive, chat.Status)
	assert.Equal(t, 2, eventCount(t, s)) // user create + chat create

	// Update.
	title := "Renamed"
	updated, err := s.UpdateChat(ctx, chat.ID, ChatPatch{Title: &title})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, 3, eventCount(t, s))

	// The update snapshot carries only the changed fields.
	events, err := s.GetUnsyncedEvents(ctx, "")
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, models.OperationUpdate, last.Operation)
	var snapshot map[string]interface{}
	require.NoError(t, json.Unmarshal(last.Snapshot, &snapshot))
	assert.Equal(t, "Renamed", snapshot["title"])
	assert.Contains(t, snapshot, "updated_at")
	assert.NotContains(t, snapshot, "user_id")

	// Soft delete.
	require.NoError(t, s.DeleteChat(ctx, chat.ID))
	assert.Equal(t, 4, eventCount(t, s))

	// Default reads filter the tombstone; GetChatAny still sees it.
	got, err := s.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	any, err := s.GetChatAny(ctx, chat.ID)
	require.NoError(t, err)
	require.NotNil(t, any)
	assert.Equal(t, models.StatusDeleted, any.Status)
}

func TestDeleteChatIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s)
	chat := seedChat(t, s, user.ID)

	require.NoError(t, s.DeleteChat(ctx, chat.ID))
	before := eventCount(t, s)

	// Deleting again, or deleting an unknown chat, appends nothing.
	require.NoError(t, s.DeleteChat(ctx, chat.ID))
	require.NoError(t, s.DeleteChat(ctx, "no-such-chat"))
	assert.Equal(t, before, eventCount(t, s))
}

func TestUpdateChatAbsent(t *testing.T) {
	s := newTestStore(t)
	title := "x"
	updated, err := s.UpdateChat(context.Background(), "no-such-chat", ChatPatch{Title: &title})
	require.NoError(t, err)
	assert.Nil(t, updated)
	assert.Equal(t, 0, eventCount(t, s))
}

func TestGetUserChatsFiltersAndOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s)
	a := &models.Chat{UserID: user.ID, Title: "A", CreatedAt: 100, UpdatedAt: 100}
	b := &models.Chat{UserID: user.ID, Title: "B", CreatedAt: 200, UpdatedAt: 300}
	c := &models.Chat{UserID: user.ID, Title: "C", CreatedAt: 150, UpdatedAt: 200}
	for _, chat := range []*models.Chat{a, b, c} {
		require.NoError(t, s.CreateChat(ctx, chat))
	}
	require.NoError(t, s.DeleteChat(ctx, c.ID))

	chats, err := s.GetUserChats(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "B", chats[0].Title) // most recently updated first
	assert.Equal(t, "A", chats[1].Title)
}

func TestMessageLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s)
	chat := seedChat(t, s, user.ID)

	msg := &models.Message{ChatID: chat.ID, Role: models.RoleUser, Content: "hello"}
	require.NoError(t, s.CreateMessage(ctx, msg))
	assert.NotEmpty(t, msg.ID)

	// The event is attributed to the chat's owner.
	events, err := s.GetUnsyncedEvents(ctx, "")
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, models.EntityMessage, last.EntityType)
	assert.Equal(t, user.ID, last.UserID)

	msgs, err := s.GetChatMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)

	require.NoError(t, s.DeleteMessage(ctx, msg.ID))

	got, err := s.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	any, err := s.GetMessageAny(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, any)
	assert.True(t, any.Status.Deleted())
}

func TestCreateMessageUnknownChat(t *testing.T) {
	s := newTestStore(t)

	msg := &models.Message{ChatID: "no-such-chat", Role: models.RoleUser, Content: "hi"}
	err := s.CreateMessage(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.Equal(t, 0, eventCount(t, s))
}

func TestCreateMessageInDeletedChat(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s)
	chat := seedChat(t, s, user.ID)
	require.NoError(t, s.DeleteChat(ctx, chat.ID))

	// Attribution resolves through the tombstone: syncing a message created
	// on another device before the delete must still work.
	msg := &models.Message{ChatID: chat.ID, Role: models.RoleAssistant, Content: "late"}
	require.NoError(t, s.CreateMessage(ctx, msg))
}

func TestGetChatMessagesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s)
	chat := seedChat(t, s, user.ID)

	for i, content := range []string{"first", "second", "third"} {
		msg := &models.Message{
			ChatID:    chat.ID,
			Role:      models.RoleUser,
			Content:   content,
			CreatedAt: int64(100 + i),
		}
		require.NoError(t, s.CreateMessage(ctx, msg))
	}

	msgs, err := s.GetChatMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "third", msgs[2].Content)
}

func TestGetUnsyncedEventsFiltersAndOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s)
	bob := &models.User{DisplayName: "Bob", Email: "bob@example.com"}
	require.NoError(t, s.CreateUser(ctx, bob))
	seedChat(t, s, alice.ID)

	all, err := s.GetUnsyncedEvents(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].Timestamp, all[i].Timestamp)
	}

	aliceOnly, err := s.GetUnsyncedEvents(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, aliceOnly, 2)
	for _, ev := range aliceOnly {
		assert.Equal(t, alice.ID, ev.UserID)
	}
}

func TestMarkEventSyncedIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s)
	events, err := s.GetUnsyncedEvents(ctx, "")
	require.NoError(t, err)
	require.Len(t, events, 1)

	require.NoError(t, s.MarkEventSynced(ctx, events[0].ID))
	require.NoError(t, s.MarkEventSynced(ctx, events[0].ID))
	require.NoError(t, s.MarkEventSynced(ctx, "no-such-event"))

	remaining, err := s.GetUnsyncedEvents(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestPruneSyncedEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s)
	seedChat(t, s, user.ID)

	events, err := s.GetUnsyncedEvents(ctx, "")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.NoError(t, s.MarkEventSynced(ctx, events[0].ID))

	require.NoError(t, s.PruneSyncedEvents(ctx))

	// The unsynced event survives the prune.
	remaining, err := s.GetUnsyncedEvents(ctx, "")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, events[1].ID, remaining[0].ID)
}

func TestUpsertResolvedChatBypassesChangeLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s)
	before := eventCount(t, s)

	remote := &models.Chat{
		ID:        "remote-chat-1",
		UserID:    user.ID,
		Title:     "From Cloud",
		Status:    models.StatusActive,
		CreatedAt: 100,
		UpdatedAt: 200,
	}
	require.NoError(t, s.UpsertResolvedChat(ctx, remote))
	assert.Equal(t, before, eventCount(t, s))

	// Re-applying the same resolution is idempotent, and newer snapshots
	// overwrite in place.
	remote.Title = "From Cloud v2"
	remote.UpdatedAt = 300
	require.NoError(t, s.UpsertResolvedChat(ctx, remote))

	got, err := s.GetChat(ctx, remote.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "From Cloud v2", got.Title)
	assert.EqualValues(t, 300, got.UpdatedAt)
	assert.Equal(t, before, eventCount(t, s))
}

func TestUpsertResolvedMessageBypassesChangeLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s)
	chat := seedChat(t, s, user.ID)
	before := eventCount(t, s)

	remote := &models.Message{
		ID:        "remote-msg-1",
		ChatID:    chat.ID,
		Role:      models.RoleAssistant,
		Content:   "resolved",
		Status:    models.StatusActive,
		CreatedAt: 100,
	}
	require.NoError(t, s.UpsertResolvedMessage(ctx, remote))
	require.NoError(t, s.UpsertResolvedMessage(ctx, remote))
	assert.Equal(t, before, eventCount(t, s))

	got, err := s.GetMessage(ctx, remote.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "resolved", got.Content)
}

func TestRegisterDeviceIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s)

	first := &models.Device{UserID: user.ID, Fingerprint: "fp-1"}
	require.NoError(t, s.RegisterDevice(ctx, first))
	require.NotEmpty(t, first.ID)

	// Re-registering the same fingerprint keeps the original row id.
	second := &models.Device{UserID: user.ID, Fingerprint: "fp-1"}
	require.NoError(t, s.RegisterDevice(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	got, err := s.GetDeviceByFingerprint(ctx, "fp-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
	assert.Nil(t, got.LastSyncAt)
}

func TestTouchDeviceSync(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s)
	dev := &models.Device{UserID: user.ID, Fingerprint: "fp-1"}
	require.NoError(t, s.RegisterDevice(ctx, dev))

	require.NoError(t, s.TouchDeviceSync(ctx, dev.ID, 12345))

	got, err := s.GetDeviceByFingerprint(ctx, "fp-1")
	require.NoError(t, err)
	require.NotNil(t, got.LastSyncAt)
	assert.EqualValues(t, 12345, *got.LastSyncAt)
}

func TestSyncConfigUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s)

	// No row yet.
	cfg, err := s.GetSyncConfig(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	// First write creates a defaulted row with the patch applied.
	mode := models.SyncModeLocalOnly
	cfg, err = s.UpdateSyncConfig(ctx, user.ID, SyncConfigPatch{Mode: &mode})
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, models.SyncModeLocalOnly, cfg.Mode)
	assert.True(t, cfg.AutoSync)
	assert.EqualValues(t, 300, cfg.SyncInterval)

	// Second write patches in place and leaves other fields alone.
	auto := false
	cfg, err = s.UpdateSyncConfig(ctx, user.ID, SyncConfigPatch{AutoSync: &auto})
	require.NoError(t, err)
	assert.Equal(t, models.SyncModeLocalOnly, cfg.Mode)
	assert.False(t, cfg.AutoSync)

	persisted, err := s.GetSyncConfig(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, models.SyncModeLocalOnly, persisted.Mode)
	assert.False(t, persisted.AutoSync)

	// Each policy write appends an update event with just the changed fields.
	events, err := s.GetUnsyncedEvents(ctx, user.ID)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, models.EntitySyncConfig, last.EntityType)
	var snapshot map[string]interface{}
	require.NoError(t, json.Unmarshal(last.Snapshot, &snapshot))
	assert.Equal(t, false, snapshot["auto_sync"])
	assert.NotContains(t, snapshot, "mode")
}

func TestMutationsPublishNotifications(t *testing.T) {
	b := bridge.New(bridge.Config{DSN: ":memory:"})
	t.Cleanup(func() { b.Close() })
	require.NoError(t, b.Initialize(context.Background()))

	bus := notify.NewBus(8)
	events, cancel := bus.Subscribe()
	defer cancel()

	s := New(b, bus, testDeviceID)
	user := seedUser(t, s)

	select {
	case ev := <-events:
		assert.Equal(t, models.EntityUser, ev.EntityType)
		assert.Equal(t, user.ID, ev.EntityID)
		assert.Equal(t, models.OperationCreate, ev.Operation)
	default:
		t.Fatal("expected a notification for the user create")
	}
}
