package services

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academix/internal/storage"
	"academix/pkg/chattypes"
)

// newTestStore builds a store over a throwaway file blob store with a
// deterministic clock and id sequence.
func newTestStore(t *testing.T) (*SessionStore, storage.BlobStore) {
	t.Helper()

	blob, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	store := NewSessionStore(blob)
	attachDeterminism(store)
	return store, blob
}

func attachDeterminism(store *SessionStore) {
	var tick time.Duration
	var seq int
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		tick += time.Second
		return base.Add(tick)
	}
	store.newID = func() string {
		seq++
		return fmt.Sprintf("id-%04d", seq)
	}
}

func TestSessionStore_InitializeEmptyCreatesDefault(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Initialize())

	sessions := store.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, chattypes.DefaultTitle, sessions[0].Title)
	assert.Empty(t, sessions[0].Messages)
	assert.Equal(t, sessions[0].ID, store.ActiveSessionID())
	assert.False(t, sessions[0].LastModified.Before(sessions[0].CreatedAt))
}

func TestSessionStore_InitializeTwiceIsNoOp(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Initialize())
	require.NoError(t, store.Initialize())

	assert.Len(t, store.Sessions(), 1)
}

func TestSessionStore_InitializeMalformedDataStartsEmpty(t *testing.T) {
	store, blob := newTestStore(t)
	require.NoError(t, blob.Save(storage.SessionsKey, []byte("not json at all")))

	require.NoError(t, store.Initialize())

	sessions := store.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, chattypes.DefaultTitle, sessions[0].Title)
}

func TestSessionStore_InitializeDropsMalformedEntries(t *testing.T) {
	store, blob := newTestStore(t)
	raw := `{"schema_version":1,"sessions":[null,{"id":"","title":"ghost"},{"id":"real","title":"Kept"}]}`
	require.NoError(t, blob.Save(storage.SessionsKey, []byte(raw)))

	require.NoError(t, store.Initialize())

	sessions := store.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "real", sessions[0].ID)
	assert.Equal(t, "real", store.ActiveSessionID())
}

func TestSessionStore_InitializeAllEntriesMalformed(t *testing.T) {
	store, blob := newTestStore(t)
	require.NoError(t, blob.Save(storage.SessionsKey, []byte(`{"schema_version":1,"sessions":[null]}`)))

	require.NoError(t, store.Initialize())

	sessions := store.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, chattypes.DefaultTitle, sessions[0].Title)
	assert.Equal(t, sessions[0].ID, store.ActiveSessionID())
}

func TestSessionStore_InitializeClearsStaleTitleFlag(t *testing.T) {
	store, blob := newTestStore(t)
	archive := chattypes.SessionArchive{
		SchemaVersion: chattypes.ArchiveSchemaVersion,
		Sessions: []*chattypes.Session{{
			ID:                "s1",
			Title:             chattypes.DefaultTitle,
			Messages:          []chattypes.Message{},
			IsGeneratingTitle: true,
		}},
	}
	data, err := json.Marshal(archive)
	require.NoError(t, err)
	require.NoError(t, blob.Save(storage.SessionsKey, data))

	require.NoError(t, store.Initialize())

	session, ok := store.Session("s1")
	require.True(t, ok)
	assert.False(t, session.IsGeneratingTitle)
	assert.True(t, store.TryBeginTitleGeneration("s1"), "titling must be claimable again after restart")
}

func TestSessionStore_PersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	blob, err := storage.NewFileStore(dir)
	require.NoError(t, err)

	first := NewSessionStore(blob)
	attachDeterminism(first)
	require.NoError(t, first.Initialize())

	oldest := first.ActiveSessionID()
	newest := first.CreateSession(true)
	require.NoError(t, first.AppendMessage(newest, first.NewMessage("hello", chattypes.SenderUser)))
	require.NoError(t, first.UpdateSessionTitle(newest, "Travel plans"))

	// A fresh store over the same storage restores the same state.
	second := NewSessionStore(blob)
	require.NoError(t, second.Initialize())

	sessions := second.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, newest, sessions[0].ID) // most recently modified first
	assert.Equal(t, oldest, sessions[1].ID)
	assert.Equal(t, "Travel plans", sessions[0].Title)
	require.Len(t, sessions[0].Messages, 1)
	assert.Equal(t, "hello", sessions[0].Messages[0].Text)
	assert.Equal(t, newest, second.ActiveSessionID())
}

func TestSessionStore_CreateSessionUniqueIDs(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Initialize())

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		id := store.CreateSession(true)
		assert.False(t, seen[id], "id %s returned twice", id)
		seen[id] = true
	}

	sessions := store.Sessions()
	counts := make(map[string]int)
	for _, session := range sessions {
		counts[session.ID]++
	}
	for id := range seen {
		assert.Equal(t, 1, counts[id], "id %s should appear exactly once", id)
	}
}

func TestSessionStore_CreateSessionWithoutActivation(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Initialize())
	active := store.ActiveSessionID()

	store.CreateSession(false)

	assert.Equal(t, active, store.ActiveSessionID())
}

func TestSessionStore_SelectSession(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Initialize())
	first := store.ActiveSessionID()
	second := store.CreateSession(true)

	require.NoError(t, store.SelectSession(first))
	assert.Equal(t, first, store.ActiveSessionID())

	err := store.SelectSession("no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, first, store.ActiveSessionID())

	require.NoError(t, store.SelectSession(second))
	assert.Equal(t, second, store.ActiveSessionID())
}

func TestSessionStore_DeleteLastSessionSynthesizesDefault(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Initialize())
	original := store.ActiveSessionID()

	store.DeleteSession(original)

	sessions := store.Sessions()
	require.Len(t, sessions, 1)
	assert.NotEqual(t, original, sessions[0].ID)
	assert.Equal(t, sessions[0].ID, store.ActiveSessionID())
	assert.Equal(t, chattypes.DefaultTitle, sessions[0].Title)
}

func TestSessionStore_DeleteActivePromotesMostRecent(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Initialize())
	middle := store.CreateSession(false)
	active := store.CreateSession(true)

	// Touch middle so it is the most recently modified survivor.
	require.NoError(t, store.AppendMessage(middle, store.NewMessage("ping", chattypes.SenderUser)))

	store.DeleteSession(active)

	assert.Equal(t, middle, store.ActiveSessionID())
	assert.Len(t, store.Sessions(), 2)
}

func TestSessionStore_DeleteLastSessionWithoutActivePointer(t *testing.T) {
	store, _ := newTestStore(t)
	// No Initialize: the active pointer is still unset.
	id := store.CreateSession(false)

	store.DeleteSession(id)

	sessions := store.Sessions()
	require.Len(t, sessions, 1)
	assert.NotEqual(t, id, sessions[0].ID)
	assert.Equal(t, sessions[0].ID, store.ActiveSessionID())
}

func TestSessionStore_DeleteUnknownIsNoOp(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Initialize())
	active := store.ActiveSessionID()

	store.DeleteSession("no-such-session")

	assert.Len(t, store.Sessions(), 1)
	assert.Equal(t, active, store.ActiveSessionID())
}

func TestSessionStore_AppendMessage(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Initialize())
	id := store.ActiveSessionID()

	before, _ := store.Session(id)
	msg := store.NewMessage("hello there", chattypes.SenderUser)
	require.NoError(t, store.AppendMessage(id, msg))

	after, ok := store.Session(id)
	require.True(t, ok)
	require.Len(t, after.Messages, 1)
	assert.Equal(t, msg.ID, after.Messages[len(after.Messages)-1].ID)
	assert.False(t, after.LastModified.Before(before.LastModified))

	err := store.AppendMessage("no-such-session", msg)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStore_AppendMessageReordersList(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Initialize())
	older := store.ActiveSessionID()
	_ = store.CreateSession(true)

	require.NoError(t, store.AppendMessage(older, store.NewMessage("bump", chattypes.SenderUser)))

	sessions := store.Sessions()
	assert.Equal(t, older, sessions[0].ID)
}

func TestSessionStore_ReplaceMessage(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Initialize())
	id := store.ActiveSessionID()

	placeholder := store.NewMessage("thinking", chattypes.SenderSystem)
	require.NoError(t, store.AppendMessage(id, placeholder))

	reply := store.NewMessage("done", chattypes.SenderBot)
	require.NoError(t, store.ReplaceMessage(id, placeholder.ID, reply))

	session, _ := store.Session(id)
	require.Len(t, session.Messages, 1)
	assert.Equal(t, reply.ID, session.Messages[0].ID)
	assert.Equal(t, chattypes.SenderBot, session.Messages[0].Sender)
}

func TestSessionStore_ReplaceMessageMissingOldAppends(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Initialize())
	id := store.ActiveSessionID()

	reply := store.NewMessage("reply", chattypes.SenderBot)
	require.NoError(t, store.ReplaceMessage(id, "never-existed", reply))

	session, _ := store.Session(id)
	require.Len(t, session.Messages, 1)
	assert.Equal(t, reply.ID, session.Messages[0].ID)
}

func TestSessionStore_TryBeginTitleGeneration(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Initialize())
	id := store.ActiveSessionID()

	assert.True(t, store.TryBeginTitleGeneration(id))
	assert.False(t, store.TryBeginTitleGeneration(id), "second claim must coalesce")

	require.NoError(t, store.SetGeneratingTitle(id, false))
	assert.True(t, store.TryBeginTitleGeneration(id), "claimable again once cleared")

	require.NoError(t, store.UpdateSessionTitle(id, "Titled"))
	assert.False(t, store.TryBeginTitleGeneration(id), "non-default title is never retitled")

	assert.False(t, store.TryBeginTitleGeneration("no-such-session"))
}

func TestSessionStore_NewMessageClassifiesDirection(t *testing.T) {
	store, _ := newTestStore(t)

	ltr := store.NewMessage("hello", chattypes.SenderUser)
	assert.Equal(t, chattypes.DirectionLTR, ltr.Direction)

	rtl := store.NewMessage("שלום", chattypes.SenderUser)
	assert.Equal(t, chattypes.DirectionRTL, rtl.Direction)

	assert.NotEqual(t, ltr.ID, rtl.ID)
}

func TestSessionStore_AccessorsReturnCopies(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Initialize())
	id := store.ActiveSessionID()
	require.NoError(t, store.AppendMessage(id, store.NewMessage("original", chattypes.SenderUser)))

	snapshot, _ := store.Session(id)
	snapshot.Messages[0].Text = "mutated"
	snapshot.Title = "mutated"

	fresh, _ := store.Session(id)
	assert.Equal(t, "original", fresh.Messages[0].Text)
	assert.Equal(t, chattypes.DefaultTitle, fresh.Title)
}
