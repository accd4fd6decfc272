package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academix/pkg/chattypes"
)

func newTestTitleGenerator(t *testing.T, minTranscript int) (*TitleGenerator, *SessionStore, *MockLLMClient) {
	t.Helper()

	store, _ := newTestStore(t)
	require.NoError(t, store.Initialize())
	mock := NewMockLLMClient()
	return NewTitleGenerator(store, mock, minTranscript), store, mock
}

func seedExchange(t *testing.T, store *SessionStore, id string) {
	t.Helper()
	require.NoError(t, store.AppendMessage(id, store.NewMessage("what is the capital of france", chattypes.SenderUser)))
	require.NoError(t, store.AppendMessage(id, store.NewMessage("The capital of France is Paris.", chattypes.SenderBot)))
}

func TestTitleGenerator_SetsTitle(t *testing.T) {
	titles, store, mock := newTestTitleGenerator(t, 0)
	id := store.ActiveSessionID()
	seedExchange(t, store, id)

	titles.Generate(context.Background(), id)

	session, _ := store.Session(id)
	assert.Equal(t, "Mock Title", session.Title)
	assert.False(t, session.IsGeneratingTitle)
	assert.Equal(t, 1, mock.TitleCalls())
}

func TestTitleGenerator_CoalescesConcurrentRequests(t *testing.T) {
	titles, store, mock := newTestTitleGenerator(t, 0)
	id := store.ActiveSessionID()
	seedExchange(t, store, id)

	require.NoError(t, store.SetGeneratingTitle(id, true))
	titles.Generate(context.Background(), id)

	assert.Zero(t, mock.TitleCalls(), "an in-flight generation must absorb later requests")
	session, _ := store.Session(id)
	assert.Equal(t, chattypes.DefaultTitle, session.Title)
}

func TestTitleGenerator_SkipsTitledSession(t *testing.T) {
	titles, store, mock := newTestTitleGenerator(t, 0)
	id := store.ActiveSessionID()
	seedExchange(t, store, id)
	require.NoError(t, store.UpdateSessionTitle(id, "Already Titled"))

	titles.Generate(context.Background(), id)

	assert.Zero(t, mock.TitleCalls())
	session, _ := store.Session(id)
	assert.Equal(t, "Already Titled", session.Title)
}

func TestTitleGenerator_ShortTranscriptAborts(t *testing.T) {
	titles, store, mock := newTestTitleGenerator(t, 500)
	id := store.ActiveSessionID()
	seedExchange(t, store, id)

	titles.Generate(context.Background(), id)

	assert.Zero(t, mock.TitleCalls())
	session, _ := store.Session(id)
	assert.Equal(t, chattypes.DefaultTitle, session.Title)
	assert.False(t, session.IsGeneratingTitle, "aborting must release the guard")
}

func TestTitleGenerator_BackendFailureClearsFlag(t *testing.T) {
	titles, store, mock := newTestTitleGenerator(t, 0)
	id := store.ActiveSessionID()
	seedExchange(t, store, id)
	mock.TitleErr = errors.New("backend down")

	titles.Generate(context.Background(), id)

	session, _ := store.Session(id)
	assert.Equal(t, chattypes.DefaultTitle, session.Title, "failures leave the title untouched")
	assert.False(t, session.IsGeneratingTitle)
	assert.True(t, store.TryBeginTitleGeneration(id), "a later request may try again")
}

func TestTitleGenerator_EmptyTitleClearsFlag(t *testing.T) {
	titles, store, mock := newTestTitleGenerator(t, 0)
	id := store.ActiveSessionID()
	seedExchange(t, store, id)
	mock.Title = `  "" `

	titles.Generate(context.Background(), id)

	session, _ := store.Session(id)
	assert.Equal(t, chattypes.DefaultTitle, session.Title)
	assert.False(t, session.IsGeneratingTitle)
}

func TestTitleGenerator_UnknownSession(t *testing.T) {
	titles, _, mock := newTestTitleGenerator(t, 0)

	titles.Generate(context.Background(), "no-such-session")

	assert.Zero(t, mock.TitleCalls())
}

func TestBuildTranscript(t *testing.T) {
	messages := []chattypes.Message{
		{Text: "hi", Sender: chattypes.SenderUser},
		{Text: "Academix is thinking...", Sender: chattypes.SenderSystem},
		{Text: "hello", Sender: chattypes.SenderBot},
	}

	transcript := buildTranscript(messages)
	assert.Equal(t, "User: hi\nAssistant: hello", transcript)
}

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "Travel Plans", "Travel Plans"},
		{"surrounding whitespace", "  Travel Plans \n", "Travel Plans"},
		{"double quotes", `"Travel Plans"`, "Travel Plans"},
		{"single quotes", "'Travel Plans'", "Travel Plans"},
		{"quotes and whitespace", ` "Travel Plans" `, "Travel Plans"},
		{"inner quote kept", `Bob's "Plan"`, `Bob's "Plan"`},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTitle(tt.input))
		})
	}
}
