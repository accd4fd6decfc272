package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"academix/internal/logger"
	"academix/pkg/chattypes"
)

// Coordinator-level errors. Both are validation rejections raised before any
// state mutation.
var (
	ErrEmptyMessage = errors.New("message text is empty")
	ErrSendInFlight = errors.New("a send is already in flight for this session")
)

// typingText is the transient placeholder shown while a reply is pending.
const typingText = "Academix is thinking..."

// errorReplyFallback is the bot message used when a backend failure carries no
// usable description.
const errorReplyFallback = "Sorry, I encountered an error. Please try again."

// DefaultHistoryWindow bounds how many prior turns accompany a reply request.
const DefaultHistoryWindow = 10

// ConversationCoordinator drives the send-message protocol: append the user
// message, insert a typing placeholder, call the generation backend, replace
// the placeholder with the reply or a user-safe error, and kick off deferred
// title generation. The placeholder is always removed before SendMessage
// returns, on success and failure alike.
type ConversationCoordinator struct {
	store         *SessionStore
	client        LLMClient
	titles        *TitleGenerator
	historyWindow int

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewConversationCoordinator creates a coordinator over the given store,
// generation client and title generator. historyWindow <= 0 selects
// DefaultHistoryWindow.
func NewConversationCoordinator(store *SessionStore, client LLMClient, titles *TitleGenerator, historyWindow int) *ConversationCoordinator {
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &ConversationCoordinator{
		store:         store,
		client:        client,
		titles:        titles,
		historyWindow: historyWindow,
		inflight:      make(map[string]struct{}),
	}
}

// SendMessage appends a message authored by sender to the session. For user
// messages it runs the full request/response cycle against the generation
// backend; backend failures surface as a bot message, never as a returned
// error. Overlapping user sends against the same session are rejected with
// ErrSendInFlight before any state mutation.
func (c *ConversationCoordinator) SendMessage(ctx context.Context, sessionID, text string, sender chattypes.Sender) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	if sender != chattypes.SenderUser {
		// Bot/system-authored appends go straight to the store.
		return c.store.AppendMessage(sessionID, c.store.NewMessage(text, sender))
	}

	if err := c.acquire(sessionID); err != nil {
		return err
	}
	defer c.release(sessionID)

	// Snapshot before appending: the history window covers prior turns only.
	before, ok := c.store.Session(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	if err := c.store.AppendMessage(sessionID, c.store.NewMessage(text, chattypes.SenderUser)); err != nil {
		return err
	}

	placeholder := c.store.NewMessage(typingText, chattypes.SenderSystem)
	if err := c.store.AppendMessage(sessionID, placeholder); err != nil {
		return err
	}

	req := ChatRequest{
		Message: text,
		History: historyTurns(before.Messages, c.historyWindow),
	}
	reply, genErr := c.client.GenerateReply(ctx, req)

	var botMsg chattypes.Message
	if genErr != nil {
		logger.Error("Generation backend failed", "session_id", sessionID, "error", genErr)
		botMsg = c.store.NewMessage(userSafeError(genErr), chattypes.SenderBot)
	} else {
		botMsg = c.store.NewMessage(reply, chattypes.SenderBot)
	}

	// The placeholder must not outlive this call. If the session was deleted
	// while the backend call was in flight, the swap is a safe no-op.
	if err := c.store.ReplaceMessage(sessionID, placeholder.ID, botMsg); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			logger.Debug("Session deleted during send", "session_id", sessionID)
			return nil
		}
		return err
	}

	if genErr == nil {
		c.maybeGenerateTitle(sessionID)
	}
	return nil
}

// maybeGenerateTitle schedules title generation when the session still has the
// default title, holds at least one completed exchange, and no generation is
// already in flight. Fire-and-forget relative to the send itself.
func (c *ConversationCoordinator) maybeGenerateTitle(sessionID string) {
	session, ok := c.store.Session(sessionID)
	if !ok || session.Title != chattypes.DefaultTitle || session.IsGeneratingTitle {
		return
	}
	var users, bots int
	for _, msg := range session.Messages {
		switch msg.Sender {
		case chattypes.SenderUser:
			users++
		case chattypes.SenderBot:
			bots++
		}
	}
	if users == 0 || bots == 0 {
		return
	}
	go c.titles.Generate(context.Background(), sessionID)
}

func (c *ConversationCoordinator) acquire(sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[sessionID]; busy {
		return ErrSendInFlight
	}
	c.inflight[sessionID] = struct{}{}
	return nil
}

func (c *ConversationCoordinator) release(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, sessionID)
}

// historyTurns maps the most recent window non-system messages to backend turns.
func historyTurns(messages []chattypes.Message, window int) []chattypes.Turn {
	turns := make([]chattypes.Turn, 0, window)
	for _, msg := range messages {
		switch msg.Sender {
		case chattypes.SenderUser:
			turns = append(turns, chattypes.Turn{Role: chattypes.TurnRoleUser, Content: msg.Text})
		case chattypes.SenderBot:
			turns = append(turns, chattypes.Turn{Role: chattypes.TurnRoleModel, Content: msg.Text})
		}
	}
	if len(turns) > window {
		turns = turns[len(turns)-window:]
	}
	return turns
}

// userSafeError converts a backend failure into text fit for a bot message.
func userSafeError(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return errorReplyFallback
	}
	return msg
}
