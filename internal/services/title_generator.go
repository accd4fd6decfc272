package services

import (
	"context"
	"strings"

	"academix/internal/logger"
	"academix/pkg/chattypes"
)

// DefaultMinTranscript is the minimum transcript length worth summarizing.
const DefaultMinTranscript = 10

// TitleGenerator produces a concise session title from its transcript, at most
// once automatically. The in-flight flag on the session coalesces concurrent
// requests; failures clear the flag and leave the title untouched, with no
// automatic retry.
type TitleGenerator struct {
	store         *SessionStore
	client        LLMClient
	minTranscript int
}

// NewTitleGenerator creates a TitleGenerator. minTranscript <= 0 selects
// DefaultMinTranscript.
func NewTitleGenerator(store *SessionStore, client LLMClient, minTranscript int) *TitleGenerator {
	if minTranscript <= 0 {
		minTranscript = DefaultMinTranscript
	}
	return &TitleGenerator{
		store:         store,
		client:        client,
		minTranscript: minTranscript,
	}
}

// Generate attempts to title the session. It aborts silently when the session
// is missing, already titled, already generating, or its transcript is too
// short to summarize.
func (t *TitleGenerator) Generate(ctx context.Context, sessionID string) {
	if !t.store.TryBeginTitleGeneration(sessionID) {
		return
	}

	session, ok := t.store.Session(sessionID)
	if !ok {
		return
	}

	transcript := buildTranscript(session.Messages)
	if len(transcript) < t.minTranscript {
		logger.Debug("Transcript too short for titling", "session_id", sessionID, "length", len(transcript))
		t.clearFlag(sessionID)
		return
	}

	title, err := t.client.GenerateTitle(ctx, transcript)
	if err != nil {
		logger.Error("Title backend failed", "session_id", sessionID, "error", err)
		t.clearFlag(sessionID)
		return
	}

	title = sanitizeTitle(title)
	if title == "" {
		logger.Warn("Title backend returned empty title", "session_id", sessionID)
		t.clearFlag(sessionID)
		return
	}

	if err := t.store.UpdateSessionTitle(sessionID, title); err != nil {
		logger.Debug("Session gone before title landed", "session_id", sessionID)
		return
	}
	logger.Debug("Session titled", "session_id", sessionID, "title", title)
}

func (t *TitleGenerator) clearFlag(sessionID string) {
	if err := t.store.SetGeneratingTitle(sessionID, false); err != nil {
		logger.Debug("Session gone while clearing title flag", "session_id", sessionID)
	}
}

// buildTranscript flattens the user/bot exchange into "User:"/"Assistant:"
// lines. System messages never reach a backend.
func buildTranscript(messages []chattypes.Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		switch msg.Sender {
		case chattypes.SenderUser:
			lines = append(lines, "User: "+msg.Text)
		case chattypes.SenderBot:
			lines = append(lines, "Assistant: "+msg.Text)
		}
	}
	return strings.Join(lines, "\n")
}

// sanitizeTitle trims whitespace and surrounding quotes from a generated title.
func sanitizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if len(title) >= 2 {
		if (title[0] == '"' && title[len(title)-1] == '"') ||
			(title[0] == '\'' && title[len(title)-1] == '\'') {
			title = strings.TrimSpace(title[1 : len(title)-1])
		}
	}
	return title
}
