// Package chattypes defines the session and conversation types shared across Academix.
// This file contains the core types for chat sessions, their messages, and the
// serialized form the session list is persisted in.
package chattypes

import "time"

// Sender identifies who authored a message.
type Sender string

// Message senders. SenderSystem marks ephemeral UI-only messages (the typing
// placeholder); system messages are never sent to a generation backend.
const (
	SenderUser   Sender = "user"
	SenderBot    Sender = "bot"
	SenderSystem Sender = "system"
)

// Direction is the text direction of a message, computed once at creation.
type Direction string

// Text directions.
const (
	DirectionLTR Direction = "ltr"
	DirectionRTL Direction = "rtl"
)

// DefaultTitle is the title every new session starts with. A session whose title
// still equals DefaultTitle is eligible for automatic title generation.
const DefaultTitle = "New Chat"

// ArchiveSchemaVersion is the current version of the persisted session layout.
const ArchiveSchemaVersion = 1

// Message is a single utterance in a session. Text and Direction are immutable
// once the message is created; there is no edit operation.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Direction Direction `json:"direction"`
}

// Session is one conversation thread with its own message history and title.
type Session struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	CreatedAt         time.Time `json:"created_at"`
	LastModified      time.Time `json:"last_modified"`
	Messages          []Message `json:"messages"`
	IsGeneratingTitle bool      `json:"is_generating_title"`
}

// Clone returns a deep copy of the session. Store accessors hand out clones so
// callers never alias the store's internal state.
func (s *Session) Clone() Session {
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return out
}

// SessionArchive is the envelope written to durable storage: the full session
// list, sorted most recently modified first, plus a schema version for future
// migrations.
type SessionArchive struct {
	SchemaVersion int        `json:"schema_version"`
	Sessions      []*Session `json:"sessions"`
}

// Turn is one prior exchange entry passed to the generation backend as
// conversational context. Role is "user" or "model".
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn roles understood by the generation backends.
const (
	TurnRoleUser  = "user"
	TurnRoleModel = "model"
)
