// Package services provides the session state manager, conversation
// orchestration, title generation, and LLM client implementations for Academix.
package services

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"academix/internal/logger"
	"academix/internal/storage"
	"academix/internal/textdir"
	"academix/pkg/chattypes"
)

// Store-level errors. Callers compare with errors.Is.
var (
	ErrSessionNotFound = errors.New("session not found")
)

// SessionStore is the single source of truth for the session list and the
// active-session pointer. All reads and writes to durable storage flow through
// it. Every mutation is applied atomically under the store mutex and the full
// list is persisted after each settled change; persistence failures are
// reported but non-fatal, leaving in-memory state authoritative.
//
// The store is constructed once per application instance and passed to all
// consumers; there is no ambient singleton.
type SessionStore struct {
	mu          sync.Mutex
	sessions    []*chattypes.Session // kept sorted by LastModified descending
	activeID    string
	blob        storage.BlobStore
	initialized bool

	// Injectable for deterministic tests.
	now   func() time.Time
	newID func() string
}

// NewSessionStore creates a SessionStore backed by the given blob store.
func NewSessionStore(blob storage.BlobStore) *SessionStore {
	return &SessionStore{
		blob:  blob,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// Initialize restores the session list from durable storage. Read failures and
// malformed data are reported and treated as an empty list; malformed
// individual records are dropped and stale title-generation flags cleared.
// If the list is
// empty afterwards, one default session is created synchronously so the store
// never settles without an active session. A second call is a no-op.
func (s *SessionStore) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	logger.ServiceOperation("session_store", "initialize", "starting")

	data, err := s.blob.Load(storage.SessionsKey)
	switch {
	case err == nil:
		var archive chattypes.SessionArchive
		if err := json.Unmarshal(data, &archive); err != nil {
			logger.Error("Failed to decode stored sessions, starting empty", "error", err)
		} else {
			if archive.SchemaVersion > chattypes.ArchiveSchemaVersion {
				logger.Warn("Stored sessions use a newer schema", "schema_version", archive.SchemaVersion)
			}
			for _, session := range archive.Sessions {
				// A null array element or an id-less record decodes without
				// error; dropping it here keeps startup non-fatal.
				if session == nil || session.ID == "" {
					logger.Warn("Dropping malformed stored session")
					continue
				}
				// No title generation survives a restart.
				session.IsGeneratingTitle = false
				s.sessions = append(s.sessions, session)
			}
		}
	case errors.Is(err, storage.ErrNotFound):
		logger.Debug("No stored sessions found")
	default:
		logger.Error("Failed to load stored sessions, starting empty", "error", err)
	}

	s.sortLocked()
	if s.activeID == "" && len(s.sessions) > 0 {
		s.activeID = s.sessions[0].ID
	}
	s.initialized = true

	if len(s.sessions) == 0 {
		s.createSessionLocked(true)
	}

	logger.ServiceOperation("session_store", "initialize", "completed")
	return nil
}

// Initialized reports whether Initialize has run.
func (s *SessionStore) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// CreateSession constructs a new session with the default title and an empty
// message list, inserts it at the head of the list, and returns its id. If
// makeActive is true the new session becomes the active one.
func (s *SessionStore) CreateSession(makeActive bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.createSessionLocked(makeActive)
	return id
}

func (s *SessionStore) createSessionLocked(makeActive bool) string {
	now := s.now()
	session := &chattypes.Session{
		ID:           s.newID(),
		Title:        chattypes.DefaultTitle,
		CreatedAt:    now,
		LastModified: now,
		Messages:     make([]chattypes.Message, 0),
	}
	s.sessions = append([]*chattypes.Session{session}, s.sessions...)
	s.sortLocked()
	if makeActive {
		s.activeID = session.ID
	}
	s.persistLocked()

	logger.Debug("Session created", "session_id", session.ID, "active", makeActive)
	return session.ID
}

// SelectSession sets the active session pointer. Unknown ids leave state
// untouched and return ErrSessionNotFound.
func (s *SessionStore) SelectSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.findLocked(id); !ok {
		return ErrSessionNotFound
	}
	s.activeID = id
	return nil
}

// DeleteSession removes the session with the given id. Deleting an unknown id
// is a no-op. If the deleted session was active, the most recently modified
// remaining session becomes active; if none remain, a fresh default session is
// created synchronously.
func (s *SessionStore) DeleteSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, session := range s.sessions {
		if session.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	if s.activeID == id {
		s.activeID = ""
	}
	if len(s.sessions) == 0 {
		s.createSessionLocked(true)
		logger.Info("Session deleted", "session_id", id)
		return
	}
	if s.activeID == "" {
		s.activeID = s.sessions[0].ID
	}
	s.persistLocked()
	logger.Info("Session deleted", "session_id", id)
}

// AppendMessage appends msg to the session's message list and bumps its
// LastModified timestamp.
func (s *SessionStore) AppendMessage(id string, msg chattypes.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.findLocked(id)
	if !ok {
		return ErrSessionNotFound
	}
	session.Messages = append(session.Messages, msg)
	session.LastModified = s.now()
	s.sortLocked()
	s.persistLocked()
	return nil
}

// ReplaceMessage removes the message with oldMsgID (if present) and appends
// msg. It is used to swap the typing placeholder for a settled reply.
func (s *SessionStore) ReplaceMessage(id, oldMsgID string, msg chattypes.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.findLocked(id)
	if !ok {
		return ErrSessionNotFound
	}
	kept := session.Messages[:0]
	for _, m := range session.Messages {
		if m.ID != oldMsgID {
			kept = append(kept, m)
		}
	}
	session.Messages = append(kept, msg)
	session.LastModified = s.now()
	s.sortLocked()
	s.persistLocked()
	return nil
}

// UpdateSessionTitle sets the session title and clears the title-generation flag.
func (s *SessionStore) UpdateSessionTitle(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.findLocked(id)
	if !ok {
		return ErrSessionNotFound
	}
	session.Title = title
	session.IsGeneratingTitle = false
	s.persistLocked()
	return nil
}

// SetGeneratingTitle sets the title-generation flag.
func (s *SessionStore) SetGeneratingTitle(id string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.findLocked(id)
	if !ok {
		return ErrSessionNotFound
	}
	session.IsGeneratingTitle = value
	s.persistLocked()
	return nil
}

// TryBeginTitleGeneration atomically checks the title-generation guard and
// claims it. It returns false, with no side effect, when the session is
// missing, its title is no longer the default, or a generation is already in
// flight.
func (s *SessionStore) TryBeginTitleGeneration(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.findLocked(id)
	if !ok || session.Title != chattypes.DefaultTitle || session.IsGeneratingTitle {
		return false
	}
	session.IsGeneratingTitle = true
	s.persistLocked()
	return true
}

// NewMessage constructs a message with a fresh id, the store clock, and a
// direction classified from text. All message construction goes through here
// so the creation-time invariants hold everywhere.
func (s *SessionStore) NewMessage(text string, sender chattypes.Sender) chattypes.Message {
	return chattypes.Message{
		ID:        s.newID(),
		Text:      text,
		Sender:    sender,
		Timestamp: s.now(),
		Direction: textdir.Classify(text),
	}
}

// Sessions returns deep copies of all sessions, most recently modified first.
func (s *SessionStore) Sessions() []chattypes.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]chattypes.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session.Clone())
	}
	return out
}

// Session returns a deep copy of the session with the given id.
func (s *SessionStore) Session(id string) (chattypes.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.findLocked(id)
	if !ok {
		return chattypes.Session{}, false
	}
	return session.Clone(), true
}

// ActiveSessionID returns the id of the active session, or "" when none is set.
func (s *SessionStore) ActiveSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// ActiveSession returns a deep copy of the active session.
func (s *SessionStore) ActiveSession() (chattypes.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.findLocked(s.activeID)
	if !ok {
		return chattypes.Session{}, false
	}
	return session.Clone(), true
}

func (s *SessionStore) findLocked(id string) (*chattypes.Session, bool) {
	if id == "" {
		return nil, false
	}
	for _, session := range s.sessions {
		if session.ID == id {
			return session, true
		}
	}
	return nil, false
}

func (s *SessionStore) sortLocked() {
	sort.SliceStable(s.sessions, func(i, j int) bool {
		return s.sessions[i].LastModified.After(s.sessions[j].LastModified)
	})
}

// persistLocked writes the full session list to durable storage. An empty list
// clears storage instead of writing an empty serialization. Failures are
// logged; in-memory state stays authoritative.
func (s *SessionStore) persistLocked() {
	if len(s.sessions) == 0 {
		if err := s.blob.Clear(storage.SessionsKey); err != nil {
			logger.Error("Failed to clear stored sessions", "error", err)
		}
		return
	}

	archive := chattypes.SessionArchive{
		SchemaVersion: chattypes.ArchiveSchemaVersion,
		Sessions:      s.sessions,
	}
	data, err := json.Marshal(archive)
	if err != nil {
		logger.Error("Failed to encode sessions", "error", err)
		return
	}
	if err := s.blob.Save(storage.SessionsKey, data); err != nil {
		logger.Error("Failed to persist sessions", "error", err)
	}
}
