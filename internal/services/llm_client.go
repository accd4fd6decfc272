package services

import (
	"context"
	"fmt"
	"sync"

	"academix/pkg/chattypes"
)

// ChatRequest is the generation-backend request: the message to respond to and
// an optional bounded window of prior turns.
type ChatRequest struct {
	Message string
	History []chattypes.Turn
}

// LLMClient defines the interface for text-generation backend implementations.
// A client serves both backend contracts: conversational replies and session
// title generation.
type LLMClient interface {
	// GetProviderName returns the provider name for this client.
	GetProviderName() string
	// IsConfigured returns true if the client has a valid API key.
	IsConfigured() bool
	// GenerateReply produces a reply to the request's message, optionally
	// conditioned on the prior turns.
	GenerateReply(ctx context.Context, req ChatRequest) (string, error)
	// GenerateTitle produces a concise title for a flattened transcript.
	GenerateTitle(ctx context.Context, transcript string) (string, error)
}

// replySystemPrompt frames every reply request; it mirrors the assistant
// persona the browser UI presents.
const replySystemPrompt = "You are Academix, a helpful AI assistant. Continue the conversation."

// titlePromptFormat wraps a transcript for the title-generation call.
const titlePromptFormat = `You are an AI assistant designed to generate titles for chat sessions.

Given the following conversation transcript, generate a concise and descriptive title that captures the essence of the discussion. Respond with the title only.

Conversation Transcript:
%s

Title:`

// MockLLMClient provides a scripted LLMClient implementation for testing.
type MockLLMClient struct {
	mu         sync.Mutex
	Reply      string
	ReplyErr   error
	Title      string
	TitleErr   error
	replyCalls int
	titleCalls int

	// Gate, when non-nil, is received from before each reply returns. Tests
	// use it to hold a send in flight.
	Gate chan struct{}
}

// NewMockLLMClient creates a mock client with canned responses.
func NewMockLLMClient() *MockLLMClient {
	return &MockLLMClient{
		Reply: "This is a mock LLM response.",
		Title: "Mock Title",
	}
}

// GetProviderName returns the provider name "mock".
func (m *MockLLMClient) GetProviderName() string { return "mock" }

// IsConfigured always returns true for the mock.
func (m *MockLLMClient) IsConfigured() bool { return true }

// GenerateReply returns the scripted reply or error.
func (m *MockLLMClient) GenerateReply(ctx context.Context, _ ChatRequest) (string, error) {
	m.mu.Lock()
	gate := m.Gate
	m.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.replyCalls++
	if m.ReplyErr != nil {
		return "", m.ReplyErr
	}
	return m.Reply, nil
}

// GenerateTitle returns the scripted title or error.
func (m *MockLLMClient) GenerateTitle(_ context.Context, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.titleCalls++
	if m.TitleErr != nil {
		return "", m.TitleErr
	}
	return m.Title, nil
}

// ReplyCalls returns how many reply requests were made.
func (m *MockLLMClient) ReplyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replyCalls
}

// TitleCalls returns how many title requests were made.
func (m *MockLLMClient) TitleCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.titleCalls
}

// SetReply replaces the scripted reply.
func (m *MockLLMClient) SetReply(reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reply = reply
}

// SetReplyError makes subsequent reply requests fail with err.
func (m *MockLLMClient) SetReplyError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplyErr = err
}

func titlePrompt(transcript string) string {
	return fmt.Sprintf(titlePromptFormat, transcript)
}
