package services

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"academix/internal/logger"
	"academix/pkg/chattypes"
)

// OpenAIClient implements the LLMClient interface for OpenAI's API.
// It provides lazy initialization of the OpenAI client and handles
// all OpenAI-specific communication logic.
type OpenAIClient struct {
	apiKey string
	model  string
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client with lazy initialization.
// The actual OpenAI client is created only when the first request is made.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		apiKey: apiKey,
		model:  model,
		client: nil, // Will be initialized lazily
	}
}

// GetProviderName returns the provider name for this client.
func (c *OpenAIClient) GetProviderName() string {
	return "openai"
}

// IsConfigured returns true if the client has a valid API key.
func (c *OpenAIClient) IsConfigured() bool {
	return c.apiKey != ""
}

// initializeClientIfNeeded initializes the OpenAI client if it hasn't been initialized yet.
func (c *OpenAIClient) initializeClientIfNeeded() error {
	if c.client != nil {
		return nil // Already initialized
	}

	if c.apiKey == "" {
		return fmt.Errorf("OpenAI API key not configured")
	}

	client := openai.NewClient(option.WithAPIKey(c.apiKey))
	c.client = &client

	logger.Debug("OpenAI client initialized", "provider", "openai")
	return nil
}

// GenerateReply sends a chat completion request to OpenAI.
func (c *OpenAIClient) GenerateReply(ctx context.Context, req ChatRequest) (string, error) {
	logger.Debug("OpenAI GenerateReply starting", "model", c.model)

	if err := c.initializeClientIfNeeded(); err != nil {
		return "", fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	messages = append(messages, openai.SystemMessage(replySystemPrompt))
	for _, turn := range req.History {
		switch turn.Role {
		case chattypes.TurnRoleUser:
			messages = append(messages, openai.UserMessage(turn.Content))
		case chattypes.TurnRoleModel:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			// Skip unknown roles
			continue
		}
	}
	messages = append(messages, openai.UserMessage(req.Message))
	logger.Debug("Messages converted", "message_count", len(messages))

	return c.complete(ctx, messages)
}

// GenerateTitle asks OpenAI for a concise session title.
func (c *OpenAIClient) GenerateTitle(ctx context.Context, transcript string) (string, error) {
	logger.Debug("OpenAI GenerateTitle starting", "model", c.model)

	if err := c.initializeClientIfNeeded(); err != nil {
		return "", fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(titlePrompt(transcript)),
	}
	return c.complete(ctx, messages)
}

func (c *OpenAIClient) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}

	logger.Debug("Sending OpenAI request", "model", c.model)
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		logger.Error("OpenAI request failed", "error", err)
		return "", fmt.Errorf("openai request failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		logger.Error("No response choices returned")
		return "", fmt.Errorf("no response choices returned")
	}

	content := completion.Choices[0].Message.Content
	if content == "" {
		logger.Error("Empty response content")
		return "", fmt.Errorf("empty response content")
	}

	logger.Debug("OpenAI response received", "content_length", len(content))
	return content, nil
}
