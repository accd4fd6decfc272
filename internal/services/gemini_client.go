package services

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"academix/internal/logger"
	"academix/pkg/chattypes"
)

// GeminiClient implements the LLMClient interface for Google Gemini API.
// It provides lazy initialization of the Gemini client and handles
// all Gemini-specific communication logic.
type GeminiClient struct {
	apiKey string
	model  string
	client *genai.Client
}

// NewGeminiClient creates a new Gemini client with lazy initialization.
// The actual Gemini client is created only when the first request is made.
func NewGeminiClient(apiKey, model string) *GeminiClient {
	return &GeminiClient{
		apiKey: apiKey,
		model:  model,
		client: nil, // Will be initialized lazily
	}
}

// GetProviderName returns the provider name for this client.
func (c *GeminiClient) GetProviderName() string {
	return "gemini"
}

// IsConfigured returns true if the client has a valid API key.
func (c *GeminiClient) IsConfigured() bool {
	return c.apiKey != ""
}

// initializeClientIfNeeded initializes the Gemini client if it hasn't been initialized yet.
func (c *GeminiClient) initializeClientIfNeeded(ctx context.Context) error {
	if c.client != nil {
		return nil // Already initialized
	}

	if c.apiKey == "" {
		return fmt.Errorf("google API key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: c.apiKey,
	})
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c.client = client
	logger.Debug("Gemini client initialized", "provider", "gemini")
	return nil
}

// GenerateReply sends a chat completion request to Google Gemini.
func (c *GeminiClient) GenerateReply(ctx context.Context, req ChatRequest) (string, error) {
	logger.Debug("Gemini GenerateReply starting", "model", c.model)

	if err := c.initializeClientIfNeeded(ctx); err != nil {
		return "", fmt.Errorf("failed to initialize Gemini client: %w", err)
	}

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		var role string
		switch turn.Role {
		case chattypes.TurnRoleUser:
			role = "user"
		case chattypes.TurnRoleModel:
			role = "model"
		default:
			// Skip unknown roles
			continue
		}
		contents = append(contents, &genai.Content{
			Parts: []*genai.Part{{Text: turn.Content}},
			Role:  role,
		})
	}
	contents = append(contents, &genai.Content{
		Parts: []*genai.Part{{Text: req.Message}},
		Role:  "user",
	})
	logger.Debug("Messages converted", "content_count", len(contents))

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(replySystemPrompt, genai.RoleUser),
	}
	return c.complete(ctx, contents, config)
}

// GenerateTitle asks Gemini for a concise session title.
func (c *GeminiClient) GenerateTitle(ctx context.Context, transcript string) (string, error) {
	logger.Debug("Gemini GenerateTitle starting", "model", c.model)

	if err := c.initializeClientIfNeeded(ctx); err != nil {
		return "", fmt.Errorf("failed to initialize Gemini client: %w", err)
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: titlePrompt(transcript)}},
		Role:  "user",
	}}
	return c.complete(ctx, contents, &genai.GenerateContentConfig{})
}

func (c *GeminiClient) complete(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	logger.Debug("Sending Gemini request", "model", c.model)
	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		logger.Error("Gemini request failed", "error", err)
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	var content strings.Builder
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text == "" || part.Thought {
				continue // Skip empty and thinking parts
			}
			content.WriteString(part.Text)
		}
	}

	if content.Len() == 0 {
		logger.Error("Empty response content")
		return "", fmt.Errorf("empty response content")
	}

	logger.Debug("Gemini response received", "content_length", content.Len())
	return content.String(), nil
}
