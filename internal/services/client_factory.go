package services

import (
	"fmt"
	"os"
	"sync"

	"academix/internal/logger"
)

// ClientFactory manages the creation and caching of LLM clients by provider.
type ClientFactory struct {
	mu      sync.RWMutex
	clients map[string]LLMClient
}

// NewClientFactory creates a new ClientFactory instance.
func NewClientFactory() *ClientFactory {
	return &ClientFactory{
		clients: make(map[string]LLMClient),
	}
}

// GetClientForProvider returns an LLM client for the specified provider, model
// and API key. Clients are cached per provider/model/key combination.
func (f *ClientFactory) GetClientForProvider(provider, model, apiKey string) (LLMClient, error) {
	if provider == "" {
		return nil, fmt.Errorf("provider cannot be empty")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key cannot be empty for provider '%s'", provider)
	}

	cacheKey := fmt.Sprintf("%s:%s:%s", provider, model, apiKey)

	f.mu.RLock()
	if client, exists := f.clients[cacheKey]; exists {
		f.mu.RUnlock()
		logger.Debug("Returning cached provider client", "provider", provider)
		return client, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double-check pattern
	if client, exists := f.clients[cacheKey]; exists {
		return client, nil
	}

	var client LLMClient
	switch provider {
	case "openai":
		client = NewOpenAIClient(apiKey, model)
	case "anthropic":
		client = NewAnthropicClient(apiKey, model)
	case "gemini":
		client = NewGeminiClient(apiKey, model)
	default:
		return nil, fmt.Errorf("unsupported provider '%s'. Supported providers: openai, anthropic, gemini", provider)
	}

	f.clients[cacheKey] = client

	logger.Debug("Created new provider client", "provider", provider, "model", model)
	return client, nil
}

// DetermineAPIKeyForProvider determines the API key for a specific provider
// from its conventional environment variable.
func (f *ClientFactory) DetermineAPIKeyForProvider(provider string) (string, error) {
	if provider == "" {
		return "", fmt.Errorf("provider cannot be empty")
	}

	var envVarName string
	switch provider {
	case "openai":
		envVarName = "OPENAI_API_KEY"
	case "anthropic":
		envVarName = "ANTHROPIC_API_KEY"
	case "gemini":
		envVarName = "GOOGLE_API_KEY"
	default:
		return "", fmt.Errorf("unsupported provider '%s'. Supported providers: openai, anthropic, gemini", provider)
	}

	apiKey := os.Getenv(envVarName)
	if apiKey == "" {
		return "", fmt.Errorf("%s API key not found. Please set the %s environment variable", provider, envVarName)
	}

	return apiKey, nil
}
