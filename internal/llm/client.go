package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Generator produces one text completion from a system instruction and a
// user message.
type Generator interface {
	// Generate returns the raw model response text.
	Generate(ctx context.Context, system, user string) (string, error)
}

// Embedder converts free text into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Client combines generation and embedding against one provider.
type Client interface {
	Generator
	Embedder
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey)
	default:
		return NewGeminiClient(ctx, config, apiKey)
	}
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// Generate runs one completion with the given system instruction and user
// message and returns the raw response text.
func (c *GeminiClient) Generate(ctx context.Context, system, user string) (string, error) {
	if c.config.GenerationModel == "" {
		return "", fmt.Errorf("no generation model configured")
	}

	model := c.client.GenerativeModel(c.config.GenerationModel)
	model.SetTemperature(c.config.Temperature)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return extractTextFromResponse(resp)
}

// Embed returns an embedding vector for the given text.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float64, error) {
	if c.config.EmbeddingModel == "" {
		return nil, fmt.Errorf("no embedding model configured")
	}

	model := c.client.EmbeddingModel(c.config.EmbeddingModel)
	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}

	vector := make([]float64, len(resp.Embedding.Values))
	for i, v := range resp.Embedding.Values {
		vector[i] = float64(v)
	}
	return vector, nil
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
