package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig tests the default model configuration
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.NotEmpty(t, cfg.GenerationModel)
	assert.NotEmpty(t, cfg.EmbeddingModel)
	assert.InDelta(t, 0.1, cfg.Temperature, 0.001)
}

// TestWithGenerationModel tests model override without mutating the original
func TestWithGenerationModel(t *testing.T) {
	cfg := DefaultConfig()
	override := cfg.WithGenerationModel("gemini-2.5-pro")

	assert.Equal(t, "gemini-2.5-pro", override.GenerationModel)
	assert.NotEqual(t, cfg.GenerationModel, override.GenerationModel)
	assert.Equal(t, cfg.EmbeddingModel, override.EmbeddingModel)
}

// TestWithGenerationModel_Empty keeps the existing model on empty override
func TestWithGenerationModel_Empty(t *testing.T) {
	cfg := DefaultConfig()
	override := cfg.WithGenerationModel("")
	assert.Equal(t, cfg.GenerationModel, override.GenerationModel)
}

// TestWithEmbeddingModel tests embedding model override
func TestWithEmbeddingModel(t *testing.T) {
	cfg := DefaultConfig()
	override := cfg.WithEmbeddingModel("text-embedding-005")
	assert.Equal(t, "text-embedding-005", override.EmbeddingModel)
	assert.Equal(t, cfg.GenerationModel, override.GenerationModel)
}

// TestNewGeminiClient_MissingKey tests that an empty API key is rejected
func TestNewGeminiClient_MissingKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), DefaultConfig(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}
