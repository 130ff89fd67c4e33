// Package llm provides generation and embedding client abstractions over
// the external model provider.
package llm

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// Config holds the model configuration for the application
type Config struct {
	Provider        Provider
	GenerationModel string
	EmbeddingModel  string
	// Temperature applied to grading completions. Kept low so repeated
	// runs over the same evidence stay consistent.
	Temperature float32
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return &Config{
		Provider:        ProviderGemini,
		GenerationModel: "gemini-2.5-flash",
		EmbeddingModel:  "text-embedding-004",
		Temperature:     0.1,
	}
}

// WithGenerationModel returns a copy of the config with a different
// generation model.
func (c *Config) WithGenerationModel(model string) *Config {
	out := *c
	if model != "" {
		out.GenerationModel = model
	}
	return &out
}

// WithEmbeddingModel returns a copy of the config with a different
// embedding model.
func (c *Config) WithEmbeddingModel(model string) *Config {
	out := *c
	if model != "" {
		out.EmbeddingModel = model
	}
	return &out
}
