// Package config provides configuration loading and validation for the
// grading service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the service configuration that can be loaded from a
// JSON file. All fields are optional; missing values use defaults or must
// be provided via environment variables.
type Config struct {
	// Server
	Port int `json:"port,omitempty"` // HTTP listen port

	// Models
	GenerationModel string `json:"generation_model,omitempty"` // Generation model id
	EmbeddingModel  string `json:"embedding_model,omitempty"`  // Embedding model id

	// Vector index hosts, one per index
	ScoringGuideHost string `json:"scoring_guide_host,omitempty"` // Questionnaire index
	EvidenceHost     string `json:"evidence_host,omitempty"`      // Per-company evidence index
	ScoresHost       string `json:"scores_host,omitempty"`        // Persisted results index
	CompaniesHost    string `json:"companies_host,omitempty"`     // Company directory index

	// Retrieval
	EvidenceTopK    int `json:"evidence_top_k,omitempty"`   // Passages per question
	CatalogTopK     int `json:"catalog_top_k,omitempty"`    // Catalog enumeration bound
	CompaniesTopK   int `json:"companies_top_k,omitempty"`  // Directory enumeration bound
	EvidenceWorkers int `json:"evidence_workers,omitempty"` // Concurrent evidence fetches

	// Keys (normally provided via environment, not the file)
	GeminiAPIKey   string `json:"gemini_api_key,omitempty"`
	PineconeAPIKey string `json:"pinecone_api_key,omitempty"`
}

// Defaults returns the built-in configuration values.
func Defaults() Config {
	return Config{
		Port:            8080,
		EvidenceTopK:    10,
		CatalogTopK:     40,
		CompaniesTopK:   50,
		EvidenceWorkers: 4,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv overlays environment variables onto the config. Environment
// values win over file values.
func (c *Config) FromEnv() {
	overlay := map[string]*string{
		"GEMINI_API_KEY":              &c.GeminiAPIKey,
		"PINECONE_API_KEY":            &c.PineconeAPIKey,
		"GENERATION_MODEL":            &c.GenerationModel,
		"EMBEDDING_MODEL":             &c.EmbeddingModel,
		"PINECONE_SCORING_GUIDE_HOST": &c.ScoringGuideHost,
		"PINECONE_EVIDENCE_HOST":      &c.EvidenceHost,
		"PINECONE_SCORES_HOST":        &c.ScoresHost,
		"PINECONE_COMPANIES_HOST":     &c.CompaniesHost,
	}
	for key, field := range overlay {
		if value := os.Getenv(key); value != "" {
			*field = value
		}
	}
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be a valid TCP port")
	}
	if c.EvidenceTopK < 0 {
		return fmt.Errorf("config error: 'evidence_top_k' must be non-negative")
	}
	if c.EvidenceWorkers < 0 {
		return fmt.Errorf("config error: 'evidence_workers' must be non-negative")
	}
	if c.PineconeAPIKey == "" {
		return fmt.Errorf("config error: PINECONE_API_KEY is required")
	}
	for name, host := range map[string]string{
		"scoring_guide_host": c.ScoringGuideHost,
		"evidence_host":      c.EvidenceHost,
		"scores_host":        c.ScoresHost,
		"companies_host":     c.CompaniesHost,
	} {
		if host == "" {
			return fmt.Errorf("config error: '%s' is required", name)
		}
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from
// defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.GenerationModel == "" {
		result.GenerationModel = defaults.GenerationModel
	}
	if result.EmbeddingModel == "" {
		result.EmbeddingModel = defaults.EmbeddingModel
	}
	if result.ScoringGuideHost == "" {
		result.ScoringGuideHost = defaults.ScoringGuideHost
	}
	if result.EvidenceHost == "" {
		result.EvidenceHost = defaults.EvidenceHost
	}
	if result.ScoresHost == "" {
		result.ScoresHost = defaults.ScoresHost
	}
	if result.CompaniesHost == "" {
		result.CompaniesHost = defaults.CompaniesHost
	}
	if result.EvidenceTopK == 0 {
		result.EvidenceTopK = defaults.EvidenceTopK
	}
	if result.CatalogTopK == 0 {
		result.CatalogTopK = defaults.CatalogTopK
	}
	if result.CompaniesTopK == 0 {
		result.CompaniesTopK = defaults.CompaniesTopK
	}
	if result.EvidenceWorkers == 0 {
		result.EvidenceWorkers = defaults.EvidenceWorkers
	}
	if result.GeminiAPIKey == "" {
		result.GeminiAPIKey = defaults.GeminiAPIKey
	}
	if result.PineconeAPIKey == "" {
		result.PineconeAPIKey = defaults.PineconeAPIKey
	}

	return result
}
