package config

import (
	"errors"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Provider:            ProviderGemini,
		ModelName:           "gemini-2.5-flash",
		EmbedderModel:       "gemini-embedding-001",
		MaxHistory:          10,
		TopK:                5,
		SimilarityThreshold: 0.7,
		VectorStoreType:     VectorStorePersistent,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider = "cohere" },
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "empty model name",
			mutate:  func(c *Config) { c.ModelName = "  " },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "empty embedder model",
			mutate:  func(c *Config) { c.EmbedderModel = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "zero top_k",
			mutate:  func(c *Config) { c.TopK = 0 },
			wantErr: ErrInvalidTopK,
		},
		{
			name:    "threshold above one",
			mutate:  func(c *Config) { c.SimilarityThreshold = 1.5 },
			wantErr: ErrInvalidThreshold,
		},
		{
			name:    "negative threshold",
			mutate:  func(c *Config) { c.SimilarityThreshold = -0.1 },
			wantErr: ErrInvalidThreshold,
		},
		{
			name:    "zero max history",
			mutate:  func(c *Config) { c.MaxHistory = 0 },
			wantErr: ErrInvalidMaxHistory,
		},
		{
			name:    "unknown vector store type",
			mutate:  func(c *Config) { c.VectorStoreType = "redis" },
			wantErr: ErrInvalidVectorStore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFullModelName(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		want     string
	}{
		{name: "gemini", provider: ProviderGemini, model: "gemini-2.5-flash", want: "googleai/gemini-2.5-flash"},
		{name: "ollama", provider: ProviderOllama, model: "llama3.3", want: "ollama/llama3.3"},
		{name: "openai", provider: ProviderOpenAI, model: "gpt-4o", want: "openai/gpt-4o"},
		{name: "already qualified", provider: ProviderGemini, model: "googleai/gemini-2.5-pro", want: "googleai/gemini-2.5-pro"},
		{name: "empty provider defaults to googleai", provider: "", model: "gemini-2.5-flash", want: "googleai/gemini-2.5-flash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Provider: tt.provider, ModelName: tt.model}
			if got := cfg.FullModelName(); got != tt.want {
				t.Errorf("FullModelName() = %q, want %q", got, tt.want)
			}
		})
	}
}
