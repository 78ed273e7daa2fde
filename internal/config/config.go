// Package config provides application configuration with
// multi-source priority: environment variables override the config
// file, which overrides built-in defaults. The config file is
// ~/.tanuki/config.yaml or ./config.yaml.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTopK indicates top_k is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidThreshold indicates similarity_threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidMaxHistory indicates max_history is out of range.
	ErrInvalidMaxHistory = errors.New("invalid max history")

	// ErrInvalidVectorStore indicates an unknown vector store type.
	ErrInvalidVectorStore = errors.New("invalid vector store type")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

// Vector store backends.
const (
	VectorStorePersistent = "persistent"
	VectorStoreMemory     = "memory"
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider" json:"provider"` // "gemini" (default), "ollama", "openai"
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	OllamaHost    string `mapstructure:"ollama_host" json:"ollama_host"`

	// Agent identity and conversation bounds
	AgentName        string `mapstructure:"agent_name" json:"agent_name"`
	AgentDescription string `mapstructure:"agent_description" json:"agent_description"`
	MaxHistory       int    `mapstructure:"max_history" json:"max_history"`

	// Retrieval tuning
	TopK                int     `mapstructure:"top_k" json:"top_k"`
	SimilarityThreshold float32 `mapstructure:"similarity_threshold" json:"similarity_threshold"`

	// Vector store
	VectorStoreType string `mapstructure:"vector_store_type" json:"vector_store_type"` // "persistent" or "memory"
	VectorStoreDir  string `mapstructure:"vector_store_dir" json:"vector_store_dir"`

	// Data source descriptors
	DatasourcesFile string `mapstructure:"datasources_file" json:"datasources_file"`

	// HTTP server
	HTTPAddr    string   `mapstructure:"http_addr" json:"http_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	RateLimit   float64  `mapstructure:"rate_limit" json:"rate_limit"` // requests per second, 0 disables

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".tanuki")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults(configDir)
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(configDir string) {
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", "gemini-embedding-001")
	viper.SetDefault("ollama_host", "http://localhost:11434")

	viper.SetDefault("agent_name", "tanuki")
	viper.SetDefault("agent_description", "")
	viper.SetDefault("max_history", 10)

	viper.SetDefault("top_k", 5)
	viper.SetDefault("similarity_threshold", 0.7)

	viper.SetDefault("vector_store_type", VectorStorePersistent)
	viper.SetDefault("vector_store_dir", filepath.Join(configDir, "vectors"))

	viper.SetDefault("datasources_file", "datasources.yaml")

	viper.SetDefault("http_addr", ":8080")
	viper.SetDefault("cors_origins", []string{"http://localhost:4200"})
	viper.SetDefault("rate_limit", 0)

	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", false)
}

// bindEnvVariables wires the runtime overrides. API keys
// (GEMINI_API_KEY, OPENAI_API_KEY) are read directly by the Genkit
// plugins, not through viper.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "TANUKI_PROVIDER")
	mustBind("model_name", "TANUKI_MODEL_NAME")
	mustBind("embedder_model", "TANUKI_EMBEDDER_MODEL")
	mustBind("ollama_host", "TANUKI_OLLAMA_HOST")
	mustBind("datasources_file", "TANUKI_DATASOURCES_FILE")
	mustBind("vector_store_dir", "TANUKI_VECTOR_STORE_DIR")
	mustBind("http_addr", "TANUKI_HTTP_ADDR")
	mustBind("cors_origins", "TANUKI_CORS_ORIGINS")
	mustBind("log_level", "TANUKI_LOG_LEVEL")
}

// Validate checks the configuration, failing fast on nonsense values.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderOllama, ProviderOpenAI, "":
	default:
		return fmt.Errorf("%w: %q (expected gemini, ollama or openai)", ErrInvalidProvider, c.Provider)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model_name is empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder_model is empty", ErrInvalidModelName)
	}

	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: %d (expected 1-100)", ErrInvalidTopK, c.TopK)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: %g (expected 0-1)", ErrInvalidThreshold, c.SimilarityThreshold)
	}
	if c.MaxHistory < 1 || c.MaxHistory > 1000 {
		return fmt.Errorf("%w: %d (expected 1-1000)", ErrInvalidMaxHistory, c.MaxHistory)
	}

	switch c.VectorStoreType {
	case VectorStorePersistent, VectorStoreMemory:
	default:
		return fmt.Errorf("%w: %q (expected persistent or memory)", ErrInvalidVectorStore, c.VectorStoreType)
	}

	return nil
}

// FullModelName returns the provider-qualified model name for
// Genkit, e.g. "googleai/gemini-2.5-flash" or "ollama/llama3.3".
// A name already containing "/" is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.ModelName
	default:
		return ProviderGoogleAI + "/" + c.ModelName
	}
}
