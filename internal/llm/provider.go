package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
)

// ProviderConfig selects and parameterizes the AI provider.
type ProviderConfig struct {
	Provider      string // gemini, ollama or openai
	ModelName     string
	EmbedderModel string
	OllamaHost    string
}

func (pc ProviderConfig) provider() string {
	if pc.Provider == "" {
		return "gemini"
	}
	return pc.Provider
}

// Init initializes Genkit with the configured provider plugin.
// Ollama needs explicit model and embedder registration; the other
// providers discover their models themselves.
func Init(ctx context.Context, pc ProviderConfig) (*genkit.Genkit, error) {
	switch pc.provider() {
	case "ollama":
		plugin := &ollama.Ollama{ServerAddress: pc.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(plugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		plugin.DefineModel(g, ollama.ModelDefinition{
			Name: pc.ModelName,
			Type: "chat",
		}, nil)
		plugin.DefineEmbedder(g, pc.OllamaHost, pc.EmbedderModel, nil)
		return g, nil

	case "openai":
		g := genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		return g, nil

	case "gemini":
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		return g, nil

	default:
		return nil, fmt.Errorf("unknown provider %q", pc.Provider)
	}
}

// Embedder looks up the embedder registered by the provider plugin.
func Embedder(g *genkit.Genkit, pc ProviderConfig) (ai.Embedder, error) {
	switch pc.provider() {
	case "ollama":
		// Ollama embedders are keyed by server address.
		return ollama.Embedder(g, pc.OllamaHost), nil
	case "openai":
		embedder := genkit.LookupEmbedder(g, api.NewName("openai", pc.EmbedderModel))
		if embedder == nil {
			return nil, fmt.Errorf("unknown openai embedder %q", pc.EmbedderModel)
		}
		return embedder, nil
	case "gemini":
		return googlegenai.GoogleAIEmbedder(g, pc.EmbedderModel), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", pc.Provider)
	}
}
