package llm

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// GenkitGenerator generates text through a Genkit instance.
type GenkitGenerator struct {
	g     *genkit.Genkit
	model string
}

// NewGenerator creates a generator bound to the given model name.
// The name must include the provider prefix, e.g.
// "googleai/gemini-2.5-flash".
func NewGenerator(g *genkit.Genkit, model string) *GenkitGenerator {
	return &GenkitGenerator{g: g, model: model}
}

// Generate runs one completion. Errors are wrapped in ErrGeneration
// so callers can branch on generation failure without inspecting
// provider internals.
func (gg *GenkitGenerator) Generate(ctx context.Context, req Request) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(gg.model),
		ai.WithMessages(req.messages()...),
	}
	if req.System != "" {
		opts = append(opts, ai.WithSystem(req.System))
	}

	resp, err := genkit.Generate(ctx, gg.g, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrGeneration)
	}
	return text, nil
}
