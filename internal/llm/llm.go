// Package llm wraps text generation behind a small interface and
// handles AI provider setup. Supported providers are gemini (the
// default), ollama and openai.
package llm

import (
	"context"
	"errors"

	"github.com/firebase/genkit/go/ai"
)

// ErrGeneration indicates the model call failed or returned nothing
// usable.
var ErrGeneration = errors.New("text generation failed")

// Request is one generation call. History carries prior conversation
// messages in order; Prompt is the new user input.
type Request struct {
	System  string
	History []*ai.Message
	Prompt  string
}

// messages assembles the full message list for the model: history
// first, then the prompt as the newest user message.
func (r Request) messages() []*ai.Message {
	msgs := make([]*ai.Message, 0, len(r.History)+1)
	msgs = append(msgs, r.History...)
	msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(r.Prompt)))
	return msgs
}

// Generator produces a text completion for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
