// Package answer produces grounded answers: retrieve the most
// relevant knowledge chunks for a question, hand them to the model
// as context, and return the response together with its citations.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/tanuki0/tanuki/internal/knowledge"
	"github.com/tanuki0/tanuki/internal/llm"
	"github.com/tanuki0/tanuki/internal/log"
)

const systemPrompt = `You are a database expert assistant. Answer questions using only the provided database context. When the context does not contain the answer, say so plainly instead of guessing.`

const promptTemplate = `Use the following database information to answer the question.

Context:
%s

Question: %s`

// noContextAnswer is returned without a model call when retrieval
// finds nothing relevant enough.
const noContextAnswer = "I could not find relevant information about that in the indexed data sources."

// Citation is one retrieved chunk that grounded the answer.
type Citation struct {
	Content       string  `json:"content"`
	Table         string  `json:"table,omitempty"`
	Source        string  `json:"source,omitempty"`
	KnowledgeBase string  `json:"knowledge_base,omitempty"`
	Similarity    float32 `json:"similarity"`
}

// Result is a grounded answer with the evidence behind it.
type Result struct {
	Answer        string     `json:"answer"`
	Citations     []Citation `json:"citations,omitempty"`
	KnowledgeBase string     `json:"knowledge_base"`
}

// Searcher is the slice of a knowledge base the answerer needs.
// *knowledge.Base satisfies it.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Answerer answers questions against a knowledge base. It is
// stateless; conversation memory lives in the agent layer.
type Answerer struct {
	gen       llm.Generator
	topK      int
	threshold float32
	logger    log.Logger
}

// New creates an answerer. topK and threshold bound retrieval for
// every question.
func New(gen llm.Generator, topK int, threshold float32, logger log.Logger) *Answerer {
	return &Answerer{
		gen:       gen,
		topK:      topK,
		threshold: threshold,
		logger:    logger,
	}
}

// Answer retrieves context from base and generates one grounded
// response. When nothing clears the similarity threshold, a fixed
// fallback answer is returned and the model is not called.
func (a *Answerer) Answer(ctx context.Context, base Searcher, question string) (*Result, error) {
	hits, err := base.Search(ctx, question,
		knowledge.WithTopK(a.topK),
		knowledge.WithThreshold(a.threshold))
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	if len(hits) == 0 {
		a.logger.Debug("no context above threshold",
			"knowledge_base", base.Name(), "question_length", len(question))
		return &Result{
			Answer:        noContextAnswer,
			KnowledgeBase: base.Name(),
		}, nil
	}

	text, err := a.gen.Generate(ctx, llm.Request{
		System: systemPrompt,
		Prompt: fmt.Sprintf(promptTemplate, renderContext(hits), question),
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Answer:        text,
		Citations:     citations(base.Name(), hits),
		KnowledgeBase: base.Name(),
	}, nil
}

// renderContext joins the retrieved chunks into the prompt context
// block, best match first.
func renderContext(hits []knowledge.Result) string {
	parts := make([]string, len(hits))
	for i, hit := range hits {
		parts[i] = hit.Document.Content
	}
	return strings.Join(parts, "\n---\n")
}

func citations(baseName string, hits []knowledge.Result) []Citation {
	out := make([]Citation, len(hits))
	for i, hit := range hits {
		out[i] = Citation{
			Content:       hit.Document.Content,
			Table:         hit.Document.Metadata[knowledge.MetaTable],
			Source:        hit.Document.Metadata[knowledge.MetaSource],
			KnowledgeBase: baseName,
			Similarity:    hit.Similarity,
		}
	}
	return out
}
