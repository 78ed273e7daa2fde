package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tanuki0/tanuki/internal/knowledge"
	"github.com/tanuki0/tanuki/internal/llm"
	"github.com/tanuki0/tanuki/internal/log"
)

type mockSearcher struct {
	name    string
	results []knowledge.Result
	err     error
}

func (m *mockSearcher) Name() string { return m.name }

func (m *mockSearcher) Search(context.Context, string, ...knowledge.SearchOption) ([]knowledge.Result, error) {
	return m.results, m.err
}

type mockGenerator struct {
	response string
	err      error
	lastReq  llm.Request
	calls    int
}

func (m *mockGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func schemaHit(table, content string, similarity float32) knowledge.Result {
	return knowledge.Result{
		Document: knowledge.Document{
			ID:      "shop_db:schema:" + table,
			Content: content,
			Metadata: map[string]string{
				knowledge.MetaSource: knowledge.SourceSchema,
				knowledge.MetaTable:  table,
			},
		},
		Similarity: similarity,
	}
}

func TestAnswer(t *testing.T) {
	gen := &mockGenerator{response: "The users table stores accounts."}
	base := &mockSearcher{
		name: "shop_db",
		results: []knowledge.Result{
			schemaHit("users", "Table: users", 0.92),
			schemaHit("orders", "Table: orders", 0.81),
		},
	}

	a := New(gen, 5, 0.7, log.NewNop())
	result, err := a.Answer(context.Background(), base, "what is in users?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if result.Answer != "The users table stores accounts." {
		t.Errorf("Answer = %q", result.Answer)
	}
	if result.KnowledgeBase != "shop_db" {
		t.Errorf("KnowledgeBase = %q", result.KnowledgeBase)
	}
	if len(result.Citations) != 2 {
		t.Fatalf("got %d citations, want 2", len(result.Citations))
	}
	if result.Citations[0].Table != "users" || result.Citations[0].Similarity != 0.92 {
		t.Errorf("citation = %+v", result.Citations[0])
	}

	// The prompt carries every retrieved chunk and the question.
	prompt := gen.lastReq.Prompt
	for _, want := range []string{"Table: users", "Table: orders", "what is in users?"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if gen.lastReq.System == "" {
		t.Error("system prompt not set")
	}
}

func TestAnswerNoContext(t *testing.T) {
	gen := &mockGenerator{response: "should not be called"}
	base := &mockSearcher{name: "shop_db"}

	a := New(gen, 5, 0.7, log.NewNop())
	result, err := a.Answer(context.Background(), base, "anything")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if gen.calls != 0 {
		t.Error("generator called despite empty retrieval")
	}
	if result.Answer != noContextAnswer {
		t.Errorf("Answer = %q", result.Answer)
	}
	if len(result.Citations) != 0 {
		t.Errorf("got citations from empty retrieval: %+v", result.Citations)
	}
}

func TestAnswerSearchError(t *testing.T) {
	base := &mockSearcher{name: "shop_db", err: knowledge.ErrNotReady}

	a := New(&mockGenerator{}, 5, 0.7, log.NewNop())
	if _, err := a.Answer(context.Background(), base, "q"); !errors.Is(err, knowledge.ErrNotReady) {
		t.Errorf("error = %v, want ErrNotReady", err)
	}
}

func TestAnswerGenerationError(t *testing.T) {
	gen := &mockGenerator{err: llm.ErrGeneration}
	base := &mockSearcher{
		name:    "shop_db",
		results: []knowledge.Result{schemaHit("users", "Table: users", 0.9)},
	}

	a := New(gen, 5, 0.7, log.NewNop())
	if _, err := a.Answer(context.Background(), base, "q"); !errors.Is(err, llm.ErrGeneration) {
		t.Errorf("error = %v, want ErrGeneration", err)
	}
}
