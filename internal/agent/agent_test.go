package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	chromem "github.com/philippgille/chromem-go"

	"github.com/tanuki0/tanuki/internal/answer"
	"github.com/tanuki0/tanuki/internal/datasource"
	"github.com/tanuki0/tanuki/internal/knowledge"
	"github.com/tanuki0/tanuki/internal/llm"
	"github.com/tanuki0/tanuki/internal/log"
)

// scriptedGenerator returns canned responses in order and records
// every request it saw.
type scriptedGenerator struct {
	responses []string
	requests  []llm.Request
}

func (g *scriptedGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	g.requests = append(g.requests, req)
	if len(g.requests) > len(g.responses) {
		return "", fmt.Errorf("%w: script exhausted", llm.ErrGeneration)
	}
	return g.responses[len(g.requests)-1], nil
}

func stubEmbedding(_ context.Context, text string) ([]float32, error) {
	if strings.Contains(text, "alpha") {
		return []float32{1, 0, 0}, nil
	}
	return []float32{0, 1, 0}, nil
}

// readyRegistry builds a registry whose single base loads from a
// pre-populated collection, so it is ready without a live database.
func readyRegistry(t *testing.T, load bool) *knowledge.Registry {
	t.Helper()
	ctx := context.Background()

	db := chromem.NewDB()
	if load {
		col, err := db.CreateCollection("kb_shop_db", nil, stubEmbedding)
		if err != nil {
			t.Fatalf("CreateCollection: %v", err)
		}
		err = col.AddDocuments(ctx, []chromem.Document{{
			ID:      "shop_db:schema:alpha",
			Content: "Table: alpha",
			Metadata: map[string]string{
				knowledge.MetaSource: knowledge.SourceSchema,
				knowledge.MetaTable:  "alpha",
			},
		}}, 1)
		if err != nil {
			t.Fatalf("AddDocuments: %v", err)
		}
	}

	sources, err := datasource.New([]datasource.Descriptor{{
		Name:       "shop_db",
		Kind:       "mysql",
		Connection: map[string]any{},
	}})
	if err != nil {
		t.Fatalf("datasource.New: %v", err)
	}

	reg := knowledge.NewRegistry(sources, db, stubEmbedding, log.NewNop())
	if load {
		if result := reg.LoadAll(ctx); !result.Ok() {
			t.Fatalf("LoadAll: %v", result.Err())
		}
	}
	return reg
}

func newTestAgent(gen *scriptedGenerator, reg *knowledge.Registry, maxHistory int) *Agent {
	answerer := answer.New(gen, 5, 0.5, log.NewNop())
	return New(Config{
		Name:        "tanuki",
		Description: "Knows the shop databases.",
		MaxHistory:  maxHistory,
	}, gen, answerer, reg, log.NewNop())
}

func TestChatGrounded(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		"alpha holds product rows",
		"The alpha table stores products.",
	}}
	a := newTestAgent(gen, readyRegistry(t, true), 10)

	reply, err := a.Chat(context.Background(), "what is in alpha?", ChatOptions{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if reply.Text != "The alpha table stores products." {
		t.Errorf("Text = %q", reply.Text)
	}
	if reply.KnowledgeBase != "shop_db" {
		t.Errorf("KnowledgeBase = %q", reply.KnowledgeBase)
	}
	if len(reply.Citations) == 0 {
		t.Error("no citations on a grounded reply")
	}
	if reply.GroundingError != "" {
		t.Errorf("GroundingError = %q", reply.GroundingError)
	}

	// First call answers against the knowledge base, second is the
	// conversation turn with the grounding attached.
	if len(gen.requests) != 2 {
		t.Fatalf("generator called %d times, want 2", len(gen.requests))
	}
	final := gen.requests[1].Prompt
	if !strings.Contains(final, "Relevant database information") ||
		!strings.Contains(final, "alpha holds product rows") {
		t.Errorf("final prompt not grounded:\n%s", final)
	}
}

func TestChatDegradesWithoutReadyBase(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"plain reply"}}
	a := newTestAgent(gen, readyRegistry(t, false), 10)

	reply, err := a.Chat(context.Background(), "hello", ChatOptions{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if reply.Text != "plain reply" {
		t.Errorf("Text = %q", reply.Text)
	}
	if reply.GroundingError == "" {
		t.Error("expected a grounding error on the reply")
	}
	if len(gen.requests) != 1 {
		t.Fatalf("generator called %d times, want 1", len(gen.requests))
	}
	if got := gen.requests[0].Prompt; got != "hello" {
		t.Errorf("prompt = %q, want the raw input", got)
	}
}

func TestChatDisableRAG(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"plain reply"}}
	a := newTestAgent(gen, readyRegistry(t, true), 10)

	reply, err := a.Chat(context.Background(), "hello", ChatOptions{DisableRAG: true})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(gen.requests) != 1 {
		t.Fatalf("generator called %d times, want 1", len(gen.requests))
	}
	if reply.KnowledgeBase != "" || len(reply.Citations) != 0 {
		t.Errorf("retrieval ran despite DisableRAG: %+v", reply)
	}
}

func TestChatUnknownKnowledgeBase(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"plain reply"}}
	a := newTestAgent(gen, readyRegistry(t, true), 10)

	reply, err := a.Chat(context.Background(), "hello", ChatOptions{KnowledgeBase: "nope"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply.GroundingError == "" {
		t.Error("expected a grounding error for an unknown base")
	}
}

func TestHistoryBounded(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"r1", "r2", "r3"}}
	a := newTestAgent(gen, readyRegistry(t, false), 2)

	ctx := context.Background()
	for _, input := range []string{"q1", "q2", "q3"} {
		if _, err := a.Chat(ctx, input, ChatOptions{DisableRAG: true}); err != nil {
			t.Fatalf("Chat(%q): %v", input, err)
		}
	}

	history := a.History()
	if len(history) != 4 {
		t.Fatalf("history length = %d, want 4 (two exchanges)", len(history))
	}
	// The oldest exchange was evicted.
	if history[0].Content != "q2" || history[0].Role != RoleUser {
		t.Errorf("oldest turn = %+v, want user q2", history[0])
	}
	if history[3].Content != "r3" || history[3].Role != RoleAssistant {
		t.Errorf("newest turn = %+v, want assistant r3", history[3])
	}
}

func TestHistoryFlowsIntoPrompt(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"r1", "r2"}}
	a := newTestAgent(gen, readyRegistry(t, false), 10)

	ctx := context.Background()
	if _, err := a.Chat(ctx, "q1", ChatOptions{DisableRAG: true}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if _, err := a.Chat(ctx, "q2", ChatOptions{DisableRAG: true}); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	second := gen.requests[1]
	if len(second.History) != 2 {
		t.Fatalf("second request carries %d history messages, want 2", len(second.History))
	}
	if got := second.History[0].Text(); got != "q1" {
		t.Errorf("history[0] = %q, want q1", got)
	}
}

func TestClearAndStatus(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"r1"}}
	a := newTestAgent(gen, readyRegistry(t, true), 7)

	if _, err := a.Chat(context.Background(), "q1", ChatOptions{DisableRAG: true}); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	status := a.Status()
	if status.Name != "tanuki" || status.Turns != 2 || status.MaxHistory != 7 {
		t.Errorf("status = %+v", status)
	}
	if len(status.KnowledgeBases) != 1 || status.KnowledgeBases[0] != "shop_db" {
		t.Errorf("KnowledgeBases = %v", status.KnowledgeBases)
	}

	a.Clear()
	if got := len(a.History()); got != 0 {
		t.Errorf("history after Clear = %d turns", got)
	}
	if got := a.Status().Turns; got != 0 {
		t.Errorf("Turns after Clear = %d", got)
	}
}
