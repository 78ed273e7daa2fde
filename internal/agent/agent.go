// Package agent implements the conversational layer: a bounded chat
// history on top of grounded question answering. Retrieval failures
// degrade the turn to a plain conversation instead of failing it.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/tanuki0/tanuki/internal/answer"
	"github.com/tanuki0/tanuki/internal/knowledge"
	"github.com/tanuki0/tanuki/internal/llm"
	"github.com/tanuki0/tanuki/internal/log"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of the conversation history.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Status describes the agent and its conversation state.
type Status struct {
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	Turns          int      `json:"turns"`
	MaxHistory     int      `json:"max_history"`
	KnowledgeBases []string `json:"knowledge_bases"`
}

// Reply is the outcome of one chat turn.
type Reply struct {
	Text          string            `json:"text"`
	KnowledgeBase string            `json:"knowledge_base,omitempty"`
	Citations     []answer.Citation `json:"citations,omitempty"`
	// GroundingError is set when retrieval was attempted but failed
	// and the turn fell back to ungrounded conversation.
	GroundingError string `json:"grounding_error,omitempty"`
}

// ChatOptions tunes one chat turn.
type ChatOptions struct {
	// KnowledgeBase names the base to ground against. Empty means
	// the first ready base.
	KnowledgeBase string

	// DisableRAG skips retrieval entirely for this turn.
	DisableRAG bool
}

// Config parameterizes an agent.
type Config struct {
	Name        string
	Description string

	// MaxHistory bounds the conversation to this many user and
	// assistant exchanges. The oldest exchange is evicted first.
	MaxHistory int
}

// Agent is one conversation. It is safe for concurrent use, though
// turns serialize on the history lock.
type Agent struct {
	cfg      Config
	gen      llm.Generator
	answerer *answer.Answerer
	bases    *knowledge.Registry
	logger   log.Logger

	mu      sync.Mutex
	history []Turn
}

// New creates an agent with an empty history.
func New(cfg Config, gen llm.Generator, answerer *answer.Answerer, bases *knowledge.Registry, logger log.Logger) *Agent {
	return &Agent{
		cfg:      cfg,
		gen:      gen,
		answerer: answerer,
		bases:    bases,
		logger:   logger,
	}
}

func (a *Agent) systemPrompt() string {
	prompt := fmt.Sprintf("You are %s, an assistant that answers questions about the user's data sources.", a.cfg.Name)
	if a.cfg.Description != "" {
		prompt += " " + a.cfg.Description
	}
	prompt += " Ground your answers in the database information provided to you and say so when you do not know."
	return prompt
}

// Chat runs one conversation turn. With retrieval enabled the input
// is first answered against a knowledge base and the grounded answer
// is attached to the prompt as context; if grounding fails the turn
// still completes ungrounded, with the failure noted in the reply.
func (a *Agent) Chat(ctx context.Context, input string, opts ChatOptions) (*Reply, error) {
	reply := &Reply{}

	prompt := input
	if !opts.DisableRAG {
		if grounded := a.ground(ctx, input, opts.KnowledgeBase, reply); grounded != "" {
			prompt = grounded
		}
	}

	a.mu.Lock()
	historyMsgs := a.messages()
	a.mu.Unlock()

	text, err := a.gen.Generate(ctx, llm.Request{
		System:  a.systemPrompt(),
		History: historyMsgs,
		Prompt:  prompt,
	})
	if err != nil {
		return nil, err
	}
	reply.Text = text

	now := time.Now()
	a.mu.Lock()
	a.history = append(a.history,
		Turn{Role: RoleUser, Content: input, CreatedAt: now},
		Turn{Role: RoleAssistant, Content: text, CreatedAt: now})
	a.evictLocked()
	a.mu.Unlock()

	return reply, nil
}

// ground answers the input against a knowledge base and returns the
// augmented prompt, or "" when the turn should proceed ungrounded.
func (a *Agent) ground(ctx context.Context, input, baseName string, reply *Reply) string {
	base, err := a.pickBase(baseName)
	if err != nil {
		reply.GroundingError = err.Error()
		a.logger.Warn("grounding unavailable", "error", err)
		return ""
	}

	result, err := a.answerer.Answer(ctx, base, input)
	if err != nil {
		reply.GroundingError = err.Error()
		a.logger.Warn("grounding failed, continuing ungrounded",
			"knowledge_base", base.Name(), "error", err)
		return ""
	}

	reply.KnowledgeBase = result.KnowledgeBase
	reply.Citations = result.Citations

	return fmt.Sprintf("%s\n\nRelevant database information:\n%s", input, result.Answer)
}

func (a *Agent) pickBase(name string) (answer.Searcher, error) {
	if name != "" {
		return a.bases.Get(name)
	}
	base, ok := a.bases.FirstReady()
	if !ok {
		return nil, fmt.Errorf("%w: no knowledge base is ready", knowledge.ErrNotReady)
	}
	return base, nil
}

// messages converts the stored history to model messages. Caller
// holds the lock.
func (a *Agent) messages() []*ai.Message {
	msgs := make([]*ai.Message, 0, len(a.history))
	for _, turn := range a.history {
		if turn.Role == RoleAssistant {
			msgs = append(msgs, ai.NewModelMessage(ai.NewTextPart(turn.Content)))
			continue
		}
		msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(turn.Content)))
	}
	return msgs
}

// evictLocked drops the oldest exchanges once the history exceeds
// MaxHistory user and assistant pairs. Caller holds the lock.
func (a *Agent) evictLocked() {
	if a.cfg.MaxHistory <= 0 {
		return
	}
	max := a.cfg.MaxHistory * 2
	if len(a.history) > max {
		a.history = append(a.history[:0:0], a.history[len(a.history)-max:]...)
	}
}

// History returns a copy of the conversation so far.
func (a *Agent) History() []Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Turn(nil), a.history...)
}

// Clear discards the conversation history.
func (a *Agent) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
}

// Status reports the agent identity and conversation counters.
func (a *Agent) Status() Status {
	a.mu.Lock()
	turns := len(a.history)
	a.mu.Unlock()

	return Status{
		Name:           a.cfg.Name,
		Description:    a.cfg.Description,
		Turns:          turns,
		MaxHistory:     a.cfg.MaxHistory,
		KnowledgeBases: a.bases.Names(),
	}
}
