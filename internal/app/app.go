// Package app wires the application together: configuration, AI
// provider, vector store, data sources, knowledge bases and the
// conversational layer. Construction is explicit so the dependency
// graph is readable top to bottom.
package app

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	chromem "github.com/philippgille/chromem-go"

	"github.com/tanuki0/tanuki/internal/agent"
	"github.com/tanuki0/tanuki/internal/answer"
	"github.com/tanuki0/tanuki/internal/config"
	"github.com/tanuki0/tanuki/internal/datasource"
	"github.com/tanuki0/tanuki/internal/knowledge"
	"github.com/tanuki0/tanuki/internal/llm"
	"github.com/tanuki0/tanuki/internal/log"
)

// App holds the assembled application components.
type App struct {
	Config    *config.Config
	Logger    log.Logger
	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	VectorDB  *chromem.DB
	Sources   *datasource.Registry
	Knowledge *knowledge.Registry
	Generator llm.Generator
	Answerer  *answer.Answerer
}

// Setup creates and initializes the application.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	pc := llm.ProviderConfig{
		Provider:      cfg.Provider,
		ModelName:     cfg.ModelName,
		EmbedderModel: cfg.EmbedderModel,
		OllamaHost:    cfg.OllamaHost,
	}

	g, err := llm.Init(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("initializing AI provider: %w", err)
	}
	a.Genkit = g

	embedder, err := llm.Embedder(g, pc)
	if err != nil {
		return nil, fmt.Errorf("resolving embedder: %w", err)
	}
	a.Embedder = embedder

	db, err := knowledge.NewVectorDB(cfg.VectorStoreType, cfg.VectorStoreDir)
	if err != nil {
		return nil, err
	}
	a.VectorDB = db

	sources, err := datasource.Load(cfg.DatasourcesFile)
	if err != nil {
		return nil, fmt.Errorf("loading data sources: %w", err)
	}
	a.Sources = sources

	a.Knowledge = knowledge.NewRegistry(sources, db,
		knowledge.NewEmbeddingFunc(embedder), logger)

	a.Generator = llm.NewGenerator(g, cfg.FullModelName())
	a.Answerer = answer.New(a.Generator, cfg.TopK, cfg.SimilarityThreshold, logger)

	logger.Info("application assembled",
		"provider", cfg.Provider,
		"model", cfg.FullModelName(),
		"vector_store", cfg.VectorStoreType,
		"datasources", len(sources.Enabled()))

	return a, nil
}

// NewAgent creates a fresh conversation agent over the app's
// knowledge registry.
func (a *App) NewAgent() *agent.Agent {
	return agent.New(agent.Config{
		Name:        a.Config.AgentName,
		Description: a.Config.AgentDescription,
		MaxHistory:  a.Config.MaxHistory,
	}, a.Generator, a.Answerer, a.Knowledge, a.Logger)
}
