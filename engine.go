package acctplan

import (
	"context"
	"fmt"

	"github.com/brunobiangulo/acctplan/agent"
	"github.com/brunobiangulo/acctplan/llm"
	"github.com/brunobiangulo/acctplan/planner"
	"github.com/brunobiangulo/acctplan/retrieval"
	"github.com/brunobiangulo/acctplan/scrape"
	"github.com/brunobiangulo/acctplan/search"
	"github.com/brunobiangulo/acctplan/session"
	"github.com/brunobiangulo/acctplan/store"
)

// Engine is the top-level entry point: one Process call per
// conversational turn, wiring session memory, retrieval, the plan
// generator and persistence behind the agent package's intent router.
type Engine interface {
	// Process runs one turn of the conversation for sessionID/userID
	// and returns the agent's response.
	Process(ctx context.Context, message, sessionID, userID string) (*agent.Response, error)

	// Plans returns the persisted plan summaries for userID.
	Plans(ctx context.Context, userID string) ([]PlanSummary, error)

	// Plan returns the persisted plan with the given id, or nil if none exists.
	Plan(ctx context.Context, id string) (*AccountPlan, error)

	// Close releases the store's underlying database connection.
	Close() error
}

// engine is the concrete Engine implementation.
type engine struct {
	store      *store.Store
	controller *agent.Controller
}

// New wires a complete Engine from cfg: opens the reference SQLite
// store, constructs the chat/embedding LLM providers and SearchAPI/
// ScrapeAPI adapters, and assembles the retrieval pipeline, plan
// generator and agent controller on top of them.
func New(cfg Config) (Engine, error) {
	dbPath := cfg.resolveDBPath()

	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 768
	}

	chatProvider, err := llm.NewProvider(llm.Config{
		Provider: cfg.Chat.Provider,
		Model:    cfg.Chat.Model,
		BaseURL:  cfg.Chat.BaseURL,
		APIKey:   cfg.Chat.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("acctplan: creating chat provider: %w", err)
	}
	chatLLM := llm.NewAdapter(chatProvider, cfg.Chat.Model)

	var embedModel EmbeddingModel
	if cfg.Embedding.Provider != "" {
		embedProvider, err := llm.NewProvider(llm.Config{
			Provider: cfg.Embedding.Provider,
			Model:    cfg.Embedding.Model,
			BaseURL:  cfg.Embedding.BaseURL,
			APIKey:   cfg.Embedding.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("acctplan: creating embedding provider: %w", err)
		}
		embedModel = llm.NewAdapter(embedProvider, cfg.Embedding.Model)
	}

	s, err := store.New(dbPath, cfg.EmbeddingDim, embedModel)
	if err != nil {
		return nil, fmt.Errorf("acctplan: opening store: %w", err)
	}

	searchAPI := search.New(search.Config{
		APIKey:  cfg.Search.APIKey,
		BaseURL: cfg.Search.BaseURL,
	})
	scrapeAPI := scrape.New(scrape.Config{
		FirecrawlAPIKey: cfg.Scrape.APIKey,
		BaseURL:         cfg.Scrape.BaseURL,
	})

	retr := retrieval.New(searchAPI, scrapeAPI, retrieval.Config{
		TopKScrape:   cfg.TopKScrape,
		MinScore:     cfg.MinScore,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		MinChunkSize: cfg.MinChunkSize,
	})

	gen := planner.New(chatLLM, planner.Config{})

	sessions := session.New()
	controller := agent.New(sessions, retr, gen, s, s, chatLLM, agent.Config{})

	return &engine{store: s, controller: controller}, nil
}

func (e *engine) Process(ctx context.Context, message, sessionID, userID string) (*agent.Response, error) {
	return e.controller.Process(ctx, message, sessionID, userID)
}

func (e *engine) Plans(ctx context.Context, userID string) ([]PlanSummary, error) {
	return e.store.List(ctx, userID)
}

func (e *engine) Plan(ctx context.Context, id string) (*AccountPlan, error) {
	return e.store.GetByID(ctx, id)
}

func (e *engine) Close() error {
	return e.store.Close()
}
