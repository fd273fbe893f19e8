package acctplan

import (
	"context"
	"time"
)

// SearchResult is one entry of a SERP response.
type SearchResult struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
	Source   string `json:"source,omitempty"`
}

// SearchAPI is the external web-search collaborator. Implementations
// may fail with a FailureError of kind FailureNetwork, FailureRateLimit
// or FailureAuth.
type SearchAPI interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// ContentKind is the closed set of raw content shapes ScrapeAPI returns.
type ContentKind string

const (
	ContentHTML     ContentKind = "html"
	ContentMarkdown ContentKind = "markdown"
)

// ScrapeAPI is the external deep-scrape collaborator. An empty result
// with a nil error means "no content"; callers fall back to the SERP
// snippet in that case. Failures use the same FailureKind set as
// SearchAPI.
type ScrapeAPI interface {
	Fetch(ctx context.Context, url string) (raw string, kind ContentKind, err error)
}

// GenerateRequest is one LLM call.
type GenerateRequest struct {
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
}

// GenerateResult is the LLM's response. FinishReason distinguishes a
// normal completion ("stop") from truncation ("length"/"max_tokens") or
// a safety refusal ("safety"/"recitation"), matching the OpenAI-style
// finish_reason vocabulary the reference LLM adapters speak.
type GenerateResult struct {
	Text         string
	FinishReason string
}

const (
	FinishStop      = "stop"
	FinishLength    = "length"
	FinishSafety    = "safety"
	FinishRecitation = "recitation"
)

// LLM is the external text-generation collaborator. Implementations
// apply their own network/rate-limit retry policy internally (see the
// llm package's doPost) and surface FailureTruncated/FailureSafetyBlocked
// via FinishReason rather than error, since those are not retryable the
// same way.
type LLM interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

// EmbeddingModel is the external embedding collaborator. Encode is
// deterministic per text; dimensionality is fixed at construction.
type EmbeddingModel interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

// RetrievedChunk is what VectorStore.Search/GetAll returns: the stored
// text and metadata plus the store's own distance/id bookkeeping.
type RetrievedChunk struct {
	ID       string
	Text     string
	Metadata map[string]any
	Distance float64
}

// VectorStore is the external chunk-persistence collaborator. Metadata
// values are scalar (string, number, bool, nil); lists/maps are
// serialized to JSON strings by the adapter, not by callers.
type VectorStore interface {
	Add(ctx context.Context, texts []string, metadatas []map[string]any, ids []string) ([]string, error)
	Search(ctx context.Context, query string, k int, metadataFilter map[string]any) ([]RetrievedChunk, error)
	GetAll(ctx context.Context, limit int) ([]RetrievedChunk, error)
	Delete(ctx context.Context, ids []string) error
}

// PlanSummary is the lightweight listing shape PlanStore.List returns.
type PlanSummary struct {
	ID          string
	CompanyName string
	LastUpdated time.Time
}

// PlanStore is the external plan-persistence collaborator. Save must
// preserve unchanged sections when only one section was updated: it is
// given the full plan and is expected to diff against the previously
// stored version under the hood, or the caller passes a plan produced
// by mutating the previously stored one in place (the agent package
// does the latter).
type PlanStore interface {
	Save(ctx context.Context, userID, company string, plan *AccountPlan, chatID string) (planID string, err error)
	Get(ctx context.Context, userID, company string) (*AccountPlan, error)
	GetByID(ctx context.Context, id string) (*AccountPlan, error)
	List(ctx context.Context, userID string) ([]PlanSummary, error)
}

// ChatMessage is one persisted chat turn, as opposed to the in-process
// session.Message used by SessionMemory.
type ChatMessage struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// ChatStore is the external chat-persistence collaborator. It is
// explicitly out of scope for this module (spec §1) — SessionMemory is
// the in-process substitute the core actually reads from — but the
// contract is defined so a caller can wire one in without the core
// needing to know about it.
type ChatStore interface {
	AppendMessage(ctx context.Context, chatID string, msg ChatMessage) error
	History(ctx context.Context, chatID string, limit int) ([]ChatMessage, error)
}
