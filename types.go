// Package acctplan implements the research-and-synthesis core of a
// company research pipeline: it turns a company name (and optionally
// uploaded-document text) into a structured Account Plan by searching,
// scraping, scoring and reconciling sources, then synthesizing the plan
// section by section through an LLM.
//
// The package defines the data model and the interfaces for the
// external collaborators (search, scrape, LLM, vector store, plan
// store) that the core depends on but does not implement itself.
// Reference adapters for those collaborators live in the sibling
// packages llm, search, scrape and store.
package acctplan

import (
	"time"

	"github.com/google/uuid"
)

// SourceKind is the closed set of places a Chunk can have come from.
type SourceKind string

const (
	SourceUploadedDocument SourceKind = "uploaded_document"
	SourceWebSearch        SourceKind = "web_search"
	SourceFallback         SourceKind = "fallback"
)

// EntityKind is the closed set of business facts EntityExtractor looks for.
type EntityKind string

const (
	EntityRevenue     EntityKind = "revenue"
	EntityProfit      EntityKind = "profit"
	EntityEmployees   EntityKind = "employees"
	EntityMarketCap   EntityKind = "market_cap"
	EntityProducts    EntityKind = "products"
	EntityServices    EntityKind = "services"
	EntityCompetitors EntityKind = "competitors"
	EntityLocations   EntityKind = "locations"
	EntityPeople      EntityKind = "people"
)

// AllEntityKinds enumerates EntityKind in a stable, deterministic order.
var AllEntityKinds = []EntityKind{
	EntityRevenue, EntityProfit, EntityEmployees, EntityMarketCap,
	EntityProducts, EntityServices, EntityCompetitors, EntityLocations,
	EntityPeople,
}

// Entities maps an entity kind to its ordered, deduplicated values.
type Entities map[EntityKind][]string

// Get returns the values for kind, or nil if none were extracted.
func (e Entities) Get(kind EntityKind) []string {
	if e == nil {
		return nil
	}
	return e[kind]
}

// First returns the first extracted value for kind, or "" if none.
func (e Entities) First(kind EntityKind) string {
	vs := e.Get(kind)
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// ChunkMetadata carries the provenance and pipeline tags a Chunk
// accumulates on its way from retrieval to storage.
type ChunkMetadata struct {
	URL            string     `json:"url,omitempty"`
	Title          string     `json:"title,omitempty"`
	SourceFile     string     `json:"source_file,omitempty"`
	SourceKind     SourceKind `json:"source_kind"`
	UserID         string     `json:"user_id,omitempty"`
	CompanyName    string     `json:"company_name,omitempty"`
	Query          string     `json:"query,omitempty"`
	RetrievedAt    time.Time  `json:"retrieved_at"`
	ChunkIndex     int        `json:"chunk_index"`
	TotalChunks    int        `json:"total_chunks"`
	CharCount      int        `json:"char_count"`
	WordCount      int        `json:"word_count"`
	Language       string     `json:"language,omitempty"`
	Domain         string     `json:"domain,omitempty"`
	Summary        string     `json:"summary,omitempty"`
	KeyFacts       []string   `json:"key_facts,omitempty"`
}

// DocumentID returns a grouping key for cross-document conflict
// detection: the source file if present, else the URL, else a
// synthetic per-chunk identifier (never collapses unrelated chunks).
func (m ChunkMetadata) DocumentID(fallback string) string {
	if m.SourceFile != "" {
		return m.SourceFile
	}
	if m.URL != "" {
		return m.URL
	}
	return fallback
}

// Score is the weighted quality assessment a Scorer assigns to a Chunk.
type Score struct {
	Freshness   float64 `json:"freshness"`
	Credibility float64 `json:"credibility"`
	Quality     float64 `json:"quality"`
	Relevance   float64 `json:"relevance"`
	Readability float64 `json:"readability"`
	Total       float64 `json:"total"`
}

// Score weights, fixed by the data model.
const (
	WeightFreshness   = 0.15
	WeightCredibility = 0.25
	WeightQuality     = 0.20
	WeightRelevance   = 0.30
	WeightReadability = 0.10
)

// Chunk is an ordered unit of retrieved text with provenance and score.
//
// Invariant: a stored Chunk always has text of length >= MinChunkSize,
// except fallback chunks constructed directly by callers that bypass
// the Chunker. A Chunk is created once by the Chunker, has its Score
// and Confidence set by the Scorer/enrichment pass, and is never
// mutated again once it reaches the VectorStore.
type Chunk struct {
	ChunkID    uuid.UUID     `json:"chunk_id"`
	Text       string        `json:"text"`
	Metadata   ChunkMetadata `json:"metadata"`
	Score      Score         `json:"score"`
	Confidence float64       `json:"confidence"`
}

// NewChunkID generates a fresh, stable chunk identifier.
func NewChunkID() uuid.UUID { return uuid.New() }

// SourceReference is a citation attached to an AccountPlan.
type SourceReference struct {
	URL         string    `json:"url"`
	Kind        string    `json:"type"` // news | pdf | website | api
	ExtractedAt time.Time `json:"extracted_at"`
}

// ConflictSourceValue is one document's reported value for a conflict topic.
type ConflictSourceValue struct {
	Value             string `json:"value"`
	DocumentID        string `json:"document_id"`
	SourceKind        string `json:"source_kind"`
	SourceFileOrURL   string `json:"source_file_or_url"`
}

// ConflictSeverity is the closed severity set for a Conflict.
type ConflictSeverity string

const (
	SeverityLow    ConflictSeverity = "low"
	SeverityMedium ConflictSeverity = "medium"
	SeverityHigh   ConflictSeverity = "high"
)

// Conflict records a disagreement about one factual topic across two or
// more distinct source documents.
type Conflict struct {
	Topic             string                `json:"topic"`
	ConflictingValues []string              `json:"conflicting_values"`
	Sources           []ConflictSourceValue `json:"sources"`
	Severity          ConflictSeverity      `json:"severity"`
}

// FinancialFact is one line of the AccountPlan's financial summary.
type FinancialFact struct {
	Value      string   `json:"value"`
	Source     []string `json:"source"`
	Confidence float64  `json:"confidence"`
}

// KeyPerson is one entry of the AccountPlan's key_people list.
type KeyPerson struct {
	Name   string `json:"name"`
	Title  string `json:"title"`
	Source string `json:"source"`
}

// CompetitorRef is one entry of the AccountPlan's competitors list.
type CompetitorRef struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Source string `json:"source"`
}

// SWOT is the strengths/weaknesses/opportunities/threats sub-object.
type SWOT struct {
	Strengths     string `json:"strengths"`
	Weaknesses    string `json:"weaknesses"`
	Opportunities string `json:"opportunities"`
	Threats       string `json:"threats"`
}

// AccountPlan is the structured business-intelligence artifact this
// system produces. Section keys are a closed, fixed set (spec §3); they
// are represented as struct fields rather than a map so the compiler
// enforces completeness and typos in section names are caught at
// compile time.
type AccountPlan struct {
	CompanyName             string                     `json:"company_name"`
	CompanyOverview         string                     `json:"company_overview"`
	MarketSummary           string                     `json:"market_summary"`
	KeyInsights             string                     `json:"key_insights"`
	PainPoints              string                     `json:"pain_points"`
	Opportunities           string                     `json:"opportunities"`
	ProductsServices        string                     `json:"products_services"`
	CompetitorAnalysis      string                     `json:"competitor_analysis"`
	SWOT                    SWOT                       `json:"swot"`
	StrategicRecommendations string                    `json:"strategic_recommendations"`
	FinancialSummary        map[string]FinancialFact   `json:"financial_summary,omitempty"`
	KeyPeople               []KeyPerson                `json:"key_people"`
	Competitors             []CompetitorRef             `json:"competitors"`
	Sources                 []SourceReference            `json:"sources"`
	FinalAccountPlan        string                     `json:"final_account_plan"`
	LastUpdated             time.Time                  `json:"last_updated"`
}

// SectionKey is a member of the AccountPlan's closed section-key set,
// used as the target of update/regenerate operations.
type SectionKey string

const (
	SectionCompanyOverview          SectionKey = "company_overview"
	SectionMarketSummary            SectionKey = "market_summary"
	SectionKeyInsights              SectionKey = "key_insights"
	SectionPainPoints               SectionKey = "pain_points"
	SectionOpportunities            SectionKey = "opportunities"
	SectionProductsServices         SectionKey = "products_services"
	SectionCompetitorAnalysis       SectionKey = "competitor_analysis"
	SectionSWOT                     SectionKey = "swot"
	SectionStrategicRecommendations SectionKey = "strategic_recommendations"
	SectionFinancialSummary         SectionKey = "financial_summary"
	SectionKeyPeople                SectionKey = "key_people"
	SectionCompetitors              SectionKey = "competitors"
	SectionFinalAccountPlan         SectionKey = "final_account_plan"
)

// AllSectionKeys enumerates the text sections generated one at a time,
// in the order spec.md §4.7 requires (final_account_plan last, since its
// prompt consumes the other sections' outputs).
var AllSectionKeys = []SectionKey{
	SectionCompanyOverview,
	SectionMarketSummary,
	SectionKeyInsights,
	SectionPainPoints,
	SectionOpportunities,
	SectionProductsServices,
	SectionCompetitorAnalysis,
	SectionSWOT,
	SectionStrategicRecommendations,
	SectionCompetitors,
	SectionKeyPeople,
	SectionFinalAccountPlan,
}

// AgentState is the closed set of states a research workflow can be
// suspended in, represented explicitly rather than as a resumable
// coroutine so it can be persisted and resumed across turns.
type AgentState string

const (
	StateIdle                   AgentState = "idle"
	StateAwaitingConflictDecision AgentState = "awaiting_conflict_decision"
	StateProcessing              AgentState = "processing"
)

// Message is one turn of conversation in a Session.
type Message struct {
	Role      string    `json:"role"` // "user" | "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the per-session conversational and research state that
// AgentController reads and mutates on every turn.
type Session struct {
	SessionID    string
	UserID       string
	CompanyName  string
	Messages     []Message
	ResearchData []Chunk
	Conflicts    []Conflict
	AccountPlan  *AccountPlan
	AgentState   AgentState
}

// JobStatus is the closed set of states a Job moves through.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job tracks one in-flight or completed research request for
// deduplication and progress reporting.
type Job struct {
	JobID       string
	QueryHash   string
	UserID      string
	CompanyName string
	Status      JobStatus
	CreatedAt   time.Time
	CompletedAt time.Time
	Result      any
	Err         string
}
