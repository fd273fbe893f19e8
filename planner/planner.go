// Package planner synthesizes an acctplan.AccountPlan from gathered
// research context, one section at a time, with per-section retry
// policy, output cleaning, and truncation detection and repair.
//
// A single giant prompt reliably truncates at the model's max-token
// ceiling once research context and entity data are both included, so
// generation is deliberately broken into one LLM call per section
// (mirroring the round-based draft/audit/refine shape the teacher's
// reasoning engine uses for its own multi-round answer pipeline, here
// applied per-section instead of per-answer).
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brunobiangulo/acctplan"
)

// Config tunes the generator's retry and context-sizing behavior.
type Config struct {
	Temperature      float64
	MaxTokens        int
	SectionTimeout   time.Duration
	TimeoutRetries   int
	RateLimitRetries int
	RetryBaseDelay   time.Duration
}

// DefaultConfig returns the generator's default tuning.
func DefaultConfig() Config {
	return Config{
		Temperature:      0.7,
		MaxTokens:        8000,
		SectionTimeout:   120 * time.Second,
		TimeoutRetries:   2,
		RateLimitRetries: 3,
		RetryBaseDelay:   2 * time.Second,
	}
}

// Generator produces an AccountPlan section by section.
type Generator struct {
	llm acctplan.LLM
	cfg Config
}

// New creates a Generator backed by llm.
func New(llm acctplan.LLM, cfg Config) *Generator {
	if cfg.Temperature == 0 {
		cfg = DefaultConfig()
	}
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}
	return &Generator{llm: llm, cfg: cfg}
}

// Generate produces a complete AccountPlan for company from
// researchContext (the concatenated, ranked chunk text), entities
// extracted from that context, and the source documents researchContext
// was built from.
func (g *Generator) Generate(ctx context.Context, company, researchContext string, entities acctplan.Entities, sources []acctplan.SourceReference) (*acctplan.AccountPlan, error) {
	entitiesJSON := entitiesJSONPreview(entities, entityJSONLimit)

	plan := &acctplan.AccountPlan{
		CompanyName:      company,
		FinancialSummary: buildFinancialSummary(entities, sources),
		LastUpdated:      time.Now().UTC(),
		Sources:          formatSources(sources),
	}

	texts := make(map[acctplan.SectionKey]string, len(textSections))
	for _, sec := range textSections {
		texts[sec.key] = g.safeGenerateText(ctx, sec, company, researchContext, entitiesJSON)
	}

	plan.CompanyOverview = texts[acctplan.SectionCompanyOverview]
	plan.MarketSummary = texts[acctplan.SectionMarketSummary]
	plan.KeyInsights = texts[acctplan.SectionKeyInsights]
	plan.PainPoints = texts[acctplan.SectionPainPoints]
	plan.Opportunities = texts[acctplan.SectionOpportunities]
	plan.ProductsServices = texts[acctplan.SectionProductsServices]
	plan.CompetitorAnalysis = texts[acctplan.SectionCompetitorAnalysis]
	plan.StrategicRecommendations = texts[acctplan.SectionStrategicRecommendations]

	plan.SWOT = g.safeGenerateSWOT(ctx, company, researchContext)
	plan.KeyPeople = g.buildKeyPeople(ctx, company, researchContext, entities, sources)
	plan.Competitors = buildCompetitors(entities, sources)

	plan.FinalAccountPlan = g.safeGenerateFinal(ctx, company, plan.CompanyOverview, plan.KeyInsights, plan.Opportunities)

	g.repairTruncatedSections(ctx, plan, company, researchContext, entitiesJSON)

	return plan, nil
}

// Regenerate regenerates a single section of an existing plan in
// place, using fresh research context. It never creates a new plan.
func (g *Generator) Regenerate(ctx context.Context, plan *acctplan.AccountPlan, key acctplan.SectionKey, researchContext string, entities acctplan.Entities) error {
	entitiesJSON := entitiesJSONPreview(entities, entityJSONLimit)

	switch key {
	case acctplan.SectionSWOT:
		plan.SWOT = g.safeGenerateSWOT(ctx, plan.CompanyName, researchContext)
		return nil
	case acctplan.SectionFinalAccountPlan:
		plan.FinalAccountPlan = g.safeGenerateFinal(ctx, plan.CompanyName, plan.CompanyOverview, plan.KeyInsights, plan.Opportunities)
		return nil
	}

	for _, sec := range textSections {
		if sec.key != key {
			continue
		}
		text := g.safeGenerateText(ctx, sec, plan.CompanyName, researchContext, entitiesJSON)
		setSectionText(plan, key, text)
		if flagged, reason := isTruncated(text, sec.longSection); flagged {
			slog.Warn("planner: regenerated section still truncated", "section", key, "reason", reason)
		}
		return nil
	}
	return fmt.Errorf("acctplan: %w: %s", acctplan.ErrUnknownSection, key)
}

// repairTruncatedSections runs the truncation detector over every text
// section and regenerates any that are flagged, independently and with
// a fresh prompt, matching the detector's own fallback semantics if the
// repair attempt also fails.
func (g *Generator) repairTruncatedSections(ctx context.Context, plan *acctplan.AccountPlan, company, researchContext, entitiesJSON string) {
	for _, sec := range textSections {
		current := sectionText(plan, sec.key)
		flagged, reason := isTruncated(current, sec.longSection)
		if !flagged {
			continue
		}
		slog.Warn("planner: section flagged as truncated, regenerating", "section", sec.key, "reason", reason)
		repaired := g.safeGenerateText(ctx, sec, company, researchContext, entitiesJSON)
		setSectionText(plan, sec.key, repaired)
	}
}

func sectionText(plan *acctplan.AccountPlan, key acctplan.SectionKey) string {
	switch key {
	case acctplan.SectionCompanyOverview:
		return plan.CompanyOverview
	case acctplan.SectionMarketSummary:
		return plan.MarketSummary
	case acctplan.SectionKeyInsights:
		return plan.KeyInsights
	case acctplan.SectionPainPoints:
		return plan.PainPoints
	case acctplan.SectionOpportunities:
		return plan.Opportunities
	case acctplan.SectionProductsServices:
		return plan.ProductsServices
	case acctplan.SectionCompetitorAnalysis:
		return plan.CompetitorAnalysis
	case acctplan.SectionStrategicRecommendations:
		return plan.StrategicRecommendations
	}
	return ""
}

func setSectionText(plan *acctplan.AccountPlan, key acctplan.SectionKey, text string) {
	switch key {
	case acctplan.SectionCompanyOverview:
		plan.CompanyOverview = text
	case acctplan.SectionMarketSummary:
		plan.MarketSummary = text
	case acctplan.SectionKeyInsights:
		plan.KeyInsights = text
	case acctplan.SectionPainPoints:
		plan.PainPoints = text
	case acctplan.SectionOpportunities:
		plan.Opportunities = text
	case acctplan.SectionProductsServices:
		plan.ProductsServices = text
	case acctplan.SectionCompetitorAnalysis:
		plan.CompetitorAnalysis = text
	case acctplan.SectionStrategicRecommendations:
		plan.StrategicRecommendations = text
	}
}

const entityJSONLimit = 500

func entitiesJSONPreview(entities acctplan.Entities, limit int) string {
	b, err := json.Marshal(entities)
	if err != nil {
		return "{}"
	}
	s := string(b)
	if len(s) > limit {
		s = s[:limit]
	}
	return s
}

func formatSources(sources []acctplan.SourceReference) []acctplan.SourceReference {
	out := make([]acctplan.SourceReference, len(sources))
	for i, s := range sources {
		if s.Kind == "" {
			s.Kind = "website"
		}
		if s.ExtractedAt.IsZero() {
			s.ExtractedAt = time.Now().UTC()
		}
		out[i] = s
	}
	return out
}

func sourceURLs(sources []acctplan.SourceReference, n int) []string {
	var urls []string
	for _, s := range sources {
		if s.URL == "" {
			continue
		}
		urls = append(urls, s.URL)
		if len(urls) == n {
			break
		}
	}
	return urls
}

func firstSourceURL(sources []acctplan.SourceReference) string {
	if len(sources) == 0 {
		return ""
	}
	return sources[0].URL
}

func buildFinancialSummary(entities acctplan.Entities, sources []acctplan.SourceReference) map[string]acctplan.FinancialFact {
	summary := map[string]acctplan.FinancialFact{}
	add := func(kind acctplan.EntityKind, field string, confidence float64) {
		v := entities.First(kind)
		if v == "" {
			return
		}
		summary[field] = acctplan.FinancialFact{
			Value:      v,
			Source:     sourceURLs(sources, 3),
			Confidence: confidence,
		}
	}
	add(acctplan.EntityRevenue, "revenue", 0.85)
	add(acctplan.EntityProfit, "profit", 0.80)
	add(acctplan.EntityEmployees, "employees", 0.75)
	add(acctplan.EntityMarketCap, "market_cap", 0.80)
	if len(summary) == 0 {
		return nil
	}
	return summary
}

// buildKeyPeople prefers entities already extracted from research text;
// when none were found it falls back to asking the model to pull
// executive names directly out of the research context.
func (g *Generator) buildKeyPeople(ctx context.Context, company, researchContext string, entities acctplan.Entities, sources []acctplan.SourceReference) []acctplan.KeyPerson {
	people := entities.Get(acctplan.EntityPeople)
	src := firstSourceURL(sources)

	var out []acctplan.KeyPerson
	for _, p := range people {
		name, title := splitNameTitle(p)
		if name == "" {
			continue
		}
		out = append(out, acctplan.KeyPerson{Name: name, Title: title, Source: src})
		if len(out) == 5 {
			break
		}
	}
	if len(out) > 0 {
		return out
	}

	prompt := buildKeyPeoplePrompt(company, truncateChars(researchContext, 2000))
	result, err := g.callOnce(ctx, prompt, keyPeoplePromptSystemPrompt, 0.3)
	if err != nil {
		slog.Warn("planner: key people extraction failed", "error", err)
		return nil
	}
	return decodeKeyPeopleJSON(result.Text)
}

func buildCompetitors(entities acctplan.Entities, sources []acctplan.SourceReference) []acctplan.CompetitorRef {
	competitors := entities.Get(acctplan.EntityCompetitors)
	src := firstSourceURL(sources)

	var out []acctplan.CompetitorRef
	for _, c := range competitors {
		out = append(out, acctplan.CompetitorRef{
			Name:   c,
			Reason: "Competitor in the same market",
			Source: src,
		})
		if len(out) == 5 {
			break
		}
	}
	return out
}
