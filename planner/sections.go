package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brunobiangulo/acctplan"
)

type textSection struct {
	key          acctplan.SectionKey
	contextChars int
	longSection  bool
	systemPrompt string
	temperature  float64
	buildPrompt  func(company, context, entitiesJSON string) string
	fallback     func(company string) string
}

// textSections is generated in the fixed order spec.md §4.7 requires,
// excluding swot, key_people, competitors and final_account_plan, which
// have their own non-plain-text generation paths.
var textSections = []textSection{
	{
		key:          acctplan.SectionCompanyOverview,
		contextChars: 2000,
		longSection:  true,
		temperature:  0.6,
		systemPrompt: "You are a senior business analyst with 15+ years of experience in strategic consulting. Generate production-grade, executive-ready company overviews suitable for C-suite presentations. Synthesize information from research data, never copy raw text chunks. Write in professional business language with strategic depth. Return only clean text, no markdown, no images, no artifacts.",
		buildPrompt: func(company, context, entitiesJSON string) string {
			return fmt.Sprintf(`You are a senior business analyst generating a production-grade company overview for %s.

Research Context (PRIORITIZE UPLOADED DOCUMENTS):
%s

Extracted Entities:
%s

Generate a comprehensive, executive-ready company overview (250-350 words) that demonstrates deep understanding:

STRUCTURE:
1. Company History & Founding
2. Core Business Model
3. Current Market Position
4. Key Products/Services
5. Recent Developments

Write in professional business English. Return ONLY the overview text, no JSON, no markdown, no artifacts.`, company, context, entitiesJSON)
		},
		fallback: func(company string) string {
			return fmt.Sprintf("%s is a company operating in the market. Based on available research data, the company has established a presence in its industry.", company)
		},
	},
	{
		key:          acctplan.SectionMarketSummary,
		contextChars: 2000,
		longSection:  true,
		temperature:  0.7,
		systemPrompt: "You are a market analyst. Generate professional market summaries. Return only clean text, no markdown, no images, no artifacts.",
		buildPrompt: func(company, context, entitiesJSON string) string {
			return fmt.Sprintf(`Generate a market summary for %s based on the research data below.

Research Context:
%s

Generate a detailed market summary (200-300 words) covering:
- Industry classification
- Market size and growth trends
- Market position and competitive landscape
- Key market segments
- Geographic presence

Return ONLY the text, no JSON, no markdown.`, company, context)
		},
		fallback: func(company string) string {
			return fmt.Sprintf("Market analysis for %s based on research data.", company)
		},
	},
	{
		key:          acctplan.SectionKeyInsights,
		contextChars: 2000,
		longSection:  true,
		temperature:  0.7,
		systemPrompt: "You are a strategic analyst. Generate key business insights. Return only clean text, no markdown, no images, no artifacts.",
		buildPrompt: func(company, context, entitiesJSON string) string {
			return fmt.Sprintf(`Generate key insights for %s based on the research data below.

Research Context:
%s

Generate 5-7 key insights (250-350 words) covering:
- Strategic implications
- Market dynamics
- Competitive advantages
- Business model insights
- Recent developments

Return ONLY the text, no JSON, no markdown.`, company, context)
		},
		fallback: func(company string) string {
			return fmt.Sprintf("Key insights extracted from research data for %s.", company)
		},
	},
	{
		key:          acctplan.SectionPainPoints,
		contextChars: 2000,
		temperature:  0.7,
		systemPrompt: "You are a business consultant. Identify key pain points and challenges. Return only clean text, no markdown, no images, no artifacts.",
		buildPrompt: func(company, context, entitiesJSON string) string {
			return fmt.Sprintf(`Generate pain points and challenges for %s based on the research data below.

Research Context:
%s

Generate 4-6 major pain points (200-300 words) covering:
- Operational challenges
- Market pressures
- Competitive threats
- Technology gaps
- Financial constraints

Return ONLY the text, no JSON, no markdown.`, company, context)
		},
		fallback: func(company string) string {
			return fmt.Sprintf("Pain points and challenges identified from research for %s.", company)
		},
	},
	{
		key:          acctplan.SectionOpportunities,
		contextChars: 2000,
		temperature:  0.8,
		systemPrompt: "You are a senior growth strategist with 15+ years of experience in market expansion and strategic planning. Identify growth opportunities with production-grade strategic depth. Synthesize information from research data, never copy raw text. Return only clean text, no markdown, no images, no artifacts.",
		buildPrompt: func(company, context, entitiesJSON string) string {
			return fmt.Sprintf(`Generate growth opportunities for %s based on the research data below.

Research Context:
%s

Generate 4-6 key opportunities (200-300 words) covering:
- Market expansion opportunities
- Product development areas
- Strategic partnerships
- Emerging trends
- Untapped markets

Return ONLY the text, no JSON, no markdown.`, company, context)
		},
		fallback: func(company string) string {
			return fmt.Sprintf("Growth opportunities identified from research for %s.", company)
		},
	},
	{
		key:          acctplan.SectionProductsServices,
		contextChars: 1500,
		temperature:  0.7,
		systemPrompt: "You are a senior business analyst with expertise in product strategy and market analysis. Generate production-grade, executive-ready product/service descriptions. Synthesize information from research data, never copy raw text. Return only clean text, no markdown, no images, no artifacts.",
		buildPrompt: func(company, context, entitiesJSON string) string {
			return fmt.Sprintf(`Generate a products and services description for %s.

Research Context:
%s

Generate a detailed products and services section (150-250 words) covering:
- Main product/service offerings
- Key features and capabilities
- Target markets
- Service delivery model

Return ONLY the text, no JSON, no markdown.`, company, context)
		},
		fallback: func(company string) string {
			return fmt.Sprintf("%s offers a range of products and services in its industry.", company)
		},
	},
	{
		key:          acctplan.SectionCompetitorAnalysis,
		contextChars: 5000,
		longSection:  true,
		temperature:  0.7,
		systemPrompt: "You are a competitive intelligence analyst. Generate competitor analysis. Return only clean text, no markdown, no images, no artifacts.",
		buildPrompt: func(company, context, entitiesJSON string) string {
			return fmt.Sprintf(`Generate competitor analysis for %s based on the research data below.

Research Context:
%s

Extracted Entities:
%s

Generate a detailed competitor analysis (250-350 words) covering:
- Main competitors and their market positions
- Competitive advantages and disadvantages
- Market share comparisons
- Product/service differentiation

Return ONLY the text, no JSON, no markdown.`, company, context, entitiesJSON)
		},
		fallback: func(company string) string {
			return fmt.Sprintf("Competitive landscape analysis for %s based on research data.", company)
		},
	},
	{
		key:          acctplan.SectionStrategicRecommendations,
		contextChars: 2000,
		longSection:  true,
		temperature:  0.8,
		systemPrompt: "You are a strategic consultant. Generate actionable strategic recommendations. Return only clean text, no markdown, no images, no artifacts.",
		buildPrompt: func(company, context, entitiesJSON string) string {
			return fmt.Sprintf(`Generate strategic recommendations for engaging with %s based on the research data below.

Research Context:
%s

Generate 4-6 actionable strategic recommendations (250-350 words) covering:
- Key engagement opportunities
- Strategic partnership areas
- Solution positioning
- Implementation approach

Return ONLY the text, no JSON, no markdown.`, company, context)
		},
		fallback: func(company string) string {
			return "Strategic recommendations based on analysis. Further research recommended for detailed planning."
		},
	},
}

const swotSystemPrompt = "You are a strategic analyst. Generate SWOT analysis. Return only valid JSON object, no markdown, no explanations, no extra text after the JSON."

func buildSWOTPrompt(company, context string) string {
	return fmt.Sprintf(`Generate a SWOT analysis for %s based on the research data below.

Research Context:
%s

Return a JSON object with SWOT analysis:
{
  "strengths": "4-5 key strengths, each as a complete sentence",
  "weaknesses": "4-5 weaknesses, each as a complete sentence",
  "opportunities": "4-5 opportunities, each as a complete sentence",
  "threats": "4-5 threats, each as a complete sentence"
}

Return ONLY the JSON object, no markdown, no explanations.`, company, context)
}

func fallbackSWOT() acctplan.SWOT {
	return acctplan.SWOT{
		Strengths:     "Key strengths identified from research.",
		Weaknesses:    "Areas for improvement noted.",
		Opportunities: "Growth opportunities available.",
		Threats:       "Potential threats to consider.",
	}
}

const finalPlanSystemPrompt = "You are a senior executive strategist with 15+ years of experience in C-suite consulting and strategic planning. Generate production-grade, executive-ready summaries suitable for board presentations. Synthesize all sections into a cohesive strategic narrative. Return only clean text, no markdown, no images, no artifacts."

func buildFinalPlanPrompt(company, overview, insights, opportunities string) string {
	return fmt.Sprintf(`Create an executive summary for %s Account Plan based on the following sections:

Company Overview: %s

Key Insights: %s

Opportunities: %s

Generate a comprehensive executive summary (300-400 words) that synthesizes all key findings into a cohesive narrative. Include company positioning, market opportunity, and strategic priorities.

Return ONLY the text, no JSON, no markdown.`, company, truncateChars(overview, 300), truncateChars(insights, 300), truncateChars(opportunities, 300))
}

func fallbackFinalPlan(company string) string {
	return fmt.Sprintf("Executive summary for %s Account Plan based on comprehensive research and analysis.", company)
}

func truncateChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

const keyPeoplePromptSystemPrompt = "You are a senior business analyst specializing in executive intelligence and organizational analysis. Extract key people information with high accuracy. Return ONLY a valid JSON array with proper formatting."

func buildKeyPeoplePrompt(company, context string) string {
	return fmt.Sprintf(`Extract key people (executives, leaders) for %s from the research data below.

Research Context:
%s

Return a JSON array of key people in this format:
[
  {"name": "John Doe", "title": "CEO", "source": "url1"},
  {"name": "Jane Smith", "title": "CTO", "source": "url2"}
]

Return ONLY the JSON array, no markdown, no explanations.`, company, context)
}

// splitNameTitle parses an entity value of the form "Name, Title" into
// its two parts, or treats the whole value as a name with no title.
func splitNameTitle(raw string) (name, title string) {
	parts := strings.SplitN(raw, ",", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(raw), ""
}

// decodeKeyPeopleJSON parses a JSON array of {name,title,source} objects
// from a raw LLM response, tolerating surrounding prose and markdown
// fences.
func decodeKeyPeopleJSON(raw string) []acctplan.KeyPerson {
	candidate := extractJSONArray(raw)
	if candidate == "" {
		return nil
	}
	var people []acctplan.KeyPerson
	if err := json.Unmarshal([]byte(candidate), &people); err != nil {
		return nil
	}
	if len(people) > 5 {
		people = people[:5]
	}
	return people
}
