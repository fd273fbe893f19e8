package agent

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/brunobiangulo/acctplan"
	"github.com/brunobiangulo/acctplan/entity"
)

// sectionAliases maps the phrases a user actually types onto the
// section keys the planner understands. Several aliases collapse onto
// the same key: SWOT's sub-fields (strengths/weaknesses/threats) have
// no individually regeneratable counterpart in the Go plan, so they all
// resolve to the whole SectionSWOT, unlike the original controller
// which could patch one SWOT sub-field at a time.
var sectionAliases = map[string]acctplan.SectionKey{
	"overview":                  acctplan.SectionCompanyOverview,
	"company overview":          acctplan.SectionCompanyOverview,
	"market":                    acctplan.SectionMarketSummary,
	"market summary":            acctplan.SectionMarketSummary,
	"insights":                  acctplan.SectionKeyInsights,
	"key insights":              acctplan.SectionKeyInsights,
	"pain points":               acctplan.SectionPainPoints,
	"opportunities":             acctplan.SectionOpportunities,
	"products":                  acctplan.SectionProductsServices,
	"products and services":     acctplan.SectionProductsServices,
	"competitor analysis":       acctplan.SectionCompetitorAnalysis,
	"competitors":               acctplan.SectionCompetitors,
	"competitor":                acctplan.SectionCompetitors,
	"swot":                      acctplan.SectionSWOT,
	"strengths":                 acctplan.SectionSWOT,
	"weaknesses":                acctplan.SectionSWOT,
	"threats":                   acctplan.SectionSWOT,
	"recommendations":           acctplan.SectionStrategicRecommendations,
	"strategic recommendations": acctplan.SectionStrategicRecommendations,
	"financial summary":         acctplan.SectionFinancialSummary,
	"financials":                acctplan.SectionFinancialSummary,
	"key people":                acctplan.SectionKeyPeople,
	"executives":                acctplan.SectionKeyPeople,
	"leadership":                acctplan.SectionKeyPeople,
	"final account plan":        acctplan.SectionFinalAccountPlan,
	"executive summary":         acctplan.SectionFinalAccountPlan,
	"summary":                   acctplan.SectionFinalAccountPlan,
}

// sectionAliasesByLength lists sectionAliases' keys longest first, so a
// multi-word alias like "competitor analysis" is tried before the
// shorter "competitor" it happens to contain.
var sectionAliasesByLength = sortedAliasKeys()

func sortedAliasKeys() []string {
	keys := make([]string, 0, len(sectionAliases))
	for alias := range sectionAliases {
		keys = append(keys, alias)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	return keys
}

// operationSplitter breaks a multi-command update message into its
// individual clauses, the same way the original controller splits on
// "and"/"then"/","/"&" before interpreting each clause on its own.
var operationSplitter = regexp.MustCompile(`(?i)\s*(?:,|&|\bthen\b|\band\b)\s*`)

var wholePlanPattern = regexp.MustCompile(`(?i)\b(regenerate|rebuild|redo)\b.*\b(account plan|whole plan|entire plan|everything)\b`)

var financialAddPattern = regexp.MustCompile(`(?i)\badd\b.*?\b([a-z][a-z _-]*)\b\s*(?:of|:|=|is|as)\s*([^,]+?)(?:\s+(?:to|in|within)\s+the\s+financial\s+summary\b|$)`)

// financialRemovePattern captures only the field name immediately
// following "remove", stopping at a connector word ("from"/"in"/"of")
// or end of clause, so "remove headcount from the financial summary"
// yields "headcount" rather than swallowing the rest of the sentence.
var financialRemovePattern = regexp.MustCompile(`(?i)\bremove\b\s+(?:the\s+)?([a-z][a-z-]*(?:\s[a-z][a-z-]*){0,2}?)\s*(?:\bfrom\b|\bin\b|\bof\b|$)`)

type operation struct {
	raw            string
	section        acctplan.SectionKey
	matched        bool
	financialAdd   bool
	financialField string
	financialValue string
	financialDrop  bool
}

func parseOperations(message string) []operation {
	clauses := operationSplitter.Split(strings.TrimSpace(message), -1)
	ops := make([]operation, 0, len(clauses))
	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		ops = append(ops, parseOneOperation(clause))
	}
	return ops
}

func parseOneOperation(clause string) operation {
	op := operation{raw: clause}
	lower := strings.ToLower(clause)

	for _, alias := range sectionAliasesByLength {
		if strings.Contains(lower, alias) {
			op.section = sectionAliases[alias]
			op.matched = true
			break
		}
	}

	if op.section == acctplan.SectionFinancialSummary {
		if m := financialAddPattern.FindStringSubmatch(clause); len(m) == 3 {
			op.financialAdd = true
			op.financialField = normalizeFinancialField(m[1])
			op.financialValue = strings.TrimSpace(m[2])
		} else if m := financialRemovePattern.FindStringSubmatch(clause); len(m) == 2 {
			op.financialDrop = true
			op.financialField = normalizeFinancialField(m[1])
		}
	}

	return op
}

func normalizeFinancialField(raw string) string {
	field := strings.TrimSpace(strings.ToLower(raw))
	field = strings.ReplaceAll(field, " ", "_")
	return strings.Trim(field, "_-")
}

// updateSectionWorkflow applies one or more section edits to the
// session's existing plan. "add"/"remove" operations are only
// meaningful against AccountPlan.FinancialSummary, since it is the only
// open-ended map on an otherwise fixed-shape plan; every other section
// is a whole-field regeneration.
func (c *Controller) updateSectionWorkflow(ctx context.Context, message string, s *acctplan.Session) (*Response, error) {
	if s.AccountPlan == nil {
		return &Response{
			SessionID: s.SessionID,
			Intent:    IntentUpdateSection,
			Message:   "There's no account plan yet to update. Ask me to research a company first.",
		}, nil
	}

	if wholePlanPattern.MatchString(message) {
		return c.generateAndRespond(ctx, s, len(s.ResearchData))
	}

	researchContext := joinChunkText(s.ResearchData, maxResearchContextChars)
	entities := entity.Extract(researchContext)

	var updated []string
	var skipped []string

	for _, op := range parseOperations(message) {
		if !op.matched {
			skipped = append(skipped, op.raw)
			continue
		}

		if op.section == acctplan.SectionFinancialSummary && (op.financialAdd || op.financialDrop) {
			applyFinancialEdit(s.AccountPlan, op)
			updated = append(updated, string(op.section))
			continue
		}

		err := c.gen.Regenerate(ctx, s.AccountPlan, op.section, researchContext, entities)
		if err != nil {
			skipped = append(skipped, string(op.section))
			continue
		}
		updated = append(updated, string(op.section))
	}

	s.AccountPlan.LastUpdated = time.Now().UTC()
	c.persistPlan(ctx, s)

	return &Response{
		SessionID:   s.SessionID,
		Intent:      IntentUpdateSection,
		Message:     updateSummaryMessage(updated, skipped),
		AccountPlan: s.AccountPlan,
	}, nil
}

func applyFinancialEdit(plan *acctplan.AccountPlan, op operation) {
	if plan.FinancialSummary == nil {
		plan.FinancialSummary = map[string]acctplan.FinancialFact{}
	}
	if op.financialDrop {
		delete(plan.FinancialSummary, op.financialField)
		return
	}
	if op.financialField == "" {
		return
	}
	plan.FinancialSummary[op.financialField] = acctplan.FinancialFact{
		Value:      op.financialValue,
		Confidence: 0.6,
	}
}

func updateSummaryMessage(updated, skipped []string) string {
	var b strings.Builder
	if len(updated) > 0 {
		fmt.Fprintf(&b, "Updated: %s.", strings.Join(updated, ", "))
	}
	if len(skipped) > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "I couldn't match or regenerate: %s.", strings.Join(skipped, ", "))
	}
	if b.Len() == 0 {
		return "I couldn't tell which section you'd like to change. Try naming it, like \"update the market summary\"."
	}
	return b.String()
}
