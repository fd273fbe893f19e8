package agent

import (
	"context"
	"regexp"
	"strings"

	"github.com/brunobiangulo/acctplan"
)

// updateVerbs are the verbs that signal the user wants to change one or
// more sections of an existing plan rather than start new research.
var updateVerbs = regexp.MustCompile(`(?i)\b(regenerate|update|change|revise|rewrite|redo|fix|improve|expand|shorten|add|remove)\b`)

// sectionNoun matches any section alias appearing alongside an update
// verb, so "add a competitor" routes to update_section even without the
// word "section" in it.
var sectionNoun = buildSectionAliasPattern()

func buildSectionAliasPattern() *regexp.Regexp {
	aliases := make([]string, 0, len(sectionAliases))
	for alias := range sectionAliases {
		aliases = append(aliases, regexp.QuoteMeta(alias))
	}
	aliases = append(aliases, "section", "account plan", "plan")
	return regexp.MustCompile(`(?i)\b(` + strings.Join(aliases, "|") + `)\b`)
}

var researchVerbs = regexp.MustCompile(`(?i)\b(research|look up|find out about|tell me about|analyze|generate (a|an|the) (account plan|plan)|create (a|an|the) (account plan|plan))\b`)

var greetingPattern = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|thanks|thank you|ok|okay|sounds good|great|good morning|good afternoon)\b`)

// classifyIntent runs the rule ladder that decides what kind of turn
// this message is. It mirrors the Python controller's _determine_intent
// ladder, with one deliberate change: a session already waiting on a
// conflict decision is detected from acctplan.AgentState directly
// instead of scanning the last assistant message for phrasing, since the
// state machine already records exactly that fact.
func classifyIntent(ctx context.Context, message string, s *acctplan.Session, vectorStore acctplan.VectorStore) Intent {
	trimmed := strings.TrimSpace(message)

	if s.AgentState == acctplan.StateAwaitingConflictDecision {
		return IntentClarify
	}

	if s.AccountPlan != nil && updateVerbs.MatchString(trimmed) && sectionNoun.MatchString(trimmed) {
		return IntentUpdateSection
	}

	if researchVerbs.MatchString(trimmed) {
		return IntentResearchCompany
	}

	if s.CompanyName == "" && extractCompanyName(ctx, trimmed, vectorStore) != "" && !greetingPattern.MatchString(trimmed) {
		return IntentResearchCompany
	}

	if s.AccountPlan == nil && hasUploadedDocuments(ctx, vectorStore) && s.CompanyName == "" {
		return IntentResearchCompany
	}

	return IntentGeneral
}

// hasUploadedDocuments reports whether the vector store holds any
// uploaded-document chunks, used to decide whether a message with no
// research verb and no recognizable company name should still kick off
// research when the session has no plan and no company yet.
func hasUploadedDocuments(ctx context.Context, vectorStore acctplan.VectorStore) bool {
	if vectorStore == nil {
		return false
	}
	chunks, err := vectorStore.Search(ctx, "", 1, map[string]any{"source_kind": string(acctplan.SourceUploadedDocument)})
	if err != nil {
		return false
	}
	return len(chunks) > 0
}
