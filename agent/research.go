package agent

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/brunobiangulo/acctplan"
	"github.com/brunobiangulo/acctplan/conflict"
	"github.com/brunobiangulo/acctplan/entity"
)

// maxResearchContextChars bounds how much chunk text gets handed to the
// planner; the planner itself further trims per section.
const maxResearchContextChars = 12000

// researchWorkflow runs the full pipeline for a new or repeated
// research request: resolve the company name, run retrieval, detect
// conflicts, and either ask the user to resolve a conflict or generate
// the account plan straight away when research came only from the
// user's own uploaded documents (nothing to disagree with).
func (c *Controller) researchWorkflow(ctx context.Context, message string, s *acctplan.Session) (*Response, error) {
	company := extractCompanyName(ctx, message, c.vectorStore)
	if company == "" {
		company = s.CompanyName
	}
	if company == "" {
		return &Response{
			SessionID: s.SessionID,
			Intent:    IntentResearchCompany,
			Message:   "Which company would you like me to research?",
			Questions: []string{"What is the name of the company?"},
		}, nil
	}

	if s.CompanyName != "" && !strings.EqualFold(s.CompanyName, company) {
		s.ResearchData = nil
		s.Conflicts = nil
		s.AccountPlan = nil
	}
	s.CompanyName = company

	chunks, trace, err := c.retrieval.Run(ctx, message, company, s.UserID)
	if err != nil {
		return nil, fmt.Errorf("running retrieval: %w", err)
	}

	s.ResearchData = filterMentionsCompany(append(s.ResearchData, chunks...), company)

	if len(s.ResearchData) == 0 {
		return &Response{
			SessionID: s.SessionID,
			Intent:    IntentResearchCompany,
			Message:   fmt.Sprintf("I couldn't find any usable information about %s. Could you share a document or a more specific question?", company),
		}, nil
	}

	conflicts := conflict.DetectConflicts(s.ResearchData)
	if len(conflicts) > 0 && !allUploadedDocuments(s.ResearchData) {
		s.Conflicts = conflicts
		s.AgentState = acctplan.StateAwaitingConflictDecision
		return &Response{
			SessionID: s.SessionID,
			Intent:    IntentResearchCompany,
			Message:   conflictPresentationMessage(company, topConflicts(conflicts, c.cfg.MaxConflictsShown)),
			Conflicts: topConflicts(conflicts, c.cfg.MaxConflictsShown),
		}, nil
	}

	return c.generateAndRespond(ctx, s, trace.ChunksKept)
}

// clarifyWorkflow handles the turn immediately after the agent asked
// the user to resolve a data conflict. A message that asks to skip the
// disagreement resumes plan generation using whatever research is
// already in the session, matching the original controller's resume-
// from-research_data behavior rather than re-running retrieval.
func (c *Controller) clarifyWorkflow(ctx context.Context, message string, s *acctplan.Session) (*Response, error) {
	if len(s.ResearchData) == 0 {
		s.AgentState = acctplan.StateIdle
		return &Response{
			SessionID: s.SessionID,
			Intent:    IntentClarify,
			Message:   "I don't have any research to continue from. Let's start over: which company should I research?",
		}, nil
	}

	if !skipConflictsRequested(message) && s.AgentState == acctplan.StateAwaitingConflictDecision {
		s.Conflicts = resolveConflicts(s.Conflicts, message)
	}

	s.AgentState = acctplan.StateIdle
	return c.generateAndRespond(ctx, s, len(s.ResearchData))
}

func (c *Controller) generateAndRespond(ctx context.Context, s *acctplan.Session, chunksUsed int) (*Response, error) {
	s.AgentState = acctplan.StateProcessing
	defer func() { s.AgentState = acctplan.StateIdle }()

	researchContext := joinChunkText(s.ResearchData, maxResearchContextChars)
	entities := entity.Extract(researchContext)
	sources := sourcesFrom(s.ResearchData)

	plan, err := c.gen.Generate(ctx, s.CompanyName, researchContext, entities, sources)
	if err != nil {
		return nil, fmt.Errorf("generating account plan: %w", err)
	}
	plan.LastUpdated = time.Now().UTC()
	s.AccountPlan = plan
	s.Conflicts = nil

	c.persistPlan(ctx, s)

	return &Response{
		SessionID:   s.SessionID,
		Intent:      IntentResearchCompany,
		Message:     summarize(s.CompanyName, chunksUsed, len(sources)),
		AccountPlan: plan,
	}, nil
}

func conflictPresentationMessage(company string, conflicts []acctplan.Conflict) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I found some disagreement in the sources for %s:\n\n", company)
	for _, cf := range conflicts {
		b.WriteString("- ")
		b.WriteString(conflict.FormatMessage(cf))
		b.WriteString("\n")
	}
	b.WriteString("\nLet me know which value to use, or tell me to skip this and I'll use my best judgment.")
	return b.String()
}

var skipPattern = regexp.MustCompile(`(?i)\b(skip|doesn't matter|does not matter|any (value|one) (is fine|works)|use your (best judgment|judgement)|go ahead|proceed|ignore (it|that|this))\b`)

func skipConflictsRequested(message string) bool {
	return skipPattern.MatchString(message)
}

// resolveConflicts treats a conflict as resolved when the user's reply
// mentions one of its candidate values and drops it; the conflicts the
// reply leaves untouched are returned unchanged.
func resolveConflicts(conflicts []acctplan.Conflict, message string) []acctplan.Conflict {
	lower := strings.ToLower(message)
	var remaining []acctplan.Conflict
	for _, cf := range conflicts {
		mentioned := false
		for _, v := range cf.ConflictingValues {
			if v != "" && strings.Contains(lower, strings.ToLower(v)) {
				mentioned = true
				break
			}
		}
		if !mentioned {
			remaining = append(remaining, cf)
		}
	}
	return remaining
}

func allUploadedDocuments(chunks []acctplan.Chunk) bool {
	if len(chunks) == 0 {
		return false
	}
	for _, ch := range chunks {
		if ch.Metadata.SourceKind != acctplan.SourceUploadedDocument {
			return false
		}
	}
	return true
}

func topConflicts(conflicts []acctplan.Conflict, limit int) []acctplan.Conflict {
	if limit <= 0 || len(conflicts) <= limit {
		return conflicts
	}
	return conflicts[:limit]
}

// filterMentionsCompany drops chunks belonging to a different company
// than the one currently active in the session, guarding against stale
// research data surviving a mid-session company switch.
func filterMentionsCompany(chunks []acctplan.Chunk, company string) []acctplan.Chunk {
	out := make([]acctplan.Chunk, 0, len(chunks))
	seen := make(map[string]bool, len(chunks))
	for _, ch := range chunks {
		if ch.Metadata.CompanyName != "" && !strings.EqualFold(ch.Metadata.CompanyName, company) {
			continue
		}
		key := ch.ChunkID.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ch)
	}
	return out
}

// joinChunkText concatenates the highest-scored chunks first, labeling
// each with its title (or its source URL when the title is empty),
// until maxChars is reached.
func joinChunkText(chunks []acctplan.Chunk, maxChars int) string {
	sorted := make([]acctplan.Chunk, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score.Total > sorted[j].Score.Total })

	var b strings.Builder
	for _, ch := range sorted {
		label := ch.Metadata.Title
		if label == "" {
			label = ch.Metadata.URL
		}
		entry := fmt.Sprintf("Source: %s\n%s\n\n", label, strings.TrimSpace(ch.Text))
		if b.Len()+len(entry) > maxChars {
			remaining := maxChars - b.Len()
			if remaining > 0 {
				b.WriteString(entry[:remaining])
			}
			break
		}
		b.WriteString(entry)
	}
	return b.String()
}

// sourcesFrom dedupes research chunks down to one reference per URL.
func sourcesFrom(chunks []acctplan.Chunk) []acctplan.SourceReference {
	seen := make(map[string]bool, len(chunks))
	var out []acctplan.SourceReference
	for _, ch := range chunks {
		if ch.Metadata.URL == "" || seen[ch.Metadata.URL] {
			continue
		}
		seen[ch.Metadata.URL] = true
		kind := string(ch.Metadata.SourceKind)
		if kind == "" {
			kind = string(acctplan.SourceWebSearch)
		}
		out = append(out, acctplan.SourceReference{
			URL:         ch.Metadata.URL,
			Kind:        kind,
			ExtractedAt: ch.Metadata.RetrievedAt,
		})
	}
	return out
}

func summarize(company string, chunksUsed, sourcesUsed int) string {
	return fmt.Sprintf(
		"I've put together an account plan for %s using %d source(s) and %d research snippet(s). Let me know if you'd like me to expand or regenerate any section.",
		company, sourcesUsed, chunksUsed,
	)
}

// recentMessageText joins the text of the last n messages in the
// session, most recent last, used to prime the general workflow's LLM
// call with conversational context.
func recentMessageText(s *acctplan.Session, n int) string {
	if n <= 0 || len(s.Messages) == 0 {
		return ""
	}
	start := len(s.Messages) - n
	if start < 0 {
		start = 0
	}
	var b strings.Builder
	for _, m := range s.Messages[start:] {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}
