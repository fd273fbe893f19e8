package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/brunobiangulo/acctplan"
	"github.com/brunobiangulo/acctplan/planner"
	"github.com/brunobiangulo/acctplan/retrieval"
	"github.com/brunobiangulo/acctplan/session"
)

type scriptedResponse struct {
	result acctplan.GenerateResult
	err    error
}

func text(s string) scriptedResponse {
	return scriptedResponse{result: acctplan.GenerateResult{Text: s, FinishReason: acctplan.FinishStop}}
}

type scriptedLLM struct {
	responses []scriptedResponse
	calls     int
}

func (f *scriptedLLM) Generate(ctx context.Context, req acctplan.GenerateRequest) (acctplan.GenerateResult, error) {
	if f.calls >= len(f.responses) {
		return acctplan.GenerateResult{Text: "default response.", FinishReason: acctplan.FinishStop}, nil
	}
	r := f.responses[f.calls]
	f.calls++
	return r.result, r.err
}

type fakeSearch struct {
	results []acctplan.SearchResult
}

func (f *fakeSearch) Search(ctx context.Context, query string, maxResults int) ([]acctplan.SearchResult, error) {
	return f.results, nil
}

type fakeScrape struct {
	body string
}

func (f *fakeScrape) Fetch(ctx context.Context, url string) (string, acctplan.ContentKind, error) {
	return f.body, acctplan.ContentMarkdown, nil
}

type fakeVectorStore struct {
	uploaded []acctplan.RetrievedChunk
}

func (f *fakeVectorStore) Add(ctx context.Context, texts []string, metadatas []map[string]any, ids []string) ([]string, error) {
	return ids, nil
}

func (f *fakeVectorStore) Search(ctx context.Context, query string, k int, metadataFilter map[string]any) ([]acctplan.RetrievedChunk, error) {
	if kind, ok := metadataFilter["source_kind"]; ok && kind == string(acctplan.SourceUploadedDocument) {
		return f.uploaded, nil
	}
	return nil, nil
}

func (f *fakeVectorStore) GetAll(ctx context.Context, limit int) ([]acctplan.RetrievedChunk, error) {
	return nil, nil
}

func (f *fakeVectorStore) Delete(ctx context.Context, ids []string) error { return nil }

type fakePlanStore struct {
	saved int
}

func (f *fakePlanStore) Save(ctx context.Context, userID, company string, plan *acctplan.AccountPlan, chatID string) (string, error) {
	f.saved++
	return "plan-1", nil
}

func (f *fakePlanStore) Get(ctx context.Context, userID, company string) (*acctplan.AccountPlan, error) {
	return nil, acctplan.ErrPlanNotFound
}

func (f *fakePlanStore) GetByID(ctx context.Context, planID string) (*acctplan.AccountPlan, error) {
	return nil, acctplan.ErrPlanNotFound
}

func (f *fakePlanStore) List(ctx context.Context, userID string) ([]acctplan.PlanSummary, error) {
	return nil, nil
}

// fullGenerationResponses supplies one response per LLM call that
// planner.Generator.Generate makes: 8 text sections, SWOT, key people
// (the research text names no people, so the model is asked for them),
// final plan.
func fullGenerationResponses() []scriptedResponse {
	return []scriptedResponse{
		text("Acme is a cloud infrastructure company serving enterprise customers worldwide."),
		text("The cloud infrastructure market is growing rapidly amid rising enterprise demand."),
		text("Acme's main strength is its developer-friendly platform and broad partner ecosystem."),
		text("Customers report friction during onboarding and unclear pricing tiers."),
		text("There is an opportunity to expand into mid-market accounts internationally."),
		text("Acme offers compute, storage, and managed database products for enterprises."),
		text("Competitors include several large cloud providers competing on price and scale."),
		text("Acme should invest in onboarding automation and expand its partner program."),
		text(`{"strengths":"Strong platform","weaknesses":"Onboarding friction","opportunities":"Mid-market expansion","threats":"Price competition"}`),
		text("default response."),
		text("Acme is well positioned to grow in the enterprise cloud market this year."),
	}
}

func newTestController(t *testing.T, llm *scriptedLLM, planStore acctplan.PlanStore, vectorStore acctplan.VectorStore) (*Controller, *session.Memory) {
	t.Helper()
	sessions := session.New()
	retr := retrieval.New(
		&fakeSearch{results: []acctplan.SearchResult{{Title: "Acme Newsroom", URL: "https://acme.example.com/news", Position: 1}}},
		&fakeScrape{body: strings.Repeat("Acme Corporation is a leading provider of enterprise cloud infrastructure services. ", 10)},
		retrieval.Config{MinScore: 0},
	)
	gen := planner.New(llm, planner.Config{Temperature: 0.7, MaxTokens: 8000, RetryBaseDelay: time.Millisecond})
	ctrl := New(sessions, retr, gen, planStore, vectorStore, llm, Config{})
	return ctrl, sessions
}

func TestClassifyIntent_AwaitingConflictGoesToClarify(t *testing.T) {
	s := &acctplan.Session{AgentState: acctplan.StateAwaitingConflictDecision}
	if got := classifyIntent(context.Background(), "use the higher number", s, nil); got != IntentClarify {
		t.Fatalf("intent = %v, want clarify", got)
	}
}

func TestClassifyIntent_UpdateSectionRequiresExistingPlan(t *testing.T) {
	s := &acctplan.Session{AccountPlan: &acctplan.AccountPlan{}}
	if got := classifyIntent(context.Background(), "please update the market summary", s, nil); got != IntentUpdateSection {
		t.Fatalf("intent = %v, want update_section", got)
	}

	s2 := &acctplan.Session{}
	if got := classifyIntent(context.Background(), "please update the market summary", s2, nil); got == IntentUpdateSection {
		t.Fatalf("intent should not be update_section without an existing plan")
	}
}

func TestClassifyIntent_ResearchVerb(t *testing.T) {
	s := &acctplan.Session{}
	got := classifyIntent(context.Background(), "research Acme Corp for me", s, nil)
	if got != IntentResearchCompany {
		t.Fatalf("intent = %v, want research_company", got)
	}
}

func TestClassifyIntent_GreetingIsGeneral(t *testing.T) {
	s := &acctplan.Session{}
	got := classifyIntent(context.Background(), "hello there", s, nil)
	if got != IntentGeneral {
		t.Fatalf("intent = %v, want general", got)
	}
}

func TestExtractCompanyName_PhrasedPattern(t *testing.T) {
	name := extractCompanyName(context.Background(), "Can you research Acme Corp for me?", nil)
	if name != "Acme Corp" {
		t.Fatalf("got %q", name)
	}
}

func TestExtractCompanyName_PlanForPhrasing(t *testing.T) {
	name := extractCompanyName(context.Background(), "build an account plan for Northwind Traders", nil)
	if name != "Northwind Traders" {
		t.Fatalf("got %q", name)
	}
}

func TestExtractCompanyName_FallsBackToUploadedDocument(t *testing.T) {
	vs := &fakeVectorStore{uploaded: []acctplan.RetrievedChunk{{Text: "Globex Corporation reported record earnings this quarter."}}}
	name := extractCompanyName(context.Background(), "what do you think?", vs)
	if name == "" {
		t.Fatal("expected a fallback company name guess")
	}
}

func TestResearchWorkflow_AsksForCompanyWhenMissing(t *testing.T) {
	ctrl, _ := newTestController(t, &scriptedLLM{}, nil, nil)
	s := &acctplan.Session{SessionID: "s1"}
	resp, err := ctrl.researchWorkflow(context.Background(), "what do you think?", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Questions) == 0 {
		t.Fatal("expected a clarifying question for the missing company name")
	}
}

func TestResearchWorkflow_GeneratesPlan(t *testing.T) {
	llm := &scriptedLLM{responses: fullGenerationResponses()}
	planStore := &fakePlanStore{}
	ctrl, _ := newTestController(t, llm, planStore, nil)
	s := &acctplan.Session{SessionID: "s1", UserID: "u1"}

	resp, err := ctrl.researchWorkflow(context.Background(), "research Acme Corp", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.AccountPlan == nil {
		t.Fatal("expected an account plan to be generated")
	}
	if s.CompanyName != "Acme Corp" {
		t.Fatalf("session company name = %q", s.CompanyName)
	}
	if planStore.saved == 0 {
		t.Fatal("expected the generated plan to be persisted")
	}
}

func TestResearchWorkflow_CompanyChangeClearsPriorData(t *testing.T) {
	llm := &scriptedLLM{responses: fullGenerationResponses()}
	ctrl, _ := newTestController(t, llm, nil, nil)
	s := &acctplan.Session{
		SessionID:    "s1",
		CompanyName:  "OldCo",
		ResearchData: []acctplan.Chunk{{ChunkID: acctplan.NewChunkID(), Text: "stale"}},
		AccountPlan:  &acctplan.AccountPlan{CompanyName: "OldCo"},
	}

	_, err := ctrl.researchWorkflow(context.Background(), "research Acme Corp", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.CompanyName != "Acme Corp" {
		t.Fatalf("company name = %q, want Acme Corp", s.CompanyName)
	}
	for _, c := range s.ResearchData {
		if c.Text == "stale" {
			t.Fatal("expected stale research data to be cleared on company change")
		}
	}
}

func TestClarifyWorkflow_SkipResumesFromExistingResearch(t *testing.T) {
	llm := &scriptedLLM{responses: fullGenerationResponses()}
	ctrl, _ := newTestController(t, llm, nil, nil)
	s := &acctplan.Session{
		SessionID:   "s1",
		CompanyName: "Acme Corp",
		AgentState:  acctplan.StateAwaitingConflictDecision,
		ResearchData: []acctplan.Chunk{
			{ChunkID: acctplan.NewChunkID(), Text: "Acme reported $500M in revenue last year.", Metadata: acctplan.ChunkMetadata{URL: "https://a.example.com"}},
		},
		Conflicts: []acctplan.Conflict{{Topic: "revenue", ConflictingValues: []string{"$500M", "$600M"}}},
	}

	resp, err := ctrl.clarifyWorkflow(context.Background(), "just skip it, go ahead", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.AccountPlan == nil {
		t.Fatal("expected plan generation to proceed after skipping the conflict")
	}
	if s.AgentState != acctplan.StateIdle {
		t.Fatalf("agent state = %v, want idle", s.AgentState)
	}
}

func TestUpdateSectionWorkflow_NoPlanYet(t *testing.T) {
	ctrl, _ := newTestController(t, &scriptedLLM{}, nil, nil)
	s := &acctplan.Session{SessionID: "s1"}
	resp, err := ctrl.updateSectionWorkflow(context.Background(), "update the market summary", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resp.Message, "no account plan") {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestUpdateSectionWorkflow_SingleSection(t *testing.T) {
	llm := &scriptedLLM{responses: []scriptedResponse{text("The market for cloud infrastructure continues to expand across all regions.")}}
	ctrl, _ := newTestController(t, llm, nil, nil)
	s := &acctplan.Session{
		SessionID:   "s1",
		CompanyName: "Acme Corp",
		AccountPlan: &acctplan.AccountPlan{CompanyName: "Acme Corp", MarketSummary: "old summary"},
	}

	resp, err := ctrl.updateSectionWorkflow(context.Background(), "please update the market summary", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.AccountPlan.MarketSummary == "old summary" {
		t.Fatal("expected market summary to be regenerated")
	}
	if !strings.Contains(resp.Message, "market_summary") {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestUpdateSectionWorkflow_MultipleOperationsSplitOnAnd(t *testing.T) {
	llm := &scriptedLLM{responses: []scriptedResponse{
		text("Updated pain points reflecting onboarding friction and support delays."),
		text("Updated opportunities highlighting international mid-market expansion."),
	}}
	ctrl, _ := newTestController(t, llm, nil, nil)
	s := &acctplan.Session{
		SessionID:   "s1",
		CompanyName: "Acme Corp",
		AccountPlan: &acctplan.AccountPlan{CompanyName: "Acme Corp"},
	}

	resp, err := ctrl.updateSectionWorkflow(context.Background(), "update the pain points and regenerate the opportunities", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resp.Message, "pain_points") || !strings.Contains(resp.Message, "opportunities") {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestUpdateSectionWorkflow_RegenerateWholePlan(t *testing.T) {
	llm := &scriptedLLM{responses: fullGenerationResponses()}
	ctrl, _ := newTestController(t, llm, nil, nil)
	s := &acctplan.Session{
		SessionID:   "s1",
		CompanyName: "Acme Corp",
		AccountPlan: &acctplan.AccountPlan{CompanyName: "Acme Corp", MarketSummary: "stale"},
	}

	resp, err := ctrl.updateSectionWorkflow(context.Background(), "please regenerate the whole account plan", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.AccountPlan.MarketSummary == "stale" {
		t.Fatal("expected a full plan regeneration")
	}
}

func TestUpdateSectionWorkflow_FinancialSummaryAddAndRemove(t *testing.T) {
	ctrl, _ := newTestController(t, &scriptedLLM{}, nil, nil)
	s := &acctplan.Session{
		SessionID:   "s1",
		CompanyName: "Acme Corp",
		AccountPlan: &acctplan.AccountPlan{
			CompanyName:      "Acme Corp",
			FinancialSummary: map[string]acctplan.FinancialFact{"headcount": {Value: "1000"}},
		},
	}

	_, err := ctrl.updateSectionWorkflow(context.Background(), "add ebitda margin of 22% to the financial summary and remove headcount from the financial summary", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.AccountPlan.FinancialSummary["headcount"]; ok {
		t.Fatal("expected headcount to be removed")
	}
	if _, ok := s.AccountPlan.FinancialSummary["ebitda_margin"]; !ok {
		t.Fatalf("expected ebitda_margin to be added, got %v", s.AccountPlan.FinancialSummary)
	}
}

func TestGeneralWorkflow_Greeting(t *testing.T) {
	ctrl, _ := newTestController(t, &scriptedLLM{}, nil, nil)
	s := &acctplan.Session{SessionID: "s1"}
	resp, err := ctrl.generalWorkflow(context.Background(), "hi", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Message == "" {
		t.Fatal("expected a canned greeting response")
	}
}

func TestGeneralWorkflow_FallsBackToLLM(t *testing.T) {
	llm := &scriptedLLM{responses: []scriptedResponse{text("Account plans summarize research about a target company.")}}
	ctrl, _ := newTestController(t, llm, nil, nil)
	s := &acctplan.Session{SessionID: "s1"}
	resp, err := ctrl.generalWorkflow(context.Background(), "what is an account plan anyway?", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Message != "Account plans summarize research about a target company." {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestProcess_RecordsMessagesAndSerializesPerSession(t *testing.T) {
	llm := &scriptedLLM{}
	ctrl, sessions := newTestController(t, llm, nil, nil)

	resp, err := ctrl.Process(context.Background(), "hi", "s1", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Intent != IntentGeneral {
		t.Fatalf("intent = %v", resp.Intent)
	}

	s, ok := sessions.Get("s1")
	if !ok {
		t.Fatal("expected session to exist")
	}
	if len(s.Messages) != 2 {
		t.Fatalf("messages = %d, want 2 (user + assistant)", len(s.Messages))
	}
	if s.Messages[0].Role != "user" || s.Messages[1].Role != "assistant" {
		t.Fatalf("unexpected message roles: %+v", s.Messages)
	}
}

func TestParseOperations_PrefersLongerAlias(t *testing.T) {
	ops := parseOperations("update the competitor analysis")
	if len(ops) != 1 || ops[0].section != acctplan.SectionCompetitorAnalysis {
		t.Fatalf("ops = %+v, want a single competitor_analysis operation", ops)
	}
}
