// Package agent implements the single-entrypoint conversational
// dispatcher: classify the user's intent, run the matching workflow
// (research, section update, clarification, or general chat), and
// return one Response per turn (spec §4.8). It is the orchestration
// layer that wires session, retrieval, conflict, and planner together;
// it owns no business logic of its own beyond intent routing and
// workflow bookkeeping.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brunobiangulo/acctplan"
	"github.com/brunobiangulo/acctplan/planner"
	"github.com/brunobiangulo/acctplan/retrieval"
	"github.com/brunobiangulo/acctplan/session"
)

// Intent is the classifier's label for a user message.
type Intent string

const (
	IntentResearchCompany Intent = "research_company"
	IntentUpdateSection   Intent = "update_section"
	IntentClarify         Intent = "clarify"
	IntentGeneral         Intent = "general"
)

// Response is returned from one Process call.
type Response struct {
	SessionID   string
	Intent      Intent
	Message     string
	Questions   []string
	AccountPlan *acctplan.AccountPlan
	Conflicts   []acctplan.Conflict
}

// Config tunes workflow behavior.
type Config struct {
	MaxConflictsShown int
}

func (c Config) withDefaults() Config {
	if c.MaxConflictsShown == 0 {
		c.MaxConflictsShown = 3
	}
	return c
}

// Controller is the agent's single entrypoint, wiring session memory,
// the retrieval pipeline, the account plan generator, and persistence
// together behind one Process call per turn.
type Controller struct {
	sessions    *session.Memory
	retrieval   *retrieval.Pipeline
	gen         *planner.Generator
	planStore   acctplan.PlanStore
	vectorStore acctplan.VectorStore
	llm         acctplan.LLM
	cfg         Config
}

// New returns a Controller. planStore and vectorStore may be nil: a nil
// planStore means generated plans live only in the session; a nil
// vectorStore disables the uploaded-document company-name fallback.
func New(sessions *session.Memory, retr *retrieval.Pipeline, gen *planner.Generator, planStore acctplan.PlanStore, vectorStore acctplan.VectorStore, llm acctplan.LLM, cfg Config) *Controller {
	return &Controller{
		sessions:    sessions,
		retrieval:   retr,
		gen:         gen,
		planStore:   planStore,
		vectorStore: vectorStore,
		llm:         llm,
		cfg:         cfg.withDefaults(),
	}
}

// Process runs one conversational turn: it records the user's message,
// classifies intent, dispatches to the matching workflow, and records
// the assistant's reply. Processing for a single session is serialized
// by session.Memory's per-session lock (spec §5: "a session is a single
// consistency domain"), so concurrent turns on distinct sessions never
// block each other.
func (c *Controller) Process(ctx context.Context, message, sessionID, userID string) (*Response, error) {
	c.sessions.GetOrCreate(sessionID, userID)
	c.sessions.AppendMessage(sessionID, "user", message)

	var resp *Response
	var workErr error
	c.sessions.WithLock(sessionID, func(s *acctplan.Session) {
		if s == nil {
			workErr = acctplan.ErrSessionNotFound
			return
		}
		intent := classifyIntent(ctx, message, s, c.vectorStore)
		switch intent {
		case IntentResearchCompany:
			resp, workErr = c.researchWorkflow(ctx, message, s)
		case IntentUpdateSection:
			resp, workErr = c.updateSectionWorkflow(ctx, message, s)
		case IntentClarify:
			resp, workErr = c.clarifyWorkflow(ctx, message, s)
		default:
			resp, workErr = c.generalWorkflow(ctx, message, s)
		}
	})
	if workErr != nil {
		return nil, fmt.Errorf("acctplan: processing message: %w", workErr)
	}

	if resp != nil && resp.Message != "" {
		c.sessions.AppendMessage(sessionID, "assistant", resp.Message)
	}
	return resp, nil
}

func (c *Controller) persistPlan(ctx context.Context, s *acctplan.Session) {
	if c.planStore == nil || s.AccountPlan == nil {
		return
	}
	if _, err := c.planStore.Save(ctx, s.UserID, s.CompanyName, s.AccountPlan, s.SessionID); err != nil {
		slog.Warn("agent: failed to persist account plan", "company", s.CompanyName, "error", err)
	}
}
