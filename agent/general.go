package agent

import (
	"context"
	"regexp"
	"strings"

	"github.com/brunobiangulo/acctplan"
)

var (
	greetingOnlyPattern = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|howdy)[!. ]*\s*$`)
	thanksPattern       = regexp.MustCompile(`(?i)^\s*(thanks|thank you|thx|appreciate it)[!. ]*\s*$`)
	helpPattern         = regexp.MustCompile(`(?i)\b(help|what can you do|how does this work)\b`)
)

const generalSystemPrompt = `You are an assistant that helps salespeople research companies and build
account plans. Answer the user's question conversationally and briefly.
If the question would be better served by researching a company or
updating an account plan, say so and suggest the user ask for that
directly.`

// generalWorkflow answers small talk deterministically and otherwise
// routes the message to the model with recent conversation history as
// context, mirroring the original controller's general chat fallback.
func (c *Controller) generalWorkflow(ctx context.Context, message string, s *acctplan.Session) (*Response, error) {
	trimmed := strings.TrimSpace(message)

	switch {
	case greetingOnlyPattern.MatchString(trimmed):
		return &Response{
			SessionID: s.SessionID,
			Intent:    IntentGeneral,
			Message:   "Hi! Tell me which company you'd like an account plan for, or ask me to update a section of one you already have.",
		}, nil
	case thanksPattern.MatchString(trimmed):
		return &Response{
			SessionID: s.SessionID,
			Intent:    IntentGeneral,
			Message:   "You're welcome! Let me know if you need anything else.",
		}, nil
	case helpPattern.MatchString(trimmed):
		return &Response{
			SessionID: s.SessionID,
			Intent:    IntentGeneral,
			Message:   "I can research a company and build an account plan, or update specific sections of one you already have — just name the company or the section.",
		}, nil
	}

	if c.llm == nil {
		return &Response{
			SessionID: s.SessionID,
			Intent:    IntentGeneral,
			Message:   "I'm not sure how to help with that yet. Try asking me to research a company.",
		}, nil
	}

	prompt := recentMessageText(s, 6) + "user: " + trimmed
	result, err := c.llm.Generate(ctx, acctplan.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: generalSystemPrompt,
		Temperature:  0.7,
		MaxTokens:    500,
	})
	if err != nil {
		return &Response{
			SessionID: s.SessionID,
			Intent:    IntentGeneral,
			Message:   "I ran into a problem answering that. Could you rephrase, or ask me to research a company?",
		}, nil
	}

	return &Response{
		SessionID: s.SessionID,
		Intent:    IntentGeneral,
		Message:   strings.TrimSpace(result.Text),
	}, nil
}
