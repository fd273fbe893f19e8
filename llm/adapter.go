package llm

import (
	"context"

	"github.com/brunobiangulo/acctplan"
)

// Adapter wraps a Provider to satisfy acctplan.LLM and
// acctplan.EmbeddingModel, translating between the provider's
// OpenAI-shaped request/response types and the root package's
// collaborator contracts.
type Adapter struct {
	provider Provider
	model    string
}

// NewAdapter wraps provider, defaulting GenerateRequest.Model-less calls
// to defaultModel.
func NewAdapter(provider Provider, defaultModel string) *Adapter {
	return &Adapter{provider: provider, model: defaultModel}
}

func (a *Adapter) Generate(ctx context.Context, req acctplan.GenerateRequest) (acctplan.GenerateResult, error) {
	var messages []Message
	if req.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: req.Prompt})

	resp, err := a.provider.Chat(ctx, ChatRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return acctplan.GenerateResult{}, err
	}

	return acctplan.GenerateResult{
		Text:         resp.Content,
		FinishReason: normalizeFinishReason(resp.FinishReason),
	}, nil
}

func (a *Adapter) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	return a.provider.Embed(ctx, texts)
}

// normalizeFinishReason maps a provider's raw finish_reason string onto
// the closed acctplan.Finish* vocabulary. Providers that already speak
// OpenAI's vocabulary ("stop", "length") pass through unchanged; Gemini's
// "MAX_TOKENS"/"SAFETY"/"RECITATION" (surfaced verbatim through its
// OpenAI-compatible endpoint in some deployments) are mapped explicitly.
func normalizeFinishReason(raw string) string {
	switch raw {
	case "", acctplan.FinishStop, "stop_sequence":
		return acctplan.FinishStop
	case acctplan.FinishLength, "max_tokens", "MAX_TOKENS":
		return acctplan.FinishLength
	case acctplan.FinishSafety, "SAFETY", "content_filter":
		return acctplan.FinishSafety
	case acctplan.FinishRecitation, "RECITATION":
		return acctplan.FinishRecitation
	default:
		return acctplan.FinishStop
	}
}
