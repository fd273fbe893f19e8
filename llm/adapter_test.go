package llm

import (
	"context"
	"testing"

	"github.com/brunobiangulo/acctplan"
)

type fakeProvider struct {
	chatResp  *ChatResponse
	chatErr   error
	embedResp [][]float32
	embedErr  error
	gotReq    ChatRequest
}

func (f *fakeProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	f.gotReq = req
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return f.chatResp, nil
}

func (f *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.embedResp, nil
}

func TestAdapterGenerate_BuildsMessagesWithSystemPrompt(t *testing.T) {
	fp := &fakeProvider{chatResp: &ChatResponse{Content: "hello", FinishReason: "stop"}}
	a := NewAdapter(fp, "test-model")

	result, err := a.Generate(context.Background(), acctplan.GenerateRequest{
		Prompt:       "hi",
		SystemPrompt: "be terse",
		MaxTokens:    100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "hello" || result.FinishReason != acctplan.FinishStop {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(fp.gotReq.Messages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(fp.gotReq.Messages))
	}
	if fp.gotReq.Messages[0].Role != "system" || fp.gotReq.Messages[1].Role != "user" {
		t.Fatalf("unexpected message roles: %+v", fp.gotReq.Messages)
	}
}

func TestAdapterGenerate_NoSystemPromptOmitsMessage(t *testing.T) {
	fp := &fakeProvider{chatResp: &ChatResponse{Content: "x"}}
	a := NewAdapter(fp, "test-model")

	if _, err := a.Generate(context.Background(), acctplan.GenerateRequest{Prompt: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fp.gotReq.Messages) != 1 || fp.gotReq.Messages[0].Role != "user" {
		t.Fatalf("unexpected messages: %+v", fp.gotReq.Messages)
	}
}

func TestAdapterGenerate_PropagatesProviderError(t *testing.T) {
	fp := &fakeProvider{chatErr: acctplan.Fail(acctplan.FailureRateLimit, context.DeadlineExceeded)}
	a := NewAdapter(fp, "test-model")

	_, err := a.Generate(context.Background(), acctplan.GenerateRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error to propagate")
	}
	if acctplan.KindOf(err) != acctplan.FailureRateLimit {
		t.Fatalf("expected FailureRateLimit, got %v", acctplan.KindOf(err))
	}
}

func TestAdapterEncode_DelegatesToProvider(t *testing.T) {
	fp := &fakeProvider{embedResp: [][]float32{{0.1, 0.2}}}
	a := NewAdapter(fp, "test-model")

	out, err := a.Encode(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || len(out[0]) != 2 {
		t.Fatalf("unexpected embeddings: %+v", out)
	}
}

func TestNormalizeFinishReason(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", acctplan.FinishStop},
		{"stop", acctplan.FinishStop},
		{"length", acctplan.FinishLength},
		{"MAX_TOKENS", acctplan.FinishLength},
		{"SAFETY", acctplan.FinishSafety},
		{"RECITATION", acctplan.FinishRecitation},
		{"something_unexpected", acctplan.FinishStop},
	}
	for _, tt := range tests {
		if got := normalizeFinishReason(tt.raw); got != tt.want {
			t.Errorf("normalizeFinishReason(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
