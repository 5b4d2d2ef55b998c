package anthropic

import (
	"context"
	"errors"
	"testing"

	"github.com/nebula-run/flow/model"
)

type mockAnthropicClient struct {
	response  string
	toolCalls []model.ToolCall
	err       error
	callCount int
	lastTools []model.ToolSpec
}

func (c *mockAnthropicClient) createMessage(ctx context.Context, systemPrompt string, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	c.callCount++
	c.lastTools = tools
	if c.err != nil {
		return model.ChatOut{}, c.err
	}
	return model.ChatOut{Text: c.response, ToolCalls: c.toolCalls}, nil
}

func TestChatModel_Construction(t *testing.T) {
	if m := NewChatModel("key", "claude-3-opus-20240229"); m == nil {
		t.Fatal("expected non-nil model")
	}
	if m := NewChatModel("key", ""); m.modelName != defaultModelName {
		t.Errorf("modelName = %q, want default %q", m.modelName, defaultModelName)
	}
}

func TestChatModel_Chat_TextResponse(t *testing.T) {
	mockClient := &mockAnthropicClient{response: "hello there"}
	m := &ChatModel{client: mockClient, modelName: "claude-3-opus-20240229"}

	out, err := m.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if out.Text != "hello there" {
		t.Errorf("Text = %q, want %q", out.Text, "hello there")
	}
	if mockClient.callCount != 1 {
		t.Errorf("callCount = %d, want 1", mockClient.callCount)
	}
}

func TestChatModel_Chat_ToolCalls(t *testing.T) {
	mockClient := &mockAnthropicClient{
		toolCalls: []model.ToolCall{{Name: "search", Input: map[string]any{"query": "test"}}},
	}
	m := &ChatModel{client: mockClient, modelName: "claude-3-opus-20240229"}

	out, err := m.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "search for test"}},
		[]model.ToolSpec{{Name: "search", Description: "search the web"}})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if len(out.ToolCalls) != 1 || out.ToolCalls[0].Name != "search" {
		t.Fatalf("ToolCalls = %+v, want one call named search", out.ToolCalls)
	}
}

func TestChatModel_Chat_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &ChatModel{client: &mockAnthropicClient{}, modelName: "claude-3-opus-20240229"}
	if _, err := m.Chat(ctx, nil, nil); err == nil {
		t.Error("Chat() error = nil, want context cancellation error")
	}
}

func TestChatModel_Chat_TranslatesAPIError(t *testing.T) {
	apiErr := &anthropicError{Type: "rate_limit_error", Message: "too many requests"}
	m := &ChatModel{client: &mockAnthropicClient{err: apiErr}, modelName: "claude-3-opus-20240229"}

	_, err := m.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hi"}}, nil)
	var got *anthropicError
	if !errors.As(err, &got) || got.Type != "rate_limit_error" {
		t.Fatalf("Chat() error = %v, want *anthropicError with Type rate_limit_error", err)
	}
}

func TestExtractSystemPrompt(t *testing.T) {
	messages := []model.Message{
		{Role: model.RoleSystem, Content: "be concise"},
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleSystem, Content: "and polite"},
	}
	system, rest := extractSystemPrompt(messages)
	if system != "be concise\n\nand polite" {
		t.Errorf("system = %q", system)
	}
	if len(rest) != 1 || rest[0].Content != "hi" {
		t.Errorf("rest = %+v, want one user message", rest)
	}
}

func TestConvertToolInput(t *testing.T) {
	if got := convertToolInput(map[string]any{"a": 1}); got["a"] != 1 {
		t.Errorf("passthrough map not preserved: %+v", got)
	}
	if got := convertToolInput("raw-string"); got["_raw"] != "raw-string" {
		t.Errorf("non-map input not wrapped: %+v", got)
	}
	if got := convertToolInput(nil); got != nil {
		t.Errorf("nil input should stay nil, got %+v", got)
	}
}
