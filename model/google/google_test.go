package google

import (
	"context"
	"errors"
	"testing"

	"github.com/nebula-run/flow/model"
)

type mockGoogleClient struct {
	response  string
	toolCalls []model.ToolCall
	err       error
	callCount int
}

func (c *mockGoogleClient) generateContent(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	c.callCount++
	if c.err != nil {
		return model.ChatOut{}, c.err
	}
	return model.ChatOut{Text: c.response, ToolCalls: c.toolCalls}, nil
}

func TestChatModel_Construction(t *testing.T) {
	if m := NewChatModel("key", ""); m.modelName != defaultModelName {
		t.Errorf("modelName = %q, want default %q", m.modelName, defaultModelName)
	}
}

func TestChatModel_Chat_Success(t *testing.T) {
	mockClient := &mockGoogleClient{response: "bonjour"}
	m := &ChatModel{client: mockClient, modelName: defaultModelName}

	out, err := m.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if out.Text != "bonjour" {
		t.Errorf("Text = %q, want bonjour", out.Text)
	}
}

func TestChatModel_Chat_SafetyFilterError(t *testing.T) {
	safetyErr := &SafetyFilterError{reason: "SAFETY", category: "HARM_CATEGORY_DANGEROUS_CONTENT"}
	m := &ChatModel{client: &mockGoogleClient{err: safetyErr}, modelName: defaultModelName}

	_, err := m.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hi"}}, nil)
	var got *SafetyFilterError
	if !errors.As(err, &got) || got.Category() != "HARM_CATEGORY_DANGEROUS_CONTENT" {
		t.Fatalf("Chat() error = %v, want *SafetyFilterError", err)
	}
}

func TestChatModel_Chat_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &ChatModel{client: &mockGoogleClient{}, modelName: defaultModelName}
	if _, err := m.Chat(ctx, nil, nil); err == nil {
		t.Error("Chat() error = nil, want context cancellation error")
	}
}

func TestConvertSchemaToGenai(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"location": map[string]any{"type": "string", "description": "city name"},
		},
		"required": []any{"location"},
	}
	got := convertSchemaToGenai(schema)
	if got == nil || got.Properties["location"] == nil {
		t.Fatalf("convertSchemaToGenai() = %+v, want a location property", got)
	}
	if len(got.Required) != 1 || got.Required[0] != "location" {
		t.Errorf("Required = %v, want [location]", got.Required)
	}
}

func TestConvertSchemaToGenai_Nil(t *testing.T) {
	if got := convertSchemaToGenai(nil); got != nil {
		t.Errorf("convertSchemaToGenai(nil) = %+v, want nil", got)
	}
}
