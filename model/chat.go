// Package model provides LLM chat-provider adapters, each exposed as a
// pooled, credential-scoped engine.Handler rather than a bare client.
package model

import (
	"context"
	"fmt"

	"github.com/nebula-run/flow/engine"
)

// ChatModel abstracts the differences between LLM providers (OpenAI,
// Anthropic, Google) behind one interface: convert Message/ToolSpec to
// the provider's wire format, call it, and convert the response back.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is one turn in a conversation.
type Message struct {
	Role    string
	Content string
}

// Standard roles, aligned with the conventions major providers use.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool the model may call. Schema follows JSON
// Schema and is optional for tools that take no parameters.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ChatOut is a chat completion's result: a direct text answer, one or
// more tool calls, or both.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
}

// ToolCall is a single tool invocation the model requested.
type ToolCall struct {
	Name  string
	Input map[string]any
}

// ParseChatInput decodes a handler's resolved input into a message list
// and an optional tool list. Input shape:
//
//	map[string]any{
//	    "messages": []any{map[string]any{"role": "user", "content": "..."}, ...},
//	    "tools":    []any{map[string]any{"name": "...", "description": "...", "schema": map[string]any{...}}, ...},
//	}
func ParseChatInput(input any) ([]Message, []ToolSpec, error) {
	params, ok := input.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("model: input must be an object, got %T", input)
	}

	rawMessages, ok := params["messages"].([]any)
	if !ok || len(rawMessages) == 0 {
		return nil, nil, fmt.Errorf("model: messages parameter required (non-empty array)")
	}
	messages := make([]Message, 0, len(rawMessages))
	for i, rm := range rawMessages {
		m, ok := rm.(map[string]any)
		if !ok {
			return nil, nil, fmt.Errorf("model: messages[%d] must be an object", i)
		}
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)
		if role == "" {
			return nil, nil, fmt.Errorf("model: messages[%d].role is required", i)
		}
		messages = append(messages, Message{Role: role, Content: content})
	}

	var tools []ToolSpec
	if rawTools, ok := params["tools"].([]any); ok {
		tools = make([]ToolSpec, 0, len(rawTools))
		for i, rt := range rawTools {
			t, ok := rt.(map[string]any)
			if !ok {
				return nil, nil, fmt.Errorf("model: tools[%d] must be an object", i)
			}
			name, _ := t["name"].(string)
			if name == "" {
				return nil, nil, fmt.Errorf("model: tools[%d].name is required", i)
			}
			desc, _ := t["description"].(string)
			schema, _ := t["schema"].(map[string]any)
			tools = append(tools, ToolSpec{Name: name, Description: desc, Schema: schema})
		}
	}

	return messages, tools, nil
}

// ChatOutResult turns a ChatOut into the ActionResult a Handler returns:
// a ResultRoute to the "tool_calls" port when the model asked to invoke
// tools (so a downstream edge can dispatch them), or a plain Success
// carrying the text answer.
func ChatOutResult(out ChatOut) engine.ActionResult {
	payload := map[string]any{"text": out.Text}
	if len(out.ToolCalls) == 0 {
		return engine.Success(engine.Value(payload))
	}

	calls := make([]any, len(out.ToolCalls))
	for i, c := range out.ToolCalls {
		calls[i] = map[string]any{"name": c.Name, "input": c.Input}
	}
	payload["tool_calls"] = calls
	return engine.RouteResult("tool_calls", engine.Value(payload))
}
