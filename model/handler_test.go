package model

import (
	"context"
	"errors"
	"testing"

	"github.com/nebula-run/flow/engine"
	"github.com/nebula-run/flow/respool"
)

type fakeChatModel struct {
	out ChatOut
	err error
}

func (f *fakeChatModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	return f.out, f.err
}

func testEngineCtx(ctx context.Context) engine.Context {
	return engine.Context{Context: ctx, NodeID: "n", ExecutionID: "exec"}
}

func newTestHandler(t *testing.T, factory func(ctx context.Context) (ChatModel, error)) *Handler {
	t.Helper()
	h, err := NewHandler(context.Background(), respool.Config[ChatModel]{
		Factory: factory,
		MaxSize: 2,
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	return h
}

func TestHandler_Handle_Success(t *testing.T) {
	h := newTestHandler(t, func(ctx context.Context) (ChatModel, error) {
		return &fakeChatModel{out: ChatOut{Text: "hi"}}, nil
	})
	defer h.Shutdown()

	input := map[string]any{"messages": []any{map[string]any{"role": "user", "content": "hello"}}}
	res, err := h.Handle(testEngineCtx(context.Background()), input)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	out, ok := res.Output.Raw().(map[string]any)
	if !ok || out["text"] != "hi" {
		t.Fatalf("result = %+v", res)
	}
}

func TestHandler_Handle_ChatModelError(t *testing.T) {
	wantErr := errors.New("provider down")
	h := newTestHandler(t, func(ctx context.Context) (ChatModel, error) {
		return &fakeChatModel{err: wantErr}, nil
	})
	defer h.Shutdown()

	input := map[string]any{"messages": []any{map[string]any{"role": "user", "content": "hello"}}}
	_, err := h.Handle(testEngineCtx(context.Background()), input)
	if !errors.Is(err, wantErr) {
		t.Fatalf("Handle() error = %v, want %v", err, wantErr)
	}
}

func TestHandler_Handle_InvalidInput(t *testing.T) {
	h := newTestHandler(t, func(ctx context.Context) (ChatModel, error) {
		return &fakeChatModel{}, nil
	})
	defer h.Shutdown()

	if _, err := h.Handle(testEngineCtx(context.Background()), "not an object"); err == nil {
		t.Error("Handle() error = nil, want error for invalid input")
	}
}

func TestHandler_Handle_ReusesPooledClient(t *testing.T) {
	creations := 0
	h := newTestHandler(t, func(ctx context.Context) (ChatModel, error) {
		creations++
		return &fakeChatModel{out: ChatOut{Text: "ok"}}, nil
	})
	defer h.Shutdown()

	input := map[string]any{"messages": []any{map[string]any{"role": "user", "content": "hello"}}}
	for i := 0; i < 5; i++ {
		if _, err := h.Handle(testEngineCtx(context.Background()), input); err != nil {
			t.Fatalf("call %d: Handle() error = %v", i, err)
		}
	}
	if creations != 1 {
		t.Errorf("creations = %d, want 1 (single client reused across sequential calls)", creations)
	}
}
