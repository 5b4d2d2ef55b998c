package tool

import (
	"context"
	"errors"
	"testing"
)

func TestMockHandler_DefaultResponse(t *testing.T) {
	m := &MockHandler{}
	res, err := m.Handle(testCtx(context.Background()), map[string]any{"q": "test"})
	if err != nil {
		t.Fatalf("Handle() error = %v, want nil", err)
	}
	out := resultObject(t, res)
	if len(out) != 0 {
		t.Errorf("expected empty default response, got %+v", out)
	}
	if m.CallCount() != 1 {
		t.Errorf("CallCount() = %d, want 1", m.CallCount())
	}
}

func TestMockHandler_ResponseSequenceRepeatsLast(t *testing.T) {
	m := &MockHandler{Responses: []map[string]any{{"n": 1}, {"n": 2}}}
	for i, want := range []int{1, 2, 2, 2} {
		res, err := m.Handle(testCtx(context.Background()), nil)
		if err != nil {
			t.Fatalf("call %d: Handle() error = %v", i, err)
		}
		out := resultObject(t, res)
		if out["n"] != want {
			t.Errorf("call %d: n = %v, want %v", i, out["n"], want)
		}
	}
	if m.CallCount() != 4 {
		t.Errorf("CallCount() = %d, want 4", m.CallCount())
	}
}

func TestMockHandler_ErrInjection(t *testing.T) {
	wantErr := errors.New("boom")
	m := &MockHandler{Err: wantErr}
	_, err := m.Handle(testCtx(context.Background()), nil)
	if !errors.Is(err, wantErr) {
		t.Fatalf("Handle() error = %v, want %v", err, wantErr)
	}
}

func TestMockHandler_CallHistoryAndReset(t *testing.T) {
	m := &MockHandler{}
	_, _ = m.Handle(testCtx(context.Background()), "a")
	_, _ = m.Handle(testCtx(context.Background()), "b")
	calls := m.Calls()
	if len(calls) != 2 || calls[0].Input != "a" || calls[1].Input != "b" {
		t.Fatalf("unexpected call history: %+v", calls)
	}
	m.Reset()
	if m.CallCount() != 0 {
		t.Errorf("CallCount() after Reset() = %d, want 0", m.CallCount())
	}
}

func TestMockHandler_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &MockHandler{}
	_, err := m.Handle(testCtx(ctx), nil)
	if err == nil {
		t.Error("Handle() error = nil, want context cancellation error")
	}
}
