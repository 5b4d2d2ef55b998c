package tool

import (
	"sync"

	"github.com/nebula-run/flow/engine"
)

// MockCall records a single invocation of a MockHandler.
type MockCall struct {
	Input any
}

// MockHandler is a scriptable engine.Handler for tests and examples:
// configure a sequence of responses (or an error to inject) and verify
// call history without depending on any real external system.
type MockHandler struct {
	// Responses is the sequence of outputs returned on successive calls.
	// Once exhausted, the last response repeats.
	Responses []map[string]any

	// Err, if set, is returned instead of a response.
	Err error

	mu        sync.Mutex
	calls     []MockCall
	callIndex int
}

func (m *MockHandler) Handle(ctx engine.Context, input any) (engine.ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return engine.ActionResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Input: input})

	if m.Err != nil {
		return engine.ActionResult{}, m.Err
	}

	if len(m.Responses) == 0 {
		return engine.Success(engine.Value(map[string]any{})), nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return engine.Success(engine.Value(m.Responses[idx])), nil
}

// Calls returns a defensive copy of this handler's call history.
func (m *MockHandler) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of times Handle has been invoked.
func (m *MockHandler) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears call history and rewinds the response index.
func (m *MockHandler) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.callIndex = 0
}
