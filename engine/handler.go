package engine

import "context"

// Context carries everything a Handler needs beyond its resolved input:
// execution identity, tenant scope for credential access, cancellation,
// and the per-port auxiliary inputs delivered by support edges.
type Context struct {
	context.Context

	ExecutionID   string
	NodeID        string
	WorkflowID    string
	Scope         string
	SupportInputs map[string][]ActionOutput
}

// Handler is the contract every registered action implements. Handlers
// are pure with respect to the engine's frontier bookkeeping: all
// control flow back to the scheduler happens through the returned
// ActionResult, never through side channels.
//
// A Handler may return a typed error (treated as a node failure, fatal
// or retryable per the handler's own judgement) or a successful
// ActionResult{Kind: ResultRetry} to request rescheduling without
// treating the attempt as a failure.
type Handler interface {
	Handle(ctx Context, input any) (ActionResult, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx Context, input any) (ActionResult, error)

func (f HandlerFunc) Handle(ctx Context, input any) (ActionResult, error) {
	return f(ctx, input)
}

// Registry is a dynamic-dispatch lookup from action id to Handler.
// Dispatch is through this registry rather than any inheritance
// hierarchy: adding a new action type means registering a new Handler,
// nothing else.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register associates actionID with h. Registering the same actionID
// twice overwrites the previous handler.
func (r *Registry) Register(actionID string, h Handler) {
	r.handlers[actionID] = h
}

// Lookup returns the handler registered for actionID, or false if none
// was registered.
func (r *Registry) Lookup(actionID string) (Handler, bool) {
	h, ok := r.handlers[actionID]
	return h, ok
}
