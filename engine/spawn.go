package engine

import (
	"context"
	"time"

	"github.com/nebula-run/flow/param"
)

// runNode resolves item's node input and invokes its registered
// handler, reporting the outcome back through completions. It never
// touches runState's frontier bookkeeping directly — only the
// single-threaded completion loop does that — so it is safe to run
// concurrently with other spawned node tasks.
func (e *Engine) runNode(ctx context.Context, rs *runState, item WorkItem, completions chan<- completionEvent, retryReady chan<- WorkItem, sem *semaphore) {
	nodeDef, ok := rs.graph.Node(item.NodeID)
	if !ok {
		completions <- completionEvent{item: item, err: &Error{Kind: ActionKeyNotFound, NodeID: item.NodeID, Message: "node definition not found"}}
		return
	}

	resolvedInput, err := e.resolveNodeInput(nodeDef, item, rs)
	if err != nil {
		completions <- completionEvent{item: item, err: err}
		return
	}

	handler, ok := e.registry.Lookup(nodeDef.ActionID)
	if !ok {
		completions <- completionEvent{item: item, err: &Error{Kind: ActionKeyNotFound, NodeID: item.NodeID, Message: "no handler registered for action " + nodeDef.ActionID}}
		return
	}

	nodeCtx := ctx
	timeout := nodeDef.Policy.Timeout
	if timeout == 0 {
		timeout = e.cfg.maxNodeWallTime
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		nodeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	hctx := Context{
		Context:       nodeCtx,
		ExecutionID:   rs.executionID,
		NodeID:        item.NodeID,
		WorkflowID:    rs.workflowID,
		SupportInputs: item.SupportInputs,
	}

	start := time.Now()
	result, err := handler.Handle(hctx, resolvedInput)
	duration := time.Since(start)

	if e.cfg.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		e.cfg.metrics.observeNodeLatency(item.NodeID, status, duration.Seconds())
	}

	if err != nil {
		err = newRuntimeError(item.NodeID, err)
	}
	completions <- completionEvent{item: item, result: result, err: err, duration: duration}
}

// resolveNodeInput turns a node's declared parameter bindings into its
// concrete handler input. With no parameter bindings, the flow input is
// forwarded verbatim (spec: "parameter resolution with no bindings
// returns None and the engine forwards the flow input verbatim").
func (e *Engine) resolveNodeInput(nodeDef NodeDefinition, item WorkItem, rs *runState) (any, error) {
	if len(nodeDef.Parameters) == 0 {
		return item.FlowInput, nil
	}
	ctx := param.Context{
		Input:     item.FlowInput,
		Outputs:   rawOutputs(rs.outputs),
		Variables: rs.def.Variables,
	}
	return e.cfg.resolver.Resolve(nodeDef.Parameters, ctx)
}

func rawOutputs(store *OutputStore) map[string]any {
	snapshot := store.Snapshot()
	out := make(map[string]any, len(snapshot))
	for k, v := range snapshot {
		out[k] = v.Raw()
	}
	return out
}
