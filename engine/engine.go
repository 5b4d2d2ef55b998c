package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nebula-run/flow/engine/emit"
	"github.com/nebula-run/flow/expr"
	"github.com/nebula-run/flow/param"
)

// Engine drives a WorkflowDefinition to completion using the frontier
// algorithm: it never operates in levels, only edge-by-edge, advancing
// a node the instant every one of its incoming edges has been decided.
type Engine struct {
	registry *Registry
	cfg      engineConfig
}

// New builds an Engine dispatching to handlers registered in registry.
func New(registry *Registry, opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.evaluator == nil {
		cfg.evaluator = expr.NewEvaluator()
	}
	if cfg.resolver == nil {
		cfg.resolver = param.NewResolver(param.WithEvaluator(cfg.evaluator))
	}
	return &Engine{registry: registry, cfg: cfg}
}

// completionEvent is what a spawned node task reports back to the
// single-threaded completion loop.
type completionEvent struct {
	item     WorkItem
	result   ActionResult
	err      error
	duration time.Duration
}

// runState holds everything the single-threaded completion loop
// mutates while draining an execution. Nothing here is touched from
// any other goroutine: spawned node tasks only ever communicate back
// through the completions/retryReady channels, which is what lets edge
// evaluation and frontier-set updates stay lock-free.
type runState struct {
	graph          *DependencyGraph
	def            WorkflowDefinition
	workflowID     string
	executionID    string
	workflowInput  any
	outputs        *OutputStore
	status         map[string]nodeState
	resolvedCount  map[string]int
	activatedEdges map[string][]Connection
	readyQueue     []WorkItem
	stepCounter    int
}

func newRunState(graph *DependencyGraph, def WorkflowDefinition, workflowID, executionID string, input any) *runState {
	rs := &runState{
		graph:          graph,
		def:            def,
		workflowID:     workflowID,
		executionID:    executionID,
		workflowInput:  input,
		outputs:        NewOutputStore(),
		status:         make(map[string]nodeState, len(def.Nodes)),
		resolvedCount:  make(map[string]int, len(def.Nodes)),
		activatedEdges: make(map[string][]Connection),
	}
	for _, n := range def.Nodes {
		rs.status[n.ID] = statePending
	}
	return rs
}

func (rs *runState) isEntry(nodeID string) bool {
	for _, id := range rs.graph.EntryNodes {
		if id == nodeID {
			return true
		}
	}
	return false
}

func (rs *runState) push(nodeID string, flowInput any, support map[string][]ActionOutput, parent string, edgeIdx int) {
	rs.status[nodeID] = stateReady
	item := WorkItem{
		StepID:        rs.stepCounter,
		OrderKey:      computeOrderKey(parent, edgeIdx),
		NodeID:        nodeID,
		FlowInput:     flowInput,
		SupportInputs: support,
		ParentNodeID:  parent,
		EdgeIndex:     edgeIdx,
	}
	rs.stepCounter++
	rs.readyQueue = append(rs.readyQueue, item)
}

// Run executes def against input from scratch, blocking until the
// execution reaches a terminal status or ctx is cancelled.
func (e *Engine) Run(ctx context.Context, def WorkflowDefinition, workflowID, executionID string, input any) (*Result, error) {
	start := time.Now()
	if executionID == "" {
		executionID = uuid.New().String()
	}
	graph, err := BuildDependencyGraph(def)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if e.cfg.maxTotalWallTime > 0 {
		var wallCancel context.CancelFunc
		runCtx, wallCancel = context.WithTimeout(runCtx, e.cfg.maxTotalWallTime)
		defer wallCancel()
	}

	rs := newRunState(graph, def, workflowID, executionID, input)
	e.emit(executionID, "", "execution started", nil)

	for _, id := range graph.EntryNodes {
		if graph.RequiredCount[id] == 0 {
			rs.push(id, input, nil, "", 0)
		}
	}

	sem := newSemaphore(maxInt(e.cfg.maxConcurrentNodes, 1))
	completions := make(chan completionEvent, maxInt(e.cfg.maxConcurrentNodes, 1)*2)
	retryReady := make(chan WorkItem, 16)

	inFlight := 0
	pendingRetries := 0
	failed := false
	var failedNode, failureMessage string

	spawnOne := func(item WorkItem) {
		rs.status[item.NodeID] = stateRunning
		e.emit(executionID, item.NodeID, "node started", nil)
		go e.runNode(runCtx, rs, item, completions, retryReady, sem)
	}

	drainInFlight := func() {
		for inFlight > 0 {
			<-completions
			inFlight--
			sem.release()
		}
	}

runLoop:
	for {
		for len(rs.readyQueue) > 0 {
			if runCtx.Err() != nil {
				break
			}
			item := rs.readyQueue[0]
			if !sem.tryAcquire() {
				break
			}
			rs.readyQueue = rs.readyQueue[1:]
			inFlight++
			if e.cfg.metrics != nil {
				e.cfg.metrics.setInflight(inFlight)
			}
			spawnOne(item)
		}
		if e.cfg.metrics != nil {
			e.cfg.metrics.setFrontierDepth(len(rs.readyQueue))
		}

		if inFlight == 0 && len(rs.readyQueue) == 0 && pendingRetries == 0 {
			break runLoop
		}

		if runCtx.Err() != nil {
			drainInFlight()
			break runLoop
		}

		select {
		case <-runCtx.Done():
			drainInFlight()
			break runLoop
		case retry := <-retryReady:
			pendingRetries--
			rs.readyQueue = append(rs.readyQueue, retry)
		case ev := <-completions:
			inFlight--
			sem.release()
			if e.cfg.metrics != nil {
				e.cfg.metrics.setInflight(inFlight)
			}
			anyActivated, fatalMsg := e.handleCompletion(rs, ev, retryReady)
			if ev.err == nil && ev.result.Kind == ResultRetry && fatalMsg == "" {
				pendingRetries++
			}
			if fatalMsg != "" && !anyActivated {
				failed = true
				failedNode = ev.item.NodeID
				failureMessage = fatalMsg
				cancel() // fail-fast: stop scheduling further work
			}
		}
	}

	// Fail-fast triggers the same runCtx.cancel() an external caller
	// cancellation would, so status must be derived from the *caller's*
	// ctx, not runCtx, to tell the two apart: a node failure with no
	// OnError handler is Failed, not Cancelled.
	status := StatusCompleted
	switch {
	case failed:
		status = StatusFailed
	case ctx.Err() != nil:
		status = StatusCancelled
	case runCtx.Err() != nil:
		// Wall-time budget exceeded with no node failure and no
		// external cancellation.
		status = StatusCancelled
	}
	e.emit(executionID, "", "execution "+status.String(), nil)
	if e.cfg.metrics != nil {
		e.cfg.metrics.incExecution(status.String())
	}

	return &Result{
		ExecutionID:      executionID,
		Status:           status,
		NodeOutputsSoFar: rs.outputs.Snapshot(),
		FailedNode:       failedNode,
		FailureMessage:   failureMessage,
		Duration:         time.Since(start),
	}, nil
}

// handleCompletion processes one completionEvent under the
// single-threaded loop. It returns whether at least one outgoing edge
// activated (only meaningful for a failure event) and, for a failure
// event, the message to surface if no edge activated.
func (e *Engine) handleCompletion(rs *runState, ev completionEvent, retryReady chan<- WorkItem) (anyActivated bool, failureMsg string) {
	nodeID := ev.item.NodeID

	if ev.err != nil {
		return e.onNodeFailed(rs, nodeID, ev.err.Error()), ev.err.Error()
	}

	if ev.result.Kind == ResultRetry {
		if e.scheduleRetry(rs, ev, retryReady) {
			return true, ""
		}
		msg := "retry attempts exhausted"
		return e.onNodeFailed(rs, nodeID, msg), msg
	}

	e.onNodeCompleted(rs, nodeID, ev.result)
	return true, ""
}

func (e *Engine) scheduleRetry(rs *runState, ev completionEvent, retryReady chan<- WorkItem) bool {
	nodeDef, _ := rs.graph.Node(ev.item.NodeID)
	policy := nodeDef.Policy.RetryPolicy
	if policy == nil || ev.item.Attempt+1 >= policy.MaxAttempts {
		return false
	}
	if e.cfg.metrics != nil {
		e.cfg.metrics.incRetry(ev.item.NodeID)
	}
	delay := computeBackoff(ev.item.Attempt, policy.BaseDelay, policy.MaxDelay, nil)
	next := ev.item
	next.Attempt++
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		<-timer.C
		retryReady <- next
	}()
	return true
}

// onNodeCompleted applies the completion-handling rule for a
// successful (non-failed) ActionResult: mark Completed, store the
// primary output if present, then decide every outgoing edge.
func (e *Engine) onNodeCompleted(rs *runState, nodeID string, result ActionResult) {
	rs.status[nodeID] = stateCompleted
	out := primaryOutput(result)
	if out.Kind != OutputEmpty {
		rs.outputs.Set(nodeID, out)
	}
	e.emit(rs.executionID, nodeID, "node completed", nil)

	for _, conn := range rs.graph.Outgoing[nodeID] {
		activated := evaluateEdge(e.cfg.evaluator, conn, result, false)
		e.decideEdge(rs, conn, activated)
	}
}

// onNodeFailed applies the completion-handling rule for a failed node:
// only OnError edges may activate. Returns whether at least one
// outgoing edge activated.
func (e *Engine) onNodeFailed(rs *runState, nodeID string, errMsg string) bool {
	rs.status[nodeID] = stateFailed
	if e.cfg.metrics != nil {
		e.cfg.metrics.incNodeFailure(nodeID)
	}
	e.emit(rs.executionID, nodeID, "node failed", map[string]any{"error": errMsg})

	outgoing := rs.graph.Outgoing[nodeID]
	activations := make([]bool, len(outgoing))
	anyActivated := false
	for i, conn := range outgoing {
		activations[i] = evaluateEdge(e.cfg.evaluator, conn, ActionResult{}, true)
		anyActivated = anyActivated || activations[i]
	}
	if anyActivated {
		rs.outputs.Set(nodeID, Value(map[string]any{"error": errMsg, "node_id": nodeID}))
	}
	for i, conn := range outgoing {
		e.decideEdge(rs, conn, activations[i])
	}
	return anyActivated
}

// decideEdge records conn as resolved (and, if activated, appends it to
// the target's activated-edge list), then, once the target's incoming
// edges are fully resolved, either pushes it onto the ready queue (at
// least one activation) or propagates a skip (none).
func (e *Engine) decideEdge(rs *runState, conn Connection, activated bool) {
	dst := conn.To
	rs.resolvedCount[dst]++
	if activated {
		rs.activatedEdges[dst] = append(rs.activatedEdges[dst], conn)
	}
	if rs.resolvedCount[dst] != rs.graph.RequiredCount[dst] {
		return
	}
	activatedForDst := rs.activatedEdges[dst]
	if len(activatedForDst) > 0 {
		e.readyNode(rs, dst, activatedForDst, conn)
		return
	}
	e.propagateSkip(rs, dst)
}

// readyNode computes dst's flow input and support inputs from the
// connections that activated it, and pushes it onto the ready queue.
func (e *Engine) readyNode(rs *runState, dst string, activated []Connection, lastEdge Connection) {
	var flowEdges []Connection
	support := make(map[string][]ActionOutput)
	for _, conn := range activated {
		if conn.ToPort == "" {
			flowEdges = append(flowEdges, conn)
			continue
		}
		out, _ := rs.outputs.Get(conn.From)
		support[conn.ToPort] = append(support[conn.ToPort], out)
	}
	if len(support) == 0 {
		support = nil
	}

	var flowInput any
	switch len(flowEdges) {
	case 0:
		if rs.isEntry(dst) {
			flowInput = rs.workflowInput
		} else {
			flowInput = nil
		}
	case 1:
		out, _ := rs.outputs.Get(flowEdges[0].From)
		flowInput = out.Raw()
	default:
		obj := make(map[string]any, len(flowEdges))
		for _, conn := range flowEdges {
			out, _ := rs.outputs.Get(conn.From)
			obj[conn.From] = out.Raw()
		}
		flowInput = obj
	}

	rs.push(dst, flowInput, support, lastEdge.From, len(activated))
}

// propagateSkip marks dst Skipped and cascades: every one of dst's
// outgoing edges is treated as resolved-but-not-activated, which may
// in turn trigger further skip propagation down the graph.
func (e *Engine) propagateSkip(rs *runState, dst string) {
	if rs.status[dst].terminal() {
		return
	}
	rs.status[dst] = stateSkipped
	if e.cfg.metrics != nil {
		e.cfg.metrics.incSkip(dst)
	}
	e.emit(rs.executionID, dst, "node skipped", nil)
	for _, conn := range rs.graph.Outgoing[dst] {
		e.decideEdge(rs, conn, false)
	}
}

func (e *Engine) emit(executionID, nodeID, msg string, meta map[string]any) {
	if e.cfg.emitter == nil {
		return
	}
	e.cfg.emitter.Emit(emit.Event{ExecutionID: executionID, NodeID: nodeID, Component: "engine", Msg: msg, Meta: meta})
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
