package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func echoHandler() Handler {
	return HandlerFunc(func(ctx Context, input any) (ActionResult, error) {
		return Success(Value(input)), nil
	})
}

func newTestEngine(handlers map[string]Handler, opts ...Option) *Engine {
	reg := NewRegistry()
	for id, h := range handlers {
		reg.Register(id, h)
	}
	return New(reg, opts...)
}

// Scenario 1: single node echo.
func TestSingleNodeEcho(t *testing.T) {
	def := WorkflowDefinition{
		ID:    "wf1",
		Nodes: []NodeDefinition{{ID: "A", ActionID: "echo"}},
	}
	e := newTestEngine(map[string]Handler{"echo": echoHandler()})
	res, err := e.Run(context.Background(), def, "wf1", "exec1", "hello")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("status = %v, want Completed", res.Status)
	}
	out, ok := res.NodeOutputsSoFar["A"]
	if !ok || out.Raw() != "hello" {
		t.Fatalf("outputs[A] = %+v, want %q", out, "hello")
	}
}

// Scenario 2: linear two-node.
func TestLinearTwoNode(t *testing.T) {
	def := WorkflowDefinition{
		ID:    "wf2",
		Nodes: []NodeDefinition{{ID: "A", ActionID: "echo"}, {ID: "B", ActionID: "echo"}},
		Connections: []Connection{
			{From: "A", To: "B", Condition: Always()},
		},
	}
	e := newTestEngine(map[string]Handler{"echo": echoHandler()})
	res, err := e.Run(context.Background(), def, "wf2", "exec2", int64(42))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("status = %v, want Completed", res.Status)
	}
	if res.NodeOutputsSoFar["A"].Raw() != int64(42) || res.NodeOutputsSoFar["B"].Raw() != int64(42) {
		t.Fatalf("unexpected outputs: %+v", res.NodeOutputsSoFar)
	}
}

// Scenario 3: diamond join.
func TestDiamondJoin(t *testing.T) {
	def := WorkflowDefinition{
		ID: "wf3",
		Nodes: []NodeDefinition{
			{ID: "A", ActionID: "echo"}, {ID: "B", ActionID: "echo"},
			{ID: "C", ActionID: "echo"}, {ID: "D", ActionID: "echo"},
		},
		Connections: []Connection{
			{From: "A", To: "B", Condition: Always()},
			{From: "A", To: "C", Condition: Always()},
			{From: "B", To: "D", Condition: Always()},
			{From: "C", To: "D", Condition: Always()},
		},
	}
	e := newTestEngine(map[string]Handler{"echo": echoHandler()})
	res, err := e.Run(context.Background(), def, "wf3", "exec3", "start")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("status = %v, want Completed", res.Status)
	}
	if len(res.NodeOutputsSoFar) != 4 {
		t.Fatalf("expected 4 outputs, got %d: %+v", len(res.NodeOutputsSoFar), res.NodeOutputsSoFar)
	}
	dOut, ok := res.NodeOutputsSoFar["D"].Raw().(map[string]any)
	if !ok {
		t.Fatalf("outputs[D] not an object: %+v", res.NodeOutputsSoFar["D"])
	}
	if dOut["B"] != "start" || dOut["C"] != "start" {
		t.Fatalf("outputs[D] = %+v, want {B:start, C:start}", dOut)
	}
}

// Scenario 4: branch selects one path.
func TestBranchSelectsOnePath(t *testing.T) {
	branchHandler := HandlerFunc(func(ctx Context, input any) (ActionResult, error) {
		return BranchResult("true", Value(input)), nil
	})
	def := WorkflowDefinition{
		ID: "wf4",
		Nodes: []NodeDefinition{
			{ID: "A", ActionID: "branch"}, {ID: "B", ActionID: "echo"},
			{ID: "C", ActionID: "echo"}, {ID: "D", ActionID: "echo"},
		},
		Connections: []Connection{
			{From: "A", To: "B", BranchKey: "true", Condition: Always()},
			{From: "A", To: "C", BranchKey: "false", Condition: Always()},
			{From: "B", To: "D", Condition: Always()},
			{From: "C", To: "D", Condition: Always()},
		},
	}
	e := newTestEngine(map[string]Handler{"branch": branchHandler, "echo": echoHandler()})
	res, err := e.Run(context.Background(), def, "wf4", "exec4", "x")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("status = %v, want Completed", res.Status)
	}
	if _, ok := res.NodeOutputsSoFar["C"]; ok {
		t.Fatalf("outputs[C] should be absent, got %+v", res.NodeOutputsSoFar["C"])
	}
	if _, ok := res.NodeOutputsSoFar["B"]; !ok {
		t.Fatal("outputs[B] should be present")
	}
	if _, ok := res.NodeOutputsSoFar["D"]; !ok {
		t.Fatal("outputs[D] should be present")
	}
}

// Scenario 5: skip propagates.
func TestSkipPropagates(t *testing.T) {
	skipHandler := HandlerFunc(func(ctx Context, input any) (ActionResult, error) {
		return Skip(Empty()), nil
	})
	def := WorkflowDefinition{
		ID: "wf5",
		Nodes: []NodeDefinition{
			{ID: "A", ActionID: "echo"}, {ID: "B", ActionID: "skip"}, {ID: "C", ActionID: "echo"},
		},
		Connections: []Connection{
			{From: "A", To: "B", Condition: Always()},
			{From: "B", To: "C", Condition: Always()},
		},
	}
	e := newTestEngine(map[string]Handler{"echo": echoHandler(), "skip": skipHandler})
	res, err := e.Run(context.Background(), def, "wf5", "exec5", "v")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("status = %v, want Completed", res.Status)
	}
	if _, ok := res.NodeOutputsSoFar["B"]; ok {
		t.Fatal("outputs[B] should be absent")
	}
	if _, ok := res.NodeOutputsSoFar["C"]; ok {
		t.Fatal("outputs[C] should be absent (never ran)")
	}
}

// Scenario 6: OnError caught.
func TestOnErrorCaught(t *testing.T) {
	failHandler := HandlerFunc(func(ctx Context, input any) (ActionResult, error) {
		return ActionResult{}, fmt.Errorf("boom")
	})
	def := WorkflowDefinition{
		ID: "wf6",
		Nodes: []NodeDefinition{
			{ID: "A", ActionID: "echo"}, {ID: "B", ActionID: "fail"}, {ID: "C", ActionID: "echo"},
		},
		Connections: []Connection{
			{From: "A", To: "B", Condition: Always()},
			{From: "B", To: "C", Condition: OnAnyError()},
		},
	}
	e := newTestEngine(map[string]Handler{"echo": echoHandler(), "fail": failHandler})
	res, err := e.Run(context.Background(), def, "wf6", "exec6", "v")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("status = %v, want Completed", res.Status)
	}
	cOut, ok := res.NodeOutputsSoFar["C"].Raw().(map[string]any)
	if !ok {
		t.Fatalf("outputs[C] not an object: %+v", res.NodeOutputsSoFar["C"])
	}
	if cOut["node_id"] != "B" {
		t.Fatalf("outputs[C] = %+v, want node_id=B", cOut)
	}
	if _, ok := cOut["error"]; !ok {
		t.Fatalf("outputs[C] missing error field: %+v", cOut)
	}
}

// Scenario 7: fail-fast without handler.
func TestFailFastWithoutHandler(t *testing.T) {
	failHandler := HandlerFunc(func(ctx Context, input any) (ActionResult, error) {
		return ActionResult{}, fmt.Errorf("boom")
	})
	def := WorkflowDefinition{
		ID: "wf7",
		Nodes: []NodeDefinition{
			{ID: "A", ActionID: "echo"}, {ID: "B", ActionID: "fail"}, {ID: "C", ActionID: "echo"},
		},
		Connections: []Connection{
			{From: "A", To: "B", Condition: Always()},
			{From: "B", To: "C", Condition: Always()},
		},
	}
	e := newTestEngine(map[string]Handler{"echo": echoHandler(), "fail": failHandler})
	res, err := e.Run(context.Background(), def, "wf7", "exec7", "v")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusFailed {
		t.Fatalf("status = %v, want Failed", res.Status)
	}
	if res.FailedNode != "B" {
		t.Fatalf("failedNode = %q, want B", res.FailedNode)
	}
	if _, ok := res.NodeOutputsSoFar["C"]; ok {
		t.Fatal("outputs[C] should be absent")
	}
}

// Every node's terminal state invariant, plus at-most-one-output-per-node.
func TestTerminalStatesAndSingleOutputInvariant(t *testing.T) {
	def := WorkflowDefinition{
		ID: "wfInv",
		Nodes: []NodeDefinition{
			{ID: "A", ActionID: "echo"}, {ID: "B", ActionID: "echo"},
			{ID: "C", ActionID: "echo"}, {ID: "D", ActionID: "echo"},
		},
		Connections: []Connection{
			{From: "A", To: "B", Condition: Always()},
			{From: "A", To: "C", Condition: Always()},
			{From: "B", To: "D", Condition: Always()},
			{From: "C", To: "D", Condition: Always()},
		},
	}
	e := newTestEngine(map[string]Handler{"echo": echoHandler()})
	res, err := e.Run(context.Background(), def, "wfInv", "execInv", 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("status = %v, want Completed", res.Status)
	}
	for _, n := range def.Nodes {
		if _, ok := res.NodeOutputsSoFar[n.ID]; !ok {
			t.Errorf("node %s missing output, expected exactly one", n.ID)
		}
	}
}

// In-flight count must never exceed max_concurrent_nodes.
func TestInFlightBoundedByMaxConcurrentNodes(t *testing.T) {
	const maxConcurrent = 2
	var current, peak int32
	slow := HandlerFunc(func(ctx Context, input any) (ActionResult, error) {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return Success(Value(input)), nil
	})

	nodes := make([]NodeDefinition, 0, 6)
	for i := 0; i < 6; i++ {
		nodes = append(nodes, NodeDefinition{ID: fmt.Sprintf("N%d", i), ActionID: "slow"})
	}
	def := WorkflowDefinition{ID: "wfConc", Nodes: nodes}
	e := newTestEngine(map[string]Handler{"slow": slow}, WithMaxConcurrentNodes(maxConcurrent))
	res, err := e.Run(context.Background(), def, "wfConc", "execConc", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("status = %v, want Completed", res.Status)
	}
	if atomic.LoadInt32(&peak) > maxConcurrent {
		t.Fatalf("peak in-flight = %d, want <= %d", peak, maxConcurrent)
	}
}

// External cancellation mid-execution reports Cancelled with partial outputs.
func TestExternalCancellation(t *testing.T) {
	var mu sync.Mutex
	ctx, cancel := context.WithCancel(context.Background())
	blocker := HandlerFunc(func(hctx Context, input any) (ActionResult, error) {
		mu.Lock()
		cancel()
		mu.Unlock()
		<-hctx.Done()
		return ActionResult{}, hctx.Err()
	})
	def := WorkflowDefinition{
		ID:    "wfCancel",
		Nodes: []NodeDefinition{{ID: "A", ActionID: "blocker"}},
	}
	e := newTestEngine(map[string]Handler{"blocker": blocker})
	res, err := e.Run(ctx, def, "wfCancel", "execCancel", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusCancelled {
		t.Fatalf("status = %v, want Cancelled", res.Status)
	}
}
