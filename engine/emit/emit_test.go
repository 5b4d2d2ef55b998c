package emit

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestLogEmitterTextFormat(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, false)
	e.Emit(Event{ExecutionID: "exec-1", NodeID: "nodeA", Component: "engine", Msg: "node_start"})
	out := buf.String()
	if !strings.Contains(out, "[node_start]") || !strings.Contains(out, "execution_id=exec-1") || !strings.Contains(out, "node_id=nodeA") {
		t.Fatalf("unexpected text output: %q", out)
	}
}

func TestLogEmitterJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, true)
	e.Emit(Event{ExecutionID: "exec-1", Msg: "node_end", Meta: map[string]any{"status": "success"}})
	out := buf.String()
	if !strings.Contains(out, `"execution_id":"exec-1"`) || !strings.Contains(out, `"status":"success"`) {
		t.Fatalf("unexpected json output: %q", out)
	}
}

func TestBufferedEmitterCollectsInOrder(t *testing.T) {
	b := NewBufferedEmitter()
	b.Emit(Event{Msg: "a"})
	b.Emit(Event{Msg: "b"})
	if err := b.EmitBatch(context.Background(), []Event{{Msg: "c"}, {Msg: "d"}}); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	events := b.Events()
	want := []string{"a", "b", "c", "d"}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, e := range events {
		if e.Msg != want[i] {
			t.Errorf("event %d: got %q want %q", i, e.Msg, want[i])
		}
	}
}

func TestNullEmitterDiscards(t *testing.T) {
	var n NullEmitter
	n.Emit(Event{Msg: "ignored"})
	if err := n.EmitBatch(context.Background(), []Event{{Msg: "ignored"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := n.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMultiEmitterFansOut(t *testing.T) {
	b1 := NewBufferedEmitter()
	b2 := NewBufferedEmitter()
	m := MultiEmitter{Emitters: []Emitter{b1, b2}}
	m.Emit(Event{Msg: "fanout"})
	if len(b1.Events()) != 1 || len(b2.Events()) != 1 {
		t.Fatalf("expected both emitters to receive the event")
	}
}
