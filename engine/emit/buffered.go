package emit

import (
	"context"
	"sync"
)

// BufferedEmitter accumulates events in memory. Used in tests to assert
// on the exact sequence of events a run produced.
type BufferedEmitter struct {
	mu     sync.Mutex
	events []Event
}

func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{}
}

func (b *BufferedEmitter) Emit(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *BufferedEmitter) EmitBatch(ctx context.Context, events []Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, events...)
	return nil
}

func (b *BufferedEmitter) Flush(ctx context.Context) error { return nil }

func (b *BufferedEmitter) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}
