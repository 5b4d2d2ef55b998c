package emit

import "context"

// Emitter receives observability events. Implementations must be
// non-blocking and thread-safe, and must never panic — a failing
// observability backend must not take down workflow execution.
type Emitter interface {
	Emit(event Event)
	EmitBatch(ctx context.Context, events []Event) error
	Flush(ctx context.Context) error
}

// NullEmitter discards every event. Used as the default when no Emitter
// is configured.
type NullEmitter struct{}

func (NullEmitter) Emit(Event)                             {}
func (NullEmitter) EmitBatch(context.Context, []Event) error { return nil }
func (NullEmitter) Flush(context.Context) error              { return nil }

// MultiEmitter fans a single event out to every configured Emitter.
type MultiEmitter struct {
	Emitters []Emitter
}

func (m MultiEmitter) Emit(e Event) {
	for _, em := range m.Emitters {
		em.Emit(e)
	}
}

func (m MultiEmitter) EmitBatch(ctx context.Context, events []Event) error {
	var firstErr error
	for _, em := range m.Emitters {
		if err := em.EmitBatch(ctx, events); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m MultiEmitter) Flush(ctx context.Context) error {
	var firstErr error
	for _, em := range m.Emitters {
		if err := em.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
