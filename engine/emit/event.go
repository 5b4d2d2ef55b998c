// Package emit provides event emission and observability for workflow
// execution, node handlers, the resource pool, and the credential
// manager — a single ambient logging/tracing surface shared across the
// whole module.
package emit

// Event is an observability event emitted during workflow execution.
type Event struct {
	// ExecutionID identifies the workflow execution that emitted this event.
	ExecutionID string

	// NodeID identifies which node emitted this event. Empty for
	// execution-level events (start, complete, error).
	NodeID string

	// Component names the subsystem the event came from: "engine",
	// "respool", "cred", or a handler name.
	Component string

	// Msg is a human-readable description of the event.
	Msg string

	// Meta carries additional structured data specific to this event.
	Meta map[string]any
}
