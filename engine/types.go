// Package engine implements the frontier scheduler: it consumes a
// WorkflowDefinition plus an initial input, drives nodes to completion
// respecting dataflow dependencies, evaluates edge conditions, and
// dispatches execution to registered Handlers.
package engine

import "github.com/nebula-run/flow/param"

// WorkflowDefinition is the declarative DAG the engine executes. It is
// immutable for the lifetime of one execution.
type WorkflowDefinition struct {
	ID          string
	Nodes       []NodeDefinition
	Connections []Connection
	Variables   map[string]any
}

// NodeDefinition describes one computation step. ActionID resolves to a
// registered Handler at spawn time.
type NodeDefinition struct {
	ID         string
	ActionID   string
	Parameters []param.Definition
	Policy     NodePolicy
}

// Connection is a directed edge between two nodes.
//
// FromPort/ToPort partition a node's outgoing/incoming edges: an edge
// with no ToPort is a "flow" edge feeding the target's main input; an
// edge with ToPort set is a "support" edge delivered separately as a
// per-port auxiliary input. At most one flow edge should exist per
// (from, to) pair.
type Connection struct {
	From      string
	To        string
	FromPort  string // empty means "no port constraint"
	ToPort    string // empty means "flow edge"
	BranchKey string // empty means "no branch constraint"
	Condition EdgeCondition
}

// EdgeConditionKind is the closed set of ways an edge can decide
// whether to activate.
type EdgeConditionKind int

const (
	CondAlways EdgeConditionKind = iota
	CondOnResult
	CondOnError
	CondExpression
)

// MatcherKind is the closed set of ways a result/error matcher can be
// expressed.
type MatcherKind int

const (
	MatchSuccess MatcherKind = iota
	MatchFieldEquals
	MatchExpression
	MatchAny    // error matcher: catches any failure
	MatchCode   // error matcher: match on a specific error code (stubbed, see below)
)

// Matcher is used by OnResult/OnError conditions to decide activation.
//
// MatchCode and the Expression variant of an error matcher are carried
// through evaluation but their original implementation always returned
// true regardless of content (an unresolved stub upstream); this port
// keeps that behavior rather than inventing stricter semantics the
// original never specified.
type Matcher struct {
	Kind       MatcherKind
	Field      string
	Value      any
	Expression string
	Code       string
}

// EdgeCondition determines when a Connection activates.
type EdgeCondition struct {
	Kind       EdgeConditionKind
	Result     Matcher // used when Kind == CondOnResult
	Error      Matcher // used when Kind == CondOnError
	Expression string  // used when Kind == CondExpression
}

// Always returns the unconditional edge condition.
func Always() EdgeCondition { return EdgeCondition{Kind: CondAlways} }

// OnResult returns a condition that activates when the result matcher
// matches the node's successful output.
func OnResult(m Matcher) EdgeCondition { return EdgeCondition{Kind: CondOnResult, Result: m} }

// OnError returns a condition that activates when the node failed and
// the error matcher matches.
func OnError(m Matcher) EdgeCondition { return EdgeCondition{Kind: CondOnError, Error: m} }

// OnAnyError is shorthand for OnError(Matcher{Kind: MatchAny}).
func OnAnyError() EdgeCondition { return OnError(Matcher{Kind: MatchAny}) }

// Expression returns a condition that activates when expr evaluates
// truthy against the node's output.
func Expression(expr string) EdgeCondition { return EdgeCondition{Kind: CondExpression, Expression: expr} }

// ActionResultKind is the closed set of outcomes a handler may return.
type ActionResultKind int

const (
	ResultSuccess ActionResultKind = iota
	ResultSkip
	ResultContinue
	ResultBreak
	ResultBranch
	ResultRoute
	ResultMultiOutput
	ResultWait
	ResultRetry
)

// ActionResult is the closed, tagged outcome of a handler execution.
// Exactly one of the payload fields is meaningful, selected by Kind.
type ActionResult struct {
	Kind ActionResultKind

	// Output carries the payload for Success and Skip (Skip's payload
	// is the "partial" result produced before skipping).
	Output ActionOutput

	// Branch carries the selected branch key for ResultBranch.
	Branch string

	// Port carries the selected output port for ResultRoute.
	Port string

	// MultiOutputs carries per-port outputs for ResultMultiOutput, and
	// MultiMain names which one is stored as the node's output.
	MultiOutputs map[string]ActionOutput
	MultiMain    string

	// RetryAfter carries a handler's suggested retry delay. The engine
	// does not read it: a ResultRetry is rescheduled after the backoff
	// computed from the node's RetryPolicy.
	RetryAfter int64 // milliseconds
}

// Success builds a Success ActionResult wrapping v.
func Success(v ActionOutput) ActionResult { return ActionResult{Kind: ResultSuccess, Output: v} }

// Skip builds a Skip ActionResult; partial is retained as the node's
// stored output even though none of its flow edges will activate from
// it via the Always path.
func Skip(partial ActionOutput) ActionResult { return ActionResult{Kind: ResultSkip, Output: partial} }

// BranchResult builds a Branch ActionResult selecting key.
func BranchResult(key string, out ActionOutput) ActionResult {
	return ActionResult{Kind: ResultBranch, Branch: key, Output: out}
}

// RouteResult builds a Route ActionResult selecting port.
func RouteResult(port string, out ActionOutput) ActionResult {
	return ActionResult{Kind: ResultRoute, Port: port, Output: out}
}

// MultiOutputResult builds a MultiOutput ActionResult.
func MultiOutputResult(outputs map[string]ActionOutput, main string) ActionResult {
	return ActionResult{Kind: ResultMultiOutput, MultiOutputs: outputs, MultiMain: main}
}

// ActionOutputKind is the closed set of output payload shapes.
type ActionOutputKind int

const (
	OutputValue ActionOutputKind = iota
	OutputBinary
	OutputReference
	OutputDeferred
	OutputStreaming
	OutputCollection
	OutputEmpty
)

// BinaryRef addresses out-of-band binary data.
type BinaryRef struct {
	StorageType string
	Path        string
	Checksum    string
}

// ActionOutput is the closed payload type produced by a handler and
// consumed by downstream parameter resolution and edge evaluation.
// The engine does not resolve Deferred or Streaming variants and raises
// no error for them: Raw returns nil for both kinds, so downstream
// consumers receive nil.
type ActionOutput struct {
	Kind       ActionOutputKind
	Value      any
	Binary     BinaryRef
	Reference  string
	Collection []ActionOutput
}

// Value builds an OutputValue ActionOutput.
func Value(v any) ActionOutput { return ActionOutput{Kind: OutputValue, Value: v} }

// Empty builds an OutputEmpty ActionOutput.
func Empty() ActionOutput { return ActionOutput{Kind: OutputEmpty} }

// Raw unwraps an ActionOutput into a plain Go value suitable for
// expression evaluation and JSON-shaped delivery to handlers.
func (o ActionOutput) Raw() any {
	switch o.Kind {
	case OutputValue:
		return o.Value
	case OutputBinary:
		return map[string]any{"storage_type": o.Binary.StorageType, "path": o.Binary.Path, "checksum": o.Binary.Checksum}
	case OutputReference:
		return o.Reference
	case OutputCollection:
		items := make([]any, len(o.Collection))
		for i, c := range o.Collection {
			items[i] = c.Raw()
		}
		return items
	case OutputEmpty:
		return nil
	default:
		return nil
	}
}
