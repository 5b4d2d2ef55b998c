package engine

import "github.com/nebula-run/flow/expr"

// evaluateEdge implements evaluate_edge(conn, result, nodeFailed) in the
// exact rule order the scheduler depends on. The rules are evaluated in
// strict sequence; the first one that decides the edge wins.
func evaluateEdge(evaluator *expr.Evaluator, conn Connection, result ActionResult, nodeFailed bool) bool {
	// 1. Skip never activates any edge.
	if result.Kind == ResultSkip {
		return false
	}

	// 2. Failure: only a matching OnError edge activates.
	if nodeFailed {
		return conn.Condition.Kind == CondOnError && matchesError(evaluator, conn.Condition.Error, result)
	}

	// 3. Branch gating.
	if result.Kind == ResultBranch && conn.BranchKey != "" && conn.BranchKey != result.Branch {
		return false
	}

	// 4. Route (port) gating.
	if result.Kind == ResultRoute && conn.FromPort != "" && conn.FromPort != result.Port {
		return false
	}

	// 5. MultiOutput port gating.
	if result.Kind == ResultMultiOutput && conn.FromPort != "" {
		if _, ok := result.MultiOutputs[conn.FromPort]; !ok {
			return false
		}
	}

	// 6. Dispatch on the edge's declared condition.
	switch conn.Condition.Kind {
	case CondAlways:
		return true
	case CondOnError:
		// Success path: an OnError edge never activates here.
		return false
	case CondOnResult:
		return matchesResult(evaluator, conn.Condition.Result, result)
	case CondExpression:
		return matchesExpression(evaluator, conn.Condition.Expression, result)
	default:
		return false
	}
}

// matchesResult evaluates a result matcher against a successful (or
// otherwise non-failed) ActionResult's primary output.
func matchesResult(evaluator *expr.Evaluator, m Matcher, result ActionResult) bool {
	switch m.Kind {
	case MatchSuccess:
		return true
	case MatchFieldEquals:
		out := primaryOutput(result)
		obj, ok := out.Raw().(map[string]any)
		if !ok {
			return false
		}
		return equalAny(obj[m.Field], m.Value)
	case MatchExpression:
		return matchesExpression(evaluator, m.Expression, result)
	default:
		return false
	}
}

// matchesError evaluates an error matcher. MatchCode and the
// expression-shaped error matcher always return true: the upstream
// implementation this was ported from left both stubbed to always-true,
// and no resolved semantics were ever specified for them.
func matchesError(evaluator *expr.Evaluator, m Matcher, result ActionResult) bool {
	switch m.Kind {
	case MatchAny:
		return true
	case MatchCode:
		return true
	case MatchExpression:
		return true
	default:
		return false
	}
}

func matchesExpression(evaluator *expr.Evaluator, src string, result ActionResult) bool {
	if src == "" {
		return false
	}
	ctx := expr.NewContext(map[string]any{"$output": primaryOutput(result).Raw()})
	v, err := evaluator.Eval(src, ctx)
	if err != nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func equalAny(a, b any) bool {
	return a == b
}

// primaryOutput extracts the ActionOutput a completed node's result
// contributes downstream: Success carries its output directly, Skip
// carries its partial result (even though skip never activates an
// edge, the partial is still what gets stored for the node), Branch/
// Route carry their designated output, MultiOutput carries its main
// output, and Retry carries none (Empty).
func primaryOutput(result ActionResult) ActionOutput {
	switch result.Kind {
	case ResultSuccess, ResultSkip, ResultBranch, ResultRoute, ResultContinue, ResultBreak, ResultWait:
		return result.Output
	case ResultMultiOutput:
		if out, ok := result.MultiOutputs[result.MultiMain]; ok {
			return out
		}
		return Empty()
	default:
		return Empty()
	}
}
