package expr

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const defaultMaxDepth = 256

// Evaluator walks an expression AST against an EvaluationContext. A single
// Evaluator is safe for concurrent use: its only mutable state is the
// regex cache, which is mutex-guarded.
type Evaluator struct {
	maxDepth int
	regexes  *regexCache
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMaxDepth overrides the recursion-depth guard. The default is 256.
func WithMaxDepth(n int) Option {
	return func(e *Evaluator) { e.maxDepth = n }
}

func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{maxDepth: defaultMaxDepth, regexes: newRegexCache()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Eval evaluates src against ctx in one step: parse then walk.
func (e *Evaluator) Eval(src string, ctx *EvaluationContext) (any, error) {
	node, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return e.EvalNode(node, ctx)
}

// EvalNode walks an already-parsed AST.
func (e *Evaluator) EvalNode(node Node, ctx *EvaluationContext) (any, error) {
	return e.eval(node, ctx, 0)
}

func (e *Evaluator) eval(node Node, ctx *EvaluationContext, depth int) (any, error) {
	if depth > e.maxDepth {
		return nil, newEvalError("recursion depth exceeded %d", e.maxDepth)
	}

	switch n := node.(type) {
	case Literal:
		return n.Value, nil

	case ArrayLit:
		out := make([]any, len(n.Items))
		for i, item := range n.Items {
			v, err := e.eval(item, ctx, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case ObjectLit:
		out := make(map[string]any, len(n.Keys))
		for i, k := range n.Keys {
			v, err := e.eval(n.Values[i], ctx, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil

	case Var:
		v, ok := ctx.Get(n.Name)
		if !ok {
			return nil, &Error{Kind: VariableNotFound, Message: n.Name}
		}
		return v, nil

	case UnaryOp:
		return e.evalUnary(n, ctx, depth)

	case BinaryOp:
		return e.evalBinary(n, ctx, depth)

	case Conditional:
		cond, err := e.eval(n.Cond, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return e.eval(n.Then, ctx, depth+1)
		}
		return e.eval(n.Else, ctx, depth+1)

	case Property:
		obj, err := e.eval(n.Object, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		return propertyAccess(obj, n.Name)

	case Index:
		obj, err := e.eval(n.Object, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		key, err := e.eval(n.Key, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		return indexAccess(obj, key)

	case Call:
		return e.evalCall(n, ctx, depth)

	case Pipeline:
		src, err := e.eval(n.Source, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		return e.callFunc(n.Next.Func, src, n.Next.Args, ctx, depth)

	case Lambda:
		// A lambda evaluated outside of a higher-order-function call site
		// has no meaning; it is only ever consumed directly by evalCall's
		// arg-matching for filter/map/reduce/find/every/some.
		return nil, newEvalError("lambda cannot be evaluated standalone")

	default:
		return nil, newEvalError("unknown node type %T", node)
	}
}

func (e *Evaluator) evalUnary(n UnaryOp, ctx *EvaluationContext, depth int) (any, error) {
	v, err := e.eval(n.Operand, ctx, depth+1)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "not":
		return !truthy(v), nil
	case "-":
		switch x := v.(type) {
		case int64:
			return -x, nil
		case float64:
			return -x, nil
		default:
			return nil, newTypeError("number", fmt.Sprintf("%T", v))
		}
	}
	return nil, newEvalError("unknown unary operator %q", n.Op)
}

func (e *Evaluator) evalBinary(n BinaryOp, ctx *EvaluationContext, depth int) (any, error) {
	// Logical operators short-circuit: the right operand must not be
	// evaluated at all when the result is already determined.
	switch n.Op {
	case "and":
		left, err := e.eval(n.Left, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		if !truthy(left) {
			return false, nil
		}
		right, err := e.eval(n.Right, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	case "or":
		left, err := e.eval(n.Left, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		if truthy(left) {
			return true, nil
		}
		right, err := e.eval(n.Right, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	}

	left, err := e.eval(n.Left, ctx, depth+1)
	if err != nil {
		return nil, err
	}
	right, err := e.eval(n.Right, ctx, depth+1)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case "==":
		return valuesEqual(left, right), nil
	case "!=":
		return !valuesEqual(left, right), nil
	case "<", ">", "<=", ">=":
		return compareValues(n.Op, left, right)
	case "=~":
		return e.evalRegexMatch(left, right)
	case "+", "-", "*", "/", "%":
		return arith(n.Op, left, right)
	}
	return nil, newEvalError("unknown binary operator %q", n.Op)
}

func (e *Evaluator) evalRegexMatch(left, right any) (any, error) {
	str, ok := left.(string)
	if !ok {
		return nil, newTypeError("string", fmt.Sprintf("%T", left))
	}
	pattern, ok := right.(string)
	if !ok {
		return nil, newTypeError("string", fmt.Sprintf("%T", right))
	}
	re, err := e.regexes.compile(pattern)
	if err != nil {
		return nil, err
	}
	return re.MatchString(str), nil
}

// truthy applies the evaluator's boolean-coercion rules: false/nil/0/""/
// empty collections are falsy, everything else is truthy.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func valuesEqual(a, b any) bool {
	af, aIsNum := toFloat(a)
	bf, bIsNum := toFloat(b)
	if aIsNum && bIsNum {
		return af == bf
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case nil:
		return b == nil
	}
	return deepEqual(a, b)
}

func deepEqual(a, b any) bool {
	switch x := a.(type) {
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !valuesEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			yv, ok := y[k]
			if !ok || !valuesEqual(v, yv) {
				return false
			}
		}
		return true
	}
	return false
}

func compareValues(op string, a, b any) (any, error) {
	af, aIsNum := toFloat(a)
	bf, bIsNum := toFloat(b)
	if aIsNum && bIsNum {
		return compareNums(op, af, bf), nil
	}
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return compareStrs(op, as, bs), nil
	}
	return nil, newTypeError("comparable operands", fmt.Sprintf("%T and %T", a, b))
}

func compareNums(op string, a, b float64) bool {
	switch op {
	case "<":
		return a < b
	case ">":
		return a > b
	case "<=":
		return a <= b
	case ">=":
		return a >= b
	}
	return false
}

func compareStrs(op string, a, b string) bool {
	switch op {
	case "<":
		return a < b
	case ">":
		return a > b
	case "<=":
		return a <= b
	case ">=":
		return a >= b
	}
	return false
}

// arith applies checked integer arithmetic, falling back to float64 on
// overflow. Division always produces a float64; modulo stays integer when
// both operands are integer.
func arith(op string, a, b any) (any, error) {
	ai, aIsInt := a.(int64)
	bi, bIsInt := b.(int64)

	if op == "/" {
		af, aok := toFloat(a)
		bf, bok := toFloat(b)
		if !aok || !bok {
			return nil, newTypeError("number", "non-number operand")
		}
		if bf == 0 {
			return nil, &Error{Kind: DivisionByZero, Message: "division by zero"}
		}
		return af / bf, nil
	}

	if op == "%" {
		if aIsInt && bIsInt {
			if bi == 0 {
				return nil, &Error{Kind: DivisionByZero, Message: "modulo by zero"}
			}
			return ai % bi, nil
		}
		af, aok := toFloat(a)
		bf, bok := toFloat(b)
		if !aok || !bok {
			return nil, newTypeError("number", "non-number operand")
		}
		if bf == 0 {
			return nil, &Error{Kind: DivisionByZero, Message: "modulo by zero"}
		}
		return math.Mod(af, bf), nil
	}

	if aIsInt && bIsInt {
		switch op {
		case "+":
			if r, ok := addOverflows(ai, bi); ok {
				return r, nil
			}
		case "-":
			if r, ok := subOverflows(ai, bi); ok {
				return r, nil
			}
		case "*":
			if r, ok := mulOverflows(ai, bi); ok {
				return r, nil
			}
		}
		// overflowed: fall through to float arithmetic below
	}

	// String concatenation via "+".
	if op == "+" {
		as, aIsStr := a.(string)
		bs, bIsStr := b.(string)
		if aIsStr && bIsStr {
			return as + bs, nil
		}
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return nil, newTypeError("number", fmt.Sprintf("%T and %T", a, b))
	}
	switch op {
	case "+":
		return af + bf, nil
	case "-":
		return af - bf, nil
	case "*":
		return af * bf, nil
	}
	return nil, newEvalError("unknown arithmetic operator %q", op)
}

// addOverflows returns (sum, true) when ai+bi fits in int64.
func addOverflows(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

func subOverflows(a, b int64) (int64, bool) {
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		return 0, false
	}
	return diff, true
}

func mulOverflows(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if p/b != a {
		return 0, false
	}
	return p, true
}

func propertyAccess(obj any, name string) (any, error) {
	m, ok := obj.(map[string]any)
	if !ok {
		return nil, newTypeError("object", fmt.Sprintf("%T", obj))
	}
	v, ok := m[name]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func indexAccess(obj any, key any) (any, error) {
	switch o := obj.(type) {
	case []any:
		idxF, ok := toFloat(key)
		if !ok {
			return nil, newTypeError("integer index", fmt.Sprintf("%T", key))
		}
		idx := int(idxF)
		if idx < 0 {
			idx += len(o)
		}
		if idx < 0 || idx >= len(o) {
			return nil, &Error{Kind: IndexOutOfBounds, Message: fmt.Sprintf("index %v out of bounds for length %d", key, len(o))}
		}
		return o[idx], nil
	case map[string]any:
		ks, ok := key.(string)
		if !ok {
			return nil, newTypeError("string key", fmt.Sprintf("%T", key))
		}
		v, ok := o[ks]
		if !ok {
			return nil, nil
		}
		return v, nil
	default:
		return nil, newTypeError("indexable", fmt.Sprintf("%T", obj))
	}
}

func (e *Evaluator) evalCall(n Call, ctx *EvaluationContext, depth int) (any, error) {
	return e.callFunc(n.Func, nil, n.Args, ctx, depth)
}

// callFunc dispatches a function call. When pipeSource is non-nil the
// call arrived via a pipeline stage and is prepended as the first argument.
func (e *Evaluator) callFunc(name string, pipeSource any, argNodes []Node, ctx *EvaluationContext, depth int) (any, error) {
	switch name {
	case "filter", "map", "find", "every", "all", "some", "any", "reduce":
		return e.evalHigherOrder(name, pipeSource, argNodes, ctx, depth)
	}

	args := make([]any, 0, len(argNodes)+1)
	if pipeSource != nil {
		args = append(args, pipeSource)
	}
	for _, an := range argNodes {
		v, err := e.eval(an, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return callBuiltin(name, args)
}

// evalHigherOrder evaluates filter/map/reduce/find/every/some. The
// collection argument may arrive as a pipeline source or as the first
// explicit argument; the lambda follows the collection (for reduce it is
// followed by the seed) and is evaluated once per element against a cloned context with its parameter
// bound, so sibling elements never observe each other's bindings.
func (e *Evaluator) evalHigherOrder(name string, pipeSource any, argNodes []Node, ctx *EvaluationContext, depth int) (any, error) {
	var coll any
	var lambdaNode Node
	var seedNode Node
	var err error

	if pipeSource != nil {
		coll = pipeSource
		if len(argNodes) == 0 {
			return nil, newEvalError("%s requires a lambda argument", name)
		}
		if name == "reduce" {
			if len(argNodes) < 2 {
				return nil, newEvalError("reduce requires a lambda and a seed")
			}
			lambdaNode = argNodes[0]
			seedNode = argNodes[1]
		} else {
			lambdaNode = argNodes[len(argNodes)-1]
		}
	} else {
		if len(argNodes) < 2 {
			return nil, newEvalError("%s requires a collection and a lambda", name)
		}
		coll, err = e.eval(argNodes[0], ctx, depth+1)
		if err != nil {
			return nil, err
		}
		if name == "reduce" {
			if len(argNodes) < 3 {
				return nil, newEvalError("reduce requires a collection, a lambda, and a seed")
			}
			lambdaNode = argNodes[1]
			seedNode = argNodes[2]
		} else {
			lambdaNode = argNodes[len(argNodes)-1]
		}
	}

	lambda, ok := lambdaNode.(Lambda)
	if !ok {
		return nil, newEvalError("%s requires a lambda argument", name)
	}

	items, ok := coll.([]any)
	if !ok {
		return nil, newTypeError("array", fmt.Sprintf("%T", coll))
	}

	switch name {
	case "filter":
		out := make([]any, 0, len(items))
		for _, item := range items {
			elemCtx := ctx.With(lambda.Param, item)
			v, err := e.eval(lambda.Body, elemCtx, depth+1)
			if err != nil {
				return nil, err
			}
			if truthy(v) {
				out = append(out, item)
			}
		}
		return out, nil

	case "map":
		out := make([]any, len(items))
		for i, item := range items {
			elemCtx := ctx.With(lambda.Param, item)
			v, err := e.eval(lambda.Body, elemCtx, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case "find":
		for _, item := range items {
			elemCtx := ctx.With(lambda.Param, item)
			v, err := e.eval(lambda.Body, elemCtx, depth+1)
			if err != nil {
				return nil, err
			}
			if truthy(v) {
				return item, nil
			}
		}
		return nil, nil

	case "every", "all":
		for _, item := range items {
			elemCtx := ctx.With(lambda.Param, item)
			v, err := e.eval(lambda.Body, elemCtx, depth+1)
			if err != nil {
				return nil, err
			}
			if !truthy(v) {
				return false, nil
			}
		}
		return true, nil

	case "some", "any":
		for _, item := range items {
			elemCtx := ctx.With(lambda.Param, item)
			v, err := e.eval(lambda.Body, elemCtx, depth+1)
			if err != nil {
				return nil, err
			}
			if truthy(v) {
				return true, nil
			}
		}
		return false, nil

	case "reduce":
		acc, err := e.eval(seedNode, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			elemCtx := ctx.With(lambda.Param, item).With("$acc", acc)
			acc, err = e.eval(lambda.Body, elemCtx, depth+1)
			if err != nil {
				return nil, err
			}
		}
		return acc, nil
	}

	return nil, newEvalError("unknown higher-order function %q", name)
}

// callBuiltin dispatches the fixed-arity builtin functions available to
// expressions outside the higher-order-function family.
func callBuiltin(name string, args []any) (any, error) {
	switch name {
	case "length":
		if len(args) != 1 {
			return nil, newEvalError("length takes 1 argument")
		}
		switch v := args[0].(type) {
		case string:
			return int64(len(v)), nil
		case []any:
			return int64(len(v)), nil
		case map[string]any:
			return int64(len(v)), nil
		}
		return nil, newTypeError("string, array, or object", fmt.Sprintf("%T", args[0]))

	case "abs":
		if len(args) != 1 {
			return nil, newEvalError("abs takes 1 argument")
		}
		switch v := args[0].(type) {
		case int64:
			if v < 0 {
				return -v, nil
			}
			return v, nil
		case float64:
			return math.Abs(v), nil
		}
		return nil, newTypeError("number", fmt.Sprintf("%T", args[0]))

	case "floor":
		f, ok := toFloat(oneArg(args))
		if !ok {
			return nil, newTypeError("number", "non-number operand")
		}
		return math.Floor(f), nil

	case "ceil":
		f, ok := toFloat(oneArg(args))
		if !ok {
			return nil, newTypeError("number", "non-number operand")
		}
		return math.Ceil(f), nil

	case "round":
		f, ok := toFloat(oneArg(args))
		if !ok {
			return nil, newTypeError("number", "non-number operand")
		}
		return math.Round(f), nil

	case "min":
		return minMax(args, false)
	case "max":
		return minMax(args, true)

	case "upper":
		s, ok := oneArg(args).(string)
		if !ok {
			return nil, newTypeError("string", fmt.Sprintf("%T", oneArg(args)))
		}
		return strings.ToUpper(s), nil

	case "lower":
		s, ok := oneArg(args).(string)
		if !ok {
			return nil, newTypeError("string", fmt.Sprintf("%T", oneArg(args)))
		}
		return strings.ToLower(s), nil

	case "trim":
		s, ok := oneArg(args).(string)
		if !ok {
			return nil, newTypeError("string", fmt.Sprintf("%T", oneArg(args)))
		}
		return strings.TrimSpace(s), nil

	case "split":
		if len(args) != 2 {
			return nil, newEvalError("split takes 2 arguments")
		}
		s, ok := args[0].(string)
		sep, ok2 := args[1].(string)
		if !ok || !ok2 {
			return nil, newTypeError("string, string", "mismatched args")
		}
		parts := strings.Split(s, sep)
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil

	case "join":
		if len(args) != 2 {
			return nil, newEvalError("join takes 2 arguments")
		}
		items, ok := args[0].([]any)
		sep, ok2 := args[1].(string)
		if !ok || !ok2 {
			return nil, newTypeError("array, string", "mismatched args")
		}
		strs := make([]string, len(items))
		for i, it := range items {
			s, ok := it.(string)
			if !ok {
				return nil, newTypeError("string element", fmt.Sprintf("%T", it))
			}
			strs[i] = s
		}
		return strings.Join(strs, sep), nil

	case "contains":
		if len(args) != 2 {
			return nil, newEvalError("contains takes 2 arguments")
		}
		switch c := args[0].(type) {
		case string:
			s, ok := args[1].(string)
			if !ok {
				return nil, newTypeError("string", fmt.Sprintf("%T", args[1]))
			}
			return strings.Contains(c, s), nil
		case []any:
			for _, item := range c {
				if valuesEqual(item, args[1]) {
					return true, nil
				}
			}
			return false, nil
		}
		return nil, newTypeError("string or array", fmt.Sprintf("%T", args[0]))

	case "sort":
		items, ok := oneArg(args).([]any)
		if !ok {
			return nil, newTypeError("array", fmt.Sprintf("%T", oneArg(args)))
		}
		out := make([]any, len(items))
		copy(out, items)
		sort.SliceStable(out, func(i, j int) bool {
			lt, _ := compareValues("<", out[i], out[j])
			b, _ := lt.(bool)
			return b
		})
		return out, nil
	}

	return nil, newEvalError("unknown function %q", name)
}

func oneArg(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}

func minMax(args []any, wantMax bool) (any, error) {
	if len(args) == 0 {
		return nil, newEvalError("min/max requires at least 1 argument")
	}
	values := args
	if len(args) == 1 {
		items, ok := args[0].([]any)
		if ok {
			values = items
		}
	}
	if len(values) == 0 {
		return nil, newEvalError("min/max requires a non-empty collection")
	}
	best := values[0]
	bestF, ok := toFloat(best)
	if !ok {
		return nil, newTypeError("number", fmt.Sprintf("%T", best))
	}
	for _, v := range values[1:] {
		f, ok := toFloat(v)
		if !ok {
			return nil, newTypeError("number", fmt.Sprintf("%T", v))
		}
		if (wantMax && f > bestF) || (!wantMax && f < bestF) {
			best, bestF = v, f
		}
	}
	return best, nil
}
