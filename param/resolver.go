package param

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nebula-run/flow/expr"
)

// Context supplies the bindings a parameter definition resolves against:
// the flow input delivered to the node, prior nodes' outputs keyed by node ID,
// and workflow-scoped variables.
type Context struct {
	Input     any
	Outputs   map[string]any
	Variables map[string]any
}

func (c Context) toEvalContext() *expr.EvaluationContext {
	vars := map[string]any{
		"$input":   c.Input,
		"$outputs": anyMap(c.Outputs),
	}
	for k, v := range c.Variables {
		vars["$"+k] = v
	}
	return expr.NewContext(vars)
}

func anyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// Resolver resolves and validates parameter definitions against a Context.
type Resolver struct {
	evaluator *expr.Evaluator
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{evaluator: expr.NewEvaluator()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithEvaluator lets callers share a single expr.Evaluator (and its regex
// cache) across the resolver and other expression consumers.
func WithEvaluator(e *expr.Evaluator) Option {
	return func(r *Resolver) { r.evaluator = e }
}

// Resolve resolves every definition in defs against ctx, batching every
// failure into a single ValidationErrors rather than stopping at the
// first one, and returns the resolved value set keyed by parameter name.
func (r *Resolver) Resolve(defs []Definition, ctx Context) (map[string]any, error) {
	out := make(map[string]any, len(defs))
	verrs := &ValidationErrors{}

	for _, def := range defs {
		val, err := r.resolveOne(def, ctx)
		if err != nil {
			if ve, ok := err.(*Error); ok {
				verrs.Add(ve)
				continue
			}
			verrs.Add(&Error{Kind: ResolutionFail, Param: def.Name, Message: err.Error()})
			continue
		}
		if val == nil && def.Default != nil {
			val = def.Default
		}
		if val == nil && def.Required {
			verrs.Add(&Error{Kind: MissingValue, Param: def.Name, Message: "required parameter has no value"})
			continue
		}
		if val != nil {
			if ruleErrs := validate(def, val); len(ruleErrs) > 0 {
				for _, e := range ruleErrs {
					verrs.Add(e)
				}
				continue
			}
		}
		out[def.Name] = val
	}

	if verrs.HasErrors() {
		return out, verrs
	}
	return out, nil
}

func (r *Resolver) resolveOne(def Definition, ctx Context) (any, error) {
	switch def.Kind {
	case KindLiteral, "":
		return def.Literal, nil

	case KindExpression:
		v, err := r.evaluator.Eval(def.Expression, ctx.toEvalContext())
		if err != nil {
			return nil, &Error{Kind: ResolutionFail, Param: def.Name, Message: err.Error()}
		}
		return v, nil

	case KindTemplate:
		return r.resolveTemplate(def, ctx)

	case KindReference:
		if def.Ref == nil {
			return nil, &Error{Kind: ResolutionFail, Param: def.Name, Message: "reference parameter missing target"}
		}
		return r.resolveReference(def, ctx)

	default:
		return nil, &Error{Kind: InvalidType, Param: def.Name, Message: fmt.Sprintf("unknown parameter kind %q", def.Kind)}
	}
}

// resolveTemplate interpolates every `{{ expr }}` segment in a template
// string, evaluating each as an expression against the same context and
// stringifying the result.
func (r *Resolver) resolveTemplate(def Definition, ctx Context) (any, error) {
	var sb strings.Builder
	src := def.Template
	evalCtx := ctx.toEvalContext()

	for {
		start := strings.Index(src, "{{")
		if start == -1 {
			sb.WriteString(src)
			break
		}
		end := strings.Index(src[start:], "}}")
		if end == -1 {
			return nil, &Error{Kind: ResolutionFail, Param: def.Name, Message: "unterminated template expression"}
		}
		end += start

		sb.WriteString(src[:start])
		exprSrc := strings.TrimSpace(src[start+2 : end])
		v, err := r.evaluator.Eval(exprSrc, evalCtx)
		if err != nil {
			return nil, &Error{Kind: ResolutionFail, Param: def.Name, Message: err.Error()}
		}
		sb.WriteString(stringify(v))
		src = src[end+2:]
	}
	return sb.String(), nil
}

func (r *Resolver) resolveReference(def Definition, ctx Context) (any, error) {
	out, ok := ctx.Outputs[def.Ref.NodeID]
	if !ok {
		return nil, &Error{Kind: MissingValue, Param: def.Name, Message: fmt.Sprintf("no output recorded for node %q", def.Ref.NodeID)}
	}
	if def.Ref.Path == "" {
		return out, nil
	}

	pathExpr := "$v." + def.Ref.Path
	v, err := r.evaluator.Eval(pathExpr, expr.NewContext(map[string]any{"$v": out}))
	if err != nil {
		return nil, &Error{Kind: ResolutionFail, Param: def.Name, Message: err.Error()}
	}
	return v, nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
